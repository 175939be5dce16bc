package session

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// wireCommand is the typed shape mapstructure decodes a dialplan/conference
// bus message into (§4.2, §6); everything not named here still survives in
// Command.Raw for per-application modules to read opaquely.
type wireCommand struct {
	ApplicationName string                   `mapstructure:"Application-Name"`
	MsgID           string                   `mapstructure:"Msg-ID"`
	CallID          string                   `mapstructure:"Call-ID"`
	GroupID         string                   `mapstructure:"Group-ID"`
	InsertAt        string                   `mapstructure:"Insert-At"`
	Commands        []map[string]interface{} `mapstructure:"Commands"`
}

func parseCommand(raw map[string]interface{}) Command {
	var wc wireCommand
	_ = mapstructure.Decode(raw, &wc)
	return Command{
		Insert:          ParseInsertAt(wc.InsertAt),
		ApplicationName: wc.ApplicationName,
		MsgID:           wc.MsgID,
		CallID:          wc.CallID,
		GroupID:         wc.GroupID,
		Fields:          raw,
		Raw:             raw,
	}
}

// explodeBatch expands a "queue" super-command's Commands array into
// individual Command records, merging the batch's own fields as defaults
// under each child's own fields (§4.2).
func explodeBatch(cmd Command) []Command {
	var wc wireCommand
	_ = mapstructure.Decode(cmd.Raw, &wc)

	defaults := make(map[string]interface{}, len(cmd.Raw))
	for k, v := range cmd.Raw {
		if k == "Commands" {
			continue
		}
		defaults[k] = v
	}

	children := make([]Command, 0, len(wc.Commands))
	for _, childRaw := range wc.Commands {
		merged := make(map[string]interface{}, len(defaults)+len(childRaw))
		for k, v := range defaults {
			merged[k] = v
		}
		for k, v := range childRaw {
			merged[k] = v
		}
		children = append(children, parseCommand(merged))
	}
	return children
}

// handleDialplanCommand is the entry point for both dialplan/command and
// conference/command bus messages (§6): they are handled identically.
func (s *Session) handleDialplanCommand(ctx context.Context, raw map[string]interface{}) {
	cmd := parseCommand(raw)
	if cmd.ApplicationName == "" {
		s.log.WithField("raw", raw).Debug("dropping malformed command: no application name")
		return
	}

	switch cmd.Insert {
	case InsertNow:
		s.ingestNow(ctx, cmd)
	case InsertFlush:
		s.ingestFlush(ctx, cmd)
	case InsertHead:
		s.enqueue(cmd, true)
		s.maybeAdvance(ctx)
	default:
		s.enqueue(cmd, false)
		s.maybeAdvance(ctx)
	}
}

// enqueue pushes cmd (exploding a queue batch element-by-element) at the
// head or tail, preserving original child order in both cases (§4.2).
func (s *Session) enqueue(cmd Command, atHead bool) {
	if !cmd.IsQueueBatch() {
		s.pushOne(cmd, atHead)
		return
	}
	children := explodeBatch(cmd)
	if atHead {
		// Push in reverse so the last Push ends up first, preserving the
		// batch's original order at the front of the queue.
		for i := len(children) - 1; i >= 0; i-- {
			s.pushOne(children[i], true)
		}
		return
	}
	for _, child := range children {
		s.pushOne(child, false)
	}
}

func (s *Session) pushOne(cmd Command, atHead bool) {
	if atHead {
		s.commandQ.PushHead(cmd)
		s.metrics.queued(InsertHead)
		return
	}
	s.commandQ.PushTail(cmd)
	s.metrics.queued(InsertTail)
}

// ingestNow handles insert_at=now (§4.2): the noop/Filter-Applications
// special case bypasses the driver entirely, otherwise the command is fired
// at the switch immediately without touching the queue or current_app.
func (s *Session) ingestNow(ctx context.Context, cmd Command) {
	if cmd.IsNoop() {
		if specs := cmd.FilterApplications(); len(specs) > 0 {
			s.commandQ.Filter(specs)
			s.maybeAdvance(ctx)
			return
		}
	}

	if !s.isNodeUp {
		if s.bus != nil {
			if err := s.bus.PublishChannelExecuteError(ctx, ChannelExecuteErrorEvent{
				CallID:          s.callID,
				ApplicationName: cmd.ApplicationName,
				MsgID:           cmd.MsgID,
			}); err != nil {
				s.log.WithError(err).Warn("failed to publish channel execute error")
			}
		}
		return
	}

	if _, err := s.driver.ExecCmd(ctx, s.node, s.callID, cmd, s.controlQ); err != nil {
		s.reportDriverError(ctx, cmd, err)
	}
}

// ingestFlush handles insert_at=flush (§4.2, S3): break everything queued
// on the switch, drop the queue, enqueue the new command, and force-advance
// so it is dispatched immediately — any in-flight completion that later
// arrives for the discarded command no longer matches current_cmd_uuid,
// which was cleared and then holds only the new command's token, if any.
func (s *Session) ingestFlush(ctx context.Context, cmd Command) {
	if _, err := s.driver.API(ctx, s.node, fmt.Sprintf("uuid_break %s all", s.callID)); err != nil {
		s.log.WithError(err).Warn("uuid_break failed during flush")
	}
	s.commandQ.Flush()
	s.currentApp = ""
	s.currentCmd = Command{}
	s.currentCmdUUID = ""
	s.msgID = ""

	s.commandQ.PushTail(cmd)
	s.metrics.queued(InsertFlush)
	s.forceAdvance(ctx)
}

// maybeAdvance implements the tail of §4.2: after ingestion, if the node is
// up, the queue is non-empty, and nothing is in flight, dispatch one command.
func (s *Session) maybeAdvance(ctx context.Context) {
	if s.isNodeUp && !s.commandQ.IsEmpty() && s.currentApp == "" {
		s.advance(ctx)
	}
}
