package session

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// publishError implements §4.7: a hangup is a terminal no-op at worst and
// never produces an error reply, regardless of why it failed to run.
func (s *Session) publishError(ctx context.Context, cmd Command, message string) {
	if cmd.ApplicationName == hangupApplication {
		return
	}
	if message == "" {
		message = fmt.Sprintf("Could not execute dialplan action: %s", cmd.ApplicationName)
	}
	s.metrics.errorPublished()
	if s.bus == nil {
		return
	}
	if err := s.bus.PublishError(ctx, ErrorEvent{
		CallID:  s.callID,
		MsgID:   cmd.MsgID,
		Request: cmd,
		Message: message,
	}); err != nil {
		s.log.WithError(err).Warn("failed to publish dialplan error")
	}
}

// reportDriverError classifies a switch driver failure per §7: the two
// "no session" exceptions get a specific message, everything else is logged
// and reported generically.
func (s *Session) reportDriverError(ctx context.Context, cmd Command, err error) {
	if errors.Is(err, ErrNoSession) || errors.Is(err, ErrBadMatchNoSession) {
		s.publishError(ctx, cmd, fmt.Sprintf("Session %s not found for %s", s.callID, cmd.ApplicationName))
		return
	}
	s.log.WithError(err).WithField("application", cmd.ApplicationName).Error("switch driver execution failed")
	s.publishError(ctx, cmd, "")
}
