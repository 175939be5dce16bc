package session

import "context"

// advance is the single progress function of §4.3. It is called after
// ingestion (when idle), after a correlated completion retires the current
// command, and recursively after a fire-and-forget dispatch.
func (s *Session) advance(ctx context.Context) {
	if !s.isNodeUp {
		s.currentApp = ""
		s.currentCmdUUID = ""
		return
	}

	cmd, ok := s.commandQ.Pop()
	if !ok {
		s.currentApp = ""
		s.currentCmdUUID = ""
		return
	}

	if !s.isCallUp && !s.cfg.isPostHangupSafe(cmd.ApplicationName) {
		s.publishError(ctx, cmd, "")
		s.forceAdvance(ctx)
		return
	}

	result, err := s.driver.ExecCmd(ctx, s.node, s.callID, cmd, s.controlQ)
	if err != nil {
		s.reportDriverError(ctx, cmd, err)
		s.forceAdvance(ctx)
		return
	}
	s.metrics.dispatched()

	switch result.Outcome {
	case OutcomeAwaitingCompletion:
		s.currentApp = cmd.ApplicationName
		s.currentCmd = cmd
		s.currentCmdUUID = result.EventUUID
		s.msgID = cmd.MsgID
	default: // OutcomeFireAndForget
		s.advance(ctx)
	}
}

// forceAdvance is advance invoked from outside the normal dispatch-then-wait
// path: after a flush, after node-up recovery, and after a command is
// rejected rather than dispatched. It is the same engine, named per §4.3 to
// keep call sites self-documenting.
func (s *Session) forceAdvance(ctx context.Context) {
	s.advance(ctx)
}
