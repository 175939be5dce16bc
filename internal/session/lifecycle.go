package session

import (
	"context"
	"math/rand"
	"time"

	"github.com/looplab/fsm"
)

// Lifecycle states and events (§4.6), modeled the way the corpus models a
// dialog's state machine: a small fixed vocabulary driven through
// looplab/fsm with a single "after_event" callback that logs every
// transition, rather than per-transition callbacks.
const (
	lifecycleStarting    = "starting"
	lifecycleActive       = "active"
	lifecycleDraining     = "draining"
	lifecycleTerminated   = "terminated"
)

const (
	eventStart      = "start"
	eventNodeDown   = "node_down"
	eventNodeUp     = "node_up"
	eventBeginDrain = "begin_drain"
	eventTerminate  = "terminate"
)

func (s *Session) initLifecycle() {
	s.lifecycle = fsm.NewFSM(
		lifecycleStarting,
		fsm.Events{
			{Name: eventStart, Src: []string{lifecycleStarting}, Dst: lifecycleActive},
			{Name: eventNodeDown, Src: []string{lifecycleActive}, Dst: lifecycleActive},
			{Name: eventNodeUp, Src: []string{lifecycleActive}, Dst: lifecycleActive},
			{Name: eventBeginDrain, Src: []string{lifecycleActive}, Dst: lifecycleDraining},
			{Name: eventTerminate, Src: []string{lifecycleStarting, lifecycleActive, lifecycleDraining}, Dst: lifecycleTerminated},
		},
		fsm.Callbacks{
			"after_event": func(_ context.Context, e *fsm.Event) {
				s.log.WithFields(map[string]interface{}{
					"from":  e.Src,
					"to":    e.Dst,
					"event": e.Event,
				}).Debug("lifecycle transition")
			},
		},
	)
}

// startup performs the §4.6 startup sequence: stamp the call with this
// session's bus address, publish the route-win and usurp-control notices,
// then move the lifecycle to active.
func (s *Session) startup(ctx context.Context) {
	stampCmd := Command{
		Insert:          InsertNow,
		ApplicationName: "set",
		Fields: map[string]interface{}{
			"socket_control_queue": s.controlQ,
			"socket_control_pid":   s.controllerP,
		},
	}
	if err := s.driver.CastCmd(ctx, s.node, s.callID, stampCmd); err != nil {
		s.log.WithError(err).Warn("failed to stamp channel with control address")
	}

	if s.bus != nil {
		if err := s.bus.PublishRouteWin(ctx, RouteWin{
			CallID:            s.callID,
			ControlQueue:      s.controllerQ,
			ControlPID:        s.controllerP,
			CustomChannelVars: s.initialCCVs,
		}); err != nil {
			s.log.WithError(err).Warn("failed to publish route win")
		}
		if err := s.bus.PublishUsurpControl(ctx, UsurpNotice{
			CallID:    s.callID,
			Reason:    "new_control",
			FetchID:   s.fetchID,
			MediaNode: s.node,
		}); err != nil {
			s.log.WithError(err).Warn("failed to publish usurp control")
		}
	}

	s.armSanityCheckTimer()
	s.metrics.sessionStarted()
	_ = s.lifecycle.Event(ctx, eventStart)
}

func (s *Session) handleNodeDown(ctx context.Context) {
	if !s.isNodeUp {
		return
	}
	s.isNodeUp = false
	s.armNodeDownTimer()
	_ = s.lifecycle.Event(ctx, eventNodeDown)
	// advance's step 1 (§4.3) clears current_app/current_cmd_uuid whenever
	// is_node_up is false: the in-flight command's completion can no longer
	// be trusted to arrive, so it is abandoned rather than left stale.
	s.advance(ctx)
}

// handleNodeUp implements §4.6's node_up recovery: cancel the node-down
// timer, then wait out a 100-1500ms jitter before asking the registry
// whether the call id survived the outage, so a flapping node doesn't cause
// every session on it to hammer the registry at the same instant.
func (s *Session) handleNodeUp(ctx context.Context) {
	if s.isNodeUp {
		return
	}
	s.nodeDownTimer.stop()

	if s.nodeUpVerifyTimer == nil {
		s.nodeUpVerifyTimer = newGenerationTimer()
	}
	jitter := 100*time.Millisecond + time.Duration(rand.Intn(1400))*time.Millisecond
	s.nodeUpVerifyTimer.arm(jitter, func(gen int) {
		s.Post(NodeUpVerifyEvent{Generation: gen})
	})
}

func (s *Session) handleNodeUpVerify(ctx context.Context) {
	s.isNodeUp = true

	exists, err := s.registry.Exists(ctx, s.node, s.callID)
	if err != nil {
		s.log.WithError(err).Warn("channel registry lookup failed on node_up")
	}
	if err != nil || !exists {
		s.handleChannelDestroyed(ctx)
		return
	}
	_ = s.lifecycle.Event(ctx, eventNodeUp)
	s.forceAdvance(ctx)
}

func (s *Session) handleSanityCheck(ctx context.Context) {
	exists, err := s.registry.Exists(ctx, s.node, s.callID)
	if err != nil {
		s.log.WithError(err).Warn("sanity check lookup failed")
		s.armSanityCheckTimer()
		return
	}
	if !exists {
		s.handleChannelDestroyed(ctx)
		return
	}
	s.armSanityCheckTimer()
}

// handleChannelDestroyed implements the "drain current command, report error
// if any, set is_call_up=false, start keep-alive" transition (§4.6, S5). It
// does not flush the queue: advance's post-hangup-unsafe branch reports an
// error for each remaining unsafe command and keeps draining until the queue
// is empty or a post-hangup-safe command (e.g. hangup) is reached.
func (s *Session) handleChannelDestroyed(ctx context.Context) {
	if !s.isCallUp {
		return
	}
	s.isCallUp = false

	if s.currentApp != "" {
		s.publishError(ctx, s.currentCmd, "")
		s.currentApp = ""
		s.currentCmd = Command{}
		s.currentCmdUUID = ""
		s.msgID = ""
	}

	s.armKeepAliveTimer()
	_ = s.lifecycle.Event(ctx, eventBeginDrain)
	s.forceAdvance(ctx)
}

// handleLoopbackBowout implements §4.6's loopback_bowout transition: when the
// switch collapses an internal loopback and our call id is the resigning
// side, call_id is renamed to the surviving id (S7).
func (s *Session) handleLoopbackBowout(resigning, acquired string) {
	if resigning != s.callID || acquired == resigning {
		return
	}
	s.renameCallID(acquired)
}

// handleChannelReplaced implements CHANNEL_REPLACED for our fetch id (§4.6):
// call_id is renamed to the replacement channel's id.
func (s *Session) handleChannelReplaced(replacedBy, fetchID string) {
	if fetchID != s.fetchID {
		return
	}
	s.renameCallID(replacedBy)
}

func (s *Session) renameCallID(newCallID string) {
	old := s.callID
	s.callID = newCallID
	s.log = s.log.WithField("call_id", newCallID)
	if s.onRenamed != nil {
		s.onRenamed(old, newCallID)
	}
}

// terminateNormally drives the lifecycle to terminated and reports whether
// the caller should stop the actor loop (always true once reached, since
// terminated has no outgoing transitions).
func (s *Session) terminateNormally(ctx context.Context, reason string) bool {
	if s.lifecycle.Current() != lifecycleTerminated {
		_ = s.lifecycle.Event(ctx, eventTerminate)
		s.metrics.sessionEnded(reason)
	}
	return true
}
