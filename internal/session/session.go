package session

import (
	"context"
	"time"

	"github.com/looplab/fsm"
	"github.com/sirupsen/logrus"
)

// Session is the per-call control session of spec §3. Every field below is
// mutated only from inside Run's mailbox loop; nothing else in this package
// (or outside it) touches them directly, so the actor needs no mutex —
// that is the "no shared mutable structures with peers" design note (§9).
type Session struct {
	// Identity (§3)
	node    string
	callID  string
	fetchID string

	// Command queue state (§3, I1-I3)
	commandQ       *CommandQueue
	currentApp     string
	currentCmd     Command
	currentCmdUUID string
	msgID          string
	otherLegs      map[string]bool

	// Liveness (§3, I3-I4)
	isCallUp bool
	isNodeUp bool

	// Timers (§3, I5)
	nodeDownTimer     *generationTimer
	keepAliveTimer    *generationTimer
	sanityTimer       *generationTimer
	nodeUpVerifyTimer *generationTimer

	// Bus addressing (§3, §4.6, §6)
	controllerQ  string
	controllerP  string
	controlQ     string
	initialCCVs  map[string]interface{}
	startTime    time.Time

	// Collaborators (§6, injected — never constructed by this package)
	driver     SwitchDriver
	bus        BusClient
	registry   ChannelRegistry
	equivalent EquivalenceLookup

	cfg     Config
	log     *logrus.Entry
	metrics *Metrics

	lifecycle *fsm.FSM

	mailbox      chan Event
	done         chan struct{}
	onTerminated func(callID string)
	onRenamed    func(oldCallID, newCallID string)
}

// Params bundles everything NewSession needs to create a session; it exists
// so call sites don't have a fifteen-argument constructor call.
type Params struct {
	Node        string
	CallID      string
	FetchID     string
	ControllerQ string
	ControllerP string
	ControlQ    string
	InitialCCVs map[string]interface{}

	Driver     SwitchDriver
	Bus        BusClient
	Registry   ChannelRegistry
	Equivalent EquivalenceLookup

	Config  Config
	Log     *logrus.Entry
	Metrics *Metrics

	// OnTerminated is invoked exactly once, after the mailbox loop exits,
	// with this session's current call id — the registry uses it to drop
	// its entry (mirrors CallMap.DropCC).
	OnTerminated func(callID string)

	// OnRenamed is invoked synchronously, from inside the mailbox loop,
	// whenever call_id changes under bowout or replacement — the registry
	// uses it to perform the atomic rename described in §5/§9.
	OnRenamed func(oldCallID, newCallID string)
}

func NewSession(p Params) *Session {
	log := p.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	s := &Session{
		node:         p.Node,
		callID:       p.CallID,
		fetchID:      p.FetchID,
		commandQ:     NewCommandQueue(),
		otherLegs:    map[string]bool{},
		isCallUp:     true,
		isNodeUp:     true,
		controllerQ:  p.ControllerQ,
		controllerP:  p.ControllerP,
		controlQ:     p.ControlQ,
		initialCCVs:  p.InitialCCVs,
		startTime:    time.Now(),
		driver:       p.Driver,
		bus:          p.Bus,
		registry:     p.Registry,
		equivalent:   p.Equivalent,
		cfg:          p.Config,
		log:          log.WithField("call_id", p.CallID),
		metrics:      p.Metrics,
		mailbox:      make(chan Event, 64),
		done:         make(chan struct{}),
		onTerminated: p.OnTerminated,
		onRenamed:    p.OnRenamed,
	}
	s.initLifecycle()
	return s
}

// CallID returns the session's current call id. The read is not
// synchronized: Run rewrites the field on rename (lifecycle.go's
// handleLoopbackBowout/handleChannelReplaced), so a call from another
// goroutine can race with a rename. Snapshot().CallID is the synchronized read.
func (s *Session) CallID() string { return s.callID }

// Post enqueues ev for sequential processing by Run. It never blocks the
// caller beyond the mailbox's buffer; callers that need ordering guarantees
// across a shutdown should select on Done() as well.
func (s *Session) Post(ev Event) {
	select {
	case s.mailbox <- ev:
	case <-s.done:
	}
}

// Done is closed once the actor loop has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Snapshot is a point-in-time, race-free read of the fields the admin CLI
// and tests care about. It runs inside the mailbox loop via queryEvent so it
// never races with a concurrent mutation.
type Snapshot struct {
	Node            string
	CallID          string
	FetchID         string
	CurrentApp      string
	QueueDepth      int
	IsCallUp        bool
	IsNodeUp        bool
	LifecycleState  string
	StartedAt       time.Time
}

func (s *Session) Snapshot() Snapshot {
	result := make(chan Snapshot, 1)
	done := make(chan struct{})
	select {
	case s.mailbox <- queryEvent{fn: func(sess *Session) {
		result <- Snapshot{
			Node:           sess.node,
			CallID:         sess.callID,
			FetchID:        sess.fetchID,
			CurrentApp:     sess.currentApp,
			QueueDepth:     sess.commandQ.Len(),
			IsCallUp:       sess.isCallUp,
			IsNodeUp:       sess.isNodeUp,
			LifecycleState: sess.lifecycle.Current(),
			StartedAt:      sess.startTime,
		}
		close(done)
	}, done: done}:
	case <-s.done:
		return Snapshot{CallID: s.callID, LifecycleState: "terminated"}
	}
	select {
	case snap := <-result:
		return snap
	case <-s.done:
		return Snapshot{CallID: s.callID, LifecycleState: "terminated"}
	}
}

// Run is the session's actor loop (§5): the mailbox receive is the only
// suspension point. It returns once the session reaches the terminated
// lifecycle state and every timer has been stopped.
func (s *Session) Run(ctx context.Context) {
	defer func() {
		s.stopAllTimers()
		if s.onTerminated != nil {
			s.onTerminated(s.callID)
		}
		close(s.done)
	}()

	s.startup(ctx)

	for {
		select {
		case <-ctx.Done():
			s.terminateNormally(ctx, "context_canceled")
			return
		case ev := <-s.mailbox:
			if s.dispatchEvent(ctx, ev) {
				return
			}
		}
	}
}

// dispatchEvent handles one mailbox message and reports whether the actor
// should stop (i.e. the lifecycle reached "terminated").
func (s *Session) dispatchEvent(ctx context.Context, ev Event) bool {
	switch e := ev.(type) {
	case queryEvent:
		e.fn(s)
	case DialplanCommandEvent:
		s.handleDialplanCommand(ctx, e.Raw)
	case ExecuteCompleteEvent:
		s.handleExecuteComplete(ctx, e.RawApplicationName, e.EventUUID, e.Body)
	case ChannelDestroyedEvent:
		s.handleChannelDestroyed(ctx)
	case NodeDownEvent:
		if e.Node == s.node {
			s.handleNodeDown(ctx)
		}
	case NodeUpEvent:
		if e.Node == s.node {
			s.handleNodeUp(ctx)
		}
	case NodeDownTimerExpiredEvent:
		if e.Generation == s.nodeDownTimer.generation() {
			s.handleChannelDestroyed(ctx)
		}
	case NodeUpVerifyEvent:
		if e.Generation == s.nodeUpVerifyTimer.generation() {
			s.handleNodeUpVerify(ctx)
		}
	case SanityCheckEvent:
		if e.Generation == s.sanityTimer.generation() {
			s.handleSanityCheck(ctx)
		}
	case LoopbackBowoutEvent:
		s.handleLoopbackBowout(e.ResigningUUID, e.AcquiredUUID)
	case ChannelReplacedEvent:
		s.handleChannelReplaced(e.ReplacedBy, e.FetchID)
	case ChannelTransfereeEvent:
		if e.FetchID == s.fetchID {
			return s.terminateNormally(ctx, "transferee")
		}
	case UsurpControlEvent:
		if e.FetchID != s.fetchID {
			return s.terminateNormally(ctx, "usurped")
		}
	case ChannelExecuteRedirectEvent:
		return s.terminateNormally(ctx, "redirect")
	case StopEvent:
		return s.terminateNormally(ctx, e.Reason)
	case KeepAliveExpiredEvent:
		if e.Generation == s.keepAliveTimer.generation() {
			return s.terminateNormally(ctx, "keep_alive_expired")
		}
	}
	return s.lifecycle.Current() == lifecycleTerminated
}
