package session

// Event is the marker type for everything that can arrive in a Session's
// mailbox. The session is a single-consumer actor (§5): every state
// mutation happens inside the goroutine that reads this channel, in arrival
// order, so no field of Session needs its own lock.
type Event interface{}

// DialplanCommandEvent carries one decoded bus message through ingestion (§4.2).
// A "queue" batch travels as a single event; its children are merged with
// the batch's headers during ingestion (explodeBatch).
type DialplanCommandEvent struct {
	Raw map[string]interface{}
}

// ExecuteCompleteEvent is the CHANNEL_EXECUTE_COMPLETE relay (§4.4, §6).
type ExecuteCompleteEvent struct {
	RawApplicationName string
	EventUUID          string
	Body               map[string]interface{}
}

// ChannelDestroyedEvent models CHANNEL_DESTROY (§4.6).
type ChannelDestroyedEvent struct{}

// NodeDownEvent models fs_nodedown for a matching node (§4.6).
type NodeDownEvent struct{ Node string }

// NodeUpEvent models fs_nodeup for a matching, previously-down node (§4.6).
type NodeUpEvent struct{ Node string }

// NodeDownTimerExpiredEvent fires when the bounded node-restart wait elapses (§4.6).
type NodeDownTimerExpiredEvent struct{ Generation int }

// NodeUpVerifyEvent fires after the node_up jitter delay, triggering the
// registry check that decides whether to resume or treat as destroyed (§4.6).
type NodeUpVerifyEvent struct{ Generation int }

// SanityCheckEvent fires on the periodic channel-registry recheck (§4.6).
type SanityCheckEvent struct{ Generation int }

// LoopbackBowoutEvent models the switch collapsing a loopback leg (§4.6).
type LoopbackBowoutEvent struct {
	ResigningUUID string
	AcquiredUUID  string
}

// ChannelReplacedEvent models CHANNEL_REPLACED (§4.6).
type ChannelReplacedEvent struct {
	ReplacedBy string
	FetchID    string
}

// ChannelTransfereeEvent models CHANNEL_TRANSFEREE (§4.6).
type ChannelTransfereeEvent struct{ FetchID string }

// UsurpControlEvent models an external usurp_control notice (§4.6).
type UsurpControlEvent struct{ FetchID string }

// ChannelExecuteRedirectEvent models CHANNEL_EXECUTE with Application=redirect (§4.6).
type ChannelExecuteRedirectEvent struct{}

// KeepAliveExpiredEvent fires when the post-hangup keep-alive timer elapses (§4.6).
type KeepAliveExpiredEvent struct{ Generation int }

// StopEvent requests immediate normal termination (external stop/shutdown).
type StopEvent struct{ Reason string }

// queryEvent lets external callers (the CLI, metrics scraping, tests) read
// session state without a separate mutex: the closure runs inside the
// mailbox loop, in order with every other event, then signals done.
type queryEvent struct {
	fn   func(*Session)
	done chan struct{}
}
