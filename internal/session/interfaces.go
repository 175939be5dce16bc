package session

import (
	"context"

	"github.com/pkg/errors"
)

// The four external collaborators below are deliberately interfaces only —
// per spec §1 the bus client, the media-switch driver, the channel registry
// and the per-command application modules are out of scope for this module.
// Concrete adapters live under internal/busadapter and internal/switchadapter
// and are never imported by this package.

// DispatchOutcome is the success result of a driver invocation described
// in spec §4.3 step 4: fire-and-forget or awaiting a completion event. The
// third case, an immediate error, is ExecCmd's error return.
type DispatchOutcome int

const (
	OutcomeFireAndForget DispatchOutcome = iota
	OutcomeAwaitingCompletion
)

// DispatchResult is what SwitchDriver.ExecCmd returns on success. EventUUID
// is only meaningful when Outcome is OutcomeAwaitingCompletion; it becomes
// the session's current_cmd_uuid correlation token, treated as an opaque
// value per the design notes (§9) — never parsed, only compared.
type DispatchResult struct {
	Outcome   DispatchOutcome
	EventUUID string
}

// ErrNoSession and ErrBadMatchNoSession classify the two driver exceptions
// that spec §4.3/§7 say must be reported as "Session <id> not found for <app>"
// rather than as a generic execution error. Adapters should wrap one of these
// with errors.Wrap so errors.Is still finds the sentinel.
var (
	ErrNoSession         = errors.New("no session")
	ErrBadMatchNoSession = errors.New("bad match on no session")
)

// SwitchDriver is the media-switch collaborator (§6). All three methods are
// treated as short, non-blocking local operations per §5: the driver fires
// the command and any asynchronous completion is delivered back into this
// session's mailbox later as an ExecuteComplete event, not returned here.
type SwitchDriver interface {
	// CastCmd fires a command without expecting any reply; used at session
	// startup to stamp the call with this session's bus address.
	CastCmd(ctx context.Context, node, callID string, cmd Command) error
	// API issues a synchronous switch query/command (uuid_exists, uuid_break).
	API(ctx context.Context, node, command string) (string, error)
	// ExecCmd dispatches one application-level command on callLeg and reports
	// where its completion event (if any) should be delivered.
	ExecCmd(ctx context.Context, node, callLeg string, cmd Command, replyTo string) (DispatchResult, error)
}

// RouteWin is published once at session startup (§4.6, §6).
type RouteWin struct {
	CallID            string
	ControlQueue      string
	ControlPID        string
	CustomChannelVars map[string]interface{}
}

// UsurpNotice is broadcast at session startup (§4.6, §6); a session that
// receives an external usurp terminates without publishing one.
type UsurpNotice struct {
	CallID    string
	Reason    string
	FetchID   string
	MediaNode string
}

// ErrorEvent is the dialplan/error bus event published per §4.7.
type ErrorEvent struct {
	CallID  string
	MsgID   string
	Request Command
	Message string
}

// ChannelExecuteErrorEvent is published per §4.2/§6 when a "now" command is
// rejected because the node is down.
type ChannelExecuteErrorEvent struct {
	CallID          string
	ApplicationName string
	MsgID           string
}

// BusClient is the message-broker collaborator (§6).
type BusClient interface {
	PublishRouteWin(ctx context.Context, win RouteWin) error
	PublishUsurpControl(ctx context.Context, notice UsurpNotice) error
	PublishError(ctx context.Context, ev ErrorEvent) error
	PublishChannelExecuteError(ctx context.Context, ev ChannelExecuteErrorEvent) error
}

// ChannelRegistry answers "does this call id still exist on the switch?"
// (§4.6 node_up recovery and the periodic sanity check).
type ChannelRegistry interface {
	Exists(ctx context.Context, node, callID string) (bool, error)
}

// EquivalenceLookup expands a logical (Kazoo-style) application name into
// the set of switch-level application names it may emit, per the
// name-equivalence registry described in the design notes (§9) and used by
// correlation rule 6 (§4.4). It is owned by the per-command module registry,
// not by the session, and is injected as a plain function.
type EquivalenceLookup func(logicalApplication string) []string
