// Package fakes provides in-memory test doubles for the Session's external
// collaborators, grounded on the spec's own instruction to "use an interface
// for the bus client, the switch driver, and the channel registry so tests
// can substitute in-memory fakes" and on the style of the teacher's simple
// hand-rolled loggers (src/sippy/log/error_logger.go) — small structs with
// no behaviour beyond recording calls and returning canned results.
package fakes

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/dialplan-gateway/ctrlsession/internal/session"
)

// Driver is a scriptable SwitchDriver: tests enqueue results via Results or
// let ExecCmd auto-assign a fresh correlation uuid for OutcomeAwaitingCompletion.
type Driver struct {
	mu sync.Mutex

	CastCalls   []session.Command
	APICalls    []string
	ExecCalls   []session.Command
	IssuedUUIDs []string

	// Results, keyed by ApplicationName, consumed one at a time (FIFO) by
	// ExecCmd. When empty for a given application, ExecCmd synthesizes an
	// OutcomeAwaitingCompletion result with a fresh uuid, which is the
	// common case exercised by S1/S2/S4.
	Results map[string][]ExecResult

	APIResult string
	APIErr    error
}

// ExecResult is one scripted response to ExecCmd.
type ExecResult struct {
	Result session.DispatchResult
	Err    error
}

func NewDriver() *Driver {
	return &Driver{Results: map[string][]ExecResult{}}
}

func (d *Driver) CastCmd(_ context.Context, _, _ string, cmd session.Command) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.CastCalls = append(d.CastCalls, cmd)
	return nil
}

func (d *Driver) API(_ context.Context, _, command string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.APICalls = append(d.APICalls, command)
	return d.APIResult, d.APIErr
}

func (d *Driver) ExecCmd(_ context.Context, _, _ string, cmd session.Command, _ string) (session.DispatchResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ExecCalls = append(d.ExecCalls, cmd)

	queue := d.Results[cmd.ApplicationName]
	if len(queue) > 0 {
		next := queue[0]
		d.Results[cmd.ApplicationName] = queue[1:]
		d.IssuedUUIDs = append(d.IssuedUUIDs, next.Result.EventUUID)
		return next.Result, next.Err
	}
	result := session.DispatchResult{
		Outcome:   session.OutcomeAwaitingCompletion,
		EventUUID: uuid.NewString(),
	}
	d.IssuedUUIDs = append(d.IssuedUUIDs, result.EventUUID)
	return result, nil
}

// LastIssuedUUID returns the correlation token most recently handed back by
// ExecCmd, for tests that need to build a matching completion event without
// scripting every Result up front.
func (d *Driver) LastIssuedUUID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.IssuedUUIDs) == 0 {
		return ""
	}
	return d.IssuedUUIDs[len(d.IssuedUUIDs)-1]
}

// ExecCount returns how many times ExecCmd has been called, for assertions
// that care about dispatch count rather than content.
func (d *Driver) ExecCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.ExecCalls)
}

// Bus is an in-memory BusClient recording every publish for assertions.
type Bus struct {
	mu sync.Mutex

	RouteWins   []session.RouteWin
	Usurps      []session.UsurpNotice
	Errors      []session.ErrorEvent
	ExecErrors  []session.ChannelExecuteErrorEvent
}

func NewBus() *Bus { return &Bus{} }

func (b *Bus) PublishRouteWin(_ context.Context, win session.RouteWin) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.RouteWins = append(b.RouteWins, win)
	return nil
}

func (b *Bus) PublishUsurpControl(_ context.Context, notice session.UsurpNotice) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Usurps = append(b.Usurps, notice)
	return nil
}

func (b *Bus) PublishError(_ context.Context, ev session.ErrorEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Errors = append(b.Errors, ev)
	return nil
}

func (b *Bus) PublishChannelExecuteError(_ context.Context, ev session.ChannelExecuteErrorEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ExecErrors = append(b.ExecErrors, ev)
	return nil
}

func (b *Bus) ErrorCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Errors)
}

// Registry is a ChannelRegistry backed by a plain set, toggled directly by
// tests rather than by any real switch.
type Registry struct {
	mu     sync.Mutex
	exists map[string]bool
}

func NewRegistry() *Registry {
	return &Registry{exists: map[string]bool{}}
}

func (r *Registry) Set(node, callID string, exists bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exists[key(node, callID)] = exists
}

func (r *Registry) Exists(_ context.Context, node, callID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exists[key(node, callID)], nil
}

func key(node, callID string) string { return fmt.Sprintf("%s/%s", node, callID) }
