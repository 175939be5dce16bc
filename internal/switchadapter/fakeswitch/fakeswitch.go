// Package fakeswitch is a demo session.SwitchDriver that doesn't talk to a
// real media switch: ExecCmd hands back a fresh correlation uuid and, after
// a short simulated run time, delivers the matching completion back into
// the owning session's mailbox itself — standing in for the event-producer
// sibling process the spec places out of scope (§1).
package fakeswitch

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dialplan-gateway/ctrlsession/internal/session"
)

// Deliverer is the minimal surface fakeswitch needs from a session to post
// a simulated completion back into its mailbox.
type Deliverer interface {
	Post(ev session.Event)
}

// Driver simulates dispatch latency and delivers ExecuteComplete events on
// its own goroutine, the way a real switch's event socket would.
type Driver struct {
	mu       sync.Mutex
	sessions map[string]Deliverer
	runTime  time.Duration
}

func New(runTime time.Duration) *Driver {
	if runTime <= 0 {
		runTime = 50 * time.Millisecond
	}
	return &Driver{sessions: map[string]Deliverer{}, runTime: runTime}
}

// Bind registers the session that owns callID so later-simulated completion
// events can be delivered into its mailbox; callers must Bind before the
// first ExecCmd for that call id.
func (d *Driver) Bind(callID string, sess Deliverer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sessions[callID] = sess
}

func (d *Driver) Unbind(callID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.sessions, callID)
}

func (d *Driver) CastCmd(_ context.Context, _, _ string, _ session.Command) error {
	return nil
}

func (d *Driver) API(_ context.Context, _, _ string) (string, error) {
	return "true", nil
}

// ExecCmd treats every application as asynchronous: it returns a fresh
// correlation token and schedules a completion event after a jittered delay.
func (d *Driver) ExecCmd(_ context.Context, _, callID string, cmd session.Command, _ string) (session.DispatchResult, error) {
	eventUUID := uuid.NewString()

	delay := d.runTime + time.Duration(rand.Intn(int(d.runTime)+1))
	go func() {
		time.Sleep(delay)
		d.mu.Lock()
		sess, ok := d.sessions[callID]
		d.mu.Unlock()
		if !ok {
			return
		}
		sess.Post(session.ExecuteCompleteEvent{
			RawApplicationName: cmd.ApplicationName,
			EventUUID:          eventUUID,
			Body:               map[string]interface{}{},
		})
	}()

	return session.DispatchResult{Outcome: session.OutcomeAwaitingCompletion, EventUUID: eventUUID}, nil
}
