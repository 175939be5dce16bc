package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dialplan-gateway/ctrlsession/internal/fakes"
	"github.com/dialplan-gateway/ctrlsession/internal/session"
)

func newTestSession(t *testing.T, driver *fakes.Driver, bus *fakes.Bus, reg *fakes.Registry) (*session.Session, context.Context, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	sess := session.NewSession(session.Params{
		Node:        "node1",
		CallID:      "call-A",
		FetchID:     "fetch-1",
		ControllerQ: "controller-queue",
		ControllerP: "controller-pid",
		Driver:      driver,
		Bus:         bus,
		Registry:    reg,
		Config:      session.DefaultConfig(),
	})
	go sess.Run(ctx)
	t.Cleanup(cancel)
	return sess, ctx, cancel
}

func raw(appName, msgID, insertAt string, extra map[string]interface{}) map[string]interface{} {
	m := map[string]interface{}{
		"Application-Name": appName,
		"Msg-ID":            msgID,
		"Insert-At":         insertAt,
	}
	for k, v := range extra {
		m[k] = v
	}
	return m
}

// S1: Simple play.
func TestSimplePlay(t *testing.T) {
	driver := fakes.NewDriver()
	sess, _, _ := newTestSession(t, driver, fakes.NewBus(), fakes.NewRegistry())

	sess.Post(session.DialplanCommandEvent{Raw: raw("playback", "m1", "tail", map[string]interface{}{"File": "a.wav"})})

	require.Eventually(t, func() bool { return driver.ExecCount() == 1 }, time.Second, time.Millisecond)
	uuid := driver.LastIssuedUUID()
	require.NotEmpty(t, uuid)

	snap := sess.Snapshot()
	require.Equal(t, "playback", snap.CurrentApp)

	sess.Post(session.ExecuteCompleteEvent{RawApplicationName: "playback", EventUUID: uuid})

	require.Eventually(t, func() bool {
		return sess.Snapshot().CurrentApp == "" && sess.Snapshot().QueueDepth == 0
	}, time.Second, time.Millisecond)
}

// S2: DTMF terminator drops the rest of the matching group.
func TestDTMFTerminator(t *testing.T) {
	driver := fakes.NewDriver()
	sess, _, _ := newTestSession(t, driver, fakes.NewBus(), fakes.NewRegistry())

	sess.Post(session.DialplanCommandEvent{Raw: raw("playback", "m1", "tail", map[string]interface{}{"Group-ID": "g1"})})
	sess.Post(session.DialplanCommandEvent{Raw: raw("playback", "m2", "tail", map[string]interface{}{"Group-ID": "g1"})})
	sess.Post(session.DialplanCommandEvent{Raw: raw("playback", "m3", "tail", map[string]interface{}{"Group-ID": "g2"})})

	require.Eventually(t, func() bool { return driver.ExecCount() == 1 }, time.Second, time.Millisecond)
	u1 := driver.LastIssuedUUID()

	sess.Post(session.ExecuteCompleteEvent{
		RawApplicationName: "playback",
		EventUUID:          u1,
		Body:               map[string]interface{}{"DTMF-Digit": "5", "Group-ID": "g1"},
	})

	require.Eventually(t, func() bool { return driver.ExecCount() == 2 }, time.Second, time.Millisecond)
	last := driver.ExecCalls[len(driver.ExecCalls)-1]
	require.Equal(t, "m3", last.MsgID)
}

// S3: Flush breaks the switch call, drops the queue, dispatches the new command.
func TestFlush(t *testing.T) {
	driver := fakes.NewDriver()
	sess, _, _ := newTestSession(t, driver, fakes.NewBus(), fakes.NewRegistry())

	sess.Post(session.DialplanCommandEvent{Raw: raw("playback", "m1", "tail", nil)})
	require.Eventually(t, func() bool { return driver.ExecCount() == 1 }, time.Second, time.Millisecond)
	staleUUID := driver.LastIssuedUUID()

	sess.Post(session.DialplanCommandEvent{Raw: raw("playback", "m2", "tail", nil)})
	sess.Post(session.DialplanCommandEvent{Raw: raw("playback", "m3", "tail", nil)})
	sess.Post(session.DialplanCommandEvent{Raw: raw("park", "m4", "flush", nil)})

	require.Eventually(t, func() bool { return driver.ExecCount() == 2 }, time.Second, time.Millisecond)
	require.Equal(t, "park", driver.ExecCalls[len(driver.ExecCalls)-1].ApplicationName)
	require.Contains(t, driver.APICalls, "uuid_break call-A all")

	sess.Post(session.ExecuteCompleteEvent{RawApplicationName: "playback", EventUUID: staleUUID})
	time.Sleep(20 * time.Millisecond)
	snap := sess.Snapshot()
	require.Equal(t, "park", snap.CurrentApp)
}

// S4: Noop correlation only advances when Application-Response matches msg id.
func TestNoopCorrelation(t *testing.T) {
	driver := fakes.NewDriver()
	sess, _, _ := newTestSession(t, driver, fakes.NewBus(), fakes.NewRegistry())

	sess.Post(session.DialplanCommandEvent{Raw: raw("noop", "n1", "tail", nil)})
	require.Eventually(t, func() bool { return driver.ExecCount() == 1 }, time.Second, time.Millisecond)
	u2 := driver.LastIssuedUUID()

	sess.Post(session.ExecuteCompleteEvent{
		RawApplicationName: "noop",
		EventUUID:          u2,
		Body:               map[string]interface{}{"Application-Response": "other"},
	})
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, "noop", sess.Snapshot().CurrentApp)

	sess.Post(session.ExecuteCompleteEvent{
		RawApplicationName: "noop",
		EventUUID:          u2,
		Body:               map[string]interface{}{"Application-Response": "n1"},
	})
	require.Eventually(t, func() bool { return sess.Snapshot().CurrentApp == "" }, time.Second, time.Millisecond)
}

// S5: Channel destroyed mid-command reports errors for unsafe queued
// commands and none for hangup, then the session terminates.
func TestChannelDestroyedMidCommand(t *testing.T) {
	driver := fakes.NewDriver()
	bus := fakes.NewBus()
	sess, _, _ := newTestSession(t, driver, bus, fakes.NewRegistry())

	sess.Post(session.DialplanCommandEvent{Raw: raw("playback", "m1", "tail", nil)})
	require.Eventually(t, func() bool { return driver.ExecCount() == 1 }, time.Second, time.Millisecond)

	sess.Post(session.DialplanCommandEvent{Raw: raw("bridge", "m2", "tail", nil)})
	sess.Post(session.DialplanCommandEvent{Raw: raw("hangup", "m3", "tail", nil)})

	sess.Post(session.ChannelDestroyedEvent{})

	require.Eventually(t, func() bool { return bus.ErrorCount() == 2 }, time.Second, time.Millisecond)
	for _, e := range bus.Errors {
		require.NotEqual(t, "hangup", e.Request.ApplicationName)
	}

	require.Eventually(t, func() bool {
		select {
		case <-sess.Done():
			return true
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
}

// S6: A node flap holds the queue, then resumes once the node is confirmed up.
func TestNodeFlap(t *testing.T) {
	driver := fakes.NewDriver()
	reg := fakes.NewRegistry()
	reg.Set("node1", "call-A", true)
	sess, _, _ := newTestSession(t, driver, fakes.NewBus(), reg)

	sess.Post(session.DialplanCommandEvent{Raw: raw("playback", "m1", "tail", nil)})
	require.Eventually(t, func() bool { return driver.ExecCount() == 1 }, time.Second, time.Millisecond)

	sess.Post(session.NodeDownEvent{Node: "node1"})
	time.Sleep(20 * time.Millisecond)

	sess.Post(session.DialplanCommandEvent{Raw: raw("bridge", "m2", "tail", nil)})
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 1, driver.ExecCount())
	require.Equal(t, 1, sess.Snapshot().QueueDepth)

	sess.Post(session.NodeUpEvent{Node: "node1"})

	require.Eventually(t, func() bool { return driver.ExecCount() == 2 }, 3*time.Second, 10*time.Millisecond)
}

// S7: Loopback bowout renames call_id; the in-flight command's correlation
// token is unchanged and still retires it.
func TestLoopbackBowoutRename(t *testing.T) {
	driver := fakes.NewDriver()
	sess, _, _ := newTestSession(t, driver, fakes.NewBus(), fakes.NewRegistry())

	sess.Post(session.DialplanCommandEvent{Raw: raw("playback", "m1", "tail", nil)})
	require.Eventually(t, func() bool { return driver.ExecCount() == 1 }, time.Second, time.Millisecond)

	sess.Post(session.LoopbackBowoutEvent{ResigningUUID: "call-A", AcquiredUUID: "call-B"})

	require.Eventually(t, func() bool { return sess.Snapshot().CallID == "call-B" }, time.Second, time.Millisecond)

	u := driver.LastIssuedUUID()
	sess.Post(session.ExecuteCompleteEvent{RawApplicationName: "playback", EventUUID: u})
	require.Eventually(t, func() bool { return sess.Snapshot().CurrentApp == "" }, time.Second, time.Millisecond)
}
