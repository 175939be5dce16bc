package cli

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dialplan-gateway/ctrlsession/internal/fakes"
	"github.com/dialplan-gateway/ctrlsession/internal/registry"
	"github.com/dialplan-gateway/ctrlsession/internal/session"
)

func newTestServer(t *testing.T) (*Server, *registry.Registry) {
	t.Helper()
	reg := registry.New(nil)
	return &Server{reg: reg}, reg
}

func putSession(t *testing.T, reg *registry.Registry, callID, node string) *session.Session {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	sess := session.NewSession(session.Params{
		Node:     node,
		CallID:   callID,
		FetchID:  callID,
		Driver:   fakes.NewDriver(),
		Bus:      fakes.NewBus(),
		Registry: fakes.NewRegistry(),
		Config:   session.DefaultConfig(),
	})
	go sess.Run(ctx)
	t.Cleanup(cancel)
	reg.Put(callID, sess, cancel)
	return sess
}

func TestDispatchEmptyCommand(t *testing.T) {
	srv, _ := newTestServer(t)
	assert.Contains(t, srv.dispatch(""), "empty command")
}

func TestDispatchListEmpty(t *testing.T) {
	srv, _ := newTestServer(t)
	assert.Contains(t, srv.dispatch("l"), "no active sessions")
}

func TestDispatchListAndDrop(t *testing.T) {
	srv, reg := newTestServer(t)
	sess := putSession(t, reg, "call-A", "node1")

	out := srv.dispatch("l")
	assert.Contains(t, out, "call-A")

	out = srv.dispatch("d call-A")
	assert.Contains(t, out, "dropped call-A")

	select {
	case <-sess.Done():
	case <-time.After(time.Second):
		t.Fatal("session not stopped")
	}

	assert.Contains(t, srv.dispatch("d call-A"), "no session for call-A")
}

func TestDispatchDropUsage(t *testing.T) {
	srv, _ := newTestServer(t)
	assert.Contains(t, srv.dispatch("d"), "usage: d <call-id>")
}

func TestDispatchNodeDownUp(t *testing.T) {
	srv, reg := newTestServer(t)
	putSession(t, reg, "call-A", "node1")

	out := srv.dispatch("nd node1")
	assert.Contains(t, out, "node_down broadcast for node1")

	out = srv.dispatch("nu node1")
	assert.Contains(t, out, "node_up broadcast for node1")
}

func TestDispatchNodeDownUsage(t *testing.T) {
	srv, _ := newTestServer(t)
	assert.Contains(t, srv.dispatch("nd"), "usage: nd <node>")
	assert.Contains(t, srv.dispatch("nu"), "usage: nu <node>")
}

func TestDispatchQuit(t *testing.T) {
	srv, _ := newTestServer(t)
	assert.Contains(t, srv.dispatch("q"), "bye")
}

func TestDispatchUnknown(t *testing.T) {
	srv, _ := newTestServer(t)
	out := srv.dispatch("bogus")
	require.Contains(t, out, "unknown command")
}
