// Package registry holds the process-wide call-id to Session map described
// in spec §5: "the call-id → session registry must expose an atomic rename".
// It is grounded on the teacher's CallMap (cmd/b2bua_radius/call_map.go),
// generalized from sync.Mutex-protected maps of *sippy_types.UA to maps of
// *session.Session, plus a cron-driven replacement for CallMap's manual
// GClector time.Sleep loop and an errgroup-bounded shutdown drain.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/dialplan-gateway/ctrlsession/internal/session"
)

// entry pairs a running session with the context.CancelFunc that stops it.
type entry struct {
	sess   *session.Session
	cancel context.CancelFunc
}

// Registry maps call ids to live Sessions. Rename is atomic with respect to
// lookups: a goroutine calling Rename holds the lock across both the delete
// of the old key and the insert of the new one, so no Lookup can observe
// neither key present.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*entry

	existsGroup singleflight.Group
	sweeper     *cron.Cron
	log         *logrus.Entry
}

func New(log *logrus.Entry) *Registry {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Registry{
		sessions: make(map[string]*entry),
		sweeper:  cron.New(cron.WithSeconds()),
		log:      log,
	}
}

// Put registers a newly started session under callID. cancel stops its
// actor loop; Put takes ownership of calling cancel on Drop/DrainAll.
func (r *Registry) Put(callID string, sess *session.Session, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[callID] = &entry{sess: sess, cancel: cancel}
}

// Lookup returns the session registered for callID, the way CallMap.dc_map
// resolves incoming events to a call controller.
func (r *Registry) Lookup(callID string) (*session.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[callID]
	if !ok {
		return nil, false
	}
	return e.sess, true
}

// Rename moves the entry at oldCallID to newCallID atomically (§5, §9):
// naive delete-then-insert could let an event addressed to newCallID arrive,
// and find nothing, in the gap between the two steps. Holding the write lock
// across both steps closes that gap.
func (r *Registry) Rename(oldCallID, newCallID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[oldCallID]
	if !ok {
		return false
	}
	delete(r.sessions, oldCallID)
	r.sessions[newCallID] = e
	return true
}

// Drop removes and stops the session registered for callID, mirroring
// CallMap.DropCC. It is idempotent.
func (r *Registry) Drop(callID string) {
	r.mu.Lock()
	e, ok := r.sessions[callID]
	if ok {
		delete(r.sessions, callID)
	}
	r.mu.Unlock()
	if ok {
		e.cancel()
	}
}

// BroadcastNodeDown posts a NodeDownEvent for node to every registered
// session, standing in for the fs_nodedown notice a real event socket would
// relay (§4.6). Sessions bound to a different node ignore it.
func (r *Registry) BroadcastNodeDown(node string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.sessions {
		e.sess.Post(session.NodeDownEvent{Node: node})
	}
}

// BroadcastNodeUp posts a NodeUpEvent for node to every registered session,
// standing in for the fs_nodeup notice a real event socket would relay (§4.6).
func (r *Registry) BroadcastNodeUp(node string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.sessions {
		e.sess.Post(session.NodeUpEvent{Node: node})
	}
}

// Len reports the number of live sessions, for CLI/metrics reporting.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CallIDs returns a snapshot of every registered call id, for the admin CLI's
// "l" (list) command.
func (r *Registry) CallIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

// ExistsOnce reports whether a session is registered under callID, collapsing
// concurrent calls for the same call id into a single Lookup. Sessions' own
// sanity checks and node_up recovery query their ChannelRegistry, not this.
func (r *Registry) ExistsOnce(callID string) bool {
	v, _, _ := r.existsGroup.Do(callID, func() (interface{}, error) {
		_, ok := r.Lookup(callID)
		return ok, nil
	})
	return v.(bool)
}

// StartSweep runs fn on every tick of spec (cron syntax, seconds-resolution)
// until ctx is done, replacing CallMap.GClector's bare `for { time.Sleep }`
// loop with a declarative schedule.
func (r *Registry) StartSweep(ctx context.Context, spec string, fn func(ctx context.Context, ids []string)) error {
	_, err := r.sweeper.AddFunc(spec, func() {
		fn(ctx, r.CallIDs())
	})
	if err != nil {
		return err
	}
	r.sweeper.Start()
	go func() {
		<-ctx.Done()
		r.sweeper.Stop()
	}()
	return nil
}

// DrainAll cancels every registered session and waits, bounded by timeout,
// for each one's actor loop to exit — the signal-driven shutdown CallMap
// performs with safeStop/discAll, generalized with an errgroup instead of an
// unbounded WaitGroup so a stuck session can't hang the whole process.
func (r *Registry) DrainAll(ctx context.Context, timeout time.Duration) error {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.sessions))
	for _, e := range r.sessions {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	drainCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	g, gctx := errgroup.WithContext(drainCtx)
	for _, e := range entries {
		e := e
		e.cancel()
		g.Go(func() error {
			select {
			case <-e.sess.Done():
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	return g.Wait()
}
