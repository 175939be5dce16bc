package session

import (
	"sync/atomic"
	"time"
)

// generationTimer wraps time.AfterFunc with a generation counter so a timer
// that fires concurrently with a Stop/Reset from the mailbox goroutine can be
// recognized as stale and dropped, instead of requiring the "drain a
// possibly-already-delivered expiration message" dance the design notes
// describe (§9 open question): every scheduled firing posts the generation it
// was armed with, and dispatchEvent only acts on it if it still matches.
type generationTimer struct {
	timer *time.Timer
	gen   int64
}

func newGenerationTimer() *generationTimer {
	return &generationTimer{}
}

func (t *generationTimer) generation() int {
	return int(atomic.LoadInt64(&t.gen))
}

// arm schedules fire to run after d, tagged with the new current generation,
// stopping whatever was previously scheduled.
func (t *generationTimer) arm(d time.Duration, fire func(generation int)) {
	t.stop()
	gen := int(atomic.AddInt64(&t.gen, 1))
	t.timer = time.AfterFunc(d, func() { fire(gen) })
}

// stop cancels any pending firing and bumps the generation so a firing that
// raced the cancellation is ignored when it is eventually processed.
func (t *generationTimer) stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
	atomic.AddInt64(&t.gen, 1)
}

func (s *Session) stopAllTimers() {
	for _, t := range []*generationTimer{s.nodeDownTimer, s.keepAliveTimer, s.sanityTimer, s.nodeUpVerifyTimer} {
		if t != nil {
			t.stop()
		}
	}
}

func (s *Session) armNodeDownTimer() {
	if s.nodeDownTimer == nil {
		s.nodeDownTimer = newGenerationTimer()
	}
	s.nodeDownTimer.arm(s.cfg.NodeDownTimeout, func(gen int) {
		s.Post(NodeDownTimerExpiredEvent{Generation: gen})
	})
}

func (s *Session) armKeepAliveTimer() {
	if s.keepAliveTimer == nil {
		s.keepAliveTimer = newGenerationTimer()
	}
	s.keepAliveTimer.arm(s.cfg.PostHangupKeepAlive, func(gen int) {
		s.Post(KeepAliveExpiredEvent{Generation: gen})
	})
}

func (s *Session) armSanityCheckTimer() {
	if s.sanityTimer == nil {
		s.sanityTimer = newGenerationTimer()
	}
	s.sanityTimer.arm(s.cfg.SanityCheckPeriod, func(gen int) {
		s.Post(SanityCheckEvent{Generation: gen})
	})
}
