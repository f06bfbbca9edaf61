package liveness

import (
	"sync"
	"time"
)

// typingThrottle rate-limits typing emissions with leading+trailing
// semantics: a trigger outside the cooldown window fires immediately;
// triggers inside it coalesce into exactly one trailing fire when the window
// closes. The first keystroke of a burst is never dropped for longer than
// one window.
type typingThrottle struct {
	mu       sync.Mutex
	interval time.Duration
	emit     func()
	last     time.Time
	timer    *time.Timer
}

func newTypingThrottle(interval time.Duration, emit func()) *typingThrottle {
	return &typingThrottle{interval: interval, emit: emit}
}

// Trigger requests an emission, firing now or scheduling the trailing fire.
func (t *typingThrottle) Trigger() {
	t.mu.Lock()
	now := time.Now()
	elapsed := now.Sub(t.last)
	if t.last.IsZero() || elapsed >= t.interval {
		t.last = now
		t.mu.Unlock()
		t.emit()
		return
	}
	if t.timer == nil {
		t.timer = time.AfterFunc(t.interval-elapsed, t.fireTrailing)
	}
	t.mu.Unlock()
}

func (t *typingThrottle) fireTrailing() {
	t.mu.Lock()
	t.timer = nil
	t.last = time.Now()
	t.mu.Unlock()
	t.emit()
}

// Reset cancels any pending trailing fire and reopens the window so the next
// trigger emits immediately.
func (t *typingThrottle) Reset() {
	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.last = time.Time{}
	t.mu.Unlock()
}
