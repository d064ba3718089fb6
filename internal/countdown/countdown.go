// Package countdown implements the per-session step timer. A session
// owns exactly one Timer; starting it again discards whatever countdown
// was in flight and begins a fresh one.
package countdown

import (
	"sync"
	"time"

	"github.com/mirepoix/souschef/internal/domain"
	"github.com/mirepoix/souschef/internal/logger"
)

// Option configures the timer.
type Option func(*Timer)

// WithInterval sets the tick interval. The default is one second;
// tests shrink it to keep countdowns fast.
func WithInterval(d time.Duration) Option {
	return func(t *Timer) {
		t.interval = d
	}
}

// WithOnTick registers a callback invoked after every decrement with a
// copy of the timer state. Invoked from the timer goroutine.
func WithOnTick(fn func(domain.TimerState)) Option {
	return func(t *Timer) {
		t.onTick = fn
	}
}

// WithOnComplete registers a callback invoked exactly once when the
// countdown reaches zero. Invoked from the timer goroutine. It never
// fires for countdowns cut short by Stop or superseded by Start.
func WithOnComplete(fn func()) Option {
	return func(t *Timer) {
		t.onComplete = fn
	}
}

// Timer counts a duration down to zero in the background. All methods
// are safe for concurrent use. Pausing freezes the remaining time;
// resuming continues from where it stopped. Reset restarts the full
// original duration.
type Timer struct {
	log      *logger.Logger
	interval time.Duration

	onTick     func(domain.TimerState)
	onComplete func()

	mu         sync.Mutex
	duration   int // seconds the current countdown started from
	remaining  int
	running    bool
	paused     bool
	generation int // invalidates goroutines from superseded countdowns
	stop       chan struct{}
}

// New creates a stopped timer.
func New(log *logger.Logger, opts ...Option) *Timer {
	t := &Timer{
		log:      log,
		interval: 1 * time.Second,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start begins a countdown of the given number of seconds, replacing
// any countdown already in flight. Non-positive durations are ignored.
func (t *Timer) Start(seconds int) {
	if seconds <= 0 {
		return
	}

	t.mu.Lock()
	t.abortLocked()

	t.duration = seconds
	t.remaining = seconds
	t.running = true
	t.paused = false
	t.generation++
	t.stop = make(chan struct{})

	gen := t.generation
	stop := t.stop
	t.mu.Unlock()

	t.log.Debug("countdown started: %ds", seconds)
	go t.loop(gen, stop)
}

// Pause freezes the countdown. No-op when the timer is not running.
func (t *Timer) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running || t.paused {
		return
	}
	t.paused = true
	t.log.Debug("countdown paused at %ds", t.remaining)
}

// Resume continues a paused countdown from its frozen remaining time.
func (t *Timer) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running || !t.paused {
		return
	}
	t.paused = false
	t.log.Debug("countdown resumed at %ds", t.remaining)
}

// Reset restarts the countdown from its full original duration. A
// paused timer resumes running. No-op if the timer never started.
func (t *Timer) Reset() {
	t.mu.Lock()
	duration := t.duration
	t.mu.Unlock()
	if duration <= 0 {
		return
	}
	t.Start(duration)
}

// Stop cancels the countdown without firing the completion callback.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.abortLocked()
}

// Remaining returns the seconds left on the countdown, 0 when stopped.
func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// Snapshot returns a copy of the current timer state.
func (t *Timer) Snapshot() domain.TimerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return domain.TimerState{
		RemainingSeconds: t.remaining,
		IsRunning:        t.running,
		IsPaused:         t.paused,
	}
}

// abortLocked invalidates the active goroutine. Caller holds t.mu.
func (t *Timer) abortLocked() {
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
	t.generation++
	t.running = false
	t.paused = false
}

// loop is the countdown goroutine. It exits when the countdown
// finishes, is stopped, or is superseded by a newer Start.
func (t *Timer) loop(gen int, stop chan struct{}) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			done, state := t.step(gen)
			if state == nil {
				return // superseded
			}
			if t.onTick != nil {
				t.onTick(*state)
			}
			if done {
				t.log.Debug("countdown fired")
				if t.onComplete != nil {
					t.onComplete()
				}
				return
			}
		}
	}
}

// step applies one tick. Returns done=true when the countdown just
// reached zero, and nil state when this goroutine has been superseded.
func (t *Timer) step(gen int) (bool, *domain.TimerState) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.generation || !t.running {
		return false, nil
	}
	if t.paused {
		state := domain.TimerState{RemainingSeconds: t.remaining, IsRunning: true, IsPaused: true}
		return false, &state
	}

	t.remaining--
	if t.remaining <= 0 {
		t.remaining = 0
		t.running = false
		state := domain.TimerState{}
		return true, &state
	}

	state := domain.TimerState{RemainingSeconds: t.remaining, IsRunning: true}
	return false, &state
}
