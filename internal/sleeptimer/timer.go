// Package sleeptimer schedules a one-shot force-pause at a wall-clock time.
package sleeptimer

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Clock abstracts time.Now for tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Timer counts down to a target wall-clock time and fires a callback once
// when it elapses. Only one countdown is active at a time; starting a new
// one cancels any prior.
type Timer struct {
	mu        sync.Mutex
	log       *zap.Logger
	clock     Clock
	interval  time.Duration
	onExpire  func()
	remaining time.Duration
	cancel    chan struct{}
}

// Option tweaks a Timer, used by tests to speed up the tick cadence.
type Option func(*Timer)

// WithClock substitutes the wall clock.
func WithClock(c Clock) Option {
	return func(t *Timer) { t.clock = c }
}

// WithInterval changes the tick cadence from the default one second.
func WithInterval(d time.Duration) Option {
	return func(t *Timer) { t.interval = d }
}

// New creates an idle timer that calls onExpire when a countdown elapses.
func New(log *zap.Logger, onExpire func(), opts ...Option) *Timer {
	t := &Timer{
		log:      log,
		clock:    systemClock{},
		interval: time.Second,
		onExpire: onExpire,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NextOccurrence returns the next future wall-clock occurrence of hh:mm. A
// target at or before now rolls over to tomorrow.
func NextOccurrence(now time.Time, hour, minute int) time.Time {
	target := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !target.After(now) {
		target = target.AddDate(0, 0, 1)
	}
	return target
}

// ParseTarget parses a "hh:mm" string.
func ParseTarget(s string) (hour, minute int, err error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, want hh:mm", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}

// Start begins a countdown to the next occurrence of target ("hh:mm"),
// cancelling any countdown already running.
func (t *Timer) Start(target string) error {
	hour, minute, err := ParseTarget(target)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()

	now := t.clock.Now()
	deadline := NextOccurrence(now, hour, minute)
	t.remaining = deadline.Sub(now)
	cancel := make(chan struct{})
	t.cancel = cancel
	t.log.Info("sleep timer armed",
		zap.String("target", target),
		zap.Duration("remaining", t.remaining),
	)

	go t.run(cancel)
	return nil
}

// run decrements by one interval per tick so the countdown display moves in
// even steps regardless of scheduler jitter.
func (t *Timer) run(cancel chan struct{}) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-cancel:
			return
		case <-ticker.C:
			t.mu.Lock()
			if t.cancel != cancel {
				t.mu.Unlock()
				return
			}
			t.remaining -= t.interval
			if t.remaining > 0 {
				t.mu.Unlock()
				continue
			}
			t.remaining = 0
			t.cancel = nil
			fire := t.onExpire
			t.mu.Unlock()
			t.log.Info("sleep timer elapsed")
			if fire != nil {
				fire()
			}
			return
		}
	}
}

// Cancel stops any active countdown and resets the remaining time.
func (t *Timer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
}

func (t *Timer) cancelLocked() {
	if t.cancel != nil {
		close(t.cancel)
		t.cancel = nil
	}
	t.remaining = 0
}

// Active reports whether a countdown is running.
func (t *Timer) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}

// Remaining returns the time left on the active countdown, zero when idle.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}
