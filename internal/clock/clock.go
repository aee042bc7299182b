package clock

import (
	"sort"
	"sync"
	"time"
)

// Timer is a cancellable one-shot deferred action
type Timer interface {
	// Stop cancels the timer. It returns false if the timer already fired or was stopped.
	Stop() bool
}

// Clock abstracts wall time and deferred actions so session and throttle state
// can be driven deterministically in tests
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// System returns the process clock backed by the time package
func System() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Manual is a Clock that only moves when told to. Timers fire synchronously
// from Advance/Set on the calling goroutine, in deadline order.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*manualTimer
}

// NewManual creates a manual clock starting at start
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	t := &manualTimer{clock: m, deadline: m.now.Add(d), fn: f, seq: m.seq}
	m.timers = append(m.timers, t)
	return t
}

// Advance moves the clock forward by d and fires every timer that came due
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()
	m.Set(target)
}

// Set moves the clock to t. Timers scheduled by fired callbacks also fire if due.
func (m *Manual) Set(t time.Time) {
	for {
		m.mu.Lock()
		due := m.nextDue(t)
		if due == nil {
			if t.After(m.now) {
				m.now = t
			}
			m.mu.Unlock()
			return
		}
		if due.deadline.After(m.now) {
			m.now = due.deadline
		}
		m.remove(due)
		m.mu.Unlock()

		due.fn()
	}
}

// Jump moves the clock forward by d without firing any timer. It models a suspended
// process whose timers did not run while it was in the background.
func (m *Manual) Jump(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// PendingTimers returns the number of armed timers
func (m *Manual) PendingTimers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

func (m *Manual) nextDue(limit time.Time) *manualTimer {
	if len(m.timers) == 0 {
		return nil
	}
	sort.SliceStable(m.timers, func(i, j int) bool {
		if m.timers[i].deadline.Equal(m.timers[j].deadline) {
			return m.timers[i].seq < m.timers[j].seq
		}
		return m.timers[i].deadline.Before(m.timers[j].deadline)
	})
	first := m.timers[0]
	if first.deadline.After(limit) {
		return nil
	}
	return first
}

func (m *Manual) remove(t *manualTimer) bool {
	for i, candidate := range m.timers {
		if candidate == t {
			m.timers = append(m.timers[:i], m.timers[i+1:]...)
			return true
		}
	}
	return false
}

type manualTimer struct {
	clock    *Manual
	deadline time.Time
	fn       func()
	seq      int
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	return t.clock.remove(t)
}
