package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManual_FiresDueTimersInOrder(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewManual(start)

	var fired []string
	m.AfterFunc(3*time.Second, func() { fired = append(fired, "c") })
	m.AfterFunc(time.Second, func() { fired = append(fired, "a") })
	m.AfterFunc(2*time.Second, func() { fired = append(fired, "b") })

	m.Advance(2 * time.Second)
	assert.Equal(t, []string{"a", "b"}, fired)
	assert.Equal(t, 1, m.PendingTimers())
	assert.Equal(t, start.Add(2*time.Second), m.Now())

	m.Advance(time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, fired)
}

func TestManual_CallbackSeesDeadlineAndCanRearm(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewManual(start)

	var seen []time.Time
	var rearm func()
	rearm = func() {
		seen = append(seen, m.Now())
		if len(seen) < 3 {
			m.AfterFunc(time.Second, rearm)
		}
	}
	m.AfterFunc(time.Second, rearm)

	m.Advance(10 * time.Second)
	assert.Equal(t, []time.Time{
		start.Add(time.Second),
		start.Add(2 * time.Second),
		start.Add(3 * time.Second),
	}, seen)
	assert.Equal(t, start.Add(10*time.Second), m.Now())
}

func TestManual_StopAndJump(t *testing.T) {
	m := NewManual(time.Unix(0, 0))

	fired := false
	timer := m.AfterFunc(time.Second, func() { fired = true })
	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())

	m.AfterFunc(time.Second, func() { fired = true })
	m.Jump(time.Minute)
	assert.False(t, fired, "Jump must not run timers")
	assert.Equal(t, 1, m.PendingTimers())
}

func TestSystem_AfterFunc(t *testing.T) {
	done := make(chan struct{})
	System().AfterFunc(time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("system timer did not fire")
	}
}
