package clock

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nextEvent(t *testing.T, c *Clock) Event {
	t.Helper()
	select {
	case event := <-c.Events():
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for clock event")
		return Event{}
	}
}

func expectNoEvent(t *testing.T, c *Clock) {
	t.Helper()
	select {
	case event := <-c.Events():
		t.Fatalf("unexpected event after stop: %+v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRemaining(t *testing.T) {
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	cases := []struct {
		name     string
		deadline time.Time
		want     int
	}{
		{"future whole seconds", now.Add(90 * time.Second), 90},
		{"partial second floors", now.Add(2900 * time.Millisecond), 2},
		{"exactly now", now, 0},
		{"past deadline", now.Add(-time.Minute), 0},
		{"sub second", now.Add(400 * time.Millisecond), 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Remaining(tc.deadline, now))
		})
	}
}

func TestClockTicksThenCompletes(t *testing.T) {
	fc := clockwork.NewFakeClock()
	c := New(fc, time.Second)

	run := c.Start(fc.Now().Add(3 * time.Second))
	for _, want := range []int{2, 1, 0} {
		fc.Advance(time.Second)
		event := nextEvent(t, c)
		require.Equal(t, EventTick, event.Type)
		require.Equal(t, want, event.Remaining)
		require.Equal(t, run, event.Run)
	}

	event := nextEvent(t, c)
	require.Equal(t, EventComplete, event.Type)
	require.Equal(t, run, event.Run)

	fc.Advance(time.Second)
	expectNoEvent(t, c)
	require.Eventually(t, func() bool { return !c.Running() }, time.Second, time.Millisecond)
}

func TestClockFastForwardCompletesOnce(t *testing.T) {
	fc := clockwork.NewFakeClock()
	c := New(fc, time.Second)

	c.Start(fc.Now().Add(25 * time.Minute))
	fc.Advance(25 * time.Minute)

	event := nextEvent(t, c)
	require.Equal(t, EventTick, event.Type)
	require.Equal(t, 0, event.Remaining)
	require.Equal(t, EventComplete, nextEvent(t, c).Type)

	fc.Advance(time.Minute)
	expectNoEvent(t, c)
}

func TestClockPastDeadlineCompletesOnFirstTick(t *testing.T) {
	fc := clockwork.NewFakeClock()
	c := New(fc, 0)

	c.Start(fc.Now().Add(-time.Hour))
	fc.Advance(DefaultInterval)

	event := nextEvent(t, c)
	assert.Equal(t, EventTick, event.Type)
	assert.Equal(t, 0, event.Remaining)
	assert.Equal(t, EventComplete, nextEvent(t, c).Type)
}

func TestClockRestartUsesLatestDeadline(t *testing.T) {
	fc := clockwork.NewFakeClock()
	c := New(fc, time.Second)

	first := c.Start(fc.Now().Add(10 * time.Second))
	second := c.Start(fc.Now().Add(2 * time.Second))
	require.NotEqual(t, first, second)

	fc.Advance(time.Second)
	event := nextEvent(t, c)
	require.Equal(t, second, event.Run)
	require.Equal(t, 1, event.Remaining)

	fc.Advance(time.Second)
	require.Equal(t, 0, nextEvent(t, c).Remaining)
	complete := nextEvent(t, c)
	require.Equal(t, EventComplete, complete.Type)
	require.Equal(t, second, complete.Run)
}

func TestClockStopIsImmediateAndIdempotent(t *testing.T) {
	fc := clockwork.NewFakeClock()
	c := New(fc, time.Second)

	c.Stop()
	assert.False(t, c.Running())

	c.Start(fc.Now().Add(5 * time.Second))
	assert.True(t, c.Running())
	fc.Advance(time.Second)
	require.Equal(t, 4, nextEvent(t, c).Remaining)

	fc.Advance(time.Second)
	c.Stop()
	c.Stop()
	assert.False(t, c.Running())

	fc.Advance(10 * time.Second)
	expectNoEvent(t, c)
}
