// Package clock runs a countdown toward an absolute deadline on its own
// goroutine and reports progress over a channel.
package clock

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const DefaultInterval = time.Second

type EventType string

const (
	EventTick     EventType = "tick"
	EventComplete EventType = "complete"
)

// Event is emitted by a running countdown. Run identifies the Start call that
// produced it so consumers can drop events from a run they already stopped.
type Event struct {
	Run       uint64
	Type      EventType
	Remaining int
}

// Clock owns at most one tick loop at a time.
type Clock struct {
	clock    clockwork.Clock
	interval time.Duration
	events   chan Event

	mu     sync.Mutex
	run    uint64
	stopCh chan struct{}
	doneCh chan struct{}
}

func New(c clockwork.Clock, interval time.Duration) *Clock {
	if c == nil {
		c = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Clock{
		clock:    c,
		interval: interval,
		events:   make(chan Event),
	}
}

// Events returns the channel tick and complete events are delivered on.
// It is never closed.
func (c *Clock) Events() <-chan Event {
	return c.events
}

// Start cancels any running loop and begins counting down toward deadline.
// It returns the run id stamped on every event of the new loop.
func (c *Clock) Start(deadline time.Time) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()

	c.run++
	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	c.stopCh = stopCh
	c.doneCh = doneCh

	ticker := c.clock.NewTicker(c.interval)
	go c.loop(c.run, deadline, ticker, stopCh, doneCh)
	return c.run
}

// Stop cancels the running loop and waits for it to exit. Once Stop returns
// no further event of the cancelled run is sent.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// Running reports whether a loop is still counting down.
func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.doneCh == nil {
		return false
	}
	select {
	case <-c.doneCh:
		return false
	default:
		return true
	}
}

func (c *Clock) stopLocked() {
	if c.stopCh == nil {
		return
	}
	close(c.stopCh)
	<-c.doneCh
	c.stopCh = nil
	c.doneCh = nil
}

func (c *Clock) loop(run uint64, deadline time.Time, ticker clockwork.Ticker, stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.Chan():
			remaining := Remaining(deadline, c.clock.Now())
			if !c.send(stopCh, Event{Run: run, Type: EventTick, Remaining: remaining}) {
				return
			}
			if remaining == 0 {
				c.send(stopCh, Event{Run: run, Type: EventComplete})
				return
			}
		}
	}
}

func (c *Clock) send(stopCh <-chan struct{}, event Event) bool {
	select {
	case c.events <- event:
		return true
	case <-stopCh:
		return false
	}
}

// Remaining returns the whole seconds left until deadline, never negative.
// It is recomputed from the deadline on every tick so late or skipped ticks
// do not accumulate drift.
func Remaining(deadline, now time.Time) int {
	left := deadline.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(left / time.Second)
}
