// Package session sequences pomodoro phases on top of a countdown clock and
// keeps the per-day completion record.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"toolsite/backend/internal/clock"
)

// Options configures an Engine. Location decides which calendar day a
// completion is counted on.
type Options struct {
	Clock             clockwork.Clock
	LongBreakInterval int
	Defaults          Settings
	Location          *time.Location
	PersistTimeout    time.Duration
	Journal           Journal
	Recorder          Recorder
	Logger            *slog.Logger
}

// Engine is the pomodoro state machine. Commands and clock events are
// serialized by mu; clock events reach the engine through the pump goroutine.
type Engine struct {
	opts      Options
	now       clockwork.Clock
	countdown *clock.Clock
	store     Store
	logger    *slog.Logger

	mu             sync.Mutex
	settings       Settings
	configured     bool
	phase          Phase
	state          RunState
	cycle          int
	remaining      int
	deadline       time.Time
	run            uint64
	phaseStartedAt time.Time
	phasePlanned   int
	records        DailyRecord
	failed         map[string]error
	unloaded       map[string]bool
	subscribers    map[int]chan Snapshot
	nextSubscriber int
	closed         bool

	done     chan struct{}
	pumpDone chan struct{}
}

func NewEngine(store Store, opts Options) (*Engine, error) {
	if store == nil {
		return nil, errors.New("session: store is required")
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.LongBreakInterval <= 0 {
		opts.LongBreakInterval = DefaultLongBreakInterval
	}
	if opts.Defaults == (Settings{}) {
		opts.Defaults = DefaultSettings()
	}
	if err := opts.Defaults.Validate(); err != nil {
		return nil, err
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = 5 * time.Second
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	e := &Engine{
		opts:        opts,
		now:         opts.Clock,
		countdown:   clock.New(opts.Clock, time.Second),
		store:       store,
		logger:      opts.Logger,
		settings:    opts.Defaults,
		phase:       PhaseWork,
		state:       StateIdle,
		records:     DailyRecord{},
		failed:      make(map[string]error),
		unloaded:    make(map[string]bool),
		subscribers: make(map[int]chan Snapshot),
		done:        make(chan struct{}),
		pumpDone:    make(chan struct{}),
	}

	e.mu.Lock()
	e.loadLocked(KeySettings)
	e.loadLocked(KeyRecords)
	e.remaining = e.settings.seconds(PhaseWork)
	e.mu.Unlock()

	go e.pump()
	return e, nil
}

// Close stops the countdown, ends every subscription and releases the pump.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.countdown.Stop()
	for id, ch := range e.subscribers {
		close(ch)
		delete(e.subscribers, id)
	}
	e.mu.Unlock()

	close(e.done)
	<-e.pumpDone
}

// Start begins a fresh work phase from idle or resumes a paused phase.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}

	now := e.now.Now()
	switch e.state {
	case StateRunning:
		return fmt.Errorf("%w: start while %s is running", ErrInvalidTransition, e.phase)
	case StatePaused:
		e.runLocked(now)
	default:
		e.beginPhaseLocked(e.phase, now)
	}
	e.publishLocked()
	return nil
}

// Pause freezes the running phase at the last reported remaining time.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.state != StateRunning {
		return fmt.Errorf("%w: pause while %s", ErrInvalidTransition, e.state)
	}

	e.countdown.Stop()
	e.state = StatePaused
	e.deadline = time.Time{}
	e.publishLocked()
	return nil
}

// Reset returns to an idle work phase and clears the cycle counter. The daily
// record is left alone.
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}

	e.countdown.Stop()
	if e.state != StateIdle {
		e.journalLocked(false, e.now.Now())
	}
	e.state = StateIdle
	e.phase = PhaseWork
	e.cycle = 0
	e.deadline = time.Time{}
	e.phaseStartedAt = time.Time{}
	e.remaining = e.settings.seconds(PhaseWork)
	e.publishLocked()
	return nil
}

// Configure replaces the phase durations. A running or paused phase keeps its
// deadline or frozen remaining time; the new values apply from the next phase.
// A persistence failure is returned wrapped in ErrPersistence but the new
// settings stay in effect.
func (e *Engine) Configure(settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}

	e.settings = settings
	e.configured = true
	if e.state == StateIdle {
		e.remaining = settings.seconds(e.phase)
	}
	err := e.persistLocked(KeySettings)
	e.publishLocked()
	return err
}

func (e *Engine) Settings() Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Records lists the daily completion counts oldest first.
func (e *Engine) Records() []DayCount {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.records.clone().Sorted()
}

// ClearRecords drops every daily entry.
func (e *Engine) ClearRecords() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}

	e.records = DailyRecord{}
	delete(e.unloaded, KeyRecords)
	err := e.persistLocked(KeyRecords)
	e.publishLocked()
	return err
}

// PruneRecords drops entries for days before the calendar day of before.
// Records that could not be loaded are read again first; if they still cannot
// be read nothing is pruned and the ErrPersistence is returned.
func (e *Engine) PruneRecords(before time.Time) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, ErrClosed
	}

	if e.unloaded[KeyRecords] {
		e.loadLocked(KeyRecords)
		if e.unloaded[KeyRecords] {
			return 0, e.failed[KeyRecords]
		}
	}

	removed := e.records.prune(DateKey(before.In(e.opts.Location)))
	if removed == 0 && e.failed[KeyRecords] == nil {
		return 0, nil
	}
	err := e.persistLocked(KeyRecords)
	e.publishLocked()
	return removed, err
}

// Subscribe registers an observer. The current snapshot is delivered first;
// later snapshots are dropped for a subscriber whose buffer is full.
func (e *Engine) Subscribe(buffer int) (<-chan Snapshot, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Snapshot, buffer)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		close(ch)
		return ch, func() {}
	}

	id := e.nextSubscriber
	e.nextSubscriber++
	e.subscribers[id] = ch
	ch <- e.snapshotLocked()

	return ch, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if sub, ok := e.subscribers[id]; ok {
			delete(e.subscribers, id)
			close(sub)
		}
	}
}

func (e *Engine) pump() {
	defer close(e.pumpDone)
	for {
		select {
		case <-e.done:
			return
		case event := <-e.countdown.Events():
			e.handleClockEvent(event)
		}
	}
}

func (e *Engine) handleClockEvent(event clock.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.state != StateRunning || event.Run != e.run {
		return
	}

	switch event.Type {
	case clock.EventTick:
		e.remaining = event.Remaining
		e.opts.Recorder.RecordTick()
	case clock.EventComplete:
		e.completePhaseLocked(e.now.Now())
	}
	e.publishLocked()
}

func (e *Engine) completePhaseLocked(now time.Time) {
	finished := e.phase
	e.remaining = 0
	e.journalLocked(true, now)
	e.opts.Recorder.RecordPhaseCompleted(finished)

	next := PhaseWork
	if finished == PhaseWork {
		e.records.increment(DateKey(now.In(e.opts.Location)))
		e.cycle++
		if e.cycle >= e.opts.LongBreakInterval {
			e.cycle = 0
			next = PhaseLongBreak
		} else {
			next = PhaseShortBreak
		}
		// surfaced through Snapshot.PersistError; the countdown carries on
		_ = e.persistLocked(KeyRecords)
	}

	e.beginPhaseLocked(next, now)
}

func (e *Engine) beginPhaseLocked(phase Phase, now time.Time) {
	e.phase = phase
	e.phasePlanned = e.settings.seconds(phase)
	e.phaseStartedAt = now
	e.remaining = e.phasePlanned
	e.runLocked(now)
}

func (e *Engine) runLocked(now time.Time) {
	e.deadline = now.Add(time.Duration(e.remaining) * time.Second)
	e.run = e.countdown.Start(e.deadline)
	e.state = StateRunning
}

func (e *Engine) journalLocked(completed bool, now time.Time) {
	if e.opts.Journal == nil || e.phaseStartedAt.IsZero() {
		return
	}

	actual := e.phasePlanned
	if !completed {
		remaining := e.remaining
		if e.state == StateRunning {
			remaining = clock.Remaining(e.deadline, now)
		}
		actual = e.phasePlanned - remaining
	}
	if actual < 0 {
		actual = 0
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.opts.PersistTimeout)
	defer cancel()
	err := e.opts.Journal.RecordPhase(ctx, PhaseRun{
		Phase:          e.phase,
		PlannedSeconds: e.phasePlanned,
		ActualSeconds:  actual,
		StartedAt:      e.phaseStartedAt,
		EndedAt:        now,
		Completed:      completed,
	})
	if err != nil {
		e.logger.Warn("record phase run", "phase", e.phase, "error", err)
	}
}

func (e *Engine) snapshotLocked() Snapshot {
	snap := Snapshot{
		Phase:             e.phase,
		RunState:          e.state,
		RemainingSeconds:  e.remaining,
		Display:           FormatRemaining(e.remaining),
		Cycle:             e.cycle,
		LongBreakInterval: e.opts.LongBreakInterval,
		Settings:          e.settings,
		Today:             e.records[DateKey(e.now.Now().In(e.opts.Location))],
	}
	if e.state == StateRunning {
		deadline := e.deadline
		snap.Deadline = &deadline
	}
	if len(e.failed) > 0 {
		keys := make([]string, 0, len(e.failed))
		for key := range e.failed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		snap.PersistError = e.failed[keys[0]].Error()
	}
	return snap
}

func (e *Engine) publishLocked() {
	snap := e.snapshotLocked()
	for _, ch := range e.subscribers {
		select {
		case ch <- snap:
		default:
		}
	}
}
