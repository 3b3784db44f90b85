package session

import (
	"errors"
	"fmt"
	"time"
)

type Phase string

const (
	PhaseWork       Phase = "work"
	PhaseShortBreak Phase = "short_break"
	PhaseLongBreak  Phase = "long_break"
)

func (p Phase) Valid() bool {
	return p == PhaseWork || p == PhaseShortBreak || p == PhaseLongBreak
}

type RunState string

const (
	StateIdle    RunState = "idle"
	StateRunning RunState = "running"
	StatePaused  RunState = "paused"
)

const (
	DefaultWorkMinutes       = 25
	DefaultShortBreakMinutes = 5
	DefaultLongBreakMinutes  = 15
	DefaultLongBreakInterval = 4
)

var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrInvalidSettings   = errors.New("invalid settings")
	ErrPersistence       = errors.New("persistence failure")
	ErrClosed            = errors.New("engine closed")
)

// Settings holds phase durations in whole minutes.
type Settings struct {
	WorkMinutes       int `json:"workDuration" yaml:"work_minutes"`
	ShortBreakMinutes int `json:"shortBreakDuration" yaml:"short_break_minutes"`
	LongBreakMinutes  int `json:"longBreakDuration" yaml:"long_break_minutes"`
}

func DefaultSettings() Settings {
	return Settings{
		WorkMinutes:       DefaultWorkMinutes,
		ShortBreakMinutes: DefaultShortBreakMinutes,
		LongBreakMinutes:  DefaultLongBreakMinutes,
	}
}

func (s Settings) Validate() error {
	if s.WorkMinutes <= 0 || s.ShortBreakMinutes <= 0 || s.LongBreakMinutes <= 0 {
		return fmt.Errorf("%w: durations must be positive minutes, got %d/%d/%d",
			ErrInvalidSettings, s.WorkMinutes, s.ShortBreakMinutes, s.LongBreakMinutes)
	}
	return nil
}

// Duration returns the configured length of phase.
func (s Settings) Duration(phase Phase) time.Duration {
	switch phase {
	case PhaseShortBreak:
		return time.Duration(s.ShortBreakMinutes) * time.Minute
	case PhaseLongBreak:
		return time.Duration(s.LongBreakMinutes) * time.Minute
	default:
		return time.Duration(s.WorkMinutes) * time.Minute
	}
}

func (s Settings) seconds(phase Phase) int {
	return int(s.Duration(phase) / time.Second)
}

// Snapshot is what observers receive on every tick and transition.
type Snapshot struct {
	Phase             Phase      `json:"phase"`
	RunState          RunState   `json:"runState"`
	RemainingSeconds  int        `json:"remainingSeconds"`
	Display           string     `json:"display"`
	Cycle             int        `json:"cycle"`
	LongBreakInterval int        `json:"longBreakInterval"`
	Deadline          *time.Time `json:"deadline,omitempty"`
	Settings          Settings   `json:"settings"`
	Today             int        `json:"today"`
	PersistError      string     `json:"persistError,omitempty"`
}

// PhaseRun describes a phase that ended, either by running out or by reset.
type PhaseRun struct {
	Phase          Phase
	PlannedSeconds int
	ActualSeconds  int
	StartedAt      time.Time
	EndedAt        time.Time
	Completed      bool
}

// FormatRemaining renders seconds as MM:SS.
func FormatRemaining(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
