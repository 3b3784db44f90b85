package model

import "time"

const (
	RunStatusCompleted = "completed"
	RunStatusCancelled = "cancelled"
)

// PhaseRun is one finished pomodoro phase as stored in the history table.
type PhaseRun struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	Phase          string    `json:"phase"`
	PlannedSeconds int       `json:"plannedSeconds"`
	ActualSeconds  int       `json:"actualSeconds"`
	Status         string    `json:"status"`
	StartedAt      time.Time `json:"startedAt"`
	EndedAt        time.Time `json:"endedAt"`
	CreatedAt      time.Time `json:"createdAt"`
}
