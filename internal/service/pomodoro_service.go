package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "toolsite/backend/internal/errors"
	"toolsite/backend/internal/metrics"
	"toolsite/backend/internal/model"
	"toolsite/backend/internal/repository"
	"toolsite/backend/internal/session"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// PomodoroService owns one session engine per user. Engines are created on
// first use and live until Close.
type PomodoroService struct {
	kv        *repository.KVRepository
	runs      *repository.PhaseRunRepository
	collector *metrics.Collector
	options   session.Options
	logger    *slog.Logger

	mu      sync.Mutex
	engines map[string]*session.Engine
	closed  bool
}

type StateView struct {
	session.Snapshot
	ServerTime time.Time `json:"serverTime"`
}

// NewPomodoroService builds engines from options. Journal and Recorder are
// set per engine; collector may be nil.
func NewPomodoroService(
	kv *repository.KVRepository,
	runs *repository.PhaseRunRepository,
	collector *metrics.Collector,
	options session.Options,
) *PomodoroService {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PomodoroService{
		kv:        kv,
		runs:      runs,
		collector: collector,
		options:   options,
		logger:    logger,
		engines:   make(map[string]*session.Engine),
	}
}

func (s *PomodoroService) GetState(_ context.Context, userID string) (*StateView, *apperrors.APIError) {
	engine, apiErr := s.engine(userID)
	if apiErr != nil {
		return nil, apiErr
	}
	return NewStateView(engine.Snapshot()), nil
}

func (s *PomodoroService) Start(_ context.Context, userID string) (*StateView, *apperrors.APIError) {
	return s.command(userID, (*session.Engine).Start)
}

func (s *PomodoroService) Pause(_ context.Context, userID string) (*StateView, *apperrors.APIError) {
	return s.command(userID, (*session.Engine).Pause)
}

func (s *PomodoroService) Reset(_ context.Context, userID string) (*StateView, *apperrors.APIError) {
	return s.command(userID, (*session.Engine).Reset)
}

func (s *PomodoroService) UpdateSettings(_ context.Context, userID string, settings session.Settings) (*StateView, *apperrors.APIError) {
	return s.command(userID, func(e *session.Engine) error {
		return e.Configure(settings)
	})
}

func (s *PomodoroService) GetRecords(_ context.Context, userID string) ([]session.DayCount, *apperrors.APIError) {
	engine, apiErr := s.engine(userID)
	if apiErr != nil {
		return nil, apiErr
	}
	return engine.Records(), nil
}

func (s *PomodoroService) ClearRecords(_ context.Context, userID string) (*StateView, *apperrors.APIError) {
	return s.command(userID, (*session.Engine).ClearRecords)
}

func (s *PomodoroService) GetHistory(ctx context.Context, userID string, limit int) ([]model.PhaseRun, *apperrors.APIError) {
	if userID == "" {
		return nil, apperrors.Unauthorized("unauthorized")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	runs, err := s.runs.List(ctx, userID, limit)
	if err != nil {
		return nil, apperrors.Internal("failed to list history")
	}
	return runs, nil
}

// Subscribe streams the user's snapshots until cancel is called or the
// service closes.
func (s *PomodoroService) Subscribe(userID string, buffer int) (<-chan session.Snapshot, func(), *apperrors.APIError) {
	engine, apiErr := s.engine(userID)
	if apiErr != nil {
		return nil, nil, apiErr
	}
	updates, cancel := engine.Subscribe(buffer)
	return updates, cancel, nil
}

// PruneRecords drops daily counts older than before for every user with
// stored records. Users without a live engine are loaded for the duration of
// the prune.
func (s *PomodoroService) PruneRecords(ctx context.Context, before time.Time) (int, error) {
	stored, err := s.kv.UsersWithKey(ctx, session.KeyRecords)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, session.ErrClosed
	}

	users := make(map[string]struct{}, len(stored)+len(s.engines))
	for _, userID := range stored {
		users[userID] = struct{}{}
	}
	for userID := range s.engines {
		users[userID] = struct{}{}
	}
	ordered := make([]string, 0, len(users))
	for userID := range users {
		ordered = append(ordered, userID)
	}
	sort.Strings(ordered)

	total := 0
	var errs []error
	for _, userID := range ordered {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		engine, live := s.engines[userID]
		if !live {
			engine, err = session.NewEngine(s.kv.ForUser(userID), s.engineOptions(userID))
			if err != nil {
				errs = append(errs, fmt.Errorf("user %s: %w", userID, err))
				continue
			}
		}
		removed, err := engine.PruneRecords(before)
		if !live {
			engine.Close()
		}
		total += removed
		if err != nil {
			errs = append(errs, fmt.Errorf("user %s: %w", userID, err))
		}
	}
	return total, errors.Join(errs...)
}

// Close stops every engine. Later calls fail with 503.
func (s *PomodoroService) Close() {
	s.mu.Lock()
	engines := s.engines
	s.engines = make(map[string]*session.Engine)
	s.closed = true
	s.mu.Unlock()

	for _, engine := range engines {
		engine.Close()
	}
	if s.collector != nil {
		s.collector.SetActiveEngines(0)
	}
}

func (s *PomodoroService) command(userID string, fn func(*session.Engine) error) (*StateView, *apperrors.APIError) {
	engine, apiErr := s.engine(userID)
	if apiErr != nil {
		return nil, apiErr
	}
	if err := fn(engine); err != nil {
		mapped := toAPIError(err)
		if errors.Is(err, session.ErrPersistence) {
			mapped.Details = map[string]interface{}{"state": NewStateView(engine.Snapshot())}
		}
		return nil, mapped
	}
	return NewStateView(engine.Snapshot()), nil
}

func (s *PomodoroService) engine(userID string) (*session.Engine, *apperrors.APIError) {
	if userID == "" {
		return nil, apperrors.Unauthorized("unauthorized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, apperrors.ServiceUnavailable("pomodoro service is shutting down")
	}
	if engine, ok := s.engines[userID]; ok {
		return engine, nil
	}

	engine, err := session.NewEngine(s.kv.ForUser(userID), s.engineOptions(userID))
	if err != nil {
		s.logger.Error("create pomodoro engine", "user", userID, "error", err)
		return nil, apperrors.Internal("failed to load pomodoro state")
	}
	s.engines[userID] = engine
	if s.collector != nil {
		s.collector.SetActiveEngines(len(s.engines))
	}
	return engine, nil
}

func (s *PomodoroService) engineOptions(userID string) session.Options {
	opts := s.options
	opts.Logger = s.logger.With("user", userID)
	opts.Journal = phaseJournal{runs: s.runs, userID: userID}
	if s.collector != nil {
		opts.Recorder = s.collector
	}
	return opts
}

// NewStateView stamps a snapshot with the server's current time.
func NewStateView(snapshot session.Snapshot) *StateView {
	return &StateView{Snapshot: snapshot, ServerTime: time.Now().UTC()}
}

func toAPIError(err error) *apperrors.APIError {
	switch {
	case errors.Is(err, session.ErrInvalidTransition):
		return apperrors.Conflict("invalid_transition", err.Error(), nil)
	case errors.Is(err, session.ErrInvalidSettings):
		return apperrors.BadRequest("invalid_settings", err.Error())
	case errors.Is(err, session.ErrPersistence):
		return apperrors.New(http.StatusInternalServerError, "persistence_error", err.Error())
	case errors.Is(err, session.ErrClosed):
		return apperrors.ServiceUnavailable("pomodoro service is shutting down")
	default:
		return apperrors.Internal("")
	}
}

type phaseJournal struct {
	runs   *repository.PhaseRunRepository
	userID string
}

func (j phaseJournal) RecordPhase(ctx context.Context, run session.PhaseRun) error {
	status := model.RunStatusCancelled
	if run.Completed {
		status = model.RunStatusCompleted
	}
	return j.runs.Insert(ctx, &model.PhaseRun{
		ID:             uuid.NewString(),
		UserID:         j.userID,
		Phase:          string(run.Phase),
		PlannedSeconds: run.PlannedSeconds,
		ActualSeconds:  run.ActualSeconds,
		Status:         status,
		StartedAt:      run.StartedAt,
		EndedAt:        run.EndedAt,
		CreatedAt:      time.Now().UTC(),
	})
}
