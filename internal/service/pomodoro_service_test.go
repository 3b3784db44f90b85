package service_test

import (
	"context"
	"database/sql"
	"net/http"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toolsite/backend/internal/db"
	"toolsite/backend/internal/metrics"
	"toolsite/backend/internal/model"
	"toolsite/backend/internal/repository"
	"toolsite/backend/internal/service"
	"toolsite/backend/internal/session"
)

var testNow = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

type fixture struct {
	db        *sql.DB
	kv        *repository.KVRepository
	runs      *repository.PhaseRunRepository
	collector *metrics.Collector
	clock     *clockwork.FakeClock
	service   *service.PomodoroService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	database, err := db.OpenSQLite(filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	_, currentFile, _, _ := runtime.Caller(0)
	require.NoError(t, db.RunMigrations(database, filepath.Join(filepath.Dir(currentFile), "..", "..", "migrations")))

	f := &fixture{
		db:        database,
		kv:        repository.NewKVRepository(database),
		runs:      repository.NewPhaseRunRepository(database),
		collector: metrics.NewCollector(),
		clock:     clockwork.NewFakeClockAt(testNow),
	}
	f.service = service.NewPomodoroService(f.kv, f.runs, f.collector, session.Options{
		Clock:    f.clock,
		Location: time.UTC,
	})
	t.Cleanup(f.service.Close)
	return f
}

func (f *fixture) user(t *testing.T, id string) string {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, repository.NewUserRepository(f.db).Create(context.Background(), &model.User{
		ID:           id,
		Email:        id + "@example.com",
		PasswordHash: "x",
		CreatedAt:    now,
		UpdatedAt:    now,
	}))
	return id
}

func activeEngines(t *testing.T, collector *metrics.Collector) float64 {
	t.Helper()
	families, err := collector.Registry().Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() == "pomodoro_active_engines" {
			return family.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatal("pomodoro_active_engines not registered")
	return 0
}

func TestCommandsMapEngineErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.user(t, "u1")

	state, apiErr := f.service.Start(ctx, userID)
	require.Nil(t, apiErr)
	assert.Equal(t, session.StateRunning, state.RunState)
	assert.Equal(t, "25:00", state.Display)

	_, apiErr = f.service.Start(ctx, userID)
	require.NotNil(t, apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "invalid_transition", apiErr.Code)

	state, apiErr = f.service.Pause(ctx, userID)
	require.Nil(t, apiErr)
	assert.Equal(t, session.StatePaused, state.RunState)

	_, apiErr = f.service.Pause(ctx, userID)
	require.NotNil(t, apiErr)
	assert.Equal(t, "invalid_transition", apiErr.Code)

	_, apiErr = f.service.UpdateSettings(ctx, userID, session.Settings{WorkMinutes: 0, ShortBreakMinutes: 5, LongBreakMinutes: 15})
	require.NotNil(t, apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "invalid_settings", apiErr.Code)
}

func TestResetJournalsCancelledPhase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.user(t, "u1")

	_, apiErr := f.service.Start(ctx, userID)
	require.Nil(t, apiErr)
	f.clock.Advance(10 * time.Minute)
	state, apiErr := f.service.Reset(ctx, userID)
	require.Nil(t, apiErr)
	assert.Equal(t, session.StateIdle, state.RunState)
	assert.Equal(t, 0, state.Cycle)

	history, apiErr := f.service.GetHistory(ctx, userID, 0)
	require.Nil(t, apiErr)
	require.Len(t, history, 1)
	assert.Equal(t, model.RunStatusCancelled, history[0].Status)
	assert.Equal(t, string(session.PhaseWork), history[0].Phase)
	assert.Equal(t, 1500, history[0].PlannedSeconds)
}

func TestSettingsSurviveServiceRestart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.user(t, "u1")
	other := f.user(t, "u2")

	settings := session.Settings{WorkMinutes: 50, ShortBreakMinutes: 10, LongBreakMinutes: 20}
	_, apiErr := f.service.UpdateSettings(ctx, userID, settings)
	require.Nil(t, apiErr)
	assert.Equal(t, 1.0, activeEngines(t, f.collector))
	f.service.Close()

	_, apiErr = f.service.GetState(ctx, userID)
	require.NotNil(t, apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)

	restarted := service.NewPomodoroService(f.kv, f.runs, nil, session.Options{Clock: f.clock, Location: time.UTC})
	defer restarted.Close()

	state, apiErr := restarted.GetState(ctx, userID)
	require.Nil(t, apiErr)
	assert.Equal(t, settings, state.Settings)
	assert.Equal(t, "50:00", state.Display)

	state, apiErr = restarted.GetState(ctx, other)
	require.Nil(t, apiErr)
	assert.Equal(t, session.DefaultSettings(), state.Settings)
}

func TestPruneRecordsCoversOfflineUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	online := f.user(t, "online")
	offline := f.user(t, "offline")

	require.NoError(t, f.kv.Put(ctx, offline, session.KeyRecords, []byte(`{"2026-01-05":3,"2026-10-18":2}`)))
	require.NoError(t, f.kv.Put(ctx, online, session.KeyRecords, []byte(`{"2025-12-31":1,"2026-10-19":4}`)))
	_, apiErr := f.service.GetState(ctx, online)
	require.Nil(t, apiErr)

	removed, err := f.service.PruneRecords(ctx, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	raw, err := f.kv.Get(ctx, offline, session.KeyRecords)
	require.NoError(t, err)
	assert.JSONEq(t, `{"2026-10-18":2}`, string(raw))

	records, apiErr := f.service.GetRecords(ctx, online)
	require.Nil(t, apiErr)
	assert.Equal(t, []session.DayCount{{Date: "2026-10-19", Count: 4}}, records)
}

func TestSubscribeDeliversSnapshots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.user(t, "u1")

	updates, cancel, apiErr := f.service.Subscribe(userID, 4)
	require.Nil(t, apiErr)
	defer cancel()

	first := <-updates
	assert.Equal(t, session.StateIdle, first.RunState)

	_, apiErr = f.service.Start(ctx, userID)
	require.Nil(t, apiErr)
	next := <-updates
	assert.Equal(t, session.StateRunning, next.RunState)
}
