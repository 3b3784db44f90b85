package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toolsite/backend/internal/session"
)

func TestRenderStopsAfterPhaseLimit(t *testing.T) {
	updates := make(chan session.Snapshot, 4)
	updates <- session.Snapshot{Phase: session.PhaseWork, Display: "00:01", LongBreakInterval: 4}
	updates <- session.Snapshot{Phase: session.PhaseWork, Display: "00:00", LongBreakInterval: 4}
	updates <- session.Snapshot{Phase: session.PhaseShortBreak, Display: "05:00", Cycle: 1, LongBreakInterval: 4, Today: 1}

	var out bytes.Buffer
	require.NoError(t, render(context.Background(), &out, updates, 1))

	assert.Contains(t, out.String(), "00:01")
	assert.Contains(t, out.String(), "done")
	assert.NotContains(t, out.String(), "05:00")
}

func TestRenderReturnsWhenUpdatesClose(t *testing.T) {
	updates := make(chan session.Snapshot, 1)
	updates <- session.Snapshot{Phase: session.PhaseWork, Display: "25:00", LongBreakInterval: 4, PersistError: "disk full"}
	close(updates)

	var out bytes.Buffer
	require.NoError(t, render(context.Background(), &out, updates, 0))
	assert.Contains(t, out.String(), "not saved: disk full")
}

func TestConfigureThenRecords(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	path := filepath.Join(t.TempDir(), "state.yaml")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"configure", "--state", path, "--work", "45"})
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "work 45 min, short break 5 min, long break 15 min\n", out.String())

	out.Reset()
	rootCmd.SetArgs([]string{"records", "--state", path})
	require.NoError(t, rootCmd.Execute())
	assert.True(t, strings.HasPrefix(out.String(), "no completed work sessions"))

	engine, err := openEngine()
	require.NoError(t, err)
	defer engine.Close()
	assert.Equal(t, 45, engine.Settings().WorkMinutes)
}

func TestOpenEngineUsesPomodoroConfig(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("POMODORO_WORK_MINUTES", "30")
	t.Setenv("POMODORO_LONG_BREAK_INTERVAL", "2")
	t.Setenv("POMODORO_TIMEZONE", "UTC")

	previous := statePath
	statePath = filepath.Join(t.TempDir(), "state.yaml")
	t.Cleanup(func() { statePath = previous })

	engine, err := openEngine()
	require.NoError(t, err)
	defer engine.Close()

	snap := engine.Snapshot()
	assert.Equal(t, 30, snap.Settings.WorkMinutes)
	assert.Equal(t, 2, snap.LongBreakInterval)
	assert.Equal(t, "30:00", snap.Display)
}
