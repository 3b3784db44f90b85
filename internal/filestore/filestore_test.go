package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toolsite/backend/internal/session"
)

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.yaml")
	store, err := Open(path)
	require.NoError(t, err)

	_, ok, err := store.Load(ctx, session.KeySettings)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Save(ctx, session.KeySettings, []byte(`{"workDuration":25}`)))
	require.NoError(t, store.Save(ctx, session.KeyRecords, []byte(`{"2026-10-19":2}`)))

	reopened, err := Open(path)
	require.NoError(t, err)
	value, ok, err := reopened.Load(ctx, session.KeyRecords)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"2026-10-19":2}`, string(value))

	value, ok, err = reopened.Load(ctx, session.KeySettings)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"workDuration":25}`, string(value))
}

func TestStoreReportsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	require.NoError(t, os.WriteFile(path, []byte("::: not yaml"), 0o644))
	store, err := Open(path)
	require.NoError(t, err)

	_, _, err = store.Load(context.Background(), session.KeySettings)
	assert.Error(t, err)
	assert.Error(t, store.Save(context.Background(), session.KeySettings, []byte("{}")))
}

func TestEngineOnFileStore(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "state.yaml"))
	require.NoError(t, err)

	engine, err := session.NewEngine(store, session.Options{})
	require.NoError(t, err)
	settings := session.Settings{WorkMinutes: 45, ShortBreakMinutes: 10, LongBreakMinutes: 30}
	require.NoError(t, engine.Configure(settings))
	engine.Close()

	reopened, err := session.NewEngine(store, session.Options{})
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, settings, reopened.Settings())
}
