package repository_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toolsite/backend/internal/db"
	"toolsite/backend/internal/model"
	"toolsite/backend/internal/repository"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	_, currentFile, _, _ := runtime.Caller(0)
	migrationsDir := filepath.Join(filepath.Dir(currentFile), "..", "..", "migrations")
	require.NoError(t, db.RunMigrations(database, migrationsDir))
	// a second run must be a no-op
	require.NoError(t, db.RunMigrations(database, migrationsDir))
	return database
}

func createUser(t *testing.T, database *sql.DB, id string) {
	t.Helper()
	now := time.Now().UTC()
	err := repository.NewUserRepository(database).Create(context.Background(), &model.User{
		ID:           id,
		Email:        id + "@example.com",
		PasswordHash: "x",
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	require.NoError(t, err)
}

func TestUserKVRoundTrip(t *testing.T) {
	database := openTestDB(t)
	createUser(t, database, "u1")
	createUser(t, database, "u2")
	ctx := context.Background()

	repo := repository.NewKVRepository(database)
	u1 := repo.ForUser("u1")

	_, ok, err := u1.Load(ctx, "settings")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, u1.Save(ctx, "settings", []byte(`{"workDuration":25}`)))
	require.NoError(t, u1.Save(ctx, "settings", []byte(`{"workDuration":30}`)))

	value, ok, err := u1.Load(ctx, "settings")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"workDuration":30}`, string(value))

	_, err = repo.Get(ctx, "u2", "settings")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPhaseRunsListNewestFirst(t *testing.T) {
	database := openTestDB(t)
	createUser(t, database, "u1")
	ctx := context.Background()
	repo := repository.NewPhaseRunRepository(database)

	base := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	for i, status := range []string{model.RunStatusCompleted, model.RunStatusCancelled} {
		started := base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, repo.Insert(ctx, &model.PhaseRun{
			ID:             status,
			UserID:         "u1",
			Phase:          "work",
			PlannedSeconds: 1500,
			ActualSeconds:  1500 - i*600,
			Status:         status,
			StartedAt:      started,
			EndedAt:        started.Add(25 * time.Minute),
			CreatedAt:      started,
		}))
	}

	runs, err := repo.List(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, model.RunStatusCancelled, runs[0].Status)
	assert.Equal(t, 900, runs[0].ActualSeconds)
	assert.Equal(t, base, runs[1].StartedAt)

	runs, err = repo.List(ctx, "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestUsersWithKey(t *testing.T) {
	database := openTestDB(t)
	createUser(t, database, "u1")
	createUser(t, database, "u2")
	ctx := context.Background()
	repo := repository.NewKVRepository(database)

	require.NoError(t, repo.Put(ctx, "u2", "records", []byte(`{}`)))
	require.NoError(t, repo.Put(ctx, "u1", "records", []byte(`{}`)))
	require.NoError(t, repo.Put(ctx, "u1", "settings", []byte(`{}`)))

	users, err := repo.UsersWithKey(ctx, "records")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, users)

	users, err = repo.UsersWithKey(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestUserCreateRejectsDuplicateEmail(t *testing.T) {
	database := openTestDB(t)
	createUser(t, database, "u1")
	repo := repository.NewUserRepository(database)

	now := time.Now().UTC()
	err := repo.Create(context.Background(), &model.User{
		ID:           "u-dup",
		Email:        "u1@example.com",
		PasswordHash: "x",
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}
