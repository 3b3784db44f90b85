package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// KVRepository stores opaque per-user values, one row per (user, key).
type KVRepository struct {
	db *sql.DB
}

func NewKVRepository(db *sql.DB) *KVRepository {
	return &KVRepository{db: db}
}

func (r *KVRepository) Get(ctx context.Context, userID, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRowContext(
		ctx,
		`SELECT value FROM pomodoro_kv WHERE user_id = ? AND key = ?`,
		userID,
		key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

func (r *KVRepository) Put(ctx context.Context, userID, key string, value []byte) error {
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO pomodoro_kv (user_id, key, value, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id, key) DO UPDATE
		 SET value = excluded.value,
		     updated_at = excluded.updated_at`,
		userID,
		key,
		value,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// ForUser scopes the repository to one user. The result satisfies
// session.Store.
func (r *KVRepository) ForUser(userID string) *UserKV {
	return &UserKV{repo: r, userID: userID}
}

type UserKV struct {
	repo   *KVRepository
	userID string
}

func (u *UserKV) Load(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := u.repo.Get(ctx, u.userID, key)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (u *UserKV) Save(ctx context.Context, key string, value []byte) error {
	return u.repo.Put(ctx, u.userID, key, value)
}

// UsersWithKey lists the users that have a stored value for key.
func (r *KVRepository) UsersWithKey(ctx context.Context, key string) ([]string, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT user_id FROM pomodoro_kv WHERE key = ? ORDER BY user_id`,
		key,
	)
	if err != nil {
		return nil, fmt.Errorf("list users with %s: %w", key, err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		users = append(users, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}
