package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"toolsite/backend/internal/model"
)

type PhaseRunRepository struct {
	db *sql.DB
}

func NewPhaseRunRepository(db *sql.DB) *PhaseRunRepository {
	return &PhaseRunRepository{db: db}
}

func (r *PhaseRunRepository) Insert(ctx context.Context, run *model.PhaseRun) error {
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO phase_runs (
			id, user_id, phase, planned_seconds, actual_seconds,
			status, started_at, ended_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.UserID,
		run.Phase,
		run.PlannedSeconds,
		run.ActualSeconds,
		run.Status,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.EndedAt.UTC().Format(time.RFC3339Nano),
		run.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert phase run: %w", err)
	}
	return nil
}

func (r *PhaseRunRepository) List(ctx context.Context, userID string, limit int) ([]model.PhaseRun, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT id, user_id, phase, planned_seconds, actual_seconds,
		        status, started_at, ended_at, created_at
		 FROM phase_runs
		 WHERE user_id = ?
		 ORDER BY started_at DESC
		 LIMIT ?`,
		userID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list phase runs: %w", err)
	}
	defer rows.Close()

	runs := make([]model.PhaseRun, 0, limit)
	for rows.Next() {
		run, scanErr := scanPhaseRun(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate phase runs: %w", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPhaseRun(s scanner) (*model.PhaseRun, error) {
	run := model.PhaseRun{}
	var startedAt, endedAt, createdAt string
	err := s.Scan(
		&run.ID,
		&run.UserID,
		&run.Phase,
		&run.PlannedSeconds,
		&run.ActualSeconds,
		&run.Status,
		&startedAt,
		&endedAt,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan phase run: %w", err)
	}

	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, fmt.Errorf("parse phase run started_at: %w", err)
	}
	if run.EndedAt, err = parseTime(endedAt); err != nil {
		return nil, fmt.Errorf("parse phase run ended_at: %w", err)
	}
	if run.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse phase run created_at: %w", err)
	}
	return &run, nil
}
