package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/Veraticus/the-focus-must-flow/internal/common"
	"github.com/Veraticus/the-focus-must-flow/internal/model"
)

// DefaultListLimit is used when a non-positive limit is requested.
const DefaultListLimit = 20

// StartSession records a new task session.
func (s *SQLiteStorage) StartSession(ctx context.Context, task model.TaskState) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateSession(task); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, task, started_at) VALUES (?, ?, ?)`,
		task.SessionID, task.Title, task.StartedAt.UTC())
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("session %s: %w", task.SessionID, common.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// EndSession stamps the end time of a running session.
func (s *SQLiteStorage) EndSession(ctx context.Context, sessionID string, endedAt time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(sessionID, "sessionID"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET ended_at = ? WHERE id = ? AND ended_at IS NULL`,
		endedAt.UTC(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("running session %s: %w", sessionID, common.ErrNotFound)
	}
	return nil
}

// GetSession loads one session.
func (s *SQLiteStorage) GetSession(ctx context.Context, sessionID string) (*model.SessionRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var (
		rec     model.SessionRecord
		endedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, task, started_at, ended_at FROM sessions WHERE id = ?`, sessionID).
		Scan(&rec.ID, &rec.Task, &rec.StartedAt, &endedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", sessionID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if endedAt.Valid {
		t := endedAt.Time
		rec.EndedAt = &t
	}
	return &rec, nil
}

// SaveIntervention records a fired nudge.
func (s *SQLiteStorage) SaveIntervention(ctx context.Context, n model.Nudge) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateNudge(n); err != nil {
		return 0, err
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO interventions (session_id, source, message, reason, app, host, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.SessionID, n.Source, n.Message, n.Reason, n.AppName, n.Host, n.At.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to save intervention: %w", err)
	}
	return result.LastInsertId()
}

// ListInterventions returns the most recent interventions, newest first.
func (s *SQLiteStorage) ListInterventions(ctx context.Context, limit int) ([]model.Intervention, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.session_id, COALESCE(s.task, ''), i.source, i.message,
		       COALESCE(i.reason, ''), COALESCE(i.app, ''), COALESCE(i.host, ''), i.created_at
		FROM interventions i
		LEFT JOIN sessions s ON s.id = i.session_id
		ORDER BY i.created_at DESC, i.id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query interventions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Intervention
	for rows.Next() {
		var in model.Intervention
		if err := rows.Scan(&in.ID, &in.SessionID, &in.Task, &in.Source, &in.Message,
			&in.Reason, &in.AppName, &in.Host, &in.At); err != nil {
			return nil, fmt.Errorf("failed to scan intervention: %w", err)
		}
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate interventions: %w", err)
	}
	return out, nil
}
