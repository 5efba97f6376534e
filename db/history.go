package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sdloader/boundary"
	"sdloader/logging"
)

// Record status values.
const (
	StatusLive     = "live"
	StatusReleased = "released"
	StatusFailed   = "failed"
	StatusSuccess  = "success"
	StatusError    = "error"
)

const defaultListLimit = 10

// HandleRecord is one row of the handles table: a model load attempt and,
// once released, when it ended.
type HandleRecord struct {
	ID           string
	Token        string
	ModelPath    string
	Status       string
	ErrorMessage string
	Duration     time.Duration
	CreatedAt    time.Time
	ReleasedAt   time.Time // zero while live
}

// GenerationRecord is one row of the generations table.
type GenerationRecord struct {
	ID             string
	Token          string
	Prompt         string
	NegativePrompt string
	Width          int
	Height         int
	Channels       int
	Steps          int
	Guidance       float32
	Seed           int64
	Bytes          int
	Duration       time.Duration
	Status         string
	ErrorMessage   string
	CreatedAt      time.Time
}

// History records boundary events in SQLite. It implements
// boundary.Observer; writes are synchronous on the calling goroutine.
type History struct {
	db     *Database
	logger *logging.Logger
	now    func() time.Time
}

// NewHistory returns a History writing to database. A nil logger discards
// write failures.
func NewHistory(database *Database, logger *logging.Logger) *History {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &History{
		db:     database,
		logger: logger.Named("history"),
		now:    time.Now,
	}
}

// Observe implements boundary.Observer. Write failures are logged and
// never reach the caller of the boundary operation.
func (h *History) Observe(e boundary.Event) {
	ctx := context.Background()

	var err error
	switch e.Kind {
	case boundary.EventLoad:
		err = h.RecordLoad(ctx, e)
	case boundary.EventGenerate:
		err = h.RecordGeneration(ctx, e)
	case boundary.EventRelease:
		err = h.RecordRelease(ctx, e)
	default:
		return
	}
	if err != nil {
		h.logger.Warn("Failed to record history",
			zap.Stringer("kind", e.Kind),
			zap.Stringer("handle", e.Handle),
			zap.Error(err))
	}
}

// RecordLoad inserts a handles row for a load attempt.
func (h *History) RecordLoad(ctx context.Context, e boundary.Event) error {
	status := StatusLive
	if !e.OK() {
		status = StatusFailed
	}

	return h.db.withDB(func(conn *sql.DB) error {
		_, err := conn.ExecContext(ctx, `
			INSERT INTO handles (id, token, model_path, status, error_message, duration_ms, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			uuid.NewString(),
			e.Handle.String(),
			e.ModelPath,
			status,
			errorMessage(e.Err),
			e.Duration.Milliseconds(),
			h.now().UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert handle: %w", err)
		}
		return nil
	})
}

// RecordRelease marks the live handles row for e.Handle as released. A
// no-op release leaves the table untouched.
func (h *History) RecordRelease(ctx context.Context, e boundary.Event) error {
	if !e.Released {
		return nil
	}

	return h.db.withDB(func(conn *sql.DB) error {
		_, err := conn.ExecContext(ctx, `
			UPDATE handles SET status = ?, released_at = ?
			WHERE token = ? AND status = ?`,
			StatusReleased,
			h.now().UnixMilli(),
			e.Handle.String(),
			StatusLive,
		)
		if err != nil {
			return fmt.Errorf("failed to update handle: %w", err)
		}
		return nil
	})
}

// RecordGeneration inserts a generations row.
func (h *History) RecordGeneration(ctx context.Context, e boundary.Event) error {
	status := StatusSuccess
	if !e.OK() {
		status = StatusError
	}
	req := e.Request

	return h.db.withDB(func(conn *sql.DB) error {
		_, err := conn.ExecContext(ctx, `
			INSERT INTO generations (
				id, token, prompt, negative_prompt, width, height, channels,
				steps, guidance, seed, bytes, duration_ms, status, error_message, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.NewString(),
			e.Handle.String(),
			req.Prompt,
			req.NegativePrompt,
			req.Width,
			req.Height,
			e.Channels,
			req.Steps,
			float64(req.GuidanceScale),
			req.Seed,
			e.Bytes,
			e.Duration.Milliseconds(),
			status,
			errorMessage(e.Err),
			h.now().UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert generation: %w", err)
		}
		return nil
	})
}

// RecentGenerations returns up to limit generations, newest first.
func (h *History) RecentGenerations(ctx context.Context, limit int) ([]GenerationRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	var records []GenerationRecord
	err := h.db.withDB(func(conn *sql.DB) error {
		rows, err := conn.QueryContext(ctx, `
			SELECT id, token, prompt, negative_prompt, width, height, channels,
				   steps, guidance, seed, bytes, duration_ms, status,
				   COALESCE(error_message, ''), created_at
			FROM generations
			ORDER BY created_at DESC, rowid DESC
			LIMIT ?`, limit)
		if err != nil {
			return fmt.Errorf("failed to query generations: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				rec        GenerationRecord
				guidance   float64
				durationMS int64
				createdAt  int64
			)
			err := rows.Scan(
				&rec.ID,
				&rec.Token,
				&rec.Prompt,
				&rec.NegativePrompt,
				&rec.Width,
				&rec.Height,
				&rec.Channels,
				&rec.Steps,
				&guidance,
				&rec.Seed,
				&rec.Bytes,
				&durationMS,
				&rec.Status,
				&rec.ErrorMessage,
				&createdAt,
			)
			if err != nil {
				return fmt.Errorf("failed to scan generation row: %w", err)
			}
			rec.Guidance = float32(guidance)
			rec.Duration = time.Duration(durationMS) * time.Millisecond
			rec.CreatedAt = time.UnixMilli(createdAt)
			records = append(records, rec)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("error iterating generation rows: %w", err)
		}
		return nil
	})
	return records, err
}

// RecentHandles returns up to limit handle records, newest first.
func (h *History) RecentHandles(ctx context.Context, limit int) ([]HandleRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	var records []HandleRecord
	err := h.db.withDB(func(conn *sql.DB) error {
		rows, err := conn.QueryContext(ctx, `
			SELECT id, token, model_path, status, COALESCE(error_message, ''),
				   duration_ms, created_at, COALESCE(released_at, 0)
			FROM handles
			ORDER BY created_at DESC, rowid DESC
			LIMIT ?`, limit)
		if err != nil {
			return fmt.Errorf("failed to query handles: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				rec        HandleRecord
				durationMS int64
				createdAt  int64
				releasedAt int64
			)
			err := rows.Scan(
				&rec.ID,
				&rec.Token,
				&rec.ModelPath,
				&rec.Status,
				&rec.ErrorMessage,
				&durationMS,
				&createdAt,
				&releasedAt,
			)
			if err != nil {
				return fmt.Errorf("failed to scan handle row: %w", err)
			}
			rec.Duration = time.Duration(durationMS) * time.Millisecond
			rec.CreatedAt = time.UnixMilli(createdAt)
			if releasedAt > 0 {
				rec.ReleasedAt = time.UnixMilli(releasedAt)
			}
			records = append(records, rec)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("error iterating handle rows: %w", err)
		}
		return nil
	})
	return records, err
}

// CountGenerations returns the number of recorded generations.
func (h *History) CountGenerations(ctx context.Context) (int64, error) {
	var count int64
	err := h.db.withDB(func(conn *sql.DB) error {
		if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM generations").Scan(&count); err != nil {
			return fmt.Errorf("failed to count generations: %w", err)
		}
		return nil
	})
	return count, err
}

func errorMessage(err error) interface{} {
	if err == nil {
		return nil
	}
	return err.Error()
}
