package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CleanupResult contains statistics about a cleanup operation.
type CleanupResult struct {
	GenerationsDeleted int64
	HandlesDeleted     int64
	TotalDeleted       int64
	Duration           time.Duration
}

// retention queries, keyed by table. Live handles are never pruned.
var cleanupQueries = []struct {
	table string
	query string
}{
	{"generations", "DELETE FROM generations WHERE created_at < ?"},
	{"handles", "DELETE FROM handles WHERE created_at < ? AND status != 'live'"},
}

// Cleanup deletes history older than retentionDays and runs VACUUM.
//
// Example:
//
//	result, err := database.Cleanup(30)
func (d *Database) Cleanup(retentionDays int) (CleanupResult, error) {
	return d.CleanupWithContext(context.Background(), retentionDays)
}

// CleanupWithContext deletes history older than retentionDays in a single
// transaction, then runs VACUUM. Zero retention deletes every finished row.
func (d *Database) CleanupWithContext(ctx context.Context, retentionDays int) (CleanupResult, error) {
	start := time.Now()
	result := CleanupResult{}

	if retentionDays < 0 {
		return result, fmt.Errorf("retentionDays must be non-negative, got %d", retentionDays)
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	cutoff := start.AddDate(0, 0, -retentionDays).UnixMilli()
	if retentionDays == 0 {
		cutoff = start.UnixMilli() + 1
	}

	err := d.withDB(func(conn *sql.DB) error {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		for _, q := range cleanupQueries {
			res, err := tx.ExecContext(ctx, q.query, cutoff)
			if err != nil {
				return fmt.Errorf("failed to delete from %s: %w", q.table, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get rows affected for %s: %w", q.table, err)
			}
			switch q.table {
			case "generations":
				result.GenerationsDeleted = n
			case "handles":
				result.HandlesDeleted = n
			}
			result.TotalDeleted += n
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}

		// VACUUM cannot run inside a transaction.
		if _, err := conn.ExecContext(ctx, "VACUUM"); err != nil {
			return fmt.Errorf("cleanup succeeded but VACUUM failed: %w", err)
		}
		return nil
	})

	result.Duration = time.Since(start)
	return result, err
}
