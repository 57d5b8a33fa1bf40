package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ericfisherdev/repomover/internal/domain/model"
	"github.com/ericfisherdev/repomover/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.TransferLogStore = (*TransferLogRepo)(nil)

// TransferLogRepo is the SQLite implementation of the TransferLogStore port interface.
type TransferLogRepo struct {
	db *DB
}

// NewTransferLogRepo creates a new TransferLogRepo backed by the given DB.
func NewTransferLogRepo(db *DB) *TransferLogRepo {
	return &TransferLogRepo{db: db}
}

// Record appends one attempted transfer. A zero AttemptedAt is stamped with
// the current time.
func (r *TransferLogRepo) Record(ctx context.Context, rec model.TransferRecord) error {
	attemptedAt := rec.AttemptedAt
	if attemptedAt.IsZero() {
		attemptedAt = time.Now()
	}

	const query = `
		INSERT INTO transfer_log (batch_id, repository, new_owner, success, new_url, error_message, attempted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.Writer.ExecContext(ctx, query,
		rec.BatchID,
		rec.Repository,
		rec.NewOwner,
		boolToInt(rec.Success),
		rec.NewURL,
		rec.ErrorMessage,
		attemptedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record transfer %s: %w", rec.Repository, err)
	}
	return nil
}

// ListByBatch returns a batch's records in attempt order.
func (r *TransferLogRepo) ListByBatch(ctx context.Context, batchID string) ([]model.TransferRecord, error) {
	const query = `
		SELECT id, batch_id, repository, new_owner, success, new_url, error_message, attempted_at
		FROM transfer_log
		WHERE batch_id = ?
		ORDER BY id ASC`

	return r.list(ctx, query, batchID)
}

// ListRecent returns up to limit records, newest first.
func (r *TransferLogRepo) ListRecent(ctx context.Context, limit int) ([]model.TransferRecord, error) {
	if limit <= 0 {
		return []model.TransferRecord{}, nil
	}

	const query = `
		SELECT id, batch_id, repository, new_owner, success, new_url, error_message, attempted_at
		FROM transfer_log
		ORDER BY id DESC
		LIMIT ?`

	return r.list(ctx, query, limit)
}

func (r *TransferLogRepo) list(ctx context.Context, query string, args ...any) ([]model.TransferRecord, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transfer log: %w", err)
	}
	defer rows.Close()

	records := []model.TransferRecord{}
	for rows.Next() {
		rec, err := scanTransferRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfer log: %w", err)
	}

	return records, nil
}

// scanner abstracts *sql.Row and *sql.Rows so one helper scans both.
type scanner interface {
	Scan(dest ...any) error
}

var (
	_ scanner = (*sql.Row)(nil)
	_ scanner = (*sql.Rows)(nil)
)

func scanTransferRecord(s scanner) (model.TransferRecord, error) {
	var (
		rec         model.TransferRecord
		success     int
		attemptedAt string
	)

	err := s.Scan(
		&rec.ID,
		&rec.BatchID,
		&rec.Repository,
		&rec.NewOwner,
		&success,
		&rec.NewURL,
		&rec.ErrorMessage,
		&attemptedAt,
	)
	if err != nil {
		return model.TransferRecord{}, fmt.Errorf("scan transfer record: %w", err)
	}

	rec.Success = success != 0
	if t, err := parseTime(attemptedAt); err == nil {
		rec.AttemptedAt = t
	}

	return rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
