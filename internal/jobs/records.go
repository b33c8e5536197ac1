package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"vsplit/internal/services"
	"vsplit/internal/split"
)

const recordColumns = `id, source_url, manifest_url, status, requested, produced, skipped, rejected,
    failed_stage, error_class, error_message, created_at, updated_at`

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var _ split.Ledger = (*Store)(nil)

// ErrUnknownJob reports a ledger update for a job that was never begun.
var ErrUnknownJob = fmt.Errorf("%w: unknown job", services.ErrNotFound)

// Begin records a run as running. Re-running a job id resets its row.
func (s *Store) Begin(ctx context.Context, job split.JobInfo) error {
	timestamp := s.timestamp()
	_, err := s.exec(ctx,
		`INSERT INTO jobs (id, source_url, manifest_url, status, requested, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
             source_url = excluded.source_url,
             manifest_url = excluded.manifest_url,
             status = excluded.status,
             requested = excluded.requested,
             produced = 0, skipped = 0, rejected = 0,
             failed_stage = NULL, error_class = NULL, error_message = NULL,
             created_at = excluded.created_at,
             updated_at = excluded.updated_at`,
		job.ID,
		job.SourceURL,
		nullableString(job.ManifestURL),
		StatusRunning,
		job.Requested,
		timestamp,
		timestamp,
	)
	if err != nil {
		return fmt.Errorf("begin job %s: %w", job.ID, err)
	}
	return nil
}

// Complete marks a run completed with its counts.
func (s *Store) Complete(ctx context.Context, id string, summary split.Summary) error {
	res, err := s.exec(ctx,
		`UPDATE jobs SET status = ?, produced = ?, skipped = ?, rejected = ?, updated_at = ?
         WHERE id = ?`,
		StatusCompleted,
		summary.Produced,
		summary.Skipped,
		summary.Rejected,
		s.timestamp(),
		id,
	)
	if err != nil {
		return fmt.Errorf("complete job %s: %w", id, err)
	}
	return requireRow(res, id)
}

// Fail marks a run failed at stage with the classified cause.
func (s *Store) Fail(ctx context.Context, id, stage string, cause error) error {
	message := ""
	if cause != nil {
		message = cause.Error()
	}
	res, err := s.exec(ctx,
		`UPDATE jobs SET status = ?, failed_stage = ?, error_class = ?, error_message = ?, updated_at = ?
         WHERE id = ?`,
		StatusFailed,
		nullableString(stage),
		nullableString(services.Classify(cause)),
		nullableString(message),
		s.timestamp(),
		id,
	)
	if err != nil {
		return fmt.Errorf("fail job %s: %w", id, err)
	}
	return requireRow(res, id)
}

// Get fetches a record by id. It returns nil, nil when the id is unknown.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM jobs WHERE id = ?`, id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return record, nil
}

// List returns the most recent records first, optionally filtered by status.
// A limit <= 0 returns every record.
func (s *Store) List(ctx context.Context, limit int, statuses ...Status) ([]*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM jobs`
	args := make([]any, 0, len(statuses)+1)
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY created_at DESC, id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Prune deletes finished records last updated before cutoff.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.exec(ctx,
		`DELETE FROM jobs WHERE status != ? AND updated_at < ?`,
		StatusRunning,
		cutoff.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("prune jobs: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(timeLayout)
}

func requireRow(res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}
	return nil
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		record       Record
		status       string
		manifestURL  sql.NullString
		failedStage  sql.NullString
		errorClass   sql.NullString
		errorMessage sql.NullString
		createdRaw   string
		updatedRaw   string
	)
	if err := scanner.Scan(
		&record.ID,
		&record.SourceURL,
		&manifestURL,
		&status,
		&record.Requested,
		&record.Produced,
		&record.Skipped,
		&record.Rejected,
		&failedStage,
		&errorClass,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	record.Status = Status(status)
	record.ManifestURL = manifestURL.String
	record.FailedStage = failedStage.String
	record.ErrorClass = errorClass.String
	record.ErrorMessage = errorMessage.String
	record.CreatedAt = parseTime(createdRaw)
	record.UpdatedAt = parseTime(updatedRaw)
	return &record, nil
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func makePlaceholders(n int) string {
	if n <= 0 {
		return ""
	}
	buf := make([]byte, 0, n*2-1)
	for i := 0; i < n; i++ {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, '?')
	}
	return string(buf)
}
