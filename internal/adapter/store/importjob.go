package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/wordflow-backend/internal/domain"
)

// CreateImportJob writes a pending job and returns its opaque id. The id is
// UUID-backed (unlike the int-keyed entities elsewhere) because it is an
// externally polled token, not a relational key — see DESIGN.md.
func (s *Store) CreateImportJob(ctx context.Context, filename string, wordbookID int) (*domain.ImportJob, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	q := QuerierFromCtx(ctx, s.db)
	errs, _ := encodeJSON([]domain.RowError{})
	_, err := q.ExecContext(ctx, `
		INSERT INTO import_jobs (id, filename, started_at, status, total, succeeded, failed, skipped, message, wordbook_id, errors)
		VALUES (?, ?, ?, ?, 0, 0, 0, 0, '', ?, ?)`,
		id, filename, formatTime(now), string(domain.ImportStatusPending), wordbookID, errs)
	if err != nil {
		return nil, mapError(err, "import_job", id)
	}
	return s.GetImportJob(ctx, id)
}

// GetImportJob fetches a job by its opaque id.
func (s *Store) GetImportJob(ctx context.Context, id string) (*domain.ImportJob, error) {
	q := QuerierFromCtx(ctx, s.db)
	row := q.QueryRowContext(ctx, `
		SELECT id, filename, started_at, finished_at, status, total, succeeded, failed, skipped, message, wordbook_id, errors
		FROM import_jobs WHERE id = ?`, id)
	return scanImportJob(row, id)
}

// ListImportJobs returns recent jobs, most recent first (§6 GET /imports).
func (s *Store) ListImportJobs(ctx context.Context, limit int) ([]domain.ImportJob, error) {
	if limit <= 0 {
		limit = 20
	}
	q := QuerierFromCtx(ctx, s.db)
	rows, err := q.QueryContext(ctx, `
		SELECT id, filename, started_at, finished_at, status, total, succeeded, failed, skipped, message, wordbook_id, errors
		FROM import_jobs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list import jobs: %w", err)
	}
	defer rows.Close()

	var out []domain.ImportJob
	for rows.Next() {
		j, err := scanImportJobRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan import job: %w", err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate import jobs: %w", err)
	}
	if out == nil {
		out = []domain.ImportJob{}
	}
	return out, nil
}

// ActiveImportJobForWordbook returns the in-flight job for a wordbook, if
// any, enforcing §4.3's "at most one active import job per wordbook" rule.
func (s *Store) ActiveImportJobForWordbook(ctx context.Context, wordbookID int) (*domain.ImportJob, error) {
	q := QuerierFromCtx(ctx, s.db)
	row := q.QueryRowContext(ctx, `
		SELECT id, filename, started_at, finished_at, status, total, succeeded, failed, skipped, message, wordbook_id, errors
		FROM import_jobs WHERE wordbook_id = ? AND status IN (?, ?) ORDER BY started_at DESC LIMIT 1`,
		wordbookID, string(domain.ImportStatusPending), string(domain.ImportStatusProcessing))
	return scanImportJob(row, wordbookID)
}

// UpdateImportJob persists a job's mutable fields. Callers must not call this
// after the job has reached a terminal status (§3 invariant) — it is not
// re-checked here because only Importer ever calls it, under its own lock.
func (s *Store) UpdateImportJob(ctx context.Context, j domain.ImportJob) error {
	errs, err := encodeJSON(j.Errors)
	if err != nil {
		return fmt.Errorf("import job %s: encode errors: %w", j.ID, err)
	}

	q := QuerierFromCtx(ctx, s.db)
	_, err = q.ExecContext(ctx, `
		UPDATE import_jobs SET
			status = ?, total = ?, succeeded = ?, failed = ?, skipped = ?,
			message = ?, finished_at = ?, errors = ?
		WHERE id = ?`,
		string(j.Status), j.Total, j.Succeeded, j.Failed, j.Skipped,
		j.Message, formatTimePtr(j.FinishedAt), errs, j.ID)
	if err != nil {
		return mapError(err, "import_job", j.ID)
	}
	return nil
}

func scanImportJob(row rowScanner, id any) (*domain.ImportJob, error) {
	j, err := scanImportJobFields(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("import_job %v: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("import_job %v: %w", id, err)
	}
	return &j, nil
}

func scanImportJobRow(rows *sql.Rows) (domain.ImportJob, error) {
	return scanImportJobFields(rows)
}

func scanImportJobFields(row rowScanner) (domain.ImportJob, error) {
	var (
		j                   domain.ImportJob
		status, startedAt   string
		finishedAt          sql.NullString
		errs                string
	)
	if err := row.Scan(&j.ID, &j.Filename, &startedAt, &finishedAt, &status,
		&j.Total, &j.Succeeded, &j.Failed, &j.Skipped, &j.Message, &j.WordbookID, &errs); err != nil {
		return domain.ImportJob{}, err
	}
	j.Status = domain.ImportStatus(status)
	j.StartedAt = parseTime(startedAt)
	if finishedAt.Valid {
		t := parseTime(finishedAt.String)
		j.FinishedAt = &t
	}
	j.Errors = decodeRowErrors(errs)
	return j, nil
}
