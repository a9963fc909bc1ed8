// Package importer drives a background bulk-import job (§4.3): it resolves
// the target wordbook, streams rows out of parser.Parse in batches, writes
// them through Store.BulkUpsertWords, and keeps an ImportJob row up to date
// so Progress() stays cheap and idempotent. The batch/counter bookkeeping
// mirrors the teacher's impex.Service.Import (backend_v3
// internal/service/impex/import.go); the process-wide concurrency cap uses
// golang.org/x/sync/semaphore, already a teacher dependency.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/heartmarshall/wordflow-backend/internal/domain"
	"github.com/heartmarshall/wordflow-backend/internal/service/parser"
)

// store is the persistence surface the Importer needs; satisfied by
// *store.Store. A narrow interface keeps the package unit-testable without a
// real database.
type store interface {
	ActiveWordbook(ctx context.Context) (*domain.Wordbook, error)
	ActiveImportJobForWordbook(ctx context.Context, wordbookID int) (*domain.ImportJob, error)
	CreateImportJob(ctx context.Context, filename string, wordbookID int) (*domain.ImportJob, error)
	GetImportJob(ctx context.Context, id string) (*domain.ImportJob, error)
	ListImportJobs(ctx context.Context, limit int) ([]domain.ImportJob, error)
	UpdateImportJob(ctx context.Context, j domain.ImportJob) error
	BulkUpsertWords(ctx context.Context, wordbookID int, batch []domain.NormalizedWord) (domain.BulkUpsertResult, []domain.UpsertResult, error)
	CreateCardIfMissing(ctx context.Context, wordID int, template domain.CardTemplate) (*domain.Card, error)
}

// Config bounds the Importer's batch size, process concurrency, and
// reported-error cap (§4.3, all sourced from config.ImportConfig). A batch
// that fails with a transient error is always retried exactly once.
type Config struct {
	BatchSize            int
	MaxConcurrent        int
	MaxReportedRowErrors int
}

// Service runs bulk imports in background goroutines.
type Service struct {
	store  store
	cfg    Config
	logger *slog.Logger
	sem    *semaphore.Weighted

	mu      sync.Mutex
	running map[int]bool // wordbookID -> an import is currently executing
}

func New(s store, cfg Config, logger *slog.Logger) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 2
	}
	if cfg.MaxReportedRowErrors <= 0 {
		cfg.MaxReportedRowErrors = 50
	}
	return &Service{
		store:   s,
		cfg:     cfg,
		logger:  logger,
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		running: make(map[int]bool),
	}
}

// Start resolves the target wordbook, creates a pending ImportJob, and
// enqueues the background run. It returns the job id immediately (§4.3).
//
// wordbookID, when non-nil, wins over the active wordbook. When it is nil
// and no wordbook is active, Start returns a PreconditionFailed error and
// creates no job — ImportJob.WordbookID has no null representation, so
// there is no row to attach a "failed" status to.
func (s *Service) Start(ctx context.Context, data []byte, filename string, format domain.ImportFormat, wordbookID *int) (string, error) {
	wbID, err := s.resolveWordbook(ctx, wordbookID)
	if err != nil {
		return "", err
	}

	if err := s.claim(ctx, wbID); err != nil {
		return "", err
	}

	job, err := s.store.CreateImportJob(ctx, filename, wbID)
	if err != nil {
		s.release(wbID)
		return "", fmt.Errorf("create import job: %w", err)
	}

	go s.run(job.ID, wbID, data, filename, format)

	return job.ID, nil
}

// Progress returns the current ImportJob row. It is cheap (a single select)
// and idempotent — safe to poll.
func (s *Service) Progress(ctx context.Context, importID string) (*domain.ImportJob, error) {
	return s.store.GetImportJob(ctx, importID)
}

// List returns the most recent import jobs (§6 GET /imports).
func (s *Service) List(ctx context.Context, limit int) ([]domain.ImportJob, error) {
	return s.store.ListImportJobs(ctx, limit)
}

func (s *Service) resolveWordbook(ctx context.Context, wordbookID *int) (int, error) {
	if wordbookID != nil {
		return *wordbookID, nil
	}
	active, err := s.store.ActiveWordbook(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, domain.NewPreconditionError("no active wordbook")
		}
		return 0, fmt.Errorf("resolve active wordbook: %w", err)
	}
	return active.ID, nil
}

// claim enforces "at most one active import job per wordbook" (§4.3) both
// against in-flight goroutines in this process and against jobs recorded by
// other processes sharing the same database.
func (s *Service) claim(ctx context.Context, wordbookID int) error {
	s.mu.Lock()
	if s.running[wordbookID] {
		s.mu.Unlock()
		return domain.NewConflictError("import already running for wordbook", "")
	}

	existing, err := s.store.ActiveImportJobForWordbook(ctx, wordbookID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.mu.Unlock()
		return fmt.Errorf("check active import job: %w", err)
	}
	if existing != nil {
		s.mu.Unlock()
		return domain.NewConflictError("import already running for wordbook", existing.ID)
	}

	s.running[wordbookID] = true
	s.mu.Unlock()
	return nil
}

func (s *Service) release(wordbookID int) {
	s.mu.Lock()
	delete(s.running, wordbookID)
	s.mu.Unlock()
}

// run executes one import job end to end. It uses its own background
// context — the job must keep running after the HTTP request that started
// it has returned.
func (s *Service) run(jobID string, wordbookID int, data []byte, filename string, format domain.ImportFormat) {
	defer s.release(wordbookID)

	ctx := context.Background()
	if err := s.sem.Acquire(ctx, 1); err != nil {
		s.fail(ctx, jobID, fmt.Sprintf("acquire import slot: %v", err))
		return
	}
	defer s.sem.Release(1)

	job, err := s.store.GetImportJob(ctx, jobID)
	if err != nil {
		s.logger.Error("importer: load job failed", "job_id", jobID, "error", err)
		return
	}

	job.Status = domain.ImportStatusProcessing
	if err := s.store.UpdateImportJob(ctx, *job); err != nil {
		s.logger.Error("importer: mark processing failed", "job_id", jobID, "error", err)
	}

	run := &run{
		job:      job,
		wordbook: wordbookID,
		maxErrs:  s.cfg.MaxReportedRowErrors,
		batch:    make([]domain.NormalizedWord, 0, s.cfg.BatchSize),
		rowNums:  make([]int, 0, s.cfg.BatchSize),
	}

	parseErr := parser.Parse(data, format, filename, func(r parser.Row) error {
		if r.RowErr != nil {
			run.addRowError(*r.RowErr)
			return nil
		}
		run.addRecord(r.Record, r.Num)
		if len(run.batch) >= s.cfg.BatchSize {
			s.flush(ctx, run)
		}
		return nil
	})
	if len(run.batch) > 0 {
		s.flush(ctx, run)
	}

	now := time.Now().UTC()
	job = run.job
	job.FinishedAt = &now

	switch {
	case parseErr != nil && job.Succeeded == 0 && job.Failed == 0 && job.Skipped == 0:
		job.Status = domain.ImportStatusFailed
		job.Message = parseErr.Error()
	default:
		job.Status = domain.ImportStatusCompleted
		if job.Total == 0 {
			job.Total = job.Succeeded + job.Failed + job.Skipped
		}
		if parseErr != nil {
			job.Message = fmt.Sprintf("parse error after %d rows: %v", job.Total, parseErr)
		}
	}

	if err := s.store.UpdateImportJob(ctx, *job); err != nil {
		s.logger.Error("importer: finalize job failed", "job_id", jobID, "error", err)
	}
}

func (s *Service) fail(ctx context.Context, jobID, message string) {
	job, err := s.store.GetImportJob(ctx, jobID)
	if err != nil {
		s.logger.Error("importer: load job for failure failed", "job_id", jobID, "error", err)
		return
	}
	now := time.Now().UTC()
	job.Status = domain.ImportStatusFailed
	job.Message = message
	job.FinishedAt = &now
	if err := s.store.UpdateImportJob(ctx, *job); err != nil {
		s.logger.Error("importer: persist failure failed", "job_id", jobID, "error", err)
	}
}

// flush writes the accumulated batch through Store.BulkUpsertWords, retrying
// once on a transient failure (§4.3 step 4), then persists progress so a
// concurrent Progress() poll sees it.
func (s *Service) flush(ctx context.Context, run *run) {
	result, rows, err := s.store.BulkUpsertWords(ctx, run.wordbook, run.batch)
	if err != nil && errors.Is(err, domain.ErrTransient) {
		result, rows, err = s.store.BulkUpsertWords(ctx, run.wordbook, run.batch)
	}
	if err != nil {
		for _, n := range run.rowNums {
			run.addRowError(domain.RowError{Row: n, Reason: err.Error()})
		}
		run.resetBatch()
		s.persist(ctx, run)
		return
	}

	run.job.Skipped += result.Skipped
	run.job.Succeeded += result.Inserted

	for _, rowErr := range result.Failed {
		globalRow := rowErr.Row
		if rowErr.Row >= 0 && rowErr.Row < len(run.rowNums) {
			globalRow = run.rowNums[rowErr.Row]
		}
		run.addRowError(domain.RowError{Row: globalRow, Reason: rowErr.Reason})
	}

	for _, r := range rows {
		if r.Inserted {
			if _, err := s.store.CreateCardIfMissing(ctx, r.WordID, domain.CardTemplateBasic); err != nil {
				s.logger.Warn("importer: create default card failed", "word_id", r.WordID, "error", err)
			}
		}
	}

	run.resetBatch()
	s.persist(ctx, run)
}

func (s *Service) persist(ctx context.Context, run *run) {
	if err := s.store.UpdateImportJob(ctx, *run.job); err != nil {
		s.logger.Error("importer: persist progress failed", "job_id", run.job.ID, "error", err)
	}
}

// run accumulates one job's in-flight batch and counters between flushes.
type run struct {
	job      *domain.ImportJob
	wordbook int
	maxErrs  int
	batch    []domain.NormalizedWord
	rowNums  []int // rowNums[i] is the source row number for batch[i]
}

func (r *run) addRecord(rec domain.NormalizedWord, rowNum int) {
	r.batch = append(r.batch, rec)
	r.rowNums = append(r.rowNums, rowNum)
}

func (r *run) resetBatch() {
	r.batch = r.batch[:0]
	r.rowNums = r.rowNums[:0]
}

func (r *run) addRowError(e domain.RowError) {
	r.job.Failed++
	if len(r.job.Errors) < r.maxErrs {
		r.job.Errors = append(r.job.Errors, e)
	}
}
