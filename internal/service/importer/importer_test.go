package importer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/heartmarshall/wordflow-backend/internal/domain"
)

type fakeStore struct {
	mu sync.Mutex

	wordbook    *domain.Wordbook
	activeJob   *domain.ImportJob
	jobs        map[string]*domain.ImportJob
	nextID      int
	upsertErr   error
	failFirstN  int // number of BulkUpsertWords calls to fail with ErrTransient before succeeding
	upsertCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{jobs: make(map[string]*domain.ImportJob)}
}

func (f *fakeStore) ActiveWordbook(ctx context.Context) (*domain.Wordbook, error) {
	if f.wordbook == nil {
		return nil, domain.ErrNotFound
	}
	return f.wordbook, nil
}

func (f *fakeStore) ActiveImportJobForWordbook(ctx context.Context, wordbookID int) (*domain.ImportJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.activeJob != nil && f.activeJob.WordbookID == wordbookID {
		return f.activeJob, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeStore) CreateImportJob(ctx context.Context, filename string, wordbookID int) (*domain.ImportJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := "job-" + string(rune('0'+f.nextID))
	j := &domain.ImportJob{
		ID:         id,
		Filename:   filename,
		StartedAt:  time.Now().UTC(),
		Status:     domain.ImportStatusPending,
		WordbookID: wordbookID,
		Errors:     []domain.RowError{},
	}
	f.jobs[id] = j
	f.activeJob = j
	return j, nil
}

func (f *fakeStore) GetImportJob(ctx context.Context, id string) (*domain.ImportJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (f *fakeStore) ListImportJobs(ctx context.Context, limit int) ([]domain.ImportJob, error) {
	return nil, nil
}

func (f *fakeStore) UpdateImportJob(ctx context.Context, j domain.ImportJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := j
	f.jobs[j.ID] = &cp
	if j.Status.IsTerminal() {
		f.activeJob = nil
	}
	return nil
}

func (f *fakeStore) BulkUpsertWords(ctx context.Context, wordbookID int, batch []domain.NormalizedWord) (domain.BulkUpsertResult, []domain.UpsertResult, error) {
	f.mu.Lock()
	f.upsertCalls++
	call := f.upsertCalls
	f.mu.Unlock()

	if f.upsertErr != nil && call <= f.failFirstN {
		return domain.BulkUpsertResult{}, nil, f.upsertErr
	}

	result := domain.BulkUpsertResult{Inserted: len(batch)}
	rows := make([]domain.UpsertResult, len(batch))
	for i := range batch {
		rows[i] = domain.UpsertResult{Inserted: true, WordID: i + 1}
	}
	return result, rows, nil
}

func (f *fakeStore) CreateCardIfMissing(ctx context.Context, wordID int, template domain.CardTemplate) (*domain.Card, error) {
	return &domain.Card{ID: wordID, WordID: wordID, Template: template}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitTerminal(t *testing.T, svc *Service, jobID string) *domain.ImportJob {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, err := svc.Progress(context.Background(), jobID)
		if err != nil {
			t.Fatalf("Progress: %v", err)
		}
		if job.Status.IsTerminal() {
			return job
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for job to finish")
	return nil
}

func TestImporter_Start_CompletesSuccessfully(t *testing.T) {
	fs := newFakeStore()
	fs.wordbook = &domain.Wordbook{ID: 1, Name: "French A1"}

	svc := New(fs, Config{BatchSize: 2, MaxConcurrent: 2, MaxReportedRowErrors: 50}, testLogger())

	data := []byte("lemma,meaning_en\nchat,cat\nchien,dog\nmaison,house\n")
	jobID, err := svc.Start(context.Background(), data, "words.csv", domain.ImportFormatCSV, nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	job := waitTerminal(t, svc, jobID)
	if job.Status != domain.ImportStatusCompleted {
		t.Fatalf("status = %s, want completed (message=%q)", job.Status, job.Message)
	}
	if job.Succeeded != 3 {
		t.Errorf("succeeded = %d, want 3", job.Succeeded)
	}
	if job.Total != 3 {
		t.Errorf("total = %d, want 3", job.Total)
	}
	if !job.IsConsistent() {
		t.Error("job is not consistent")
	}
}

func TestImporter_Start_NoActiveWordbook(t *testing.T) {
	fs := newFakeStore()
	svc := New(fs, Config{}, testLogger())

	_, err := svc.Start(context.Background(), []byte("lemma\nchat\n"), "x.csv", domain.ImportFormatCSV, nil)
	if !errors.Is(err, domain.ErrPreconditionFailed) {
		t.Fatalf("err = %v, want ErrPreconditionFailed", err)
	}
}

func TestImporter_Start_ConflictWhenAlreadyRunning(t *testing.T) {
	fs := newFakeStore()
	fs.wordbook = &domain.Wordbook{ID: 1}
	svc := New(fs, Config{BatchSize: 1}, testLogger())

	data := []byte("lemma\nchat\nchien\nmaison\n")
	firstID, err := svc.Start(context.Background(), data, "a.csv", domain.ImportFormatCSV, nil)
	if err != nil {
		t.Fatalf("first Start: %v", err)
	}

	_, err = svc.Start(context.Background(), data, "b.csv", domain.ImportFormatCSV, nil)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("second Start err = %v, want ErrConflict", err)
	}

	waitTerminal(t, svc, firstID)
}

func TestImporter_Start_RowErrorsAreCapped(t *testing.T) {
	fs := newFakeStore()
	fs.wordbook = &domain.Wordbook{ID: 1}
	svc := New(fs, Config{BatchSize: 10, MaxReportedRowErrors: 2}, testLogger())

	// Every row is missing a lemma, so every row becomes a parser RowError.
	data := []byte("lemma,meaning_en\n,cat\n,dog\n,house\n")
	jobID, err := svc.Start(context.Background(), data, "bad.csv", domain.ImportFormatCSV, nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	job := waitTerminal(t, svc, jobID)
	if job.Failed != 3 {
		t.Errorf("failed = %d, want 3", job.Failed)
	}
	if len(job.Errors) != 2 {
		t.Errorf("len(errors) = %d, want 2 (capped)", len(job.Errors))
	}
}

func TestImporter_Start_RetriesTransientBatchOnce(t *testing.T) {
	fs := newFakeStore()
	fs.wordbook = &domain.Wordbook{ID: 1}
	fs.upsertErr = domain.ErrTransient
	fs.failFirstN = 1 // first call fails, retry succeeds

	svc := New(fs, Config{BatchSize: 10}, testLogger())
	data := []byte("lemma\nchat\nchien\n")
	jobID, err := svc.Start(context.Background(), data, "x.csv", domain.ImportFormatCSV, nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	job := waitTerminal(t, svc, jobID)
	if job.Status != domain.ImportStatusCompleted {
		t.Fatalf("status = %s, want completed", job.Status)
	}
	if job.Succeeded != 2 {
		t.Errorf("succeeded = %d, want 2 after retry", job.Succeeded)
	}
}
