// Package stats computes the three read-only views described in §4.7: a
// "today" snapshot built from the Scheduler's own dry-run composition so the
// numbers match what NextQueue would actually return, a rolling per-day
// review history, and a forward-looking due forecast. Nothing here writes.
package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/heartmarshall/wordflow-backend/internal/domain"
)

type store interface {
	ActiveWordbook(ctx context.Context) (*domain.Wordbook, error)
	GetWordbook(ctx context.Context, id int) (*domain.Wordbook, error)
	CardsForWordbook(ctx context.Context, wordbookID int) ([]domain.Card, []domain.Word, error)
	SRSStatesForWordbook(ctx context.Context, wordbookID int) (map[int]domain.SRSState, error)
	ReviewsSince(ctx context.Context, since time.Time) ([]domain.Review, error)
}

// Service answers §4.7's three views.
type Service struct {
	store store
	sched schedulerAdapter
}

// schedulerAdapter is satisfied by *scheduler.Service via New's adapter
// closure, keeping this package free of a direct scheduler import.
type schedulerAdapter func(ctx context.Context, opts domain.QueueOptions) (domain.QueueStats, error)

func New(st store, sched schedulerAdapter) *Service {
	return &Service{store: st, sched: sched}
}

// Today builds the §4.7 "Today" view.
func (s *Service) Today(ctx context.Context, wordbookID *int) (*domain.TodayStats, error) {
	wb, err := s.resolveWordbook(ctx, wordbookID)
	if err != nil {
		if isNoActiveWordbook(err) {
			return &domain.TodayStats{}, nil
		}
		return nil, err
	}

	cards, _, err := s.store.CardsForWordbook(ctx, wb.ID)
	if err != nil {
		return nil, fmt.Errorf("today: load cards: %w", err)
	}

	opts := domain.DefaultQueueOptions()
	opts.WordbookID = &wb.ID
	qs, err := s.sched(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("today: dry-run queue: %w", err)
	}

	return &domain.TodayStats{
		TotalCards:     len(cards),
		DueToday:       qs.DueCount,
		NewCards:       qs.NewCount,
		RollingReviews: qs.RollingCount,
		ReviewedToday:  qs.ReviewedToday,
		StudyQueueSize: qs.StudyQueueSize,
	}, nil
}

// Progress buckets reviews per calendar day over the trailing `days` window
// (§4.7: days ∈ {7,30,90,365}).
func (s *Service) Progress(ctx context.Context, days int) (*domain.ProgressStats, error) {
	days = clampDays(days)

	now := time.Now().UTC()
	since := dateOnly(now).AddDate(0, 0, -(days - 1))

	reviews, err := s.store.ReviewsSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("progress: load reviews: %w", err)
	}

	sums := make(map[time.Time]int, days)
	counts := make(map[time.Time]int, days)
	for _, r := range reviews {
		d := dateOnly(r.Ts)
		counts[d]++
		sums[d] += int(r.Grade)
	}

	buckets := make([]domain.ProgressBucket, 0, days)
	total := 0
	activeDays := 0
	for i := 0; i < days; i++ {
		d := since.AddDate(0, 0, i)
		n := counts[d]
		avg := 0.0
		if n > 0 {
			avg = float64(sums[d]) / float64(n)
			activeDays++
		}
		buckets = append(buckets, domain.ProgressBucket{Date: d, Reviews: n, AverageGrade: avg})
		total += n
	}

	return &domain.ProgressStats{
		Days:       days,
		Buckets:    buckets,
		Total:      total,
		ActiveDays: activeDays,
	}, nil
}

// DueForecast buckets each card's current due date into the next `days`
// calendar days (§4.7).
func (s *Service) DueForecast(ctx context.Context, wordbookID *int, days int) ([]domain.DueForecastEntry, error) {
	if days <= 0 {
		days = 7
	}
	if days > 90 {
		days = 90
	}

	wb, err := s.resolveWordbook(ctx, wordbookID)
	if err != nil {
		if isNoActiveWordbook(err) {
			return emptyForecast(days), nil
		}
		return nil, err
	}

	srsByCard, err := s.store.SRSStatesForWordbook(ctx, wb.ID)
	if err != nil {
		return nil, fmt.Errorf("due forecast: load srs states: %w", err)
	}

	today := dateOnly(time.Now().UTC())
	counts := make(map[time.Time]int, days)
	for _, st := range srsByCard {
		d := dateOnly(st.Due)
		offset := int(d.Sub(today).Hours() / 24)
		if offset >= 0 && offset < days {
			counts[d]++
		}
	}

	out := make([]domain.DueForecastEntry, 0, days)
	for i := 0; i < days; i++ {
		d := today.AddDate(0, 0, i)
		out = append(out, domain.DueForecastEntry{Date: d, Count: counts[d]})
	}
	return out, nil
}

func (s *Service) resolveWordbook(ctx context.Context, wordbookID *int) (*domain.Wordbook, error) {
	if wordbookID != nil {
		return s.store.GetWordbook(ctx, *wordbookID)
	}
	return s.store.ActiveWordbook(ctx)
}

func emptyForecast(days int) []domain.DueForecastEntry {
	today := dateOnly(time.Now().UTC())
	out := make([]domain.DueForecastEntry, 0, days)
	for i := 0; i < days; i++ {
		out = append(out, domain.DueForecastEntry{Date: today.AddDate(0, 0, i), Count: 0})
	}
	return out
}

func clampDays(days int) int {
	switch {
	case days <= 7:
		return 7
	case days <= 30:
		return 30
	case days <= 90:
		return 90
	default:
		return 365
	}
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func isNoActiveWordbook(err error) bool {
	return errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrPreconditionFailed)
}
