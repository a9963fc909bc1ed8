// Package scheduler composes the daily study queue from three disjoint
// sources — due SRS cards, rolling-window cards, and fresh cards — under an
// adaptive new-card cap (§4.5). Leech tagging and the leech due-date delay
// are applied by package srs when a grade is recorded, not here.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/heartmarshall/wordflow-backend/internal/domain"
)

type store interface {
	ActiveWordbook(ctx context.Context) (*domain.Wordbook, error)
	GetWordbook(ctx context.Context, id int) (*domain.Wordbook, error)
	CardsForWordbook(ctx context.Context, wordbookID int) ([]domain.Card, []domain.Word, error)
	SRSStatesForWordbook(ctx context.Context, wordbookID int) (map[int]domain.SRSState, error)
	ReviewsOnDate(ctx context.Context, day time.Time) ([]domain.Review, error)
}

// Service builds NextQueue results (§4.5).
type Service struct {
	store store
	cfg   domain.SchedulerConfig
	log   *slog.Logger
}

// NewService builds a Scheduler. cfg is kept on the Service, but NextQueue
// does not read it: its limits come only from the QueueOptions it is given.
func NewService(log *slog.Logger, st store, cfg domain.SchedulerConfig) *Service {
	return &Service{store: st, cfg: cfg, log: log.With("service", "scheduler")}
}

// Result is what NextQueue returns.
type Result struct {
	Cards []domain.QueuedCard
	Stats domain.QueueStats
}

// NextQueue builds the today queue (§4.5). If there is no active wordbook
// (and none was specified), the queue is empty and stats.study_queue_size=0.
func (s *Service) NextQueue(ctx context.Context, opts domain.QueueOptions) (*Result, error) {
	opts = opts.Clamp()
	if opts.Now.IsZero() {
		opts.Now = time.Now().UTC()
	}

	wb, err := s.resolveWordbook(ctx, opts.WordbookID)
	if err != nil {
		if isPreconditionNoActiveBook(err) {
			return &Result{Cards: []domain.QueuedCard{}, Stats: domain.QueueStats{}}, nil
		}
		return nil, err
	}

	cards, words, err := s.store.CardsForWordbook(ctx, wb.ID)
	if err != nil {
		return nil, fmt.Errorf("load cards for wordbook %d: %w", wb.ID, err)
	}
	srsByCard, err := s.store.SRSStatesForWordbook(ctx, wb.ID)
	if err != nil {
		return nil, fmt.Errorf("load srs states for wordbook %d: %w", wb.ID, err)
	}

	wordByID := make(map[int]domain.Word, len(words))
	for _, w := range words {
		wordByID[w.ID] = w
	}

	due, rolling, fresh := splitSets(cards, wordByID, srsByCard, opts.Now)

	reviewedToday, err := s.reviewedToday(ctx, opts.Now)
	if err != nil {
		return nil, err
	}

	newLimitEffective := adaptiveNewCap(len(due)+len(rolling), opts.Limit, opts.NewLimit)

	stats := domain.QueueStats{
		DueCount:          len(due),
		RollingCount:      len(rolling),
		NewCount:          len(fresh),
		NewLimitEffective: newLimitEffective,
		ReviewedToday:     reviewedToday,
	}
	stats.StudyQueueSize = len(due) + len(rolling) + minInt(len(fresh), newLimitEffective)

	queued := composeQueue(due, rolling, fresh, opts.Limit, newLimitEffective, opts.IncludeRolling)

	s.log.InfoContext(ctx, "next queue composed",
		slog.Int("wordbook_id", wb.ID),
		slog.Int("due", len(due)), slog.Int("rolling", len(rolling)), slog.Int("new", len(fresh)),
		slog.Int("returned", len(queued)),
	)

	return &Result{Cards: queued, Stats: stats}, nil
}

func (s *Service) resolveWordbook(ctx context.Context, id *int) (*domain.Wordbook, error) {
	if id != nil {
		return s.store.GetWordbook(ctx, *id)
	}
	return s.store.ActiveWordbook(ctx)
}

func (s *Service) reviewedToday(ctx context.Context, now time.Time) (int, error) {
	reviews, err := s.store.ReviewsOnDate(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("reviews on date: %w", err)
	}
	return len(reviews), nil
}

type candidate struct {
	card   domain.Card
	word   domain.Word
	srs    *domain.SRSState
	offset int // rolling day-offset, unused outside the rolling set
}

// splitSets builds the three disjoint sets described in §4.5, each
// pre-sorted in its documented order.
func splitSets(cards []domain.Card, words map[int]domain.Word, srsByCard map[int]domain.SRSState, now time.Time) (due, rolling, fresh []candidate) {
	today := dateOnly(now)

	for _, c := range cards {
		w := words[c.WordID]
		st, hasSRS := srsByCard[c.ID]

		switch {
		case hasSRS && st.IsDue(now):
			stCopy := st
			due = append(due, candidate{card: c, word: w, srs: &stCopy})
		case !hasSRS && isRollingOffset(w.CreatedAt, today):
			rolling = append(rolling, candidate{card: c, word: w, offset: daysBetween(w.CreatedAt, today)})
		case !hasSRS:
			fresh = append(fresh, candidate{card: c, word: w})
		}
	}

	sort.SliceStable(due, func(i, j int) bool {
		if !due[i].srs.Due.Equal(due[j].srs.Due) {
			return due[i].srs.Due.Before(due[j].srs.Due)
		}
		if due[i].srs.Lapses != due[j].srs.Lapses {
			return due[i].srs.Lapses > due[j].srs.Lapses
		}
		return due[i].card.ID < due[j].card.ID
	})
	sort.SliceStable(rolling, func(i, j int) bool {
		if rolling[i].offset != rolling[j].offset {
			return rolling[i].offset < rolling[j].offset
		}
		return rolling[i].card.ID < rolling[j].card.ID
	})
	sort.SliceStable(fresh, func(i, j int) bool {
		if rl, rr := fresh[i].word.Lesson, fresh[j].word.Lesson; rl != rr {
			return lessNatural(rl, rr)
		}
		return fresh[i].word.ID < fresh[j].word.ID
	})

	return due, rolling, fresh
}

// isRollingOffset reports whether firstSeen's calendar date is exactly one
// of the rolling offsets {1,2,4,7} days before today (GLOSSARY: "Rolling
// window"). A card already in Due is excluded by the caller's switch order.
func isRollingOffset(firstSeen, today time.Time) bool {
	d := daysBetween(firstSeen, today)
	for _, offset := range domain.RollingOffsets {
		if d == offset {
			return true
		}
	}
	return false
}

func daysBetween(from, today time.Time) int {
	return int(today.Sub(dateOnly(from)).Hours() / 24)
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// lessNatural orders lesson labels in natural numeric order: when both
// labels parse as integers they compare numerically ("2" < "10"); otherwise
// they compare as plain strings.
func lessNatural(a, b string) bool {
	an, errA := strconv.Atoi(a)
	bn, errB := strconv.Atoi(b)
	if errA == nil && errB == nil {
		return an < bn
	}
	return a < b
}

// adaptiveNewCap implements §4.5's backlog dampening: when Due+Rolling
// exceeds twice the overall limit, shrink new_limit proportionally.
func adaptiveNewCap(dueAndRolling, limit, newLimit int) int {
	threshold := 2 * limit
	if dueAndRolling <= threshold {
		return newLimit
	}
	overflow := dueAndRolling - threshold
	reduction := (overflow + 9) / 10 // ceil(overflow/10)
	return maxInt(0, newLimit-reduction)
}

// composeQueue unions the three sets preserving per-set order, interleaving
// with priority Due > Rolling > New, truncated to limit with at most
// newLimitEffective cards coming from New (§4.5).
func composeQueue(due, rolling, fresh []candidate, limit, newLimitEffective int, includeRolling bool) []domain.QueuedCard {
	if !includeRolling {
		rolling = nil
	}
	if len(fresh) > newLimitEffective {
		fresh = fresh[:maxInt(0, newLimitEffective)]
	}

	ordered := make([]candidate, 0, len(due)+len(rolling)+len(fresh))
	ordered = append(ordered, due...)
	ordered = append(ordered, rolling...)
	ordered = append(ordered, fresh...)

	if len(ordered) > limit {
		ordered = ordered[:limit]
	}

	out := make([]domain.QueuedCard, 0, len(ordered))
	for _, c := range ordered {
		source := domain.QueueSourceNew
		switch {
		case c.srs != nil:
			source = domain.QueueSourceDue
		case c.offset != 0:
			source = domain.QueueSourceRolling
		}
		out = append(out, domain.QueuedCard{Card: c.card, Word: c.word, SRS: c.srs, Source: source})
	}
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func isPreconditionNoActiveBook(err error) bool {
	return errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrPreconditionFailed)
}
