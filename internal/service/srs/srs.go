// Package srs applies SM-2-variant grading to a card's spaced-repetition
// state (§4.6). The grading function itself is a pure function (Compute) so
// it can be unit-tested without a database, following the teacher's
// CalculateSRS(SRSInput)->SRSOutput shape — only the state tuple differs.
package srs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/heartmarshall/wordflow-backend/internal/domain"
)

type store interface {
	GetSRSState(ctx context.Context, cardID int) (*domain.SRSState, error)
	PutSRSStateAndReview(ctx context.Context, st domain.SRSState, r domain.Review) (*domain.Review, error)
	AddWordTag(ctx context.Context, wordID int, tag string) error
	GetCard(ctx context.Context, id int) (*domain.Card, error)
}

// Service applies grades to cards (§4.6).
type Service struct {
	store store
	cfg   domain.SRSConfig
	log   *slog.Logger
}

// NewService builds an SRS service bound to cfg's ease bounds and leech
// threshold (§4.6, §8).
func NewService(log *slog.Logger, st store, cfg domain.SRSConfig) *Service {
	return &Service{store: st, cfg: cfg, log: log.With("service", "srs")}
}

// Result is what Apply returns: the persisted next state plus the review
// record it appended in the same transaction.
type Result struct {
	State  domain.SRSState
	Review domain.Review
}

// Apply grades a card and persists the resulting (interval, ease, due) tuple
// alongside an immutable review record (§4.6).
func (s *Service) Apply(ctx context.Context, cardID int, grade domain.ReviewGrade, elapsedMs *int, now time.Time) (*Result, error) {
	if !grade.IsValid() {
		return nil, domain.NewValidationError("grade", "must be one of 0,1,2,3")
	}

	card, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		return nil, fmt.Errorf("get card %d: %w", cardID, err)
	}

	current, err := s.store.GetSRSState(ctx, cardID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("get srs state for card %d: %w", cardID, err)
		}
		fresh := domain.NewSRSState(cardID, now)
		current = &fresh
	}

	leechThreshold := s.cfg.LeechThreshold
	if leechThreshold <= 0 {
		leechThreshold = domain.LeechThreshold
	}
	wasLeechBefore := current.Lapses >= leechThreshold
	next := Compute(*current, grade, now, s.cfg)

	// §4.5 leech handling: the first time a card crosses the leech
	// threshold, push its due date out by one extra day to break the
	// forget/re-show cycle; it remains eligible thereafter.
	if next.Lapses >= leechThreshold && !wasLeechBefore {
		next.Due = next.Due.Add(24 * time.Hour)
		if err := s.store.AddWordTag(ctx, card.WordID, "leech"); err != nil {
			return nil, fmt.Errorf("tag leech on word %d: %w", card.WordID, err)
		}
	}

	review := domain.Review{
		CardID:       cardID,
		Ts:           now,
		Grade:        grade,
		ElapsedMs:    elapsedMs,
		PrevInterval: current.IntervalDays,
		NewInterval:  next.IntervalDays,
	}

	saved, err := s.store.PutSRSStateAndReview(ctx, next, review)
	if err != nil {
		return nil, fmt.Errorf("save srs state and review for card %d: %w", cardID, err)
	}

	s.log.InfoContext(ctx, "card reviewed",
		slog.Int("card_id", cardID),
		slog.String("grade", grade.String()),
		slog.Int("new_interval", next.IntervalDays),
		slog.Bool("leech", next.Lapses >= leechThreshold),
	)

	return &Result{State: next, Review: *saved}, nil
}

// Compute is the pure SM-2 update function from §4.6's table. now is the
// review instant; the resulting Due is now + interval' days.
func Compute(cur domain.SRSState, grade domain.ReviewGrade, now time.Time, cfg domain.SRSConfig) domain.SRSState {
	next := cur
	next.Algo = domain.SRSAlgoSM2
	next.LastReviewedAt = &now
	g := grade
	next.LastGrade = &g

	switch grade {
	case domain.GradeAgain:
		next.Reps = 0
		next.IntervalDays = 1
		next.Ease = clampEase(cur.Ease-0.20, cfg)
		next.Lapses = cur.Lapses + 1
	case domain.GradeHard:
		next.Reps = cur.Reps + 1
		next.IntervalDays = intervalForReps(cur, next.Reps, 1, 3, func(interval int, ease float64) int {
			return ceilDays(float64(interval) * math.Max(1.2, ease-0.15))
		})
		next.Ease = clampEase(cur.Ease-0.15, cfg)
	case domain.GradeGood:
		next.Reps = cur.Reps + 1
		next.IntervalDays = intervalForReps(cur, next.Reps, 1, 3, func(interval int, ease float64) int {
			return ceilDays(float64(interval) * ease)
		})
		next.Ease = cur.Ease
	case domain.GradeEasy:
		next.Reps = cur.Reps + 1
		next.IntervalDays = intervalForReps(cur, next.Reps, 2, 5, func(interval int, ease float64) int {
			return ceilDays(float64(interval) * ease * 1.3)
		})
		next.Ease = clampEase(cur.Ease+0.10, cfg)
	}

	next.Due = now.Add(time.Duration(next.IntervalDays) * 24 * time.Hour)
	return next
}

// intervalForReps implements the table's "if reps=0: a; elif reps=1: b;
// else: formula(interval, ease)" shape shared by grades 1-3.
func intervalForReps(cur domain.SRSState, newReps, firstInterval, secondInterval int, formula func(interval int, ease float64) int) int {
	switch {
	case cur.Reps == 0:
		return firstInterval
	case cur.Reps == 1:
		return secondInterval
	default:
		return formula(cur.IntervalDays, cur.Ease)
	}
}

func ceilDays(v float64) int {
	return int(math.Ceil(v))
}

func clampEase(ease float64, cfg domain.SRSConfig) float64 {
	minEase, maxEase := cfg.MinEase, cfg.MaxEase
	if minEase == 0 {
		minEase = domain.MinEase
	}
	if maxEase == 0 {
		maxEase = domain.MaxEase
	}
	if ease < minEase {
		return minEase
	}
	if ease > maxEase {
		return maxEase
	}
	return ease
}
