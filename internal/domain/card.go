package domain

import "time"

// Card is a quizzable unit derived from a Word. A word may have zero or more
// cards; the default import creates exactly one "basic" card. A card's
// lifetime is coupled to its word (cascade delete, enforced at the schema
// level via ON DELETE CASCADE — see adapter/store/migrations).
type Card struct {
	ID       int
	WordID   int
	Template CardTemplate
	Hint     string
	Tags     []string
}

// SRSState is the spaced-repetition tuple for one card (§3, §4.6). Exactly
// one row exists per card once the card has entered the scheduler.
type SRSState struct {
	CardID         int
	Algo           SRSAlgo
	Due            time.Time
	IntervalDays   int
	Ease           float64
	Reps           int
	Lapses         int
	LastGrade      *ReviewGrade
	FirstSeenAt    time.Time
	LastReviewedAt *time.Time
}

// IsNew reports whether the card has never been reviewed (§3: "reps = 0 ⇒
// the card is new").
func (s SRSState) IsNew() bool { return s.Reps == 0 }

// IsLeech reports whether the card meets the leech threshold (§4.5, §4.6, §8).
func (s SRSState) IsLeech() bool { return s.Lapses >= LeechThreshold }

// IsDue reports whether the card is due for review at the given instant.
// Per §4.5, the Due set additionally requires reps > 0 — brand-new cards
// are scheduled via the New set, not Due.
func (s SRSState) IsDue(now time.Time) bool {
	return s.Reps > 0 && !s.Due.After(now)
}

// LeechThreshold is the lapses count at which a card is tagged "leech" on
// its Word (§3, §8: "lapses transitioning from 7 → 8 adds the leech tag
// exactly once").
const LeechThreshold = 8

// NewSRSState builds the default tuple for a card entering the scheduler for
// the first time (§3: "lazily created... with (reps=0, interval=0, ease=2.5, due=now)").
func NewSRSState(cardID int, now time.Time) SRSState {
	return SRSState{
		CardID:       cardID,
		Algo:         SRSAlgoSM2,
		Due:          now,
		IntervalDays: 0,
		Ease:         DefaultEase,
		Reps:         0,
		Lapses:       0,
		FirstSeenAt:  now,
	}
}

// DefaultEase and the ease bounds referenced throughout §4.6's update table.
const (
	DefaultEase = 2.5
	MinEase     = 1.3
	MaxEase     = 3.5
)

// SRSConfig carries the tunable ease bounds and leech threshold for the srs
// service (§4.6). A zero value falls back to the package defaults above.
type SRSConfig struct {
	DefaultEase    float64
	MinEase        float64
	MaxEase        float64
	LeechThreshold int
}

// Review is an immutable, append-only record of one grading event (§3).
type Review struct {
	ID           int
	CardID       int
	Ts           time.Time
	Grade        ReviewGrade
	ElapsedMs    *int
	PrevInterval int
	NewInterval  int
}
