package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/heartmarshall/wordflow-backend/internal/domain"
)

// fakeStore is a minimal in-memory stand-in for the store interface this
// package needs, following the teacher's narrow-interface-plus-fake-struct
// testing idiom (no database in pure composition tests).
type fakeStore struct {
	wordbook *domain.Wordbook
	cards    []domain.Card
	words    []domain.Word
	srs      map[int]domain.SRSState
	reviews  []domain.Review
}

func (f *fakeStore) ActiveWordbook(ctx context.Context) (*domain.Wordbook, error) {
	if f.wordbook == nil {
		return nil, domain.ErrNotFound
	}
	return f.wordbook, nil
}

func (f *fakeStore) GetWordbook(ctx context.Context, id int) (*domain.Wordbook, error) {
	if f.wordbook == nil || f.wordbook.ID != id {
		return nil, domain.ErrNotFound
	}
	return f.wordbook, nil
}

func (f *fakeStore) CardsForWordbook(ctx context.Context, wordbookID int) ([]domain.Card, []domain.Word, error) {
	return f.cards, f.words, nil
}

func (f *fakeStore) SRSStatesForWordbook(ctx context.Context, wordbookID int) (map[int]domain.SRSState, error) {
	return f.srs, nil
}

func (f *fakeStore) ReviewsOnDate(ctx context.Context, day time.Time) ([]domain.Review, error) {
	var out []domain.Review
	want := dateOnly(day)
	for _, r := range f.reviews {
		if dateOnly(r.Ts).Equal(want) {
			out = append(out, r)
		}
	}
	return out, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testService(f *fakeStore) *Service {
	return NewService(testLogger(), f, domain.SchedulerConfig{})
}

func newCardWord(id int, lesson string, createdAt time.Time) (domain.Card, domain.Word) {
	c := domain.Card{ID: id, WordID: id, Template: domain.CardTemplateBasic}
	w := domain.Word{ID: id, Lesson: lesson, CreatedAt: createdAt}
	return c, w
}

// TestNextQueue_SetsAreDisjoint exercises §8's "the three queue sets are
// pairwise disjoint for any inputs" invariant across a mixed population.
func TestNextQueue_SetsAreDisjoint(t *testing.T) {
	now := time.Date(2026, 6, 15, 9, 0, 0, 0, time.UTC)
	f := &fakeStore{wordbook: &domain.Wordbook{ID: 1, IsActive: true}, srs: map[int]domain.SRSState{}}

	// Card 1: due.
	c1, w1 := newCardWord(1, "1", now.AddDate(0, 0, -30))
	f.cards = append(f.cards, c1)
	f.words = append(f.words, w1)
	f.srs[1] = domain.SRSState{CardID: 1, Reps: 2, Due: now.Add(-time.Hour), IntervalDays: 3, Ease: 2.5}

	// Card 2: rolling (first seen exactly 1 day ago, no SRS state yet).
	c2, w2 := newCardWord(2, "1", now.AddDate(0, 0, -1))
	f.cards = append(f.cards, c2)
	f.words = append(f.words, w2)

	// Card 3: fresh/new (just created, no SRS state, not a rolling offset).
	c3, w3 := newCardWord(3, "2", now)
	f.cards = append(f.cards, c3)
	f.words = append(f.words, w3)

	wordByID := map[int]domain.Word{1: w1, 2: w2, 3: w3}
	due, rolling, fresh := splitSets(f.cards, wordByID, f.srs, now)

	if len(due) != 1 || due[0].card.ID != 1 {
		t.Fatalf("due = %+v, want exactly card 1", due)
	}
	if len(rolling) != 1 || rolling[0].card.ID != 2 {
		t.Fatalf("rolling = %+v, want exactly card 2", rolling)
	}
	if len(fresh) != 1 || fresh[0].card.ID != 3 {
		t.Fatalf("fresh = %+v, want exactly card 3", fresh)
	}

	seen := map[int]bool{}
	for _, group := range [][]candidate{due, rolling, fresh} {
		for _, c := range group {
			if seen[c.card.ID] {
				t.Fatalf("card %d appears in more than one set", c.card.ID)
			}
			seen[c.card.ID] = true
		}
	}
}

// TestNextQueue_RollingExcludesDueCard: a card whose SRS state is due takes
// priority over the rolling-window rule even if its first-exposure date also
// matches a rolling offset (§4.5 step 2: "not already in Due").
func TestNextQueue_RollingExcludesDueCard(t *testing.T) {
	now := time.Date(2026, 6, 15, 9, 0, 0, 0, time.UTC)
	c, w := newCardWord(1, "1", now.AddDate(0, 0, -1)) // first seen 1 day ago: a rolling offset
	srs := map[int]domain.SRSState{1: {CardID: 1, Reps: 1, Due: now.Add(-time.Minute)}}

	due, rolling, fresh := splitSets([]domain.Card{c}, map[int]domain.Word{1: w}, srs, now)
	if len(due) != 1 || len(rolling) != 0 || len(fresh) != 0 {
		t.Fatalf("due=%d rolling=%d fresh=%d, want due=1 rolling=0 fresh=0", len(due), len(rolling), len(fresh))
	}
}

// TestNextQueue_RollingOffsetThreeIsNotIncluded matches §8 scenario 4: "on
// t0+3d it does not appear via the rolling rule" (3 is not in {1,2,4,7}).
func TestNextQueue_RollingOffsetThreeIsNotIncluded(t *testing.T) {
	now := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	c, w := newCardWord(1, "1", now.AddDate(0, 0, -3))

	_, rolling, fresh := splitSets([]domain.Card{c}, map[int]domain.Word{1: w}, map[int]domain.SRSState{}, now)
	if len(rolling) != 0 {
		t.Fatalf("rolling = %+v, want empty at offset 3", rolling)
	}
	if len(fresh) != 1 {
		t.Fatalf("fresh = %+v, want the card to fall through to New", fresh)
	}
}

// TestAdaptiveNewCap matches §8 scenario 5: |Due|=80, limit=30, new_limit=10
// shrinks the effective new_limit to 0 or below (clamped at 0).
func TestAdaptiveNewCap(t *testing.T) {
	got := adaptiveNewCap(80, 30, 10)
	if got != 0 {
		t.Fatalf("adaptiveNewCap(80,30,10) = %d, want 0", got)
	}
}

func TestAdaptiveNewCap_NoBacklogLeavesLimitUnchanged(t *testing.T) {
	got := adaptiveNewCap(10, 30, 10)
	if got != 10 {
		t.Fatalf("adaptiveNewCap(10,30,10) = %d, want unchanged 10", got)
	}
}

func TestAdaptiveNewCap_GradualReduction(t *testing.T) {
	// threshold = 2*limit = 20; overflow = 45-20 = 25; ceil(25/10) = 3.
	got := adaptiveNewCap(45, 10, 10)
	if got != 7 {
		t.Fatalf("adaptiveNewCap(45,10,10) = %d, want 7", got)
	}
}

// TestComposeQueue_PriorityAndTruncation checks Due > Rolling > New ordering
// and that New is capped before the final limit truncation (§4.5).
func TestComposeQueue_PriorityAndTruncation(t *testing.T) {
	due := []candidate{{card: domain.Card{ID: 1}}, {card: domain.Card{ID: 2}}}
	rolling := []candidate{{card: domain.Card{ID: 3}, offset: 1}}
	fresh := []candidate{{card: domain.Card{ID: 4}}, {card: domain.Card{ID: 5}}, {card: domain.Card{ID: 6}}}

	out := composeQueue(due, rolling, fresh, 4, 1, true)
	if len(out) != 4 {
		t.Fatalf("len(out) = %d, want 4 (limit)", len(out))
	}
	wantIDs := []int{1, 2, 3, 4}
	for i, id := range wantIDs {
		if out[i].Card.ID != id {
			t.Fatalf("out[%d].Card.ID = %d, want %d (order %v)", i, out[i].Card.ID, id, out)
		}
	}
	if out[3].Source != domain.QueueSourceNew {
		t.Fatalf("out[3].Source = %v, want new", out[3].Source)
	}
}

func TestComposeQueue_IncludeRollingFalseDropsRollingSet(t *testing.T) {
	due := []candidate{{card: domain.Card{ID: 1}}}
	rolling := []candidate{{card: domain.Card{ID: 2}, offset: 1}}

	out := composeQueue(due, rolling, nil, 10, 10, false)
	if len(out) != 1 || out[0].Card.ID != 1 {
		t.Fatalf("composeQueue with includeRolling=false = %+v, want only card 1", out)
	}
}

// TestNextQueue_LimitZero matches §8's boundary: "limit=0 -> empty cards, but
// queueStats still populated".
func TestNextQueue_LimitZero(t *testing.T) {
	now := time.Date(2026, 6, 15, 9, 0, 0, 0, time.UTC)
	c, w := newCardWord(1, "1", now)
	f := &fakeStore{
		wordbook: &domain.Wordbook{ID: 1, IsActive: true},
		cards:    []domain.Card{c},
		words:    []domain.Word{w},
		srs:      map[int]domain.SRSState{},
	}

	result, err := testService(f).NextQueue(context.Background(), domain.QueueOptions{Limit: 0, NewLimit: 10, Now: now})
	if err != nil {
		t.Fatalf("NextQueue() error = %v", err)
	}
	if len(result.Cards) != 0 {
		t.Fatalf("len(result.Cards) = %d, want 0", len(result.Cards))
	}
	if result.Stats.NewCount != 1 {
		t.Fatalf("result.Stats.NewCount = %d, want 1 (stats still populated)", result.Stats.NewCount)
	}
}

// TestNextQueue_NoActiveWordbookIsEmpty matches §4.5's failure semantics: no
// active wordbook means an empty queue with study_queue_size=0, not an error.
func TestNextQueue_NoActiveWordbookIsEmpty(t *testing.T) {
	f := &fakeStore{srs: map[int]domain.SRSState{}}

	result, err := testService(f).NextQueue(context.Background(), domain.DefaultQueueOptions())
	if err != nil {
		t.Fatalf("NextQueue() error = %v, want nil (empty queue instead)", err)
	}
	if len(result.Cards) != 0 || result.Stats.StudyQueueSize != 0 {
		t.Fatalf("result = %+v, want empty cards and zero study_queue_size", result)
	}
}

// TestNextQueue_ReviewedTodayCountsOnlyTodaysReviews sanity-checks the
// reviewed_today stat against a mixed review history.
func TestNextQueue_ReviewedTodayCountsOnlyTodaysReviews(t *testing.T) {
	now := time.Date(2026, 6, 15, 9, 0, 0, 0, time.UTC)
	f := &fakeStore{
		wordbook: &domain.Wordbook{ID: 1, IsActive: true},
		srs:      map[int]domain.SRSState{},
		reviews: []domain.Review{
			{ID: 1, CardID: 1, Ts: now},
			{ID: 2, CardID: 1, Ts: now.Add(-2 * time.Hour)},
			{ID: 3, CardID: 1, Ts: now.AddDate(0, 0, -1)},
		},
	}

	result, err := testService(f).NextQueue(context.Background(), domain.QueueOptions{Limit: 30, NewLimit: 10, Now: now})
	if err != nil {
		t.Fatalf("NextQueue() error = %v", err)
	}
	if result.Stats.ReviewedToday != 2 {
		t.Fatalf("ReviewedToday = %d, want 2", result.Stats.ReviewedToday)
	}
}
