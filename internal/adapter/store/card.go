package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/heartmarshall/wordflow-backend/internal/domain"
)

// GetCard fetches a card by id.
func (s *Store) GetCard(ctx context.Context, id int) (*domain.Card, error) {
	q := QuerierFromCtx(ctx, s.db)
	row := q.QueryRowContext(ctx, `SELECT id, word_id, template, hint, tags FROM cards WHERE id = ?`, id)
	return scanCard(row, id)
}

// CardsForWordbook returns every card belonging to words in a wordbook,
// joined with their owning word — the shape Scheduler needs to build its
// three disjoint sets (§4.5).
func (s *Store) CardsForWordbook(ctx context.Context, wordbookID int) ([]domain.Card, []domain.Word, error) {
	q := QuerierFromCtx(ctx, s.db)
	rows, err := q.QueryContext(ctx, `
		SELECT c.id, c.word_id, c.template, c.hint, c.tags,
		       w.id, w.wordbook_id, w.lemma, w.pos, w.gender, w.ipa, w.meaning_text,
		       w.translations, w.lesson, w.cefr, w.tags, w.created_at, w.updated_at
		FROM cards c
		JOIN words w ON w.id = c.word_id
		WHERE w.wordbook_id = ?`, wordbookID)
	if err != nil {
		return nil, nil, fmt.Errorf("cards for wordbook %d: %w", wordbookID, err)
	}
	defer rows.Close()

	var cards []domain.Card
	var words []domain.Word
	for rows.Next() {
		var (
			c                          domain.Card
			hint, cardTags             string
			template                   string
			w                          domain.Word
			gender, translations, tags string
			createdAt, updatedAt       string
		)
		if err := rows.Scan(&c.ID, &c.WordID, &template, &hint, &cardTags,
			&w.ID, &w.WordbookID, &w.Lemma, &w.POS, &gender, &w.IPA, &w.MeaningText,
			&translations, &w.Lesson, &w.CEFR, &tags, &createdAt, &updatedAt); err != nil {
			return nil, nil, fmt.Errorf("scan card/word row: %w", err)
		}
		c.Template = domain.CardTemplate(template)
		c.Hint = hint
		c.Tags = decodeTags(cardTags)
		w.Gender = domain.Gender(gender)
		w.Translations = decodeTranslations(translations)
		w.Tags = decodeTags(tags)
		w.CreatedAt = parseTime(createdAt)
		w.UpdatedAt = parseTime(updatedAt)
		cards = append(cards, c)
		words = append(words, w)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate cards for wordbook %d: %w", wordbookID, err)
	}
	return cards, words, nil
}

// GetSRSState returns a card's SRS tuple, or ErrNotFound if the card has
// never entered the scheduler (§4.1, §4.6).
func (s *Store) GetSRSState(ctx context.Context, cardID int) (*domain.SRSState, error) {
	q := QuerierFromCtx(ctx, s.db)
	row := q.QueryRowContext(ctx, `
		SELECT card_id, algo, due, interval_days, ease, reps, lapses, last_grade, first_seen_at, last_reviewed_at
		FROM srs_states WHERE card_id = ?`, cardID)
	return scanSRSState(row, cardID)
}

// SRSStatesForWordbook returns every SRS row for cards in a wordbook, keyed
// by card_id, for Scheduler's Due/Rolling split (§4.5).
func (s *Store) SRSStatesForWordbook(ctx context.Context, wordbookID int) (map[int]domain.SRSState, error) {
	q := QuerierFromCtx(ctx, s.db)
	rows, err := q.QueryContext(ctx, `
		SELECT s.card_id, s.algo, s.due, s.interval_days, s.ease, s.reps, s.lapses, s.last_grade, s.first_seen_at, s.last_reviewed_at
		FROM srs_states s
		JOIN cards c ON c.id = s.card_id
		JOIN words w ON w.id = c.word_id
		WHERE w.wordbook_id = ?`, wordbookID)
	if err != nil {
		return nil, fmt.Errorf("srs states for wordbook %d: %w", wordbookID, err)
	}
	defer rows.Close()

	out := map[int]domain.SRSState{}
	for rows.Next() {
		st, err := scanSRSStateRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan srs state: %w", err)
		}
		out[st.CardID] = st
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate srs states for wordbook %d: %w", wordbookID, err)
	}
	return out, nil
}

// PutSRSState upserts a card's SRS tuple and AppendReview appends its review
// record; §4.6/§5 require these to commit atomically, so SRS.Apply calls
// PutSRSStateAndReview rather than the two primitives separately.
func (s *Store) PutSRSState(ctx context.Context, st domain.SRSState) error {
	q := QuerierFromCtx(ctx, s.db)
	_, err := q.ExecContext(ctx, `
		INSERT INTO srs_states (card_id, algo, due, interval_days, ease, reps, lapses, last_grade, first_seen_at, last_reviewed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (card_id) DO UPDATE SET
			algo = excluded.algo, due = excluded.due, interval_days = excluded.interval_days,
			ease = excluded.ease, reps = excluded.reps, lapses = excluded.lapses,
			last_grade = excluded.last_grade, last_reviewed_at = excluded.last_reviewed_at`,
		st.CardID, string(st.Algo), formatTime(st.Due), st.IntervalDays, st.Ease, st.Reps, st.Lapses,
		gradePtrToInt(st.LastGrade), formatTime(st.FirstSeenAt), formatTimePtr(st.LastReviewedAt))
	if err != nil {
		return mapError(err, "srs_state", st.CardID)
	}
	return nil
}

// AppendReview inserts an immutable review record (§3).
func (s *Store) AppendReview(ctx context.Context, r domain.Review) (*domain.Review, error) {
	q := QuerierFromCtx(ctx, s.db)
	var elapsedMs any
	if r.ElapsedMs != nil {
		elapsedMs = int64(*r.ElapsedMs)
	}
	res, err := q.ExecContext(ctx, `
		INSERT INTO reviews (card_id, ts, grade, elapsed_ms, prev_interval, new_interval)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.CardID, formatTime(r.Ts), int(r.Grade), elapsedMs, r.PrevInterval, r.NewInterval)
	if err != nil {
		return nil, mapError(err, "review", r.CardID)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("review for card %d: last insert id: %w", r.CardID, err)
	}
	r.ID = int(id)
	return &r, nil
}

// PutSRSStateAndReview runs PutSRSState and AppendReview in one transaction
// (§4.6: "Append a Review row... in the same transaction as PutSRSState";
// §5: "AppendReview and PutSRSState are atomic").
func (s *Store) PutSRSStateAndReview(ctx context.Context, st domain.SRSState, r domain.Review) (*domain.Review, error) {
	var saved *domain.Review
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.PutSRSState(ctx, st); err != nil {
			return err
		}
		var err error
		saved, err = s.AppendReview(ctx, r)
		return err
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// ReviewsOnDate returns all reviews whose ts falls on the given UTC day,
// used by Scheduler.queueStats.reviewed_today and Stats.Today (§4.5, §4.7).
func (s *Store) ReviewsOnDate(ctx context.Context, day time.Time) ([]domain.Review, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	return s.reviewsBetween(ctx, start, end)
}

// ReviewsSince returns all reviews at or after since, ordered by ts, for
// Stats.Progress's per-day bucketing (§4.7).
func (s *Store) ReviewsSince(ctx context.Context, since time.Time) ([]domain.Review, error) {
	return s.reviewsBetween(ctx, since, time.Now().UTC().Add(24*time.Hour))
}

func (s *Store) reviewsBetween(ctx context.Context, start, end time.Time) ([]domain.Review, error) {
	q := QuerierFromCtx(ctx, s.db)
	rows, err := q.QueryContext(ctx, `
		SELECT id, card_id, ts, grade, elapsed_ms, prev_interval, new_interval
		FROM reviews WHERE ts >= ? AND ts < ? ORDER BY ts`,
		formatTime(start), formatTime(end))
	if err != nil {
		return nil, fmt.Errorf("reviews between %s and %s: %w", start, end, err)
	}
	defer rows.Close()

	var out []domain.Review
	for rows.Next() {
		var (
			r         domain.Review
			grade     int
			ts        string
			elapsedMs sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.CardID, &ts, &grade, &elapsedMs, &r.PrevInterval, &r.NewInterval); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		r.Ts = parseTime(ts)
		r.Grade = domain.ReviewGrade(grade)
		if elapsedMs.Valid {
			v := int(elapsedMs.Int64)
			r.ElapsedMs = &v
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reviews: %w", err)
	}
	if out == nil {
		out = []domain.Review{}
	}
	return out, nil
}

func gradePtrToInt(g *domain.ReviewGrade) *int {
	if g == nil {
		return nil
	}
	v := int(*g)
	return &v
}

func scanCard(row rowScanner, id any) (*domain.Card, error) {
	var (
		c        domain.Card
		template string
		tags     string
	)
	if err := row.Scan(&c.ID, &c.WordID, &template, &c.Hint, &tags); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("card %v: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("card %v: %w", id, err)
	}
	c.Template = domain.CardTemplate(template)
	c.Tags = decodeTags(tags)
	return &c, nil
}

func scanSRSState(row rowScanner, id any) (*domain.SRSState, error) {
	st, err := scanSRSStateFields(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("srs_state %v: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("srs_state %v: %w", id, err)
	}
	return &st, nil
}

func scanSRSStateRow(rows *sql.Rows) (domain.SRSState, error) {
	return scanSRSStateFields(rows)
}

func scanSRSStateFields(row rowScanner) (domain.SRSState, error) {
	var (
		st                         domain.SRSState
		algo, due, firstSeenAt     string
		lastReviewedAt             sql.NullString
		lastGrade                  sql.NullInt64
	)
	if err := row.Scan(&st.CardID, &algo, &due, &st.IntervalDays, &st.Ease, &st.Reps, &st.Lapses,
		&lastGrade, &firstSeenAt, &lastReviewedAt); err != nil {
		return domain.SRSState{}, err
	}
	st.Algo = domain.SRSAlgo(algo)
	st.Due = parseTime(due)
	st.FirstSeenAt = parseTime(firstSeenAt)
	if lastReviewedAt.Valid {
		t := parseTime(lastReviewedAt.String)
		st.LastReviewedAt = &t
	}
	if lastGrade.Valid {
		g := domain.ReviewGrade(lastGrade.Int64)
		st.LastGrade = &g
	}
	return st, nil
}
