package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel" // dynamic WHERE/ORDER builder for QueryWords (§4.4)

	"github.com/heartmarshall/wordflow-backend/internal/domain"
)

var sq = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)

// UpsertWord inserts a normalized word, skipping when (wordbook_id, lemma,
// pos) already exists (§4.1). Writes are serialized per wordbook (§5).
func (s *Store) UpsertWord(ctx context.Context, wordbookID int, n domain.NormalizedWord) (domain.UpsertResult, error) {
	lock := s.wordbookLock(wordbookID)
	lock.Lock()
	defer lock.Unlock()

	return s.upsertWordLocked(ctx, wordbookID, n)
}

func (s *Store) upsertWordLocked(ctx context.Context, wordbookID int, n domain.NormalizedWord) (domain.UpsertResult, error) {
	lemma := domain.NormalizeLemma(n.Lemma)
	if lemma == "" {
		return domain.UpsertResult{}, domain.NewValidationError("lemma", "required")
	}

	translations, err := encodeJSON(n.Translations)
	if err != nil {
		return domain.UpsertResult{}, fmt.Errorf("encode translations: %w", err)
	}
	tags, err := encodeJSON(n.Tags)
	if err != nil {
		return domain.UpsertResult{}, fmt.Errorf("encode tags: %w", err)
	}

	now := formatTime(time.Now())
	q := QuerierFromCtx(ctx, s.db)

	res, err := q.ExecContext(ctx, `
		INSERT INTO words (wordbook_id, lemma, pos, gender, ipa, meaning_text, translations, translations_text, lesson, cefr, tags, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (wordbook_id, lemma, pos) DO NOTHING`,
		wordbookID, lemma, n.POS, string(n.Gender), n.IPA, n.MeaningText(), translations, n.TranslationsText(), n.Lesson, string(n.CEFR), tags, now, now)
	if err != nil {
		return domain.UpsertResult{}, mapError(err, "word", lemma)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return domain.UpsertResult{}, fmt.Errorf("word %s: rows affected: %w", lemma, err)
	}
	if rowsAffected == 0 {
		// conflict → skipped; find the existing id for the caller.
		var id int
		err := q.QueryRowContext(ctx, `SELECT id FROM words WHERE wordbook_id = ? AND lemma = ? AND pos = ?`,
			wordbookID, lemma, n.POS).Scan(&id)
		if err != nil {
			return domain.UpsertResult{}, fmt.Errorf("word %s: lookup after skip: %w", lemma, err)
		}
		return domain.UpsertResult{Inserted: false, WordID: id}, nil
	}

	id, err := res.LastInsertId()
	if err != nil {
		return domain.UpsertResult{}, fmt.Errorf("word %s: last insert id: %w", lemma, err)
	}
	return domain.UpsertResult{Inserted: true, WordID: int(id)}, nil
}

// BulkUpsertWords upserts a batch in a single transaction (§4.1: "single
// transaction per batch of ≤ N"). Per-row failures are reported but do not
// abort the batch; the successful rows in the batch still commit.
func (s *Store) BulkUpsertWords(ctx context.Context, wordbookID int, batch []domain.NormalizedWord) (domain.BulkUpsertResult, []domain.UpsertResult, error) {
	lock := s.wordbookLock(wordbookID)
	lock.Lock()
	defer lock.Unlock()

	var result domain.BulkUpsertResult
	results := make([]domain.UpsertResult, 0, len(batch))

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		for i, n := range batch {
			r, err := s.upsertWordLocked(ctx, wordbookID, n)
			if err != nil {
				var ve *domain.ValidationError
				if errors.As(err, &ve) || errors.Is(err, domain.ErrValidation) {
					result.Failed = append(result.Failed, domain.RowError{Row: i, Reason: err.Error()})
					results = append(results, domain.UpsertResult{})
					continue
				}
				return err // transient/fatal: abort the whole batch, caller retries
			}
			results = append(results, r)
			if r.Inserted {
				result.Inserted++
			} else {
				result.Skipped++
			}
		}
		return nil
	})
	if err != nil {
		return domain.BulkUpsertResult{}, nil, fmt.Errorf("bulk upsert words: %w", err)
	}

	return result, results, nil
}

// CreateCardIfMissing creates a "basic" (or other template) card for a word,
// idempotent on (word_id, template) (§4.1).
func (s *Store) CreateCardIfMissing(ctx context.Context, wordID int, template domain.CardTemplate) (*domain.Card, error) {
	q := QuerierFromCtx(ctx, s.db)

	var existingID int
	err := q.QueryRowContext(ctx, `SELECT id FROM cards WHERE word_id = ? AND template = ?`, wordID, string(template)).Scan(&existingID)
	if err == nil {
		return s.GetCard(ctx, existingID)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, mapError(err, "card", wordID)
	}

	tags, _ := encodeJSON([]string{})
	res, err := q.ExecContext(ctx, `INSERT INTO cards (word_id, template, hint, tags) VALUES (?, ?, '', ?)`,
		wordID, string(template), tags)
	if err != nil {
		return nil, mapError(err, "card", wordID)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("card for word %d: last insert id: %w", wordID, err)
	}
	return s.GetCard(ctx, int(id))
}

// GetWord fetches a word by id.
func (s *Store) GetWord(ctx context.Context, id int) (*domain.Word, error) {
	q := QuerierFromCtx(ctx, s.db)
	row := q.QueryRowContext(ctx, `
		SELECT id, wordbook_id, lemma, pos, gender, ipa, meaning_text, translations, lesson, cefr, tags, created_at, updated_at
		FROM words WHERE id = ?`, id)
	return scanWord(row, id)
}

// AddWordTag appends tag to a word's tag list, idempotently (used by
// srs.Service.Apply to apply the "leech" tag, §4.5).
func (s *Store) AddWordTag(ctx context.Context, wordID int, tag string) error {
	w, err := s.GetWord(ctx, wordID)
	if err != nil {
		return err
	}
	if w.HasTag(tag) {
		return nil
	}
	tags, err := encodeJSON(append(w.Tags, tag))
	if err != nil {
		return fmt.Errorf("word %d: encode tags: %w", wordID, err)
	}
	q := QuerierFromCtx(ctx, s.db)
	_, err = q.ExecContext(ctx, `UPDATE words SET tags = ?, updated_at = ? WHERE id = ?`, tags, formatTime(time.Now()), wordID)
	if err != nil {
		return mapError(err, "word", wordID)
	}
	return nil
}

// QueryWords filters/paginates words (§4.1, §4.4). Dynamic WHERE/ORDER
// construction uses squirrel so adding a filter never means hand-editing a
// string-concatenated query.
func (s *Store) QueryWords(ctx context.Context, filter domain.WordFilter) ([]domain.Word, int, error) {
	filter = filter.Normalize()

	where := squirrel.And{}
	if filter.WordbookID != nil {
		where = append(where, squirrel.Eq{"wordbook_id": *filter.WordbookID})
	}
	if filter.Lesson != "" {
		where = append(where, squirrel.Eq{"lesson": filter.Lesson})
	}
	if filter.CEFR != "" {
		where = append(where, squirrel.Eq{"cefr": string(filter.CEFR)})
	}
	if filter.POS != "" {
		where = append(where, squirrel.Eq{"pos": filter.POS})
	}

	if filter.HasQuery() {
		return s.searchWordsFTS(ctx, where, filter)
	}

	countBuilder := sq.Select("count(*)").From("words")
	if len(where) > 0 {
		countBuilder = countBuilder.Where(where)
	}
	countSQL, countArgs, err := countBuilder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}

	q := QuerierFromCtx(ctx, s.db)
	var total int
	if err := q.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count words: %w", err)
	}

	selectBuilder := sq.Select(wordColumns...).From("words").
		OrderBy("lesson ASC", "lemma ASC").
		Limit(uint64(filter.PerPage)).Offset(uint64(filter.Offset()))
	if len(where) > 0 {
		selectBuilder = selectBuilder.Where(where)
	}
	selectSQL, selectArgs, err := selectBuilder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build select query: %w", err)
	}

	rows, err := q.QueryContext(ctx, selectSQL, selectArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("query words: %w", err)
	}
	defer rows.Close()

	words, err := scanWords(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("scan words: %w", err)
	}
	return words, total, nil
}

var wordColumns = []string{
	"id", "wordbook_id", "lemma", "pos", "gender", "ipa", "meaning_text",
	"translations", "lesson", "cefr", "tags", "created_at", "updated_at",
}

// searchWordsFTS implements the `q`-present branch of §4.4's ranked search:
// bm25 over (lemma:3.0, meanings:1.0), ties broken by lemma ascending.
func (s *Store) searchWordsFTS(ctx context.Context, where squirrel.And, filter domain.WordFilter) ([]domain.Word, int, error) {
	ftsQuery := buildFTSQuery(filter.Q)
	if ftsQuery == "" {
		return []domain.Word{}, 0, nil
	}

	extra := ""
	var extraArgs []any
	if len(where) > 0 {
		sqlPart, args, err := where.ToSql()
		if err != nil {
			return nil, 0, fmt.Errorf("build filter: %w", err)
		}
		extra = " AND " + sqlPart
		extraArgs = args
	}

	q := QuerierFromCtx(ctx, s.db)

	countSQL := `SELECT count(*) FROM words w JOIN words_fts f ON f.rowid = w.id WHERE words_fts MATCH ?` + extra
	var total int
	countArgs := append([]any{ftsQuery}, extraArgs...)
	if err := q.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count fts words: %w", err)
	}

	cols := "w." + strings.Join(wordColumns, ", w.")
	selectSQL := fmt.Sprintf(`
		SELECT %s FROM words w
		JOIN words_fts f ON f.rowid = w.id
		WHERE words_fts MATCH ?%s
		ORDER BY bm25(words_fts, 3.0, 1.0) ASC, w.lemma ASC
		LIMIT ? OFFSET ?`, cols, extra)

	selectArgs := append([]any{ftsQuery}, extraArgs...)
	selectArgs = append(selectArgs, filter.PerPage, filter.Offset())

	rows, err := q.QueryContext(ctx, selectSQL, selectArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("query fts words: %w", err)
	}
	defer rows.Close()

	words, err := scanWords(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("scan fts words: %w", err)
	}
	return words, total, nil
}

// buildFTSQuery translates §4.4's small operator language (trailing `*` =
// prefix, quoted phrase over lemma only, otherwise AND) into an FTS5 MATCH
// expression. Unknown syntax falls back to a plain term match.
func buildFTSQuery(q string) string {
	q = strings.TrimSpace(q)
	if q == "" {
		return ""
	}
	if strings.HasPrefix(q, `"`) && strings.HasSuffix(q, `"`) && len(q) >= 2 {
		phrase := strings.Trim(q, `"`)
		return fmt.Sprintf(`lemma:"%s"`, strings.ReplaceAll(phrase, `"`, `""`))
	}

	tokens := strings.Fields(q)
	parts := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		tok = strings.ReplaceAll(tok, `"`, "")
		if tok == "" {
			continue
		}
		if strings.HasSuffix(tok, "*") {
			parts = append(parts, tok[:len(tok)-1]+"*")
		} else {
			parts = append(parts, tok)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, " AND ")
}

// SearchIndex returns up to limit ranked word hits for the raw query (§4.1).
func (s *Store) SearchIndex(ctx context.Context, query string, limit int) ([]domain.Word, error) {
	words, _, err := s.QueryWords(ctx, domain.WordFilter{Q: query, PerPage: limit, Page: 1})
	return words, err
}

// SuggestLemmas returns up to limit distinct lemma values whose folded form
// has q (folded) as a prefix, ordered by exact-prefix, then length, then
// lexicographic (§4.4: "case-folded, diacritic-insensitive").
//
// The `lemma` column itself is stored case/diacritic-preserving
// (domain.NormalizeLemma), so the prefix comparison cannot be pushed down as
// a raw SQL LIKE — SQLite's LIKE has no accent-folding collation. Instead
// this fetches the (wordbook-scoped) candidate lemmas and folds both sides
// in Go with the same domain.FoldText used for the ordering below, so
// "café" matches query "cafe" exactly as spec requires.
func (s *Store) SuggestLemmas(ctx context.Context, wordbookID *int, q string, limit int) ([]string, error) {
	folded := domain.FoldText(q)
	if folded == "" {
		return []string{}, nil
	}

	builder := sq.Select("DISTINCT lemma").From("words")
	if wordbookID != nil {
		builder = builder.Where(squirrel.Eq{"wordbook_id": *wordbookID})
	}
	sqlStr, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build suggest query: %w", err)
	}

	qr := QuerierFromCtx(ctx, s.db)
	rows, err := qr.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("suggest lemmas: %w", err)
	}
	defer rows.Close()

	seen := map[string]bool{}
	var lemmas []string
	for rows.Next() {
		var lemma string
		if err := rows.Scan(&lemma); err != nil {
			return nil, fmt.Errorf("scan suggestion: %w", err)
		}
		if seen[lemma] || !strings.HasPrefix(domain.FoldText(lemma), folded) {
			continue
		}
		seen[lemma] = true
		lemmas = append(lemmas, lemma)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate suggestions: %w", err)
	}

	sortSuggestions(lemmas, folded)
	if len(lemmas) > limit {
		lemmas = lemmas[:limit]
	}
	return lemmas, nil
}

func sortSuggestions(lemmas []string, folded string) {
	less := func(i, j int) bool {
		a, b := lemmas[i], lemmas[j]
		aExact := domain.FoldText(a) == folded
		bExact := domain.FoldText(b) == folded
		if aExact != bExact {
			return aExact
		}
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		return a < b
	}
	for i := 1; i < len(lemmas); i++ {
		for j := i; j > 0 && less(j, j-1); j-- {
			lemmas[j], lemmas[j-1] = lemmas[j-1], lemmas[j]
		}
	}
}

func scanWords(rows *sql.Rows) ([]domain.Word, error) {
	var out []domain.Word
	for rows.Next() {
		w, err := scanWordFields(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Word{}
	}
	return out, nil
}

func scanWord(row rowScanner, id any) (*domain.Word, error) {
	w, err := scanWordFields(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("word %v: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("word %v: %w", id, err)
	}
	return &w, nil
}

func scanWordFields(row rowScanner) (domain.Word, error) {
	var (
		w                            domain.Word
		gender, translations, tags   string
		createdAt, updatedAt         string
	)
	if err := row.Scan(&w.ID, &w.WordbookID, &w.Lemma, &w.POS, &gender, &w.IPA, &w.MeaningText,
		&translations, &w.Lesson, &w.CEFR, &tags, &createdAt, &updatedAt); err != nil {
		return domain.Word{}, err
	}
	w.Gender = domain.Gender(gender)
	w.Translations = decodeTranslations(translations)
	w.Tags = decodeTags(tags)
	w.CreatedAt = parseTime(createdAt)
	w.UpdatedAt = parseTime(updatedAt)
	return w, nil
}
