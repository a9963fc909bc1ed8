package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/heartmarshall/wordflow-backend/internal/domain"
)

// CreateWordbook inserts a new wordbook (§4.1). name is not declared unique
// by the schema beyond SQLite's default rowid semantics, so duplicate names
// are allowed at the storage layer — §3 only requires the name to be unique
// "per active set", which ActivateWordbook enforces by construction (at most
// one active row).
func (s *Store) CreateWordbook(ctx context.Context, in domain.CreateWordbookInput) (*domain.Wordbook, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	q := QuerierFromCtx(ctx, s.db)

	res, err := q.ExecContext(ctx, `
		INSERT INTO wordbooks (name, language, description, author, version, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?)`,
		in.Name, in.Language, in.Description, in.Author, in.Version, formatTime(now), formatTime(now))
	if err != nil {
		return nil, mapError(err, "wordbook", in.Name)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("wordbook %s: last insert id: %w", in.Name, err)
	}

	return s.GetWordbook(ctx, int(id))
}

// GetWordbook fetches a wordbook by id.
func (s *Store) GetWordbook(ctx context.Context, id int) (*domain.Wordbook, error) {
	q := QuerierFromCtx(ctx, s.db)
	row := q.QueryRowContext(ctx, `
		SELECT id, name, language, description, author, version, is_active, created_at, updated_at
		FROM wordbooks WHERE id = ?`, id)
	return scanWordbook(row, id)
}

// ListWordbooks returns all wordbooks ordered by id.
func (s *Store) ListWordbooks(ctx context.Context) ([]domain.Wordbook, error) {
	q := QuerierFromCtx(ctx, s.db)
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, language, description, author, version, is_active, created_at, updated_at
		FROM wordbooks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list wordbooks: %w", err)
	}
	defer rows.Close()

	var out []domain.Wordbook
	for rows.Next() {
		wb, err := scanWordbookRow(rows)
		if err != nil {
			return nil, fmt.Errorf("list wordbooks: %w", err)
		}
		out = append(out, wb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list wordbooks: %w", err)
	}
	if out == nil {
		out = []domain.Wordbook{}
	}
	return out, nil
}

// ActiveWordbook returns the currently active wordbook, or ErrNotFound if none is.
func (s *Store) ActiveWordbook(ctx context.Context) (*domain.Wordbook, error) {
	q := QuerierFromCtx(ctx, s.db)
	row := q.QueryRowContext(ctx, `
		SELECT id, name, language, description, author, version, is_active, created_at, updated_at
		FROM wordbooks WHERE is_active = 1`)
	return scanWordbook(row, "active")
}

// ActivateWordbook atomically makes id the sole active wordbook (§4.1).
func (s *Store) ActivateWordbook(ctx context.Context, id int) (*domain.Wordbook, error) {
	var result *domain.Wordbook
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		q := QuerierFromCtx(ctx, s.db)

		if _, err := q.ExecContext(ctx, `UPDATE wordbooks SET is_active = 0, updated_at = ? WHERE is_active = 1`, formatTime(time.Now())); err != nil {
			return fmt.Errorf("deactivate current wordbook: %w", err)
		}

		res, err := q.ExecContext(ctx, `UPDATE wordbooks SET is_active = 1, updated_at = ? WHERE id = ?`, formatTime(time.Now()), id)
		if err != nil {
			return mapError(err, "wordbook", id)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("wordbook %d: rows affected: %w", id, err)
		}
		if n == 0 {
			return fmt.Errorf("wordbook %d: %w", id, domain.ErrNotFound)
		}

		result, err = s.GetWordbook(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteWordbook removes an inactive wordbook and cascades to its words,
// cards, SRS states, reviews, and import jobs (§3: "deleted only when
// is_active = false").
func (s *Store) DeleteWordbook(ctx context.Context, id int) error {
	wb, err := s.GetWordbook(ctx, id)
	if err != nil {
		return err
	}
	if wb.IsActive {
		return domain.NewPreconditionError("cannot delete the active wordbook")
	}

	q := QuerierFromCtx(ctx, s.db)
	res, err := q.ExecContext(ctx, `DELETE FROM wordbooks WHERE id = ?`, id)
	if err != nil {
		return mapError(err, "wordbook", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("wordbook %d: rows affected: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("wordbook %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// WordbookStats aggregates per-wordbook word counts (§6 GET /wordbooks/{id}/stats).
func (s *Store) WordbookStats(ctx context.Context, id int) (*domain.WordbookStats, error) {
	wb, err := s.GetWordbook(ctx, id)
	if err != nil {
		return nil, err
	}

	q := QuerierFromCtx(ctx, s.db)
	stats := &domain.WordbookStats{
		Wordbook: *wb,
		ByCEFR:   map[domain.CEFR]int{},
		ByPOS:    map[string]int{},
		ByLesson: map[string]int{},
	}

	if err := q.QueryRowContext(ctx, `SELECT count(*) FROM words WHERE wordbook_id = ?`, id).Scan(&stats.Total); err != nil {
		return nil, fmt.Errorf("wordbook %d stats: total: %w", id, err)
	}

	if err := scanGroupCounts(ctx, q, `SELECT cefr, count(*) FROM words WHERE wordbook_id = ? GROUP BY cefr`, id, func(k string, v int) {
		stats.ByCEFR[domain.CEFR(k)] = v
	}); err != nil {
		return nil, fmt.Errorf("wordbook %d stats: by cefr: %w", id, err)
	}
	if err := scanGroupCounts(ctx, q, `SELECT pos, count(*) FROM words WHERE wordbook_id = ? GROUP BY pos`, id, func(k string, v int) {
		stats.ByPOS[k] = v
	}); err != nil {
		return nil, fmt.Errorf("wordbook %d stats: by pos: %w", id, err)
	}
	if err := scanGroupCounts(ctx, q, `SELECT lesson, count(*) FROM words WHERE wordbook_id = ? GROUP BY lesson`, id, func(k string, v int) {
		stats.ByLesson[k] = v
	}); err != nil {
		return nil, fmt.Errorf("wordbook %d stats: by lesson: %w", id, err)
	}

	return stats, nil
}

func scanGroupCounts(ctx context.Context, q Querier, query string, id int, assign func(string, int)) error {
	rows, err := q.QueryContext(ctx, query, id)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return err
		}
		assign(key, count)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWordbook(row rowScanner, id any) (*domain.Wordbook, error) {
	wb, err := scanWordbookFields(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("wordbook %v: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("wordbook %v: %w", id, err)
	}
	return &wb, nil
}

func scanWordbookRow(rows *sql.Rows) (domain.Wordbook, error) {
	return scanWordbookFields(rows)
}

func scanWordbookFields(row rowScanner) (domain.Wordbook, error) {
	var (
		wb                   domain.Wordbook
		isActive             int
		createdAt, updatedAt string
	)
	if err := row.Scan(&wb.ID, &wb.Name, &wb.Language, &wb.Description, &wb.Author, &wb.Version,
		&isActive, &createdAt, &updatedAt); err != nil {
		return domain.Wordbook{}, err
	}
	wb.IsActive = isActive != 0
	wb.CreatedAt = parseTime(createdAt)
	wb.UpdatedAt = parseTime(updatedAt)
	return wb, nil
}
