// Package search is the thin §4.4 façade over Store's query methods. The
// ranking and prefix-match logic already lives in adapter/store (it needs
// the FTS5 virtual table), so this service only normalizes filters and
// forwards — the same "service wraps one store method" shape the teacher
// uses for its own read-only lookups.
package search

import (
	"context"
	"fmt"

	"github.com/heartmarshall/wordflow-backend/internal/domain"
)

type store interface {
	QueryWords(ctx context.Context, filter domain.WordFilter) ([]domain.Word, int, error)
	SuggestLemmas(ctx context.Context, wordbookID *int, q string, limit int) ([]string, error)
}

// Service answers §4.4's two query modes.
type Service struct {
	store store
}

func New(st store) *Service {
	return &Service{store: st}
}

// Search runs a filtered, optionally ranked query over words (§4.4).
func (s *Service) Search(ctx context.Context, filter domain.WordFilter) ([]domain.Word, int, error) {
	words, total, err := s.store.QueryWords(ctx, filter.Normalize())
	if err != nil {
		return nil, 0, fmt.Errorf("search: %w", err)
	}
	return words, total, nil
}

// Suggest returns up to limit lemma completions for q (§4.4 prefix suggest).
func (s *Service) Suggest(ctx context.Context, wordbookID *int, q string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 50 {
		limit = 50
	}
	lemmas, err := s.store.SuggestLemmas(ctx, wordbookID, q, limit)
	if err != nil {
		return nil, fmt.Errorf("suggest: %w", err)
	}
	return lemmas, nil
}
