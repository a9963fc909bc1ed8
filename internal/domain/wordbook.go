package domain

import "time"

// Wordbook is a named, versioned set of vocabulary. At most one wordbook is
// active at a time (Store.ActivateWordbook swaps the active row, and a partial
// unique index on is_active backs it); write operations that require
// an active book fail with ErrPreconditionFailed when none is active.
type Wordbook struct {
	ID          int
	Name        string
	Language    string // BCP-47 tag, e.g. "fr", "en-US"
	Description string
	Author      string
	Version     string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateWordbookInput is the payload accepted by Store.CreateWordbook.
type CreateWordbookInput struct {
	Name        string
	Language    string
	Description string
	Author      string
	Version     string
}

// Validate checks required fields before the Store attempts an insert.
func (in CreateWordbookInput) Validate() error {
	var fields []FieldError
	if in.Name == "" {
		fields = append(fields, FieldError{Field: "name", Message: "required"})
	}
	if in.Language == "" {
		fields = append(fields, FieldError{Field: "language", Message: "required"})
	}
	if len(fields) > 0 {
		return NewValidationErrors(fields)
	}
	return nil
}

// WordbookStats aggregates word counts for one wordbook (§6 GET /wordbooks/{id}/stats).
type WordbookStats struct {
	Wordbook  Wordbook
	Total     int
	ByCEFR    map[CEFR]int
	ByPOS     map[string]int
	ByLesson  map[string]int
}
