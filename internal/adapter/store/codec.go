package store

import (
	"encoding/json"
	"time"

	"github.com/heartmarshall/wordflow-backend/internal/domain"
)

// SQLite has no native array/object type; translations, tags, and row-error
// lists round-trip as JSON text columns (§3: translations is a mapping,
// tags a list).

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeTags(raw string) []string {
	if raw == "" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil
	}
	return tags
}

func decodeTranslations(raw string) map[string]string {
	if raw == "" {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil
	}
	return m
}

func decodeRowErrors(raw string) []domain.RowError {
	if raw == "" {
		return nil
	}
	var errs []domain.RowError
	if err := json.Unmarshal([]byte(raw), &errs); err != nil {
		return nil
	}
	return errs
}

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseTimePtr(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t := parseTime(*s)
	return &t
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}
