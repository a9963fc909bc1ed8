package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/heartmarshall/wordflow-backend/internal/domain"
)

const settingsKey = "global"

// GetSettings returns the process-wide preferences record, defaulting to an
// empty object if none has been written yet (§3, §6 GET /settings).
func (s *Store) GetSettings(ctx context.Context) (*domain.Settings, error) {
	q := QuerierFromCtx(ctx, s.db)
	var raw string
	err := q.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, settingsKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.Settings{Data: map[string]any{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("get settings: decode: %w", err)
	}
	return &domain.Settings{Data: data}, nil
}

// PutSettings overwrites the preferences record verbatim — Store never
// interprets its contents (§3: "opaque to the core").
func (s *Store) PutSettings(ctx context.Context, settings domain.Settings) error {
	if settings.Data == nil {
		settings.Data = map[string]any{}
	}
	raw, err := json.Marshal(settings.Data)
	if err != nil {
		return fmt.Errorf("put settings: encode: %w", err)
	}

	q := QuerierFromCtx(ctx, s.db)
	_, err = q.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`, settingsKey, string(raw))
	if err != nil {
		return fmt.Errorf("put settings: %w", err)
	}
	return nil
}
