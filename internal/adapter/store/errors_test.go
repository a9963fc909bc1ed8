package store

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/heartmarshall/wordflow-backend/internal/domain"
)

func TestMapError_NilIsNil(t *testing.T) {
	if mapError(nil, "word", 1) != nil {
		t.Fatal("expected nil")
	}
}

func TestMapError_NoRowsToNotFound(t *testing.T) {
	err := mapError(sql.ErrNoRows, "word", 42)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("mapError() = %v, want ErrNotFound", err)
	}
}

func TestMapError_UniqueConstraintToAlreadyExists(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Exec(`INSERT INTO kv (k, v) VALUES (?, ?)`, "dup", "1")
	if err != nil {
		t.Fatalf("setup insert: %v", err)
	}
	_, err = db.Exec(`INSERT INTO kv (k, v) VALUES (?, ?)`, "dup", "2")
	if err == nil {
		t.Fatal("expected constraint violation")
	}

	mapped := mapError(err, "kv", "dup")
	if !errors.Is(mapped, domain.ErrAlreadyExists) {
		t.Fatalf("mapError() = %v, want ErrAlreadyExists", mapped)
	}
}
