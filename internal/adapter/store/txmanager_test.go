package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.Exec(`CREATE TABLE kv (k TEXT PRIMARY KEY, v TEXT NOT NULL)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

func TestTxManager_RunInTx_CommitsOnSuccess(t *testing.T) {
	db := openTestDB(t)
	tm := NewTxManager(db)

	err := tm.RunInTx(context.Background(), func(ctx context.Context) error {
		q := QuerierFromCtx(ctx, db)
		_, err := q.ExecContext(ctx, `INSERT INTO kv (k, v) VALUES (?, ?)`, "a", "1")
		return err
	})
	if err != nil {
		t.Fatalf("RunInTx() error = %v", err)
	}

	var v string
	if err := db.QueryRow(`SELECT v FROM kv WHERE k = ?`, "a").Scan(&v); err != nil {
		t.Fatalf("row not committed: %v", err)
	}
}

func TestTxManager_RunInTx_RollsBackOnError(t *testing.T) {
	db := openTestDB(t)
	tm := NewTxManager(db)

	sentinel := errors.New("boom")
	err := tm.RunInTx(context.Background(), func(ctx context.Context) error {
		q := QuerierFromCtx(ctx, db)
		if _, err := q.ExecContext(ctx, `INSERT INTO kv (k, v) VALUES (?, ?)`, "b", "1"); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("RunInTx() error = %v, want sentinel", err)
	}

	var count int
	if err := db.QueryRow(`SELECT count(*) FROM kv WHERE k = ?`, "b").Scan(&count); err != nil {
		t.Fatalf("count query: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected rollback, found %d rows", count)
	}
}

func TestQuerierFromCtx_ReturnsDBOutsideTx(t *testing.T) {
	db := openTestDB(t)
	q := QuerierFromCtx(context.Background(), db)
	if q != Querier(db) {
		t.Fatal("expected QuerierFromCtx to return the db handle outside a transaction")
	}
}
