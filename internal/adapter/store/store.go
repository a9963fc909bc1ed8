package store

import (
	"context"
	"database/sql"
	"sync"
)

// Store is the single persistence façade described by §4.1: it owns every
// entity in §3 and the write-side triggers that keep the full-text index
// coherent. Methods are grouped into per-entity files (wordbook.go, word.go,
// card.go, importjob.go, settings.go) but share one *sql.DB/TxManager and one
// set of per-wordbook write locks (§5: "Store serializes writes per wordbook
// using a per-wordbook mutex").
type Store struct {
	db *sql.DB
	tx *TxManager

	mu          sync.Mutex
	wordbookMus map[int]*sync.Mutex
}

// New wraps an already-opened database handle (see Open) into a Store.
func New(db *sql.DB) *Store {
	return &Store{
		db:          db,
		tx:          NewTxManager(db),
		wordbookMus: make(map[int]*sync.Mutex),
	}
}

// Ping reports whether the underlying database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// wordbookLock returns the mutex serializing writes to one wordbook,
// creating it on first use. Locks are never removed — the set of wordbooks
// is small and long-lived relative to process lifetime.
func (s *Store) wordbookLock(id int) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.wordbookMus[id]
	if !ok {
		m = &sync.Mutex{}
		s.wordbookMus[id] = m
	}
	return m
}
