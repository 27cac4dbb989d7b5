// Package store provides the BuntDB-backed document store for templates,
// backtest records and journaled trades.
package store

import (
	"errors"
	"fmt"

	"github.com/tidwall/buntdb"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("store: not found")

// Key prefixes for the three document families.
const (
	templatePrefix = "template:"
	backtestPrefix = "backtest:"
	journalPrefix  = "journal:"
)

// Store is a thin document store over BuntDB. Values are JSON documents;
// predicate filtering happens in-process after decoding.
type Store struct {
	logger *zap.Logger
	db     *buntdb.DB
}

// Open opens (or creates) a file-backed store.
func Open(logger *zap.Logger, path string) (*Store, error) {
	return open(logger, path, buntdb.EverySecond)
}

// OpenMemory opens an in-memory store, used by tests and ephemeral runs.
func OpenMemory(logger *zap.Logger) (*Store, error) {
	return open(logger, ":memory:", buntdb.Never)
}

func open(logger *zap.Logger, path string, sync buntdb.SyncPolicy) (*Store, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open buntdb: %w", err)
	}

	if err := db.SetConfig(buntdb.Config{SyncPolicy: sync}); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure buntdb: %w", err)
	}

	// Keeps template listings in stable name order for iteration helpers
	// that use the index rather than raw key order.
	if err := db.CreateIndex("template_name", templatePrefix+"*", buntdb.IndexJSON("name")); err != nil && !errors.Is(err, buntdb.ErrIndexExists) {
		db.Close()
		return nil, fmt.Errorf("failed to create template index: %w", err)
	}

	return &Store{logger: logger, db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
