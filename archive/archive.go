// Package archive persists the best tour found per cost matrix, keyed by
// the matrix digest, in a BadgerDB store. A coordinator seeds the upper
// bound of a new session from it and records every improvement.
package archive

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/katalvlaran/tspgrid/codec"
	"github.com/katalvlaran/tspgrid/tsp"
)

const keyPrefix = "tour/"

// ErrClosed is returned by operations on a closed archive.
var ErrClosed = errors.New("archive: closed")

// Entry summarizes one archived tour.
type Entry struct {
	Digest string `json:"digest"`
	Size   int    `json:"size"`
	Cost   int    `json:"cost"`
}

// Archive is a digest -> best tour store. Safe for concurrent use.
type Archive struct {
	mu  sync.Mutex // serializes Record so read-compare-write never conflicts
	db  *badger.DB
	log *slog.Logger
}

// Open opens (or creates) the archive under dir. An empty dir keeps the
// archive in memory.
func Open(dir string, log *slog.Logger) (*Archive, error) {
	if log == nil {
		log = slog.Default()
	}
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("archive: open %q: %w", dir, err)
	}

	return &Archive{db: db, log: log.With("component", "archive")}, nil
}

// Close flushes and closes the store.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil

	return err
}

func key(digest string) []byte { return []byte(keyPrefix + digest) }

// Best returns the archived tour for digest, or nil when there is none.
func (a *Archive) Best(digest string) (*tsp.Tour, error) {
	db, err := a.handle()
	if err != nil {
		return nil, err
	}
	var t *tsp.Tour
	err = db.View(func(txn *badger.Txn) error {
		var err error
		t, err = get(txn, digest)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("archive: read %s: %w", digest, err)
	}

	return t, nil
}

// Record stores t for digest when it is strictly cheaper than the
// archived tour, and reports whether it did.
func (a *Archive) Record(digest string, t *tsp.Tour) (bool, error) {
	if t == nil {
		return false, nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db == nil {
		return false, ErrClosed
	}
	val, err := codec.Marshal(t)
	if err != nil {
		return false, err
	}

	var stored bool
	err = a.db.Update(func(txn *badger.Txn) error {
		cur, err := get(txn, digest)
		if err != nil {
			return err
		}
		if cur != nil && cur.Cost <= t.Cost {
			return nil
		}
		stored = true
		return txn.Set(key(digest), val)
	})
	if err != nil {
		return false, fmt.Errorf("archive: write %s: %w", digest, err)
	}
	if stored {
		a.log.Info("tour archived", "digest", digest, "cost", t.Cost)
	}

	return stored, nil
}

// List returns a summary of every archived tour in key order.
func (a *Archive) List() ([]Entry, error) {
	db, err := a.handle()
	if err != nil {
		return nil, err
	}
	var out []Entry
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var t tsp.Tour
			if err := item.Value(func(val []byte) error { return codec.Unmarshal(val, &t) }); err != nil {
				return err
			}
			out = append(out, Entry{
				Digest: strings.TrimPrefix(string(item.Key()), keyPrefix),
				Size:   max(len(t.Order)-1, 0),
				Cost:   t.Cost,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("archive: list: %w", err)
	}

	return out, nil
}

func (a *Archive) handle() (*badger.DB, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db == nil {
		return nil, ErrClosed
	}

	return a.db, nil
}

func get(txn *badger.Txn, digest string) (*tsp.Tour, error) {
	item, err := txn.Get(key(digest))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var t tsp.Tour
	if err := item.Value(func(val []byte) error { return codec.Unmarshal(val, &t) }); err != nil {
		return nil, err
	}

	return &t, nil
}
