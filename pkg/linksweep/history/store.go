// Package history provides a Badger DB-backed journal of past runs. It
// replaces ad-hoc log grepping: every completed cycle is stored as one JSON
// record and can be listed or pruned later. History failures are warnings;
// they never stop a cycle.
package history

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/linksweep/linksweep/pkg/linksweep/report"
)

const prefixRun = "run:"

// Record is one stored run with its identity.
type Record struct {
	ID     string            `json:"id"`
	Stored time.Time         `json:"stored"`
	Run    *report.RunReport `json:"run"`
}

// Store is the run journal.
type Store struct {
	db *badger.DB
}

// Open opens or creates a store at the given path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening history store: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun journals one completed cycle. Keys sort chronologically:
// run:<RFC3339Nano>:<uuid>.
func (s *Store) SaveRun(run *report.RunReport) error {
	rec := Record{
		ID:     uuid.NewString(),
		Stored: time.Now().UTC(),
		Run:    run,
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding run record: %w", err)
	}

	key := fmt.Sprintf("%s%s:%s", prefixRun, rec.Stored.Format(time.RFC3339Nano), rec.ID)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// Recent returns up to n runs, newest first.
func (s *Store) Recent(n int) ([]Record, error) {
	var records []Record

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixRun)
		// Reverse iteration seeks past the prefix range end.
		seek := append([]byte{}, prefix...)
		seek = append(seek, 0xFF)

		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if n > 0 && len(records) >= n {
				break
			}
			var rec Record
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}

	return records, nil
}

// Prune removes records older than retentionDays. Returns how many were
// deleted.
func (s *Store) Prune(retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	var stale [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixRun)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			ts := string(key[len(prefixRun):])
			if i := lastColon(ts); i >= 0 {
				ts = ts[:i]
			}
			stored, err := time.Parse(time.RFC3339Nano, ts)
			if err != nil {
				continue
			}
			if stored.Before(cutoff) {
				stale = append(stale, key)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scanning history: %w", err)
	}

	if len(stale) == 0 {
		return 0, nil
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("pruning history: %w", err)
	}

	return len(stale), nil
}

func lastColon(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == ':' {
			return i
		}
	}
	return -1
}
