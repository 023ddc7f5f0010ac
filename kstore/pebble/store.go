// Package pebble provides a local-scan source and a materializing sink on a
// pebble LSM store.
package pebble

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// ErrKeyNotFound is returned by Get for missing keys.
var ErrKeyNotFound = errors.New("pebble: key not found")

// Store is an opened pebble database.
type Store struct {
	db *pebble.DB
}

// Open opens or creates the database in dir.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// DB returns the underlying database.
func (s *Store) DB() *pebble.DB {
	return s.db
}

func (s *Store) Close() error {
	if err := s.db.Flush(); err != nil {
		return err
	}
	return s.db.Close()
}

func (s *Store) Set(k, v []byte) error {
	// Treat nil (==tombstone) as delete
	if v == nil {
		return s.db.Delete(k, &pebble.WriteOptions{})
	}
	return s.db.Set(k, v, &pebble.WriteOptions{Sync: false})
}

func (s *Store) Get(k []byte) ([]byte, error) {
	v, closer, err := s.db.Get(k)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	defer closer.Close()

	res := make([]byte, len(v))
	copy(res, v)

	return res, nil
}

// prefixUpperBound returns the smallest key greater than every key with the
// given prefix, or nil if there is none.
func prefixUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
