package pebble

import (
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/birdayz/kpipe/kblock"
	"github.com/birdayz/kpipe/kprocessor"
)

// ScanSource emits one block per key in [lower, upper), in key order. Values
// are decoded with the codec.
type ScanSource struct {
	db    *pebble.DB
	codec kblock.Codec
	opts  pebble.IterOptions

	iter    *pebble.Iterator
	started bool
}

// NewScanSource returns a source over the key range [lower, upper). A nil
// bound leaves that side open.
func NewScanSource(s *Store, codec kblock.Codec, lower, upper []byte) *ScanSource {
	return &ScanSource{
		db:    s.db,
		codec: codec,
		opts: pebble.IterOptions{
			LowerBound: lower,
			UpperBound: upper,
		},
	}
}

// NewPrefixScanSource returns a source over every key starting with prefix.
func NewPrefixScanSource(s *Store, codec kblock.Codec, prefix []byte) *ScanSource {
	return NewScanSource(s, codec, prefix, prefixUpperBound(prefix))
}

func (s *ScanSource) Name() string {
	return "pebble-scan"
}

func (s *ScanSource) Generate() (*kblock.DataBlock, error) {
	var valid bool
	if !s.started {
		iter, err := s.db.NewIter(&s.opts)
		if err != nil {
			return nil, fmt.Errorf("failed to create iterator: %w", err)
		}
		s.iter = iter
		s.started = true
		valid = iter.First()
	} else if s.iter != nil {
		valid = s.iter.Next()
	}

	if !valid {
		return nil, s.closeIter()
	}

	value, err := s.iter.ValueAndErr()
	if err != nil {
		return nil, err
	}
	block, err := s.codec.Decode(value)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %q: %w", s.iter.Key(), err)
	}
	return block, nil
}

func (s *ScanSource) closeIter() error {
	if s.iter == nil {
		return nil
	}
	iter := s.iter
	s.iter = nil
	if err := iter.Error(); err != nil {
		_ = iter.Close()
		return err
	}
	return iter.Close()
}

// Close releases the iterator if the scan was not exhausted.
func (s *ScanSource) Close() error {
	return s.closeIter()
}

var _ kprocessor.SyncSource = (*ScanSource)(nil)
