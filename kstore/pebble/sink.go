package pebble

import (
	"encoding/binary"

	"github.com/cockroachdb/pebble"

	"github.com/birdayz/kpipe/kblock"
	"github.com/birdayz/kpipe/kprocessor"
)

// DefaultBatchSize is the number of blocks buffered before a commit.
const DefaultBatchSize = 64

// MaterializeSink writes every block under keyPrefix followed by a
// big-endian sequence number, so a prefix scan returns blocks in arrival
// order. Writes are batched and committed on finish.
type MaterializeSink struct {
	db        *pebble.DB
	codec     kblock.Codec
	keyPrefix []byte
	batchSize int

	batch   *pebble.Batch
	pending int
	seq     uint64
}

// NewMaterializeSink returns a sink writing to s.
func NewMaterializeSink(s *Store, codec kblock.Codec, keyPrefix []byte) *MaterializeSink {
	return &MaterializeSink{
		db:        s.db,
		codec:     codec,
		keyPrefix: keyPrefix,
		batchSize: DefaultBatchSize,
	}
}

// WithBatchSize sets the number of blocks per commit.
func (m *MaterializeSink) WithBatchSize(n int) *MaterializeSink {
	if n > 0 {
		m.batchSize = n
	}
	return m
}

func (m *MaterializeSink) Name() string {
	return "pebble-materialize"
}

func (m *MaterializeSink) Consume(block *kblock.DataBlock) error {
	value, err := m.codec.Encode(block)
	if err != nil {
		return err
	}

	key := make([]byte, len(m.keyPrefix)+8)
	copy(key, m.keyPrefix)
	binary.BigEndian.PutUint64(key[len(m.keyPrefix):], m.seq)
	m.seq++

	if m.batch == nil {
		m.batch = m.db.NewBatch()
	}
	if err := m.batch.Set(key, value, nil); err != nil {
		return err
	}
	m.pending++
	if m.pending >= m.batchSize {
		return m.commit()
	}
	return nil
}

func (m *MaterializeSink) OnFinish() error {
	return m.commit()
}

// Written returns the number of blocks consumed.
func (m *MaterializeSink) Written() uint64 {
	return m.seq
}

func (m *MaterializeSink) commit() error {
	if m.batch == nil {
		return nil
	}
	batch := m.batch
	m.batch = nil
	m.pending = 0
	if err := batch.Commit(&pebble.WriteOptions{Sync: false}); err != nil {
		_ = batch.Close()
		return err
	}
	return batch.Close()
}

// Close discards uncommitted writes of an aborted run.
func (m *MaterializeSink) Close() error {
	if m.batch == nil {
		return nil
	}
	batch := m.batch
	m.batch = nil
	return batch.Close()
}

var (
	_ kprocessor.Sink     = (*MaterializeSink)(nil)
	_ kprocessor.Finisher = (*MaterializeSink)(nil)
)
