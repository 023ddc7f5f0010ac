// Package kblock holds the unit of data transfer between processors.
//
// A DataBlock is an opaque batch. The execution engine moves blocks between
// processors but never looks inside the payload; columnar layout and SQL
// semantics belong to the processors that produce and consume them.
package kblock

import "fmt"

// DataBlock is an opaque batch of rows.
type DataBlock struct {
	payload any
	rows    int

	// Meta carries free-form annotations (origin partition, offsets, ...).
	// Processors may read and add entries; the engine ignores it.
	Meta map[string]string
}

// New creates a block wrapping payload with the given row count.
func New(payload any, rows int) *DataBlock {
	return &DataBlock{
		payload: payload,
		rows:    rows,
	}
}

// Payload returns the wrapped value.
func (b *DataBlock) Payload() any {
	return b.payload
}

// NumRows returns the number of rows in the block.
func (b *DataBlock) NumRows() int {
	return b.rows
}

// WithMeta sets a meta entry and returns the block.
func (b *DataBlock) WithMeta(key, value string) *DataBlock {
	if b.Meta == nil {
		b.Meta = make(map[string]string, 1)
	}
	b.Meta[key] = value
	return b
}

// Slice returns the first n rows of a block whose payload supports slicing.
// Payloads that are not Sliceable are returned unchanged with the row count
// capped to n.
func (b *DataBlock) Slice(n int) *DataBlock {
	if n >= b.rows {
		return b
	}
	payload := b.payload
	if s, ok := payload.(Sliceable); ok {
		payload = s.SliceRows(n)
	}
	return &DataBlock{payload: payload, rows: n, Meta: b.Meta}
}

func (b *DataBlock) String() string {
	return fmt.Sprintf("DataBlock(rows=%d)", b.rows)
}

// Sliceable is implemented by payloads that can be truncated to fewer rows.
type Sliceable interface {
	SliceRows(n int) any
}

// Codec converts blocks to and from bytes. Exchange and storage adapters take
// a Codec from the caller; the engine itself never encodes blocks.
type Codec interface {
	Encode(*DataBlock) ([]byte, error)
	Decode([]byte) (*DataBlock, error)
}
