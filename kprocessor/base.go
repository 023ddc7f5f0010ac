package kprocessor

import (
	"sync"

	"github.com/birdayz/kpipe/kblock"
)

// FuncOption configures optional behavior for NewSinkFunc sinks.
type FuncOption func(*funcSink)

// WithOnFinish adds logic that runs once after the last block.
func WithOnFinish(fn func() error) FuncOption {
	return func(s *funcSink) {
		s.finishFn = fn
	}
}

// WithClose adds cleanup logic, run by the executor after the pipeline ends.
func WithClose(fn func() error) FuncOption {
	return func(s *funcSink) {
		s.closeFn = fn
	}
}

// NewSinkFunc creates a Sink from a function.
//
// Example:
//
//	kprocessor.NewSinker(in, kprocessor.NewSinkFunc("print", func(b *kblock.DataBlock) error {
//	    fmt.Println(b)
//	    return nil
//	}))
//
// With finish/close:
//
//	kprocessor.NewSinkFunc("upload", consumeFn,
//	    kprocessor.WithOnFinish(func() error { ... }),
//	    kprocessor.WithClose(func() error { ... }),
//	)
func NewSinkFunc(name string, consumeFn func(*kblock.DataBlock) error, opts ...FuncOption) Sink {
	s := &funcSink{
		name:      name,
		consumeFn: consumeFn,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.finishFn != nil {
		return &finishingFuncSink{funcSink: s}
	}
	return s
}

// funcSink is the internal sink implementation for NewSinkFunc.
type funcSink struct {
	name      string
	consumeFn func(*kblock.DataBlock) error
	finishFn  func() error
	closeFn   func() error
}

func (s *funcSink) Name() string {
	return s.name
}

func (s *funcSink) Consume(block *kblock.DataBlock) error {
	return s.consumeFn(block)
}

func (s *funcSink) Close() error {
	if s.closeFn != nil {
		return s.closeFn()
	}
	return nil
}

// finishingFuncSink only exists so that Finisher is implemented exactly when
// an OnFinish function was given.
type finishingFuncSink struct {
	*funcSink
}

func (s *finishingFuncSink) OnFinish() error {
	return s.finishFn()
}

// CollectSink keeps every consumed block. It is the result collector at the
// tail of a query pipeline and is safe to read from another goroutine.
type CollectSink struct {
	name string

	mu       sync.Mutex
	blocks   []*kblock.DataBlock
	finished bool
}

// NewCollectSink returns an empty collector.
func NewCollectSink(name string) *CollectSink {
	return &CollectSink{name: name}
}

func (c *CollectSink) Name() string {
	return c.name
}

func (c *CollectSink) Consume(block *kblock.DataBlock) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blocks = append(c.blocks, block)
	return nil
}

func (c *CollectSink) OnFinish() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finished = true
	return nil
}

// Blocks returns a copy of the collected blocks in arrival order.
func (c *CollectSink) Blocks() []*kblock.DataBlock {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*kblock.DataBlock, len(c.blocks))
	copy(out, c.blocks)
	return out
}

// Rows returns the total number of collected rows.
func (c *CollectSink) Rows() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, b := range c.blocks {
		n += b.NumRows()
	}
	return n
}

// Finished reports whether the input finished cleanly.
func (c *CollectSink) Finished() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finished
}

var (
	_ Sink     = (*CollectSink)(nil)
	_ Finisher = (*CollectSink)(nil)
)
