package kprocessor

import (
	"context"

	"github.com/birdayz/kpipe/kblock"
	"github.com/birdayz/kpipe/kport"
)

// SyncSource produces blocks on demand. Generate returns a nil block once
// the source is exhausted.
type SyncSource interface {
	Name() string
	Generate() (*kblock.DataBlock, error)
}

// AsyncSource produces blocks with suspending I/O, e.g. a remote fetch.
type AsyncSource interface {
	Name() string
	Generate(ctx context.Context) (*kblock.DataBlock, error)
}

// SyncSourcer adapts a SyncSource into a Processor with one output port.
//
// A block is only generated after the consumer asked for one and the slot is
// free, so a consumer that never asks keeps the source at NeedData without
// generating or buffering anything.
type SyncSourcer struct {
	inner  SyncSource
	output *kport.OutputPort
	guard  stepGuard

	exhausted bool
}

// NewSyncSourcer wraps source as a processor writing to output.
func NewSyncSourcer(output *kport.OutputPort, source SyncSource) *SyncSourcer {
	return &SyncSourcer{
		inner:  source,
		output: output,
		guard:  stepGuard{name: source.Name()},
	}
}

func (s *SyncSourcer) Name() string {
	return s.inner.Name()
}

func (s *SyncSourcer) Event() (Event, error) {
	return s.guard.report(sourceEvent(s.output, s.exhausted, Sync))
}

func (s *SyncSourcer) Process() error {
	if err := s.guard.consume(Sync); err != nil {
		return err
	}
	block, err := s.inner.Generate()
	if err != nil {
		return err
	}
	return s.emit(block)
}

func (s *SyncSourcer) emit(block *kblock.DataBlock) error {
	if block == nil {
		s.exhausted = true
		if f, ok := s.inner.(Finisher); ok {
			return f.OnFinish()
		}
		return nil
	}
	return s.output.Push(block)
}

// AsyncSourcer adapts an AsyncSource into an AsyncProcessor.
type AsyncSourcer struct {
	inner  AsyncSource
	output *kport.OutputPort
	guard  stepGuard

	exhausted bool
}

// NewAsyncSourcer wraps source as a processor writing to output.
func NewAsyncSourcer(output *kport.OutputPort, source AsyncSource) *AsyncSourcer {
	return &AsyncSourcer{
		inner:  source,
		output: output,
		guard:  stepGuard{name: source.Name()},
	}
}

func (s *AsyncSourcer) Name() string {
	return s.inner.Name()
}

func (s *AsyncSourcer) Event() (Event, error) {
	return s.guard.report(sourceEvent(s.output, s.exhausted, Async))
}

// Process is never authorized: every step of an AsyncSourcer is async.
func (s *AsyncSourcer) Process() error {
	return s.guard.consume(Sync)
}

func (s *AsyncSourcer) AsyncProcess(ctx context.Context) error {
	if err := s.guard.consume(Async); err != nil {
		return err
	}
	block, err := s.inner.Generate(ctx)
	if err != nil {
		return err
	}
	if block == nil {
		s.exhausted = true
		if f, ok := s.inner.(AsyncFinisher); ok {
			return f.OnFinish(ctx)
		}
		return nil
	}
	return s.output.Push(block)
}

func sourceEvent(output *kport.OutputPort, exhausted bool, work Event) Event {
	if output.IsFinished() {
		return Finished
	}
	if exhausted {
		output.Finish()
		return Finished
	}
	if !output.CanPush() {
		return NeedData
	}
	return work
}

// SliceSource emits a fixed list of blocks in order.
type SliceSource struct {
	name   string
	blocks []*kblock.DataBlock
	next   int
}

// NewSliceSource returns a source emitting blocks in order.
func NewSliceSource(name string, blocks ...*kblock.DataBlock) *SliceSource {
	return &SliceSource{name: name, blocks: blocks}
}

func (s *SliceSource) Name() string {
	return s.name
}

func (s *SliceSource) Generate() (*kblock.DataBlock, error) {
	if s.next >= len(s.blocks) {
		return nil, nil
	}
	b := s.blocks[s.next]
	s.next++
	return b, nil
}

// Close closes the wrapped capability if it implements io.Closer.
func (s *SyncSourcer) Close() error {
	return closeInner(s.inner)
}

// Close closes the wrapped capability if it implements io.Closer.
func (s *AsyncSourcer) Close() error {
	return closeInner(s.inner)
}

var (
	_ Processor      = (*SyncSourcer)(nil)
	_ AsyncProcessor = (*AsyncSourcer)(nil)
	_ SyncSource     = (*SliceSource)(nil)
)
