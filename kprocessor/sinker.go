package kprocessor

import (
	"context"

	"github.com/birdayz/kpipe/kblock"
	"github.com/birdayz/kpipe/kport"
)

// Sink is the narrow capability of a terminal stage: consume one block.
type Sink interface {
	Name() string
	Consume(block *kblock.DataBlock) error
}

// AsyncSink consumes blocks with suspending I/O, e.g. a network send.
type AsyncSink interface {
	Name() string
	Consume(ctx context.Context, block *kblock.DataBlock) error
}

// Sinker adapts a Sink into a Processor with one input port.
//
// Every block arriving on the input is handed to Consume exactly once, in
// arrival order. If the sink implements Finisher, OnFinish runs once after
// the input finished and before the Sinker reports Finished.
type Sinker struct {
	inner Sink
	input *kport.InputPort
	guard stepGuard

	inputData *kblock.DataBlock

	finisher    Finisher
	calledFinal bool
}

// NewSinker wraps sink as a processor reading from input.
func NewSinker(input *kport.InputPort, sink Sink) *Sinker {
	s := &Sinker{
		inner: sink,
		input: input,
		guard: stepGuard{name: sink.Name()},
	}
	s.finisher, _ = sink.(Finisher)
	return s
}

func (s *Sinker) Name() string {
	return s.inner.Name()
}

func (s *Sinker) Event() (Event, error) {
	if s.inputData != nil {
		return s.guard.report(Sync)
	}

	if s.input.IsFinished() {
		if s.finisher != nil && !s.calledFinal {
			return s.guard.report(Sync)
		}
		return s.guard.report(Finished)
	}

	if s.input.HasData() {
		block, err := s.input.Pull()
		if err != nil {
			return NeedData, err
		}
		s.inputData = block
		return s.guard.report(Sync)
	}

	s.input.SetNeedData()
	return s.guard.report(NeedData)
}

func (s *Sinker) Process() error {
	if err := s.guard.consume(Sync); err != nil {
		return err
	}

	if block := s.inputData; block != nil {
		s.inputData = nil
		return s.inner.Consume(block)
	}

	if s.finisher != nil && !s.calledFinal && s.input.IsFinished() {
		s.calledFinal = true
		return s.finisher.OnFinish()
	}
	return nil
}

// Inner returns the wrapped sink.
func (s *Sinker) Inner() Sink {
	return s.inner
}

// AsyncSinker adapts an AsyncSink into an AsyncProcessor. It follows the
// Sinker state machine but reports Async where Sinker reports Sync.
type AsyncSinker struct {
	inner AsyncSink
	input *kport.InputPort
	guard stepGuard

	inputData *kblock.DataBlock

	finisher    AsyncFinisher
	calledFinal bool
}

// NewAsyncSinker wraps sink as a processor reading from input.
func NewAsyncSinker(input *kport.InputPort, sink AsyncSink) *AsyncSinker {
	s := &AsyncSinker{
		inner: sink,
		input: input,
		guard: stepGuard{name: sink.Name()},
	}
	s.finisher, _ = sink.(AsyncFinisher)
	return s
}

func (s *AsyncSinker) Name() string {
	return s.inner.Name()
}

func (s *AsyncSinker) Event() (Event, error) {
	if s.inputData != nil {
		return s.guard.report(Async)
	}

	if s.input.IsFinished() {
		if s.finisher != nil && !s.calledFinal {
			return s.guard.report(Async)
		}
		return s.guard.report(Finished)
	}

	if s.input.HasData() {
		block, err := s.input.Pull()
		if err != nil {
			return NeedData, err
		}
		s.inputData = block
		return s.guard.report(Async)
	}

	s.input.SetNeedData()
	return s.guard.report(NeedData)
}

// Process is never authorized: every step of an AsyncSinker is async.
func (s *AsyncSinker) Process() error {
	return s.guard.consume(Sync)
}

func (s *AsyncSinker) AsyncProcess(ctx context.Context) error {
	if err := s.guard.consume(Async); err != nil {
		return err
	}

	if block := s.inputData; block != nil {
		s.inputData = nil
		return s.inner.Consume(ctx, block)
	}

	if s.finisher != nil && !s.calledFinal && s.input.IsFinished() {
		s.calledFinal = true
		return s.finisher.OnFinish(ctx)
	}
	return nil
}

// Close closes the wrapped capability if it implements io.Closer.
func (s *Sinker) Close() error {
	return closeInner(s.inner)
}

// Close closes the wrapped capability if it implements io.Closer.
func (s *AsyncSinker) Close() error {
	return closeInner(s.inner)
}

var (
	_ Processor      = (*Sinker)(nil)
	_ AsyncProcessor = (*AsyncSinker)(nil)
)
