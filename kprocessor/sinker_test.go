package kprocessor

import (
	"context"
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/birdayz/kpipe/kblock"
	"github.com/birdayz/kpipe/kport"
)

func TestSinker(t *testing.T) {
	t.Run("consumes every block in order", func(t *testing.T) {
		out, in := kport.Pair()
		collect := NewCollectSink("collect")
		source := NewSyncSourcer(out, NewSliceSource("numbers", intBlocks(3)...))
		sink := NewSinker(in, collect)

		assert.NoError(t, drive(t, source, sink))

		blocks := collect.Blocks()
		assert.Equal(t, 3, len(blocks))
		for i, b := range blocks {
			assert.Equal(t, ints{i}, b.Payload().(ints))
		}
		assert.True(t, collect.Finished())
		assert.True(t, in.IsFinished())
		assert.True(t, out.IsFinished())

		ev, err := sink.Event()
		assert.NoError(t, err)
		assert.Equal(t, Finished, ev)
	})

	t.Run("consume error stops the sink", func(t *testing.T) {
		errBoom := errors.New("boom")
		out, in := kport.Pair()
		calls := 0
		source := NewSyncSourcer(out, NewSliceSource("numbers", intBlocks(3)...))
		sink := NewSinker(in, NewSinkFunc("failing", func(*kblock.DataBlock) error {
			calls++
			if calls == 2 {
				return errBoom
			}
			return nil
		}))

		err := drive(t, source, sink)
		assert.IsError(t, err, errBoom)
		assert.Equal(t, 2, calls)
	})

	t.Run("empty input finishes without consume", func(t *testing.T) {
		out, in := kport.Pair()
		calls := 0
		finished := 0
		sink := NewSinker(in, NewSinkFunc("sink",
			func(*kblock.DataBlock) error {
				calls++
				return nil
			},
			WithOnFinish(func() error {
				finished++
				return nil
			}),
		))
		out.Finish()

		assert.NoError(t, drive(t, sink))
		assert.Equal(t, 0, calls)
		assert.Equal(t, 1, finished)
	})

	t.Run("on finish error is reported", func(t *testing.T) {
		errFlush := errors.New("flush")
		out, in := kport.Pair()
		sink := NewSinker(in, NewSinkFunc("sink",
			func(*kblock.DataBlock) error { return nil },
			WithOnFinish(func() error { return errFlush }),
		))
		out.Finish()

		assert.IsError(t, drive(t, sink), errFlush)
	})

	t.Run("last block survives producer finish", func(t *testing.T) {
		out, in := kport.Pair()
		collect := NewCollectSink("collect")
		sink := NewSinker(in, collect)

		assert.NoError(t, out.Push(intBlock(7)))
		out.Finish()

		assert.NoError(t, drive(t, sink))
		assert.Equal(t, 1, len(collect.Blocks()))
		assert.Equal(t, 1, collect.Rows())
	})

	t.Run("no data requests more", func(t *testing.T) {
		out, in := kport.Pair()
		sink := NewSinker(in, NewCollectSink("collect"))

		ev, err := sink.Event()
		assert.NoError(t, err)
		assert.Equal(t, NeedData, ev)
		assert.True(t, out.NeedData())
	})

	t.Run("process without sync event is rejected", func(t *testing.T) {
		_, in := kport.Pair()
		sink := NewSinker(in, NewCollectSink("collect"))

		assert.IsError(t, sink.Process(), ErrContractViolation)

		ev, err := sink.Event()
		assert.NoError(t, err)
		assert.Equal(t, NeedData, ev)
		assert.IsError(t, sink.Process(), ErrContractViolation)
	})

	t.Run("close reaches the sink", func(t *testing.T) {
		_, in := kport.Pair()
		closed := false
		sink := NewSinker(in, NewSinkFunc("sink",
			func(*kblock.DataBlock) error { return nil },
			WithClose(func() error {
				closed = true
				return nil
			}),
		))
		assert.NoError(t, sink.Close())
		assert.True(t, closed)
	})
}

type asyncCollect struct {
	blocks   []*kblock.DataBlock
	finished bool
}

func (a *asyncCollect) Name() string { return "async-collect" }

func (a *asyncCollect) Consume(ctx context.Context, block *kblock.DataBlock) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.blocks = append(a.blocks, block)
	return nil
}

func (a *asyncCollect) OnFinish(ctx context.Context) error {
	a.finished = true
	return nil
}

func TestAsyncSinker(t *testing.T) {
	t.Run("consumes every block asynchronously", func(t *testing.T) {
		out, in := kport.Pair()
		inner := &asyncCollect{}
		source := NewSyncSourcer(out, NewSliceSource("numbers", intBlocks(4)...))
		sink := NewAsyncSinker(in, inner)

		assert.NoError(t, drive(t, source, sink))
		assert.Equal(t, 4, len(inner.blocks))
		assert.True(t, inner.finished)
	})

	t.Run("reports async work", func(t *testing.T) {
		out, in := kport.Pair()
		sink := NewAsyncSinker(in, &asyncCollect{})
		assert.NoError(t, out.Push(intBlock(1)))

		ev, err := sink.Event()
		assert.NoError(t, err)
		assert.Equal(t, Async, ev)

		// Sync step is never valid for an async sink.
		assert.IsError(t, sink.Process(), ErrContractViolation)
	})

	t.Run("async step without event is rejected", func(t *testing.T) {
		_, in := kport.Pair()
		sink := NewAsyncSinker(in, &asyncCollect{})
		assert.IsError(t, sink.AsyncProcess(context.Background()), ErrContractViolation)
	})
}
