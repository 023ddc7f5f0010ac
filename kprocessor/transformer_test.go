package kprocessor

import (
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/birdayz/kpipe/kblock"
	"github.com/birdayz/kpipe/kport"
)

func double(b *kblock.DataBlock) (*kblock.DataBlock, error) {
	in := b.Payload().(ints)
	out := make(ints, len(in))
	for i, v := range in {
		out[i] = v * 2
	}
	return kblock.New(out, len(out)), nil
}

// summer drops every block and emits the total on flush.
type summer struct {
	total int
}

func (s *summer) Name() string { return "sum" }

func (s *summer) Transform(b *kblock.DataBlock) (*kblock.DataBlock, error) {
	for _, v := range b.Payload().(ints) {
		s.total += v
	}
	return nil, nil
}

func (s *summer) Flush() (*kblock.DataBlock, error) {
	return intBlock(s.total), nil
}

func TestTransformer(t *testing.T) {
	t.Run("maps every block", func(t *testing.T) {
		srcOut, tIn := kport.Pair()
		tOut, sinkIn := kport.Pair()
		collect := NewCollectSink("collect")

		err := drive(t,
			NewSyncSourcer(srcOut, NewSliceSource("numbers", intBlock(1, 2), intBlock(3))),
			NewTransformer(tIn, tOut, NewTransformFunc("double", double)),
			NewSinker(sinkIn, collect),
		)
		assert.NoError(t, err)

		blocks := collect.Blocks()
		assert.Equal(t, 2, len(blocks))
		assert.Equal(t, ints{2, 4}, blocks[0].Payload().(ints))
		assert.Equal(t, ints{6}, blocks[1].Payload().(ints))
	})

	t.Run("flush emits state after the input finished", func(t *testing.T) {
		srcOut, tIn := kport.Pair()
		tOut, sinkIn := kport.Pair()
		collect := NewCollectSink("collect")

		err := drive(t,
			NewSyncSourcer(srcOut, NewSliceSource("numbers", intBlock(1, 2), intBlock(3), intBlock(4))),
			NewTransformer(tIn, tOut, &summer{}),
			NewSinker(sinkIn, collect),
		)
		assert.NoError(t, err)

		blocks := collect.Blocks()
		assert.Equal(t, 1, len(blocks))
		assert.Equal(t, ints{10}, blocks[0].Payload().(ints))
	})

	t.Run("does not pull while output is full", func(t *testing.T) {
		upstream, tIn := kport.Pair()
		tOut, _ := kport.Pair()
		tr := NewTransformer(tIn, tOut, NewTransformFunc("double", double))

		assert.NoError(t, upstream.Push(intBlock(1)))
		assert.NoError(t, tOut.Push(intBlock(9)))

		ev, err := tr.Event()
		assert.NoError(t, err)
		assert.Equal(t, NeedData, ev)
		assert.True(t, tIn.HasData())
	})

	t.Run("does not pull before downstream asks", func(t *testing.T) {
		upstream, tIn := kport.Pair()
		tOut, sinkIn := kport.Pair()
		tr := NewTransformer(tIn, tOut, NewTransformFunc("double", double))

		ev, err := tr.Event()
		assert.NoError(t, err)
		assert.Equal(t, NeedData, ev)
		assert.False(t, upstream.NeedData())

		assert.NoError(t, upstream.Push(intBlock(1)))
		ev, err = tr.Event()
		assert.NoError(t, err)
		assert.Equal(t, NeedData, ev)
		assert.True(t, tIn.HasData())

		sinkIn.SetNeedData()
		ev, err = tr.Event()
		assert.NoError(t, err)
		assert.Equal(t, Sync, ev)
		assert.False(t, tIn.HasData())
		assert.NoError(t, tr.Process())
		assert.True(t, sinkIn.HasData())
	})

	t.Run("finishes without a downstream request", func(t *testing.T) {
		upstream, tIn := kport.Pair()
		tOut, sinkIn := kport.Pair()
		tr := NewTransformer(tIn, tOut, NewTransformFunc("double", double))
		upstream.Finish()

		ev, err := tr.Event()
		assert.NoError(t, err)
		assert.Equal(t, Finished, ev)
		assert.True(t, sinkIn.IsFinished())
	})

	t.Run("finished consumer finishes the input", func(t *testing.T) {
		upstream, tIn := kport.Pair()
		tOut, sinkIn := kport.Pair()
		tr := NewTransformer(tIn, tOut, NewTransformFunc("double", double))
		sinkIn.Finish()

		ev, err := tr.Event()
		assert.NoError(t, err)
		assert.Equal(t, Finished, ev)
		assert.True(t, upstream.IsFinished())
	})

	t.Run("transform error is returned", func(t *testing.T) {
		errBad := errors.New("bad row")
		upstream, tIn := kport.Pair()
		tOut, sinkIn := kport.Pair()
		tr := NewTransformer(tIn, tOut, NewTransformFunc("fail", func(*kblock.DataBlock) (*kblock.DataBlock, error) {
			return nil, errBad
		}))
		assert.NoError(t, upstream.Push(intBlock(1)))
		sinkIn.SetNeedData()

		ev, err := tr.Event()
		assert.NoError(t, err)
		assert.Equal(t, Sync, ev)
		assert.IsError(t, tr.Process(), errBad)
	})
}
