package pebble

import (
	"context"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/birdayz/kpipe"
	"github.com/birdayz/kpipe/kblock"
	"github.com/birdayz/kpipe/kpipeline"
	"github.com/birdayz/kpipe/kport"
	"github.com/birdayz/kpipe/kprocessor"
	"github.com/birdayz/kpipe/kserde"
)

func open(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	assert.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, s.Close())
	})
	return s
}

func runPipeline(t *testing.T, src kprocessor.SyncSource, sink kprocessor.Sink) {
	t.Helper()
	p := kpipeline.New()
	assert.NoError(t, p.AddSource(1, func(out *kport.OutputPort) (kprocessor.Processor, error) {
		return kprocessor.NewSyncSourcer(out, src), nil
	}))
	assert.NoError(t, p.AddSink(func(in *kport.InputPort) (kprocessor.Processor, error) {
		return kprocessor.NewSinker(in, sink), nil
	}))
	assert.NoError(t, kpipe.MustNew(p, kpipe.WithMaxThreads(2)).Run(context.Background()))
}

func TestStore(t *testing.T) {
	s := open(t)

	_, err := s.Get([]byte("missing"))
	assert.IsError(t, err, ErrKeyNotFound)

	assert.NoError(t, s.Set([]byte("k"), []byte("v")))
	v, err := s.Get([]byte("k"))
	assert.NoError(t, err)
	assert.Equal(t, []byte("v"), v)

	assert.NoError(t, s.Set([]byte("k"), nil))
	_, err = s.Get([]byte("k"))
	assert.IsError(t, err, ErrKeyNotFound)
}

func TestMaterializeAndScan(t *testing.T) {
	s := open(t)
	codec := kserde.BlockCodec(kserde.Int64Column)

	blocks := []*kblock.DataBlock{
		kblock.New([]int64{1, 2}, 2),
		kblock.New([]int64{3}, 1),
		kblock.New([]int64{4, 5, 6}, 3),
	}
	sink := NewMaterializeSink(s, codec, []byte("q1/")).WithBatchSize(2)
	runPipeline(t, kprocessor.NewSliceSource("values", blocks...), sink)
	assert.Equal(t, uint64(3), sink.Written())

	// Another prefix must not show up in the scan.
	assert.NoError(t, s.Set([]byte("q2/x"), []byte("ignored")))

	collect := kprocessor.NewCollectSink("collect")
	runPipeline(t, NewPrefixScanSource(s, codec, []byte("q1/")), collect)

	got := collect.Blocks()
	assert.Equal(t, 3, len(got))
	assert.Equal(t, []int64{1, 2}, got[0].Payload().([]int64))
	assert.Equal(t, []int64{3}, got[1].Payload().([]int64))
	assert.Equal(t, []int64{4, 5, 6}, got[2].Payload().([]int64))
	assert.Equal(t, 6, collect.Rows())
}

func TestScanEmptyRange(t *testing.T) {
	s := open(t)
	src := NewScanSource(s, kserde.BlockCodec(kserde.Bytes), []byte("a"), []byte("b"))

	block, err := src.Generate()
	assert.NoError(t, err)
	assert.Zero(t, block)
	assert.NoError(t, src.Close())
}

func TestPrefixUpperBound(t *testing.T) {
	assert.Equal(t, []byte("q2"), prefixUpperBound([]byte("q1")))
	assert.Equal(t, []byte{0x01}, prefixUpperBound([]byte{0x00, 0xff}))
	assert.Zero(t, prefixUpperBound([]byte{0xff, 0xff}))
}
