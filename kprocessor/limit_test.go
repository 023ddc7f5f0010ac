package kprocessor

import (
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/birdayz/kpipe/kport"
)

func TestLimit(t *testing.T) {
	t.Run("stops upstream early", func(t *testing.T) {
		srcOut, lIn := kport.Pair()
		lOut, sinkIn := kport.Pair()
		collect := NewCollectSink("collect")
		inner := &countingSource{limit: 100}

		limit := NewLimit(lIn, lOut, 3)
		err := drive(t,
			NewSyncSourcer(srcOut, inner),
			limit,
			NewSinker(sinkIn, collect),
		)
		assert.NoError(t, err)
		assert.Equal(t, 3, collect.Rows())
		assert.Equal(t, 3, limit.Forwarded())
		assert.True(t, collect.Finished())
		assert.True(t, inner.generated < 100)
	})

	t.Run("slices the last block", func(t *testing.T) {
		srcOut, lIn := kport.Pair()
		lOut, sinkIn := kport.Pair()
		collect := NewCollectSink("collect")

		err := drive(t,
			NewSyncSourcer(srcOut, NewSliceSource("pairs", intBlock(1, 2), intBlock(3, 4), intBlock(5, 6))),
			NewLimit(lIn, lOut, 3),
			NewSinker(sinkIn, collect),
		)
		assert.NoError(t, err)

		got := collect.Blocks()
		assert.Equal(t, 2, len(got))
		assert.Equal(t, ints{1, 2}, got[0].Payload().(ints))
		assert.Equal(t, ints{3}, got[1].Payload().(ints))
	})

	t.Run("short input passes everything", func(t *testing.T) {
		srcOut, lIn := kport.Pair()
		lOut, sinkIn := kport.Pair()
		collect := NewCollectSink("collect")

		err := drive(t,
			NewSyncSourcer(srcOut, NewSliceSource("numbers", intBlocks(2)...)),
			NewLimit(lIn, lOut, 10),
			NewSinker(sinkIn, collect),
		)
		assert.NoError(t, err)
		assert.Equal(t, 2, collect.Rows())
	})
}
