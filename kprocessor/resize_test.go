package kprocessor

import (
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/birdayz/kpipe/kblock"
	"github.com/birdayz/kpipe/kport"
)

func TestResize(t *testing.T) {
	t.Run("merges lanes keeping per-lane order", func(t *testing.T) {
		outA, inA := kport.Pair()
		outB, inB := kport.Pair()
		rOut, sinkIn := kport.Pair()
		collect := NewCollectSink("collect")

		a := []*kblock.DataBlock{intBlock(1), intBlock(2), intBlock(3)}
		b := []*kblock.DataBlock{intBlock(101), intBlock(102)}

		resize := NewResize([]*kport.InputPort{inA, inB}, []*kport.OutputPort{rOut})
		assert.Equal(t, "Resize(2->1)", resize.Name())

		err := drive(t,
			NewSyncSourcer(outA, NewSliceSource("a", a...)),
			NewSyncSourcer(outB, NewSliceSource("b", b...)),
			resize,
			NewSinker(sinkIn, collect),
		)
		assert.NoError(t, err)

		var gotA, gotB []int
		for _, blk := range collect.Blocks() {
			v := blk.Payload().(ints)[0]
			if v > 100 {
				gotB = append(gotB, v)
			} else {
				gotA = append(gotA, v)
			}
		}
		assert.Equal(t, []int{1, 2, 3}, gotA)
		assert.Equal(t, []int{101, 102}, gotB)
	})

	t.Run("splits one lane over many", func(t *testing.T) {
		srcOut, rIn := kport.Pair()
		out1, in1 := kport.Pair()
		out2, in2 := kport.Pair()
		c1 := NewCollectSink("c1")
		c2 := NewCollectSink("c2")

		err := drive(t,
			NewSyncSourcer(srcOut, NewSliceSource("numbers", intBlocks(6)...)),
			NewResize([]*kport.InputPort{rIn}, []*kport.OutputPort{out1, out2}),
			NewSinker(in1, c1),
			NewSinker(in2, c2),
		)
		assert.NoError(t, err)
		assert.Equal(t, 6, c1.Rows()+c2.Rows())
		assert.True(t, c1.Finished())
		assert.True(t, c2.Finished())
	})

	t.Run("finished outputs finish all inputs", func(t *testing.T) {
		upA, inA := kport.Pair()
		upB, inB := kport.Pair()
		rOut, sinkIn := kport.Pair()
		resize := NewResize([]*kport.InputPort{inA, inB}, []*kport.OutputPort{rOut})
		sinkIn.Finish()

		ev, err := resize.Event()
		assert.NoError(t, err)
		assert.Equal(t, Finished, ev)
		assert.True(t, upA.IsFinished())
		assert.True(t, upB.IsFinished())
	})
}
