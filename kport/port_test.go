package kport

import (
	"sync"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/birdayz/kpipe/kblock"
)

func TestPushPull(t *testing.T) {
	t.Run("single slot", func(t *testing.T) {
		out, in := Pair()
		b1 := kblock.New("b1", 1)

		assert.NoError(t, out.Push(b1))
		assert.True(t, in.HasData())
		assert.True(t, out.HasData())
		assert.False(t, out.CanPush())

		err := out.Push(kblock.New("b2", 1))
		assert.IsError(t, err, ErrPortFull)

		got, err := in.Pull()
		assert.NoError(t, err)
		assert.True(t, got == b1)
		assert.False(t, in.HasData())
		assert.False(t, out.CanPush())

		in.SetNeedData()
		assert.True(t, out.CanPush())
	})

	t.Run("pull from empty port", func(t *testing.T) {
		_, in := Pair()
		_, err := in.Pull()
		assert.IsError(t, err, ErrPortEmpty)
	})

	t.Run("unconnected", func(t *testing.T) {
		in := NewInputPort()
		out := NewOutputPort()
		_, err := in.Pull()
		assert.IsError(t, err, ErrNotConnected)
		assert.IsError(t, out.Push(kblock.New(nil, 0)), ErrNotConnected)
		assert.False(t, in.HasData())
		assert.False(t, out.IsFinished())
		in.Finish()
		out.Finish()
	})

	t.Run("connect twice", func(t *testing.T) {
		out, in := Pair()
		assert.IsError(t, Connect(out, NewInputPort()), ErrAlreadyConnected)
		assert.IsError(t, Connect(NewOutputPort(), in), ErrAlreadyConnected)
		assert.True(t, in.Peer() == out)
		assert.True(t, out.Peer() == in)
	})
}

func TestNeedData(t *testing.T) {
	out, in := Pair()
	assert.False(t, out.NeedData())
	assert.False(t, out.CanPush())

	in.SetNeedData()
	assert.True(t, out.NeedData())
	assert.True(t, out.CanPush())

	assert.NoError(t, out.Push(kblock.New(nil, 0)))
	assert.False(t, out.NeedData())
	assert.False(t, out.CanPush())

	// A request while the slot is full waits for the pull.
	in.SetNeedData()
	assert.False(t, out.CanPush())
	_, err := in.Pull()
	assert.NoError(t, err)
	assert.True(t, out.CanPush())
}

func TestFinish(t *testing.T) {
	t.Run("output finish keeps the last block", func(t *testing.T) {
		out, in := Pair()
		assert.NoError(t, out.Push(kblock.New("last", 1)))
		out.Finish()

		assert.True(t, out.IsFinished())
		assert.False(t, in.IsFinished())

		b, err := in.Pull()
		assert.NoError(t, err)
		assert.Equal(t, any("last"), b.Payload())
		assert.True(t, in.IsFinished())
	})

	t.Run("input finish tells the producer", func(t *testing.T) {
		out, in := Pair()
		assert.NoError(t, out.Push(kblock.New("dropped", 1)))
		in.Finish()

		assert.True(t, out.IsFinished())
		assert.True(t, in.IsFinished())
		assert.False(t, in.HasData())

		// Pushing after the consumer left is dropped, not an error.
		assert.NoError(t, out.Push(kblock.New("late", 1)))
		assert.False(t, in.HasData())
	})

	t.Run("monotone and idempotent", func(t *testing.T) {
		out, in := Pair()
		out.Finish()
		out.Finish()
		in.Finish()
		for i := 0; i < 3; i++ {
			assert.True(t, out.IsFinished())
			assert.True(t, in.IsFinished())
			in.SetNeedData()
			assert.False(t, out.NeedData())
		}
	})

	t.Run("abort finishes without notifying", func(t *testing.T) {
		out, in := Pair()
		var trig Trigger
		in.Bind(&trig, 7)
		out.Bind(&trig, 8)
		in.Abort()
		out.Abort()
		assert.True(t, in.IsFinished())
		assert.Equal(t, 0, trig.Len())
	})
}

func TestTrigger(t *testing.T) {
	out, in := Pair()
	var producer, consumer Trigger
	out.Bind(&producer, 2) // consumer is node 2
	in.Bind(&consumer, 1)  // producer is node 1

	in.SetNeedData()
	in.SetNeedData()
	assert.Equal(t, []int{1}, consumer.Drain(nil))

	assert.NoError(t, out.Push(kblock.New(nil, 0)))
	assert.Equal(t, []int{2}, producer.Drain(nil))

	_, err := in.Pull()
	assert.NoError(t, err)
	assert.Equal(t, []int{1}, consumer.Drain(nil))

	out.Finish()
	out.Finish()
	assert.Equal(t, []int{2}, producer.Drain(nil))
	assert.Equal(t, 0, producer.Len())
}

func TestConcurrentHandoffPreservesOrder(t *testing.T) {
	out, in := Pair()
	const n = 1000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; {
			if err := out.Push(kblock.New(i, 1)); err == nil {
				i++
			}
		}
		out.Finish()
	}()

	got := make([]int, 0, n)
	for !in.IsFinished() {
		b, err := in.Pull()
		if err != nil {
			continue
		}
		got = append(got, b.Payload().(int))
	}
	wg.Wait()

	assert.Equal(t, n, len(got))
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}
