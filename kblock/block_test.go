package kblock

import (
	"testing"

	"github.com/alecthomas/assert/v2"
)

type rows []int

func (r rows) SliceRows(n int) any { return r[:n] }

func TestSlice(t *testing.T) {
	t.Run("sliceable payload", func(t *testing.T) {
		b := New(rows{1, 2, 3, 4}, 4).WithMeta("origin", "scan")
		s := b.Slice(2)
		assert.Equal(t, 2, s.NumRows())
		assert.Equal(t, any(rows{1, 2}), s.Payload())
		assert.Equal(t, "scan", s.Meta["origin"])
	})

	t.Run("opaque payload", func(t *testing.T) {
		b := New("opaque", 10)
		s := b.Slice(3)
		assert.Equal(t, 3, s.NumRows())
		assert.Equal(t, any("opaque"), s.Payload())
	})

	t.Run("n beyond rows returns block", func(t *testing.T) {
		b := New(rows{1}, 1)
		assert.True(t, b == b.Slice(5))
	})
}
