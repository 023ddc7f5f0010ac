// Package kport provides the single-slot handoff points connecting processors.
//
// An OutputPort and an InputPort are paired by Connect and share one state
// cell for the lifetime of the pipeline. The cell holds at most one block and
// three flags (has data, needs data, finished). All transitions are lock-free
// compare-and-swap updates of an immutable snapshot, so producer and consumer
// may run on different goroutines.
package kport

import (
	"errors"
	"sync/atomic"

	"github.com/birdayz/kpipe/kblock"
)

var (
	// ErrPortFull is returned when pushing to a port whose peer still holds an
	// unconsumed block. It indicates a processor bug.
	ErrPortFull = errors.New("port: push to a port holding unconsumed data")
	// ErrPortEmpty is returned when pulling from a port with nothing buffered.
	ErrPortEmpty = errors.New("port: pull from an empty port")
	// ErrNotConnected is returned by data operations on a port without peer.
	ErrNotConnected = errors.New("port: not connected")
	// ErrAlreadyConnected is returned when connecting a port twice.
	ErrAlreadyConnected = errors.New("port: already connected")
)

const (
	flagNeedData uint32 = 1 << iota
	flagFinished
)

type snapshot struct {
	block *kblock.DataBlock
	flags uint32
}

func (s *snapshot) hasData() bool  { return s.block != nil }
func (s *snapshot) finished() bool { return s.flags&flagFinished != 0 }
func (s *snapshot) needData() bool { return s.flags&flagNeedData != 0 }

// state is shared by exactly one OutputPort and one InputPort.
type state struct {
	cur atomic.Pointer[snapshot]
}

func newState() *state {
	s := &state{}
	s.cur.Store(&snapshot{})
	return s
}

func (s *state) load() *snapshot {
	return s.cur.Load()
}

// update applies fn until the CAS succeeds. fn returns the next snapshot, or
// nil to leave the state untouched. It returns the snapshot fn was applied to
// and whether a new one was installed.
func (s *state) update(fn func(old *snapshot) *snapshot) (*snapshot, bool) {
	for {
		old := s.cur.Load()
		next := fn(old)
		if next == nil {
			return old, false
		}
		if s.cur.CompareAndSwap(old, next) {
			return old, true
		}
	}
}

// Connect pairs an output with an input port.
func Connect(out *OutputPort, in *InputPort) error {
	if out.shared != nil || in.shared != nil {
		return ErrAlreadyConnected
	}
	st := newState()
	out.shared = st
	in.shared = st
	out.peer = in
	in.peer = out
	return nil
}

// MustConnect is like Connect but panics on error.
func MustConnect(out *OutputPort, in *InputPort) {
	if err := Connect(out, in); err != nil {
		panic(err)
	}
}

// Pair creates a connected output/input pair.
func Pair() (*OutputPort, *InputPort) {
	out, in := NewOutputPort(), NewInputPort()
	MustConnect(out, in)
	return out, in
}

// binding routes flag transitions to the owner's Trigger, naming the peer's
// node so the scheduler can re-poll it.
type binding struct {
	trigger *Trigger
	node    int
}

func (b *binding) notify() {
	if b.trigger != nil {
		b.trigger.mark(b.node)
	}
}

// InputPort is the consumer side of a port pair.
type InputPort struct {
	shared *state
	peer   *OutputPort
	binding
}

// NewInputPort returns an unconnected input port.
func NewInputPort() *InputPort {
	return &InputPort{}
}

// Bind routes this port's transitions into t, naming peer (the producer's
// node index). Used by the scheduler before execution starts.
func (p *InputPort) Bind(t *Trigger, peer int) {
	p.binding = binding{trigger: t, node: peer}
}

// Peer returns the connected output port, or nil.
func (p *InputPort) Peer() *OutputPort {
	return p.peer
}

// IsConnected reports whether the port has been paired.
func (p *InputPort) IsConnected() bool {
	return p.shared != nil
}

// HasData reports whether a block is buffered.
func (p *InputPort) HasData() bool {
	if p.shared == nil {
		return false
	}
	return p.shared.load().hasData()
}

// IsFinished reports that the producer finished and every pushed block has
// been pulled.
func (p *InputPort) IsFinished() bool {
	if p.shared == nil {
		return false
	}
	s := p.shared.load()
	return s.finished() && !s.hasData()
}

// Pull takes the buffered block.
func (p *InputPort) Pull() (*kblock.DataBlock, error) {
	if p.shared == nil {
		return nil, ErrNotConnected
	}
	old, ok := p.shared.update(func(old *snapshot) *snapshot {
		if !old.hasData() {
			return nil
		}
		return &snapshot{flags: old.flags}
	})
	if !ok {
		return nil, ErrPortEmpty
	}
	p.notify()
	return old.block, nil
}

// SetNeedData tells the producer the consumer is ready for another block.
func (p *InputPort) SetNeedData() {
	if p.shared == nil {
		return
	}
	_, changed := p.shared.update(func(old *snapshot) *snapshot {
		if old.needData() || old.finished() {
			return nil
		}
		return &snapshot{block: old.block, flags: old.flags | flagNeedData}
	})
	if changed {
		p.notify()
	}
}

// Finish marks the port finished: the consumer is gone. Any buffered block is
// discarded. Idempotent.
func (p *InputPort) Finish() {
	if p.finish() {
		p.notify()
	}
}

// Abort finishes the port without notifying the bound trigger. The scheduler
// uses it to unwind a failed run from outside the owning processor.
func (p *InputPort) Abort() {
	p.finish()
}

func (p *InputPort) finish() bool {
	if p.shared == nil {
		return false
	}
	_, changed := p.shared.update(func(old *snapshot) *snapshot {
		if old.finished() && !old.hasData() {
			return nil
		}
		return &snapshot{flags: (old.flags | flagFinished) &^ flagNeedData}
	})
	return changed
}

// OutputPort is the producer side of a port pair.
type OutputPort struct {
	shared *state
	peer   *InputPort
	binding
}

// NewOutputPort returns an unconnected output port.
func NewOutputPort() *OutputPort {
	return &OutputPort{}
}

// Bind routes this port's transitions into t, naming peer (the consumer's
// node index). Used by the scheduler before execution starts.
func (p *OutputPort) Bind(t *Trigger, peer int) {
	p.binding = binding{trigger: t, node: peer}
}

// Peer returns the connected input port, or nil.
func (p *OutputPort) Peer() *InputPort {
	return p.peer
}

// IsConnected reports whether the port has been paired.
func (p *OutputPort) IsConnected() bool {
	return p.shared != nil
}

// Push hands a block to the consumer. Pushing to a finished port drops the
// block: the consumer is gone.
func (p *OutputPort) Push(block *kblock.DataBlock) error {
	if p.shared == nil {
		return ErrNotConnected
	}
	var full bool
	_, changed := p.shared.update(func(old *snapshot) *snapshot {
		full = false
		if old.finished() {
			return nil
		}
		if old.hasData() {
			full = true
			return nil
		}
		return &snapshot{block: block, flags: old.flags &^ flagNeedData}
	})
	if full {
		return ErrPortFull
	}
	if changed {
		p.notify()
	}
	return nil
}

// HasData reports whether the pushed block is still waiting to be pulled.
func (p *OutputPort) HasData() bool {
	if p.shared == nil {
		return false
	}
	return p.shared.load().hasData()
}

// CanPush reports whether the consumer asked for a block and the slot is
// free. A producer must not generate work before that.
func (p *OutputPort) CanPush() bool {
	if p.shared == nil {
		return false
	}
	s := p.shared.load()
	return !s.finished() && !s.hasData() && s.needData()
}

// NeedData reports whether the consumer asked for more data.
func (p *OutputPort) NeedData() bool {
	if p.shared == nil {
		return false
	}
	return p.shared.load().needData()
}

// IsFinished reports that the port is finished, by either side.
func (p *OutputPort) IsFinished() bool {
	if p.shared == nil {
		return false
	}
	return p.shared.load().finished()
}

// Finish marks the port finished: no more data will be pushed. A block that
// is already buffered stays available to the consumer. Idempotent.
func (p *OutputPort) Finish() {
	if p.finish() {
		p.notify()
	}
}

// Abort finishes the port without notifying the bound trigger.
func (p *OutputPort) Abort() {
	p.finish()
}

func (p *OutputPort) finish() bool {
	if p.shared == nil {
		return false
	}
	_, changed := p.shared.update(func(old *snapshot) *snapshot {
		if old.finished() {
			return nil
		}
		return &snapshot{block: old.block, flags: old.flags | flagFinished}
	})
	return changed
}
