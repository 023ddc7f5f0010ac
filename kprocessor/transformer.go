package kprocessor

import (
	"github.com/birdayz/kpipe/kblock"
	"github.com/birdayz/kpipe/kport"
)

// Transform maps one input block to at most one output block. Returning a
// nil block drops the input, e.g. a filter that matched no rows.
type Transform interface {
	Name() string
	Transform(block *kblock.DataBlock) (*kblock.DataBlock, error)
}

// Flusher is implemented by transforms that hold state across blocks. Flush
// runs once after the input finished; a non-nil block is forwarded before
// the output finishes.
type Flusher interface {
	Flush() (*kblock.DataBlock, error)
}

// Transformer adapts a Transform into a Processor with one input and one
// output port. Event pulls a block only when the output can take the result,
// so at most one block is in flight per Transformer.
type Transformer struct {
	inner  Transform
	input  *kport.InputPort
	output *kport.OutputPort
	guard  stepGuard

	inputData *kblock.DataBlock

	flusher Flusher
	flushed bool
}

// NewTransformer wraps t as a processor between input and output.
func NewTransformer(input *kport.InputPort, output *kport.OutputPort, t Transform) *Transformer {
	tr := &Transformer{
		inner:  t,
		input:  input,
		output: output,
		guard:  stepGuard{name: t.Name()},
	}
	tr.flusher, _ = t.(Flusher)
	return tr
}

func (t *Transformer) Name() string {
	return t.inner.Name()
}

func (t *Transformer) Event() (Event, error) {
	if t.output.IsFinished() {
		t.input.Finish()
		return t.guard.report(Finished)
	}

	if t.inputData != nil {
		if !t.output.CanPush() {
			return t.guard.report(NeedData)
		}
		return t.guard.report(Sync)
	}

	if t.input.IsFinished() {
		if t.flusher != nil && !t.flushed {
			if !t.output.CanPush() {
				return t.guard.report(NeedData)
			}
			return t.guard.report(Sync)
		}
		t.output.Finish()
		return t.guard.report(Finished)
	}

	// Nothing is requested upstream until downstream asked for a block.
	if !t.output.CanPush() {
		return t.guard.report(NeedData)
	}

	if t.input.HasData() {
		block, err := t.input.Pull()
		if err != nil {
			return NeedData, err
		}
		t.inputData = block
		return t.guard.report(Sync)
	}

	t.input.SetNeedData()
	return t.guard.report(NeedData)
}

func (t *Transformer) Process() error {
	if err := t.guard.consume(Sync); err != nil {
		return err
	}

	var (
		out *kblock.DataBlock
		err error
	)
	switch {
	case t.inputData != nil:
		block := t.inputData
		t.inputData = nil
		out, err = t.inner.Transform(block)
	case t.flusher != nil && !t.flushed:
		t.flushed = true
		out, err = t.flusher.Flush()
	}
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return t.output.Push(out)
}

// TransformFunc adapts a function into a Transform.
type TransformFunc struct {
	name string
	fn   func(*kblock.DataBlock) (*kblock.DataBlock, error)
}

// NewTransformFunc returns a named Transform calling fn for every block.
//
// Example:
//
//	kprocessor.NewTransformer(in, out, kprocessor.NewTransformFunc("double",
//	    func(b *kblock.DataBlock) (*kblock.DataBlock, error) {
//	        return kblock.New(b.Payload().(int)*2, b.NumRows()), nil
//	    }))
func NewTransformFunc(name string, fn func(*kblock.DataBlock) (*kblock.DataBlock, error)) *TransformFunc {
	return &TransformFunc{name: name, fn: fn}
}

func (f *TransformFunc) Name() string {
	return f.name
}

func (f *TransformFunc) Transform(block *kblock.DataBlock) (*kblock.DataBlock, error) {
	return f.fn(block)
}

// Close closes the wrapped capability if it implements io.Closer.
func (t *Transformer) Close() error {
	return closeInner(t.inner)
}

var _ Processor = (*Transformer)(nil)
