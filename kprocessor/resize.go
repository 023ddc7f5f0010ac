package kprocessor

import (
	"fmt"

	"github.com/birdayz/kpipe/kblock"
	"github.com/birdayz/kpipe/kport"
)

// Resize repartitions N input lanes into M output lanes. Blocks of one input
// keep their order; there is no ordering across inputs. Inputs are polled
// round-robin so a busy lane cannot starve the others.
type Resize struct {
	name    string
	inputs  []*kport.InputPort
	outputs []*kport.OutputPort
	guard   stepGuard

	pending *kblock.DataBlock

	nextInput  int
	nextOutput int
}

// NewResize returns a processor moving blocks from any of inputs to any of
// outputs.
func NewResize(inputs []*kport.InputPort, outputs []*kport.OutputPort) *Resize {
	name := fmt.Sprintf("Resize(%d->%d)", len(inputs), len(outputs))
	return &Resize{
		name:    name,
		inputs:  inputs,
		outputs: outputs,
		guard:   stepGuard{name: name},
	}
}

func (r *Resize) Name() string {
	return r.name
}

func (r *Resize) Event() (Event, error) {
	if r.allOutputsFinished() {
		for _, in := range r.inputs {
			in.Finish()
		}
		return r.guard.report(Finished)
	}

	if r.pending != nil {
		if r.freeOutput() < 0 {
			return r.guard.report(NeedData)
		}
		return r.guard.report(Sync)
	}

	if r.allInputsFinished() {
		for _, out := range r.outputs {
			out.Finish()
		}
		return r.guard.report(Finished)
	}

	if r.freeOutput() < 0 {
		return r.guard.report(NeedData)
	}

	for i := 0; i < len(r.inputs); i++ {
		idx := (r.nextInput + i) % len(r.inputs)
		in := r.inputs[idx]
		if in.HasData() {
			block, err := in.Pull()
			if err != nil {
				return NeedData, err
			}
			r.pending = block
			r.nextInput = (idx + 1) % len(r.inputs)
			return r.guard.report(Sync)
		}
	}

	for _, in := range r.inputs {
		in.SetNeedData()
	}
	return r.guard.report(NeedData)
}

func (r *Resize) Process() error {
	if err := r.guard.consume(Sync); err != nil {
		return err
	}
	block := r.pending
	if block == nil {
		return nil
	}
	idx := r.freeOutput()
	if idx < 0 {
		return nil
	}
	r.pending = nil
	r.nextOutput = (idx + 1) % len(r.outputs)
	return r.outputs[idx].Push(block)
}

// freeOutput returns the index of the next output that asked for a block and
// can take it, or -1.
func (r *Resize) freeOutput() int {
	for i := 0; i < len(r.outputs); i++ {
		idx := (r.nextOutput + i) % len(r.outputs)
		if r.outputs[idx].CanPush() {
			return idx
		}
	}
	return -1
}

func (r *Resize) allInputsFinished() bool {
	for _, in := range r.inputs {
		if !in.IsFinished() {
			return false
		}
	}
	return true
}

func (r *Resize) allOutputsFinished() bool {
	for _, out := range r.outputs {
		if !out.IsFinished() {
			return false
		}
	}
	return true
}

var _ Processor = (*Resize)(nil)
