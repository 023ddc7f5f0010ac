// Package kpipeline assembles processors and ports into an executable graph.
//
// A Pipeline is an ordered sequence of Pipes. Every Pipe is one logical
// stage: a set of processors running as parallel lanes. Adjacent pipes are
// connected positionally, output i of stage n to input i of stage n+1.
package kpipeline

import (
	"errors"

	"github.com/birdayz/kpipe/kport"
	"github.com/birdayz/kpipe/kprocessor"
)

var (
	ErrEmptyPipeline      = errors.New("pipeline has no processors")
	ErrUnconnectedPort    = errors.New("unconnected port")
	ErrPortShared         = errors.New("port referenced by more than one processor")
	ErrCycleDetected      = errors.New("cycle detected")
	ErrPortArityMismatch  = errors.New("port arity mismatch")
	ErrIncompletePipeline = errors.New("pipeline does not end in sinks")
)

// PipeItem is one processor together with the ports it owns.
type PipeItem struct {
	Processor kprocessor.Processor
	Inputs    []*kport.InputPort
	Outputs   []*kport.OutputPort
}

// NewPipeItem is shorthand for a PipeItem literal.
func NewPipeItem(p kprocessor.Processor, inputs []*kport.InputPort, outputs []*kport.OutputPort) PipeItem {
	return PipeItem{Processor: p, Inputs: inputs, Outputs: outputs}
}

// Pipe is one stage of a pipeline.
type Pipe struct {
	items []PipeItem
}

// NewPipe groups items into a stage. Ports are exposed in item order.
func NewPipe(items ...PipeItem) *Pipe {
	return &Pipe{items: items}
}

// Items returns the processors of the stage.
func (p *Pipe) Items() []PipeItem {
	return p.items
}

// InputPorts returns all input ports of the stage in lane order.
func (p *Pipe) InputPorts() []*kport.InputPort {
	var ports []*kport.InputPort
	for _, item := range p.items {
		ports = append(ports, item.Inputs...)
	}
	return ports
}

// OutputPorts returns all output ports of the stage in lane order.
func (p *Pipe) OutputPorts() []*kport.OutputPort {
	var ports []*kport.OutputPort
	for _, item := range p.items {
		ports = append(ports, item.Outputs...)
	}
	return ports
}
