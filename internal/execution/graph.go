package execution

import (
	"fmt"
	"sync"

	"github.com/birdayz/kpipe/kpipeline"
	"github.com/birdayz/kpipe/kport"
	"github.com/birdayz/kpipe/kprocessor"
)

type status int

const (
	statusIdle status = iota
	statusScheduled
	statusFinished
)

// node is the scheduler's view of one processor.
//
// mu guards status and event. While a node is idle, whoever holds mu may
// call Event. While it is scheduled, only the holder of its ticket drives
// it; everybody else backs off. The trigger belongs to whoever currently
// drives the processor.
type node struct {
	id    int
	proc  kprocessor.Processor
	async kprocessor.AsyncProcessor

	inputs  []*kport.InputPort
	outputs []*kport.OutputPort

	trigger kport.Trigger

	mu     sync.Mutex
	status status
	event  kprocessor.Event
}

// Graph is the execution graph built from a validated pipeline.
type Graph struct {
	nodes []*node
}

// NewGraph indexes the processors of items and binds every port to its
// owner's trigger so that flag transitions name the peer node.
// Ports must already be connected within items, which
// kpipeline.Pipeline.Validate guarantees.
func NewGraph(items []kpipeline.PipeItem) (*Graph, error) {
	g := &Graph{nodes: make([]*node, len(items))}

	inOwner := make(map[*kport.InputPort]int)
	outOwner := make(map[*kport.OutputPort]int)
	for i, item := range items {
		n := &node{
			id:      i,
			proc:    item.Processor,
			inputs:  item.Inputs,
			outputs: item.Outputs,
		}
		n.async, _ = item.Processor.(kprocessor.AsyncProcessor)
		g.nodes[i] = n

		for _, in := range item.Inputs {
			inOwner[in] = i
		}
		for _, out := range item.Outputs {
			outOwner[out] = i
		}
	}

	for _, n := range g.nodes {
		for _, in := range n.inputs {
			peer, ok := outOwner[in.Peer()]
			if !ok {
				return nil, fmt.Errorf("%w: input of %s", kpipeline.ErrUnconnectedPort, n.proc.Name())
			}
			in.Bind(&n.trigger, peer)
		}
		for _, out := range n.outputs {
			peer, ok := inOwner[out.Peer()]
			if !ok {
				return nil, fmt.Errorf("%w: output of %s", kpipeline.ErrUnconnectedPort, n.proc.Name())
			}
			out.Bind(&n.trigger, peer)
		}
	}

	return g, nil
}

// Len returns the number of processors.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// abortPorts finishes every port without notifying triggers.
func (g *Graph) abortPorts() {
	for _, n := range g.nodes {
		for _, in := range n.inputs {
			in.Abort()
		}
		for _, out := range n.outputs {
			out.Abort()
		}
	}
}
