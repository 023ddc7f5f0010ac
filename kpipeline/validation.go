package kpipeline

import (
	"fmt"
	"strings"

	"github.com/birdayz/kpipe/kport"
)

// Validate checks that the pipeline can be executed: it is non-empty, ends
// in sinks, every port is paired with a port of another processor in the
// pipeline, no port is owned twice and the processor graph is acyclic.
// Returns the first violation.
func (p *Pipeline) Validate() error {
	items := p.Items()
	if len(items) == 0 {
		return ErrEmptyPipeline
	}

	if n := p.OutputLen(); n > 0 {
		return fmt.Errorf("%w: last pipe has %d open outputs", ErrIncompletePipeline, n)
	}

	inOwner := make(map[*kport.InputPort]int)
	outOwner := make(map[*kport.OutputPort]int)
	for i, item := range items {
		for _, in := range item.Inputs {
			if prev, ok := inOwner[in]; ok {
				return fmt.Errorf("%w: input of %s also owned by %s", ErrPortShared, item.Processor.Name(), items[prev].Processor.Name())
			}
			inOwner[in] = i
		}
		for _, out := range item.Outputs {
			if prev, ok := outOwner[out]; ok {
				return fmt.Errorf("%w: output of %s also owned by %s", ErrPortShared, item.Processor.Name(), items[prev].Processor.Name())
			}
			outOwner[out] = i
		}
	}

	children := make([][]int, len(items))
	for i, item := range items {
		for _, in := range item.Inputs {
			if !in.IsConnected() {
				return fmt.Errorf("%w: input of %s", ErrUnconnectedPort, item.Processor.Name())
			}
			if _, ok := outOwner[in.Peer()]; !ok {
				return fmt.Errorf("%w: input of %s is fed from outside the pipeline", ErrUnconnectedPort, item.Processor.Name())
			}
		}
		for _, out := range item.Outputs {
			if !out.IsConnected() {
				return fmt.Errorf("%w: output of %s", ErrUnconnectedPort, item.Processor.Name())
			}
			child, ok := inOwner[out.Peer()]
			if !ok {
				return fmt.Errorf("%w: output of %s leaves the pipeline", ErrUnconnectedPort, item.Processor.Name())
			}
			children[i] = append(children[i], child)
		}
	}

	return detectCycles(items, children)
}

// detectCycles runs a DFS over the processor edges and reports the first
// back edge as a path.
func detectCycles(items []PipeItem, children [][]int) error {
	visited := make([]bool, len(items))
	onStack := make([]bool, len(items))

	var dfs func(node int, path []int) error
	dfs = func(node int, path []int) error {
		visited[node] = true
		onStack[node] = true
		path = append(path, node)

		for _, child := range children[node] {
			if !visited[child] {
				if err := dfs(child, path); err != nil {
					return err
				}
			} else if onStack[child] {
				cycle := append(path, child)
				names := make([]string, len(cycle))
				for i, n := range cycle {
					names[i] = items[n].Processor.Name()
				}
				return fmt.Errorf("%w: %s", ErrCycleDetected, strings.Join(names, " -> "))
			}
		}

		onStack[node] = false
		return nil
	}

	for node := range items {
		if !visited[node] {
			if err := dfs(node, nil); err != nil {
				return err
			}
		}
	}
	return nil
}
