package kpipeline

import (
	"fmt"
	"slices"

	"github.com/birdayz/kpipe/kport"
	"github.com/birdayz/kpipe/kprocessor"
)

// Pipeline is the full graph of one query execution.
type Pipeline struct {
	pipes      []*Pipe
	graph      bool
	maxThreads int
}

// New returns an empty pipeline.
func New() *Pipeline {
	return &Pipeline{}
}

// FromGraph builds a pipeline from processors whose ports are already
// connected by hand, e.g. a diamond that does not fit positional stages.
// Validate checks that the graph is closed and acyclic.
func FromGraph(items ...PipeItem) *Pipeline {
	return &Pipeline{
		pipes: []*Pipe{NewPipe(items...)},
		graph: true,
	}
}

// AddPipe appends a stage. The first stage must not have inputs; every later
// stage needs exactly as many inputs as the previous stage has outputs.
// Ports are connected positionally. Pairs that are already connected to each
// other are accepted as they are.
func (p *Pipeline) AddPipe(pipe *Pipe) error {
	if p.graph {
		return fmt.Errorf("%w: cannot add stages to a hand-wired graph", ErrPortArityMismatch)
	}
	inputs := pipe.InputPorts()

	if len(p.pipes) == 0 {
		if len(inputs) != 0 {
			return fmt.Errorf("%w: first pipe has %d inputs, want 0", ErrPortArityMismatch, len(inputs))
		}
		p.pipes = append(p.pipes, pipe)
		return nil
	}

	outputs := p.pipes[len(p.pipes)-1].OutputPorts()
	if len(inputs) != len(outputs) {
		return fmt.Errorf("%w: pipe has %d inputs, previous pipe has %d outputs", ErrPortArityMismatch, len(inputs), len(outputs))
	}

	// Every lane is checked before the first one is connected, so a rejected
	// pipe leaves both stages untouched.
	connect := make([]bool, len(outputs))
	for i := range outputs {
		if outputs[i].Peer() == inputs[i] {
			continue
		}
		if outputs[i].IsConnected() || inputs[i].IsConnected() ||
			slices.Contains(outputs[:i], outputs[i]) || slices.Contains(inputs[:i], inputs[i]) {
			return fmt.Errorf("connecting lane %d: %w", i, kport.ErrAlreadyConnected)
		}
		connect[i] = true
	}
	for i := range outputs {
		if !connect[i] {
			continue
		}
		if err := kport.Connect(outputs[i], inputs[i]); err != nil {
			return fmt.Errorf("connecting lane %d: %w", i, err)
		}
	}

	p.pipes = append(p.pipes, pipe)
	return nil
}

// AddSource adds a first stage of n lanes, each created by fn.
func (p *Pipeline) AddSource(n int, fn func(output *kport.OutputPort) (kprocessor.Processor, error)) error {
	items := make([]PipeItem, 0, n)
	for i := 0; i < n; i++ {
		output := kport.NewOutputPort()
		proc, err := fn(output)
		if err != nil {
			return err
		}
		items = append(items, NewPipeItem(proc, nil, []*kport.OutputPort{output}))
	}
	return p.AddPipe(NewPipe(items...))
}

// AddTransform adds one processor per current output lane.
func (p *Pipeline) AddTransform(fn func(input *kport.InputPort, output *kport.OutputPort) (kprocessor.Processor, error)) error {
	n := p.OutputLen()
	items := make([]PipeItem, 0, n)
	for i := 0; i < n; i++ {
		input := kport.NewInputPort()
		output := kport.NewOutputPort()
		proc, err := fn(input, output)
		if err != nil {
			return err
		}
		items = append(items, NewPipeItem(proc, []*kport.InputPort{input}, []*kport.OutputPort{output}))
	}
	return p.AddPipe(NewPipe(items...))
}

// AddSink terminates every current output lane with a processor made by fn.
func (p *Pipeline) AddSink(fn func(input *kport.InputPort) (kprocessor.Processor, error)) error {
	n := p.OutputLen()
	items := make([]PipeItem, 0, n)
	for i := 0; i < n; i++ {
		input := kport.NewInputPort()
		proc, err := fn(input)
		if err != nil {
			return err
		}
		items = append(items, NewPipeItem(proc, []*kport.InputPort{input}, nil))
	}
	return p.AddPipe(NewPipe(items...))
}

// Resize changes the number of output lanes to n by adding a Resize stage.
// It is a no-op if the pipeline already has n lanes.
func (p *Pipeline) Resize(n int) error {
	cur := p.OutputLen()
	if n <= 0 {
		return fmt.Errorf("%w: resize to %d lanes", ErrPortArityMismatch, n)
	}
	if cur == n {
		return nil
	}
	inputs := make([]*kport.InputPort, cur)
	for i := range inputs {
		inputs[i] = kport.NewInputPort()
	}
	outputs := make([]*kport.OutputPort, n)
	for i := range outputs {
		outputs[i] = kport.NewOutputPort()
	}
	return p.AddPipe(NewPipe(NewPipeItem(kprocessor.NewResize(inputs, outputs), inputs, outputs)))
}

// OutputLen returns the number of open output lanes of the last stage.
func (p *Pipeline) OutputLen() int {
	if len(p.pipes) == 0 || p.graph {
		return 0
	}
	return len(p.pipes[len(p.pipes)-1].OutputPorts())
}

// Pipes returns the stages in order.
func (p *Pipeline) Pipes() []*Pipe {
	return p.pipes
}

// Items returns every processor of every stage in stage order.
func (p *Pipeline) Items() []PipeItem {
	var items []PipeItem
	for _, pipe := range p.pipes {
		items = append(items, pipe.items...)
	}
	return items
}

// SetMaxThreads sets the preferred worker count. Zero leaves the choice to
// the executor.
func (p *Pipeline) SetMaxThreads(n int) {
	p.maxThreads = n
}

// MaxThreads returns the preferred worker count, or zero.
func (p *Pipeline) MaxThreads() int {
	return p.maxThreads
}
