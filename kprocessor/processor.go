package kprocessor

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrContractViolation is returned when a processor is stepped without its
// last event authorizing the step, i.e. Process without Sync or AsyncProcess
// without Async.
var ErrContractViolation = errors.New("processor contract violation")

// Event is a processor's report of what the scheduler must do next.
type Event int

const (
	// NeedData means the processor is blocked on a neighbor: its input is
	// empty, or its output still holds a block nobody pulled.
	NeedData Event = iota
	// Sync means there is buffered work to run inline on a worker.
	Sync
	// Async means there is buffered work to run as a suspending task.
	Async
	// Finished is terminal. No further calls are made.
	Finished
)

func (e Event) String() string {
	switch e {
	case NeedData:
		return "NeedData"
	case Sync:
		return "Sync"
	case Async:
		return "Async"
	case Finished:
		return "Finished"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

// Actionable reports whether the scheduler must run a step for e.
func (e Event) Actionable() bool {
	return e == Sync || e == Async
}

// Processor is the unit of computation in a pipeline.
//
// A processor is driven by exactly one goroutine at any instant, so
// implementations need no locking for their own state. Event must only
// move already-available data between ports and internal buffers and report
// what to do next; the actual work happens in Process.
type Processor interface {
	// Name identifies the processor in logs and errors.
	Name() string

	// Event inspects the ports and returns the next required action.
	Event() (Event, error)

	// Process runs synchronous CPU work. Only called right after Event
	// returned Sync.
	Process() error
}

// AsyncProcessor is a Processor with suspending work, e.g. a remote fetch.
// AsyncProcess is only called right after Event returned Async, and runs
// without occupying a worker while it waits.
type AsyncProcessor interface {
	Processor
	AsyncProcess(ctx context.Context) error
}

// Finisher is implemented by sinks and sources that need to run once after
// their last block, e.g. to flush buffered writes.
type Finisher interface {
	OnFinish() error
}

// AsyncFinisher is the suspending variant of Finisher.
type AsyncFinisher interface {
	OnFinish(ctx context.Context) error
}

// stepGuard records the last event reported by an adapter so that steps it
// did not authorize are rejected.
type stepGuard struct {
	name string
	last Event
	ok   bool
}

func (g *stepGuard) report(ev Event) (Event, error) {
	g.last = ev
	g.ok = true
	return ev, nil
}

// consume checks that the last event was want and resets the guard.
func (g *stepGuard) consume(want Event) error {
	if !g.ok || g.last != want {
		got := "none"
		if g.ok {
			got = g.last.String()
		}
		g.ok = false
		return fmt.Errorf("%w: %s step on %q after event %s", ErrContractViolation, want, g.name, got)
	}
	g.ok = false
	return nil
}

// closeInner closes v if it implements io.Closer.
func closeInner(v any) error {
	if c, ok := v.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
