package execution

import (
	"errors"
	"fmt"
)

var (
	// ErrPipelineStalled is returned when no processor is runnable, none is
	// running and not every processor finished. The graph can never make
	// progress again, e.g. a consumer that never asks for data.
	ErrPipelineStalled = errors.New("pipeline stalled")

	// ErrAlreadyRun is returned when a pipeline is run a second time.
	ErrAlreadyRun = errors.New("pipeline already run")

	// ErrProcessorPanic is the cause of a ProcessorError for a recovered panic.
	ErrProcessorPanic = errors.New("processor panicked")
)

// Stage indicates which call of a processor failed.
type Stage string

const (
	StageEvent   Stage = "event"
	StageProcess Stage = "process"
	StageAsync   Stage = "async"
	StagePanic   Stage = "panic"
)

// ProcessorError wraps an error with processor attribution for debugging.
type ProcessorError struct {
	// Processor is the Name of the processor that failed
	Processor string

	// Stage identifies the call that failed
	Stage Stage

	// Cause is the underlying error
	Cause error
}

func (e *ProcessorError) Error() string {
	return fmt.Sprintf("%s error in processor %q: %v", e.Stage, e.Processor, e.Cause)
}

func (e *ProcessorError) Unwrap() error {
	return e.Cause
}

func newProcessorError(processor string, stage Stage, cause error) *ProcessorError {
	return &ProcessorError{
		Processor: processor,
		Stage:     stage,
		Cause:     cause,
	}
}
