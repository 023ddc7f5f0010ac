// Package kpipe runs query pipelines to completion.
//
// A pipeline is assembled with package kpipeline from processors in package
// kprocessor. An Executor validates it and drives it on a pool of worker
// goroutines until every processor finished or the first error aborted it:
//
//	p := kpipeline.New()
//	_ = p.AddSource(4, newScan)
//	_ = p.Resize(1)
//	_ = p.AddSink(newCollector)
//
//	exec, err := kpipe.New(p, kpipe.WithMaxThreads(8))
//	if err != nil {
//	    return err
//	}
//	return exec.Run(ctx)
package kpipe

import (
	"context"
	"io"
	"log/slog"
	"runtime"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/birdayz/kpipe/internal/execution"
	"github.com/birdayz/kpipe/kmetrics"
	"github.com/birdayz/kpipe/kpipeline"
	"github.com/birdayz/kpipe/kprocessor"
)

// ProcessorError attributes a run failure to one processor and call.
type ProcessorError = execution.ProcessorError

// Stage identifies which call of a processor failed.
type Stage = execution.Stage

// Stats summarizes a finished run.
type Stats = execution.Stats

const (
	StageEvent   = execution.StageEvent
	StageProcess = execution.StageProcess
	StageAsync   = execution.StageAsync
	StagePanic   = execution.StagePanic
)

var (
	// ErrAlreadyRun is returned by a second call to Run.
	ErrAlreadyRun = execution.ErrAlreadyRun
	// ErrPipelineStalled is returned when the pipeline can never progress.
	ErrPipelineStalled = execution.ErrPipelineStalled
	// ErrProcessorPanic is the cause of a ProcessorError for a recovered panic.
	ErrProcessorPanic = execution.ErrProcessorPanic
)

// Executor runs one pipeline once.
type Executor struct {
	pipeline *kpipeline.Pipeline

	maxThreads   int
	maxAsync     int
	log          *slog.Logger
	metrics      *kmetrics.Metrics
	interceptors []kprocessor.Interceptor
	stepLogging  bool

	ran   atomic.Bool
	stats Stats
}

// New validates p and creates an executor for it.
func New(p *kpipeline.Pipeline, opts ...Option) (*Executor, error) {
	e := &Executor{
		pipeline:   p,
		maxThreads: p.MaxThreads(),
		log:        NullLogger(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.maxThreads <= 0 {
		e.maxThreads = runtime.NumCPU()
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return e, nil
}

// MustNew creates an executor, panicking on an invalid pipeline.
// Prefer New() for production code to handle errors gracefully.
func MustNew(p *kpipeline.Pipeline, opts ...Option) *Executor {
	e, err := New(p, opts...)
	if err != nil {
		panic(err)
	}
	return e
}

// Run blocks until every processor finished or the run was aborted by the
// first error or by ctx. Processors implementing io.Closer are closed
// afterwards in either case; close errors are appended to the result.
func (e *Executor) Run(ctx context.Context) error {
	if !e.ran.CompareAndSwap(false, true) {
		return ErrAlreadyRun
	}

	log := e.log.With("run_id", uuid.NewString())

	graph, err := execution.NewGraph(e.pipeline.Items())
	if err != nil {
		return err
	}

	interceptors := e.interceptors
	if e.metrics != nil {
		interceptors = append(interceptors, e.metrics.Interceptor())
	}
	if e.stepLogging {
		interceptors = append(interceptors, kprocessor.LoggingInterceptor(log))
	}

	sched, err := execution.NewScheduler(graph, execution.Config{
		Workers:      e.maxThreads,
		MaxAsync:     e.maxAsync,
		Log:          log,
		Interceptors: kprocessor.ChainInterceptors(interceptors...),
	})
	if err != nil {
		return err
	}

	log.Info("Starting pipeline", "processors", graph.Len(), "workers", e.maxThreads, "max_async", e.maxAsync)

	runErr := sched.Run(ctx)
	e.stats = sched.Stats()

	if e.metrics != nil {
		e.metrics.ObserveRun(runErr)
	}

	if runErr != nil {
		log.Error("Pipeline aborted", "error", runErr)
	} else {
		log.Info("Pipeline finished",
			"duration", e.stats.Duration,
			"sync_steps", e.stats.SyncSteps,
			"async_steps", e.stats.AsyncSteps)
	}

	if closeErr := e.close(); closeErr != nil {
		log.Error("Failed to close processors", "error", closeErr)
		return multierr.Append(runErr, closeErr)
	}
	return runErr
}

// Stats returns counters of the finished run.
func (e *Executor) Stats() Stats {
	return e.stats
}

func (e *Executor) close() error {
	var err error
	for _, item := range e.pipeline.Items() {
		if c, ok := item.Processor.(io.Closer); ok {
			err = multierr.Append(err, c.Close())
		}
	}
	return err
}
