package kpipe

import (
	"log/slog"

	"github.com/birdayz/kpipe/kmetrics"
	"github.com/birdayz/kpipe/kprocessor"
)

// Option is a function that configures an Executor
type Option func(*Executor)

// WithMaxThreads sets the number of worker goroutines running sync steps.
// Overrides the pipeline's own MaxThreads.
var WithMaxThreads = func(n int) Option {
	return func(e *Executor) {
		e.maxThreads = n
	}
}

// WithMaxAsyncTasks bounds the number of concurrently running async steps.
// Zero means unbounded.
var WithMaxAsyncTasks = func(n int) Option {
	return func(e *Executor) {
		e.maxAsync = n
	}
}

// WithLog sets the logger for the executor
var WithLog = func(log *slog.Logger) Option {
	return func(e *Executor) {
		e.log = log
	}
}

// WithMetrics reports every step and run to m.
var WithMetrics = func(m *kmetrics.Metrics) Option {
	return func(e *Executor) {
		e.metrics = m
	}
}

// WithInterceptors adds step interceptors. They run in the given order, the
// first one outermost.
var WithInterceptors = func(interceptors ...kprocessor.Interceptor) Option {
	return func(e *Executor) {
		e.interceptors = append(e.interceptors, interceptors...)
	}
}

// WithStepLogging logs every step at debug level.
var WithStepLogging = func() Option {
	return func(e *Executor) {
		e.stepLogging = true
	}
}

// NullWriter is a writer that discards all data
type NullWriter struct{}

func (NullWriter) Write(p []byte) (int, error) { return len(p), nil }

// NullLogger creates a logger that discards all output
func NullLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(NullWriter{}, nil))
}
