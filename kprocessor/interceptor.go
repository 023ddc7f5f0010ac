package kprocessor

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// StepInfo describes the step an interceptor wraps.
type StepInfo struct {
	// Processor is the processor's Name.
	Processor string
	// Kind is Sync for Process and Async for AsyncProcess.
	Kind Event
}

// StepHandler runs one processor step.
type StepHandler func(ctx context.Context) error

// Interceptor wraps the execution of one processor step with custom logic.
// Signature matches gRPC's interceptor pattern: (ctx, info, handler) -> error
type Interceptor func(ctx context.Context, info StepInfo, handler StepHandler) error

// InterceptorChain manages multiple interceptors in execution order
type InterceptorChain struct {
	interceptors []Interceptor
}

// ChainInterceptors creates a new interceptor chain
func ChainInterceptors(interceptors ...Interceptor) *InterceptorChain {
	return &InterceptorChain{
		interceptors: interceptors,
	}
}

// Len returns the number of interceptors in the chain.
func (c *InterceptorChain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.interceptors)
}

// Execute runs the interceptor chain followed by the final handler.
// Interceptors execute outer-to-inner (first interceptor wraps all others).
func (c *InterceptorChain) Execute(ctx context.Context, info StepInfo, finalHandler StepHandler) error {
	if c.Len() == 0 {
		return finalHandler(ctx)
	}

	// Build handler chain from innermost to outermost
	handler := finalHandler
	for i := len(c.interceptors) - 1; i >= 0; i-- {
		interceptor := c.interceptors[i]
		next := handler
		handler = func(ctx context.Context) error {
			return interceptor(ctx, info, next)
		}
	}

	return handler(ctx)
}

// LoggingInterceptor logs every step at debug level and failures at error level.
func LoggingInterceptor(logger *slog.Logger) Interceptor {
	return func(ctx context.Context, info StepInfo, handler StepHandler) error {
		logger.DebugContext(ctx, "Step start", "processor", info.Processor, "kind", info.Kind)

		err := handler(ctx)

		if err != nil {
			logger.ErrorContext(ctx, "Step failed", "processor", info.Processor, "kind", info.Kind, "error", err)
		} else {
			logger.DebugContext(ctx, "Step done", "processor", info.Processor, "kind", info.Kind)
		}

		return err
	}
}

// CountingInterceptor tracks step counts and cumulative step time in nanoseconds.
func CountingInterceptor(steps *atomic.Int64, stepTime *atomic.Int64) Interceptor {
	return func(ctx context.Context, info StepInfo, handler StepHandler) error {
		start := time.Now()
		err := handler(ctx)
		steps.Add(1)
		stepTime.Add(time.Since(start).Nanoseconds())
		return err
	}
}

// TimeoutInterceptor bounds async steps with a deadline. Sync steps run
// inline and cannot be interrupted, so they pass through unchanged.
func TimeoutInterceptor(timeout time.Duration) Interceptor {
	return func(ctx context.Context, info StepInfo, handler StepHandler) error {
		if info.Kind != Async {
			return handler(ctx)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return handler(ctx)
	}
}
