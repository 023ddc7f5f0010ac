package kmetrics

import (
	"context"
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/birdayz/kpipe/kprocessor"
)

func TestInterceptor(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	chain := kprocessor.ChainInterceptors(m.Interceptor())

	ok := func(ctx context.Context) error { return nil }
	assert.NoError(t, chain.Execute(context.Background(), kprocessor.StepInfo{Processor: "sink", Kind: kprocessor.Sync}, ok))
	assert.NoError(t, chain.Execute(context.Background(), kprocessor.StepInfo{Processor: "sink", Kind: kprocessor.Sync}, ok))

	errSend := errors.New("send")
	err := chain.Execute(context.Background(), kprocessor.StepInfo{Processor: "exchange", Kind: kprocessor.Async}, func(ctx context.Context) error {
		assert.Equal(t, 1.0, testutil.ToFloat64(m.AsyncInflight))
		return errSend
	})
	assert.IsError(t, err, errSend)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Steps.WithLabelValues("sink", "Sync")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Steps.WithLabelValues("exchange", "Async")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Errors.WithLabelValues("exchange")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.AsyncInflight))
}

func TestObserveRun(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveRun(nil)
	m.ObserveRun(errors.New("x"))
	m.ObserveRun(nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Runs.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("error")))
}
