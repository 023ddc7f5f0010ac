package execution

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/errgroup"

	"github.com/birdayz/kpipe/kprocessor"
)

// Config holds configuration for a Scheduler
type Config struct {
	// Workers is the number of goroutines running sync steps.
	// Default: runtime.NumCPU()
	Workers int

	// MaxAsync bounds the number of concurrently running async steps.
	// Zero or less means unbounded.
	MaxAsync int

	Log          *slog.Logger
	Interceptors *kprocessor.InterceptorChain
}

// Stats summarizes a finished run.
type Stats struct {
	SyncSteps  int64
	AsyncSteps int64
	Duration   time.Duration
}

// Scheduler drives every processor of a Graph until all of them finished or
// the first error aborts the run.
//
// Nodes whose last event was Sync or Async wait in a FIFO ready queue.
// Workers take them in order, run the step and re-poll the node together with
// every neighbor whose ports changed during the step. NeedData nodes are
// never polled until such a change names them.
type Scheduler struct {
	graph *Graph
	cfg   Config
	log   *slog.Logger

	ready chan *node
	pool  *ants.Pool
	slots asyncSlots

	ctx    context.Context
	cancel context.CancelFunc

	// inflight counts tickets: queued nodes, running steps and the
	// bootstrap poll. The run is quiescent when it drops to zero.
	inflight atomic.Int64
	finished atomic.Int64

	syncSteps  atomic.Int64
	asyncSteps atomic.Int64

	aborted  atomic.Bool
	errOnce  sync.Once
	err      error
	done     chan struct{}
	doneOnce sync.Once
	asyncWG  sync.WaitGroup

	started atomic.Bool
	stats   Stats
}

// NewScheduler creates a single-use scheduler for g.
func NewScheduler(g *Graph, cfg Config) (*Scheduler, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Log == nil {
		cfg.Log = slog.New(slog.DiscardHandler)
	}

	// The pool never blocks a submitting worker. MaxAsync is enforced by
	// asyncSlots, which parks nodes instead.
	pool, err := ants.NewPool(-1, ants.WithNonblocking(true))
	if err != nil {
		return nil, fmt.Errorf("failed to create async pool: %w", err)
	}

	return &Scheduler{
		graph: g,
		cfg:   cfg,
		log:   cfg.Log,
		ready: make(chan *node, g.Len()),
		pool:  pool,
		slots: asyncSlots{limit: cfg.MaxAsync},
		done:  make(chan struct{}),
	}, nil
}

// Run blocks until every processor finished, a processor failed, or ctx is
// done. It returns nil on success, the first error otherwise. After a failure
// every port is finished and all async steps have returned.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyRun
	}
	start := time.Now()
	defer s.pool.Release()

	s.ctx, s.cancel = context.WithCancel(ctx)
	defer s.cancel()

	go func() {
		select {
		case <-s.ctx.Done():
			if err := ctx.Err(); err != nil {
				s.fail(err)
			}
		case <-s.done:
		}
	}()

	// Bootstrap ticket: keeps the run from looking quiescent until every
	// node had its first poll.
	s.inflight.Store(1)
	var work []int
	for _, n := range s.graph.nodes {
		work, _ = s.poll(n, false, work)
	}
	s.drainWork(work)
	s.release()

	workers := min(s.cfg.Workers, max(s.graph.Len(), 1))
	s.log.Debug("Starting workers", "workers", workers, "processors", s.graph.Len())

	var grp errgroup.Group
	for i := 0; i < workers; i++ {
		grp.Go(s.work)
	}
	_ = grp.Wait()

	s.asyncWG.Wait()

	s.stats = Stats{
		SyncSteps:  s.syncSteps.Load(),
		AsyncSteps: s.asyncSteps.Load(),
		Duration:   time.Since(start),
	}
	return s.err
}

// Stats returns counters of the last Run.
func (s *Scheduler) Stats() Stats {
	return s.stats
}

func (s *Scheduler) work() error {
	for {
		select {
		case <-s.done:
			return nil
		case n := <-s.ready:
			s.step(n)
		}
	}
}

// step runs the authorized step of a scheduled node.
func (s *Scheduler) step(n *node) {
	if s.aborted.Load() {
		return
	}

	switch n.event {
	case kprocessor.Async:
		// A parked node keeps its ticket until a slot frees up.
		if !s.slots.acquire(n) {
			return
		}
		s.asyncWG.Add(1)
		if err := s.pool.Submit(func() { s.runAsync(n) }); err != nil {
			s.asyncWG.Done()
			s.fail(newProcessorError(n.proc.Name(), StageAsync, err))
		}
	default:
		s.syncSteps.Add(1)
		err := s.runStep(n, kprocessor.Sync, StageProcess, func(context.Context) error {
			return n.proc.Process()
		})
		if err != nil {
			return
		}
		s.afterStep(n)
	}
}

// runAsync runs the async step of n on a pool goroutine. The goroutine keeps
// its slot and continues with the oldest parked node, if any.
func (s *Scheduler) runAsync(n *node) {
	defer s.asyncWG.Done()
	for n != nil {
		s.asyncSteps.Add(1)
		if err := s.runStep(n, kprocessor.Async, StageAsync, n.async.AsyncProcess); err != nil {
			return
		}
		s.afterStep(n)
		if s.aborted.Load() {
			return
		}
		n = s.slots.next()
	}
}

// runStep runs fn through the interceptor chain, recovering panics. A
// failure is reported to fail and returned.
func (s *Scheduler) runStep(n *node, kind kprocessor.Event, stage Stage, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newProcessorError(n.proc.Name(), StagePanic, fmt.Errorf("%w: %v", ErrProcessorPanic, r))
			s.fail(err)
		}
	}()

	info := kprocessor.StepInfo{Processor: n.proc.Name(), Kind: kind}
	if err := s.cfg.Interceptors.Execute(s.ctx, info, fn); err != nil {
		perr := newProcessorError(n.proc.Name(), stage, err)
		s.fail(perr)
		return perr
	}
	return nil
}

// afterStep re-polls n and every node it touched, then gives up the ticket
// held for n unless n was queued again.
func (s *Scheduler) afterStep(n *node) {
	if s.aborted.Load() {
		return
	}
	work := n.trigger.Drain(nil)
	work, queued := s.poll(n, true, work)
	s.drainWork(work)
	if !queued {
		s.release()
	}
}

// drainWork polls the queued node ids until no further node is touched.
func (s *Scheduler) drainWork(work []int) {
	for len(work) > 0 {
		id := work[len(work)-1]
		work = work[:len(work)-1]
		work, _ = s.poll(s.graph.nodes[id], false, work)
	}
}

// poll evaluates n's event and queues n if it is actionable. holder marks
// the caller as owner of n's ticket, which then moves to the queue instead
// of taking a new one. Non-holders back off from nodes that are not idle.
// Node ids touched by the event are appended to work; queued reports whether
// n went to the ready queue.
func (s *Scheduler) poll(n *node, holder bool, work []int) (_ []int, queued bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !holder && n.status != statusIdle {
		return work, false
	}
	if s.aborted.Load() {
		return work, false
	}

	ev, err := s.event(n)
	work = n.trigger.Drain(work)
	if err != nil {
		n.status = statusFinished
		s.fail(err)
		return work, false
	}

	switch ev {
	case kprocessor.Sync, kprocessor.Async:
		if ev == kprocessor.Async && n.async == nil {
			n.status = statusFinished
			s.fail(newProcessorError(n.proc.Name(), StageEvent,
				fmt.Errorf("%w: async event from a processor without AsyncProcess", kprocessor.ErrContractViolation)))
			return work, false
		}
		n.event = ev
		n.status = statusScheduled
		if !holder {
			s.inflight.Add(1)
		}
		s.ready <- n
		return work, true
	case kprocessor.Finished:
		n.status = statusFinished
		s.finished.Add(1)
	default:
		n.status = statusIdle
	}
	return work, false
}

// event calls Event with panic recovery.
func (s *Scheduler) event(n *node) (ev kprocessor.Event, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newProcessorError(n.proc.Name(), StagePanic, fmt.Errorf("%w: %v", ErrProcessorPanic, r))
		}
	}()
	ev, err = n.proc.Event()
	if err != nil {
		return ev, newProcessorError(n.proc.Name(), StageEvent, err)
	}
	return ev, nil
}

// release gives up one ticket. The last ticket decides the run: success if
// every node finished, a stall otherwise.
func (s *Scheduler) release() {
	if s.inflight.Add(-1) != 0 || s.aborted.Load() {
		return
	}
	if int(s.finished.Load()) == s.graph.Len() {
		s.errOnce.Do(s.finish)
		return
	}

	var pending []string
	for _, n := range s.graph.nodes {
		n.mu.Lock()
		if n.status != statusFinished {
			pending = append(pending, n.proc.Name())
		}
		n.mu.Unlock()
	}
	s.fail(fmt.Errorf("%w: %d of %d processors cannot make progress: %v",
		ErrPipelineStalled, len(pending), s.graph.Len(), pending))
}

// fail aborts the run with err unless an earlier error already did. Later
// errors are logged and discarded.
func (s *Scheduler) fail(err error) {
	first := false
	s.errOnce.Do(func() {
		first = true
		s.err = err
		s.aborted.Store(true)
		s.log.Debug("Aborting pipeline", "error", err)
		s.graph.abortPorts()
		if s.cancel != nil {
			s.cancel()
		}
		s.finish()
	})
	if !first {
		s.log.Debug("Discarding error after abort", "error", err)
	}
}

func (s *Scheduler) finish() {
	s.doneOnce.Do(func() {
		close(s.done)
	})
}

// asyncSlots bounds the number of running async steps. Nodes that find no
// free slot wait in FIFO order.
type asyncSlots struct {
	mu      sync.Mutex
	limit   int
	active  int
	pending []*node
}

// acquire takes a slot for n, or parks n and returns false.
func (a *asyncSlots) acquire(n *node) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.limit > 0 && a.active >= a.limit {
		a.pending = append(a.pending, n)
		return false
	}
	a.active++
	return true
}

// next hands the caller's slot to the oldest parked node. It returns nil and
// frees the slot when nothing is parked.
func (a *asyncSlots) next() *node {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.pending) == 0 {
		a.active--
		return nil
	}
	n := a.pending[0]
	a.pending[0] = nil
	a.pending = a.pending[1:]
	return n
}
