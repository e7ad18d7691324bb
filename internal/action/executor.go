package action

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/nerrad567/gray-logic-rules/internal/rules"
)

// Logger defines the logging interface used by the Executor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Runner schedules work on a bounded pool. *workerpool.Pool implements it.
type Runner interface {
	Go(task func(ctx context.Context)) bool
}

// Result reports how a chain ended.
type Result struct {
	ChainID   string
	Success   bool // Every operation ran and returned nil
	Stopped   bool // A stop request cut the chain short
	Completed int  // Operations that returned nil
	Total     int
	Err       error // First failure, nil on success or stop
}

// Handle controls one running chain.
type Handle struct {
	id       string
	total    int
	stop     atomic.Bool
	started  atomic.Bool // Claimed by whichever of the worker and Stop gets there first
	finished atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	onDone   func(Result)
}

// ID returns the chain ID.
func (h *Handle) ID() string { return h.id }

// Stop requests the chain to stop and blocks until the worker has
// acknowledged. It returns true if the chain had already run to its end
// (success or failure) before the stop took effect.
//
// A chain still waiting for a worker is stopped without waiting: Done is
// closed at once and onDone runs on a new goroutine, so callers holding
// locks never wait for pool admission.
func (h *Handle) Stop() bool {
	h.stop.Store(true)
	h.cancel()
	if h.started.CompareAndSwap(false, true) {
		close(h.done)
		if h.onDone != nil {
			go h.onDone(Result{ChainID: h.id, Stopped: true, Total: h.total})
		}
		return false
	}
	<-h.done
	return h.finished.Load()
}

// Done is closed once the worker has finished with the chain.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Finished reports whether the chain ran to its end without being stopped.
// It is only meaningful after Done is closed.
func (h *Handle) Finished() bool { return h.finished.Load() }

// Executor runs operation chains on a Runner.
type Executor struct {
	pool    Runner
	factory Factory
	logger  Logger
}

// NewExecutor creates an executor. A nil logger discards output.
func NewExecutor(pool Runner, factory Factory, logger Logger) *Executor {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Executor{pool: pool, factory: factory, logger: logger}
}

// RunAsync starts ops on a pool worker and returns immediately.
//
// onDone, if non-nil, is called exactly once after the handle's Done
// channel is closed: on the worker goroutine, or on its own goroutine when
// the chain was stopped before a worker picked it up. If the pool refuses
// the task the chain is reported as failed.
func (e *Executor) RunAsync(chainID string, ops []rules.OperationDef, onDone func(Result)) *Handle {
	ctx, cancel := context.WithCancel(WithChainID(context.Background(), chainID))
	h := &Handle{
		id:     chainID,
		total:  len(ops),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		onDone: onDone,
	}

	accepted := e.pool.Go(func(poolCtx context.Context) {
		if !h.started.CompareAndSwap(false, true) {
			e.logger.Debug("chain stopped before start", "chain_id", chainID)
			return
		}
		stopLink := context.AfterFunc(poolCtx, cancel)
		res := e.run(h, ops)
		stopLink()
		cancel()

		h.finished.Store(!res.Stopped)
		close(h.done)
		if onDone != nil {
			onDone(res)
		}
	})
	if !accepted && h.started.CompareAndSwap(false, true) {
		cancel()
		res := Result{ChainID: chainID, Total: len(ops), Err: fmt.Errorf("action: worker pool closed")}
		h.finished.Store(true)
		close(h.done)
		if onDone != nil {
			go onDone(res)
		}
	}
	return h
}

func (e *Executor) run(h *Handle, ops []rules.OperationDef) Result {
	res := Result{ChainID: h.id, Total: len(ops)}

	for i, def := range ops {
		if h.stop.Load() || h.ctx.Err() != nil {
			res.Stopped = true
			e.logger.Debug("chain stopped", "chain_id", h.id, "completed", res.Completed, "total", res.Total)
			return res
		}

		if err := e.runOne(h.ctx, def); err != nil {
			// An operation cut short by a stop request is not a failure.
			if h.stop.Load() {
				res.Stopped = true
				e.logger.Debug("chain stopped during operation", "chain_id", h.id, "operation", def.Name)
				return res
			}
			res.Err = fmt.Errorf("operation %d (%s): %w", i, def.Name, err)
			e.logger.Warn("chain failed", "chain_id", h.id, "operation", def.Name, "error", err)
			return res
		}
		res.Completed++
	}

	res.Success = true
	return res
}

// runOne builds and executes one operation, converting panics to errors.
func (e *Executor) runOne(ctx context.Context, def rules.OperationDef) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	op, err := e.factory.AtomicOp(def)
	if err != nil {
		return err
	}
	if op == nil {
		return fmt.Errorf("%w: %q", ErrUnknownOperation, def.Name)
	}
	return op.Execute(ctx)
}
