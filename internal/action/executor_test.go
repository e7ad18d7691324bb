package action

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-rules/internal/rules"
	"github.com/nerrad567/gray-logic-rules/internal/workerpool"
)

// ─── Mock Dependencies ───────────────────────────────────────────────────

// recordingFactory builds operations that log their name, with optional
// per-name behaviour overrides.
type recordingFactory struct {
	mu   sync.Mutex
	ran  []string
	with map[string]OpFunc
}

func (f *recordingFactory) AtomicOp(def rules.OperationDef) (AtomicOp, error) {
	if def.Name == "unbuildable" {
		return nil, ErrUnknownOperation
	}
	custom := f.with[def.Name]
	return OpFunc(func(ctx context.Context) error {
		f.mu.Lock()
		f.ran = append(f.ran, def.Name)
		f.mu.Unlock()
		if custom != nil {
			return custom(ctx)
		}
		return nil
	}), nil
}

func (f *recordingFactory) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ran...)
}

type closedPool struct{}

func (closedPool) Go(func(context.Context)) bool { return false }

// parkedPool accepts tasks but only runs them when release is called,
// standing in for a pool with every worker busy.
type parkedPool struct {
	mu    sync.Mutex
	tasks []func(context.Context)
}

func (p *parkedPool) Go(task func(context.Context)) bool {
	p.mu.Lock()
	p.tasks = append(p.tasks, task)
	p.mu.Unlock()
	return true
}

func (p *parkedPool) release() {
	p.mu.Lock()
	tasks := p.tasks
	p.tasks = nil
	p.mu.Unlock()
	for _, task := range tasks {
		task(context.Background())
	}
}

func defs(names ...string) []rules.OperationDef {
	out := make([]rules.OperationDef, len(names))
	for i, n := range names {
		out[i] = rules.OperationDef{Name: n}
	}
	return out
}

func newTestExecutor(t *testing.T, f Factory) *Executor {
	t.Helper()
	pool := workerpool.New(3)
	t.Cleanup(pool.Shutdown)
	return NewExecutor(pool, f, nil)
}

func waitResult(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for chain result")
		return Result{}
	}
}

// ─── Tests ───────────────────────────────────────────────────────────────

func TestRunAsync_RunsInOrder(t *testing.T) {
	f := &recordingFactory{}
	e := newTestExecutor(t, f)

	results := make(chan Result, 1)
	h := e.RunAsync("c1", defs("a", "b", "c"), func(r Result) { results <- r })

	r := waitResult(t, results)
	assert.Equal(t, Result{ChainID: "c1", Success: true, Completed: 3, Total: 3}, r)
	assert.Equal(t, []string{"a", "b", "c"}, f.names())
	assert.Equal(t, "c1", h.ID())
	assert.True(t, h.Finished())
	assert.True(t, h.Stop(), "stopping a finished chain reports already finished")
}

func TestRunAsync_FailureEndsChain(t *testing.T) {
	boom := errors.New("boom")
	f := &recordingFactory{with: map[string]OpFunc{
		"fail": func(context.Context) error { return boom },
	}}
	e := newTestExecutor(t, f)

	results := make(chan Result, 1)
	e.RunAsync("c", defs("a", "fail", "never"), func(r Result) { results <- r })

	r := waitResult(t, results)
	assert.False(t, r.Success)
	assert.False(t, r.Stopped)
	assert.Equal(t, 1, r.Completed)
	assert.ErrorIs(t, r.Err, boom)
	assert.Equal(t, []string{"a", "fail"}, f.names())
}

func TestRunAsync_PanicIsFailure(t *testing.T) {
	f := &recordingFactory{with: map[string]OpFunc{
		"panic": func(context.Context) error { panic("kaboom") },
	}}
	e := newTestExecutor(t, f)

	results := make(chan Result, 1)
	e.RunAsync("c", defs("panic", "never"), func(r Result) { results <- r })

	r := waitResult(t, results)
	assert.False(t, r.Success)
	require.Error(t, r.Err)
	assert.Contains(t, r.Err.Error(), "kaboom")
}

func TestRunAsync_FactoryErrorIsFailure(t *testing.T) {
	e := newTestExecutor(t, &recordingFactory{})

	results := make(chan Result, 1)
	e.RunAsync("c", defs("unbuildable"), func(r Result) { results <- r })

	r := waitResult(t, results)
	assert.False(t, r.Success)
	assert.ErrorIs(t, r.Err, ErrUnknownOperation)
}

func TestHandle_StopBetweenOperations(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	f := &recordingFactory{with: map[string]OpFunc{
		// Ignores cancellation: an in-flight operation always finishes.
		"slow": func(context.Context) error {
			close(entered)
			<-release
			return nil
		},
	}}
	e := newTestExecutor(t, f)

	results := make(chan Result, 1)
	h := e.RunAsync("c", defs("slow", "after"), func(r Result) { results <- r })
	<-entered

	stopped := make(chan bool, 1)
	go func() { stopped <- h.Stop() }()

	select {
	case <-stopped:
		t.Fatal("Stop returned before the in-flight operation finished")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)

	assert.False(t, <-stopped)
	r := waitResult(t, results)
	assert.True(t, r.Stopped)
	assert.False(t, r.Success)
	assert.NoError(t, r.Err)
	assert.Equal(t, 1, r.Completed)
	assert.Equal(t, []string{"slow"}, f.names())
}

func TestHandle_StopCancelsCooperativeOperation(t *testing.T) {
	entered := make(chan struct{})
	f := &recordingFactory{with: map[string]OpFunc{
		"wait": func(ctx context.Context) error {
			close(entered)
			<-ctx.Done()
			return ctx.Err()
		},
	}}
	e := newTestExecutor(t, f)

	results := make(chan Result, 1)
	h := e.RunAsync("c", defs("wait", "after"), func(r Result) { results <- r })
	<-entered

	assert.False(t, h.Stop())
	r := waitResult(t, results)
	assert.True(t, r.Stopped)
	assert.NoError(t, r.Err, "cancellation after a stop is not a failure")
}

func TestRunAsync_OperationSeesChainID(t *testing.T) {
	got := make(chan string, 1)
	f := &recordingFactory{with: map[string]OpFunc{
		"id": func(ctx context.Context) error {
			id, _ := ChainID(ctx)
			got <- id
			return nil
		},
	}}
	e := newTestExecutor(t, f)

	e.RunAsync("chain-42", defs("id"), nil)
	assert.Equal(t, "chain-42", <-got)
}

func TestRunAsync_PoolRejects(t *testing.T) {
	e := NewExecutor(closedPool{}, &recordingFactory{}, nil)

	results := make(chan Result, 1)
	h := e.RunAsync("c", defs("a"), func(r Result) { results <- r })

	r := waitResult(t, results)
	assert.False(t, r.Success)
	assert.Error(t, r.Err)
	assert.True(t, h.Stop())
}

func TestRunAsync_EmptyChainSucceeds(t *testing.T) {
	e := newTestExecutor(t, &recordingFactory{})

	results := make(chan Result, 1)
	h := e.RunAsync("c", nil, func(r Result) { results <- r })

	r := waitResult(t, results)
	assert.True(t, r.Success)
	<-h.Done()
}

func TestHandle_StopBeforeWorkerIsFree(t *testing.T) {
	pool := &parkedPool{}
	f := &recordingFactory{}
	e := NewExecutor(pool, f, nil)

	var calls sync.WaitGroup
	calls.Add(1)
	results := make(chan Result, 2)
	h := e.RunAsync("queued", defs("a", "b"), func(r Result) {
		results <- r
		calls.Done()
	})

	stopped := make(chan bool, 1)
	go func() { stopped <- h.Stop() }()

	select {
	case finished := <-stopped:
		assert.False(t, finished)
	case <-time.After(time.Second):
		t.Fatal("Stop waited for a worker that was never free")
	}
	<-h.Done()

	r := waitResult(t, results)
	assert.Equal(t, Result{ChainID: "queued", Stopped: true, Total: 2}, r)

	// The worker arrives late and must neither run operations nor report again.
	pool.release()
	calls.Wait()
	assert.Empty(t, f.names())
	assert.Empty(t, results)
	assert.False(t, h.Stop(), "second stop returns the same answer")
}
