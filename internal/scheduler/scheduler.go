package scheduler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-rules/internal/action"
	"github.com/nerrad567/gray-logic-rules/internal/rules"
	"github.com/nerrad567/gray-logic-rules/internal/state"
)

// Domain errors for the scheduler package.
var (
	// ErrRunning is returned when an operation requires a stopped scheduler.
	ErrRunning = errors.New("scheduler: running")

	// ErrNoModel is returned when a nil model is loaded.
	ErrNoModel = errors.New("scheduler: no model")
)

// DefaultIdleSpin is how long the default loop sleeps while another chain
// is in flight or the default scene has no cooldown.
const DefaultIdleSpin = 50 * time.Millisecond

// Logger defines the logging interface used by the Scheduler.
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

// State is the scheduler lifecycle state.
type State int

// Scheduler states.
const (
	StateStopped State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "stopped"
}

// Clock returns the current time.
type Clock func() time.Time

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the time source for cooldowns, evaluation and fact stamps.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.now = c }
}

// WithLogger sets the scheduler logger. It is also handed to the executor
// and the state registry.
func WithLogger(l Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithIdleSpin overrides DefaultIdleSpin.
func WithIdleSpin(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.idleSpin = d
		}
	}
}

// running is the chain currently owned by the scheduler.
type running struct {
	info   ExecutionInfo
	handle *action.Handle
}

// Scheduler evaluates scenes and runs at most one chain at a time.
type Scheduler struct {
	pool     action.Runner
	executor *action.Executor
	logger   Logger
	now      Clock
	idleSpin time.Duration

	model    atomic.Pointer[rules.Model]
	registry atomic.Pointer[state.Registry]
	running  atomic.Bool

	// mu is the task lock. generation and currentInfo are written under it
	// but may be read without it.
	mu          sync.Mutex
	state       State
	current     *running
	lastRun     map[string]time.Time
	inflight    atomic.Int32
	generation  atomic.Uint64
	currentInfo atomic.Pointer[ExecutionInfo]
	loopCancel  context.CancelFunc
	loopDone    chan struct{}

	// Evaluations queued on the pool but not yet started, so a burst of
	// facts costs at most one queued task per trigger.
	pendingTriggers  sync.Map // trigger name -> struct{}
	pendingInterrupt atomic.Bool

	listenersMu sync.RWMutex
	listeners   []func(Event)
	events      *eventQueue
}

// New creates a stopped scheduler.
//
// Parameters:
//   - pool: worker pool shared by the default loop, trigger handling and chains
//   - factory: builds atomic operations for dispatched chains
//   - opts: clock, logger and idle spin overrides
//
// Returns:
//   - *Scheduler: call Load then Start
func New(pool action.Runner, factory action.Factory, opts ...Option) *Scheduler {
	s := &Scheduler{
		pool:     pool,
		logger:   noopLogger{},
		now:      time.Now,
		idleSpin: DefaultIdleSpin,
		lastRun:  make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.executor = action.NewExecutor(pool, factory, s.logger)
	s.events = newEventQueue(s.deliver)
	return s
}

// Load installs a model and rebuilds the state registry. The scheduler
// must be stopped.
func (s *Scheduler) Load(m *rules.Model) error {
	if m == nil {
		return ErrNoModel
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateRunning {
		return ErrRunning
	}

	reg := state.NewRegistry(m.ValidStates(), m.Mutex(),
		state.WithClock(s.now),
		state.WithLogger(s.logger),
		state.WithObserver(s.onFacts),
	)
	s.model.Store(m)
	s.registry.Store(reg)
	s.lastRun = make(map[string]time.Time)

	s.logger.Info("rules loaded",
		"scenes", len(m.Scenes()),
		"usage_states", len(m.UsageStates()),
		"valid_states", len(m.ValidStates()),
	)
	return nil
}

// LoadRules compiles a rule set and loads it. On error the previous model
// stays in place.
func (s *Scheduler) LoadRules(set rules.RuleSet, src rules.TemplateSource, opts rules.LoadOptions) error {
	m, err := rules.Load(set, src, opts)
	if err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}
	return s.Load(m)
}

// Start moves the scheduler to running and starts the default loop if the
// model has a default scene. It returns false when no model is loaded.
func (s *Scheduler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRunning {
		return true
	}
	m := s.model.Load()
	if m == nil {
		s.logger.Warn("start refused: no rules loaded")
		return false
	}

	s.generation.Add(1)
	s.pendingTriggers.Clear()
	s.pendingInterrupt.Store(false)
	s.state = StateRunning
	s.running.Store(true)

	if scene := m.DefaultScene(); scene != nil {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		accepted := s.pool.Go(func(poolCtx context.Context) {
			defer close(done)
			stopLink := context.AfterFunc(poolCtx, cancel)
			defer stopLink()
			s.defaultLoop(ctx, scene)
		})
		if !accepted {
			cancel()
			s.state = StateStopped
			s.running.Store(false)
			s.logger.Error("start refused: worker pool closed")
			return false
		}
		s.loopCancel = cancel
		s.loopDone = done
	}

	s.logger.Info("scheduler started", "default_scene", m.DefaultScene() != nil)
	return true
}

// Stop moves the scheduler to stopped. It stops the running chain, waiting
// for the executor to acknowledge, then waits for the default loop to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return
	}
	s.state = StateStopped
	s.running.Store(false)
	s.generation.Add(1)

	if s.loopCancel != nil {
		s.loopCancel()
		s.loopCancel = nil
	}
	if cur := s.current; cur != nil {
		s.setCurrentLocked(nil)
		cur.handle.Stop()
	}
	loopDone := s.loopDone
	s.loopDone = nil
	s.mu.Unlock()

	if loopDone != nil {
		<-loopDone
	}
	s.logger.Info("scheduler stopped")
}

// Close stops the scheduler and flushes pending events to listeners.
func (s *Scheduler) Close() {
	s.Stop()
	s.events.close()
}

// IsRunning reports whether the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}

// State returns the lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// UsageStates returns the state names the loaded rules depend on.
func (s *Scheduler) UsageStates() []string {
	m := s.model.Load()
	if m == nil {
		return nil
	}
	return m.UsageStates()
}

// Model returns the loaded model, or nil.
func (s *Scheduler) Model() *rules.Model {
	return s.model.Load()
}

// Registry returns the state registry of the loaded model, or nil.
func (s *Scheduler) Registry() *state.Registry {
	return s.registry.Load()
}

// Current returns the chain currently running, if any.
func (s *Scheduler) Current() (ExecutionInfo, bool) {
	info := s.currentInfo.Load()
	if info == nil {
		return ExecutionInfo{}, false
	}
	return *info, true
}

func (s *Scheduler) setCurrentLocked(r *running) {
	s.current = r
	if r == nil {
		s.currentInfo.Store(nil)
		return
	}
	info := r.info
	s.currentInfo.Store(&info)
}

// Record forwards a fact to the registry. It returns false when no model
// is loaded or the fact was ignored.
func (s *Scheduler) Record(f state.Fact) bool {
	reg := s.registry.Load()
	if reg == nil {
		return false
	}
	return reg.Record(f)
}

// BatchRecord forwards facts to the registry and returns those applied.
func (s *Scheduler) BatchRecord(facts []state.Fact) []state.Fact {
	reg := s.registry.Load()
	if reg == nil {
		return nil
	}
	return reg.BatchRecord(facts)
}

// Clear invalidates a state.
func (s *Scheduler) Clear(name string) bool {
	reg := s.registry.Load()
	if reg == nil {
		return false
	}
	return reg.Clear(name)
}

// Subscribe registers a listener for every chain event. Listeners run
// sequentially on a dedicated goroutine in event order.
func (s *Scheduler) Subscribe(fn func(Event)) {
	s.listenersMu.Lock()
	s.listeners = append(s.listeners, fn)
	s.listenersMu.Unlock()
}

// OnCompletion registers a listener for completed chains only.
func (s *Scheduler) OnCompletion(fn func(Event)) {
	s.Subscribe(func(e Event) {
		if e.Kind == EventCompleted {
			fn(e)
		}
	})
}

func (s *Scheduler) deliver(e Event) {
	s.listenersMu.RLock()
	listeners := slices.Clone(s.listeners)
	s.listenersMu.RUnlock()

	for _, fn := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("panic in event listener", "event", e.Kind, "panic", r)
				}
			}()
			fn(e)
		}()
	}
}

// sleep waits for d or until ctx is done. It reports whether ctx is still live.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
