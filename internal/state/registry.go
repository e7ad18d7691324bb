package state

import (
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-rules/internal/condition"
)

// Logger defines the logging interface used by the Registry.
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

// Observer receives every batch of facts the registry applied.
type Observer func(applied []Fact)

// Option configures a Registry.
type Option func(*Registry)

// WithClock sets the time source used to stamp facts that carry no time.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithLogger sets the registry logger.
func WithLogger(l Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithObserver installs the observer at construction.
func WithObserver(fn Observer) Option {
	return func(r *Registry) { r.observer = fn }
}

// Registry is a thread-safe store of state recorders.
//
// The set of valid names and the mutex relationships are fixed at
// construction. Recorders are created on first use and never removed.
type Registry struct {
	valid map[string]struct{}
	mutex map[string][]string

	mu        sync.RWMutex
	recorders map[string]*Recorder

	obsMu    sync.RWMutex
	observer Observer

	now    func() time.Time
	logger Logger
}

// NewRegistry creates a registry accepting facts for the given names.
//
// Parameters:
//   - valid: every state name the registry tracks
//   - mutex: for each name, the names cleared whenever it is recorded
//   - opts: optional clock, logger and observer
//
// Returns:
//   - *Registry: ready for concurrent use
func NewRegistry(valid []string, mutex map[string][]string, opts ...Option) *Registry {
	r := &Registry{
		valid:     make(map[string]struct{}, len(valid)),
		mutex:     make(map[string][]string, len(mutex)),
		recorders: make(map[string]*Recorder),
		now:       time.Now,
		logger:    noopLogger{},
	}
	for _, name := range valid {
		r.valid[condition.NormalizeName(name)] = struct{}{}
	}
	for name, partners := range mutex {
		name = condition.NormalizeName(name)
		for _, p := range partners {
			p = condition.NormalizeName(p)
			if p == name {
				continue
			}
			if _, ok := r.valid[p]; !ok {
				continue
			}
			r.mutex[name] = append(r.mutex[name], p)
		}
		sort.Strings(r.mutex[name])
		r.mutex[name] = slices.Compact(r.mutex[name])
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetObserver replaces the observer. A nil observer disables notification.
func (r *Registry) SetObserver(fn Observer) {
	r.obsMu.Lock()
	r.observer = fn
	r.obsMu.Unlock()
}

// Valid reports whether name is tracked by the registry.
func (r *Registry) Valid(name string) bool {
	_, ok := r.valid[condition.NormalizeName(name)]
	return ok
}

// Names returns the valid state names in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.valid))
	for name := range r.valid {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Recorder returns the recorder for name, creating it on first use.
// It returns false for names outside the valid set.
func (r *Registry) Recorder(name string) (*Recorder, bool) {
	name = condition.NormalizeName(name)
	if _, ok := r.valid[name]; !ok {
		return nil, false
	}

	r.mu.RLock()
	rec, ok := r.recorders[name]
	r.mu.RUnlock()
	if ok {
		return rec, true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok = r.recorders[name]; ok {
		return rec, true
	}
	rec = newRecorder(name, r.mutex[name])
	r.recorders[name] = rec
	return rec, true
}

// Lookup implements condition.Source. Valid names that were never
// recorded report an empty snapshot.
func (r *Registry) Lookup(name string) (condition.Snapshot, bool) {
	if _, ok := r.valid[name]; !ok {
		return condition.Snapshot{}, false
	}
	r.mu.RLock()
	rec, ok := r.recorders[name]
	r.mu.RUnlock()
	if !ok {
		return condition.Snapshot{}, true
	}
	return rec.Snapshot(), true
}

// Record applies a single fact and notifies the observer.
// It returns false when the fact was ignored.
func (r *Registry) Record(f Fact) bool {
	applied, ok := r.apply(f)
	if !ok {
		return false
	}
	r.notify([]Fact{applied})
	return true
}

// BatchRecord applies facts in order and notifies the observer once with
// every fact that was applied. It returns the applied facts.
func (r *Registry) BatchRecord(facts []Fact) []Fact {
	applied := make([]Fact, 0, len(facts))
	for _, f := range facts {
		if a, ok := r.apply(f); ok {
			applied = append(applied, a)
		}
	}
	if len(applied) > 0 {
		r.notify(applied)
	}
	return applied
}

// Clear invalidates the fact held for name.
func (r *Registry) Clear(name string) bool {
	return r.Record(Fact{Name: name, Cleared: true})
}

func (r *Registry) apply(f Fact) (Fact, bool) {
	f.Name = condition.NormalizeName(f.Name)
	rec, ok := r.Recorder(f.Name)
	if !ok {
		r.logger.Debug("ignoring fact for unknown state", "state", f.Name)
		return Fact{}, false
	}
	if f.Time.IsZero() {
		f.Time = r.now()
	}

	if f.Cleared {
		rec.mu.Lock()
		rec.clearLocked()
		rec.mu.Unlock()
		return f, true
	}

	// Lock the recorder and its partners in name order so two facts for
	// mutually exclusive states cannot deadlock each other.
	group := r.lockGroup(rec)
	for _, g := range group {
		g.mu.Lock()
	}
	defer func() {
		for i := len(group) - 1; i >= 0; i-- {
			group[i].mu.Unlock()
		}
	}()

	if !rec.setLocked(f.Time, f.Value) {
		r.logger.Debug("ignoring stale fact", "state", f.Name, "time", f.Time)
		return Fact{}, false
	}
	for _, g := range group {
		if g != rec {
			g.clearLocked()
		}
	}
	return f, true
}

// lockGroup returns rec and its mutex partners sorted by name.
func (r *Registry) lockGroup(rec *Recorder) []*Recorder {
	group := make([]*Recorder, 0, len(rec.mutex)+1)
	group = append(group, rec)
	for _, name := range rec.mutex {
		if p, ok := r.Recorder(name); ok {
			group = append(group, p)
		}
	}
	sort.Slice(group, func(i, j int) bool { return group[i].name < group[j].name })
	return group
}

func (r *Registry) notify(applied []Fact) {
	r.obsMu.RLock()
	fn := r.observer
	r.obsMu.RUnlock()
	if fn != nil {
		fn(applied)
	}
}
