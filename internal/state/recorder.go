package state

import (
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-rules/internal/condition"
)

// Fact is one observation of a named state.
type Fact struct {
	Name    string    `json:"name"`
	Time    time.Time `json:"time"`
	Value   *float64  `json:"value,omitempty"`
	Cleared bool      `json:"cleared,omitempty"`
}

// Recorder holds the newest fact for a single state name.
//
// LastTime never moves backwards while the recorder holds a fact; only a
// clear resets it.
type Recorder struct {
	name  string
	mutex []string

	mu       sync.Mutex
	last     time.Time
	value    float64
	hasValue bool
	cleared  bool
}

func newRecorder(name string, mutex []string) *Recorder {
	return &Recorder{name: name, mutex: mutex}
}

// Name returns the state name.
func (r *Recorder) Name() string { return r.name }

// Mutex returns the names cleared whenever this state is recorded.
func (r *Recorder) Mutex() []string {
	out := make([]string, len(r.mutex))
	copy(out, r.mutex)
	return out
}

// Snapshot returns the current fact.
func (r *Recorder) Snapshot() condition.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// LastTime returns the time of the newest fact, or zero when none is held.
func (r *Recorder) LastTime() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Cleared reports whether the recorder was explicitly cleared.
func (r *Recorder) Cleared() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cleared
}

// Value returns the recorded value, if the newest fact carried one.
func (r *Recorder) Value() (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cleared || !r.hasValue {
		return 0, false
	}
	return r.value, true
}

func (r *Recorder) snapshotLocked() condition.Snapshot {
	return condition.Snapshot{
		Time:     r.last,
		Value:    r.value,
		HasValue: r.hasValue,
		Cleared:  r.cleared,
	}
}

// setLocked stores a fact. Facts older than the held one are rejected.
func (r *Recorder) setLocked(t time.Time, v *float64) bool {
	if !r.last.IsZero() && t.Before(r.last) {
		return false
	}
	r.last = t
	r.cleared = false
	if v != nil {
		r.value, r.hasValue = *v, true
	} else {
		r.value, r.hasValue = 0, false
	}
	return true
}

func (r *Recorder) clearLocked() {
	r.last = time.Time{}
	r.value, r.hasValue = 0, false
	r.cleared = true
}
