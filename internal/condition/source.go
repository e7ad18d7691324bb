package condition

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Snapshot is the latest fact recorded for one state name.
type Snapshot struct {
	Time     time.Time // Zero when nothing has been recorded
	Value    float64
	HasValue bool
	Cleared  bool
}

// Valid reports whether the snapshot holds a live, uncleared fact.
func (s Snapshot) Valid() bool {
	return !s.Cleared && !s.Time.IsZero()
}

// Source supplies snapshots for evaluation.
type Source interface {
	// Lookup returns the latest snapshot for name. ok is false for names the
	// source does not track.
	Lookup(name string) (snap Snapshot, ok bool)
}

// MapSource is a fixed Source backed by a map, used for previews and tests.
type MapSource map[string]Snapshot

// Lookup implements Source.
func (m MapSource) Lookup(name string) (Snapshot, bool) {
	s, ok := m[name]
	return s, ok
}

// Eval evaluates n against src at now. A nil node holds.
func Eval(n Node, src Source, now time.Time) bool {
	if n == nil {
		return true
	}
	return n.Eval(src, now)
}

// UsageStates returns every state name referenced by n.
func UsageStates(n Node) map[string]struct{} {
	out := make(map[string]struct{})
	if n != nil {
		n.collect(out)
	}
	return out
}

// SortedStates returns the state names referenced by n in lexical order.
func SortedStates(n Node) []string {
	set := UsageStates(n)
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NormalizeName canonicalises a state name: surrounding whitespace is
// dropped and the text is converted to Unicode NFC so that decomposed
// producer output compares equal to rule text.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}
