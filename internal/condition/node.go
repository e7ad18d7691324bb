package condition

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Unbounded is the window maximum used when a leaf has no upper age limit.
const Unbounded = time.Duration(math.MaxInt64)

// Node is one element of a parsed expression tree.
//
// The interface is sealed; the concrete types are Leaf, And, Or, Not and True.
type Node interface {
	// Eval reports whether the expression holds at now.
	Eval(src Source, now time.Time) bool

	// String renders the node in canonical expression syntax.
	String() string

	collect(into map[string]struct{})
}

// Window bounds the age of a recorded fact.
type Window struct {
	Min time.Duration
	Max time.Duration
}

// Contains reports whether an age lies inside the window (inclusive).
func (w Window) Contains(age time.Duration) bool {
	if age < w.Min {
		return false
	}
	return w.Max == Unbounded || age <= w.Max
}

// Range bounds a recorded value (inclusive).
type Range struct {
	Min float64
	Max float64
}

// Contains reports whether v lies inside the range.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Leaf tests a single named state.
type Leaf struct {
	State  string
	Window Window
	Range  *Range // nil when the value is not checked
}

// Eval implements Node.
func (l *Leaf) Eval(src Source, now time.Time) bool {
	if src == nil {
		return false
	}
	snap, ok := src.Lookup(l.State)
	if !ok || !snap.Valid() {
		return false
	}

	// Facts stamped slightly ahead of the evaluating clock count as "now".
	age := now.Sub(snap.Time)
	if age < 0 {
		age = 0
	}
	if !l.Window.Contains(age) {
		return false
	}

	if l.Range != nil {
		if !snap.HasValue {
			return false
		}
		return l.Range.Contains(snap.Value)
	}
	return true
}

func (l *Leaf) String() string {
	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(l.State)
	if l.Window.Min != 0 || l.Window.Max != Unbounded {
		b.WriteString(", ")
		b.WriteString(formatSeconds(l.Window.Min))
		b.WriteString(", ")
		b.WriteString(formatSeconds(l.Window.Max))
	}
	b.WriteByte(']')
	if l.Range != nil {
		b.WriteByte('{')
		b.WriteString(formatNumber(l.Range.Min))
		b.WriteString(", ")
		b.WriteString(formatNumber(l.Range.Max))
		b.WriteByte('}')
	}
	return b.String()
}

func (l *Leaf) collect(into map[string]struct{}) {
	into[l.State] = struct{}{}
}

// And holds when both operands hold.
type And struct {
	Left, Right Node
}

// Eval implements Node.
func (n *And) Eval(src Source, now time.Time) bool {
	return n.Left.Eval(src, now) && n.Right.Eval(src, now)
}

func (n *And) String() string {
	return wrap(n.Left) + " & " + wrap(n.Right)
}

func (n *And) collect(into map[string]struct{}) {
	n.Left.collect(into)
	n.Right.collect(into)
}

// Or holds when either operand holds.
type Or struct {
	Left, Right Node
}

// Eval implements Node.
func (n *Or) Eval(src Source, now time.Time) bool {
	return n.Left.Eval(src, now) || n.Right.Eval(src, now)
}

func (n *Or) String() string {
	return wrap(n.Left) + " | " + wrap(n.Right)
}

func (n *Or) collect(into map[string]struct{}) {
	n.Left.collect(into)
	n.Right.collect(into)
}

// Not negates its operand.
type Not struct {
	X Node
}

// Eval implements Node.
func (n *Not) Eval(src Source, now time.Time) bool {
	return !n.X.Eval(src, now)
}

func (n *Not) String() string {
	return "!" + wrap(n.X)
}

func (n *Not) collect(into map[string]struct{}) {
	n.X.collect(into)
}

// True always holds. It is the parse result of an empty expression.
type True struct{}

// Eval implements Node.
func (True) Eval(Source, time.Time) bool { return true }

func (True) String() string { return "true" }

func (True) collect(map[string]struct{}) {}

// wrap parenthesises binary operands so the rendering re-parses to the same tree.
func wrap(n Node) string {
	switch n.(type) {
	case *And, *Or:
		return "(" + n.String() + ")"
	default:
		return n.String()
	}
}

func formatSeconds(d time.Duration) string {
	if d == Unbounded {
		return "inf"
	}
	return strconv.FormatFloat(d.Seconds(), 'g', -1, 64)
}

func formatNumber(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
