package condition

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var base = time.Unix(1_000, 0)

func at(offset time.Duration) Snapshot {
	return Snapshot{Time: base.Add(offset)}
}

func withValue(s Snapshot, v float64) Snapshot {
	s.Value = v
	s.HasValue = true
	return s
}

func TestLeaf_Eval(t *testing.T) {
	tests := []struct {
		name string
		expr string
		src  MapSource
		now  time.Time
		want bool
	}{
		{"inside window", "[idle, 0, 1]", MapSource{"idle": at(0)}, base.Add(500 * time.Millisecond), true},
		{"window upper edge inclusive", "[idle, 0, 1]", MapSource{"idle": at(0)}, base.Add(time.Second), true},
		{"too old", "[idle, 0, 1]", MapSource{"idle": at(0)}, base.Add(1100 * time.Millisecond), false},
		{"too fresh", "[idle, 2, 5]", MapSource{"idle": at(0)}, base.Add(time.Second), false},
		{"unbounded", "[idle]", MapSource{"idle": at(0)}, base.Add(24 * time.Hour), true},
		{"future fact counts as now", "[idle, 0, 1]", MapSource{"idle": at(time.Second)}, base, true},
		{"never recorded", "[idle]", MapSource{"idle": {}}, base, false},
		{"unknown name", "[idle]", MapSource{}, base, false},
		{"cleared", "[idle]", MapSource{"idle": {Time: base, Cleared: true}}, base, false},
		{"value in range", "[hp]{0, 30}", MapSource{"hp": withValue(at(0), 12)}, base, true},
		{"value at bound", "[hp]{0, 30}", MapSource{"hp": withValue(at(0), 30)}, base, true},
		{"value out of range", "[hp]{0, 30}", MapSource{"hp": withValue(at(0), 31)}, base, false},
		{"range without value", "[hp]{0, 30}", MapSource{"hp": at(0)}, base, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := MustParse(tt.expr)
			assert.Equal(t, tt.want, Eval(n, tt.src, tt.now))
		})
	}
}

func TestComposite_Eval(t *testing.T) {
	src := MapSource{
		"idle": at(0),
		"menu": at(0),
	}

	tests := []struct {
		expr string
		want bool
	}{
		{"[idle] & [menu]", true},
		{"[idle] & [battle]", false},
		{"[battle] | [menu]", true},
		{"![battle]", true},
		{"![idle]", false},
		{"[idle] & ![battle] | [boss]", true},
		{"[battle] & [idle] | [menu]", true},
		{"[battle] & ([idle] | [menu])", false},
		{"true", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			assert.Equal(t, tt.want, Eval(MustParse(tt.expr), src, base))
		})
	}
}

// countingSource records lookups so short-circuiting can be observed.
type countingSource struct {
	MapSource
	seen []string
}

func (c *countingSource) Lookup(name string) (Snapshot, bool) {
	c.seen = append(c.seen, name)
	return c.MapSource.Lookup(name)
}

func TestEval_ShortCircuit(t *testing.T) {
	src := &countingSource{MapSource: MapSource{"a": at(0)}}

	assert.True(t, Eval(MustParse("[a] | [b]"), src, base))
	assert.Equal(t, []string{"a"}, src.seen)

	src.seen = nil
	assert.False(t, Eval(MustParse("[b] & [a]"), src, base))
	assert.Equal(t, []string{"b"}, src.seen)
}

func TestEval_NilNode(t *testing.T) {
	assert.True(t, Eval(nil, MapSource{}, base))
}

func TestUsageStates(t *testing.T) {
	n := MustParse("[a, 0, 1] & !([b] | [c]{1, 2}) | [a]")
	assert.Equal(t, map[string]struct{}{"a": {}, "b": {}, "c": {}}, UsageStates(n))
	assert.Equal(t, []string{"a", "b", "c"}, SortedStates(n))
	assert.Empty(t, UsageStates(True{}))
	assert.Empty(t, UsageStates(nil))
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "idle", NormalizeName("  idle\t"))
	assert.Equal(t, "caf\u00e9", NormalizeName("cafe\u0301"))
}
