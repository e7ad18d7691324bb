package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-rules/internal/condition"
)

var now = time.Unix(5_000, 0)

func live(names ...string) condition.MapSource {
	src := condition.MapSource{}
	for _, n := range names {
		src[n] = condition.Snapshot{Time: now}
	}
	return src
}

func loadScene(t *testing.T, scene Scene) *SceneRule {
	t.Helper()
	m, err := Load(RuleSet{Scenes: []Scene{scene}}, nil, LoadOptions{})
	require.NoError(t, err)
	return m.Scenes()[0]
}

func TestMatch_FirstHandlerWins(t *testing.T) {
	s := loadScene(t, Scene{Name: "s", Handlers: []StateHandler{
		{States: "[a]", Operations: ops("first")},
		{States: "[a] | [b]", Operations: ops("second")},
	}})

	m, ok := s.Match(live("a", "b"), now)
	require.True(t, ok)
	assert.Equal(t, []string{"first"}, opNames(m.Operations))
	assert.Equal(t, "[a]", m.Expression)

	m, ok = s.Match(live("b"), now)
	require.True(t, ok)
	assert.Equal(t, []string{"second"}, opNames(m.Operations))

	_, ok = s.Match(live(), now)
	assert.False(t, ok)
}

func TestMatch_SubHandlersFallThrough(t *testing.T) {
	s := loadScene(t, Scene{Name: "s", Handlers: []StateHandler{
		{
			States:    "[battle]",
			Interrupt: "[menu]",
			Notify:    []NotifyRule{{When: NotifyStart, Message: "fighting"}},
			SubHandlers: []StateHandler{
				{States: "[boss]", Interrupt: "[dead]", Operations: []OperationDef{
					{Name: "ult", Notify: []NotifyRule{{When: NotifySuccess, Message: "boss down"}}},
				}},
				{States: "[minion]", Operations: ops("hit")},
			},
		},
		{Operations: ops("wander")},
	}})

	m, ok := s.Match(live("battle", "boss"), now)
	require.True(t, ok)
	assert.Equal(t, []string{"ult"}, opNames(m.Operations))
	assert.Equal(t, "[battle] > [boss]", m.Expression)
	require.NotNil(t, m.Interrupt)
	assert.Equal(t, "[dead]", m.Interrupt.String(), "innermost interrupt wins")
	assert.Equal(t, []NotifyRule{
		{When: NotifyStart, Message: "fighting"},
		{When: NotifySuccess, Message: "boss down"},
	}, m.Notify)

	m, ok = s.Match(live("battle", "minion"), now)
	require.True(t, ok)
	assert.Equal(t, []string{"hit"}, opNames(m.Operations))
	assert.Equal(t, "[menu]", m.Interrupt.String())

	// Parent holds but no child does: fall through to the sibling.
	m, ok = s.Match(live("battle"), now)
	require.True(t, ok)
	assert.Equal(t, []string{"wander"}, opNames(m.Operations))
	assert.Equal(t, "true", m.Expression)
	assert.Nil(t, m.Interrupt)
}

func TestMatch_RespectsWindows(t *testing.T) {
	s := loadScene(t, Scene{Name: "s", Handlers: []StateHandler{
		{States: "[idle, 0, 1]", Operations: ops("go")},
	}})

	src := condition.MapSource{"idle": {Time: now}}
	_, ok := s.Match(src, now.Add(500*time.Millisecond))
	assert.True(t, ok)
	_, ok = s.Match(src, now.Add(2*time.Second))
	assert.False(t, ok)
}

func TestModel_AccessorsReturnCopies(t *testing.T) {
	set := RuleSet{
		Scenes: []Scene{{Name: "a", Handlers: []StateHandler{{States: "[x] & [y]", Operations: ops("o")}}}},
		Mutex:  map[string][]string{"x": {"y"}},
	}
	m, err := Load(set, nil, LoadOptions{})
	require.NoError(t, err)

	usage := m.UsageStates()
	usage[0] = "mutated"
	assert.Equal(t, []string{"x", "y"}, m.UsageStates())

	mutex := m.Mutex()
	mutex["x"][0] = "mutated"
	assert.Equal(t, []string{"y"}, m.Mutex()["x"])
}

func TestValidateScenes(t *testing.T) {
	h := []StateHandler{{Operations: ops("a")}}

	tests := []struct {
		name   string
		scenes []Scene
		want   error
	}{
		{"empty", nil, nil},
		{"one default", []Scene{{Name: "a", Handlers: h}}, nil},
		{"default plus triggered", []Scene{{Name: "a"}, {Name: "b", Triggers: []string{"x", "y"}}}, nil},
		{"repeat within one scene", []Scene{{Name: "a", Triggers: []string{"x", "x"}}}, nil},
		{"duplicate trigger", []Scene{{Name: "a", Triggers: []string{"x"}}, {Name: "b", Triggers: []string{"y", "x"}}}, ErrDuplicateTrigger},
		{"two defaults", []Scene{{Name: "a"}, {Name: "b", Triggers: []string{"x"}}, {Name: "c"}}, ErrMultipleDefaultScenes},
		{"unnamed", []Scene{{}}, ErrInvalidScene},
		{"duplicate name", []Scene{{Name: "a", Triggers: []string{"x"}}, {Name: "a", Triggers: []string{"y"}}}, ErrInvalidScene},
		{"negative interval", []Scene{{Name: "a", Interval: -1}}, ErrInvalidScene},
		{"blank trigger", []Scene{{Name: "a", Triggers: []string{" "}}}, ErrInvalidScene},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateScenes(tt.scenes)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestMultipleDefaultScenesError_ListsScenes(t *testing.T) {
	err := ValidateScenes([]Scene{{Name: "a"}, {Name: "b"}})

	var md *MultipleDefaultScenesError
	require.ErrorAs(t, err, &md)
	assert.Equal(t, []string{"a", "b"}, md.Scenes)
	assert.Contains(t, err.Error(), `"a", "b"`)
}
