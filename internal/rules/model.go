package rules

import (
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-rules/internal/condition"
)

// HandlerRule is a compiled state handler.
type HandlerRule struct {
	Condition   condition.Node
	Interrupt   condition.Node // nil when the handler sets no interrupt
	Operations  []OperationDef
	SubHandlers []*HandlerRule
	Notify      []NotifyRule
}

// SceneRule is a compiled scene.
type SceneRule struct {
	Name     string
	Triggers []string
	Interval time.Duration
	Priority *int
	Handlers []*HandlerRule
}

// IsDefault reports whether the scene is the periodic default scene.
func (s *SceneRule) IsDefault() bool {
	return len(s.Triggers) == 0
}

// Match describes the handler path selected by SceneRule.Match.
type Match struct {
	Operations []OperationDef
	Expression string         // Conditions along the path, outermost first
	Interrupt  condition.Node // Innermost interrupt on the path, or nil
	Notify     []NotifyRule   // Handler rules outermost first, then per-operation rules
}

// Match evaluates the scene's handlers in order and returns the first
// handler path whose conditions all hold and which ends in operations.
// A handler whose own condition holds but none of whose sub-handlers
// match falls through to its next sibling.
func (s *SceneRule) Match(src condition.Source, now time.Time) (Match, bool) {
	return matchHandlers(s.Handlers, nil, src, now)
}

func matchHandlers(hs []*HandlerRule, path []*HandlerRule, src condition.Source, now time.Time) (Match, bool) {
	for _, h := range hs {
		if !condition.Eval(h.Condition, src, now) {
			continue
		}
		here := append(path[:len(path):len(path)], h)
		if len(h.Operations) > 0 {
			return buildMatch(here), true
		}
		if m, ok := matchHandlers(h.SubHandlers, here, src, now); ok {
			return m, true
		}
	}
	return Match{}, false
}

func buildMatch(path []*HandlerRule) Match {
	leaf := path[len(path)-1]
	m := Match{Operations: leaf.Operations}

	exprs := make([]string, 0, len(path))
	for _, h := range path {
		exprs = append(exprs, h.Condition.String())
		if h.Interrupt != nil {
			m.Interrupt = h.Interrupt
		}
		m.Notify = append(m.Notify, h.Notify...)
	}
	for _, op := range leaf.Operations {
		m.Notify = append(m.Notify, op.Notify...)
	}
	m.Expression = strings.Join(exprs, " > ")
	return m
}

// Model is a loaded, validated rule set. It is immutable.
type Model struct {
	scenes       []*SceneRule
	defaultScene *SceneRule
	triggers     map[string]*SceneRule
	usage        []string
	valid        []string
	mutex        map[string][]string
}

// Scenes returns the compiled scenes in file order.
func (m *Model) Scenes() []*SceneRule {
	return append([]*SceneRule(nil), m.scenes...)
}

// DefaultScene returns the scene without triggers, or nil.
func (m *Model) DefaultScene() *SceneRule {
	return m.defaultScene
}

// SceneForTrigger returns the scene bound to a trigger name.
func (m *Model) SceneForTrigger(name string) (*SceneRule, bool) {
	s, ok := m.triggers[condition.NormalizeName(name)]
	return s, ok
}

// UsageStates returns every state name referenced by a condition,
// interrupt or trigger, sorted.
func (m *Model) UsageStates() []string {
	return append([]string(nil), m.usage...)
}

// ValidStates returns the usage states plus the catalogue, sorted.
func (m *Model) ValidStates() []string {
	return append([]string(nil), m.valid...)
}

// Mutex returns a copy of the normalised mutex declarations.
func (m *Model) Mutex() map[string][]string {
	out := make(map[string][]string, len(m.mutex))
	for k, v := range m.mutex {
		out[k] = append([]string(nil), v...)
	}
	return out
}
