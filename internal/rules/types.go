package rules

// NotifyWhen selects the chain event a notification fires on.
type NotifyWhen string

// Notification moments.
const (
	NotifyStart   NotifyWhen = "start"
	NotifySuccess NotifyWhen = "success"
	NotifyFailure NotifyWhen = "failure"
	NotifyAlways  NotifyWhen = "always"
)

// AllNotifyWhen returns every valid notification moment.
func AllNotifyWhen() []NotifyWhen {
	return []NotifyWhen{NotifyStart, NotifySuccess, NotifyFailure, NotifyAlways}
}

// NotifyRule asks for a notification when a chain reaches a given moment.
type NotifyRule struct {
	When      NotifyWhen `yaml:"when" json:"when"`
	Message   string     `yaml:"message" json:"message"`
	SendImage bool       `yaml:"send_image,omitempty" json:"send_image,omitempty"`
}

// OperationDef names one atomic operation and its parameters.
//
// When Template is set the definition is a placeholder for the operation
// template of that name and carries no other fields.
type OperationDef struct {
	Name     string         `yaml:"name,omitempty" json:"name,omitempty"`
	Params   map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
	Template string         `yaml:"template,omitempty" json:"template,omitempty"`
	Notify   []NotifyRule   `yaml:"notify,omitempty" json:"notify,omitempty"`
}

// StateHandler maps a condition to either operations or sub-handlers.
type StateHandler struct {
	// States is the condition expression. Empty means always.
	States string `yaml:"states,omitempty" json:"states,omitempty"`

	// Template references a handler template. A handler holding only a
	// template reference is replaced by the template's handlers; one that
	// also sets States, Interrupt or Notify wraps them as sub-handlers.
	Template string `yaml:"template,omitempty" json:"template,omitempty"`

	Operations  []OperationDef `yaml:"operations,omitempty" json:"operations,omitempty"`
	SubHandlers []StateHandler `yaml:"sub_states,omitempty" json:"sub_states,omitempty"`

	// Interrupt is an expression that stops the running chain when it
	// holds on a later fact batch.
	Interrupt string `yaml:"interrupt,omitempty" json:"interrupt,omitempty"`

	Notify []NotifyRule `yaml:"notify,omitempty" json:"notify,omitempty"`
}

// Scene is a top-level rule group. A scene without triggers is the default
// scene and is evaluated periodically.
type Scene struct {
	Name     string         `yaml:"name" json:"name"`
	Triggers []string       `yaml:"triggers,omitempty" json:"triggers,omitempty"`
	Interval float64        `yaml:"interval,omitempty" json:"interval,omitempty"` // Cooldown in seconds
	Priority *int           `yaml:"priority,omitempty" json:"priority,omitempty"` // nil means freely interruptible
	Handlers []StateHandler `yaml:"handlers" json:"handlers"`
}

// IsDefault reports whether the scene has no triggers.
func (s *Scene) IsDefault() bool {
	return len(s.Triggers) == 0
}

// TemplateSet holds named handler and operation templates.
type TemplateSet struct {
	Handlers   map[string][]StateHandler `yaml:"states,omitempty" json:"states,omitempty"`
	Operations map[string][]OperationDef `yaml:"operations,omitempty" json:"operations,omitempty"`
}

// RuleSet is a complete rule file.
type RuleSet struct {
	Version   int                 `yaml:"version" json:"version"`
	Scenes    []Scene             `yaml:"scenes" json:"scenes"`
	Templates TemplateSet         `yaml:"templates,omitempty" json:"templates,omitempty"`
	Mutex     map[string][]string `yaml:"mutex,omitempty" json:"mutex,omitempty"`

	// States lists extra valid state names beyond those the rules reference.
	States []string `yaml:"states,omitempty" json:"states,omitempty"`
}

// DeepCopy returns an independent copy of the operation.
func (o OperationDef) DeepCopy() OperationDef {
	cpy := o
	cpy.Params = deepCopyMap(o.Params)
	cpy.Notify = copyNotify(o.Notify)
	return cpy
}

// DeepCopy returns an independent copy of the handler tree.
func (h StateHandler) DeepCopy() StateHandler {
	cpy := h
	cpy.Operations = copyOperations(h.Operations)
	cpy.SubHandlers = copyHandlers(h.SubHandlers)
	cpy.Notify = copyNotify(h.Notify)
	return cpy
}

// DeepCopy returns an independent copy of the scene.
func (s Scene) DeepCopy() Scene {
	cpy := s
	if s.Triggers != nil {
		cpy.Triggers = append([]string(nil), s.Triggers...)
	}
	if s.Priority != nil {
		p := *s.Priority
		cpy.Priority = &p
	}
	cpy.Handlers = copyHandlers(s.Handlers)
	return cpy
}

func copyOperations(ops []OperationDef) []OperationDef {
	if ops == nil {
		return nil
	}
	cpy := make([]OperationDef, len(ops))
	for i, op := range ops {
		cpy[i] = op.DeepCopy()
	}
	return cpy
}

func copyHandlers(hs []StateHandler) []StateHandler {
	if hs == nil {
		return nil
	}
	cpy := make([]StateHandler, len(hs))
	for i, h := range hs {
		cpy[i] = h.DeepCopy()
	}
	return cpy
}

func copyNotify(rules []NotifyRule) []NotifyRule {
	if rules == nil {
		return nil
	}
	return append([]NotifyRule(nil), rules...)
}

// deepCopyMap creates a deep copy of a map[string]any.
// Nested maps and slices are recursively copied.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

// deepCopyValue recursively copies a value, handling nested maps and slices.
func deepCopyValue(v any) any {
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		return v // Primitives are immutable
	}
}
