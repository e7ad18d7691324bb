package rules

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/gray-logic-rules/internal/condition"
)

// CurrentVersion is the rule file format version this package reads.
const CurrentVersion = 1

// LoadOptions tunes Load.
type LoadOptions struct {
	// Catalogue lists extra valid state names, typically every state a
	// recogniser can emit.
	Catalogue []string
}

// Load validates, resolves and compiles a rule set.
//
// Parameters:
//   - set: the raw rule set
//   - src: template lookup; nil uses set.Templates
//   - opts: catalogue of extra valid state names
//
// Returns:
//   - *Model: the compiled, immutable model
//   - error: the first load error; no partial model is returned
func Load(set RuleSet, src TemplateSource, opts LoadOptions) (*Model, error) {
	if set.Version != 0 && set.Version != CurrentVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, set.Version)
	}
	if err := ValidateScenes(set.Scenes); err != nil {
		return nil, err
	}
	if src == nil {
		src = set.Templates
	}

	m := &Model{
		scenes:   make([]*SceneRule, 0, len(set.Scenes)),
		triggers: make(map[string]*SceneRule),
	}
	usage := make(map[string]struct{})

	for i := range set.Scenes {
		resolved, err := Resolve(set.Scenes[i], src)
		if err != nil {
			return nil, fmt.Errorf("scene %q: %w", set.Scenes[i].Name, err)
		}
		scene, err := compileScene(&resolved, usage)
		if err != nil {
			return nil, err
		}

		m.scenes = append(m.scenes, scene)
		if scene.IsDefault() {
			m.defaultScene = scene
		}
		for _, t := range scene.Triggers {
			m.triggers[t] = scene
			usage[t] = struct{}{}
		}
	}

	m.usage = sortedKeys(usage)

	valid := make(map[string]struct{}, len(usage)+len(set.States)+len(opts.Catalogue))
	for name := range usage {
		valid[name] = struct{}{}
	}
	for _, list := range [][]string{set.States, opts.Catalogue} {
		for _, name := range list {
			if name = condition.NormalizeName(name); name != "" {
				valid[name] = struct{}{}
			}
		}
	}
	m.valid = sortedKeys(valid)

	mutex, err := compileMutex(set.Mutex, valid)
	if err != nil {
		return nil, err
	}
	m.mutex = mutex
	return m, nil
}

func compileScene(s *Scene, usage map[string]struct{}) (*SceneRule, error) {
	if math.IsInf(s.Interval, 0) || math.IsNaN(s.Interval) {
		return nil, fmt.Errorf("%w: scene %q has non-finite interval", ErrInvalidScene, s.Name)
	}
	if len(s.Handlers) == 0 {
		return nil, fmt.Errorf("%w: scene %q has no handlers", ErrInvalidScene, s.Name)
	}

	out := &SceneRule{
		Name:     s.Name,
		Interval: time.Duration(s.Interval * float64(time.Second)),
		Handlers: make([]*HandlerRule, 0, len(s.Handlers)),
	}
	if s.Priority != nil {
		p := *s.Priority
		out.Priority = &p
	}
	for _, t := range s.Triggers {
		out.Triggers = append(out.Triggers, condition.NormalizeName(t))
	}

	for i := range s.Handlers {
		loc := fmt.Sprintf("scene %q handler %d", s.Name, i)
		if err := checkHandler(&s.Handlers[i], loc, 0); err != nil {
			return nil, err
		}
		h, err := compileHandler(&s.Handlers[i], loc, usage)
		if err != nil {
			return nil, err
		}
		out.Handlers = append(out.Handlers, h)
	}
	return out, nil
}

func compileHandler(h *StateHandler, loc string, usage map[string]struct{}) (*HandlerRule, error) {
	cond, err := condition.Parse(h.States)
	if err != nil {
		return nil, fmt.Errorf("%s states: %w", loc, err)
	}
	addUsage(usage, cond)

	out := &HandlerRule{
		Condition:  cond,
		Operations: copyOperations(h.Operations),
		Notify:     copyNotify(h.Notify),
	}

	if h.Interrupt != "" {
		intr, err := condition.Parse(h.Interrupt)
		if err != nil {
			return nil, fmt.Errorf("%s interrupt: %w", loc, err)
		}
		addUsage(usage, intr)
		out.Interrupt = intr
	}

	for i := range h.SubHandlers {
		sub, err := compileHandler(&h.SubHandlers[i], fmt.Sprintf("%s > %d", loc, i), usage)
		if err != nil {
			return nil, err
		}
		out.SubHandlers = append(out.SubHandlers, sub)
	}
	return out, nil
}

func compileMutex(decl map[string][]string, valid map[string]struct{}) (map[string][]string, error) {
	out := make(map[string][]string, len(decl))

	names := make([]string, 0, len(decl))
	for name := range decl {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, raw := range names {
		name := condition.NormalizeName(raw)
		if _, ok := valid[name]; !ok {
			return nil, &UnknownStateError{Name: name, Context: "mutex declaration"}
		}
		for _, p := range decl[raw] {
			p = condition.NormalizeName(p)
			if _, ok := valid[p]; !ok {
				return nil, &UnknownStateError{Name: p, Context: fmt.Sprintf("mutex of %q", name)}
			}
			out[name] = append(out[name], p)
		}
	}
	return out, nil
}

func addUsage(usage map[string]struct{}, n condition.Node) {
	for name := range condition.UsageStates(n) {
		usage[name] = struct{}{}
	}
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ParseRuleSet decodes a YAML rule set. Unknown fields are rejected.
func ParseRuleSet(r io.Reader) (RuleSet, error) {
	var set RuleSet
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&set); err != nil {
		if errors.Is(err, io.EOF) {
			return RuleSet{}, fmt.Errorf("%w: empty rule file", ErrInvalidScene)
		}
		return RuleSet{}, fmt.Errorf("parsing rule set: %w", err)
	}
	return set, nil
}

// LoadFile reads a YAML rule set from disk.
func LoadFile(path string) (RuleSet, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path comes from trusted config
	if err != nil {
		return RuleSet{}, fmt.Errorf("reading rule file: %w", err)
	}
	set, err := ParseRuleSet(bytes.NewReader(data))
	if err != nil {
		return RuleSet{}, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}
