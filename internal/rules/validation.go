package rules

import (
	"fmt"

	"github.com/nerrad567/gray-logic-rules/internal/condition"
)

// Validation constants.
const (
	maxHandlerDepth = 32
	maxOperations   = 200
)

// ValidateScenes checks trigger ownership across scenes.
//
// It runs before any template is resolved so structural mistakes are
// reported without paying for expansion.
//
// Returns:
//   - *DuplicateTriggerError when two scenes claim one trigger
//   - *MultipleDefaultScenesError when more than one scene has no triggers
//   - ErrInvalidScene for unnamed, duplicate or malformed scenes
func ValidateScenes(scenes []Scene) error {
	claimed := make(map[string]string)
	names := make(map[string]struct{}, len(scenes))
	var defaults []string

	for i := range scenes {
		s := &scenes[i]
		if s.Name == "" {
			return fmt.Errorf("%w: scene %d has no name", ErrInvalidScene, i)
		}
		if _, dup := names[s.Name]; dup {
			return fmt.Errorf("%w: duplicate scene name %q", ErrInvalidScene, s.Name)
		}
		names[s.Name] = struct{}{}

		if s.Interval < 0 {
			return fmt.Errorf("%w: scene %q has negative interval", ErrInvalidScene, s.Name)
		}

		if s.IsDefault() {
			defaults = append(defaults, s.Name)
			continue
		}
		for _, trigger := range s.Triggers {
			trigger = condition.NormalizeName(trigger)
			if trigger == "" {
				return fmt.Errorf("%w: scene %q has an empty trigger", ErrInvalidScene, s.Name)
			}
			if owner, ok := claimed[trigger]; ok {
				if owner == s.Name {
					continue
				}
				return &DuplicateTriggerError{Trigger: trigger, Scenes: [2]string{owner, s.Name}}
			}
			claimed[trigger] = s.Name
		}
	}

	if len(defaults) > 1 {
		return &MultipleDefaultScenesError{Scenes: defaults}
	}
	return nil
}

// checkHandler validates a resolved handler tree.
func checkHandler(h *StateHandler, loc string, depth int) error {
	if depth > maxHandlerDepth {
		return fmt.Errorf("%w: %s nests deeper than %d levels", ErrInvalidHandler, loc, maxHandlerDepth)
	}

	hasOps := len(h.Operations) > 0
	hasSubs := len(h.SubHandlers) > 0
	switch {
	case hasOps && hasSubs:
		return fmt.Errorf("%w: %s defines both operations and sub_states", ErrInvalidHandler, loc)
	case !hasOps && !hasSubs:
		return fmt.Errorf("%w: %s defines neither operations nor sub_states", ErrInvalidHandler, loc)
	}

	if len(h.Operations) > maxOperations {
		return fmt.Errorf("%w: %s exceeds maximum of %d operations", ErrInvalidHandler, loc, maxOperations)
	}
	for i := range h.Operations {
		if err := checkOperation(&h.Operations[i], fmt.Sprintf("%s operation %d", loc, i)); err != nil {
			return err
		}
	}
	if err := checkNotify(h.Notify, loc); err != nil {
		return err
	}
	for i := range h.SubHandlers {
		if err := checkHandler(&h.SubHandlers[i], fmt.Sprintf("%s > %d", loc, i), depth+1); err != nil {
			return err
		}
	}
	return nil
}

func checkOperation(op *OperationDef, loc string) error {
	if op.Name == "" {
		return fmt.Errorf("%w: %s has no name", ErrInvalidOperation, loc)
	}
	return checkNotify(op.Notify, loc)
}

var validNotifyWhen map[NotifyWhen]struct{}

func init() {
	validNotifyWhen = make(map[NotifyWhen]struct{}, len(AllNotifyWhen()))
	for _, w := range AllNotifyWhen() {
		validNotifyWhen[w] = struct{}{}
	}
}

func checkNotify(rules []NotifyRule, loc string) error {
	for _, n := range rules {
		if _, ok := validNotifyWhen[n.When]; !ok {
			return fmt.Errorf("%w: %s notify has invalid when %q", ErrInvalidHandler, loc, n.When)
		}
		if n.Message == "" {
			return fmt.Errorf("%w: %s notify has no message", ErrInvalidHandler, loc)
		}
	}
	return nil
}
