package rules

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors for the rules package.
//
// Typed errors below match these sentinels through errors.Is:
//
//	if errors.Is(err, rules.ErrCircularReference) {
//	    // template graph has a cycle
//	}
var (
	// ErrTemplateNotFound is returned when a template reference cannot be resolved.
	ErrTemplateNotFound = errors.New("rules: template not found")

	// ErrCircularReference is returned when a template includes itself.
	ErrCircularReference = errors.New("rules: circular template reference")

	// ErrDuplicateTrigger is returned when two scenes claim the same trigger.
	ErrDuplicateTrigger = errors.New("rules: duplicate trigger")

	// ErrMultipleDefaultScenes is returned when more than one scene has no triggers.
	ErrMultipleDefaultScenes = errors.New("rules: multiple default scenes")

	// ErrUnknownState is returned when a declaration names an unregistered state.
	ErrUnknownState = errors.New("rules: unknown state")

	// ErrInvalidScene is returned when a scene is structurally invalid.
	ErrInvalidScene = errors.New("rules: invalid scene")

	// ErrInvalidHandler is returned when a state handler is structurally invalid.
	ErrInvalidHandler = errors.New("rules: invalid handler")

	// ErrInvalidOperation is returned when an operation definition is invalid.
	ErrInvalidOperation = errors.New("rules: invalid operation")

	// ErrUnsupportedVersion is returned for rule files with an unknown version.
	ErrUnsupportedVersion = errors.New("rules: unsupported version")
)

// TemplateKind distinguishes the two template namespaces.
type TemplateKind string

// Template kinds.
const (
	KindHandler   TemplateKind = "handler"
	KindOperation TemplateKind = "operation"
)

// TemplateNotFoundError reports a reference to a template that does not exist.
type TemplateNotFoundError struct {
	Kind TemplateKind
	Name string
}

func (e *TemplateNotFoundError) Error() string {
	return fmt.Sprintf("rules: %s template %q not found", e.Kind, e.Name)
}

func (e *TemplateNotFoundError) Is(target error) bool { return target == ErrTemplateNotFound }

// CircularReferenceError reports a template that includes itself.
// Path lists the expansion chain ending with the repeated template.
type CircularReferenceError struct {
	Kind TemplateKind
	Name string
	Path []string
}

func (e *CircularReferenceError) Error() string {
	return fmt.Sprintf("rules: circular reference to %s template %q (%s)",
		e.Kind, e.Name, strings.Join(e.Path, " -> "))
}

func (e *CircularReferenceError) Is(target error) bool { return target == ErrCircularReference }

// DuplicateTriggerError reports a trigger claimed by more than one scene.
type DuplicateTriggerError struct {
	Trigger string
	Scenes  [2]string // First claimant, second claimant
}

func (e *DuplicateTriggerError) Error() string {
	return fmt.Sprintf("rules: trigger %q claimed by scenes %q and %q",
		e.Trigger, e.Scenes[0], e.Scenes[1])
}

func (e *DuplicateTriggerError) Is(target error) bool { return target == ErrDuplicateTrigger }

// MultipleDefaultScenesError reports more than one scene without triggers.
type MultipleDefaultScenesError struct {
	Scenes []string
}

func (e *MultipleDefaultScenesError) Error() string {
	return fmt.Sprintf("rules: scenes %s have no triggers; at most one default scene is allowed",
		strings.Join(quoteAll(e.Scenes), ", "))
}

func (e *MultipleDefaultScenesError) Is(target error) bool { return target == ErrMultipleDefaultScenes }

// UnknownStateError reports a declaration naming a state that is neither
// used by any rule nor listed in the catalogue.
type UnknownStateError struct {
	Name    string
	Context string // Where the name appeared, e.g. "mutex of battle"
}

func (e *UnknownStateError) Error() string {
	return fmt.Sprintf("rules: unknown state %q in %s", e.Name, e.Context)
}

func (e *UnknownStateError) Is(target error) bool { return target == ErrUnknownState }

func quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = fmt.Sprintf("%q", n)
	}
	return out
}
