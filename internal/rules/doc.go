// Package rules defines the scene rule language and turns a rule set into
// an immutable, validated Model.
//
// A rule set is a list of scenes. Each scene owns an ordered list of state
// handlers; a handler pairs a condition expression with either an ordered
// operation list or nested sub-handlers. Handlers and operation lists can
// be shared through named templates.
//
// Loading runs in a fixed order:
//
//	┌────────────────────────────────────────────────────────┐
//	│ 1. ValidateScenes   trigger ownership, default scene    │
//	│ 2. Resolve          splice templates, detect cycles     │
//	│ 3. Compile          parse conditions and interrupts     │
//	│ 4. Check            handler and operation structure     │
//	│ 5. Usage states     leaves + triggers, computed once    │
//	│ 6. Mutex            partners must be known state names  │
//	└────────────────────────────────────────────────────────┘
//
// Any failure leaves no partial model behind.
//
// # Key Types
//
//   - RuleSet: the raw tree as authored (YAML or JSON)
//   - Scene, StateHandler, OperationDef: raw rule records
//   - TemplateSource: handler and operation template lookup
//   - Model: the compiled, read-only result of Load
//   - SceneRule: one compiled scene; Match selects its operations
//
// # Thread Safety
//
// A Model is never mutated after Load returns and may be shared freely.
package rules
