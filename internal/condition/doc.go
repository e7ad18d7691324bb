// Package condition parses and evaluates the boolean state expressions used
// by scene handlers.
//
// An expression is a tree of state leaves combined with AND, OR and NOT.
// Each leaf asks whether a named state was recorded recently enough and,
// optionally, whether its recorded value lies inside a numeric range:
//
//	[state, min_seconds, max_seconds]{min_value, max_value}
//
// Leaves are combined with & (and), | (or) and the prefix ! (not).
// & and | share the same precedence and associate left to right, so
// parentheses are the only way to override the evaluation order:
//
//	[idle, 0, 1] & ![battle] | [menu]      // ((idle & !battle) | menu)
//	[idle, 0, 1] & (![battle] | [menu])
//
// A leaf written as [state] uses the window [0, inf). An empty expression
// is always true.
//
// # Evaluation
//
// Expressions are evaluated against a Source, which returns the latest
// snapshot recorded for a state name. The state registry implements Source.
// AND and OR short-circuit, left operand first.
//
// # Thread Safety
//
// Parsed nodes are immutable and safe to evaluate from many goroutines.
package condition
