// Package scheduler is the runtime that turns recorded facts into running
// operation chains.
//
// Architecture:
//
//	┌──────────────────────────────────────────────────────────────┐
//	│                     Scheduler (scheduler.go)                  │
//	│                                                               │
//	│  producers ──▶ state.Registry ──observer──▶ onFacts           │
//	│                                               │               │
//	│        ┌──────────────────────┐               ▼               │
//	│        │ default loop (pool)  │      handleTrigger (pool)     │
//	│        │ cooldown, evaluate   │      cooldown, evaluate,      │
//	│        │ dispatch if idle     │      preempt by priority      │
//	│        └──────────┬───────────┘               │               │
//	│                   └───────────┬───────────────┘               │
//	│                               ▼                               │
//	│                    action.Executor (pool)                     │
//	│                               │ completion                    │
//	│                               ▼                               │
//	│                    onChainDone ──▶ event listeners            │
//	└──────────────────────────────────────────────────────────────┘
//
// At most one chain runs at a time. Every decision about what is running,
// the in-flight counter and per-scene cooldown clocks is made under one
// task lock. Neither the default loop nor trigger handling sleeps while
// holding it.
//
// # Preemption
//
// A newly matched chain replaces the running one only if nothing is
// running, the running chain has no priority, or the new chain's priority
// is set and strictly greater. The default loop never preempts; it waits
// while a chain is in flight.
//
// # Thread Safety
//
// All exported methods are safe for concurrent use.
package scheduler
