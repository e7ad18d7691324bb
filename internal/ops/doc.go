// Package ops turns operation definitions from rule files into runnable
// atomic operations.
//
// Two operations are built in:
//
//	wait   {seconds: 1.5}     sleep, returning early when the chain is stopped
//	clear  {state: "name"}    invalidate a state in the registry
//
// Every other name becomes a command published on grayrules/command/{op}
// for an external actuator. Hosts can Register their own builders to
// override either.
package ops
