// Package action runs ordered chains of host-supplied atomic operations.
//
// A chain runs on one pool worker. Before each operation the worker checks
// whether a stop was requested; an operation that has already started is
// allowed to finish, although its context is cancelled so cooperative
// operations can return early.
//
// The executor never inspects what an operation does. Hosts supply a
// Factory that turns an OperationDef into an AtomicOp.
package action
