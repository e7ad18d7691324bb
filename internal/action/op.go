package action

import (
	"context"
	"errors"

	"github.com/nerrad567/gray-logic-rules/internal/rules"
)

// ErrUnknownOperation is returned by factories that do not recognise an operation name.
var ErrUnknownOperation = errors.New("action: unknown operation")

// AtomicOp is one host-supplied unit of work.
//
// Execute should honour ctx cancellation where it can. A non-nil error ends
// the chain as a failure.
type AtomicOp interface {
	Execute(ctx context.Context) error
}

// OpFunc adapts a function to AtomicOp.
type OpFunc func(ctx context.Context) error

// Execute implements AtomicOp.
func (f OpFunc) Execute(ctx context.Context) error { return f(ctx) }

// Factory builds the atomic operation for a definition.
type Factory interface {
	AtomicOp(def rules.OperationDef) (AtomicOp, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(def rules.OperationDef) (AtomicOp, error)

// AtomicOp implements Factory.
func (f FactoryFunc) AtomicOp(def rules.OperationDef) (AtomicOp, error) { return f(def) }

type chainIDKey struct{}

// WithChainID returns a context carrying the running chain's ID.
func WithChainID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, chainIDKey{}, id)
}

// ChainID returns the ID of the chain an operation runs in, if any.
func ChainID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(chainIDKey{}).(string)
	return id, ok
}
