package ops

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-rules/internal/action"
	"github.com/nerrad567/gray-logic-rules/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-rules/internal/rules"
)

// Built-in operation names.
const (
	OpWait  = "wait"
	OpClear = "clear"
)

// ErrInvalidParams is returned when an operation's parameters are unusable.
var ErrInvalidParams = errors.New("ops: invalid parameters")

// Publisher sends JSON payloads. *mqtt.Client implements it.
type Publisher interface {
	PublishJSON(topic string, v any) error
}

// StateClearer invalidates a named state.
type StateClearer interface {
	Clear(name string) bool
}

// ClearFunc adapts a function to StateClearer.
type ClearFunc func(name string) bool

// Clear implements StateClearer.
func (f ClearFunc) Clear(name string) bool { return f(name) }

// Builder creates the atomic operation for one definition.
type Builder func(def rules.OperationDef) (action.AtomicOp, error)

// Command is the payload published for actuator operations.
type Command struct {
	ID      string         `json:"id"`
	Op      string         `json:"op"`
	Params  map[string]any `json:"params,omitempty"`
	ChainID string         `json:"chain_id,omitempty"`
	SentAt  time.Time      `json:"sent_at"`
}

// Factory implements action.Factory.
type Factory struct {
	pub     Publisher
	clearer StateClearer
	now     func() time.Time

	mu       sync.RWMutex
	builders map[string]Builder
}

// NewFactory creates a factory with the built-in operations.
//
// Parameters:
//   - pub: Destination for command operations; nil makes unknown names an error
//   - clearer: Target of the clear operation; nil disables it
func NewFactory(pub Publisher, clearer StateClearer) *Factory {
	f := &Factory{
		pub:      pub,
		clearer:  clearer,
		now:      time.Now,
		builders: make(map[string]Builder),
	}
	f.builders[OpWait] = buildWait
	if clearer != nil {
		f.builders[OpClear] = f.buildClear
	}
	return f
}

// Register installs or replaces the builder for name.
func (f *Factory) Register(name string, b Builder) {
	f.mu.Lock()
	f.builders[name] = b
	f.mu.Unlock()
}

// AtomicOp implements action.Factory.
func (f *Factory) AtomicOp(def rules.OperationDef) (action.AtomicOp, error) {
	f.mu.RLock()
	b, ok := f.builders[def.Name]
	f.mu.RUnlock()
	if ok {
		return b(def)
	}
	if f.pub == nil {
		return nil, fmt.Errorf("%w: %q", action.ErrUnknownOperation, def.Name)
	}
	return f.command(def), nil
}

func (f *Factory) command(def rules.OperationDef) action.AtomicOp {
	topic := mqtt.Topics{}.Command(def.Name)
	return action.OpFunc(func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		chainID, _ := action.ChainID(ctx)
		return f.pub.PublishJSON(topic, Command{
			ID:      uuid.NewString(),
			Op:      def.Name,
			Params:  def.Params,
			ChainID: chainID,
			SentAt:  f.now().UTC(),
		})
	})
}

func buildWait(def rules.OperationDef) (action.AtomicOp, error) {
	secs, err := floatParam(def.Params, "seconds")
	if err != nil {
		return nil, err
	}
	if secs < 0 || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return nil, fmt.Errorf("%w: wait seconds must be a finite non-negative number", ErrInvalidParams)
	}
	d := time.Duration(secs * float64(time.Second))
	return action.OpFunc(func(ctx context.Context) error {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}), nil
}

func (f *Factory) buildClear(def rules.OperationDef) (action.AtomicOp, error) {
	name, ok := def.Params["state"].(string)
	if !ok || name == "" {
		return nil, fmt.Errorf("%w: clear needs a state name", ErrInvalidParams)
	}
	return action.OpFunc(func(context.Context) error {
		// Clearing an unknown or empty state is not a failure.
		f.clearer.Clear(name)
		return nil
	}), nil
}

// floatParam reads a numeric parameter. YAML decodes integers as int and
// JSON as float64; both are accepted.
func floatParam(params map[string]any, key string) (float64, error) {
	switch v := params[key].(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case nil:
		return 0, fmt.Errorf("%w: %q is required", ErrInvalidParams, key)
	default:
		return 0, fmt.Errorf("%w: %q must be a number, got %T", ErrInvalidParams, key, v)
	}
}
