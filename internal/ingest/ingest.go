package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-rules/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-rules/internal/state"
)

var (
	// ErrInvalidPayload is returned for bodies that are not a valid fact.
	ErrInvalidPayload = errors.New("ingest: invalid payload")

	// ErrMissingName is returned for batch entries without a state name.
	ErrMissingName = errors.New("ingest: fact name is required")
)

// Recorder receives decoded facts. *scheduler.Scheduler implements it.
type Recorder interface {
	Record(f state.Fact) bool
	BatchRecord(facts []state.Fact) []state.Fact
}

// Subscriber registers MQTT handlers. *mqtt.Client implements it.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Logger is the logging surface used by the ingester.
type Logger interface {
	Debug(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}

// Payload is the wire form of one fact.
type Payload struct {
	Name    string   `json:"name,omitempty"`
	TS      *float64 `json:"ts,omitempty"` // Unix seconds; absent means now
	Value   *float64 `json:"value,omitempty"`
	Cleared bool     `json:"cleared,omitempty"`
}

// Stats counts processed facts.
type Stats struct {
	Applied  uint64
	Ignored  uint64 // Unknown or stale
	Rejected uint64 // Undecodable
}

// Ingester decodes fact messages and forwards them to a Recorder.
type Ingester struct {
	rec    Recorder
	logger Logger
	qos    byte

	applied  atomic.Uint64
	ignored  atomic.Uint64
	rejected atomic.Uint64
}

// New creates an Ingester. A nil logger discards output.
func New(rec Recorder, qos byte, logger Logger) *Ingester {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Ingester{rec: rec, logger: logger, qos: qos}
}

// Subscribe registers the single-fact and batch handlers on sub.
func (in *Ingester) Subscribe(sub Subscriber) error {
	topics := mqtt.Topics{}
	if err := sub.Subscribe(topics.AllFacts(), in.qos, in.HandleFact); err != nil {
		return fmt.Errorf("subscribing to facts: %w", err)
	}
	if err := sub.Subscribe(topics.FactBatch(), in.qos, in.HandleBatch); err != nil {
		return fmt.Errorf("subscribing to fact batches: %w", err)
	}
	return nil
}

// HandleFact is the MessageHandler for grayrules/fact/{state}.
func (in *Ingester) HandleFact(topic string, payload []byte) error {
	name, ok := mqtt.FactName(topic)
	if !ok {
		in.rejected.Add(1)
		return fmt.Errorf("%w: not a fact topic %q", ErrInvalidPayload, topic)
	}

	var p Payload
	if len(bytes.TrimSpace(payload)) > 0 {
		if err := json.Unmarshal(payload, &p); err != nil {
			in.rejected.Add(1)
			return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
	}
	p.Name = name

	f, err := p.Fact()
	if err != nil {
		in.rejected.Add(1)
		return err
	}
	if in.rec.Record(f) {
		in.applied.Add(1)
	} else {
		in.ignored.Add(1)
		in.logger.Debug("fact ignored", "state", name)
	}
	return nil
}

// HandleBatch is the MessageHandler for grayrules/facts. A batch with any
// undecodable entry is rejected whole.
func (in *Ingester) HandleBatch(_ string, payload []byte) error {
	var ps []Payload
	if err := json.Unmarshal(payload, &ps); err != nil {
		in.rejected.Add(1)
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	facts := make([]state.Fact, 0, len(ps))
	for i, p := range ps {
		f, err := p.Fact()
		if err != nil {
			in.rejected.Add(uint64(len(ps)))
			return fmt.Errorf("batch entry %d: %w", i, err)
		}
		facts = append(facts, f)
	}

	applied := in.rec.BatchRecord(facts)
	in.applied.Add(uint64(len(applied)))
	if skipped := len(facts) - len(applied); skipped > 0 {
		in.ignored.Add(uint64(skipped))
		in.logger.Debug("batch facts ignored", "count", skipped)
	}
	return nil
}

// Stats returns a snapshot of the counters.
func (in *Ingester) Stats() Stats {
	return Stats{
		Applied:  in.applied.Load(),
		Ignored:  in.ignored.Load(),
		Rejected: in.rejected.Load(),
	}
}

// Fact converts the payload into a state fact.
func (p Payload) Fact() (state.Fact, error) {
	if p.Name == "" {
		return state.Fact{}, ErrMissingName
	}
	f := state.Fact{Name: p.Name, Value: p.Value, Cleared: p.Cleared}
	if p.TS != nil {
		ts := *p.TS
		if ts <= 0 || math.IsNaN(ts) || math.IsInf(ts, 0) {
			return state.Fact{}, fmt.Errorf("%w: ts must be positive unix seconds", ErrInvalidPayload)
		}
		sec, frac := math.Modf(ts)
		f.Time = time.Unix(int64(sec), int64(frac*float64(time.Second)))
	}
	return f, nil
}
