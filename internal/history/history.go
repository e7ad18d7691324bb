package history

import (
	"time"

	"github.com/nerrad567/gray-logic-rules/internal/state"
)

// Measurement is the InfluxDB measurement facts are written to.
const Measurement = "facts"

// PointWriter queues a time-series point. *influxdb.Client implements it.
type PointWriter interface {
	WritePoint(measurement string, tags map[string]string, fields map[string]any, ts time.Time)
}

// FactSink applies facts. *scheduler.Scheduler implements it.
type FactSink interface {
	Record(f state.Fact) bool
	BatchRecord(facts []state.Fact) []state.Fact
}

// Recorder passes facts through to a sink and writes a point for every
// fact the sink applied. Points carry the fact as applied, so the state
// name is normalised and the time is the one the sink stamped. Rejected
// facts are not written.
type Recorder struct {
	next FactSink
	w    PointWriter
}

// New wraps next, writing applied facts to w.
func New(next FactSink, w PointWriter) *Recorder {
	return &Recorder{next: next, w: w}
}

// Record applies f and writes it when applied.
func (r *Recorder) Record(f state.Fact) bool {
	return len(r.BatchRecord([]state.Fact{f})) == 1
}

// BatchRecord applies facts and writes the ones that were applied.
func (r *Recorder) BatchRecord(facts []state.Fact) []state.Fact {
	applied := r.next.BatchRecord(facts)
	for _, f := range applied {
		r.write(f)
	}
	return applied
}

func (r *Recorder) write(f state.Fact) {
	fields := map[string]any{"cleared": f.Cleared}
	if f.Value != nil {
		fields["value"] = *f.Value
	}
	r.w.WritePoint(Measurement, map[string]string{"state": f.Name}, fields, f.Time)
}
