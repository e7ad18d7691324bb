package history

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-rules/internal/state"
)

// ─── Mock Dependencies ─────────────────────────────────────────────

type point struct {
	measurement string
	tags        map[string]string
	fields      map[string]any
	ts          time.Time
}

type mockWriter struct {
	mu     sync.Mutex
	points []point
}

func (w *mockWriter) WritePoint(m string, tags map[string]string, fields map[string]any, ts time.Time) {
	w.mu.Lock()
	w.points = append(w.points, point{m, tags, fields, ts})
	w.mu.Unlock()
}

// ─── Tests ─────────────────────────────────────────────────────────

var at = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestRecorder() (*Recorder, *mockWriter) {
	w := &mockWriter{}
	reg := state.NewRegistry([]string{"door_open", "temp", "café"}, nil,
		state.WithClock(func() time.Time { return at.Add(time.Minute) }))
	return New(reg, w), w
}

func TestRecord_WritesApplied(t *testing.T) {
	r, w := newTestRecorder()
	v := 21.5

	assert.True(t, r.Record(state.Fact{Name: "temp", Time: at, Value: &v}))

	require.Len(t, w.points, 1)
	p := w.points[0]
	assert.Equal(t, Measurement, p.measurement)
	assert.Equal(t, map[string]string{"state": "temp"}, p.tags)
	assert.Equal(t, map[string]any{"cleared": false, "value": 21.5}, p.fields)
	assert.Equal(t, at, p.ts)
}

func TestRecord_SkipsRejected(t *testing.T) {
	r, w := newTestRecorder()

	assert.False(t, r.Record(state.Fact{Name: "unknown", Time: at}))
	assert.Empty(t, w.points)
}

func TestRecord_ClearedWithoutTime(t *testing.T) {
	r, w := newTestRecorder()

	assert.True(t, r.Record(state.Fact{Name: "door_open", Cleared: true}))

	require.Len(t, w.points, 1)
	assert.Equal(t, map[string]any{"cleared": true}, w.points[0].fields)
	assert.Equal(t, at.Add(time.Minute), w.points[0].ts)
}

func TestBatchRecord_WritesOnlyApplied(t *testing.T) {
	r, w := newTestRecorder()

	applied := r.BatchRecord([]state.Fact{
		{Name: "door_open", Time: at},
		{Name: "garage", Time: at},
		{Name: "temp", Time: at.Add(time.Second)},
	})

	require.Len(t, applied, 2)
	require.Len(t, w.points, 2)
	assert.Equal(t, "door_open", w.points[0].tags["state"])
	assert.Equal(t, "temp", w.points[1].tags["state"])
}

func TestRecord_WritesNormalisedName(t *testing.T) {
	r, w := newTestRecorder()

	// "cafe" followed by a combining acute accent.
	assert.True(t, r.Record(state.Fact{Name: " cafe\u0301", Time: at}))

	require.Len(t, w.points, 1)
	assert.Equal(t, map[string]string{"state": "café"}, w.points[0].tags)
}

func TestRecord_SkipsStale(t *testing.T) {
	r, w := newTestRecorder()

	require.True(t, r.Record(state.Fact{Name: "temp", Time: at}))
	assert.False(t, r.Record(state.Fact{Name: "temp", Time: at.Add(-time.Second)}))
	assert.Len(t, w.points, 1)
}
