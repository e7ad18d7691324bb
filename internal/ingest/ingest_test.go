package ingest

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-rules/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-rules/internal/state"
)

// ─── Mock Dependencies ─────────────────────────────────────────────

type mockRecorder struct {
	mu      sync.Mutex
	known   map[string]bool
	records []state.Fact
	batches [][]state.Fact
}

func newMockRecorder(names ...string) *mockRecorder {
	r := &mockRecorder{known: map[string]bool{}}
	for _, n := range names {
		r.known[n] = true
	}
	return r
}

func (r *mockRecorder) Record(f state.Fact) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, f)
	return r.known[f.Name]
}

func (r *mockRecorder) BatchRecord(facts []state.Fact) []state.Fact {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, facts)
	var applied []state.Fact
	for _, f := range facts {
		if r.known[f.Name] {
			applied = append(applied, f)
		}
	}
	return applied
}

type mockSubscriber struct {
	topics []string
	err    error
}

func (s *mockSubscriber) Subscribe(topic string, _ byte, _ mqtt.MessageHandler) error {
	if s.err != nil {
		return s.err
	}
	s.topics = append(s.topics, topic)
	return nil
}

func TestSubscribe(t *testing.T) {
	sub := &mockSubscriber{}
	require.NoError(t, New(newMockRecorder(), 1, nil).Subscribe(sub))
	assert.Equal(t, []string{"grayrules/fact/#", "grayrules/facts"}, sub.topics)

	assert.Error(t, New(newMockRecorder(), 1, nil).Subscribe(&mockSubscriber{err: mqtt.ErrNotConnected}))
}

func TestHandleFact(t *testing.T) {
	rec := newMockRecorder("door_open", "room/temp")
	in := New(rec, 1, nil)

	require.NoError(t, in.HandleFact("grayrules/fact/door_open", nil))
	require.NoError(t, in.HandleFact("grayrules/fact/room/temp", []byte(`{"ts": 1767268800.5, "value": 21.5}`)))
	require.NoError(t, in.HandleFact("grayrules/fact/door_open", []byte(`{"cleared": true}`)))
	require.NoError(t, in.HandleFact("grayrules/fact/unknown", []byte(`{}`)))

	require.Len(t, rec.records, 4)

	first := rec.records[0]
	assert.Equal(t, "door_open", first.Name)
	assert.True(t, first.Time.IsZero(), "registry stamps the time")
	assert.Nil(t, first.Value)

	second := rec.records[1]
	assert.Equal(t, "room/temp", second.Name)
	assert.Equal(t, time.Unix(1767268800, int64(500*time.Millisecond)), second.Time)
	require.NotNil(t, second.Value)
	assert.InDelta(t, 21.5, *second.Value, 1e-9)

	assert.True(t, rec.records[2].Cleared)

	assert.Equal(t, Stats{Applied: 3, Ignored: 1}, in.Stats())
}

func TestHandleFact_Rejected(t *testing.T) {
	in := New(newMockRecorder("a"), 1, nil)

	assert.ErrorIs(t, in.HandleFact("grayrules/fact/a", []byte(`not json`)), ErrInvalidPayload)
	assert.ErrorIs(t, in.HandleFact("grayrules/fact/a", []byte(`{"ts": -5}`)), ErrInvalidPayload)
	assert.ErrorIs(t, in.HandleFact("grayrules/other", nil), ErrInvalidPayload)

	assert.Equal(t, uint64(3), in.Stats().Rejected)
}

func TestHandleFact_TopicNameWins(t *testing.T) {
	rec := newMockRecorder("a")
	in := New(rec, 1, nil)

	require.NoError(t, in.HandleFact("grayrules/fact/a", []byte(`{"name": "b"}`)))
	assert.Equal(t, "a", rec.records[0].Name)
}

func TestHandleBatch(t *testing.T) {
	rec := newMockRecorder("menu", "battle")
	in := New(rec, 1, nil)

	payload := []byte(`[
		{"name": "menu", "ts": 100},
		{"name": "battle", "ts": 100, "value": 0.9},
		{"name": "unknown"}
	]`)
	require.NoError(t, in.HandleBatch("grayrules/facts", payload))

	require.Len(t, rec.batches, 1)
	assert.Len(t, rec.batches[0], 3)
	assert.Equal(t, Stats{Applied: 2, Ignored: 1}, in.Stats())
}

func TestHandleBatch_RejectsWhole(t *testing.T) {
	rec := newMockRecorder("menu")
	in := New(rec, 1, nil)

	assert.ErrorIs(t, in.HandleBatch("grayrules/facts", []byte(`[{"name": "menu"}, {"ts": 1}]`)), ErrMissingName)
	assert.ErrorIs(t, in.HandleBatch("grayrules/facts", []byte(`{"name": "menu"}`)), ErrInvalidPayload)
	assert.Empty(t, rec.batches)
	assert.Equal(t, uint64(3), in.Stats().Rejected)
}

func TestPayloadFact(t *testing.T) {
	_, err := Payload{}.Fact()
	assert.ErrorIs(t, err, ErrMissingName)

	v := 1.0
	ts := 10.0
	f, err := Payload{Name: "x", TS: &ts, Value: &v}.Fact()
	require.NoError(t, err)
	assert.Equal(t, time.Unix(10, 0), f.Time)
	assert.Equal(t, &v, f.Value)
}
