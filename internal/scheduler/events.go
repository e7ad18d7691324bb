package scheduler

import (
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-rules/internal/condition"
	"github.com/nerrad567/gray-logic-rules/internal/rules"
)

// ExecutionInfo describes one dispatched chain.
type ExecutionInfo struct {
	ID         string
	Scene      string
	Trigger    string // Empty for the default scene
	Priority   *int
	Operations []rules.OperationDef
	Expression string
	Interrupt  condition.Node
	Notify     []rules.NotifyRule
	StartedAt  time.Time
}

// EventKind identifies a chain lifecycle event.
type EventKind string

// Chain lifecycle events.
const (
	EventDispatched EventKind = "dispatched"
	EventCompleted  EventKind = "completed"
)

// Event is delivered to listeners for every dispatch and completion.
// Success, Stopped and Err are only set on EventCompleted.
type Event struct {
	Kind    EventKind
	Info    ExecutionInfo
	Success bool
	Stopped bool
	Err     error
}

// eventQueue delivers events to listeners in order on its own goroutine,
// so listeners never run under the task lock.
type eventQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []Event
	closed  bool
	done    chan struct{}
	deliver func(Event)
}

func newEventQueue(deliver func(Event)) *eventQueue {
	q := &eventQueue{done: make(chan struct{}), deliver: deliver}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

func (q *eventQueue) push(e Event) {
	q.mu.Lock()
	if !q.closed {
		q.items = append(q.items, e)
		q.cond.Signal()
	}
	q.mu.Unlock()
}

func (q *eventQueue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for len(q.items) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.items) == 0 {
			q.mu.Unlock()
			return
		}
		batch := q.items
		q.items = nil
		q.mu.Unlock()

		for _, e := range batch {
			q.deliver(e)
		}
	}
}

// close stops accepting events, drains what is queued and waits.
func (q *eventQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Signal()
	q.mu.Unlock()
	<-q.done
}
