package workerpool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultSize(t *testing.T) {
	assert.Equal(t, DefaultSize, New(0).Size())
	assert.Equal(t, 3, New(3).Size())
}

func TestPool_BoundsConcurrency(t *testing.T) {
	p := New(2)
	defer p.Shutdown()

	var running, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		require.True(t, p.Go(func(context.Context) {
			defer wg.Done()
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
		}))
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.GreaterOrEqual(t, peak.Load(), int32(1))
}

func TestPool_ShutdownCancelsAndWaits(t *testing.T) {
	p := New(1)

	started := make(chan struct{})
	var finished atomic.Bool
	p.Go(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		finished.Store(true)
	})
	<-started

	// Queued behind the running task; must still run once, cancelled.
	var queuedCancelled atomic.Bool
	p.Go(func(ctx context.Context) {
		queuedCancelled.Store(ctx.Err() != nil)
	})

	p.Shutdown()
	assert.True(t, finished.Load())
	assert.True(t, queuedCancelled.Load())
	assert.True(t, p.Closed())
	assert.False(t, p.Go(func(context.Context) {}))

	p.Shutdown() // idempotent
}
