package saga

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsSubmittedTasks(t *testing.T) {
	p := NewPool(2)
	defer p.Stop()

	var wg sync.WaitGroup
	var mu sync.Mutex
	ran := make(map[string]bool)

	for _, id := range []string{"a", "b"} {
		wg.Add(1)
		runID := id
		err := p.Submit(runID, func(context.Context) {
			mu.Lock()
			ran[runID] = true
			mu.Unlock()
			wg.Done()
		})
		require.NoError(t, err)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, ran["a"])
	assert.True(t, ran["b"])
}

func TestPoolRejectsWhenSaturated(t *testing.T) {
	p := NewPool(1)
	defer p.Stop()

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.Submit("long", func(context.Context) {
		close(started)
		<-release
	}))
	<-started

	err := p.Submit("overflow", func(context.Context) {})
	assert.ErrorIs(t, err, ErrPoolSaturated)

	health := p.Health()
	assert.Equal(t, 1, health.Workers)
	assert.Equal(t, 1, health.Active)
	assert.Equal(t, 0, health.Capacity)

	close(release)
}

func TestPoolCancelFiresTaskContext(t *testing.T) {
	p := NewPool(1)
	defer p.Stop()

	cancelled := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.Submit("run-1", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(cancelled)
	}))
	<-started

	assert.True(t, p.Cancel("run-1"))
	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("task context was not cancelled")
	}
	assert.False(t, p.Cancel("unknown"))
}

func TestPoolStopRejectsNewWork(t *testing.T) {
	p := NewPool(1)
	p.Stop()

	err := p.Submit("late", func(context.Context) {})
	assert.ErrorIs(t, err, ErrPoolStopped)

	// Stop is idempotent.
	p.Stop()
}

func TestPoolSlotFreedAfterTask(t *testing.T) {
	p := NewPool(1)
	defer p.Stop()

	done := make(chan struct{})
	require.NoError(t, p.Submit("first", func(context.Context) { close(done) }))
	<-done

	// The slot returns shortly after the task exits.
	require.Eventually(t, func() bool {
		return p.Submit("second", func(context.Context) {}) == nil
	}, 2*time.Second, 10*time.Millisecond)
}
