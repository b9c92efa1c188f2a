package saga

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Pool submission errors.
var (
	ErrPoolSaturated = errors.New("run pool saturated")
	ErrPoolStopped   = errors.New("run pool stopped")
)

// Task is one queued saga execution. The context is cancelled when the
// run is cancelled or the pool shuts down.
type Task func(ctx context.Context)

// PoolHealth is a point-in-time occupancy snapshot.
type PoolHealth struct {
	Workers  int  `json:"workers"`
	Active   int  `json:"active_runs"`
	Capacity int  `json:"capacity"`
	Healthy  bool `json:"healthy"`
}

// Pool is a bounded executor for async saga runs. Each submitted run
// holds one worker slot and a cancelable context registered under its
// run ID until the task returns.
type Pool struct {
	size     int
	slots    chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	log      *slog.Logger

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// NewPool creates a pool with the given number of worker slots.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		size:   size,
		slots:  make(chan struct{}, size),
		stopCh: make(chan struct{}),
		active: make(map[string]context.CancelFunc),
		log:    slog.With("component", "run_pool"),
	}
}

// Submit schedules a run. It never blocks: a saturated pool rejects with
// ErrPoolSaturated, a stopped pool with ErrPoolStopped.
func (p *Pool) Submit(runID string, task Task) error {
	select {
	case <-p.stopCh:
		return ErrPoolStopped
	default:
	}
	select {
	case p.slots <- struct{}{}:
	default:
		return ErrPoolSaturated
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.mu.Lock()
	p.active[runID] = cancel
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer func() {
			p.mu.Lock()
			delete(p.active, runID)
			p.mu.Unlock()
			cancel()
			<-p.slots
			p.wg.Done()
		}()
		task(ctx)
	}()

	p.log.Debug("Run submitted", "run_id", runID)
	return nil
}

// Cancel aborts an in-flight run. Returns false when the run is not
// active (already finished or never submitted).
func (p *Pool) Cancel(runID string) bool {
	p.mu.Lock()
	cancel, ok := p.active[runID]
	p.mu.Unlock()
	if ok {
		p.log.Info("Cancelling run", "run_id", runID)
		cancel()
	}
	return ok
}

// Stop rejects new submissions, cancels in-flight runs and waits for
// them to drain.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		p.mu.Lock()
		for id, cancel := range p.active {
			p.log.Info("Stopping run", "run_id", id)
			cancel()
		}
		p.mu.Unlock()
	})
	p.wg.Wait()
}

// Health reports pool occupancy.
func (p *Pool) Health() PoolHealth {
	p.mu.Lock()
	active := len(p.active)
	p.mu.Unlock()
	return PoolHealth{
		Workers:  p.size,
		Active:   active,
		Capacity: p.size - active,
		Healthy:  true,
	}
}
