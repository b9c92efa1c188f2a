package saga

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is a run's lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Run is the stored record of one async saga run.
type Run struct {
	ID        string    `json:"run_id"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Result    *Result   `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	ErrorKind Kind      `json:"error_kind,omitempty"`
}

// Summary is the list-view projection of a run record.
type Summary struct {
	ID        string    `json:"run_id"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ErrorKind Kind      `json:"error_kind,omitempty"`
}

// Manager tracks async runs in memory. Records move
// pending -> running -> completed/failed/cancelled; the final payload
// stays available for retrieval until the process exits.
type Manager struct {
	mu   sync.RWMutex
	runs map[string]*Run
	log  *slog.Logger
}

// NewManager creates an empty run registry.
func NewManager() *Manager {
	return &Manager{
		runs: make(map[string]*Run),
		log:  slog.With("component", "run_manager"),
	}
}

// Create registers a pending run and returns its ID.
func (m *Manager) Create() string {
	id := uuid.New().String()
	now := time.Now()
	m.mu.Lock()
	m.runs[id] = &Run{ID: id, Status: StatusPending, CreatedAt: now, UpdatedAt: now}
	m.mu.Unlock()
	m.log.Debug("Run registered", "run_id", id)
	return id
}

// SetRunning marks a run as executing.
func (m *Manager) SetRunning(id string) {
	m.transition(id, StatusRunning, nil, nil)
}

// Complete stores the final payload of a successful run.
func (m *Manager) Complete(id string, res *Result) {
	m.transition(id, StatusCompleted, res, nil)
}

// Fail stores the partial payload and the error of a failed run.
func (m *Manager) Fail(id string, res *Result, err error) {
	m.transition(id, StatusFailed, res, err)
}

// Cancelled marks a run aborted by the caller, keeping whatever partial
// payload the engine produced.
func (m *Manager) Cancelled(id string, res *Result) {
	m.transition(id, StatusCancelled, res, nil)
}

func (m *Manager) transition(id string, status Status, res *Result, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return
	}
	run.Status = status
	run.UpdatedAt = time.Now()
	if res != nil {
		run.Result = res
	}
	if err != nil {
		run.Error = err.Error()
		run.ErrorKind = KindOf(err)
	}
}

// Get returns a copy of the run record. The Result pointer is shared but
// immutable once the run reached a terminal status.
func (m *Manager) Get(id string) (Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return Run{}, fmt.Errorf("run %s not found", id)
	}
	return *run, nil
}

// List returns summaries of all known runs, newest first.
func (m *Manager) List() []Summary {
	m.mu.RLock()
	out := make([]Summary, 0, len(m.runs))
	for _, run := range m.runs {
		out = append(out, Summary{
			ID:        run.ID,
			Status:    run.Status,
			CreatedAt: run.CreatedAt,
			UpdatedAt: run.UpdatedAt,
			ErrorKind: run.ErrorKind,
		})
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Count returns the number of tracked runs.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.runs)
}
