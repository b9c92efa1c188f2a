// Package metrics keeps in-memory counters and latency samples for stage
// events and token usage. Everything is bounded: durations live in a
// fixed-size ring per stage so a long-running service never grows.
package metrics

import (
	"math"
	"sort"
	"sync"

	"github.com/shopagent/cartwright/pkg/events"
)

// StageStats is the exported view of one stage's counters.
type StageStats struct {
	OK      int     `json:"ok"`
	Err     int     `json:"err"`
	AvgS    float64 `json:"avg_s"`
	P95S    float64 `json:"p95_s"`
	Samples int     `json:"samples"`
}

// TokenStats is the exported view of one stage's token counters.
type TokenStats struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Calls      int `json:"calls"`
}

// Snapshot is the full metrics view served by the API.
type Snapshot struct {
	Stages map[string]StageStats `json:"stages"`
	Tokens map[string]TokenStats `json:"tokens"`
}

// Registry aggregates stage and token metrics across runs. Implements
// events.Sink. Safe for concurrent use.
type Registry struct {
	maxSamples int

	mu     sync.Mutex
	stages map[string]*stageCounters
	tokens map[string]*TokenStats
}

type stageCounters struct {
	ok      int
	err     int
	samples *ring
}

// NewRegistry creates a registry keeping at most maxSamples duration
// samples per stage.
func NewRegistry(maxSamples int) *Registry {
	if maxSamples < 1 {
		maxSamples = 1
	}
	return &Registry{
		maxSamples: maxSamples,
		stages:     make(map[string]*stageCounters),
		tokens:     make(map[string]*TokenStats),
	}
}

// RecordStage counts the event outcome and samples its duration.
func (r *Registry) RecordStage(_ string, ev events.StageEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sc, present := r.stages[ev.Stage]
	if !present {
		sc = &stageCounters{samples: newRing(r.maxSamples)}
		r.stages[ev.Stage] = sc
	}
	if ev.OK {
		sc.ok++
	} else {
		sc.err++
	}
	sc.samples.push(ev.DtS)
}

// RecordMessage is a no-op; messages carry no metric.
func (r *Registry) RecordMessage(string, events.Message) {}

// RecordToken accumulates token usage per stage. A completion charge
// counts as one LLM call.
func (r *Registry) RecordToken(ev events.TokenEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts, present := r.tokens[ev.State]
	if !present {
		ts = &TokenStats{}
		r.tokens[ev.State] = ts
	}
	switch ev.Role {
	case events.RolePrompt:
		ts.Prompt += ev.NTokens
	case events.RoleCompletion:
		ts.Completion += ev.NTokens
		ts.Calls++
	}
}

// Snapshot returns a copy of all counters with computed aggregates.
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		Stages: make(map[string]StageStats, len(r.stages)),
		Tokens: make(map[string]TokenStats, len(r.tokens)),
	}
	for name, sc := range r.stages {
		values := sc.samples.values()
		snap.Stages[name] = StageStats{
			OK:      sc.ok,
			Err:     sc.err,
			AvgS:    round4(mean(values)),
			P95S:    round4(p95(values)),
			Samples: len(values),
		}
	}
	for name, ts := range r.tokens {
		snap.Tokens[name] = *ts
	}
	return snap
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// p95 picks the 95th percentile by rank on a sorted copy (no
// interpolation): index floor(0.95*n)-1, floored at 0.
func p95(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	idx := int(0.95*float64(len(sorted))) - 1
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}

func round4(x float64) float64 {
	return math.Round(x*10000) / 10000
}

// ring is a fixed-capacity overwrite-oldest sample buffer.
type ring struct {
	buf   []float64
	next  int
	count int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]float64, capacity)}
}

func (r *ring) push(v float64) {
	r.buf[r.next] = v
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// values returns the retained samples, oldest first.
func (r *ring) values() []float64 {
	out := make([]float64, 0, r.count)
	if r.count < len(r.buf) {
		out = append(out, r.buf[:r.count]...)
		return out
	}
	out = append(out, r.buf[r.next:]...)
	out = append(out, r.buf[:r.next]...)
	return out
}
