package events

import "sync"

// Sink receives every record the moment it is appended. Implementations
// must be safe for concurrent use.
type Sink interface {
	RecordStage(runID string, ev StageEvent)
	RecordMessage(runID string, msg Message)
	RecordToken(ev TokenEvent)
}

// Recorder accumulates the ordered event log for a single saga run and
// fans each record out to the attached sinks. Safe for concurrent use;
// stage branches and token charges may append from multiple goroutines.
type Recorder struct {
	runID string
	sinks []Sink

	mu       sync.Mutex
	log      []StageEvent
	messages []Message
	tokens   []TokenEvent
}

// NewRecorder creates a recorder for one run. Sinks are optional.
func NewRecorder(runID string, sinks ...Sink) *Recorder {
	return &Recorder{runID: runID, sinks: sinks}
}

// RunID returns the owning run identifier.
func (r *Recorder) RunID() string { return r.runID }

// Stage appends a stage event.
func (r *Recorder) Stage(ev StageEvent) {
	r.mu.Lock()
	r.log = append(r.log, ev)
	r.mu.Unlock()
	for _, s := range r.sinks {
		s.RecordStage(r.runID, ev)
	}
}

// Message appends an inter-agent message.
func (r *Recorder) Message(msg Message) {
	r.mu.Lock()
	r.messages = append(r.messages, msg)
	r.mu.Unlock()
	for _, s := range r.sinks {
		s.RecordMessage(r.runID, msg)
	}
}

// Token appends a token accounting event.
func (r *Recorder) Token(ev TokenEvent) {
	r.mu.Lock()
	r.tokens = append(r.tokens, ev)
	r.mu.Unlock()
	for _, s := range r.sinks {
		s.RecordToken(ev)
	}
}

// Log returns a copy of the stage event log in append order.
func (r *Recorder) Log() []StageEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]StageEvent, len(r.log))
	copy(out, r.log)
	return out
}

// Messages returns a copy of the message log in append order.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// Tokens returns a copy of the token event log in append order.
func (r *Recorder) Tokens() []TokenEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TokenEvent, len(r.tokens))
	copy(out, r.tokens)
	return out
}
