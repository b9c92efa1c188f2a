// Package audit persists the saga event stream as append-only JSONL. One
// line per record, discriminated by the "type" field, so the log can be
// replayed or grepped without the service running.
package audit

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/shopagent/cartwright/pkg/events"
)

// Logger appends event records to a JSONL file. Implements events.Sink.
// Write failures are logged and swallowed: the audit trail must never
// fail a run.
type Logger struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// New opens (or creates) the JSONL file at path in append mode, creating
// parent directories as needed.
func New(path string) (*Logger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &Logger{file: file, enc: json.NewEncoder(file)}, nil
}

// Close flushes and closes the underlying file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

type stageLine struct {
	Type  string `json:"type"`
	RunID string `json:"run_id"`
	events.StageEvent
}

type messageLine struct {
	Type  string `json:"type"`
	RunID string `json:"run_id"`
	events.Message
}

type tokenLine struct {
	Type string `json:"type"`
	events.TokenEvent
}

type resultLine struct {
	Type      string  `json:"type"`
	RunID     string  `json:"run_id"`
	OK        bool    `json:"ok"`
	Stages    int     `json:"stages"`
	DurationS float64 `json:"duration_s"`
	Error     string  `json:"error,omitempty"`
}

// RecordStage writes a STAGE_EVENT line.
func (l *Logger) RecordStage(runID string, ev events.StageEvent) {
	l.write(stageLine{Type: events.TypeStageEvent, RunID: runID, StageEvent: ev})
}

// RecordMessage writes a MESSAGE line.
func (l *Logger) RecordMessage(runID string, msg events.Message) {
	l.write(messageLine{Type: events.TypeMessage, RunID: runID, Message: msg})
}

// RecordToken writes a TOKEN line.
func (l *Logger) RecordToken(ev events.TokenEvent) {
	l.write(tokenLine{Type: events.TypeToken, TokenEvent: ev})
}

// RecordResult writes the RUN_RESULT summary line for a finished run.
// errKind is empty for successful runs.
func (l *Logger) RecordResult(runID string, ok bool, stages int, durationS float64, errKind string) {
	l.write(resultLine{
		Type:      events.TypeRunResult,
		RunID:     runID,
		OK:        ok,
		Stages:    stages,
		DurationS: durationS,
		Error:     errKind,
	})
}

func (l *Logger) write(line any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.enc.Encode(line); err != nil {
		slog.Warn("Failed to append audit record", "error", err)
	}
}
