package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu       sync.Mutex
	stages   []StageEvent
	messages []Message
	tokens   []TokenEvent
	runIDs   []string
}

func (c *captureSink) RecordStage(runID string, ev StageEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runIDs = append(c.runIDs, runID)
	c.stages = append(c.stages, ev)
}

func (c *captureSink) RecordMessage(runID string, msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
}

func (c *captureSink) RecordToken(ev TokenEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = append(c.tokens, ev)
}

func TestRecorderPreservesAppendOrder(t *testing.T) {
	rec := NewRecorder("run-1")

	rec.Stage(StageEvent{Stage: EventS1Capture, DtS: 0.1, OK: true})
	rec.Stage(StageEvent{Stage: EventS2Confirm, DtS: 0.2, OK: true})
	rec.Stage(StageEvent{Stage: EventS3Branch, DtS: 0.3, OK: true})

	log := rec.Log()
	require.Len(t, log, 3)
	assert.Equal(t, EventS1Capture, log[0].Stage)
	assert.Equal(t, EventS2Confirm, log[1].Stage)
	assert.Equal(t, EventS3Branch, log[2].Stage)
}

func TestRecorderFansOutToSinks(t *testing.T) {
	sink := &captureSink{}
	rec := NewRecorder("run-7", sink)

	rec.Stage(StageEvent{Stage: EventS4Trust, OK: true})
	rec.Message(Message{Stage: StageS4, Sender: AgentTrust, Recipient: AgentCheckout})
	rec.Token(TokenEvent{RunID: "run-7", State: StageS3, Role: RolePrompt, NTokens: 12})

	require.Len(t, sink.stages, 1)
	require.Len(t, sink.messages, 1)
	require.Len(t, sink.tokens, 1)
	assert.Equal(t, []string{"run-7"}, sink.runIDs)
	assert.Equal(t, 12, sink.tokens[0].NTokens)
}

func TestRecorderCopiesAreIndependent(t *testing.T) {
	rec := NewRecorder("run-2")
	rec.Stage(StageEvent{Stage: EventS1Capture, OK: true})

	first := rec.Log()
	first[0].Stage = "mutated"

	assert.Equal(t, EventS1Capture, rec.Log()[0].Stage)
}

func TestRecorderConcurrentAppends(t *testing.T) {
	rec := NewRecorder("run-3")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec.Token(TokenEvent{RunID: "run-3", State: StageS3, NTokens: 1})
		}()
	}
	wg.Wait()

	assert.Len(t, rec.Tokens(), 50)
}
