package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopagent/cartwright/pkg/events"
)

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var lines []map[string]any
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		lines = append(lines, line)
	}
	require.NoError(t, scanner.Err())
	return lines
}

func TestLoggerWritesDiscriminatedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "saga.log")

	logger, err := New(path)
	require.NoError(t, err)

	logger.RecordStage("run-1", events.StageEvent{
		Stage:       events.EventS3Sourcing,
		DtS:         0.1234,
		OK:          true,
		Annotations: map[string]any{"offer_count": 3},
	})
	logger.RecordMessage("run-1", events.Message{
		Stage:     events.StageS3,
		Sender:    events.AgentSourcing,
		Recipient: events.AgentTrust,
		Content:   "Top candidate Mockazon at $21.50",
		Ts:        1724371200.123,
	})
	logger.RecordToken(events.TokenEvent{
		RunID: "run-1", State: events.StageS3, Role: events.RolePrompt,
		NTokens: 55, BudgetCap: 1500, Policy: "truncate",
	})
	logger.RecordResult("run-1", true, 6, 0.42, "")
	require.NoError(t, logger.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 4)

	assert.Equal(t, events.TypeStageEvent, lines[0]["type"])
	assert.Equal(t, "run-1", lines[0]["run_id"])
	assert.Equal(t, events.EventS3Sourcing, lines[0]["stage"])
	assert.Equal(t, 0.1234, lines[0]["dt_s"])

	assert.Equal(t, events.TypeMessage, lines[1]["type"])
	assert.Equal(t, events.AgentSourcing, lines[1]["sender"])

	assert.Equal(t, events.TypeToken, lines[2]["type"])
	assert.Equal(t, float64(55), lines[2]["n_tokens"])

	assert.Equal(t, events.TypeRunResult, lines[3]["type"])
	assert.Equal(t, true, lines[3]["ok"])
	_, hasError := lines[3]["error"]
	assert.False(t, hasError, "successful runs must omit the error field")
}

func TestLoggerAppendsAcrossReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saga.log")

	first, err := New(path)
	require.NoError(t, err)
	first.RecordResult("run-1", true, 6, 0.1, "")
	require.NoError(t, first.Close())

	second, err := New(path)
	require.NoError(t, err)
	second.RecordResult("run-2", false, 3, 0.2, "NoOffers")
	require.NoError(t, second.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 2)
	assert.Equal(t, "run-1", lines[0]["run_id"])
	assert.Equal(t, "run-2", lines[1]["run_id"])
	assert.Equal(t, "NoOffers", lines[1]["error"])
}
