package trust

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"github.com/shopagent/cartwright/pkg/llm"
	"github.com/shopagent/cartwright/pkg/models"
)

const adjusterSystemPrompt = "You evaluate vendor trustworthiness. " +
	"Given an offer, the vendor telemetry, and the baseline risk computed by heuristics, " +
	"choose the final risk as low, medium, or high. " +
	`Respond with a single JSON object: {"risk": string, "reasoning": string}`

// LLMAdjuster revises assessments with a chat model. The evaluator only
// accepts raised bands from it, so a misbehaving model cannot launder a
// risky vendor.
type LLMAdjuster struct {
	model llms.Model
}

// NewLLMAdjuster creates an adjuster around the model.
func NewLLMAdjuster(model llms.Model) *LLMAdjuster {
	return &LLMAdjuster{model: model}
}

// Adjust asks the model for a risk decision over the offer and profile.
func (a *LLMAdjuster) Adjust(ctx context.Context, offer models.Offer, assessment models.TrustAssessment, profile Profile) (models.TrustAssessment, error) {
	payload, err := json.Marshal(map[string]any{
		"offer":         offer,
		"profile":       profile,
		"baseline_risk": assessment.Risk.String(),
	})
	if err != nil {
		return assessment, err
	}

	resp, err := a.model.GenerateContent(ctx, []llms.MessageContent{
		{
			Role:  schema.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(adjusterSystemPrompt)},
		},
		{
			Role:  schema.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(string(payload))},
		},
	})
	if err != nil {
		return assessment, err
	}
	if len(resp.Choices) == 0 {
		return assessment, fmt.Errorf("empty adjustment response")
	}

	var decision struct {
		Risk      string `json:"risk"`
		Reasoning string `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(llm.ExtractJSON(resp.Choices[0].Content)), &decision); err != nil {
		return assessment, fmt.Errorf("unparseable adjustment: %w", err)
	}
	switch decision.Risk {
	case "low", "medium", "high":
		assessment.Risk = models.ParseRisk(decision.Risk)
	default:
		return assessment, fmt.Errorf("unknown risk band %q", decision.Risk)
	}
	return assessment, nil
}
