package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"github.com/shopagent/cartwright/pkg/llm"
	"github.com/shopagent/cartwright/pkg/models"
)

const extractorSystemPrompt = "You turn a shopper's message and a detected product into a purchase intent. " +
	"Respond with a single JSON object: " +
	`{"item_name": string, "color": string, "size": string, "quantity": number, "budget_usd": number|null, "brand": string, "category": string}. ` +
	"Quantity defaults to 1; leave fields empty when the message does not state them."

// Extractor asks a chat model for the intent and falls back to the
// grammar parser on any failure, so the LLM path can never lose a run.
type Extractor struct {
	model    llms.Model
	fallback *Parser
}

// NewExtractor creates an LLM-backed intent provider.
func NewExtractor(model llms.Model) *Extractor {
	return &Extractor{model: model, fallback: NewParser()}
}

// Extract delegates to the model; any error or malformed reply falls
// back to the deterministic grammar.
func (e *Extractor) Extract(ctx context.Context, hypo models.ProductHypothesis, userText string) (models.PurchaseIntent, error) {
	parsed, err := e.extract(ctx, hypo, userText)
	if err != nil {
		slog.Warn("LLM intent extraction failed, using grammar parser", "error", err)
		return e.fallback.Extract(ctx, hypo, userText)
	}
	return parsed, nil
}

func (e *Extractor) extract(ctx context.Context, hypo models.ProductHypothesis, userText string) (models.PurchaseIntent, error) {
	payload, err := json.Marshal(map[string]any{
		"hypothesis": hypo,
		"user_text":  userText,
	})
	if err != nil {
		return models.PurchaseIntent{}, err
	}

	resp, err := e.model.GenerateContent(ctx, []llms.MessageContent{
		{
			Role:  schema.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(extractorSystemPrompt)},
		},
		{
			Role:  schema.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(string(payload))},
		},
	})
	if err != nil {
		return models.PurchaseIntent{}, err
	}
	if len(resp.Choices) == 0 {
		return models.PurchaseIntent{}, fmt.Errorf("empty extraction response")
	}

	var out models.PurchaseIntent
	if err := json.Unmarshal([]byte(llm.ExtractJSON(resp.Choices[0].Content)), &out); err != nil {
		return models.PurchaseIntent{}, fmt.Errorf("unparseable extraction: %w", err)
	}
	if out.ItemName == "" {
		return models.PurchaseIntent{}, fmt.Errorf("extraction dropped the item name")
	}
	if out.Quantity < 1 {
		out.Quantity = 1
	}
	if out.BudgetUSD != nil && *out.BudgetUSD <= 0 {
		out.BudgetUSD = nil
	}
	return out, nil
}
