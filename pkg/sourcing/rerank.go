package sourcing

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"github.com/shopagent/cartwright/pkg/budget"
	"github.com/shopagent/cartwright/pkg/events"
	"github.com/shopagent/cartwright/pkg/llm"
	"github.com/shopagent/cartwright/pkg/models"
)

const rerankSystemPrompt = "You help rank vendor offers for a shopper's intent. " +
	"Review the candidates and return the indices sorted from best to worst. " +
	"Only include indices that exist. Favor offers that match the requested item, brand, color, " +
	"stay under budget when specified, and ship quickly at a fair price. " +
	`Respond with a single JSON object: {"ranked_indices": [int, ...], "reasoning": string}`

const providerName = "llm"

// LLMReranker reorders shortlists with a chat model under token budget
// enforcement. Every call charges the budgeter; past the cap the
// configured policy decides between degraded and refused calls.
type LLMReranker struct {
	model     llms.Model
	modelName string
}

// NewLLMReranker creates a reranker around the model.
func NewLLMReranker(model llms.Model, modelName string) *LLMReranker {
	return &LLMReranker{model: model, modelName: modelName}
}

type rankedCandidate struct {
	Index        int      `json:"index"`
	Vendor       string   `json:"vendor"`
	Title        string   `json:"title"`
	PriceUSD     float64  `json:"price_usd"`
	ShippingDays int      `json:"shipping_days"`
	ETADays      int      `json:"eta_days"`
	Category     string   `json:"category,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`
}

// Rerank asks the model for a preference ordering. Out-of-range and
// duplicate indices are dropped (first occurrence wins); indices the
// model omitted are appended in their original order.
func (r *LLMReranker) Rerank(ctx context.Context, pi models.PurchaseIntent, offers []models.Offer, b *budget.Budgeter) ([]models.Offer, error) {
	if len(offers) <= 1 {
		return offers, nil
	}

	candidates := make([]rankedCandidate, len(offers))
	for i, o := range offers {
		candidates[i] = rankedCandidate{
			Index:        i,
			Vendor:       o.Vendor,
			Title:        o.Title,
			PriceUSD:     o.PriceUSD,
			ShippingDays: o.ShippingDays,
			ETADays:      o.ETADays,
			Category:     o.Category,
			Keywords:     o.Keywords,
		}
	}
	payload, err := json.Marshal(map[string]any{
		"intent": pi,
		"offers": candidates,
	})
	if err != nil {
		return nil, err
	}
	prompt := string(payload)

	var callOpts []llms.CallOption
	if b != nil {
		promptTokens := budget.CountTokens(prompt, r.modelName)
		switch decision := b.EnforceBeforeCall(events.StageS3, promptTokens); decision {
		case budget.DecisionBlock:
			b.Charge(events.StageS3, events.RolePrompt, promptTokens, providerName, r.modelName)
			return nil, fmt.Errorf("%w: %s", budget.ErrTokenBudgetBlock, events.StageS3)
		case budget.DecisionFallback:
			b.Charge(events.StageS3, events.RolePrompt, 0, providerName, r.modelName)
			return offers, nil
		case budget.DecisionTruncate:
			callOpts = append(callOpts, llms.WithMaxTokens(b.CompletionAllowance(events.StageS3, promptTokens)))
		}
		b.Charge(events.StageS3, events.RolePrompt, promptTokens, providerName, r.modelName)
	}

	resp, err := r.model.GenerateContent(ctx, []llms.MessageContent{
		{
			Role:  schema.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(rerankSystemPrompt)},
		},
		{
			Role:  schema.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(prompt)},
		},
	}, callOpts...)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty rerank response")
	}
	reply := resp.Choices[0].Content

	if b != nil {
		b.Charge(events.StageS3, events.RoleCompletion, budget.CountTokens(reply, r.modelName), providerName, r.modelName)
	}

	var ranking struct {
		RankedIndices []int  `json:"ranked_indices"`
		Reasoning     string `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(llm.ExtractJSON(reply)), &ranking); err != nil {
		return nil, fmt.Errorf("unparseable ranking: %w", err)
	}

	return ApplyRanking(offers, ranking.RankedIndices), nil
}

// ApplyRanking reorders offers by the given index preference. Invalid
// and repeated indices are skipped; missing ones keep their original
// relative order at the tail.
func ApplyRanking(offers []models.Offer, indices []int) []models.Offer {
	order := make([]int, 0, len(offers))
	seen := make(map[int]bool, len(offers))
	for _, idx := range indices {
		if idx >= 0 && idx < len(offers) && !seen[idx] {
			order = append(order, idx)
			seen[idx] = true
		}
	}
	for idx := range offers {
		if !seen[idx] {
			order = append(order, idx)
		}
	}

	reordered := make([]models.Offer, len(offers))
	for pos, idx := range order {
		reordered[pos] = offers[idx]
	}
	return reordered
}
