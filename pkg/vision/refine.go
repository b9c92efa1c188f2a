package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"github.com/shopagent/cartwright/pkg/llm"
	"github.com/shopagent/cartwright/pkg/models"
)

const refineSystemPrompt = "You refine a product hypothesis detected in a shopper's image. " +
	"Correct the label, brand, color or category only when the evidence clearly supports it. " +
	"Respond with a single JSON object: " +
	`{"label": string, "brand": string, "color": string, "category": string, "display_name": string, "confidence": number}`

// Refiner wraps a detector with an LLM polish pass. Any refinement
// failure keeps the detector's hypothesis, so enabling the feature never
// breaks a run.
type Refiner struct {
	inner Provider
	model llms.Model
}

// NewRefiner decorates inner with LLM refinement.
func NewRefiner(inner Provider, model llms.Model) *Refiner {
	return &Refiner{inner: inner, model: model}
}

// Detect runs the inner detector, then asks the model to refine the
// result.
func (r *Refiner) Detect(ctx context.Context, imageName string) (models.ProductHypothesis, error) {
	hypo, err := r.inner.Detect(ctx, imageName)
	if err != nil {
		return hypo, err
	}

	refined, err := r.refine(ctx, imageName, hypo)
	if err != nil {
		slog.Warn("Vision refinement failed, keeping deterministic hypothesis",
			"image", imageName, "error", err)
		return hypo, nil
	}
	return refined, nil
}

func (r *Refiner) refine(ctx context.Context, imageName string, hypo models.ProductHypothesis) (models.ProductHypothesis, error) {
	evidence, err := json.Marshal(map[string]any{
		"source":     imageName,
		"hypothesis": hypo,
	})
	if err != nil {
		return hypo, err
	}

	resp, err := r.model.GenerateContent(ctx, []llms.MessageContent{
		{
			Role:  schema.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(refineSystemPrompt)},
		},
		{
			Role:  schema.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(string(evidence))},
		},
	})
	if err != nil {
		return hypo, err
	}
	if len(resp.Choices) == 0 {
		return hypo, fmt.Errorf("empty refinement response")
	}

	var out struct {
		Label       string  `json:"label"`
		Brand       string  `json:"brand"`
		Color       string  `json:"color"`
		Category    string  `json:"category"`
		DisplayName string  `json:"display_name"`
		Confidence  float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(llm.ExtractJSON(resp.Choices[0].Content)), &out); err != nil {
		return hypo, fmt.Errorf("unparseable refinement: %w", err)
	}
	if out.Label == "" {
		return hypo, fmt.Errorf("refinement dropped the label")
	}

	refined := hypo
	refined.Label = strings.ToLower(out.Label)
	if out.Brand != "" {
		refined.Brand = out.Brand
	}
	if out.Color != "" {
		refined.Color = strings.ToLower(out.Color)
	}
	if out.Category != "" {
		refined.Category = out.Category
	}
	if out.DisplayName != "" {
		refined.DisplayName = out.DisplayName
	}
	if out.Confidence > 0 && out.Confidence <= 1 {
		refined.Confidence = out.Confidence
	}
	return refined, nil
}
