// Package budget meters LLM token usage per saga stage and enforces the
// configured overrun policy before any provider call.
package budget

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// fallbackEncoding is used when a GPT model name has no registered encoding.
const fallbackEncoding = "cl100k_base"

// CountTokens estimates the token cost of text for a model. GPT-family
// models are counted with the real BPE; everything else uses the
// four-chars-per-token heuristic with a one-token floor. Empty text costs
// nothing.
func CountTokens(text, model string) int {
	if text == "" {
		return 0
	}
	if strings.Contains(strings.ToLower(model), "gpt") {
		if n, ok := bpeCount(text, model); ok {
			return n
		}
	}
	return heuristicCount(text)
}

func bpeCount(text, model string) (int, bool) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
	}
	if err != nil {
		// Encoding data unavailable (e.g. offline); heuristic takes over.
		return 0, false
	}
	return len(enc.Encode(text, nil, nil)), true
}

func heuristicCount(text string) int {
	n := len(text) / 4
	if n < 1 {
		n = 1
	}
	return n
}
