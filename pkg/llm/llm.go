// Package llm constructs the chat model used for sourcing rerank and the
// optional vision/intent refinements. The rest of the engine depends only
// on the llms.Model interface, so tests substitute fakes freely.
package llm

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/shopagent/cartwright/pkg/config"
)

var (
	// ErrDisabled indicates the LLM is turned off; callers stay on the
	// deterministic path.
	ErrDisabled = errors.New("llm is disabled")

	// ErrMissingAPIKey indicates the configured key env var is empty.
	ErrMissingAPIKey = errors.New("llm api key not set")

	// ErrUnknownProvider indicates an unsupported provider name.
	ErrUnknownProvider = errors.New("unknown llm provider")
)

// New builds the configured chat model. Returns ErrDisabled when the LLM
// is switched off.
func New(cfg config.LLMConfig) (llms.Model, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	switch cfg.Provider {
	case "openai":
		key := os.Getenv(cfg.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingAPIKey, cfg.APIKeyEnv)
		}
		return openai.New(openai.WithModel(cfg.Model), openai.WithToken(key))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

// ExtractJSON trims any prose around the first top-level JSON object in
// a model reply. Chat models often wrap JSON in markdown fences or a
// sentence; callers parse the returned slice directly.
func ExtractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
