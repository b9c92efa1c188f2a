package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("CARTWRIGHT_TEST_KEY", "sk-test-123")
	t.Setenv("CARTWRIGHT_TEST_HOST", "models.internal")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "single variable",
			input:    "api_key_env: {{.CARTWRIGHT_TEST_KEY}}",
			expected: "api_key_env: sk-test-123",
		},
		{
			name:     "multiple variables",
			input:    "addr: {{.CARTWRIGHT_TEST_HOST}}:{{.CARTWRIGHT_TEST_KEY}}",
			expected: "addr: models.internal:sk-test-123",
		},
		{
			name:     "missing variable expands to empty",
			input:    "value: {{.CARTWRIGHT_TEST_DOES_NOT_EXIST}}",
			expected: "value: ",
		},
		{
			name:     "dollar signs pass through untouched",
			input:    "pattern: ^price\\$[0-9]+$",
			expected: "pattern: ^price\\$[0-9]+$",
		},
		{
			name:     "no template syntax",
			input:    "plain: value",
			expected: "plain: value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(ExpandEnv([]byte(tt.input))))
		})
	}
}

func TestExpandEnvMalformedTemplatePassesThrough(t *testing.T) {
	input := []byte("broken: {{.UNCLOSED")
	assert.Equal(t, input, ExpandEnv(input))
}

func TestTokenPolicyIsValid(t *testing.T) {
	assert.True(t, TokenPolicyWarn.IsValid())
	assert.True(t, TokenPolicyTruncate.IsValid())
	assert.True(t, TokenPolicyFallback.IsValid())
	assert.True(t, TokenPolicyBlock.IsValid())
	assert.False(t, TokenPolicy("explode").IsValid())
	assert.False(t, TokenPolicy("").IsValid())
}
