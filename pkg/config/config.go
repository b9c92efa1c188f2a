// Package config loads and validates the Cartwright runtime configuration.
// All settings ship with built-in defaults; a cartwright.yaml file in the
// config directory overrides them.
package config

import (
	"fmt"
	"net"
	"strconv"
)

// Config is the fully resolved runtime configuration.
type Config struct {
	Server       ServerConfig            `yaml:"server"`
	LLM          LLMConfig               `yaml:"llm"`
	Budgets      map[string]TokenBudget  `yaml:"budgets"`
	TokenPolicy  TokenPolicy             `yaml:"token_policy"`
	OutputSafety int                     `yaml:"token_output_safety"`
	Timeouts     map[string]float64      `yaml:"timeouts"` // stage event name -> seconds
	Sourcing     SourcingConfig          `yaml:"sourcing"`
	Trust        TrustConfig             `yaml:"trust"`
	Compensation CompensationConfig      `yaml:"compensation"`
	Checkout     CheckoutConfig          `yaml:"checkout"`
	Audit        AuditConfig             `yaml:"audit"`
	Metrics      MetricsConfig           `yaml:"metrics"`
	Vendors      map[string]VendorConfig `yaml:"vendors"` // extra vendor trust profiles
}

// ServerConfig holds the HTTP listener settings and the size of the
// async run pool.
type ServerConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	Workers int    `yaml:"workers"` // concurrent async runs
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// LLMConfig selects the chat model used for sourcing rerank and the
// optional vision/intent refinements. When Enabled is false every stage
// runs on its deterministic path and no provider is contacted. The Use*
// flags opt individual stages into the model; they have no effect while
// Enabled is false.
type LLMConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Provider    string `yaml:"provider"`    // chat provider, e.g. "openai"
	Model       string `yaml:"model"`       // provider model name
	APIKeyEnv   string `yaml:"api_key_env"` // env var holding the key
	UseVision   bool   `yaml:"use_vision"`
	UseIntent   bool   `yaml:"use_intent"`
	UseSourcing bool   `yaml:"use_sourcing"`
	UseTrust    bool   `yaml:"use_trust"`
}

// TokenBudget is the per-stage token allowance. Est is the planning
// estimate; Cap is the hard ceiling enforcement acts on.
type TokenBudget struct {
	Est int `yaml:"est_tokens" json:"est_tokens"`
	Cap int `yaml:"cap_tokens" json:"cap_tokens"`
}

// SourcingConfig tunes the S3 offer search.
type SourcingConfig struct {
	TopK int `yaml:"top_k"` // offers kept after merge
}

// TrustConfig tunes the S4 cross-checks. Listings whose domain_name
// attribute does not start with MarketplacePrefix are flagged as a
// domain mismatch; an empty prefix disables the check.
type TrustConfig struct {
	MarketplacePrefix string `yaml:"marketplace_prefix"`
}

// CompensationConfig tunes the S4 alternate-offer scan.
type CompensationConfig struct {
	TopK              int     `yaml:"top_k"`                // candidates evaluated
	PriceWindowPct    float64 `yaml:"price_window_pct"`     // max price increase in percent
	ExtraLatencyCapMS int     `yaml:"extra_latency_cap_ms"` // wall-clock cap for the scan
}

// CheckoutConfig tunes the S5 admission gate.
type CheckoutConfig struct {
	MaxAmountUSD        float64  `yaml:"max_amount_usd"`
	VelocityMaxAttempts int      `yaml:"velocity_max_attempts"` // failures before a card is flagged
	Blacklist           []string `yaml:"blacklist"`             // vendors refused outright
}

// AuditConfig controls the append-only JSONL run log.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	LogPath string `yaml:"log_path"`
}

// MetricsConfig bounds the in-memory duration samples.
type MetricsConfig struct {
	MaxSamples int `yaml:"max_samples"`
}

// VendorConfig is a user-supplied trust profile for a marketplace vendor,
// merged over the built-in profile table.
type VendorConfig struct {
	TLS                   bool    `yaml:"tls"`
	DomainAgeDays         int     `yaml:"domain_age_days"`
	HasPolicyPages        bool    `yaml:"has_policy_pages"`
	HistoricalIssues      bool    `yaml:"historical_issues"`
	HappyReviewsPct       float64 `yaml:"happy_reviews_pct"`
	AcceptsReturns        bool    `yaml:"accepts_returns"`
	AverageRefundTimeDays int     `yaml:"average_refund_time_days"`
}

// BudgetFor returns the token budget for a stage, or a zero budget when
// the stage has none configured.
func (c *Config) BudgetFor(stage string) TokenBudget {
	return c.Budgets[stage]
}

// TimeoutFor returns the timeout in seconds for a stage event name, or 0
// when the stage has no deadline.
func (c *Config) TimeoutFor(event string) float64 {
	return c.Timeouts[event]
}

// Stats summarizes the loaded configuration for startup logging.
type Stats struct {
	Budgets  int
	Timeouts int
	Vendors  int
	Policy   string
}

// Stats returns configuration counts for logging.
func (c *Config) Stats() Stats {
	return Stats{
		Budgets:  len(c.Budgets),
		Timeouts: len(c.Timeouts),
		Vendors:  len(c.Vendors),
		Policy:   string(c.TokenPolicy),
	}
}

// validate checks the resolved configuration for internally consistent
// values. Called by Initialize after defaults are merged.
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return NewValidationError("server", "port", fmt.Errorf("%w: %d", ErrInvalidValue, c.Server.Port))
	}
	if c.Server.Workers < 1 {
		return NewValidationError("server", "workers", fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	if !c.TokenPolicy.IsValid() {
		return NewValidationError("budgets", "token_policy", fmt.Errorf("%w: %q", ErrInvalidValue, c.TokenPolicy))
	}
	if c.OutputSafety < 0 {
		return NewValidationError("budgets", "token_output_safety", fmt.Errorf("%w: %d", ErrInvalidValue, c.OutputSafety))
	}
	for stage, b := range c.Budgets {
		if b.Cap <= 0 {
			return NewValidationError("budgets", stage, fmt.Errorf("%w: cap_tokens must be positive", ErrInvalidValue))
		}
		if b.Est < 0 || b.Est > b.Cap {
			return NewValidationError("budgets", stage, fmt.Errorf("%w: est_tokens must be within [0, cap_tokens]", ErrInvalidValue))
		}
	}
	for event, secs := range c.Timeouts {
		if secs <= 0 {
			return NewValidationError("timeouts", event, fmt.Errorf("%w: timeout must be positive", ErrInvalidValue))
		}
	}
	if c.Sourcing.TopK < 1 {
		return NewValidationError("sourcing", "top_k", fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	if c.Compensation.TopK < 0 {
		return NewValidationError("compensation", "top_k", fmt.Errorf("%w: must not be negative", ErrInvalidValue))
	}
	if c.Compensation.PriceWindowPct < 0 {
		return NewValidationError("compensation", "price_window_pct", fmt.Errorf("%w: must not be negative", ErrInvalidValue))
	}
	if c.Checkout.MaxAmountUSD <= 0 {
		return NewValidationError("checkout", "max_amount_usd", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if c.Checkout.VelocityMaxAttempts < 1 {
		return NewValidationError("checkout", "velocity_max_attempts", fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	if c.Metrics.MaxSamples < 1 {
		return NewValidationError("metrics", "max_samples", fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	return nil
}
