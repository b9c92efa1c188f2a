package config

import "github.com/shopagent/cartwright/pkg/events"

// Default enforcement and admission constants.
const (
	// DefaultOutputSafety is the completion-token reserve subtracted when
	// the truncate policy rebinds max_tokens.
	DefaultOutputSafety = 32

	// DefaultCheckoutMaxAmountUSD is the hard per-order amount ceiling.
	DefaultCheckoutMaxAmountUSD = 5000

	// DefaultVelocityMaxAttempts is how many consecutive card failures are
	// tolerated before the card is flagged.
	DefaultVelocityMaxAttempts = 5

	// DefaultSourcingTopK is how many merged offers S3 keeps.
	DefaultSourcingTopK = 5

	// DefaultCompensationTopK is how many alternates S4 evaluates.
	DefaultCompensationTopK = 3

	// DefaultCompensationWindowPct allows a safer alternate to cost up to
	// this percentage more than the current best offer.
	DefaultCompensationWindowPct = 10.0

	// DefaultCompensationLatencyCapMS bounds the alternate scan wall time.
	DefaultCompensationLatencyCapMS = 500

	// DefaultMetricsMaxSamples bounds per-stage duration samples.
	DefaultMetricsMaxSamples = 500

	// DefaultServerWorkers is the async run pool size.
	DefaultServerWorkers = 4
)

// DefaultConfig returns the built-in configuration. Every value can be
// overridden from cartwright.yaml.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8080,
			Workers: DefaultServerWorkers,
		},
		LLM: LLMConfig{
			Enabled:   false,
			Provider:  "openai",
			Model:     "gpt-4o-mini",
			APIKeyEnv: "OPENAI_API_KEY",
		},
		Budgets: map[string]TokenBudget{
			events.StageS1: {Est: 400, Cap: 800},
			events.StageS2: {Est: 700, Cap: 1000},
			events.StageS3: {Est: 1100, Cap: 1500},
			events.StageS4: {Est: 900, Cap: 1200},
			events.StageS5: {Est: 400, Cap: 800},
		},
		TokenPolicy:  TokenPolicyTruncate,
		OutputSafety: DefaultOutputSafety,
		Timeouts: map[string]float64{
			events.EventS1Capture:  12,
			events.EventS2Confirm:  10,
			events.EventS3Sourcing: 18,
			events.EventS4Trust:    12,
			events.EventS5Checkout: 16,
		},
		Sourcing: SourcingConfig{
			TopK: DefaultSourcingTopK,
		},
		Trust: TrustConfig{
			MarketplacePrefix: "amazon",
		},
		Compensation: CompensationConfig{
			TopK:              DefaultCompensationTopK,
			PriceWindowPct:    DefaultCompensationWindowPct,
			ExtraLatencyCapMS: DefaultCompensationLatencyCapMS,
		},
		Checkout: CheckoutConfig{
			MaxAmountUSD:        DefaultCheckoutMaxAmountUSD,
			VelocityMaxAttempts: DefaultVelocityMaxAttempts,
			Blacklist:           []string{"FraudCo", "ScamSupply", "UnknownMart"},
		},
		Audit: AuditConfig{
			Enabled: true,
			LogPath: "logs/saga.log",
		},
		Metrics: MetricsConfig{
			MaxSamples: DefaultMetricsMaxSamples,
		},
	}
}
