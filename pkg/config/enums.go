package config

// TokenPolicy selects how a stage reacts when a planned LLM call would
// exceed its token cap.
type TokenPolicy string

const (
	// TokenPolicyWarn lets the call proceed and only flags the overrun.
	TokenPolicyWarn TokenPolicy = "warn"
	// TokenPolicyTruncate shrinks the completion allowance to fit the cap.
	TokenPolicyTruncate TokenPolicy = "truncate"
	// TokenPolicyFallback skips the call and keeps the deterministic result.
	TokenPolicyFallback TokenPolicy = "fallback"
	// TokenPolicyBlock refuses the call; the caller must degrade.
	TokenPolicyBlock TokenPolicy = "block"
)

// IsValid checks if the token policy is a known value.
func (p TokenPolicy) IsValid() bool {
	switch p {
	case TokenPolicyWarn, TokenPolicyTruncate, TokenPolicyFallback, TokenPolicyBlock:
		return true
	default:
		return false
	}
}
