package events

// StageEvent records one timed pipeline step. DtS is wall time in seconds
// rounded to 4 decimals; zero-duration bookkeeping events use 0.0.
type StageEvent struct {
	Stage       string         `json:"stage"`                 // event name, e.g. "S3_SOURCING"
	DtS         float64        `json:"dt_s"`                  // elapsed seconds, round(4)
	OK          bool           `json:"ok"`                    // false when the stage failed
	Annotations map[string]any `json:"annotations,omitempty"` // stage-specific details
}

// Message is one hop of inter-agent traffic. Ts is a unix timestamp in
// seconds rounded to 3 decimals.
type Message struct {
	Stage     string         `json:"stage"`            // stage that produced the hop
	Sender    string         `json:"sender"`           // producing agent
	Recipient string         `json:"recipient"`        // consuming agent or "user"
	Content   string         `json:"content"`          // human-readable summary
	Ts        float64        `json:"ts"`               // unix seconds, round(3)
	Extras    map[string]any `json:"extras,omitempty"` // structured payload details
}

// TokenEvent records one token charge against a stage budget. Emitted for
// every charge, not only overruns; OverBudget marks charges that crossed
// the stage cap.
type TokenEvent struct {
	Ts         float64 `json:"ts"`          // unix seconds
	RunID      string  `json:"run_id"`      // owning saga run
	State      string  `json:"state"`       // budget stage, e.g. "S3"
	Provider   string  `json:"provider"`    // llm provider name
	Model      string  `json:"model"`       // llm model name
	Role       string  `json:"role"`        // "prompt" or "completion"
	NTokens    int     `json:"n_tokens"`    // tokens requested by this charge
	BudgetCap  int     `json:"budget_cap"`  // stage hard cap
	OverBudget bool    `json:"over_budget"` // charge would exceed the cap
	Policy     string  `json:"policy"`      // enforcement policy in effect
}

// Token roles.
const (
	RolePrompt     = "prompt"
	RoleCompletion = "completion"
)
