// Package events defines the append-only event stream a saga run produces:
// timed stage events, inter-agent messages, and token accounting records.
package events

// Stage identifiers in pipeline order.
const (
	StageS1 = "S1"
	StageS2 = "S2"
	StageS3 = "S3"
	StageS4 = "S4"
	StageS5 = "S5"
)

// Stage event names. Each timed stage emits exactly one primary event;
// S3 and S4 append secondary events alongside it.
const (
	EventS1Capture    = "S1_CAPTURE"
	EventS2Confirm    = "S2_CONFIRM"
	EventS3Branch     = "S3_BRANCH"
	EventS3Sourcing   = "S3_SOURCING"
	EventS4Trust      = "S4_TRUST"
	EventS4Compensate = "S4_COMPENSATE"
	EventS5Checkout   = "S5_CHECKOUT"
)

// Log record type discriminators used by the audit stream.
const (
	TypeStageEvent = "STAGE_EVENT"
	TypeMessage    = "MESSAGE"
	TypeToken      = "TOKEN"
	TypeRunResult  = "RUN_RESULT"
)

// Participant names used in inter-agent messages.
const (
	AgentVision   = "vision"
	AgentIntent   = "intent"
	AgentSourcing = "sourcing"
	AgentTrust    = "trust"
	AgentCheckout = "checkout"
	AgentUser     = "user"
)
