package domain

import (
	"encoding/json"
	"time"
)

// Onboarding event types.
const (
	EventSessionStarted   = "session_started"
	EventStepUpdated      = "step_data_updated"
	EventStepAdvanced     = "step_advanced"
	EventStepRetreated    = "step_retreated"
	EventStepJumped       = "step_jumped"
	EventCodeIssued       = "verification_code_issued"
	EventCodeVerified     = "verification_code_verified"
	EventCodeRejected     = "verification_code_rejected"
	EventSessionResumed   = "session_resumed"
	EventStepReconciled   = "step_reconciled"
	EventSubmitted        = "registration_submitted"
	EventSubmitFailed     = "registration_submit_failed"
	EventSessionRestarted = "session_restarted"
	EventSessionExpired   = "session_expired"
	EventResumeLinkSent   = "resume_link_sent"
	EventStaleDiscarded   = "stale_result_discarded"
	EventGRPCRequest      = "grpc_request"
)

// Event is one onboarding telemetry event. It is the JSON value of the Kafka message and the
// source of OTel log record attributes. It never carries step data or secrets.
type Event struct {
	SessionID  string          `json:"sessionId,omitempty"`
	SellerID   string          `json:"sellerId,omitempty"`
	SellerType string          `json:"sellerType,omitempty"`
	Step       string          `json:"step,omitempty"`
	EventType  string          `json:"eventType"`
	Source     string          `json:"source"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}
