package domain

import "time"

// AuditLog is one recorded onboarding action.
type AuditLog struct {
	ID string
	// SessionID is empty for actions without a session, e.g. a failed public resume.
	SessionID string
	SellerID  string
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
