package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Session is the full resumable state of one in-progress registration. It is persisted as a
// single JSON document and owned by the registration service; everything else reads snapshots.
type Session struct {
	ID             string                 `json:"sessionId"`
	SellerType     SellerType             `json:"sellerType"`
	CurrentStep    StepID                 `json:"currentStepId"`
	Steps          map[StepID]*StepRecord `json:"steps"`
	Verification   Challenge              `json:"verification"`
	LinkExpiresAt  time.Time              `json:"linkExpiresAt"`
	CreatedAt      time.Time              `json:"createdAt"`
	LastActivityAt time.Time              `json:"lastActivityAt"`
	// SellerID is set once the gateway has registered the account.
	SellerID string `json:"sellerId,omitempty"`
	// PasswordHash replaces the plaintext password after registration.
	PasswordHash string `json:"passwordHash,omitempty"`
	// RequestSeq increases on every navigation and every gateway-bound operation.
	RequestSeq        uint64     `json:"requestSeq"`
	ResumeEmailSentAt *time.Time `json:"resumeEmailSentAt,omitempty"`

	// Version is the optimistic concurrency token of the stored document.
	Version int64 `json:"-"`
}

// NewSession returns a session positioned on entry. The link expires linkTTL after creation
// until a code is issued.
func NewSession(id string, sellerType SellerType, entry StepID, maxAttempts int, now time.Time, linkTTL time.Duration) *Session {
	return &Session{
		ID:             id,
		SellerType:     sellerType,
		CurrentStep:    entry,
		Steps:          map[StepID]*StepRecord{},
		Verification:   NewChallenge(maxAttempts),
		LinkExpiresAt:  now.Add(linkTTL),
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

// Record returns the record for id, creating an empty one when absent.
func (s *Session) Record(id StepID) *StepRecord {
	if r, ok := s.Steps[id]; ok && r != nil {
		return r
	}
	data, ok := NewStepData(id)
	if !ok {
		panic(fmt.Sprintf("domain: unknown step id %q", id))
	}
	if s.Steps == nil {
		s.Steps = map[StepID]*StepRecord{}
	}
	r := &StepRecord{StepID: id, Data: data}
	s.Steps[id] = r
	return r
}

// Completed reports whether the step has a completed record.
func (s *Session) Completed(id StepID) bool {
	r, ok := s.Steps[id]
	return ok && r.Complete()
}

// Account returns the create_account data.
func (s *Session) Account() *AccountDetails {
	return s.Record(StepCreateAccount).Data.(*AccountDetails)
}

// Email returns the normalized account email, or the challenge email when no account data exists.
func (s *Session) Email() string {
	if r, ok := s.Steps[StepCreateAccount]; ok {
		if a, ok := r.Data.(*AccountDetails); ok && a.Email != "" {
			return NormalizeEmail(a.Email)
		}
	}
	return NormalizeEmail(s.Verification.Email)
}

// UpdateStepData merges partial into the named step only and marks it incomplete so the next
// advance validates it again. Other steps are never touched.
func (s *Session) UpdateStepData(id StepID, partial map[string]any, now time.Time) error {
	r := s.Record(id)
	merged, err := MergeStepData(r.Data, partial)
	if err != nil {
		return err
	}
	r.Data = merged
	r.CompletedAt = nil
	s.LastActivityAt = now
	return nil
}

// IsLinkExpired reports whether the resume link has passed its expiry.
func (s *Session) IsLinkExpired(now time.Time) bool {
	return now.After(s.LinkExpiresAt)
}

// Abandoned reports whether the session should be discarded: the link expired and the
// email was never verified.
func (s *Session) Abandoned(now time.Time) bool {
	return s.IsLinkExpired(now) && !s.Verification.Verified()
}

// Clone returns a deep copy, including Version.
func (s *Session) Clone() *Session {
	raw, err := json.Marshal(s)
	if err != nil {
		panic(fmt.Sprintf("domain: session %s is not serializable: %v", s.ID, err))
	}
	var c Session
	if err := json.Unmarshal(raw, &c); err != nil {
		panic(fmt.Sprintf("domain: session %s does not round-trip: %v", s.ID, err))
	}
	c.Version = s.Version
	return &c
}

// Redact returns a copy of d without secrets.
func Redact(d StepData) StepData {
	out := CloneStepData(d)
	if a, ok := out.(*AccountDetails); ok {
		a.Password = ""
	}
	return out
}

// Snapshot is an immutable, secret-free view of a session.
type Snapshot struct {
	SessionID      string           `json:"sessionId"`
	SellerType     SellerType       `json:"sellerType"`
	SellerID       string           `json:"sellerId,omitempty"`
	CurrentStep    StepID           `json:"currentStepId"`
	Steps          []StepView       `json:"steps"`
	Verification   VerificationView `json:"verification"`
	LinkExpiresAt  time.Time        `json:"linkExpiresAt"`
	CreatedAt      time.Time        `json:"createdAt"`
	LastActivityAt time.Time        `json:"lastActivityAt"`
}

// StepView is one step of the resolved path in a snapshot.
type StepView struct {
	StepID      StepID     `json:"stepId"`
	Order       int        `json:"order"`
	Data        StepData   `json:"data"`
	Complete    bool       `json:"complete"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Terminal    bool       `json:"terminal"`
}

// VerificationView exposes challenge state without the code.
type VerificationView struct {
	Email             string          `json:"email,omitempty"`
	Status            ChallengeStatus `json:"status"`
	AttemptsRemaining int             `json:"attemptsRemaining"`
	ExpiresAt         *time.Time      `json:"expiresAt,omitempty"`
	ResendAvailableAt *time.Time      `json:"resendAvailableAt,omitempty"`
}
