package domain

import "time"

// ChallengeStatus is the state of the email verification challenge.
type ChallengeStatus string

const (
	ChallengeIdle     ChallengeStatus = "idle"
	ChallengePending  ChallengeStatus = "pending"
	ChallengeVerified ChallengeStatus = "verified"
	ChallengeFailed   ChallengeStatus = "failed"
	ChallengeExpired  ChallengeStatus = "expired"
)

// Challenge tracks the verification code sent to the seller's email.
// The code itself is held by the gateway; only issuance and attempt state live here.
type Challenge struct {
	Email       string          `json:"email"`
	IssuedAt    time.Time       `json:"issuedAt"`
	ExpiresAt   time.Time       `json:"expiresAt"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"maxAttempts"`
	Status      ChallengeStatus `json:"status"`
	// Issuances counts codes sent during the session.
	Issuances int `json:"issuances"`
}

// NewChallenge returns an idle challenge with the given attempt limit.
func NewChallenge(maxAttempts int) Challenge {
	return Challenge{MaxAttempts: maxAttempts, Status: ChallengeIdle}
}

// MarkIssued records a new code. Any earlier code is superseded and the attempt count resets.
func (c *Challenge) MarkIssued(email string, now time.Time, ttl time.Duration) {
	c.Email = email
	c.IssuedAt = now
	c.ExpiresAt = now.Add(ttl)
	c.Attempts = 0
	c.Status = ChallengePending
	c.Issuances++
}

// Verified reports whether the email has been verified.
func (c *Challenge) Verified() bool {
	return c.Status == ChallengeVerified
}

// ExpiredAt reports whether the pending code has expired at now.
func (c *Challenge) ExpiredAt(now time.Time) bool {
	return c.Status == ChallengeExpired || (c.Status == ChallengePending && now.After(c.ExpiresAt))
}

// CooldownRemaining returns how long until another code may be sent. Zero when never issued.
func (c *Challenge) CooldownRemaining(now time.Time, cooldown time.Duration) time.Duration {
	if c.IssuedAt.IsZero() {
		return 0
	}
	if rem := c.IssuedAt.Add(cooldown).Sub(now); rem > 0 {
		return rem
	}
	return 0
}
