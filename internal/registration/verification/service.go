// Package verification runs the email code challenge: issue, resend with cooldown, and
// attempt-limited validation. The code itself is generated and checked by the backend.
package verification

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"seller-onboarding/internal/registration/domain"
)

const (
	DefaultCodeTTL     = 15 * time.Minute
	DefaultCooldown    = 60 * time.Second
	DefaultMaxAttempts = 5
)

// CodeSender delivers and checks codes. gateway.Gateway satisfies it.
type CodeSender interface {
	SendCode(ctx context.Context, email string) error
	VerifyCode(ctx context.Context, email, code string) (bool, error)
}

// Service applies challenge rules to a domain.Challenge. It holds no per-session state; callers
// persist the mutated challenge.
type Service struct {
	sender   CodeSender
	ttl      time.Duration
	cooldown time.Duration
	nowF     func() time.Time
}

// NewService returns a challenge service. Non-positive durations use the defaults.
func NewService(sender CodeSender, ttl, cooldown time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultCodeTTL
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Service{sender: sender, ttl: ttl, cooldown: cooldown, nowF: time.Now}
}

// SetNow replaces the clock. Used by callers that share one time source.
func (s *Service) SetNow(nowF func() time.Time) { s.nowF = nowF }

// Cooldown is the minimum time between two issuances.
func (s *Service) Cooldown() time.Duration { return s.cooldown }

// TTL is the lifetime of an issued code.
func (s *Service) TTL() time.Duration { return s.ttl }

// Issue sends a fresh code to email and marks the challenge pending. Earlier codes are superseded.
func (s *Service) Issue(ctx context.Context, ch *domain.Challenge, email string) error {
	email = domain.NormalizeEmail(email)
	if email == "" || !domain.ValidEmail(email) {
		return domain.ErrInvalidVerifyInput
	}
	switch ch.Status {
	case domain.ChallengeFailed:
		return domain.ErrAttemptsExceeded
	case domain.ChallengeVerified:
		return domain.ErrAlreadyVerified
	}
	if err := s.sender.SendCode(ctx, email); err != nil {
		log.Printf("verification: send code failed: %v", err)
		return fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
	}
	ch.MarkIssued(email, s.nowF(), s.ttl)
	return nil
}

// Resend issues a new code once the cooldown since the last issuance has passed.
func (s *Service) Resend(ctx context.Context, ch *domain.Challenge, email string) error {
	switch ch.Status {
	case domain.ChallengeFailed:
		return domain.ErrAttemptsExceeded
	case domain.ChallengeVerified:
		return domain.ErrAlreadyVerified
	}
	if rem := ch.CooldownRemaining(s.nowF(), s.cooldown); rem > 0 {
		return fmt.Errorf("%w: retry in %s", domain.ErrResendTooSoon, rem.Round(time.Second))
	}
	return s.Issue(ctx, ch, email)
}

// Validate checks code against the backend. A verified challenge is a no-op. Each backend
// check consumes one attempt unless the backend could not be reached.
func (s *Service) Validate(ctx context.Context, ch *domain.Challenge, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.ErrInvalidVerifyInput
	}
	switch ch.Status {
	case domain.ChallengeVerified:
		return nil
	case domain.ChallengeFailed:
		return domain.ErrAttemptsExceeded
	case domain.ChallengeIdle, "":
		return domain.ErrCodeNotIssued
	}
	if ch.ExpiredAt(s.nowF()) {
		ch.Status = domain.ChallengeExpired
		return domain.ErrCodeExpired
	}
	ch.Attempts++
	if ch.Attempts > ch.MaxAttempts {
		ch.Status = domain.ChallengeFailed
		return domain.ErrAttemptsExceeded
	}
	ok, err := s.sender.VerifyCode(ctx, ch.Email, code)
	if err != nil {
		ch.Attempts--
		log.Printf("verification: verify code failed: %v", err)
		return fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
	}
	if !ok {
		if ch.Attempts >= ch.MaxAttempts {
			ch.Status = domain.ChallengeFailed
		}
		return domain.ErrCodeMismatch
	}
	if ch.ExpiredAt(s.nowF()) {
		ch.Status = domain.ChallengeExpired
		return domain.ErrCodeExpired
	}
	ch.Status = domain.ChallengeVerified
	return nil
}

// View returns the client-facing state of ch at now. A pending code past its expiry reads as expired.
func (s *Service) View(ch domain.Challenge, now time.Time) domain.VerificationView {
	v := domain.VerificationView{
		Email:  ch.Email,
		Status: ch.Status,
	}
	if v.Status == "" {
		v.Status = domain.ChallengeIdle
	}
	if ch.ExpiredAt(now) {
		v.Status = domain.ChallengeExpired
	}
	if rem := ch.MaxAttempts - ch.Attempts; rem > 0 && v.Status != domain.ChallengeFailed {
		v.AttemptsRemaining = rem
	}
	if v.Status == domain.ChallengePending {
		exp := ch.ExpiresAt
		v.ExpiresAt = &exp
	}
	if v.Status != domain.ChallengeVerified && v.Status != domain.ChallengeFailed && !ch.IssuedAt.IsZero() {
		at := ch.IssuedAt.Add(s.cooldown)
		v.ResendAvailableAt = &at
	}
	return v
}
