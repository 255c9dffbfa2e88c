package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"seller-onboarding/internal/registration/catalog"
	"seller-onboarding/internal/registration/domain"
	teldomain "seller-onboarding/internal/telemetry/domain"
)

// ResendCode sends a new code once the cooldown has passed. The resume link expiry moves with
// each issuance.
func (s *Service) ResendCode(ctx context.Context, id string) (*domain.Snapshot, error) {
	started, err := s.begin(ctx, id, "resend", func(sess *domain.Session) error {
		if sess.SellerID == "" {
			return fmt.Errorf("%w: account is not registered", domain.ErrCodeNotIssued)
		}
		return s.resendAllowed(sess)
	})
	if err != nil {
		return nil, err
	}
	defer s.flights.finish(id)

	ch := started.Verification
	if err := s.verifier.Resend(ctx, &ch, started.Email()); err != nil {
		return nil, err
	}
	sess, err := s.mutate(ctx, id, func(cur *domain.Session) (bool, error) {
		s.applyIssuance(cur, ch)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, sess, teldomain.EventCodeIssued, map[string]any{"issuance": ch.Issuances})
	snap := s.snapshot(sess)
	return &snap, nil
}

// resendAllowed repeats the verifier's refusals so a refused resend leaves no trace.
func (s *Service) resendAllowed(sess *domain.Session) error {
	switch sess.Verification.Status {
	case domain.ChallengeFailed:
		return domain.ErrAttemptsExceeded
	case domain.ChallengeVerified:
		return domain.ErrAlreadyVerified
	}
	if rem := sess.Verification.CooldownRemaining(s.nowF(), s.verifier.Cooldown()); rem > 0 {
		return fmt.Errorf("%w: retry in %s", domain.ErrResendTooSoon, rem.Round(time.Second))
	}
	return nil
}

// applyIssuance records an issued challenge and fixes the link expiry to it.
func (s *Service) applyIssuance(sess *domain.Session, ch domain.Challenge) {
	sess.Verification = ch
	sess.LinkExpiresAt = ch.IssuedAt.Add(s.cfg.LinkTTL)
	sv := sess.Record(domain.StepSellerVerification).Data.(*domain.SellerVerification)
	sv.Email = ch.Email
	if sv.VerificationMethod == "" {
		sv.VerificationMethod = "email"
	}
}

// VerifyCode checks code against the outstanding challenge. On success while the seller is on the
// verification step, the session advances. The snapshot is returned with verification errors too,
// so callers can show the remaining attempts.
func (s *Service) VerifyCode(ctx context.Context, id, code string) (*domain.Snapshot, error) {
	sess, err := s.verify(ctx, id, code, "verify")
	if sess == nil {
		return nil, err
	}
	snap := s.snapshot(sess)
	return &snap, err
}

func (s *Service) verify(ctx context.Context, id, code, op string) (*domain.Session, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domain.ErrInvalidVerifyInput
	}
	started, err := s.begin(ctx, id, op, nil)
	if err != nil {
		return nil, err
	}
	defer s.flights.finish(id)

	ch := started.Verification
	callStart := s.nowF()
	vErr := s.verifier.Validate(ctx, &ch, code)
	s.metrics.GatewayCall(ctx, "verify_code", s.nowF().Sub(callStart), gatewayErr(vErr))
	s.metrics.Verification(ctx, verificationOutcome(vErr))
	fresh := ch.Verified() && !started.Verification.Verified()

	var discarded bool
	sess, err := s.mutate(ctx, id, func(cur *domain.Session) (bool, error) {
		if s.stale(ctx, op, started, cur) && fresh {
			ch.Status = domain.ChallengePending
			discarded = true
		}
		cur.Verification = ch
		if fresh && !discarded && cur.CurrentStep == catalog.VerificationStep {
			sv := cur.Record(catalog.VerificationStep).Data.(*domain.SellerVerification)
			if sv.Email == "" {
				sv.Email = ch.Email
			}
			if sv.VerificationMethod == "" {
				sv.VerificationMethod = "email"
			}
			if _, err := s.nav.Advance(ctx, cur); err != nil {
				return true, err
			}
		}
		return true, nil
	})
	if err != nil && sess == nil {
		return nil, err
	}
	switch {
	case vErr != nil:
		s.emit(ctx, sess, teldomain.EventCodeRejected, map[string]any{
			"reason":            verificationOutcome(vErr),
			"attemptsRemaining": max(0, ch.MaxAttempts-ch.Attempts),
		})
		return sess, vErr
	case discarded:
		return sess, domain.ErrStaleResponse
	case fresh:
		s.emit(ctx, sess, teldomain.EventCodeVerified, nil)
		if sess.CurrentStep != catalog.VerificationStep {
			s.metrics.Transition(ctx, string(sess.SellerType), "advance", string(sess.CurrentStep))
			s.recordStep(ctx, sess)
		}
	}
	return sess, err
}

func verificationOutcome(err error) string {
	switch {
	case err == nil:
		return "verified"
	case errors.Is(err, domain.ErrCodeMismatch):
		return "mismatch"
	case errors.Is(err, domain.ErrCodeExpired):
		return "expired"
	case errors.Is(err, domain.ErrAttemptsExceeded):
		return "attempts_exceeded"
	case errors.Is(err, domain.ErrDeliveryFailed):
		return "delivery_failed"
	case errors.Is(err, domain.ErrCodeNotIssued):
		return "not_issued"
	}
	return "error"
}

// gatewayErr keeps only failures to reach the gateway, not verdicts.
func gatewayErr(err error) error {
	if errors.Is(err, domain.ErrDeliveryFailed) {
		return err
	}
	return nil
}
