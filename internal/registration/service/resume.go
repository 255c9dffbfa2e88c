package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"seller-onboarding/internal/registration/domain"
	teldomain "seller-onboarding/internal/telemetry/domain"
)

// DefaultResumeLinkBaseURL is the registration page resume emails point at.
const DefaultResumeLinkBaseURL = "http://localhost:3000/register/seller"

// ResumeFromLink resumes the session a verification link was sent for. sessionID is set when the
// caller already holds a token for the session; otherwise the newest session for email is used.
// The code is always checked unless the caller holds a token for an already verified session.
func (s *Service) ResumeFromLink(ctx context.Context, sessionID, email, code string) (*Result, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || strings.TrimSpace(code) == "" {
		return nil, domain.ErrInvalidVerifyInput
	}
	sess, err := s.findForResume(ctx, sessionID, email)
	if err != nil {
		return nil, err
	}
	if !sess.Verification.Verified() {
		if _, err := s.verify(ctx, sess.ID, code, "resume"); err != nil {
			s.logAudit(ctx, sess, "resume_failed", verificationOutcome(err))
			if !errors.Is(err, domain.ErrSessionExpired) {
				s.settle(ctx, sess.ID, false)
			}
			return nil, err
		}
	} else if sessionID == "" {
		s.logAudit(ctx, sess, "resume_failed", "already_verified")
		return nil, fmt.Errorf("%w: sign in with the account password", domain.ErrAlreadyVerified)
	}
	return s.resumed(ctx, sess.ID, "link")
}

// ResumeWithPassword resumes the newest session of a registered account.
func (s *Service) ResumeWithPassword(ctx context.Context, email, password string) (*Result, error) {
	email = domain.NormalizeEmail(email)
	var hash string
	found, err := s.repo.FindActiveByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if found != nil {
		hash = found.PasswordHash
	}
	if email == "" || password == "" || !s.hasher.Matches(hash, password) {
		if found != nil {
			s.logAudit(ctx, found, "resume_failed", "invalid_credentials")
		}
		return nil, domain.ErrInvalidCredentials
	}
	return s.resumed(ctx, found.ID, "password")
}

func (s *Service) findForResume(ctx context.Context, sessionID, email string) (*domain.Session, error) {
	id := sessionID
	if id == "" {
		found, err := s.repo.FindActiveByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		if found == nil {
			return nil, domain.ErrSessionNotFound
		}
		id = found.ID
	}
	sess, err := s.read(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Email() != email {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}

// resumed reconciles and pins the session, then issues a token for the new device.
func (s *Service) resumed(ctx context.Context, id, method string) (*Result, error) {
	sess, err := s.settle(ctx, id, true)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, sess, teldomain.EventSessionResumed, map[string]any{"method": method})
	s.logAudit(ctx, sess, "resume", method)
	return s.withToken(sess)
}

// settle moves the session back to the server step when the gateway is behind, then pins it.
// Gateway failures leave the local step as it is.
func (s *Service) settle(ctx context.Context, id string, reconcile bool) (*domain.Session, error) {
	before, err := s.read(ctx, id)
	if err != nil {
		return nil, err
	}
	serverStep := -1
	if reconcile && before.SellerID != "" {
		callStart := s.nowF()
		step, err := s.gw.CurrentStep(ctx, before.SellerID)
		s.metrics.GatewayCall(ctx, "current_step", s.nowF().Sub(callStart), err)
		if err != nil {
			log.Printf("registration: current step for session %s: %v", id, err)
		} else {
			serverStep = step
		}
	}
	var reconciled bool
	sess, err := s.mutate(ctx, id, func(cur *domain.Session) (bool, error) {
		changed := false
		if serverStep >= 0 && cur.RequestSeq == before.RequestSeq {
			if target, ok := reconcileTarget(cur, serverStep); ok {
				cur.CurrentStep = target
				cur.RequestSeq++
				reconciled = true
				changed = true
			}
		}
		if pin(cur) {
			cur.RequestSeq++
			changed = true
		}
		return changed, nil
	})
	if err != nil {
		return nil, err
	}
	if reconciled {
		s.metrics.Transition(ctx, string(sess.SellerType), "reconcile", string(sess.CurrentStep))
		s.emit(ctx, sess, teldomain.EventStepReconciled, map[string]any{"serverStep": serverStep})
	}
	return sess, nil
}

// SendResumeLink emails a link back to the current step once the session has been idle long
// enough. It sends at most one email per idle period and reports whether it sent one.
func (s *Service) SendResumeLink(ctx context.Context, id string) (bool, error) {
	if err := s.flights.start(id, "resume_link"); err != nil {
		return false, err
	}
	defer s.flights.finish(id)

	sess, err := s.read(ctx, id)
	if err != nil {
		return false, err
	}
	email := sess.Email()
	now := s.nowF()
	switch {
	case email == "":
		return false, nil
	case now.Sub(sess.LastActivityAt) < s.cfg.ResumeInactivity:
		return false, nil
	case sess.ResumeEmailSentAt != nil && !sess.ResumeEmailSentAt.Before(sess.LastActivityAt):
		return false, nil
	}
	base := s.cfg.ResumeLinkBaseURL
	if base == "" {
		base = DefaultResumeLinkBaseURL
	}
	link := strings.TrimRight(base, "/") + "/" + string(sess.CurrentStep)
	callStart := s.nowF()
	err = s.gw.SendRegistrationEmail(ctx, email, link)
	s.metrics.GatewayCall(ctx, "send_registration_email", s.nowF().Sub(callStart), err)
	if err != nil {
		return false, fmt.Errorf("send resume link: %w", err)
	}
	sess, err = s.mutate(ctx, id, func(cur *domain.Session) (bool, error) {
		cur.ResumeEmailSentAt = &now
		return true, nil
	})
	if err != nil {
		return true, err
	}
	s.emit(ctx, sess, teldomain.EventResumeLinkSent, nil)
	return true, nil
}

// read loads the session under its lock without modifying it.
func (s *Service) read(ctx context.Context, id string) (*domain.Session, error) {
	unlock := s.locks.lock(id)
	defer unlock()
	return s.load(ctx, id)
}
