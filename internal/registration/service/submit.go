package service

import (
	"context"
	"fmt"
	"log"

	"seller-onboarding/internal/registration/catalog"
	"seller-onboarding/internal/registration/domain"
	"seller-onboarding/internal/registration/submission"
	teldomain "seller-onboarding/internal/telemetry/domain"
)

// Submit completes the terminal step, sends the assembled registration and clears the session.
// A failed submission leaves the session intact for a retry.
func (s *Service) Submit(ctx context.Context, id string) (*submission.Confirmation, error) {
	var payload submission.Payload
	started, err := s.begin(ctx, id, "submit", func(sess *domain.Session) error {
		if catalog.IsTerminal(sess.CurrentStep) && !sess.Completed(sess.CurrentStep) {
			if err := s.nav.CompleteCurrent(ctx, sess); err != nil {
				return err
			}
		}
		p, err := submission.Assemble(sess)
		if err != nil {
			return err
		}
		payload = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	defer s.flights.finish(id)

	callStart := s.nowF()
	confirmationID, err := s.gw.SubmitRegistration(ctx, started.SellerID, payload)
	s.metrics.GatewayCall(ctx, "submit_registration", s.nowF().Sub(callStart), err)
	s.metrics.Submission(ctx, string(started.SellerType), err == nil)
	if err != nil {
		log.Printf("registration: submit session %s: %v", id, err)
		s.emit(ctx, started, teldomain.EventSubmitFailed, nil)
		return nil, fmt.Errorf("%w: %w", domain.ErrSubmissionFailed, err)
	}

	// a successful submission is final even if the session moved meanwhile
	unlock := s.locks.lock(id)
	if err := s.repo.Delete(ctx, id); err != nil {
		log.Printf("registration: clear submitted session %s: %v", id, err)
	}
	unlock()

	s.emit(ctx, started, teldomain.EventSubmitted, map[string]any{"confirmationId": confirmationID})
	s.logAudit(ctx, started, "submit", confirmationID)
	return &submission.Confirmation{
		SessionID:      id,
		SellerID:       started.SellerID,
		ConfirmationID: confirmationID,
	}, nil
}
