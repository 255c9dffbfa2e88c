package service

import (
	"context"
	"fmt"
	"log"
	"sort"

	"seller-onboarding/internal/gateway"
	"seller-onboarding/internal/registration/catalog"
	"seller-onboarding/internal/registration/domain"
	teldomain "seller-onboarding/internal/telemetry/domain"
)

// UpdateStepData merges partial into the current step. The account step is read-only once the
// seller is registered.
func (s *Service) UpdateStepData(ctx context.Context, id string, step domain.StepID, partial map[string]any) (*domain.Snapshot, error) {
	if !catalog.Known(step) {
		return nil, fmt.Errorf("%w: unknown step %q", domain.ErrIllegalJump, step)
	}
	sess, err := s.mutate(ctx, id, func(sess *domain.Session) (bool, error) {
		if step != sess.CurrentStep {
			return false, fmt.Errorf("%w: only the current step %s accepts data", domain.ErrIllegalJump, sess.CurrentStep)
		}
		if step == domain.StepCreateAccount && sess.SellerID != "" {
			return false, &domain.ValidationError{Step: step, Fields: []domain.FieldError{
				{Field: "account", Reason: "registered account details can no longer change"},
			}}
		}
		if err := sess.UpdateStepData(step, partial, s.nowF()); err != nil {
			return false, err
		}
		sess.RequestSeq++
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	fields := make([]string, 0, len(partial))
	for k := range partial {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	s.emit(ctx, sess, teldomain.EventStepUpdated, map[string]any{"fields": fields})
	snap := s.snapshot(sess)
	return &snap, nil
}

// Advance completes the current step and moves to the next one. Leaving the account step
// registers the seller with the gateway and sends the first verification code; a failed send
// still advances and is reported as domain.ErrDeliveryFailed.
func (s *Service) Advance(ctx context.Context, id string) (*domain.Snapshot, error) {
	var register bool
	var from domain.StepID
	sess, err := s.mutate(ctx, id, func(sess *domain.Session) (bool, error) {
		if sess.CurrentStep == domain.StepCreateAccount && sess.SellerID == "" {
			register = true
			return false, nil
		}
		from = sess.CurrentStep
		if _, err := s.nav.Advance(ctx, sess); err != nil {
			return false, err
		}
		sess.RequestSeq++
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if register {
		return s.register(ctx, id)
	}
	s.transitioned(ctx, sess, "advance", teldomain.EventStepAdvanced, from)
	snap := s.snapshot(sess)
	return &snap, nil
}

// register runs the account step against the gateway: hash, register, issue the first code.
func (s *Service) register(ctx context.Context, id string) (*domain.Snapshot, error) {
	started, err := s.begin(ctx, id, "register", func(sess *domain.Session) error {
		if sess.CurrentStep != domain.StepCreateAccount || sess.SellerID != "" {
			return fmt.Errorf("%w: account is already registered", domain.ErrIllegalJump)
		}
		_, err := s.nav.Check(ctx, sess, domain.StepCreateAccount)
		return err
	})
	if err != nil {
		return nil, err
	}
	defer s.flights.finish(id)

	acct := *started.Account()
	email := domain.NormalizeEmail(acct.Email)
	hash, err := s.hasher.Hash(acct.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	callStart := s.nowF()
	sellerID, err := s.gw.RegisterSeller(ctx, gateway.RegisterSellerRequest{
		FullName:   acct.FullName,
		Email:      email,
		Password:   acct.Password,
		SellerType: string(started.SellerType),
	})
	s.metrics.GatewayCall(ctx, "register_seller", s.nowF().Sub(callStart), err)
	if err != nil {
		log.Printf("registration: register seller for session %s: %v", id, err)
		return nil, fmt.Errorf("%w: %w", domain.ErrRegistrationFailed, err)
	}

	ch := started.Verification
	issueErr := s.verifier.Issue(ctx, &ch, email)

	sess, err := s.mutate(ctx, id, func(cur *domain.Session) (bool, error) {
		cur.SellerID = sellerID
		cur.PasswordHash = hash
		a := cur.Account()
		a.FullName, a.Email, a.Password = acct.FullName, email, ""
		if issueErr == nil {
			s.applyIssuance(cur, ch)
		}
		if s.stale(ctx, "register", started, cur) || cur.CurrentStep != domain.StepCreateAccount {
			return true, nil
		}
		_, err := s.nav.Advance(ctx, cur)
		return true, err
	})
	if err != nil {
		return nil, err
	}
	if issueErr == nil {
		s.emit(ctx, sess, teldomain.EventCodeIssued, nil)
	}
	if sess.CurrentStep != domain.StepCreateAccount {
		s.transitioned(ctx, sess, "advance", teldomain.EventStepAdvanced, domain.StepCreateAccount)
	}
	snap := s.snapshot(sess)
	return &snap, issueErr
}

// Retreat moves to the previous step on the resolved path.
func (s *Service) Retreat(ctx context.Context, id string) (*domain.Snapshot, error) {
	var from domain.StepID
	sess, err := s.mutate(ctx, id, func(sess *domain.Session) (bool, error) {
		from = sess.CurrentStep
		if _, err := s.nav.Retreat(sess); err != nil {
			return false, err
		}
		sess.RequestSeq++
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	s.transitioned(ctx, sess, "retreat", teldomain.EventStepRetreated, from)
	snap := s.snapshot(sess)
	return &snap, nil
}

// JumpTo moves to target if every step before it on the resolved path is complete.
func (s *Service) JumpTo(ctx context.Context, id string, target domain.StepID) (*domain.Snapshot, error) {
	var from domain.StepID
	sess, err := s.mutate(ctx, id, func(sess *domain.Session) (bool, error) {
		from = sess.CurrentStep
		if _, err := s.nav.JumpTo(sess, target); err != nil {
			return false, err
		}
		sess.RequestSeq++
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	s.transitioned(ctx, sess, "jump", teldomain.EventStepJumped, from)
	snap := s.snapshot(sess)
	return &snap, nil
}

func (s *Service) transitioned(ctx context.Context, sess *domain.Session, kind, eventType string, from domain.StepID) {
	s.metrics.Transition(ctx, string(sess.SellerType), kind, string(sess.CurrentStep))
	s.recordStep(ctx, sess)
	s.emit(ctx, sess, eventType, map[string]any{"from": string(from)})
}

// recordStep reports the reached step to gateways that do not track it themselves.
func (s *Service) recordStep(ctx context.Context, sess *domain.Session) {
	rec, ok := s.gw.(gateway.StepRecorder)
	if !ok || sess.SellerID == "" {
		return
	}
	def, ok := catalog.Definition(sess.SellerType, sess.CurrentStep)
	if !ok {
		return
	}
	if err := rec.RecordStep(ctx, sess.SellerID, def.Order); err != nil {
		log.Printf("registration: record step for session %s: %v", sess.ID, err)
	}
}

// pin keeps the current step within reach of completed work: no further than the first incomplete
// step on the resolved path, and no further than the verification step while unverified.
func pin(sess *domain.Session) bool {
	path := catalog.ResolvedPath(sess)
	limit := len(path) - 1
	for i, d := range path {
		if !sess.Completed(d.ID) {
			limit = i
			break
		}
	}
	if !sess.Verification.Verified() {
		if vi := catalog.PathIndex(path, catalog.VerificationStep); vi >= 0 && vi < limit {
			limit = vi
		}
	}
	if idx := catalog.PathIndex(path, sess.CurrentStep); idx >= 0 && idx <= limit {
		return false
	}
	sess.CurrentStep = path[limit].ID
	return true
}

// reconcileTarget maps the server step number to the furthest step of the resolved path with that
// order or lower. It reports false unless that step is behind the current one.
func reconcileTarget(sess *domain.Session, serverStep int) (domain.StepID, bool) {
	path := catalog.ResolvedPath(sess)
	target := -1
	for i, d := range path {
		if d.Order <= serverStep {
			target = i
		}
	}
	if target < 0 || target >= catalog.PathIndex(path, sess.CurrentStep) {
		return "", false
	}
	return path[target].ID, true
}
