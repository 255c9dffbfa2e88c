// Package navigation moves a session along its resolved step path. Every operation either
// succeeds completely or returns an error with the session untouched.
package navigation

import (
	"context"
	"fmt"
	"log"
	"time"

	"seller-onboarding/internal/policy/engine"
	"seller-onboarding/internal/registration/catalog"
	"seller-onboarding/internal/registration/domain"
)

// Controller applies completion rules and transitions.
type Controller struct {
	evaluator engine.Evaluator
	nowF      func() time.Time
}

// NewController returns a controller. A nil evaluator uses engine.DefaultRequirements.
func NewController(evaluator engine.Evaluator) *Controller {
	return &Controller{evaluator: evaluator, nowF: time.Now}
}

// SetNow replaces the clock used for completion times and age checks.
func (c *Controller) SetNow(nowF func() time.Time) { c.nowF = nowF }

// Check returns the data the current step would be completed with, or the reason it cannot complete.
// The session is not modified.
func (c *Controller) Check(ctx context.Context, s *domain.Session, id domain.StepID) (domain.StepData, error) {
	def, ok := catalog.Definition(s.SellerType, id)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a %s step", domain.ErrIllegalJump, id, s.SellerType)
	}
	if def.Gated && !s.Verification.Verified() {
		return nil, domain.ErrVerificationRequired
	}
	data := currentData(s, id)
	required := def.RequiredFields
	if id == domain.StepCreateAccount && s.PasswordHash != "" {
		required = without(required, "password")
	}
	incomplete := &domain.StepIncompleteError{
		Step:    id,
		Missing: domain.MissingFields(data, required),
		Invalid: data.Validate(),
	}
	if contact, ok := data.(*domain.ContactDetails); ok {
		c.applyContactRequirements(ctx, s, contact, incomplete)
	}
	if len(incomplete.Missing) > 0 || len(incomplete.Invalid) > 0 {
		return nil, incomplete
	}
	return data, nil
}

func (c *Controller) applyContactRequirements(ctx context.Context, s *domain.Session, d *domain.ContactDetails, incomplete *domain.StepIncompleteError) {
	in := engine.RequirementInput{
		SellerType:           string(s.SellerType),
		CountryOfCitizenship: d.CountryOfCitizenship,
		CountryOfResidence:   d.CountryOfResidence,
	}
	req := engine.DefaultRequirements(in)
	if c.evaluator != nil {
		evaluated, err := c.evaluator.EvaluateRequirements(ctx, in)
		if err != nil {
			log.Printf("navigation: requirements policy failed, using defaults: %v", err)
		} else {
			req = evaluated
		}
	}
	switch {
	case req.PassportRequired && d.PassportInfo == nil:
		incomplete.Missing = append(incomplete.Missing, "passportInfo")
	case !req.PassportRequired:
		d.PassportInfo = nil
	}
	if d.DateOfBirth != nil && domain.AgeOn(*d.DateOfBirth, c.nowF()) < req.MinimumAge {
		incomplete.Invalid = append(incomplete.Invalid, domain.FieldError{
			Field:  "dateOfBirth",
			Reason: fmt.Sprintf("seller must be at least %d years old", req.MinimumAge),
		})
	}
}

// CompleteCurrent validates the current step and marks it complete without moving.
func (c *Controller) CompleteCurrent(ctx context.Context, s *domain.Session) error {
	data, err := c.Check(ctx, s, s.CurrentStep)
	if err != nil {
		return err
	}
	c.commit(s, data)
	return nil
}

func (c *Controller) commit(s *domain.Session, data domain.StepData) {
	now := c.nowF()
	r := s.Record(s.CurrentStep)
	r.Data = data
	if r.CompletedAt == nil {
		r.CompletedAt = &now
	}
	s.LastActivityAt = now
}

// Advance completes the current step and moves to its successor on the resolved path.
func (c *Controller) Advance(ctx context.Context, s *domain.Session) (domain.StepID, error) {
	if catalog.IsTerminal(s.CurrentStep) {
		return "", fmt.Errorf("%w: %s is the last step, submit instead", domain.ErrIllegalJump, s.CurrentStep)
	}
	data, err := c.Check(ctx, s, s.CurrentStep)
	if err != nil {
		return "", err
	}
	// resolve the path against the data about to be committed, so a branch decided by this step applies
	candidate := s.Clone()
	candidate.Record(s.CurrentStep).Data = data
	path := catalog.ResolvedPath(candidate)
	idx := catalog.PathIndex(path, s.CurrentStep)
	if idx < 0 || idx+1 >= len(path) {
		return "", fmt.Errorf("%w: %s has no successor", domain.ErrIllegalJump, s.CurrentStep)
	}
	c.commit(s, data)
	s.CurrentStep = path[idx+1].ID
	return s.CurrentStep, nil
}

// Retreat moves to the previous step on the resolved path. Data and completion are kept.
func (c *Controller) Retreat(s *domain.Session) (domain.StepID, error) {
	path := catalog.ResolvedPath(s)
	idx := catalog.PathIndex(path, s.CurrentStep)
	if idx <= 0 {
		return "", fmt.Errorf("%w: no step before %s", domain.ErrIllegalJump, s.CurrentStep)
	}
	s.CurrentStep = path[idx-1].ID
	s.LastActivityAt = c.nowF()
	return s.CurrentStep, nil
}

// JumpTo moves to target when it is on the resolved path, at most one past the furthest
// completed step, and every step before it is complete.
func (c *Controller) JumpTo(s *domain.Session, target domain.StepID) (domain.StepID, error) {
	if !catalog.Known(target) {
		return "", fmt.Errorf("%w: unknown step %q", domain.ErrIllegalJump, target)
	}
	path := catalog.ResolvedPath(s)
	idx := catalog.PathIndex(path, target)
	if idx < 0 {
		return "", fmt.Errorf("%w: %s is not on the %s path", domain.ErrIllegalJump, target, s.SellerType)
	}
	if idx > HighestCompleted(s, path)+1 {
		return "", fmt.Errorf("%w: %s is beyond the next open step", domain.ErrIllegalJump, target)
	}
	for _, d := range path[:idx] {
		if !s.Completed(d.ID) {
			return "", fmt.Errorf("%w: %s must be completed first", domain.ErrIllegalJump, d.ID)
		}
	}
	s.CurrentStep = target
	s.LastActivityAt = c.nowF()
	return target, nil
}

// HighestCompleted returns the position of the furthest completed step on path, or -1.
func HighestCompleted(s *domain.Session, path []domain.StepDefinition) int {
	highest := -1
	for i, d := range path {
		if s.Completed(d.ID) {
			highest = i
		}
	}
	return highest
}

// Incomplete returns the steps on the resolved path that are not complete.
func Incomplete(s *domain.Session) []domain.StepID {
	var out []domain.StepID
	for _, d := range catalog.ResolvedPath(s) {
		if !s.Completed(d.ID) {
			out = append(out, d.ID)
		}
	}
	return out
}

func currentData(s *domain.Session, id domain.StepID) domain.StepData {
	if r, ok := s.Steps[id]; ok && r.Data != nil {
		return domain.CloneStepData(r.Data)
	}
	data, _ := domain.NewStepData(id)
	return data
}

func without(fields []string, drop string) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != drop {
			out = append(out, f)
		}
	}
	return out
}
