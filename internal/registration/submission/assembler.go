// Package submission builds the final registration payload from completed step records.
package submission

import (
	"fmt"

	"seller-onboarding/internal/registration/catalog"
	"seller-onboarding/internal/registration/domain"
	"seller-onboarding/internal/registration/navigation"
)

// Payload is the body sent to the final-registration endpoint, namespaced by step id.
type Payload struct {
	SellerType domain.SellerType                 `json:"sellerType"`
	SellerID   string                            `json:"sellerId"`
	Email      string                            `json:"email"`
	Steps      map[domain.StepID]domain.StepData `json:"steps"`
}

// Confirmation is the result of a successful submission.
type Confirmation struct {
	SessionID      string `json:"sessionId"`
	SellerID       string `json:"sellerId"`
	ConfirmationID string `json:"confirmationId"`
}

// Assemble returns the payload when every step on the resolved path is complete. Steps skipped by a
// branch are omitted even if they hold data. Secrets are removed.
func Assemble(s *domain.Session) (Payload, error) {
	if missing := navigation.Incomplete(s); len(missing) > 0 {
		return Payload{}, &domain.IncompleteError{Missing: missing}
	}
	if s.SellerID == "" {
		return Payload{}, fmt.Errorf("%w: seller account is not registered", domain.ErrIncomplete)
	}
	path := catalog.ResolvedPath(s)
	steps := make(map[domain.StepID]domain.StepData, len(path))
	for _, d := range path {
		steps[d.ID] = domain.Redact(s.Steps[d.ID].Data)
	}
	return Payload{
		SellerType: s.SellerType,
		SellerID:   s.SellerID,
		Email:      s.Email(),
		Steps:      steps,
	}, nil
}
