// Package gateway is the client side of the seller backend API consumed by the onboarding workflow:
// seller registration, verification codes, final submission and the server-side current step.
package gateway

import (
	"context"
	"fmt"
)

// RegisterSellerRequest is the body of POST /sellers/register.
type RegisterSellerRequest struct {
	FullName   string `json:"full_name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	SellerType string `json:"seller_type"`
}

// Gateway is the backend surface used by the registration service.
// Implementations must not log passwords or codes.
type Gateway interface {
	// RegisterSeller creates the seller account. The server does not deduplicate calls.
	RegisterSeller(ctx context.Context, req RegisterSellerRequest) (sellerID string, err error)
	// SendCode delivers a new verification code to email, replacing any earlier code.
	SendCode(ctx context.Context, email string) error
	// VerifyCode reports whether code is the active code for email.
	VerifyCode(ctx context.Context, email, code string) (bool, error)
	// SubmitRegistration sends the assembled payload and returns the confirmation id.
	SubmitRegistration(ctx context.Context, sellerID string, payload any) (confirmationID string, err error)
	// CurrentStep returns the server-authoritative step number of the seller.
	CurrentStep(ctx context.Context, sellerID string) (int, error)
	// SendRegistrationEmail emails a link that resumes registration at stepLink.
	SendRegistrationEmail(ctx context.Context, email, stepLink string) error
}

// StepRecorder is implemented by gateways that learn the seller's progress from the engine
// rather than tracking it themselves. step is the catalog order of the step reached.
type StepRecorder interface {
	RecordStep(ctx context.Context, sellerID string, step int) error
}

// StatusError is a non-2xx response from the backend.
type StatusError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gateway: %s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("gateway: %s: status %d: %s", e.Op, e.StatusCode, e.Message)
}

// Temporary reports whether the request may succeed when retried.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}
