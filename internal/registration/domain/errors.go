package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Verification errors. AttemptsExceeded is terminal for the session: the seller must restart.
var (
	ErrCodeMismatch       = errors.New("verification code does not match")
	ErrCodeExpired        = errors.New("verification code expired")
	ErrAttemptsExceeded   = errors.New("verification attempts exceeded")
	ErrResendTooSoon      = errors.New("verification code requested too soon")
	ErrDeliveryFailed     = errors.New("verification delivery failed")
	ErrCodeNotIssued      = errors.New("no verification code has been issued")
	ErrAlreadyVerified    = errors.New("email already verified")
	ErrInvalidVerifyInput = errors.New("email and code are required")
)

// Navigation errors. They never leave the session modified.
var (
	ErrStepIncomplete       = errors.New("step is incomplete")
	ErrVerificationRequired = errors.New("email verification required")
	ErrIllegalJump          = errors.New("illegal step transition")
)

// Submission errors.
var (
	ErrIncomplete         = errors.New("registration is incomplete")
	ErrSubmissionFailed   = errors.New("registration submission failed")
	ErrRegistrationFailed = errors.New("seller registration failed")
)

// Session lifecycle errors.
var (
	ErrSessionNotFound    = errors.New("registration session not found")
	ErrSessionExpired     = errors.New("registration session expired")
	ErrSessionConflict    = errors.New("registration session was modified concurrently")
	ErrAlreadyInProgress  = errors.New("operation already in progress")
	ErrStaleResponse      = errors.New("result discarded after navigation")
	ErrInvalidSellerType  = errors.New("invalid seller type")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// ErrValidation is matched by every *ValidationError.
var ErrValidation = errors.New("validation failed")

// FieldError describes one invalid or missing field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError is a field-level error on a single step. It is recoverable inline.
type ValidationError struct {
	Step   StepID       `json:"step"`
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Reason)
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Step, strings.Join(parts, "; "))
}

// Is reports ErrValidation as the sentinel for this type.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// StepIncompleteError lists what keeps a step from completing.
type StepIncompleteError struct {
	Step    StepID
	Missing []string
	Invalid []FieldError
}

func (e *StepIncompleteError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "step %s is incomplete", e.Step)
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, "; missing %s", strings.Join(e.Missing, ", "))
	}
	for _, f := range e.Invalid {
		fmt.Fprintf(&b, "; %s: %s", f.Field, f.Reason)
	}
	return b.String()
}

func (e *StepIncompleteError) Is(target error) bool { return target == ErrStepIncomplete }

// IncompleteError is returned by assembly when steps on the resolved path are not complete.
type IncompleteError struct {
	Missing []StepID
}

func (e *IncompleteError) Error() string {
	ids := make([]string, len(e.Missing))
	for i, id := range e.Missing {
		ids[i] = string(id)
	}
	return "registration is incomplete: " + strings.Join(ids, ", ")
}

func (e *IncompleteError) Is(target error) bool { return target == ErrIncomplete }
