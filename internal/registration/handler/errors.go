package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/protoadapt"

	"seller-onboarding/internal/gateway"
	"seller-onboarding/internal/registration/domain"
)

// ErrorDomain is the ErrorInfo domain attached to every mapped status.
const ErrorDomain = "onboarding.seller"

type mapping struct {
	err    error
	code   codes.Code
	reason string
}

// errorMappings is checked in order; the first match wins.
var errorMappings = []mapping{
	{domain.ErrValidation, codes.InvalidArgument, "VALIDATION_FAILED"},
	{domain.ErrCodeMismatch, codes.InvalidArgument, "CODE_MISMATCH"},
	{domain.ErrInvalidVerifyInput, codes.InvalidArgument, "INVALID_VERIFY_INPUT"},
	{domain.ErrInvalidSellerType, codes.InvalidArgument, "INVALID_SELLER_TYPE"},
	{domain.ErrStepIncomplete, codes.FailedPrecondition, "STEP_INCOMPLETE"},
	{domain.ErrVerificationRequired, codes.FailedPrecondition, "VERIFICATION_REQUIRED"},
	{domain.ErrIllegalJump, codes.FailedPrecondition, "ILLEGAL_JUMP"},
	{domain.ErrCodeExpired, codes.FailedPrecondition, "CODE_EXPIRED"},
	{domain.ErrAttemptsExceeded, codes.FailedPrecondition, "ATTEMPTS_EXCEEDED"},
	{domain.ErrCodeNotIssued, codes.FailedPrecondition, "CODE_NOT_ISSUED"},
	{domain.ErrAlreadyVerified, codes.FailedPrecondition, "ALREADY_VERIFIED"},
	{domain.ErrIncomplete, codes.FailedPrecondition, "REGISTRATION_INCOMPLETE"},
	{domain.ErrResendTooSoon, codes.ResourceExhausted, "RESEND_TOO_SOON"},
	{domain.ErrDeliveryFailed, codes.Unavailable, "DELIVERY_FAILED"},
	{domain.ErrSessionNotFound, codes.NotFound, "SESSION_NOT_FOUND"},
	{domain.ErrSessionExpired, codes.NotFound, "SESSION_EXPIRED"},
	{domain.ErrSessionConflict, codes.Aborted, "SESSION_CONFLICT"},
	{domain.ErrAlreadyInProgress, codes.Aborted, "ALREADY_IN_PROGRESS"},
	{domain.ErrStaleResponse, codes.Aborted, "STALE_RESPONSE"},
	{domain.ErrInvalidCredentials, codes.Unauthenticated, "INVALID_CREDENTIALS"},
}

// gatewayMappings cover failures of the backend calls made on the seller's behalf.
var gatewayMappings = []mapping{
	{domain.ErrRegistrationFailed, codes.Unavailable, "REGISTRATION_FAILED"},
	{domain.ErrSubmissionFailed, codes.Unavailable, "SUBMISSION_FAILED"},
}

// toStatus converts a service error into a gRPC status error with an ErrorInfo reason.
// Unknown errors are logged and returned as Internal without their message.
func toStatus(err error, snap *domain.Snapshot) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return withDetails(m.code, m.reason, err, snap)
		}
	}
	for _, m := range gatewayMappings {
		if errors.Is(err, m.err) {
			return withDetails(gatewayCode(err), m.reason, err, snap)
		}
	}
	log.Printf("onboarding: internal error: %v", err)
	return status.Error(codes.Internal, "internal error")
}

// gatewayCode distinguishes backend rejections from outages.
func gatewayCode(err error) codes.Code {
	var se *gateway.StatusError
	if !errors.As(err, &se) || se.Temporary() {
		return codes.Unavailable
	}
	switch se.StatusCode {
	case http.StatusConflict:
		return codes.AlreadyExists
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return codes.InvalidArgument
	}
	return codes.FailedPrecondition
}

func withDetails(code codes.Code, reason string, err error, snap *domain.Snapshot) error {
	info := &errdetails.ErrorInfo{Reason: reason, Domain: ErrorDomain}
	if snap != nil {
		info.Metadata = map[string]string{
			"currentStepId":     string(snap.CurrentStep),
			"attemptsRemaining": strconv.Itoa(snap.Verification.AttemptsRemaining),
		}
	}
	st := status.New(code, err.Error())
	details := []protoadapt.MessageV1{info}
	if br := badRequest(err); br != nil {
		details = append(details, br)
	}
	withD, derr := st.WithDetails(details...)
	if derr != nil {
		return st.Err()
	}
	return withD.Err()
}

func badRequest(err error) *errdetails.BadRequest {
	var fields []domain.FieldError
	var step domain.StepID
	var ve *domain.ValidationError
	var ie *domain.StepIncompleteError
	switch {
	case errors.As(err, &ve):
		step, fields = ve.Step, ve.Fields
	case errors.As(err, &ie):
		step, fields = ie.Step, ie.Invalid
		for _, m := range ie.Missing {
			fields = append(fields, domain.FieldError{Field: m, Reason: "required"})
		}
	default:
		return nil
	}
	if len(fields) == 0 {
		return nil
	}
	br := &errdetails.BadRequest{}
	for _, f := range fields {
		br.FieldViolations = append(br.FieldViolations, &errdetails.BadRequest_FieldViolation{
			Field:       string(step) + "." + f.Field,
			Description: f.Reason,
		})
	}
	return br
}
