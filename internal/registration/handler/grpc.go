// Package handler exposes the registration workflow as the gRPC OnboardingService.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"seller-onboarding/internal/registration/domain"
	"seller-onboarding/internal/registration/service"
	"seller-onboarding/internal/server/interceptors"
)

// Server implements OnboardingServer on top of the registration service.
type Server struct {
	svc *service.Service
}

var _ OnboardingServer = (*Server)(nil)

// NewServer returns an OnboardingService server backed by svc.
func NewServer(svc *service.Service) *Server {
	return &Server{svc: svc}
}

// StartRegistration creates a session for the requested seller type and returns its token.
func (s *Server) StartRegistration(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	res, err := s.svc.Start(ctx, stringField(req, "sellerType"))
	if err != nil {
		return nil, toStatus(err, nil)
	}
	return resultResponse(res)
}

// GetSession returns the caller's session snapshot.
func (s *Server) GetSession(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	id, err := sessionID(ctx)
	if err != nil {
		return nil, err
	}
	return snapshotResponse(s.svc.Get(ctx, id))
}

// UpdateStepData merges the data object into the given step. A null value clears a field.
func (s *Server) UpdateStepData(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := sessionID(ctx)
	if err != nil {
		return nil, err
	}
	step := stringField(req, "stepId")
	if step == "" {
		return nil, status.Error(codes.InvalidArgument, "stepId is required")
	}
	data := req.GetFields()["data"].GetStructValue()
	if data == nil {
		return nil, status.Error(codes.InvalidArgument, "data must be an object")
	}
	return snapshotResponse(s.svc.UpdateStepData(ctx, id, domain.StepID(step), data.AsMap()))
}

// Advance completes the current step and moves forward.
func (s *Server) Advance(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	id, err := sessionID(ctx)
	if err != nil {
		return nil, err
	}
	return snapshotResponse(s.svc.Advance(ctx, id))
}

// Retreat moves to the previous step.
func (s *Server) Retreat(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	id, err := sessionID(ctx)
	if err != nil {
		return nil, err
	}
	return snapshotResponse(s.svc.Retreat(ctx, id))
}

// JumpTo moves to stepId when every earlier step is complete.
func (s *Server) JumpTo(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := sessionID(ctx)
	if err != nil {
		return nil, err
	}
	step := stringField(req, "stepId")
	if step == "" {
		return nil, status.Error(codes.InvalidArgument, "stepId is required")
	}
	return snapshotResponse(s.svc.JumpTo(ctx, id, domain.StepID(step)))
}

// VerifyCode checks the emailed code.
func (s *Server) VerifyCode(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := sessionID(ctx)
	if err != nil {
		return nil, err
	}
	return snapshotResponse(s.svc.VerifyCode(ctx, id, stringField(req, "code")))
}

// ResendCode sends a new verification code.
func (s *Server) ResendCode(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	id, err := sessionID(ctx)
	if err != nil {
		return nil, err
	}
	return snapshotResponse(s.svc.ResendCode(ctx, id))
}

// ResumeFromLink resumes a session from an emailed code. A token for the session is optional.
func (s *Server) ResumeFromLink(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, _ := interceptors.GetSessionID(ctx)
	res, err := s.svc.ResumeFromLink(ctx, id, stringField(req, "email"), stringField(req, "code"))
	if err != nil {
		return nil, toStatus(err, nil)
	}
	return resultResponse(res)
}

// ResumeWithPassword resumes the newest session of a registered account.
func (s *Server) ResumeWithPassword(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	res, err := s.svc.ResumeWithPassword(ctx, stringField(req, "email"), stringField(req, "password"))
	if err != nil {
		return nil, toStatus(err, nil)
	}
	return resultResponse(res)
}

// SendResumeLink emails a link back to the current step if the session has been idle.
func (s *Server) SendResumeLink(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	id, err := sessionID(ctx)
	if err != nil {
		return nil, err
	}
	sent, err := s.svc.SendResumeLink(ctx, id)
	if err != nil && !sent {
		return nil, toStatus(err, nil)
	}
	return structpb.NewStruct(map[string]any{"sent": sent})
}

// Submit sends the assembled registration and ends the session.
func (s *Server) Submit(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	id, err := sessionID(ctx)
	if err != nil {
		return nil, err
	}
	conf, err := s.svc.Submit(ctx, id)
	if err != nil {
		return nil, toStatus(err, nil)
	}
	return structpb.NewStruct(map[string]any{
		"confirmationId": conf.ConfirmationID,
		"sellerId":       conf.SellerID,
		"sessionId":      conf.SessionID,
	})
}

// Restart discards the session. The caller starts a new one.
func (s *Server) Restart(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	id, err := sessionID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.svc.Restart(ctx, id); err != nil {
		return nil, toStatus(err, nil)
	}
	return &structpb.Struct{}, nil
}

// ListActivity returns the session's audit trail, newest first.
func (s *Server) ListActivity(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := sessionID(ctx)
	if err != nil {
		return nil, err
	}
	limit := int(req.GetFields()["limit"].GetNumberValue())
	logs, err := s.svc.Activity(ctx, id, limit)
	if err != nil {
		return nil, toStatus(err, nil)
	}
	entries := make([]any, 0, len(logs))
	for _, l := range logs {
		entries = append(entries, map[string]any{
			"id":        l.ID,
			"action":    l.Action,
			"resource":  l.Resource,
			"ip":        l.IP,
			"metadata":  l.Metadata,
			"createdAt": l.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	return structpb.NewStruct(map[string]any{"entries": entries})
}

func sessionID(ctx context.Context) (string, error) {
	id, ok := interceptors.GetSessionID(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "session token required")
	}
	return id, nil
}

func stringField(req *structpb.Struct, key string) string {
	return req.GetFields()[key].GetStringValue()
}

// snapshotResponse wraps a snapshot; errors keep the snapshot as ErrorInfo metadata.
func snapshotResponse(snap *domain.Snapshot, err error) (*structpb.Struct, error) {
	if err != nil {
		return nil, toStatus(err, snap)
	}
	v, err := toValue(snap)
	if err != nil {
		return nil, err
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{"session": v}}, nil
}

func resultResponse(res *service.Result) (*structpb.Struct, error) {
	v, err := toValue(res.Snapshot)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{Fields: map[string]*structpb.Value{
		"session": v,
		"token":   structpb.NewStringValue(res.Token),
	}}
	if !res.TokenExpiresAt.IsZero() {
		out.Fields["tokenExpiresAt"] = structpb.NewStringValue(res.TokenExpiresAt.UTC().Format(time.RFC3339))
	}
	return out, nil
}

// toValue converts v through its JSON form so field names match the REST-style payloads.
func toValue(v any) (*structpb.Value, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	out, err := structpb.NewValue(m)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	return out, nil
}
