package interceptors

import (
	"context"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"seller-onboarding/internal/security"
)

func withAuthorization(value string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.New(map[string]string{
		"authorization": value,
	}))
}

func TestAuthUnary(t *testing.T) {
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	token, _, err := tokens.IssueSession("session-1", "individual")
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	publicMethods := map[string]bool{"/test.Service/Public": true}
	interceptor := AuthUnary(tokens, publicMethods)

	tests := []struct {
		name        string
		ctx         context.Context
		method      string
		wantCode    codes.Code
		wantSession string
	}{
		{"public without token", context.Background(), "/test.Service/Public", codes.OK, ""},
		{"public with invalid token", withAuthorization("Bearer nope"), "/test.Service/Public", codes.OK, ""},
		{"public with valid token", withAuthorization("Bearer " + token), "/test.Service/Public", codes.OK, "session-1"},
		{"protected without token", context.Background(), "/test.Service/Protected", codes.Unauthenticated, ""},
		{"protected with invalid token", withAuthorization("Bearer nope"), "/test.Service/Protected", codes.Unauthenticated, ""},
		{"protected with wrong scheme", withAuthorization("Basic " + token), "/test.Service/Protected", codes.Unauthenticated, ""},
		{"protected with valid token", withAuthorization("Bearer " + token), "/test.Service/Protected", codes.OK, "session-1"},
		{"lowercase scheme", withAuthorization("bearer " + token), "/test.Service/Protected", codes.OK, "session-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotSession string
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				gotSession, _ = GetSessionID(ctx)
				if gotSession != "" {
					if st, _ := GetSellerType(ctx); st != "individual" {
						t.Errorf("seller_type = %q, want individual", st)
					}
				}
				return "ok", nil
			}
			_, err := interceptor(tt.ctx, "req", &grpc.UnaryServerInfo{FullMethod: tt.method}, handler)
			if code := status.Code(err); code != tt.wantCode {
				t.Fatalf("code = %v, want %v", code, tt.wantCode)
			}
			if gotSession != tt.wantSession {
				t.Errorf("session_id = %q, want %q", gotSession, tt.wantSession)
			}
		})
	}
}

func TestExtractBearer(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		want string
	}{
		{"no metadata", context.Background(), ""},
		{"no header", metadata.NewIncomingContext(context.Background(), metadata.MD{}), ""},
		{"too short", withAuthorization("Bear"), ""},
		{"padded", withAuthorization("  Bearer   abc  "), "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractBearer(tt.ctx); got != tt.want {
				t.Errorf("extractBearer = %q, want %q", got, tt.want)
			}
		})
	}
}
