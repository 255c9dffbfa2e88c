package handler

import (
	"context"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"seller-onboarding/internal/devotp"
)

func request(t *testing.T, email string) *structpb.Struct {
	t.Helper()
	req, err := structpb.NewStruct(map[string]any{"email": email})
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	return req
}

func TestGetDevCode_Success(t *testing.T) {
	store := devotp.NewMemoryStore()
	store.Put(context.Background(), "ada@example.com", "123456", time.Now().Add(time.Minute))
	srv := NewServer(store)

	resp, err := srv.GetDevCode(context.Background(), request(t, " Ada@Example.com "))
	if err != nil {
		t.Fatalf("GetDevCode: %v", err)
	}
	if got := resp.GetFields()["code"].GetStringValue(); got != "123456" {
		t.Errorf("code = %q, want %q", got, "123456")
	}
	if got := resp.GetFields()["note"].GetStringValue(); got != devCodeNote {
		t.Errorf("note = %q, want %q", got, devCodeNote)
	}
}

func TestGetDevCode_Errors(t *testing.T) {
	store := devotp.NewMemoryStore()
	store.Put(context.Background(), "old@example.com", "654321", time.Now().Add(-time.Minute))
	srv := NewServer(store)

	tests := []struct {
		name  string
		email string
		want  codes.Code
	}{
		{"empty email", "", codes.InvalidArgument},
		{"unknown email", "nobody@example.com", codes.NotFound},
		{"expired code", "old@example.com", codes.NotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := srv.GetDevCode(context.Background(), request(t, tt.email))
			if status.Code(err) != tt.want {
				t.Errorf("code = %v, want %v", status.Code(err), tt.want)
			}
		})
	}
}

func TestServiceDesc(t *testing.T) {
	if ServiceDesc.ServiceName != ServiceName || len(ServiceDesc.Methods) != 1 {
		t.Fatalf("ServiceDesc = %+v", ServiceDesc)
	}
	if FullMethodGetDevCode != "/seller.dev.v1.DevService/GetDevCode" {
		t.Errorf("FullMethodGetDevCode = %q", FullMethodGetDevCode)
	}
}
