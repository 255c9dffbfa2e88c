package interceptors

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"seller-onboarding/internal/telemetry/domain"
)

type chanEmitter struct {
	events chan *domain.Event
}

func (c *chanEmitter) Emit(ctx context.Context, e *domain.Event) error {
	c.events <- e
	return nil
}

func TestTelemetryUnary_EmitsRequestEvent(t *testing.T) {
	em := &chanEmitter{events: make(chan *domain.Event, 1)}
	interceptor := TelemetryUnary(em, nil)
	ctx := WithSession(context.Background(), "session-1", "professional")
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.NotFound, "missing")
	}

	if _, err := interceptor(ctx, "req", &grpc.UnaryServerInfo{FullMethod: advanceMethod}, handler); status.Code(err) != codes.NotFound {
		t.Fatalf("err = %v, want NotFound passed through", err)
	}
	select {
	case e := <-em.events:
		if e.EventType != domain.EventGRPCRequest || e.SessionID != "session-1" || e.SellerType != "professional" {
			t.Errorf("event = %+v", e)
		}
		var meta grpcRequestMetadata
		if err := json.Unmarshal(e.Metadata, &meta); err != nil {
			t.Fatalf("metadata: %v", err)
		}
		if meta.FullMethod != advanceMethod || meta.StatusCode != codes.NotFound.String() {
			t.Errorf("metadata = %+v", meta)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event emitted")
	}
}

func TestTelemetryUnary_SkipsAndNil(t *testing.T) {
	handler := func(ctx context.Context, req interface{}) (interface{}, error) { return "ok", nil }
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

	if resp, err := TelemetryUnary(nil, nil)(context.Background(), "req", info, handler); err != nil || resp != "ok" {
		t.Errorf("nil emitter = (%v, %v)", resp, err)
	}

	em := &chanEmitter{events: make(chan *domain.Event, 1)}
	skip := map[string]bool{info.FullMethod: true}
	if _, err := TelemetryUnary(em, skip)(context.Background(), "req", info, handler); err != nil {
		t.Fatal(err)
	}
	select {
	case e := <-em.events:
		t.Errorf("skipped method emitted %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}
