package otel

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestMetrics_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(provider)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	ctx := context.Background()
	m.Transition(ctx, "individual", "advance", "contact_details")
	m.Transition(ctx, "individual", "advance", "payment_details")
	m.Verification(ctx, "verified")
	m.Submission(ctx, "individual", true)
	m.Stale(ctx, "verify")
	m.GatewayCall(ctx, "submit", 20*time.Millisecond, errors.New("boom"))

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	got := map[string]bool{}
	var transitions int64
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			got[md.Name] = true
			if md.Name == "onboarding.step.transitions" {
				sum, ok := md.Data.(metricdata.Sum[int64])
				if !ok {
					t.Fatalf("transitions data = %T", md.Data)
				}
				for _, dp := range sum.DataPoints {
					transitions += dp.Value
				}
			}
		}
	}
	for _, name := range []string{
		"onboarding.step.transitions", "onboarding.verification.results", "onboarding.submissions",
		"onboarding.stale_results", "onboarding.gateway.duration",
	} {
		if !got[name] {
			t.Errorf("metric %s not recorded", name)
		}
	}
	if transitions != 2 {
		t.Errorf("transitions = %d, want 2", transitions)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.Transition(ctx, "individual", "advance", "x")
	m.Verification(ctx, "verified")
	m.Submission(ctx, "individual", false)
	m.Stale(ctx, "submit")
	m.GatewayCall(ctx, "submit", time.Millisecond, nil)

	if _, err := NewMetrics(nil); err != nil {
		t.Errorf("NewMetrics(nil): %v", err)
	}
}
