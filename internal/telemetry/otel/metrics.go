package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "seller-onboarding.registration"

// Metrics records registration workflow counters and gateway latency.
type Metrics struct {
	transitions   metric.Int64Counter
	verifications metric.Int64Counter
	submissions   metric.Int64Counter
	staleResults  metric.Int64Counter
	gatewayTime   metric.Float64Histogram
}

// NewMetrics registers the registration instruments on provider. A nil provider records nothing.
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	if provider == nil {
		provider = noop.NewMeterProvider()
	}
	meter := provider.Meter(meterName)
	var m Metrics
	var err error
	if m.transitions, err = meter.Int64Counter("onboarding.step.transitions",
		metric.WithDescription("Step transitions by kind and target step")); err != nil {
		return nil, err
	}
	if m.verifications, err = meter.Int64Counter("onboarding.verification.results",
		metric.WithDescription("Verification code outcomes")); err != nil {
		return nil, err
	}
	if m.submissions, err = meter.Int64Counter("onboarding.submissions",
		metric.WithDescription("Final registration submissions by outcome")); err != nil {
		return nil, err
	}
	if m.staleResults, err = meter.Int64Counter("onboarding.stale_results",
		metric.WithDescription("Gateway results discarded because the session moved on")); err != nil {
		return nil, err
	}
	if m.gatewayTime, err = meter.Float64Histogram("onboarding.gateway.duration",
		metric.WithUnit("ms"),
		metric.WithDescription("Gateway call latency")); err != nil {
		return nil, err
	}
	return &m, nil
}

// Transition counts one navigation of kind (advance, retreat, jump, reconcile) to step.
func (m *Metrics) Transition(ctx context.Context, sellerType, kind, step string) {
	if m == nil {
		return
	}
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("seller_type", sellerType),
		attribute.String("kind", kind),
		attribute.String("step", step),
	))
}

// Verification counts one validate or issue outcome (verified, mismatch, expired, ...).
func (m *Metrics) Verification(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.verifications.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// Submission counts one submit attempt.
func (m *Metrics) Submission(ctx context.Context, sellerType string, ok bool) {
	if m == nil {
		return
	}
	outcome := "failed"
	if ok {
		outcome = "submitted"
	}
	m.submissions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("seller_type", sellerType),
		attribute.String("outcome", outcome),
	))
}

// Stale counts a discarded gateway result for op.
func (m *Metrics) Stale(ctx context.Context, op string) {
	if m == nil {
		return
	}
	m.staleResults.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

// GatewayCall records the latency of one gateway call.
func (m *Metrics) GatewayCall(ctx context.Context, op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.gatewayTime.Record(ctx, float64(d)/float64(time.Millisecond), metric.WithAttributes(
		attribute.String("op", op),
		attribute.Bool("error", err != nil),
	))
}
