package server

import (
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	devhandler "seller-onboarding/internal/devotp/handler"
	healthhandler "seller-onboarding/internal/health/handler"
	registrationhandler "seller-onboarding/internal/registration/handler"
)

// Deps holds the gRPC handler dependencies.
type Deps struct {
	// Onboarding serves OnboardingService. If nil, the service is not registered.
	Onboarding registrationhandler.OnboardingServer
	// HealthPinger is used by the health service for readiness (e.g. *sql.DB). If nil, Check skips the store ping.
	HealthPinger healthhandler.Pinger
	// HealthPolicyChecker is used by the health service for readiness (e.g. OPA evaluator). If nil, Check skips the policy check.
	HealthPolicyChecker healthhandler.PolicyChecker
	// DevHandler is the dev-only DevService (GetDevCode). If nil, DevService is not registered. Set only when
	// the dev gateway is enabled and not production.
	DevHandler devhandler.DevServer
}

// RegisterServices registers all gRPC services with the given server.
//
// Service → handler mapping:
//   - OnboardingService → internal/registration/handler
//   - grpc.health.v1.Health → internal/health/handler
//   - DevService        → internal/devotp/handler
func RegisterServices(s grpc.ServiceRegistrar, deps Deps) {
	var names []string
	if deps.Onboarding != nil {
		registrationhandler.RegisterOnboardingServer(s, deps.Onboarding)
		names = append(names, registrationhandler.ServiceName)
	}
	healthpb.RegisterHealthServer(s, healthhandler.NewServer(deps.HealthPinger, deps.HealthPolicyChecker, names...))
	if deps.DevHandler != nil {
		devhandler.RegisterDevServer(s, deps.DevHandler)
	}
}

// PublicMethods returns the full method names callable without a session token.
func PublicMethods(devEnabled bool) map[string]bool {
	public := map[string]bool{
		healthpb.Health_Check_FullMethodName: true,
		healthpb.Health_Watch_FullMethodName: true,
	}
	for _, m := range registrationhandler.PublicMethods() {
		public[m] = true
	}
	if devEnabled {
		public[devhandler.FullMethodGetDevCode] = true
	}
	return public
}

// UnauditedMethods are skipped by the audit and request telemetry interceptors.
func UnauditedMethods() map[string]bool {
	return map[string]bool{
		healthpb.Health_Check_FullMethodName: true,
		healthpb.Health_Watch_FullMethodName: true,
		devhandler.FullMethodGetDevCode:      true,
	}
}
