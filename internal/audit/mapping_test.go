package audit

import "testing"

func TestParseFullMethod(t *testing.T) {
	tests := []struct {
		fullMethod   string
		wantAction   string
		wantResource string
	}{
		{"/seller.onboarding.v1.OnboardingService/GetSession", "get", "registration"},
		{"/seller.onboarding.v1.OnboardingService/UpdateStepData", "update", "registration"},
		{"/seller.onboarding.v1.OnboardingService/ListActivity", "list", "registration"},
		{"/seller.onboarding.v1.OnboardingService/Advance", "advance", "registration"},
		{"/seller.onboarding.v1.OnboardingService/SendResumeLink", "send_resume_link", "registration"},
		{"/seller.onboarding.v1.OnboardingService/StartRegistration", "start", "registration"},
		{"/seller.onboarding.v1.OnboardingService/JumpTo", "jump", "registration"},
		{"/seller.onboarding.v1.OnboardingService/ResumeWithPassword", "resume", "registration"},
		{"/seller.onboarding.v1.OnboardingService/VerifyCode", "verify", "verification"},
		{"/seller.onboarding.v1.OnboardingService/ResendCode", "resend", "verification"},
		{"/seller.onboarding.v1.DevService/GetDevCode", "get", "dev"},
		{"/grpc.health.v1.Health/Check", "check", "health"},
		{"NoSlash", "unknown", "unknown"},
		{"/Bare/Method", "method", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.fullMethod, func(t *testing.T) {
			ar := ParseFullMethod(tt.fullMethod)
			if ar.Action != tt.wantAction {
				t.Errorf("action = %q, want %q", ar.Action, tt.wantAction)
			}
			if ar.Resource != tt.wantResource {
				t.Errorf("resource = %q, want %q", ar.Resource, tt.wantResource)
			}
		})
	}
}

func TestSnakeCase(t *testing.T) {
	if got := snakeCase("SendResumeLink"); got != "send_resume_link" {
		t.Errorf("snakeCase = %q, want %q", got, "send_resume_link")
	}
}
