package audit

import (
	"strings"
	"unicode"
)

// ActionResource holds action and resource derived from a gRPC full method name.
type ActionResource struct {
	Action   string
	Resource string
}

// Onboarding methods whose audit action is not derived from the method name.
var methodOverrides = map[string]ActionResource{
	"/seller.onboarding.v1.OnboardingService/StartRegistration":  {Action: "start", Resource: "registration"},
	"/seller.onboarding.v1.OnboardingService/JumpTo":             {Action: "jump", Resource: "registration"},
	"/seller.onboarding.v1.OnboardingService/ResumeFromLink":     {Action: "resume", Resource: "registration"},
	"/seller.onboarding.v1.OnboardingService/ResumeWithPassword": {Action: "resume", Resource: "registration"},
	"/seller.onboarding.v1.OnboardingService/VerifyCode":         {Action: "verify", Resource: "verification"},
	"/seller.onboarding.v1.OnboardingService/ResendCode":         {Action: "resend", Resource: "verification"},
}

// ParseFullMethod returns action and resource for a gRPC full method
// (e.g. /seller.onboarding.v1.OnboardingService/GetSession).
// Action is a verb: get, list, update, or the snake_case method name for others.
// Resource is "registration" for the onboarding service, otherwise derived from the service name.
func ParseFullMethod(fullMethod string) ActionResource {
	if ar, ok := methodOverrides[fullMethod]; ok {
		return ar
	}
	// fullMethod format: /seller.package.v1.ServiceName/MethodName
	slash := strings.LastIndex(fullMethod, "/")
	if slash < 0 {
		return ActionResource{Action: "unknown", Resource: "unknown"}
	}
	method := fullMethod[slash+1:]
	beforeSlash := fullMethod[:slash]
	dot := strings.LastIndex(beforeSlash, ".")
	if dot < 0 {
		return ActionResource{Action: snakeCase(method), Resource: "unknown"}
	}
	return ActionResource{Action: methodToAction(method), Resource: serviceToResource(beforeSlash[dot+1:])}
}

func serviceToResource(serviceName string) string {
	// OnboardingService -> registration, DevService -> dev
	s := strings.TrimSuffix(serviceName, "Service")
	switch s {
	case "":
		return "unknown"
	case "Onboarding":
		return "registration"
	}
	return snakeCase(s)
}

func methodToAction(method string) string {
	switch {
	case strings.HasPrefix(method, "Get") && method != "Get":
		return "get"
	case strings.HasPrefix(method, "List"):
		return "list"
	case strings.HasPrefix(method, "Update"):
		return "update"
	default:
		return snakeCase(method)
	}
}

// snakeCase turns SendResumeLink into send_resume_link.
func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
