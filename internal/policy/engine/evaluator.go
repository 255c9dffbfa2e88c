package engine

import (
	"context"
	"strings"
)

// DefaultMinimumAge is used when the policy does not set minimum_age.
const DefaultMinimumAge = 18

// RequirementInput holds the facts the requirements policy can read.
type RequirementInput struct {
	SellerType           string
	CountryOfCitizenship string
	CountryOfResidence   string
}

// Requirements holds the conditional rules for a step, decided once when the step completes.
type Requirements struct {
	PassportRequired bool
	MinimumAge       int
}

// Evaluator decides conditional onboarding requirements using OPA or other engines.
type Evaluator interface {
	// EvaluateRequirements returns the requirements for the given facts. Callers fall back to
	// DefaultRequirements on error.
	EvaluateRequirements(ctx context.Context, in RequirementInput) (Requirements, error)
}

// DefaultRequirements computes the built-in rules without a policy engine: a passport is
// required when citizenship and residence differ.
func DefaultRequirements(in RequirementInput) Requirements {
	citizenship := strings.TrimSpace(in.CountryOfCitizenship)
	residence := strings.TrimSpace(in.CountryOfResidence)
	return Requirements{
		PassportRequired: citizenship != "" && residence != "" && !strings.EqualFold(citizenship, residence),
		MinimumAge:       DefaultMinimumAge,
	}
}
