package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

const policyQuery = "data.seller_onboarding.requirements"

// DefaultRegoPolicy mirrors DefaultRequirements.
const DefaultRegoPolicy = `package seller_onboarding.requirements

default passport_required := false
default minimum_age := 18

passport_required if {
	input.contact.country_of_citizenship != ""
	input.contact.country_of_residence != ""
	upper(input.contact.country_of_citizenship) != upper(input.contact.country_of_residence)
}
`

// OPAEvaluator evaluates the requirements policy using OPA Rego. The query is prepared once.
type OPAEvaluator struct {
	query rego.PreparedEvalQuery
}

// NewOPAEvaluator compiles the given Rego module. An empty module uses DefaultRegoPolicy.
func NewOPAEvaluator(ctx context.Context, module string) (*OPAEvaluator, error) {
	if strings.TrimSpace(module) == "" {
		module = DefaultRegoPolicy
	}
	compiler, err := ast.CompileModules(map[string]string{"requirements.rego": module})
	if err != nil {
		return nil, fmt.Errorf("compile requirements policy: %w", err)
	}
	q, err := rego.New(
		rego.Query(policyQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare requirements policy: %w", err)
	}
	return &OPAEvaluator{query: q}, nil
}

// NewOPAEvaluatorFromFile loads the policy from path, or the default policy when path is empty.
func NewOPAEvaluatorFromFile(ctx context.Context, path string) (*OPAEvaluator, error) {
	if strings.TrimSpace(path) == "" {
		return NewOPAEvaluator(ctx, "")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read requirements policy: %w", err)
	}
	return NewOPAEvaluator(ctx, string(b))
}

// HealthCheck evaluates the prepared policy against a fixed input.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	_, err := e.eval(ctx, RequirementInput{
		SellerType:           "individual",
		CountryOfCitizenship: "US",
		CountryOfResidence:   "US",
	})
	return err
}

// EvaluateRequirements evaluates the policy. Evaluation failures fall back to DefaultRequirements.
func (e *OPAEvaluator) EvaluateRequirements(ctx context.Context, in RequirementInput) (Requirements, error) {
	out, err := e.eval(ctx, in)
	if err != nil {
		log.Printf("policy: requirements evaluation failed: %v, using defaults", err)
		return DefaultRequirements(in), err
	}
	return out, nil
}

func (e *OPAEvaluator) eval(ctx context.Context, in RequirementInput) (Requirements, error) {
	input := map[string]interface{}{
		"seller_type": in.SellerType,
		"contact": map[string]interface{}{
			"country_of_citizenship": in.CountryOfCitizenship,
			"country_of_residence":   in.CountryOfResidence,
		},
	}
	rs, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Requirements{}, fmt.Errorf("eval requirements policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return Requirements{}, fmt.Errorf("requirements policy returned no result")
	}
	doc, ok := rs[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return Requirements{}, fmt.Errorf("requirements policy returned %T", rs[0].Expressions[0].Value)
	}
	out := Requirements{MinimumAge: DefaultMinimumAge}
	if v, ok := doc["passport_required"].(bool); ok {
		out.PassportRequired = v
	}
	switch v := doc["minimum_age"].(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil && n > 0 {
			out.MinimumAge = int(n)
		}
	case float64:
		if v > 0 {
			out.MinimumAge = int(v)
		}
	case int64:
		if v > 0 {
			out.MinimumAge = int(v)
		}
	}
	return out, nil
}
