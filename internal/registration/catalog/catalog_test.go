package catalog

import (
	"testing"
	"time"

	"seller-onboarding/internal/registration/domain"
)

var sellerTypes = []domain.SellerType{domain.SellerTypeIndividual, domain.SellerTypeProfessional}

func TestStepsFor_Shape(t *testing.T) {
	for _, st := range sellerTypes {
		t.Run(string(st), func(t *testing.T) {
			defs := StepsFor(st)
			entries, terminals := 0, 0
			seen := map[int]bool{}
			for i, d := range defs {
				if d.Order == 0 {
					entries++
				}
				if d.Next == nil {
					terminals++
					if !IsTerminal(d.ID) {
						t.Errorf("%s has no successor but is not terminal", d.ID)
					}
				}
				if seen[d.Order] {
					t.Errorf("duplicate order %d", d.Order)
				}
				seen[d.Order] = true
				if i > 0 && d.Order <= defs[i-1].Order {
					t.Errorf("order not increasing at %s", d.ID)
				}
				data, ok := domain.NewStepData(d.ID)
				if !ok {
					t.Fatalf("no data variant for %s", d.ID)
				}
				fields := map[string]bool{}
				for _, f := range domain.FieldNames(data) {
					fields[f] = true
				}
				for _, f := range d.RequiredFields {
					if !fields[f] {
						t.Errorf("%s requires %q which its data variant lacks", d.ID, f)
					}
				}
			}
			if entries != 1 || terminals != 1 {
				t.Errorf("entries = %d, terminals = %d, want 1 and 1", entries, terminals)
			}
			if Entry(st).ID != domain.StepCreateAccount {
				t.Errorf("Entry = %s", Entry(st).ID)
			}
		})
	}
}

func TestStepsFor_Lengths(t *testing.T) {
	if got := len(StepsFor(domain.SellerTypeIndividual)); got != 7 {
		t.Errorf("individual steps = %d, want 7", got)
	}
	if got := len(StepsFor(domain.SellerTypeProfessional)); got != 11 {
		t.Errorf("professional steps = %d, want 11", got)
	}
}

func TestResolvedPath_Branch(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := domain.NewSession("s", domain.SellerTypeProfessional, domain.StepCreateAccount, 5, now, time.Hour)
	if got := len(ResolvedPath(s)); got != 11 {
		t.Errorf("default path length = %d, want 11", got)
	}
	if err := s.UpdateStepData(domain.StepPaymentDetails, map[string]any{"billingSameAsBusiness": true}, now); err != nil {
		t.Fatal(err)
	}
	path := ResolvedPath(s)
	if len(path) != 10 || PathIndex(path, domain.StepBillingInformation) != -1 {
		t.Errorf("branch path length = %d, billing index = %d", len(path), PathIndex(path, domain.StepBillingInformation))
	}
	for i := 1; i < len(path); i++ {
		if path[i].Order <= path[i-1].Order {
			t.Errorf("order not increasing at %s", path[i].ID)
		}
	}
}

func TestStepsFor_ReturnsCopy(t *testing.T) {
	defs := StepsFor(domain.SellerTypeIndividual)
	defs[0].ID = "mutated"
	if StepsFor(domain.SellerTypeIndividual)[0].ID != domain.StepCreateAccount {
		t.Error("StepsFor exposes internal state")
	}
}

func TestUnknownInputsPanic(t *testing.T) {
	tests := []struct {
		name string
		fn   func()
	}{
		{"StepsFor", func() { StepsFor("company") }},
		{"RequiredFields", func() { RequiredFields("nope") }},
		{"IsTerminal", func() { IsTerminal("nope") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Errorf("%s did not panic", tt.name)
				}
			}()
			tt.fn()
		})
	}
}

func TestKnown(t *testing.T) {
	if !Known(domain.StepAcknowledgment) || Known("nope") {
		t.Error("Known returned wrong result")
	}
}
