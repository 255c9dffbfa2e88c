package navigation

import (
	"context"
	"errors"
	"testing"
	"time"

	"seller-onboarding/internal/policy/engine"
	"seller-onboarding/internal/registration/catalog"
	"seller-onboarding/internal/registration/domain"
)

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestController(ev engine.Evaluator) *Controller {
	c := NewController(ev)
	c.nowF = func() time.Time { return testNow }
	return c
}

func newSession(t domain.SellerType) *domain.Session {
	return domain.NewSession("s-1", t, domain.StepCreateAccount, 5, testNow, 24*time.Hour)
}

func fill(t *testing.T, s *domain.Session, id domain.StepID, partial map[string]any) {
	t.Helper()
	if err := s.UpdateStepData(id, partial, testNow); err != nil {
		t.Fatalf("UpdateStepData(%s): %v", id, err)
	}
}

func accountData() map[string]any {
	return map[string]any{"fullName": "Ada Seller", "email": "ada@example.com", "password": "Str0ng!Passw0rd"}
}

func contactData(citizenship, residence string, birthYear int) map[string]any {
	return map[string]any{
		"firstName":            "Ada",
		"lastName":             "Seller",
		"residentialAddress":   "1 Main St",
		"countryOfCitizenship": citizenship,
		"countryOfResidence":   residence,
		"postalCode":           "10001",
		"state":                "NY",
		"dateOfBirth":          map[string]any{"day": 1, "month": 2, "year": birthYear},
		"phoneNumber":          "+1 555 010 0100",
	}
}

// verifiedAt positions s on contact_details with the first two steps complete.
func verifiedAt(t *testing.T, c *Controller, s *domain.Session) {
	t.Helper()
	fill(t, s, domain.StepCreateAccount, accountData())
	if _, err := c.Advance(context.Background(), s); err != nil {
		t.Fatalf("Advance create_account: %v", err)
	}
	s.Verification.MarkIssued("ada@example.com", testNow, 15*time.Minute)
	s.Verification.Status = domain.ChallengeVerified
	fill(t, s, domain.StepSellerVerification, map[string]any{"email": "ada@example.com"})
	if _, err := c.Advance(context.Background(), s); err != nil {
		t.Fatalf("Advance seller_verification: %v", err)
	}
}

func TestAdvance_IncompleteLeavesSessionUnchanged(t *testing.T) {
	c := newTestController(nil)
	s := newSession(domain.SellerTypeIndividual)
	fill(t, s, domain.StepCreateAccount, map[string]any{"fullName": "Ada"})
	before := s.Clone()

	_, err := c.Advance(context.Background(), s)
	var inc *domain.StepIncompleteError
	if !errors.As(err, &inc) {
		t.Fatalf("err = %v, want StepIncompleteError", err)
	}
	if len(inc.Missing) != 2 || inc.Missing[0] != "email" || inc.Missing[1] != "password" {
		t.Errorf("Missing = %v, want [email password]", inc.Missing)
	}
	if s.CurrentStep != before.CurrentStep || s.Completed(domain.StepCreateAccount) {
		t.Errorf("session changed on failed advance")
	}
}

func TestAdvance_VerificationRequired(t *testing.T) {
	c := newTestController(nil)
	s := newSession(domain.SellerTypeIndividual)
	fill(t, s, domain.StepCreateAccount, accountData())
	if _, err := c.Advance(context.Background(), s); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	fill(t, s, domain.StepSellerVerification, map[string]any{"email": "ada@example.com"})

	if _, err := c.Advance(context.Background(), s); !errors.Is(err, domain.ErrVerificationRequired) {
		t.Fatalf("err = %v, want ErrVerificationRequired", err)
	}
	if s.CurrentStep != domain.StepSellerVerification {
		t.Errorf("CurrentStep = %s", s.CurrentStep)
	}
}

func TestAdvance_PassportPredicate(t *testing.T) {
	ctx := context.Background()
	opa, err := engine.NewOPAEvaluator(ctx, "")
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	tests := []struct {
		name        string
		citizenship string
		residence   string
		passport    map[string]any
		wantMissing bool
	}{
		{"same country without passport", "US", "US", nil, false},
		{"different countries without passport", "IN", "US", nil, true},
		{"different countries with passport", "IN", "US", map[string]any{
			"passportNumber": "P1234567", "countryOfIssue": "IN", "expiryDate": "2030-01-01",
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestController(opa)
			s := newSession(domain.SellerTypeIndividual)
			verifiedAt(t, c, s)
			data := contactData(tt.citizenship, tt.residence, 1990)
			if tt.passport != nil {
				data["passportInfo"] = tt.passport
			}
			fill(t, s, domain.StepContactDetails, data)

			next, err := c.Advance(ctx, s)
			if tt.wantMissing {
				var inc *domain.StepIncompleteError
				if !errors.As(err, &inc) || len(inc.Missing) != 1 || inc.Missing[0] != "passportInfo" {
					t.Fatalf("err = %v, want missing passportInfo", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Advance: %v", err)
			}
			if next != domain.StepPaymentDetails {
				t.Errorf("next = %s, want payment_details", next)
			}
		})
	}
}

func TestAdvance_DropsPassportWhenNotRequired(t *testing.T) {
	c := newTestController(nil)
	s := newSession(domain.SellerTypeIndividual)
	verifiedAt(t, c, s)
	data := contactData("US", "US", 1990)
	data["passportInfo"] = map[string]any{"passportNumber": "P1", "countryOfIssue": "US", "expiryDate": "2030-01-01"}
	fill(t, s, domain.StepContactDetails, data)

	if _, err := c.Advance(context.Background(), s); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if got := s.Steps[domain.StepContactDetails].Data.(*domain.ContactDetails).PassportInfo; got != nil {
		t.Errorf("PassportInfo = %+v, want nil", got)
	}
}

func TestAdvance_MinimumAge(t *testing.T) {
	c := newTestController(nil)
	s := newSession(domain.SellerTypeIndividual)
	verifiedAt(t, c, s)
	fill(t, s, domain.StepContactDetails, contactData("US", "US", 2010))

	_, err := c.Advance(context.Background(), s)
	var inc *domain.StepIncompleteError
	if !errors.As(err, &inc) || len(inc.Invalid) != 1 || inc.Invalid[0].Field != "dateOfBirth" {
		t.Fatalf("err = %v, want invalid dateOfBirth", err)
	}
}

func TestRetreat(t *testing.T) {
	c := newTestController(nil)
	s := newSession(domain.SellerTypeIndividual)
	if _, err := c.Retreat(s); !errors.Is(err, domain.ErrIllegalJump) {
		t.Fatalf("Retreat at entry err = %v, want ErrIllegalJump", err)
	}
	verifiedAt(t, c, s)
	prev, err := c.Retreat(s)
	if err != nil {
		t.Fatalf("Retreat: %v", err)
	}
	if prev != domain.StepSellerVerification || !s.Completed(domain.StepSellerVerification) {
		t.Errorf("prev = %s, completion lost = %v", prev, !s.Completed(domain.StepSellerVerification))
	}
}

func TestJumpTo(t *testing.T) {
	c := newTestController(nil)
	s := newSession(domain.SellerTypeIndividual)
	verifiedAt(t, c, s)

	tests := []struct {
		name    string
		target  domain.StepID
		wantErr bool
	}{
		{"back to entry", domain.StepCreateAccount, false},
		{"one past highest completed", domain.StepContactDetails, false},
		{"two past highest completed", domain.StepPaymentDetails, true},
		{"terminal", domain.StepAcknowledgment, true},
		{"professional-only step", domain.StepBusinessInformation, true},
		{"unknown step", domain.StepID("nope"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.JumpTo(s, tt.target)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrIllegalJump) {
					t.Fatalf("err = %v, want ErrIllegalJump", err)
				}
				return
			}
			if err != nil || got != tt.target {
				t.Fatalf("JumpTo = %s, %v", got, err)
			}
		})
	}
}

func TestJumpTo_RequiresCompletedPredecessors(t *testing.T) {
	c := newTestController(nil)
	s := newSession(domain.SellerTypeIndividual)
	verifiedAt(t, c, s)
	// reopening an earlier step blocks jumping past it
	fill(t, s, domain.StepCreateAccount, map[string]any{"fullName": "Ada Q. Seller"})
	if _, err := c.JumpTo(s, domain.StepContactDetails); !errors.Is(err, domain.ErrIllegalJump) {
		t.Fatalf("err = %v, want ErrIllegalJump", err)
	}
}

func TestAdvance_ProfessionalBillingBranch(t *testing.T) {
	tests := []struct {
		name       string
		sameAsBiz  bool
		wantNext   domain.StepID
		wantOnPath bool
	}{
		{"separate billing", false, domain.StepBillingInformation, true},
		{"billing same as business", true, domain.StepIdentityVerification, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestController(nil)
			s := newSession(domain.SellerTypeProfessional)
			for _, id := range []domain.StepID{
				domain.StepCreateAccount, domain.StepSellerVerification, domain.StepShopSetup,
				domain.StepBusinessInformation, domain.StepPaymentDetails,
			} {
				s.Record(id).CompletedAt = &testNow
			}
			s.Verification.Status = domain.ChallengeVerified
			fill(t, s, domain.StepPaymentDetails, map[string]any{"billingSameAsBusiness": tt.sameAsBiz})
			s.Record(domain.StepPaymentDetails).CompletedAt = &testNow
			s.CurrentStep = domain.StepTaxInformation
			fill(t, s, domain.StepTaxInformation, map[string]any{"taxId": "12-3456789", "country": "US"})

			next, err := c.Advance(context.Background(), s)
			if err != nil {
				t.Fatalf("Advance: %v", err)
			}
			if next != tt.wantNext {
				t.Errorf("next = %s, want %s", next, tt.wantNext)
			}
			missing := Incomplete(s)
			onPath := false
			for _, id := range missing {
				if id == domain.StepBillingInformation {
					onPath = true
				}
			}
			if onPath != tt.wantOnPath {
				t.Errorf("billing_information incomplete on path = %v, want %v", onPath, tt.wantOnPath)
			}
		})
	}
}

// brokenEvaluator fails without returning usable requirements.
type brokenEvaluator struct{}

func (brokenEvaluator) EvaluateRequirements(context.Context, engine.RequirementInput) (engine.Requirements, error) {
	return engine.Requirements{}, errors.New("policy unavailable")
}

func TestAdvance_EvaluatorErrorUsesDefaults(t *testing.T) {
	tests := []struct {
		name        string
		data        map[string]any
		wantMissing string
		wantInvalid string
	}{
		{"passport still required", contactData("IN", "US", 1990), "passportInfo", ""},
		{"minimum age still applied", contactData("US", "US", 2010), "", "dateOfBirth"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestController(brokenEvaluator{})
			s := newSession(domain.SellerTypeIndividual)
			verifiedAt(t, c, s)
			fill(t, s, domain.StepContactDetails, tt.data)

			_, err := c.Advance(context.Background(), s)
			var inc *domain.StepIncompleteError
			if !errors.As(err, &inc) {
				t.Fatalf("err = %v, want StepIncompleteError", err)
			}
			if tt.wantMissing != "" && (len(inc.Missing) != 1 || inc.Missing[0] != tt.wantMissing) {
				t.Errorf("Missing = %v, want [%s]", inc.Missing, tt.wantMissing)
			}
			if tt.wantInvalid != "" && (len(inc.Invalid) != 1 || inc.Invalid[0].Field != tt.wantInvalid) {
				t.Errorf("Invalid = %+v, want %s", inc.Invalid, tt.wantInvalid)
			}
		})
	}
}

// With billing skipped, the step after tax_information on the resolved path is
// identity_verification even though its catalog order is two above tax_information.
func TestJumpTo_SkippedBillingBranch(t *testing.T) {
	c := newTestController(nil)
	s := newSession(domain.SellerTypeProfessional)
	s.Verification.Status = domain.ChallengeVerified
	fill(t, s, domain.StepPaymentDetails, map[string]any{"billingSameAsBusiness": true})
	for _, id := range []domain.StepID{
		domain.StepCreateAccount, domain.StepSellerVerification, domain.StepShopSetup,
		domain.StepBusinessInformation, domain.StepPaymentDetails, domain.StepTaxInformation,
	} {
		s.Record(id).CompletedAt = &testNow
	}
	s.CurrentStep = domain.StepShopSetup

	tax, _ := catalog.Definition(domain.SellerTypeProfessional, domain.StepTaxInformation)
	identity, _ := catalog.Definition(domain.SellerTypeProfessional, domain.StepIdentityVerification)
	if identity.Order <= tax.Order+1 {
		t.Fatalf("orders tax=%d identity=%d, want a gap for the skipped billing step", tax.Order, identity.Order)
	}

	got, err := c.JumpTo(s, domain.StepIdentityVerification)
	if err != nil || got != domain.StepIdentityVerification {
		t.Fatalf("JumpTo(identity_verification) = %s, %v", got, err)
	}
	if _, err := c.JumpTo(s, domain.StepBillingInformation); !errors.Is(err, domain.ErrIllegalJump) {
		t.Errorf("JumpTo(billing_information) err = %v, want ErrIllegalJump", err)
	}

	fill(t, s, domain.StepPaymentDetails, map[string]any{"billingSameAsBusiness": false})
	s.Record(domain.StepPaymentDetails).CompletedAt = &testNow
	if _, err := c.JumpTo(s, domain.StepIdentityVerification); !errors.Is(err, domain.ErrIllegalJump) {
		t.Errorf("JumpTo past open billing err = %v, want ErrIllegalJump", err)
	}
}
