// Package fixtures provides valid step inputs and completed sessions for tests and the seed command.
package fixtures

import (
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"seller-onboarding/internal/registration/catalog"
	"seller-onboarding/internal/registration/domain"
)

// Email is the account email used by every fixture.
const Email = "ada.seller@example.com"

// Password satisfies the account password rules.
const Password = "Str0ng!Passw0rd"

func document(name string) map[string]any {
	return map[string]any{"name": name, "size": 2048, "type": "application/pdf"}
}

// StepInput returns a valid partial update that completes id.
func StepInput(id domain.StepID) map[string]any {
	switch id {
	case domain.StepCreateAccount:
		return map[string]any{"fullName": "Ada Seller", "email": Email, "password": Password}
	case domain.StepSellerVerification:
		return map[string]any{"email": Email, "verificationMethod": "email"}
	case domain.StepContactDetails:
		return map[string]any{
			"firstName":            "Ada",
			"lastName":             "Seller",
			"residentialAddress":   "1 Market Street",
			"countryOfCitizenship": "US",
			"countryOfResidence":   "US",
			"postalCode":           "94105",
			"state":                "CA",
			"dateOfBirth":          map[string]any{"day": 10, "month": 12, "year": 1985},
			"phoneNumber":          "+1 415 555 0100",
		}
	case domain.StepPaymentDetails:
		return map[string]any{
			"cardholderName": "Ada Seller",
			"paymentToken":   "tok_visa_4242",
			"cardLast4":      "4242",
			"expiryMonth":    12,
			"expiryYear":     2030,
			"currency":       "USD",
		}
	case domain.StepTaxInformation:
		return map[string]any{"taxId": "12-3456789", "country": "US"}
	case domain.StepShopSetup:
		return map[string]any{
			"storeName":         "Ada's Goods",
			"productCategories": []any{"home", "kitchen"},
			"businessAddress":   "1 Market Street, San Francisco",
			"shippingDetails":   "Ships within 2 business days",
			"returnPolicy":      "30 day returns",
		}
	case domain.StepBusinessInformation:
		return map[string]any{
			"businessLocation":          "US",
			"businessType":              "privately-owned",
			"businessName":              "Ada Goods LLC",
			"companyRegistrationNumber": "C1234567",
			"countryOfIncorporation":    "US",
			"businessAddress":           "1 Market Street, San Francisco",
			"phoneNumber":               "+1 415 555 0199",
			"contactPersonFirstName":    "Ada",
			"contactPersonLastName":     "Seller",
		}
	case domain.StepBillingInformation:
		return map[string]any{
			"fullName":     "Ada Seller",
			"addressLine1": "2 Billing Road",
			"city":         "Oakland",
			"state":        "CA",
			"postalCode":   "94607",
			"country":      "US",
			"phoneNumber":  "+1 510 555 0100",
		}
	case domain.StepIdentityVerification:
		return map[string]any{
			"idType":         "passport",
			"idNumber":       "X1234567",
			"expiryDate":     "2031-06-30",
			"issuingCountry": "US",
			"idDocument":     document("passport.pdf"),
			"selfieDocument": map[string]any{"name": "selfie.png", "size": 4096, "type": "image/png"},
		}
	case domain.StepBankAccountVerification:
		return map[string]any{
			"accountHolderName":    "Ada Goods LLC",
			"accountNumber":        "000123456789",
			"bankName":             "First Bank",
			"routingCode":          "121000248",
			"proofOfBankOwnership": document("statement.pdf"),
		}
	case domain.StepBusinessDocumentation:
		return map[string]any{
			"businessRegistrationDocument": document("registration.pdf"),
			"documentNumber":               "REG-2020-001",
			"issuingAuthority":             "California Secretary of State",
			"taxIdNumber":                  "12-3456789",
			"taxCountryOfResidence":        "US",
		}
	case domain.StepAcknowledgment:
		return map[string]any{"acceptedTerms": true, "consentGiven": true}
	}
	panic(fmt.Sprintf("fixtures: no input for step %q", id))
}

// CompleteSession returns a verified, registered session with every step on its resolved path
// complete and the current step at the terminal step.
func CompleteSession(id string, t domain.SellerType, now time.Time) *domain.Session {
	s := domain.NewSession(id, t, catalog.Entry(t).ID, 5, now, time.Hour)
	s.Verification.MarkIssued(Email, now, 15*time.Minute)
	s.Verification.Status = domain.ChallengeVerified
	s.SellerID = "seller-" + id
	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	if err != nil {
		panic(fmt.Sprintf("fixtures: hash password: %v", err))
	}
	s.PasswordHash = string(hash)
	for _, d := range catalog.ResolvedPath(s) {
		if err := s.UpdateStepData(d.ID, StepInput(d.ID), now); err != nil {
			panic(fmt.Sprintf("fixtures: %s: %v", d.ID, err))
		}
		completed := now
		s.Record(d.ID).CompletedAt = &completed
		s.CurrentStep = d.ID
	}
	s.Account().Password = ""
	return s
}
