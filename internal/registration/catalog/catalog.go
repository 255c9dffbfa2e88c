// Package catalog declares the onboarding step sequences for each seller type.
// It is a pure lookup: unknown seller types or step ids are programming errors and panic.
package catalog

import (
	"fmt"

	"seller-onboarding/internal/registration/domain"
)

// VerificationStep is the step gated by the email verification challenge.
const VerificationStep = domain.StepSellerVerification

var requiredFields = map[domain.StepID][]string{
	domain.StepCreateAccount:      {"fullName", "email", "password"},
	domain.StepSellerVerification: {"email"},
	domain.StepContactDetails: {
		"firstName", "lastName", "residentialAddress", "countryOfCitizenship", "countryOfResidence",
		"postalCode", "state", "dateOfBirth", "phoneNumber",
	},
	domain.StepPaymentDetails: {"cardholderName", "paymentToken", "expiryMonth", "expiryYear", "currency"},
	domain.StepTaxInformation: {"taxId", "country"},
	domain.StepShopSetup:      {"storeName", "productCategories", "businessAddress", "shippingDetails", "returnPolicy"},
	domain.StepBusinessInformation: {
		"businessLocation", "businessType", "businessName", "companyRegistrationNumber", "countryOfIncorporation",
		"businessAddress", "phoneNumber", "contactPersonFirstName", "contactPersonLastName",
	},
	domain.StepBillingInformation: {"fullName", "addressLine1", "city", "state", "postalCode", "country", "phoneNumber"},
	domain.StepIdentityVerification: {
		"idType", "idNumber", "expiryDate", "issuingCountry", "idDocument", "selfieDocument",
	},
	domain.StepBankAccountVerification: {"accountHolderName", "accountNumber", "bankName", "routingCode", "proofOfBankOwnership"},
	domain.StepBusinessDocumentation: {
		"businessRegistrationDocument", "documentNumber", "issuingAuthority", "taxIdNumber", "taxCountryOfResidence",
	},
	domain.StepAcknowledgment: {"acceptedTerms", "consentGiven"},
}

var sequences = map[domain.SellerType][]domain.StepDefinition{
	domain.SellerTypeIndividual: linear(
		domain.StepCreateAccount,
		domain.StepSellerVerification,
		domain.StepContactDetails,
		domain.StepPaymentDetails,
		domain.StepTaxInformation,
		domain.StepShopSetup,
		domain.StepAcknowledgment,
	),
	domain.SellerTypeProfessional: withBranch(
		linear(
			domain.StepCreateAccount,
			domain.StepSellerVerification,
			domain.StepShopSetup,
			domain.StepBusinessInformation,
			domain.StepPaymentDetails,
			domain.StepTaxInformation,
			domain.StepBillingInformation,
			domain.StepIdentityVerification,
			domain.StepBankAccountVerification,
			domain.StepBusinessDocumentation,
			domain.StepAcknowledgment,
		),
		domain.StepTaxInformation,
		billingOrIdentity,
	),
}

// billingOrIdentity skips billing when payment bills to the business address.
func billingOrIdentity(s *domain.Session) domain.StepID {
	if r, ok := s.Steps[domain.StepPaymentDetails]; ok {
		if p, ok := r.Data.(*domain.PaymentDetails); ok && p.BillingSameAsBusiness {
			return domain.StepIdentityVerification
		}
	}
	return domain.StepBillingInformation
}

func linear(ids ...domain.StepID) []domain.StepDefinition {
	defs := make([]domain.StepDefinition, len(ids))
	for i, id := range ids {
		defs[i] = domain.StepDefinition{
			ID:             id,
			Order:          i,
			RequiredFields: requiredFields[id],
			Gated:          id == VerificationStep,
		}
		if i+1 < len(ids) {
			next := ids[i+1]
			defs[i].Next = func(*domain.Session) domain.StepID { return next }
		}
	}
	return defs
}

func withBranch(defs []domain.StepDefinition, at domain.StepID, next domain.NextFunc) []domain.StepDefinition {
	for i := range defs {
		if defs[i].ID == at {
			defs[i].Next = next
		}
	}
	return defs
}

// StepsFor returns the ordered step sequence for t, including branch-only steps.
func StepsFor(t domain.SellerType) []domain.StepDefinition {
	defs, ok := sequences[t]
	if !ok {
		panic(fmt.Sprintf("catalog: unknown seller type %q", t))
	}
	out := make([]domain.StepDefinition, len(defs))
	copy(out, defs)
	return out
}

// RequiredFields returns the field names that must be present for id to complete.
func RequiredFields(id domain.StepID) []string {
	fields, ok := requiredFields[id]
	if !ok {
		panic(fmt.Sprintf("catalog: unknown step id %q", id))
	}
	return append([]string(nil), fields...)
}

// IsTerminal reports whether id ends the sequence.
func IsTerminal(id domain.StepID) bool {
	if _, ok := requiredFields[id]; !ok {
		panic(fmt.Sprintf("catalog: unknown step id %q", id))
	}
	return id == domain.StepAcknowledgment
}

// Known reports whether id is a declared step. Use it to screen user input before other lookups.
func Known(id domain.StepID) bool {
	_, ok := requiredFields[id]
	return ok
}

// Entry returns the first step of t's sequence.
func Entry(t domain.SellerType) domain.StepDefinition {
	return StepsFor(t)[0]
}

// Definition returns the definition of id within t's sequence.
func Definition(t domain.SellerType, id domain.StepID) (domain.StepDefinition, bool) {
	for _, d := range StepsFor(t) {
		if d.ID == id {
			return d, true
		}
	}
	return domain.StepDefinition{}, false
}

// ResolvedPath walks the sequence from entry, following branch rules over the session's data.
// Steps skipped by a branch are not part of the result.
func ResolvedPath(s *domain.Session) []domain.StepDefinition {
	defs := StepsFor(s.SellerType)
	byID := make(map[domain.StepID]domain.StepDefinition, len(defs))
	for _, d := range defs {
		byID[d.ID] = d
	}
	path := make([]domain.StepDefinition, 0, len(defs))
	cur := defs[0]
	for {
		path = append(path, cur)
		if cur.Next == nil {
			return path
		}
		next, ok := byID[cur.Next(s)]
		if !ok || next.Order <= cur.Order {
			panic(fmt.Sprintf("catalog: step %s has invalid successor for %s", cur.ID, s.SellerType))
		}
		cur = next
	}
}

// PathIndex returns the position of id on the resolved path, or -1 when the step is skipped or unknown.
func PathIndex(path []domain.StepDefinition, id domain.StepID) int {
	for i, d := range path {
		if d.ID == id {
			return i
		}
	}
	return -1
}
