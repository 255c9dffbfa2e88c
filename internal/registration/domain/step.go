package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SellerType selects the onboarding path. It is fixed when the session starts.
type SellerType string

const (
	SellerTypeIndividual   SellerType = "individual"
	SellerTypeProfessional SellerType = "professional"
)

// Valid reports whether t is a known seller type.
func (t SellerType) Valid() bool {
	return t == SellerTypeIndividual || t == SellerTypeProfessional
}

// ParseSellerType parses user input into a SellerType. It returns ErrInvalidSellerType for unknown values.
func ParseSellerType(s string) (SellerType, error) {
	t := SellerType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidSellerType, s)
	}
	return t, nil
}

// StepID identifies a wizard step.
type StepID string

const (
	StepCreateAccount           StepID = "create_account"
	StepSellerVerification      StepID = "seller_verification"
	StepContactDetails          StepID = "contact_details"
	StepPaymentDetails          StepID = "payment_details"
	StepTaxInformation          StepID = "tax_information"
	StepShopSetup               StepID = "shop_setup"
	StepBusinessInformation     StepID = "business_information"
	StepBillingInformation      StepID = "billing_information"
	StepIdentityVerification    StepID = "identity_verification"
	StepBankAccountVerification StepID = "bank_account_verification"
	StepBusinessDocumentation   StepID = "business_documentation"
	StepAcknowledgment          StepID = "acknowledgment"
)

// NextFunc picks the successor of a branching step from data already collected in the session.
type NextFunc func(s *Session) StepID

// StepDefinition declares one step of a seller type's sequence.
type StepDefinition struct {
	ID             StepID
	Order          int
	RequiredFields []string
	// Next is the successor. Nil means the step is terminal.
	Next NextFunc
	// Gated steps also require a verified challenge before advancing.
	Gated bool
}

// StepRecord is the data and completion state of one step within a session.
type StepRecord struct {
	StepID      StepID
	Data        StepData
	CompletedAt *time.Time
}

// Complete reports whether the record has been marked complete.
func (r *StepRecord) Complete() bool {
	return r != nil && r.CompletedAt != nil
}

type stepRecordJSON struct {
	StepID      StepID          `json:"stepId"`
	Data        json.RawMessage `json:"data"`
	CompletedAt *time.Time      `json:"completedAt"`
}

// MarshalJSON writes the record with its data variant inline.
func (r StepRecord) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(r.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(stepRecordJSON{StepID: r.StepID, Data: data, CompletedAt: r.CompletedAt})
}

// UnmarshalJSON decodes the data variant selected by stepId.
func (r *StepRecord) UnmarshalJSON(b []byte) error {
	var raw stepRecordJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	data, ok := NewStepData(raw.StepID)
	if !ok {
		return fmt.Errorf("unknown step %q in session document", raw.StepID)
	}
	if len(raw.Data) > 0 && string(raw.Data) != "null" {
		if err := json.Unmarshal(raw.Data, data); err != nil {
			return fmt.Errorf("decode %s data: %w", raw.StepID, err)
		}
	}
	r.StepID = raw.StepID
	r.Data = data
	r.CompletedAt = raw.CompletedAt
	return nil
}
