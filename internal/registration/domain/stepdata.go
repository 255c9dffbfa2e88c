package domain

import (
	"encoding/json"
	"errors"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// StepData is the typed payload of one step. Each step has its own variant, so a field
// written to one step can never appear in another.
type StepData interface {
	StepID() StepID
	// Validate checks the format of fields that are present. Presence is checked against the catalog.
	Validate() []FieldError
}

// NewStepData returns the empty variant for id, or false for an unknown step.
func NewStepData(id StepID) (StepData, bool) {
	switch id {
	case StepCreateAccount:
		return &AccountDetails{}, true
	case StepSellerVerification:
		return &SellerVerification{}, true
	case StepContactDetails:
		return &ContactDetails{}, true
	case StepPaymentDetails:
		return &PaymentDetails{}, true
	case StepTaxInformation:
		return &TaxInformation{}, true
	case StepShopSetup:
		return &ShopSetup{}, true
	case StepBusinessInformation:
		return &BusinessInformation{}, true
	case StepBillingInformation:
		return &BillingInformation{}, true
	case StepIdentityVerification:
		return &IdentityVerification{}, true
	case StepBankAccountVerification:
		return &BankAccountVerification{}, true
	case StepBusinessDocumentation:
		return &BusinessDocumentation{}, true
	case StepAcknowledgment:
		return &Acknowledgment{}, true
	}
	return nil, false
}

// AccountDetails is the create_account step. Password is cleared once the seller is registered.
type AccountDetails struct {
	FullName string `json:"fullName" validate:"max=200"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password,omitempty"`
}

func (*AccountDetails) StepID() StepID { return StepCreateAccount }

func (d *AccountDetails) Validate() []FieldError {
	errs := structErrors(d)
	if d.Password != "" {
		if reason := passwordProblem(d.Password); reason != "" {
			errs = append(errs, FieldError{Field: "password", Reason: reason})
		}
	}
	return errs
}

// SellerVerification is the seller_verification step. The email is copied from the account on issuance.
type SellerVerification struct {
	Email              string `json:"email" validate:"omitempty,email"`
	VerificationMethod string `json:"verificationMethod,omitempty" validate:"omitempty,oneof=email"`
}

func (*SellerVerification) StepID() StepID { return StepSellerVerification }

func (d *SellerVerification) Validate() []FieldError { return structErrors(d) }

// Date is a calendar date without time of day.
type Date struct {
	Day   int `json:"day"`
	Month int `json:"month"`
	Year  int `json:"year"`
}

// PassportInfo is only collected when citizenship and residence differ.
type PassportInfo struct {
	PassportNumber string `json:"passportNumber" validate:"required"`
	CountryOfIssue string `json:"countryOfIssue" validate:"omitempty,iso3166_1_alpha2"`
	ExpiryDate     string `json:"expiryDate" validate:"omitempty,datetime=2006-01-02"`
}

// ContactDetails is the individual contact_details step.
type ContactDetails struct {
	FirstName            string        `json:"firstName" validate:"max=100"`
	MiddleName           string        `json:"middleName,omitempty"`
	LastName             string        `json:"lastName" validate:"max=100"`
	ResidentialAddress   string        `json:"residentialAddress"`
	Building             string        `json:"building,omitempty"`
	CountryOfCitizenship string        `json:"countryOfCitizenship" validate:"omitempty,iso3166_1_alpha2"`
	CountryOfResidence   string        `json:"countryOfResidence" validate:"omitempty,iso3166_1_alpha2"`
	PostalCode           string        `json:"postalCode"`
	State                string        `json:"state"`
	DateOfBirth          *Date         `json:"dateOfBirth" validate:"-"`
	PhoneNumber          string        `json:"phoneNumber" validate:"omitempty,phone"`
	PassportInfo         *PassportInfo `json:"passportInfo"`
}

func (*ContactDetails) StepID() StepID { return StepContactDetails }

func (d *ContactDetails) Validate() []FieldError {
	errs := structErrors(d)
	if d.DateOfBirth != nil && !validDate(*d.DateOfBirth) {
		errs = append(errs, FieldError{Field: "dateOfBirth", Reason: "not a valid date"})
	}
	return errs
}

// PaymentDetails holds a tokenized card. Raw card numbers are never accepted.
type PaymentDetails struct {
	CardholderName        string `json:"cardholderName"`
	PaymentToken          string `json:"paymentToken"`
	CardLast4             string `json:"cardLast4,omitempty" validate:"omitempty,len=4,numeric"`
	ExpiryMonth           int    `json:"expiryMonth" validate:"omitempty,min=1,max=12"`
	ExpiryYear            int    `json:"expiryYear" validate:"omitempty,min=2000,max=2100"`
	Currency              string `json:"currency" validate:"omitempty,iso4217"`
	BillingSameAsBusiness bool   `json:"billingSameAsBusiness,omitempty"`
}

func (*PaymentDetails) StepID() StepID { return StepPaymentDetails }

func (d *PaymentDetails) Validate() []FieldError { return structErrors(d) }

// TaxInformation is shared by both paths.
type TaxInformation struct {
	TaxID     string `json:"taxId" validate:"max=50"`
	VATNumber string `json:"vatNumber,omitempty"`
	Country   string `json:"country" validate:"omitempty,iso3166_1_alpha2"`
}

func (*TaxInformation) StepID() StepID { return StepTaxInformation }

func (d *TaxInformation) Validate() []FieldError { return structErrors(d) }

// ShopSetup describes the storefront.
type ShopSetup struct {
	StoreName              string   `json:"storeName" validate:"max=100"`
	ProductCategories      []string `json:"productCategories"`
	BusinessAddress        string   `json:"businessAddress"`
	ShippingDetails        string   `json:"shippingDetails"`
	ReturnPolicy           string   `json:"returnPolicy"`
	UPC                    string   `json:"upc,omitempty" validate:"omitempty,len=12,numeric"`
	ManufacturerBrandOwner bool     `json:"manufacturerBrandOwner,omitempty"`
	TrademarkOwnership     string   `json:"trademarkOwnership,omitempty"`
}

func (*ShopSetup) StepID() StepID { return StepShopSetup }

func (d *ShopSetup) Validate() []FieldError {
	errs := structErrors(d)
	for _, c := range d.ProductCategories {
		if strings.TrimSpace(c) == "" {
			errs = append(errs, FieldError{Field: "productCategories", Reason: "must not contain empty categories"})
			break
		}
	}
	return errs
}

// BusinessInformation is the professional business, company and contact person step.
type BusinessInformation struct {
	BusinessLocation          string `json:"businessLocation" validate:"omitempty,iso3166_1_alpha2"`
	BusinessType              string `json:"businessType" validate:"omitempty,oneof=state-owned publicly-listed privately-owned charity"`
	BusinessName              string `json:"businessName" validate:"max=200"`
	CompanyRegistrationNumber string `json:"companyRegistrationNumber"`
	CountryOfIncorporation    string `json:"countryOfIncorporation" validate:"omitempty,iso3166_1_alpha2"`
	BusinessAddress           string `json:"businessAddress"`
	PhoneNumber               string `json:"phoneNumber" validate:"omitempty,phone"`
	ContactPersonFirstName    string `json:"contactPersonFirstName"`
	ContactPersonMiddleName   string `json:"contactPersonMiddleName,omitempty"`
	ContactPersonLastName     string `json:"contactPersonLastName"`
	SMSVerificationLanguage   string `json:"smsVerificationLanguage,omitempty"`
}

func (*BusinessInformation) StepID() StepID { return StepBusinessInformation }

func (d *BusinessInformation) Validate() []FieldError { return structErrors(d) }

// BillingInformation is skipped when payment uses the business address for billing.
type BillingInformation struct {
	FullName     string `json:"fullName"`
	Email        string `json:"email,omitempty" validate:"omitempty,email"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postalCode"`
	Country      string `json:"country" validate:"omitempty,iso3166_1_alpha2"`
	PhoneNumber  string `json:"phoneNumber" validate:"omitempty,phone"`
}

func (*BillingInformation) StepID() StepID { return StepBillingInformation }

func (d *BillingInformation) Validate() []FieldError { return structErrors(d) }

// FileMetadata describes an uploaded document of at most 10 MiB. The file itself lives in the
// upload service.
type FileMetadata struct {
	Name        string `json:"name" validate:"required"`
	Size        int64  `json:"size" validate:"min=1,max=10485760"`
	ContentType string `json:"type" validate:"oneof=application/pdf image/jpeg image/png"`
}

// IdentityVerification is the professional identity document step.
type IdentityVerification struct {
	IDType         string        `json:"idType" validate:"omitempty,oneof=passport drivers_license national_id"`
	IDNumber       string        `json:"idNumber"`
	ExpiryDate     string        `json:"expiryDate" validate:"omitempty,datetime=2006-01-02"`
	IssuingCountry string        `json:"issuingCountry" validate:"omitempty,iso3166_1_alpha2"`
	IDDocument     *FileMetadata `json:"idDocument"`
	SelfieDocument *FileMetadata `json:"selfieDocument"`
}

func (*IdentityVerification) StepID() StepID { return StepIdentityVerification }

func (d *IdentityVerification) Validate() []FieldError { return structErrors(d) }

// BankAccountVerification is the professional payout account step.
type BankAccountVerification struct {
	AccountHolderName    string        `json:"accountHolderName"`
	AccountNumber        string        `json:"accountNumber" validate:"omitempty,alphanum,min=6,max=34"`
	BankName             string        `json:"bankName"`
	RoutingCode          string        `json:"routingCode"`
	ProofOfBankOwnership *FileMetadata `json:"proofOfBankOwnership"`
}

func (*BankAccountVerification) StepID() StepID { return StepBankAccountVerification }

func (d *BankAccountVerification) Validate() []FieldError { return structErrors(d) }

// BusinessDocumentation is the professional registration and tax document step.
type BusinessDocumentation struct {
	BusinessRegistrationDocument *FileMetadata `json:"businessRegistrationDocument"`
	DocumentNumber               string        `json:"documentNumber"`
	IssuingAuthority             string        `json:"issuingAuthority"`
	TaxIDNumber                  string        `json:"taxIdNumber"`
	TaxDocument                  *FileMetadata `json:"taxDocument,omitempty"`
	TaxCountryOfResidence        string        `json:"taxCountryOfResidence" validate:"omitempty,iso3166_1_alpha2"`
}

func (*BusinessDocumentation) StepID() StepID { return StepBusinessDocumentation }

func (d *BusinessDocumentation) Validate() []FieldError { return structErrors(d) }

// Acknowledgment is the terminal step; both flags must be true.
type Acknowledgment struct {
	AcceptedTerms bool `json:"acceptedTerms"`
	ConsentGiven  bool `json:"consentGiven"`
}

func (*Acknowledgment) StepID() StepID { return StepAcknowledgment }

func (*Acknowledgment) Validate() []FieldError { return nil }

var fieldNameCache sync.Map // reflect.Type -> []string

// FieldNames returns the JSON field names of a step variant.
func FieldNames(d StepData) []string {
	t := reflect.TypeOf(d)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if cached, ok := fieldNameCache.Load(t); ok {
		return cached.([]string)
	}
	names := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name != "" && name != "-" {
			names = append(names, name)
		}
	}
	fieldNameCache.Store(t, names)
	return names
}

// MissingFields returns the required fields that are absent or empty in d.
func MissingFields(d StepData, required []string) []string {
	doc, err := toDocument(d)
	if err != nil {
		return append([]string(nil), required...)
	}
	var missing []string
	for _, f := range required {
		if !present(doc[f]) {
			missing = append(missing, f)
		}
	}
	return missing
}

// MergeStepData applies partial to current as a shallow, last-write-wins merge of top-level keys.
// A nil value removes the key. Unknown keys, wrong types and malformed values are rejected
// and current is left untouched.
func MergeStepData(current StepData, partial map[string]any) (StepData, error) {
	id := current.StepID()
	known := make(map[string]bool)
	for _, f := range FieldNames(current) {
		known[f] = true
	}
	var unknown []FieldError
	for k := range partial {
		if !known[k] {
			unknown = append(unknown, FieldError{Field: k, Reason: "unknown field"})
		}
	}
	if len(unknown) > 0 {
		sort.Slice(unknown, func(i, j int) bool { return unknown[i].Field < unknown[j].Field })
		return nil, &ValidationError{Step: id, Fields: unknown}
	}

	doc, err := toDocument(current)
	if err != nil {
		return nil, err
	}
	for k, v := range partial {
		if v == nil {
			delete(doc, k)
			continue
		}
		doc[k] = v
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, &ValidationError{Step: id, Fields: []FieldError{{Field: "data", Reason: "not serializable"}}}
	}
	next, _ := NewStepData(id)
	if err := json.Unmarshal(raw, next); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, &ValidationError{Step: id, Fields: []FieldError{{Field: typeErr.Field, Reason: "expected " + typeErr.Type.String()}}}
		}
		return nil, &ValidationError{Step: id, Fields: []FieldError{{Field: "data", Reason: err.Error()}}}
	}
	if errs := next.Validate(); len(errs) > 0 {
		return nil, &ValidationError{Step: id, Fields: errs}
	}
	return next, nil
}

// CloneStepData returns a deep copy of d.
func CloneStepData(d StepData) StepData {
	if d == nil {
		return nil
	}
	out, _ := NewStepData(d.StepID())
	raw, err := json.Marshal(d)
	if err != nil {
		return out
	}
	_ = json.Unmarshal(raw, out)
	return out
}

func toDocument(d StepData) (map[string]any, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	doc := map[string]any{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func present(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(x) != ""
	case bool:
		return x
	case float64:
		return x != 0
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	}
	return true
}
