package domain

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var phoneRe = regexp.MustCompile(`^\+?[0-9][0-9 ()-]{6,19}$`)

// validate holds the format rules declared in the step structs' validate tags.
// Field errors are reported by JSON name.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phoneRe.MatchString(fl.Field().String())
	})
	return v
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether email has a plausible address format.
func ValidEmail(email string) bool {
	return validate.Var(email, "required,email") == nil
}

// structErrors runs the tag rules of d and returns one FieldError per failing field.
func structErrors(d any) []FieldError {
	err := validate.Struct(d)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return []FieldError{{Field: "data", Reason: err.Error()}}
	}
	errs := make([]FieldError, 0, len(ves))
	for _, fe := range ves {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		errs = append(errs, FieldError{Field: field, Reason: reasonFor(fe)})
	}
	return errs
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "email":
		return "invalid email format"
	case "phone":
		return "invalid phone number"
	case "iso3166_1_alpha2":
		return "must be an ISO 3166 alpha-2 code"
	case "iso4217":
		return "must be an ISO 4217 code"
	case "datetime":
		return "must be a YYYY-MM-DD date"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "numeric":
		return "must contain only digits"
	case "alphanum":
		return "must contain only letters and digits"
	case "len":
		return fmt.Sprintf("must be %s characters", fe.Param())
	case "min", "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be %s %s characters", boundWord(fe.Tag()), fe.Param())
		}
		return fmt.Sprintf("must be %s %s", boundWord(fe.Tag()), fe.Param())
	}
	return "failed " + fe.Tag()
}

func boundWord(tag string) string {
	if tag == "min" {
		return "at least"
	}
	return "at most"
}

func validDate(d Date) bool {
	if d.Year < 1900 || d.Month < 1 || d.Month > 12 || d.Day < 1 {
		return false
	}
	t := time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
	return t.Day() == d.Day && t.Month() == time.Month(d.Month)
}

// AgeOn returns the age in whole years of someone born on d, at the given time.
func AgeOn(d Date, at time.Time) int {
	age := at.Year() - d.Year
	if at.Month() < time.Month(d.Month) || (at.Month() == time.Month(d.Month) && at.Day() < d.Day) {
		age--
	}
	return age
}

func passwordProblem(password string) string {
	if len(password) < 12 {
		return "must be at least 12 characters"
	}
	var hasUpper, hasLower, hasNumber, hasSymbol bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasNumber = true
		default:
			hasSymbol = true
		}
	}
	switch {
	case !hasUpper:
		return "must contain an uppercase letter"
	case !hasLower:
		return "must contain a lowercase letter"
	case !hasNumber:
		return "must contain a number"
	case !hasSymbol:
		return "must contain a symbol"
	}
	return ""
}
