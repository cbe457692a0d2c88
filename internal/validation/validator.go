// Package validation checks and normalizes raw form input before any store is touched.
//
// Every configured rule runs on every call so that all failures are reported together,
// in the order the fields were configured.
package validation

import (
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Form holds raw submitted values keyed by field name.
type Form map[string]string

// Field names shared between forms, validators and handlers.
const (
	FieldFirst       = "first"
	FieldLast        = "last"
	FieldName        = "name"
	FieldEmail       = "email"
	FieldZipCode     = "zipCode"
	FieldPassword    = "password"
	FieldTitle       = "title"
	FieldMaxStudents = "maxStudents"
	FieldCost        = "cost"
	FieldDescription = "description"
)

// Failure messages.
const (
	MsgEmailInvalid       = "Email is invalid"
	MsgZipCodeInvalid     = "Zip code is invalid"
	MsgPasswordEmpty      = "Password cannot be empty"
	MsgNameRequired       = "First and last name are required"
	MsgSubscriberName     = "Name cannot be empty"
	MsgTitleEmpty         = "Title cannot be empty"
	MsgMaxStudentsInvalid = "Max students is invalid"
	MsgCostInvalid        = "Cost is invalid"
)

// Rule inspects the form, may normalize it in place, and returns a failure message or "".
type Rule func(v *validator.Validate, f Form) string

// Validator runs an ordered set of rules.
type Validator struct {
	v     *validator.Validate
	rules []Rule
}

// New creates a validator applying rules in order.
func New(rules ...Rule) *Validator {
	return &Validator{
		v:     validator.New(),
		rules: rules,
	}
}

// Check runs every rule against f and returns all failures.
// f is normalized in place; an empty result means the input is valid.
func (val *Validator) Check(f Form) []string {
	var failures []string
	for _, rule := range val.rules {
		if msg := rule(val.v, f); msg != "" {
			failures = append(failures, msg)
		}
	}
	return failures
}

// Join combines failures into the single message shown to the user.
func Join(failures []string) string {
	return strings.Join(failures, " and ")
}

// Email trims and lower-cases the address, then checks its syntax.
func Email(v *validator.Validate, f Form) string {
	email := strings.ToLower(strings.TrimSpace(f[FieldEmail]))
	f[FieldEmail] = email
	if v.Var(email, "required,email") != nil {
		return MsgEmailInvalid
	}
	return ""
}

// ZipCode requires exactly five ASCII digits. The raw value is checked as submitted,
// so padded or signed input is rejected rather than coerced.
func ZipCode(v *validator.Validate, f Form) string {
	raw := f[FieldZipCode]
	if raw == "" {
		return MsgZipCodeInvalid
	}
	if _, err := strconv.Atoi(raw); err != nil {
		return MsgZipCodeInvalid
	}
	if v.Var(raw, "number,len=5") != nil {
		return MsgZipCodeInvalid
	}
	return ""
}

// Password must be non-empty.
func Password(_ *validator.Validate, f Form) string {
	if f[FieldPassword] == "" {
		return MsgPasswordEmpty
	}
	return ""
}

// FullName requires both name parts after trimming.
func FullName(_ *validator.Validate, f Form) string {
	first := strings.TrimSpace(f[FieldFirst])
	last := strings.TrimSpace(f[FieldLast])
	f[FieldFirst], f[FieldLast] = first, last
	if first == "" || last == "" {
		return MsgNameRequired
	}
	return ""
}

// SubscriberName requires a non-blank display name.
func SubscriberName(_ *validator.Validate, f Form) string {
	name := strings.TrimSpace(f[FieldName])
	f[FieldName] = name
	if name == "" {
		return MsgSubscriberName
	}
	return ""
}

// Title requires a non-blank course title of at most 200 characters.
func Title(v *validator.Validate, f Form) string {
	title := strings.TrimSpace(f[FieldTitle])
	f[FieldTitle] = title
	if v.Var(title, "required,max=200") != nil {
		return MsgTitleEmpty
	}
	return ""
}

// MaxStudents accepts an empty value or a non-negative integer.
func MaxStudents(_ *validator.Validate, f Form) string {
	raw := strings.TrimSpace(f[FieldMaxStudents])
	f[FieldMaxStudents] = raw
	if raw == "" {
		return ""
	}
	if n, err := strconv.Atoi(raw); err != nil || n < 0 {
		return MsgMaxStudentsInvalid
	}
	return ""
}

// Cost accepts an empty value or a finite non-negative decimal.
func Cost(_ *validator.Validate, f Form) string {
	raw := strings.TrimSpace(f[FieldCost])
	f[FieldCost] = raw
	if raw == "" {
		return ""
	}
	c, err := strconv.ParseFloat(raw, 64)
	if err != nil || c < 0 || math.IsInf(c, 0) || math.IsNaN(c) {
		return MsgCostInvalid
	}
	return ""
}

// Int parses an already validated integer field. Empty maps to zero.
func (f Form) Int(field string) int {
	n, _ := strconv.Atoi(f[field])
	return n
}

// Float parses an already validated decimal field. Empty maps to zero.
func (f Form) Float(field string) float64 {
	n, _ := strconv.ParseFloat(f[field], 64)
	return n
}
