package models

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrInvalid is returned when a record violates a model invariant.
var ErrInvalid = errors.New("invalid record")

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New()
	// finite rejects NaN and the infinities; JSON cannot encode them.
	_ = v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		f := fl.Field()
		if f.Kind() != reflect.Float32 && f.Kind() != reflect.Float64 {
			return true
		}
		return !math.IsInf(f.Float(), 0) && !math.IsNaN(f.Float())
	})
	return v
}

// ValidationError lists the field rules a record failed. It matches ErrInvalid.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalid, strings.Join(e.Problems, ", "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalid
}

// User represents a registered account.
type User struct {
	ID           string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	FirstName    string    `json:"first" gorm:"type:varchar(100);not null" validate:"required"`
	LastName     string    `json:"last" gorm:"type:varchar(100);not null" validate:"required"`
	Email        string    `json:"email" gorm:"uniqueIndex;type:varchar(255);not null" validate:"required,email"`
	PasswordHash string    `json:"-" gorm:"type:varchar(255);not null"` // never serialized
	ZipCode      int       `json:"zipCode" validate:"omitempty,min=10000,max=99999"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// FullName joins the first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Validate checks the record against its field rules.
func (u *User) Validate() error {
	return check(u)
}

// UserProfile is the set of fields a profile update may change.
// Email and credentials are deliberately absent.
type UserProfile struct {
	FirstName string `validate:"required"`
	LastName  string `validate:"required"`
	ZipCode   int    `validate:"omitempty,min=10000,max=99999"`
}

// Validate checks the profile against the same rules as User.
func (p UserProfile) Validate() error {
	return check(p)
}

// Apply copies the profile fields onto u.
func (p UserProfile) Apply(u *User) {
	u.FirstName = p.FirstName
	u.LastName = p.LastName
	u.ZipCode = p.ZipCode
}

func check(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, e := range fieldErrs {
		rule := e.Tag()
		if e.Param() != "" {
			rule += "=" + e.Param()
		}
		msgs = append(msgs, fmt.Sprintf("%s failed on the '%s' rule", e.Field(), rule))
	}
	return &ValidationError{Problems: msgs}
}
