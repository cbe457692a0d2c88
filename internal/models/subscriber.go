package models

import (
	"fmt"
	"time"
)

// Subscriber is a newsletter signup. Subscribers are never updated once created.
type Subscriber struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name      string    `json:"name" gorm:"type:varchar(100);not null" validate:"required"`
	Email     string    `json:"email" gorm:"uniqueIndex;type:varchar(255);not null" validate:"required,email"`
	ZipCode   int       `json:"zipCode" validate:"omitempty,min=10000,max=99999"`
	Courses   []Course  `json:"courses,omitempty" gorm:"many2many:course_subscribers"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Info renders a one-line summary of the subscriber.
func (s *Subscriber) Info() string {
	return fmt.Sprintf("Name: %s Email: %s Zip Code: %d", s.Name, s.Email, s.ZipCode)
}

// Validate checks the record against its field rules.
func (s *Subscriber) Validate() error {
	return check(s)
}
