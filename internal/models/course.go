package models

import "time"

// Course is a cooking class that subscribers can enroll in.
type Course struct {
	ID          string       `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Title       string       `json:"title" gorm:"uniqueIndex;type:varchar(200);not null" validate:"required,max=200"`
	Description string       `json:"description" validate:"max=2000"`
	MaxStudents int          `json:"maxStudents" validate:"gte=0"`
	Cost        float64      `json:"cost" validate:"finite,gte=0"`
	Subscribers []Subscriber `json:"subscribers,omitempty" gorm:"many2many:course_subscribers"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Validate checks the record against its field rules.
func (c *Course) Validate() error {
	return check(c)
}

// CourseDetails is the set of fields a course update may change.
type CourseDetails struct {
	Title       string  `validate:"required,max=200"`
	Description string  `validate:"max=2000"`
	MaxStudents int     `validate:"gte=0"`
	Cost        float64 `validate:"finite,gte=0"`
}

// Validate checks the details against the same rules as Course.
func (d CourseDetails) Validate() error {
	return check(d)
}

// Apply copies the details onto c.
func (d CourseDetails) Apply(c *Course) {
	c.Title = d.Title
	c.Description = d.Description
	c.MaxStudents = d.MaxStudents
	c.Cost = d.Cost
}

// Enrolled reports whether the subscriber is already on the course roster.
func (c *Course) Enrolled(subscriberID string) bool {
	for _, s := range c.Subscribers {
		if s.ID == subscriberID {
			return true
		}
	}
	return false
}

// Full reports whether the roster has reached MaxStudents. Zero means unlimited.
func (c *Course) Full() bool {
	return c.MaxStudents > 0 && len(c.Subscribers) >= c.MaxStudents
}
