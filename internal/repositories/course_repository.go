package repositories

import (
	"context"

	"cuisine/internal/models"
)

// CourseRepository defines the interface for course data access.
type CourseRepository interface {
	GetAll(ctx context.Context) ([]models.Course, error)
	GetByID(ctx context.Context, id string) (*models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	UpdateDetails(ctx context.Context, id string, details models.CourseDetails) (*models.Course, error)
	Delete(ctx context.Context, id string) error
	AddSubscriber(ctx context.Context, courseID, subscriberID string) error
}
