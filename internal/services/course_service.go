package services

import (
	"context"
	"errors"
	"fmt"

	"cuisine/internal/models"
	"cuisine/internal/repositories"
)

// ErrCourseFull is returned when enrolling into a course at capacity.
var ErrCourseFull = repositories.ErrCourseFull

// CourseService handles business logic related to courses.
type CourseService struct {
	repo        repositories.CourseRepository
	subscribers repositories.SubscriberRepository
}

// NewCourseService creates a new CourseService.
func NewCourseService(repo repositories.CourseRepository, subscribers repositories.SubscriberRepository) *CourseService {
	return &CourseService{
		repo:        repo,
		subscribers: subscribers,
	}
}

// List retrieves all courses.
func (s *CourseService) List(ctx context.Context) ([]models.Course, error) {
	return s.repo.GetAll(ctx)
}

// FindByID retrieves a course and its roster.
func (s *CourseService) FindByID(ctx context.Context, id string) (*models.Course, error) {
	return s.repo.GetByID(ctx, id)
}

// Create validates and stores a new course.
func (s *CourseService) Create(ctx context.Context, course *models.Course) error {
	if err := course.Validate(); err != nil {
		return err
	}
	return s.repo.Create(ctx, course)
}

// Update applies details to the course with the given id.
func (s *CourseService) Update(ctx context.Context, id string, details models.CourseDetails) (*models.Course, error) {
	if err := details.Validate(); err != nil {
		return nil, err
	}
	return s.repo.UpdateDetails(ctx, id, details)
}

// Delete removes a course.
func (s *CourseService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// Enroll adds a subscriber to the roster of a course. Enrolling twice is a no-op.
// Capacity is enforced by the repository write so concurrent enrollments cannot overrun it.
func (s *CourseService) Enroll(ctx context.Context, courseID, subscriberID string) (*models.Course, error) {
	course, err := s.repo.GetByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	subscriber, err := s.subscribers.GetByID(ctx, subscriberID)
	if err != nil {
		return nil, err
	}
	if course.Enrolled(subscriber.ID) {
		return course, nil
	}
	if err := s.repo.AddSubscriber(ctx, course.ID, subscriber.ID); err != nil {
		if errors.Is(err, ErrCourseFull) {
			return nil, fmt.Errorf("cannot enroll in %s: %w", course.Title, err)
		}
		return nil, err
	}
	return s.repo.GetByID(ctx, course.ID)
}
