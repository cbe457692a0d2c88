package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"cuisine/internal/models"

	"github.com/google/uuid"
)

// MockCourseRepository is an in-memory implementation of CourseRepository.
// Rosters are resolved against the subscriber repository on read.
type MockCourseRepository struct {
	courses     map[string]models.Course
	rosters     map[string][]string
	subscribers SubscriberRepository
	mu          sync.RWMutex
}

// NewMockCourseRepository creates a new instance of MockCourseRepository.
func NewMockCourseRepository(subscribers SubscriberRepository) *MockCourseRepository {
	return &MockCourseRepository{
		courses:     make(map[string]models.Course),
		rosters:     make(map[string][]string),
		subscribers: subscribers,
	}
}

// GetAll returns all courses ordered by title.
func (r *MockCourseRepository) GetAll(_ context.Context) ([]models.Course, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	courseList := make([]models.Course, 0, len(r.courses))
	for _, c := range r.courses {
		courseList = append(courseList, c)
	}
	sort.Slice(courseList, func(i, j int) bool { return courseList[i].Title < courseList[j].Title })
	return courseList, nil
}

// GetByID returns a course by its ID with its roster populated.
func (r *MockCourseRepository) GetByID(ctx context.Context, id string) (*models.Course, error) {
	r.mu.RLock()
	course, ok := r.courses[id]
	roster := append([]string(nil), r.rosters[id]...)
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("course with ID %s not found: %w", id, ErrNotFound)
	}
	for _, sid := range roster {
		s, err := r.subscribers.GetByID(ctx, sid)
		if err != nil {
			continue
		}
		course.Subscribers = append(course.Subscribers, *s)
	}
	return &course, nil
}

// Create adds a new course. Titles are unique.
func (r *MockCourseRepository) Create(_ context.Context, course *models.Course) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.titleTaken(course.Title, "") {
		return fmt.Errorf("failed to create course: %w", ErrDuplicateKey)
	}
	if course.ID == "" {
		course.ID = uuid.New().String()
	}
	now := time.Now()
	course.CreatedAt, course.UpdatedAt = now, now
	stored := *course
	stored.Subscribers = nil
	r.courses[course.ID] = stored
	return nil
}

// UpdateDetails modifies the editable fields of an existing course.
func (r *MockCourseRepository) UpdateDetails(_ context.Context, id string, details models.CourseDetails) (*models.Course, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	course, ok := r.courses[id]
	if !ok {
		return nil, fmt.Errorf("course with ID %s not found for update: %w", id, ErrNotFound)
	}
	if r.titleTaken(details.Title, id) {
		return nil, fmt.Errorf("failed to update course %s: %w", id, ErrDuplicateKey)
	}
	details.Apply(&course)
	course.UpdatedAt = time.Now()
	r.courses[id] = course
	return &course, nil
}

// Delete removes a course by its ID.
func (r *MockCourseRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.courses[id]; !ok {
		return fmt.Errorf("course with ID %s not found for deletion: %w", id, ErrNotFound)
	}
	delete(r.courses, id)
	delete(r.rosters, id)
	return nil
}

// AddSubscriber links a subscriber to a course, refusing once MaxStudents is reached.
func (r *MockCourseRepository) AddSubscriber(_ context.Context, courseID, subscriberID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	course, ok := r.courses[courseID]
	if !ok {
		return fmt.Errorf("course with ID %s not found: %w", courseID, ErrNotFound)
	}
	for _, sid := range r.rosters[courseID] {
		if sid == subscriberID {
			return nil
		}
	}
	if course.MaxStudents > 0 && len(r.rosters[courseID]) >= course.MaxStudents {
		return fmt.Errorf("course with ID %s is at capacity: %w", courseID, ErrCourseFull)
	}
	r.rosters[courseID] = append(r.rosters[courseID], subscriberID)
	return nil
}

// titleTaken must be called with the lock held.
func (r *MockCourseRepository) titleTaken(title, exceptID string) bool {
	for id, c := range r.courses {
		if id != exceptID && c.Title == title {
			return true
		}
	}
	return false
}
