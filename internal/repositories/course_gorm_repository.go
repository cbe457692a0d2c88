package repositories

import (
	"context"
	"fmt"

	"cuisine/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GORMCourseRepository is a GORM implementation of CourseRepository.
type GORMCourseRepository struct {
	db *gorm.DB
}

// NewGORMCourseRepository creates a new instance of GORMCourseRepository.
func NewGORMCourseRepository(db *gorm.DB) *GORMCourseRepository {
	return &GORMCourseRepository{db: db}
}

// GetAll retrieves all courses without their rosters.
func (r *GORMCourseRepository) GetAll(ctx context.Context) ([]models.Course, error) {
	var courses []models.Course
	if err := r.db.WithContext(ctx).Order("title").Find(&courses).Error; err != nil {
		return nil, fmt.Errorf("failed to get all courses: %w", err)
	}
	return courses, nil
}

// GetByID retrieves a course together with its enrolled subscribers.
func (r *GORMCourseRepository) GetByID(ctx context.Context, id string) (*models.Course, error) {
	var course models.Course
	if err := r.db.WithContext(ctx).Preload("Subscribers").First(&course, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("failed to get course by ID %s: %w", id, translate(err))
	}
	return &course, nil
}

// Create creates a new course in the database.
func (r *GORMCourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Omit("Subscribers").Create(course).Error; err != nil {
		return fmt.Errorf("failed to create course: %w", translate(err))
	}
	return nil
}

// UpdateDetails writes the editable columns of a course.
func (r *GORMCourseRepository) UpdateDetails(ctx context.Context, id string, details models.CourseDetails) (*models.Course, error) {
	var course models.Course
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&course, "id = ?", id).Error; err != nil {
			return err
		}
		details.Apply(&course)
		return tx.Model(&course).Updates(map[string]any{
			"title":        details.Title,
			"description":  details.Description,
			"max_students": details.MaxStudents,
			"cost":         details.Cost,
		}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update course %s: %w", id, translate(err))
	}
	return &course, nil
}

// Delete removes a course and its roster entries.
func (r *GORMCourseRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM course_subscribers WHERE course_id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to clear roster of course %s: %w", id, err)
		}
		res := tx.Delete(&models.Course{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete course %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("course with ID %s not found for deletion: %w", id, ErrNotFound)
		}
		return nil
	})
}

// AddSubscriber links a subscriber to a course. Linking twice is a no-op.
// The course row is locked while the roster is counted, so capacity holds under concurrent writes.
func (r *GORMCourseRepository) AddSubscriber(ctx context.Context, courseID, subscriberID string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var course models.Course
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&course, "id = ?", courseID).Error; err != nil {
			return err
		}

		var enrolled int64
		if err := tx.Table("course_subscribers").
			Where("course_id = ? AND subscriber_id = ?", courseID, subscriberID).
			Count(&enrolled).Error; err != nil {
			return err
		}
		if enrolled > 0 {
			return nil
		}

		if course.MaxStudents > 0 {
			var taken int64
			if err := tx.Table("course_subscribers").Where("course_id = ?", courseID).Count(&taken).Error; err != nil {
				return err
			}
			if taken >= int64(course.MaxStudents) {
				return ErrCourseFull
			}
		}

		row := map[string]any{"course_id": courseID, "subscriber_id": subscriberID}
		return tx.Table("course_subscribers").Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error
	})
	if err != nil {
		return fmt.Errorf("failed to enroll subscriber %s in course %s: %w", subscriberID, courseID, translate(err))
	}
	return nil
}
