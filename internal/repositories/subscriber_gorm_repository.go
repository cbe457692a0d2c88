package repositories

import (
	"context"
	"fmt"

	"cuisine/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMSubscriberRepository is a GORM implementation of SubscriberRepository.
type GORMSubscriberRepository struct {
	db *gorm.DB
}

// NewGORMSubscriberRepository creates a new instance of GORMSubscriberRepository.
func NewGORMSubscriberRepository(db *gorm.DB) *GORMSubscriberRepository {
	return &GORMSubscriberRepository{db: db}
}

// Create stores a new subscriber.
func (r *GORMSubscriberRepository) Create(ctx context.Context, subscriber *models.Subscriber) error {
	if subscriber.ID == "" {
		subscriber.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Omit("Courses").Create(subscriber).Error; err != nil {
		return fmt.Errorf("failed to create subscriber: %w", translate(err))
	}
	return nil
}

// GetAll returns every subscriber ordered by creation time.
func (r *GORMSubscriberRepository) GetAll(ctx context.Context) ([]models.Subscriber, error) {
	var subscribers []models.Subscriber
	if err := r.db.WithContext(ctx).Order("created_at").Find(&subscribers).Error; err != nil {
		return nil, fmt.Errorf("failed to list subscribers: %w", err)
	}
	return subscribers, nil
}

// GetByID retrieves a subscriber and the courses it is enrolled in.
func (r *GORMSubscriberRepository) GetByID(ctx context.Context, id string) (*models.Subscriber, error) {
	var subscriber models.Subscriber
	if err := r.db.WithContext(ctx).Preload("Courses").First(&subscriber, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("failed to get subscriber by ID %s: %w", id, translate(err))
	}
	return &subscriber, nil
}

// GetByZipCode returns every subscriber registered under zipCode.
func (r *GORMSubscriberRepository) GetByZipCode(ctx context.Context, zipCode int) ([]models.Subscriber, error) {
	var subscribers []models.Subscriber
	if err := r.db.WithContext(ctx).Where("zip_code = ?", zipCode).Order("created_at").Find(&subscribers).Error; err != nil {
		return nil, fmt.Errorf("failed to get subscribers by zip code %d: %w", zipCode, err)
	}
	return subscribers, nil
}
