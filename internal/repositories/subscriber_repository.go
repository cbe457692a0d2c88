package repositories

import (
	"context"

	"cuisine/internal/models"
)

// SubscriberRepository defines the interface for subscriber data access.
// Subscribers are append-only from the application's point of view.
type SubscriberRepository interface {
	Create(ctx context.Context, subscriber *models.Subscriber) error
	GetAll(ctx context.Context) ([]models.Subscriber, error)
	GetByID(ctx context.Context, id string) (*models.Subscriber, error)
	GetByZipCode(ctx context.Context, zipCode int) ([]models.Subscriber, error)
}
