package services

import (
	"context"
	"fmt"

	"cuisine/internal/models"
	"cuisine/internal/repositories"
	"cuisine/pkg/rabbitmq"

	"go.uber.org/zap"
)

// EventPublisher delivers domain events to the message broker.
type EventPublisher interface {
	PublishSubscriberCreated(ctx context.Context, event rabbitmq.SubscriberEvent) error
}

// SubscriberService handles business logic related to subscribers.
type SubscriberService struct {
	repo      repositories.SubscriberRepository
	publisher EventPublisher
	log       *zap.Logger
}

// NewSubscriberService creates a new SubscriberService. publisher may be nil.
func NewSubscriberService(repo repositories.SubscriberRepository, publisher EventPublisher, log *zap.Logger) *SubscriberService {
	return &SubscriberService{
		repo:      repo,
		publisher: publisher,
		log:       log,
	}
}

// List retrieves all subscribers.
func (s *SubscriberService) List(ctx context.Context) ([]models.Subscriber, error) {
	return s.repo.GetAll(ctx)
}

// FindByID retrieves a single subscriber by its ID.
func (s *SubscriberService) FindByID(ctx context.Context, id string) (*models.Subscriber, error) {
	return s.repo.GetByID(ctx, id)
}

// Create stores a new subscriber and announces it on the broker.
// A failed publish is logged; the signup itself still succeeds.
func (s *SubscriberService) Create(ctx context.Context, subscriber *models.Subscriber) error {
	subscriber.Email = NormalizeEmail(subscriber.Email)
	if err := subscriber.Validate(); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, subscriber); err != nil {
		return fmt.Errorf("failed to create subscriber: %w", err)
	}

	if s.publisher == nil {
		s.log.Debug("message broker disabled, skipping subscriber event", zap.String("subscriber_id", subscriber.ID))
		return nil
	}
	event := rabbitmq.SubscriberEvent{
		SubscriberID: subscriber.ID,
		Name:         subscriber.Name,
		Email:        subscriber.Email,
		ZipCode:      subscriber.ZipCode,
	}
	if err := s.publisher.PublishSubscriberCreated(ctx, event); err != nil {
		s.log.Warn("failed to publish subscriber created event",
			zap.String("subscriber_id", subscriber.ID), zap.Error(err))
	}
	return nil
}

// FindLocal returns the other subscribers sharing the zip code of subscriber.
func (s *SubscriberService) FindLocal(ctx context.Context, subscriber *models.Subscriber) ([]models.Subscriber, error) {
	if subscriber.ZipCode == 0 {
		return nil, nil
	}
	all, err := s.repo.GetByZipCode(ctx, subscriber.ZipCode)
	if err != nil {
		return nil, err
	}
	neighbors := make([]models.Subscriber, 0, len(all))
	for _, other := range all {
		if other.ID != subscriber.ID {
			neighbors = append(neighbors, other)
		}
	}
	return neighbors, nil
}
