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

// MockSubscriberRepository is an in-memory implementation of SubscriberRepository.
type MockSubscriberRepository struct {
	subscribers map[string]models.Subscriber
	emails      map[string]string
	mu          sync.RWMutex
}

// NewMockSubscriberRepository creates a new instance of MockSubscriberRepository.
func NewMockSubscriberRepository() *MockSubscriberRepository {
	return &MockSubscriberRepository{
		subscribers: make(map[string]models.Subscriber),
		emails:      make(map[string]string),
	}
}

// Create adds a new subscriber.
func (r *MockSubscriberRepository) Create(_ context.Context, subscriber *models.Subscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.emails[subscriber.Email]; taken {
		return fmt.Errorf("failed to create subscriber: %w", ErrDuplicateKey)
	}
	if subscriber.ID == "" {
		subscriber.ID = uuid.New().String()
	}
	now := time.Now()
	subscriber.CreatedAt, subscriber.UpdatedAt = now, now
	stored := *subscriber
	stored.Courses = nil
	r.subscribers[subscriber.ID] = stored
	r.emails[subscriber.Email] = subscriber.ID
	return nil
}

// GetAll returns all subscribers ordered by creation time.
func (r *MockSubscriberRepository) GetAll(_ context.Context) ([]models.Subscriber, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(func(models.Subscriber) bool { return true }), nil
}

// GetByID returns a subscriber by ID. Courses are not populated.
func (r *MockSubscriberRepository) GetByID(_ context.Context, id string) (*models.Subscriber, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subscriber, ok := r.subscribers[id]
	if !ok {
		return nil, fmt.Errorf("subscriber with ID %s not found: %w", id, ErrNotFound)
	}
	return &subscriber, nil
}

// GetByZipCode returns all subscribers with the given zip code.
func (r *MockSubscriberRepository) GetByZipCode(_ context.Context, zipCode int) ([]models.Subscriber, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(func(s models.Subscriber) bool { return s.ZipCode == zipCode }), nil
}

// collect must be called with the read lock held.
func (r *MockSubscriberRepository) collect(keep func(models.Subscriber) bool) []models.Subscriber {
	out := make([]models.Subscriber, 0, len(r.subscribers))
	for _, s := range r.subscribers {
		if keep(s) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
