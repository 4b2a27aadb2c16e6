package repository

import (
	"context"
	"errors"

	"checkout-service/models"
)

// ErrNotFound is returned when no order has the requested id.
var ErrNotFound = errors.New("order not found")

// ErrStatusConflict is returned by UpdateByIDIfStatus when the order exists
// but no longer has the expected status.
var ErrStatusConflict = errors.New("order status changed")

type serverTimestamp struct{}

// ServerTimestamp may be used as a value in UpdateByID fields. The adapter
// replaces it with the store-assigned write time.
var ServerTimestamp = serverTimestamp{}

// OrderRepository is the order store used by the order service. It uses plain
// Go types so adapters can be swapped without touching callers.
type OrderRepository interface {
	// Create stores a new order and assigns its id, createdAt and updatedAt.
	// Any id or timestamps already on order are ignored.
	Create(ctx context.Context, order *models.Order) (string, error)
	FindByID(ctx context.Context, id string) (*models.Order, error)
	// UpdateByID merges fields into the stored order and refreshes updatedAt.
	UpdateByID(ctx context.Context, id string, fields map[string]interface{}) error
	// UpdateByIDIfStatus is UpdateByID guarded by the current status. The
	// check and the write are a single store operation.
	UpdateByIDIfStatus(ctx context.Context, id string, expected models.OrderStatus, fields map[string]interface{}) error
	// FindByUserID returns the user's orders, newest createdAt first.
	FindByUserID(ctx context.Context, userID string) ([]models.Order, error)
	EnsureIndexes(ctx context.Context) error
}

// IdempotencyStore caches create-order progress per user and key.
type IdempotencyStore interface {
	Get(ctx context.Context, userID, key string) (*models.IdempotencyRecord, error)
	Save(ctx context.Context, userID, key string, rec *models.IdempotencyRecord) error
}
