package repository

import (
	"context"

	"github.com/vharuk/ticketd/internal/domain"
)

// EventCatalog is the durable home of events and their price tiers. The core
// never assumes a specific storage medium; implementations exist for JSON
// files and Postgres. Name lookups are case-insensitive exact matches.
type EventCatalog interface {
	List(ctx context.Context) ([]domain.Event, error)
	FindByID(ctx context.Context, id int64) (*domain.Event, error)
	FindByName(ctx context.Context, name string) (*domain.Event, error)
	// Save inserts the event when its ID is unknown to the store and
	// replaces it otherwise.
	Save(ctx context.Context, event *domain.Event) error
	Delete(ctx context.Context, id int64) error
}

// PurchaseStore persists the purchase ledger as a whole. The ledger service
// owns id assignment and ordering; the store only round-trips the array,
// mirroring the persisted JSON-array layout.
type PurchaseStore interface {
	LoadAll(ctx context.Context) ([]domain.Purchase, error)
	SaveAll(ctx context.Context, purchases []domain.Purchase) error
}

// UserDirectory holds registered accounts. Username and email lookups are
// case-insensitive.
type UserDirectory interface {
	List(ctx context.Context) ([]domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	Save(ctx context.Context, user *domain.User) error
	Delete(ctx context.Context, id int64) error
}
