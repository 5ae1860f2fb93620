package store

import (
	"context"

	"example.com/retailpos/terminal/internal/models"

	"github.com/pkg/errors"
)

// ErrNotFound is returned when a requested record does not exist in the store.
var ErrNotFound = errors.New("record not found")

// Store is the durable local persistence layer of the terminal. It exposes
// named collections (product and client reference caches, pending sales and
// the sync queue) that survive process restarts.
//
// Queue entries are assigned monotonically increasing ids at enqueue time
// and ListActions returns them in that order, so the queue is FIFO.
type Store interface {
	// Product cache
	PutProducts(ctx context.Context, products []models.Product) error
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	ListProducts(ctx context.Context) ([]models.Product, error)

	// Client cache
	PutClients(ctx context.Context, clients []models.Client) error
	ListClients(ctx context.Context) ([]models.Client, error)

	// Pending sales, keyed by tempId
	PutPendingSale(ctx context.Context, sale *models.OfflineSale) error
	GetPendingSale(ctx context.Context, tempID string) (*models.OfflineSale, error)
	ListPendingSales(ctx context.Context) ([]models.OfflineSale, error)
	DeletePendingSale(ctx context.Context, tempID string) error

	// Sync queue
	EnqueueAction(ctx context.Context, action *models.SyncAction) (uint64, error)
	ListActions(ctx context.Context) ([]models.SyncAction, error)
	DeleteAction(ctx context.Context, id uint64) error

	// CompleteSync persists the merged sale and removes its queue entry in
	// one transaction, so a crash cannot leave a synced sale with a stale
	// action that would be resubmitted on the next pass.
	CompleteSync(ctx context.Context, sale *models.OfflineSale, actionID uint64) error

	Close() error
}
