package services

import (
	"context"

	"example.com/retailpos/terminal/internal/models"
	"example.com/retailpos/terminal/internal/store"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Backend is the store backend consumed by the sync engine
type Backend interface {
	CreateSale(ctx context.Context, req *models.SaleCreateRequest) (*models.ServerSale, error)
	FetchProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
	FetchProducts(ctx context.Context) ([]models.Product, error)
	FetchClients(ctx context.Context) ([]models.Client, error)
}

// OnError is invoked for each action that fails during a processing pass
type OnError func(actionID uint64, err error)

// SyncService drains the durable sync queue against the backend and keeps
// the local reference caches current
type SyncService struct {
	store   store.Store
	backend Backend
	group   singleflight.Group
}

// NewSyncService creates a new sync service
func NewSyncService(st store.Store, backend Backend) *SyncService {
	return &SyncService{
		store:   st,
		backend: backend,
	}
}

// ProcessSyncQueue drains all queued actions in FIFO order. Each action is
// processed sequentially: translate, submit, merge the response, then
// remove the action. A failing action is recorded and left queued without
// blocking the rest of the batch.
//
// Only one pass runs at a time; overlapping callers share the in-flight
// pass's report, so a completion-triggered pass and a scheduled pass can
// never submit the same action twice.
func (s *SyncService) ProcessSyncQueue(ctx context.Context, onError OnError) (*models.SyncReport, error) {
	v, err, _ := s.group.Do("sync-queue", func() (interface{}, error) {
		return s.processQueue(ctx, onError)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.SyncReport), nil
}

func (s *SyncService) processQueue(ctx context.Context, onError OnError) (*models.SyncReport, error) {
	actions, err := s.store.ListActions(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read sync queue")
	}

	report := &models.SyncReport{Results: make([]models.ActionResult, 0, len(actions))}
	if len(actions) == 0 {
		return report, nil
	}

	log.Info().Int("queued", len(actions)).Msg("Processing sync queue")

	var refreshIDs []int64
	seen := make(map[int64]struct{})
	collect := func(ids []int64) {
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			refreshIDs = append(refreshIDs, id)
		}
	}

	for i := range actions {
		action := actions[i]

		var actionErr error
		switch action.Type {
		case models.SyncActionCreateSale:
			actionErr = s.processCreateSale(ctx, &action, collect)
		default:
			actionErr = errors.Errorf("unknown sync action type %q", action.Type)
		}

		if actionErr != nil {
			log.Error().
				Err(actionErr).
				Uint64("action_id", action.ID).
				Str("temp_id", action.SaleTempID()).
				Msg("Sync action failed, leaving it queued for retry")
			if onError != nil {
				onError(action.ID, actionErr)
			}
			report.Results = append(report.Results, models.ActionResult{
				ActionID: action.ID,
				Success:  false,
				Error:    actionErr.Error(),
				Err:      actionErr,
			})
			continue
		}

		report.Results = append(report.Results, models.ActionResult{
			ActionID: action.ID,
			Success:  true,
		})
	}

	// Best-effort cache refresh; a failure here never fails the pass.
	if len(refreshIDs) > 0 {
		products, err := s.backend.FetchProductsByIDs(ctx, refreshIDs)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to refresh product cache after sync")
		} else if err := s.store.PutProducts(ctx, products); err != nil {
			log.Warn().Err(err).Msg("Failed to write refreshed products to local store")
		} else {
			report.UpdatedProducts = products
			log.Info().Int("products", len(products)).Msg("Refreshed product cache after sync")
		}
	}

	return report, nil
}

func (s *SyncService) processCreateSale(ctx context.Context, action *models.SyncAction, collect func(ids []int64)) error {
	sale := action.CreateSale
	if sale == nil {
		return errors.New("CREATE_SALE action carries no sale payload")
	}

	req := TranslateSale(sale, s.stockingFactor(ctx))

	resp, err := s.backend.CreateSale(ctx, req)
	if err != nil {
		return errors.Wrapf(err, "failed to create sale %s on backend", sale.TempID)
	}

	merged := MergeServerSale(sale, resp)
	if err := s.store.CompleteSync(ctx, merged, action.ID); err != nil {
		return errors.Wrapf(err, "failed to commit merged sale %s", sale.TempID)
	}

	log.Info().
		Str("temp_id", merged.TempID).
		Int64("sale_id", merged.ID).
		Str("invoice", merged.InvoiceNumber).
		Msg("Sale synced")

	collect(sale.ProductIDs())
	return nil
}

// stockingFactor resolves the units-per-stocking-unit factor from the
// product cache. An unknown product or non-positive factor falls back to
// 1 so a stale cache entry cannot block the sale from syncing.
func (s *SyncService) stockingFactor(ctx context.Context) func(productID int64) float64 {
	return func(productID int64) float64 {
		product, err := s.store.GetProduct(ctx, productID)
		if err != nil {
			log.Warn().
				Err(err).
				Int64("product_id", productID).
				Msg("Product not in local cache, using unit factor 1")
			return 1
		}
		if product.UnitsPerStockingUnit <= 0 {
			return 1
		}
		return product.UnitsPerStockingUnit
	}
}

// RefreshReferenceData bulk-loads the product catalog and client list into
// the local cache. Called at session start so offline search and pricing
// have current data to work from.
func (s *SyncService) RefreshReferenceData(ctx context.Context) error {
	products, err := s.backend.FetchProducts(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to fetch product catalog")
	}
	if err := s.store.PutProducts(ctx, products); err != nil {
		return errors.Wrap(err, "failed to cache product catalog")
	}

	clients, err := s.backend.FetchClients(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to fetch client list")
	}
	if err := s.store.PutClients(ctx, clients); err != nil {
		return errors.Wrap(err, "failed to cache client list")
	}

	log.Info().
		Int("products", len(products)).
		Int("clients", len(clients)).
		Msg("Reference data refreshed")
	return nil
}
