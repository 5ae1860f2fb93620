package services

import (
	"context"
	"time"

	"example.com/retailpos/terminal/internal/connectivity"
	"example.com/retailpos/terminal/internal/models"
	"example.com/retailpos/terminal/internal/store"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrAlreadySynced is returned when an operation targets a sale that has
// already completed a server round-trip.
var ErrAlreadySynced = errors.New("sale is already synced")

// SaleService builds offline sale aggregates, persists them and hands
// completed sales to the sync engine
type SaleService struct {
	store  store.Store
	syncer *SyncService
	gate   connectivity.Gate
}

// NewSaleService creates a new sale service
func NewSaleService(st store.Store, syncer *SyncService, gate connectivity.Gate) *SaleService {
	return &SaleService{
		store:  st,
		syncer: syncer,
		gate:   gate,
	}
}

// CreateDraftSale constructs a new draft sale with a locally generated
// tempId. No network access and no persistence happen here; SaveDraft
// persists the aggregate.
func (s *SaleService) CreateDraftSale(shiftID, userID int64) *models.OfflineSale {
	now := time.Now()
	return &models.OfflineSale{
		TempID:    uuid.New().String(),
		Status:    models.SaleStatusDraft,
		ShiftID:   shiftID,
		UserID:    userID,
		SaleDate:  now,
		Items:     []models.OfflineSaleItem{},
		Payments:  []models.Payment{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SaveDraft recomputes the draft's totals and persists it to the pending
// sales collection. Drafts are never enqueued for sync.
func (s *SaleService) SaveDraft(ctx context.Context, sale *models.OfflineSale) (*models.OfflineSale, error) {
	if sale.Status != models.SaleStatusDraft {
		return nil, errors.Errorf("sale %s is not a draft", sale.TempID)
	}

	draft := CalculateTotals(*sale)
	draft.UpdatedAt = time.Now()
	if err := s.store.PutPendingSale(ctx, &draft); err != nil {
		return nil, errors.Wrap(err, "failed to persist draft sale")
	}
	return &draft, nil
}

// CompleteSale freezes the draft into a completed sale, persists it,
// enqueues a CREATE_SALE action and, when the backend is reachable,
// triggers an immediate sync pass. If that pass reports this sale's
// action as failed the error is returned to the caller while the action
// stays queued for a later retry. The pending record exists in the store
// regardless of the connectivity outcome.
func (s *SaleService) CompleteSale(ctx context.Context, tempID string) (*models.OfflineSale, error) {
	sale, err := s.store.GetPendingSale(ctx, tempID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load sale %s", tempID)
	}
	if sale.IsSynced {
		return sale, ErrAlreadySynced
	}

	completed := CalculateTotals(*sale)
	completed.Status = models.SaleStatusCompleted
	completed.UpdatedAt = time.Now()
	if err := s.store.PutPendingSale(ctx, &completed); err != nil {
		return nil, errors.Wrap(err, "failed to persist completed sale")
	}

	action := models.NewCreateSaleAction(&completed)
	actionID, err := s.store.EnqueueAction(ctx, action)
	if err != nil {
		// The completed sale is already durable; only the enqueue failed.
		return &completed, errors.Wrap(err, "failed to enqueue sale for sync")
	}

	log.Info().
		Str("temp_id", completed.TempID).
		Uint64("action_id", actionID).
		Float64("total", completed.TotalAmount).
		Msg("Sale completed and queued for sync")

	if !s.gate.BackendAccessible(ctx) {
		log.Info().Str("temp_id", completed.TempID).Msg("Backend unreachable, sale will sync later")
		return &completed, nil
	}

	report, err := s.syncer.ProcessSyncQueue(ctx, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Immediate sync pass failed, sale remains queued")
		return &completed, nil
	}

	for _, r := range report.Results {
		if r.ActionID == actionID && !r.Success {
			return &completed, errors.Wrapf(r.Err, "immediate sync of sale %s failed", completed.TempID)
		}
	}

	// Return the merged record if the pass synced this sale.
	synced, err := s.store.GetPendingSale(ctx, tempID)
	if err != nil {
		return &completed, nil
	}
	return synced, nil
}

// DeletePendingSale removes the pending sale record and any queued action
// that references the same tempId, so a discarded sale can never be
// resubmitted.
func (s *SaleService) DeletePendingSale(ctx context.Context, tempID string) error {
	if err := s.store.DeletePendingSale(ctx, tempID); err != nil {
		return errors.Wrapf(err, "failed to delete pending sale %s", tempID)
	}

	actions, err := s.store.ListActions(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to read sync queue")
	}
	for _, action := range actions {
		if action.SaleTempID() != tempID {
			continue
		}
		if err := s.store.DeleteAction(ctx, action.ID); err != nil {
			return errors.Wrapf(err, "failed to delete queued action %d", action.ID)
		}
	}

	log.Info().Str("temp_id", tempID).Msg("Pending sale deleted")
	return nil
}

// DeleteAllPendingSales removes every unsynced pending sale along with its
// queued actions and returns how many were deleted. Synced history is left
// untouched.
func (s *SaleService) DeleteAllPendingSales(ctx context.Context) (int, error) {
	sales, err := s.store.ListPendingSales(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to list pending sales")
	}

	deleted := 0
	for _, sale := range sales {
		if sale.IsSynced {
			continue
		}
		if err := s.DeletePendingSale(ctx, sale.TempID); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}
