package services

import (
	"context"
	"testing"

	"example.com/retailpos/terminal/internal/models"
	"example.com/retailpos/terminal/internal/store"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newSaleService(t *testing.T, backend *MockBackend, gate *MockGate) (*SaleService, store.Store) {
	t.Helper()
	st := newTestStore(t)
	syncer := NewSyncService(st, backend)
	return NewSaleService(st, syncer, gate), st
}

func draftWithItem(t *testing.T, ctx context.Context, service *SaleService) *models.OfflineSale {
	t.Helper()
	draft := service.CreateDraftSale(7, 3)
	draft.AddItem(models.OfflineSaleItem{ProductID: 1, Quantity: 2, UnitPrice: 50})
	draft.AddPayment(models.Payment{Method: "cash", Amount: 100})
	saved, err := service.SaveDraft(ctx, draft)
	require.NoError(t, err)
	return saved
}

func TestCreateDraftSale(t *testing.T) {
	service, _ := newSaleService(t, new(MockBackend), new(MockGate))

	draft := service.CreateDraftSale(7, 3)

	require.NotEmpty(t, draft.TempID)
	require.Equal(t, models.SaleStatusDraft, draft.Status)
	require.Zero(t, draft.ID)
	require.False(t, draft.IsSynced)
	require.Empty(t, draft.Items)
	require.Empty(t, draft.Payments)
}

func TestSaveDraftDoesNotEnqueue(t *testing.T) {
	ctx := context.Background()
	service, st := newSaleService(t, new(MockBackend), new(MockGate))

	draftWithItem(t, ctx, service)

	actions, err := st.ListActions(ctx)
	require.NoError(t, err)
	require.Empty(t, actions)
}

func TestCompleteSaleOffline(t *testing.T) {
	ctx := context.Background()
	backend := new(MockBackend)
	gate := new(MockGate)
	gate.On("BackendAccessible", mock.Anything).Return(false)

	service, st := newSaleService(t, backend, gate)
	draft := draftWithItem(t, ctx, service)

	sale, err := service.CompleteSale(ctx, draft.TempID)
	require.NoError(t, err)
	require.Equal(t, models.SaleStatusCompleted, sale.Status)
	require.False(t, sale.IsSynced)

	// The sale is durable and queued; nothing reached the backend.
	actions, err := st.ListActions(ctx)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	require.Equal(t, draft.TempID, actions[0].SaleTempID())
	backend.AssertNotCalled(t, "CreateSale", mock.Anything, mock.Anything)
}

func TestCompleteSaleImmediateSync(t *testing.T) {
	ctx := context.Background()
	backend := new(MockBackend)
	gate := new(MockGate)
	gate.On("BackendAccessible", mock.Anything).Return(true)

	backend.On("CreateSale", mock.Anything, mock.AnythingOfType("*models.SaleCreateRequest")).
		Return(&models.ServerSale{ID: 55, InvoiceNumber: "INV-55", PaidAmount: 100}, nil)
	backend.On("FetchProductsByIDs", mock.Anything, []int64{1}).
		Return([]models.Product{}, nil)

	service, st := newSaleService(t, backend, gate)
	draft := draftWithItem(t, ctx, service)

	sale, err := service.CompleteSale(ctx, draft.TempID)
	require.NoError(t, err)
	require.True(t, sale.IsSynced)
	require.Equal(t, int64(55), sale.ID)
	require.Equal(t, "INV-55", sale.InvoiceNumber)
	require.Equal(t, draft.TempID, sale.TempID)

	actions, err := st.ListActions(ctx)
	require.NoError(t, err)
	require.Empty(t, actions)
}

func TestCompleteSaleImmediateSyncFailure(t *testing.T) {
	ctx := context.Background()
	backend := new(MockBackend)
	gate := new(MockGate)
	gate.On("BackendAccessible", mock.Anything).Return(true)

	backend.On("CreateSale", mock.Anything, mock.AnythingOfType("*models.SaleCreateRequest")).
		Return(nil, errors.New("insufficient stock"))

	service, st := newSaleService(t, backend, gate)
	draft := draftWithItem(t, ctx, service)

	sale, err := service.CompleteSale(ctx, draft.TempID)

	// The failure is re-raised so the UI can react immediately.
	require.Error(t, err)
	require.Contains(t, err.Error(), "insufficient stock")
	require.NotNil(t, sale)

	// The sale stays durable and queued for a later retry.
	stored, storeErr := st.GetPendingSale(ctx, draft.TempID)
	require.NoError(t, storeErr)
	require.False(t, stored.IsSynced)

	actions, storeErr := st.ListActions(ctx)
	require.NoError(t, storeErr)
	require.Len(t, actions, 1)
}

func TestCompleteSaleAlreadySynced(t *testing.T) {
	ctx := context.Background()
	service, st := newSaleService(t, new(MockBackend), new(MockGate))

	sale := completedSale("synced-sale", 1)
	sale.IsSynced = true
	sale.ID = 99
	require.NoError(t, st.PutPendingSale(ctx, sale))

	_, err := service.CompleteSale(ctx, "synced-sale")
	require.ErrorIs(t, err, ErrAlreadySynced)
}

func TestDeletePendingSaleCascade(t *testing.T) {
	ctx := context.Background()
	gate := new(MockGate)
	gate.On("BackendAccessible", mock.Anything).Return(false)

	service, st := newSaleService(t, new(MockBackend), gate)
	draft := draftWithItem(t, ctx, service)

	_, err := service.CompleteSale(ctx, draft.TempID)
	require.NoError(t, err)

	require.NoError(t, service.DeletePendingSale(ctx, draft.TempID))

	_, err = st.GetPendingSale(ctx, draft.TempID)
	require.ErrorIs(t, err, store.ErrNotFound)

	actions, err := st.ListActions(ctx)
	require.NoError(t, err)
	require.Empty(t, actions)
}

func TestDeleteAllPendingSalesKeepsSyncedHistory(t *testing.T) {
	ctx := context.Background()
	service, st := newSaleService(t, new(MockBackend), new(MockGate))

	synced := completedSale("synced-sale", 1)
	synced.IsSynced = true
	synced.ID = 77
	require.NoError(t, st.PutPendingSale(ctx, synced))

	unsyncedA := completedSale("unsynced-a", 2)
	unsyncedB := completedSale("unsynced-b", 3)
	enqueueSale(t, st, unsyncedA)
	enqueueSale(t, st, unsyncedB)

	deleted, err := service.DeleteAllPendingSales(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, deleted)

	remaining, err := st.ListPendingSales(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, "synced-sale", remaining[0].TempID)

	actions, err := st.ListActions(ctx)
	require.NoError(t, err)
	require.Empty(t, actions)
}

// Regression: discount fields must survive the whole pipeline from draft
// through totals, completion, translation and merge.
func TestDiscountSurvivesPipeline(t *testing.T) {
	ctx := context.Background()
	backend := new(MockBackend)
	gate := new(MockGate)
	gate.On("BackendAccessible", mock.Anything).Return(true)

	var submitted *models.SaleCreateRequest
	backend.On("CreateSale", mock.Anything, mock.AnythingOfType("*models.SaleCreateRequest")).
		Run(func(args mock.Arguments) {
			submitted = args.Get(1).(*models.SaleCreateRequest)
		}).
		Return(&models.ServerSale{ID: 60, InvoiceNumber: "INV-60"}, nil)
	backend.On("FetchProductsByIDs", mock.Anything, []int64{1}).
		Return([]models.Product{}, nil)

	service, st := newSaleService(t, backend, gate)

	draft := service.CreateDraftSale(7, 3)
	draft.AddItem(models.OfflineSaleItem{ProductID: 1, Quantity: 2, UnitPrice: 50})
	draft.AddPayment(models.Payment{Method: "cash", Amount: 90})
	draft.SetDiscount(10, models.DiscountPercentage)
	saved, err := service.SaveDraft(ctx, draft)
	require.NoError(t, err)
	require.Equal(t, float64(90), saved.TotalAmount)

	sale, err := service.CompleteSale(ctx, saved.TempID)
	require.NoError(t, err)

	// The payload submitted to the backend carried the discount.
	require.NotNil(t, submitted)
	require.Equal(t, float64(10), submitted.DiscountAmount)
	require.Equal(t, "percentage", submitted.DiscountType)

	// The merged record kept it too.
	require.Equal(t, float64(10), sale.DiscountAmount)
	require.Equal(t, models.DiscountPercentage, sale.DiscountType)

	stored, err := st.GetPendingSale(ctx, saved.TempID)
	require.NoError(t, err)
	require.True(t, stored.IsSynced)
	require.Equal(t, float64(10), stored.DiscountAmount)
	require.Equal(t, models.DiscountPercentage, stored.DiscountType)
	require.Equal(t, float64(90), stored.TotalAmount)
}
