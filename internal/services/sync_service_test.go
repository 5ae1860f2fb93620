package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"example.com/retailpos/terminal/config"
	"example.com/retailpos/terminal/internal/models"
	"example.com/retailpos/terminal/internal/store"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Mock backend for testing
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) CreateSale(ctx context.Context, req *models.SaleCreateRequest) (*models.ServerSale, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ServerSale), args.Error(1)
}

func (m *MockBackend) FetchProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Product), args.Error(1)
}

func (m *MockBackend) FetchProducts(ctx context.Context) ([]models.Product, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Product), args.Error(1)
}

func (m *MockBackend) FetchClients(ctx context.Context) ([]models.Client, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Client), args.Error(1)
}

// Mock connectivity gate for testing
type MockGate struct {
	mock.Mock
}

func (m *MockGate) BackendAccessible(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

func newTestStore(t *testing.T) *store.BadgerStore {
	t.Helper()
	st, err := store.NewBadgerStore(config.StoreConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, st.Close())
	})
	return st
}

func completedSale(tempID string, productID int64) *models.OfflineSale {
	sale := &models.OfflineSale{
		TempID:   tempID,
		Status:   models.SaleStatusCompleted,
		ShiftID:  7,
		UserID:   3,
		SaleDate: time.Now(),
		Items: []models.OfflineSaleItem{
			{ProductID: productID, Quantity: 1, UnitPrice: 50, UnitType: models.UnitSellable},
		},
		Payments: []models.Payment{
			{ClientRef: "ref-" + tempID, Method: "cash", Amount: 50, PaymentDate: time.Now()},
		},
	}
	recomputed := CalculateTotals(*sale)
	return &recomputed
}

func enqueueSale(t *testing.T, st store.Store, sale *models.OfflineSale) uint64 {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.PutPendingSale(ctx, sale))
	id, err := st.EnqueueAction(ctx, models.NewCreateSaleAction(sale))
	require.NoError(t, err)
	return id
}

func TestProcessSyncQueueFIFOOrder(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	backend := new(MockBackend)

	enqueueSale(t, st, completedSale("sale-a", 1))
	enqueueSale(t, st, completedSale("sale-b", 2))
	enqueueSale(t, st, completedSale("sale-c", 3))

	var submitted []string
	backend.On("CreateSale", mock.Anything, mock.AnythingOfType("*models.SaleCreateRequest")).
		Run(func(args mock.Arguments) {
			req := args.Get(1).(*models.SaleCreateRequest)
			submitted = append(submitted, req.TempID)
		}).
		Return(&models.ServerSale{ID: 10, InvoiceNumber: "INV-10"}, nil)
	backend.On("FetchProductsByIDs", mock.Anything, []int64{1, 2, 3}).
		Return([]models.Product{}, nil)

	service := NewSyncService(st, backend)
	report, err := service.ProcessSyncQueue(ctx, nil)

	require.NoError(t, err)
	require.Len(t, report.Results, 3)
	require.Equal(t, []string{"sale-a", "sale-b", "sale-c"}, submitted)

	remaining, err := st.ListActions(ctx)
	require.NoError(t, err)
	require.Empty(t, remaining)
}

func TestProcessSyncQueuePartialFailure(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	backend := new(MockBackend)

	idA := enqueueSale(t, st, completedSale("sale-a", 1))
	idB := enqueueSale(t, st, completedSale("sale-b", 2))
	idC := enqueueSale(t, st, completedSale("sale-c", 3))

	backend.On("CreateSale", mock.Anything, mock.MatchedBy(func(req *models.SaleCreateRequest) bool {
		return req.TempID == "sale-b"
	})).Return(nil, errors.New("connection refused"))
	backend.On("CreateSale", mock.Anything, mock.AnythingOfType("*models.SaleCreateRequest")).
		Return(&models.ServerSale{ID: 11, InvoiceNumber: "INV-11"}, nil)
	backend.On("FetchProductsByIDs", mock.Anything, []int64{1, 3}).
		Return([]models.Product{}, nil)

	var failedIDs []uint64
	service := NewSyncService(st, backend)
	report, err := service.ProcessSyncQueue(ctx, func(actionID uint64, err error) {
		failedIDs = append(failedIDs, actionID)
	})

	require.NoError(t, err)
	require.Len(t, report.Results, 3)
	require.True(t, report.Results[0].Success)
	require.False(t, report.Results[1].Success)
	require.True(t, report.Results[2].Success)
	require.Equal(t, idA, report.Results[0].ActionID)
	require.Equal(t, idB, report.Results[1].ActionID)
	require.Equal(t, idC, report.Results[2].ActionID)
	require.Equal(t, []uint64{idB}, failedIDs)

	// The failed action stays queued; the others are gone.
	remaining, err := st.ListActions(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, idB, remaining[0].ID)

	// The failed sale is still visible as unsynced.
	saleB, err := st.GetPendingSale(ctx, "sale-b")
	require.NoError(t, err)
	require.False(t, saleB.IsSynced)
	require.Zero(t, saleB.ID)

	saleA, err := st.GetPendingSale(ctx, "sale-a")
	require.NoError(t, err)
	require.True(t, saleA.IsSynced)
	require.Equal(t, int64(11), saleA.ID)
}

func TestProcessSyncQueueIdempotentReplay(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	backend := new(MockBackend)

	enqueueSale(t, st, completedSale("sale-a", 1))

	backend.On("CreateSale", mock.Anything, mock.AnythingOfType("*models.SaleCreateRequest")).
		Return(&models.ServerSale{ID: 12, InvoiceNumber: "INV-12"}, nil)
	backend.On("FetchProductsByIDs", mock.Anything, []int64{1}).
		Return([]models.Product{}, nil)

	service := NewSyncService(st, backend)

	_, err := service.ProcessSyncQueue(ctx, nil)
	require.NoError(t, err)

	// A second pass finds the queue empty and submits nothing.
	report, err := service.ProcessSyncQueue(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, report.Results)
	backend.AssertNumberOfCalls(t, "CreateSale", 1)
}

func TestProcessSyncQueueSingleFlight(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	backend := new(MockBackend)

	enqueueSale(t, st, completedSale("sale-a", 1))

	backend.On("CreateSale", mock.Anything, mock.AnythingOfType("*models.SaleCreateRequest")).
		Run(func(args mock.Arguments) {
			time.Sleep(100 * time.Millisecond)
		}).
		Return(&models.ServerSale{ID: 13}, nil)
	backend.On("FetchProductsByIDs", mock.Anything, []int64{1}).
		Return([]models.Product{}, nil)

	service := NewSyncService(st, backend)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.ProcessSyncQueue(ctx, nil)
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	// Overlapping invocations share one pass; the action is submitted once.
	backend.AssertNumberOfCalls(t, "CreateSale", 1)
}

func TestProcessSyncQueueUnknownActionType(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	backend := new(MockBackend)

	_, err := st.EnqueueAction(ctx, &models.SyncAction{Type: "UPDATE_SALE"})
	require.NoError(t, err)

	service := NewSyncService(st, backend)
	report, err := service.ProcessSyncQueue(ctx, nil)

	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	require.False(t, report.Results[0].Success)
	require.Contains(t, report.Results[0].Error, "unknown sync action type")

	// The action is left queued rather than silently dropped.
	remaining, err := st.ListActions(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
}

func TestProcessSyncQueueCacheRefreshFailureIsBestEffort(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	backend := new(MockBackend)

	enqueueSale(t, st, completedSale("sale-a", 1))

	backend.On("CreateSale", mock.Anything, mock.AnythingOfType("*models.SaleCreateRequest")).
		Return(&models.ServerSale{ID: 14}, nil)
	backend.On("FetchProductsByIDs", mock.Anything, []int64{1}).
		Return(nil, errors.New("timeout"))

	service := NewSyncService(st, backend)
	report, err := service.ProcessSyncQueue(ctx, nil)

	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	require.True(t, report.Results[0].Success)
	require.Empty(t, report.UpdatedProducts)

	remaining, err := st.ListActions(ctx)
	require.NoError(t, err)
	require.Empty(t, remaining)
}

func TestProcessSyncQueueRefreshesTouchedProducts(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	backend := new(MockBackend)

	sale := completedSale("sale-a", 42)
	enqueueSale(t, st, sale)

	refreshed := []models.Product{
		{ID: 42, Name: "Rice 5kg", SKU: "RICE-5", StockQuantity: 17, UnitsPerStockingUnit: 10},
	}
	backend.On("CreateSale", mock.Anything, mock.AnythingOfType("*models.SaleCreateRequest")).
		Return(&models.ServerSale{ID: 15}, nil)
	backend.On("FetchProductsByIDs", mock.Anything, []int64{42}).
		Return(refreshed, nil)

	service := NewSyncService(st, backend)
	report, err := service.ProcessSyncQueue(ctx, nil)

	require.NoError(t, err)
	require.Equal(t, refreshed, report.UpdatedProducts)

	cached, err := st.GetProduct(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, float64(17), cached.StockQuantity)
}

func TestRefreshReferenceData(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	backend := new(MockBackend)

	backend.On("FetchProducts", mock.Anything).Return([]models.Product{
		{ID: 1, Name: "Sugar 1kg", SKU: "SUG-1"},
		{ID: 2, Name: "Flour 2kg", SKU: "FLR-2"},
	}, nil)
	backend.On("FetchClients", mock.Anything).Return([]models.Client{
		{ID: 5, Name: "Walk-in"},
	}, nil)

	service := NewSyncService(st, backend)
	require.NoError(t, service.RefreshReferenceData(ctx))

	products, err := st.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 2)

	clients, err := st.ListClients(ctx)
	require.NoError(t, err)
	require.Len(t, clients, 1)
}
