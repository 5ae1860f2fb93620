package handlers

import (
	"net/http"
	"strings"

	"example.com/retailpos/terminal/internal/connectivity"
	"example.com/retailpos/terminal/internal/models"
	"example.com/retailpos/terminal/internal/services"
	"example.com/retailpos/terminal/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// SalesHandler handles the terminal UI's sale and sync requests
type SalesHandler struct {
	sales  *services.SaleService
	syncer *services.SyncService
	store  store.Store
	gate   connectivity.Gate
}

// NewSalesHandler creates a new sales handler
func NewSalesHandler(sales *services.SaleService, syncer *services.SyncService, st store.Store, gate connectivity.Gate) *SalesHandler {
	return &SalesHandler{
		sales:  sales,
		syncer: syncer,
		store:  st,
		gate:   gate,
	}
}

// CreateDraftRequest starts a new draft sale for a shift
type CreateDraftRequest struct {
	ShiftID int64 `json:"shift_id" binding:"required"`
	UserID  int64 `json:"user_id" binding:"required"`
}

// CreateDraft creates and persists a new draft sale
func (h *SalesHandler) CreateDraft(c *gin.Context) {
	var req CreateDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	draft := h.sales.CreateDraftSale(req.ShiftID, req.UserID)
	saved, err := h.sales.SaveDraft(c, draft)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create draft sale")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, saved)
}

// UpdateDraft replaces a draft's items, payments and discount, recomputing
// totals before persisting
func (h *SalesHandler) UpdateDraft(c *gin.Context) {
	tempID := c.Param("tempId")

	var sale models.OfflineSale
	if err := c.ShouldBindJSON(&sale); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if sale.TempID != "" && sale.TempID != tempID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "temp_id in body does not match URL"})
		return
	}
	sale.TempID = tempID

	existing, err := h.store.GetPendingSale(c, tempID)
	if err != nil {
		h.notFoundOrError(c, err)
		return
	}
	if existing.Status != models.SaleStatusDraft {
		c.JSON(http.StatusConflict, gin.H{"error": "sale is no longer a draft"})
		return
	}
	sale.Status = models.SaleStatusDraft
	sale.CreatedAt = existing.CreatedAt

	saved, err := h.sales.SaveDraft(c, &sale)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, saved)
}

// CompleteSale freezes a draft, queues it for sync and attempts an
// immediate sync when the backend is reachable. An immediate sync failure
// is reported to the UI while the sale stays queued.
func (h *SalesHandler) CompleteSale(c *gin.Context) {
	tempID := c.Param("tempId")

	sale, err := h.sales.CompleteSale(c, tempID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "sale not found"})
			return
		}
		if errors.Is(err, services.ErrAlreadySynced) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		if sale != nil {
			// Sale is durable and queued; the immediate sync attempt failed.
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "sale": sale})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, sale)
}

// ListPendingSales returns every locally held sale, synced or not
func (h *SalesHandler) ListPendingSales(c *gin.Context) {
	sales, err := h.store.ListPendingSales(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sales)
}

// DeletePendingSale removes a pending sale and its queued sync action
func (h *SalesHandler) DeletePendingSale(c *gin.Context) {
	tempID := c.Param("tempId")

	if err := h.sales.DeletePendingSale(c, tempID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteAllPendingSales removes every unsynced pending sale
func (h *SalesHandler) DeleteAllPendingSales(c *gin.Context) {
	deleted, err := h.sales.DeleteAllPendingSales(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// TriggerSync runs one queue processing pass
func (h *SalesHandler) TriggerSync(c *gin.Context) {
	if !h.gate.BackendAccessible(c) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "backend unreachable"})
		return
	}

	report, err := h.syncer.ProcessSyncQueue(c, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

// RefreshReferenceData bulk-loads products and clients into the cache
func (h *SalesHandler) RefreshReferenceData(c *gin.Context) {
	if !h.gate.BackendAccessible(c) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "backend unreachable"})
		return
	}

	if err := h.syncer.RefreshReferenceData(c); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// SearchProducts searches the offline product cache by name or SKU
func (h *SalesHandler) SearchProducts(c *gin.Context) {
	query := strings.ToLower(strings.TrimSpace(c.Query("q")))

	products, err := h.store.ListProducts(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if query == "" {
		c.JSON(http.StatusOK, products)
		return
	}

	matches := make([]models.Product, 0)
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), query) ||
			strings.Contains(strings.ToLower(p.SKU), query) {
			matches = append(matches, p)
		}
	}
	c.JSON(http.StatusOK, matches)
}

func (h *SalesHandler) notFoundOrError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "sale not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// RegisterRoutes registers the handler's routes
func (h *SalesHandler) RegisterRoutes(router *gin.Engine) {
	router.POST("/sales/drafts", h.CreateDraft)
	router.PUT("/sales/drafts/:tempId", h.UpdateDraft)
	router.POST("/sales/:tempId/complete", h.CompleteSale)
	router.GET("/sales/pending", h.ListPendingSales)
	router.DELETE("/sales/pending/:tempId", h.DeletePendingSale)
	router.DELETE("/sales/pending", h.DeleteAllPendingSales)
	router.POST("/sync", h.TriggerSync)
	router.POST("/refresh", h.RefreshReferenceData)
	router.GET("/products/search", h.SearchProducts)
}
