package handlers

import (
	"net/http"
	"strconv"

	"venue_ops_backend/internal/models"
	"venue_ops_backend/internal/services"
	"venue_ops_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// StockHandler serves the stock catalog and the batch ledger.
type StockHandler struct {
	stockService services.StockService
	batchService services.BatchService
}

// NewStockHandler creates a new StockHandler.
func NewStockHandler(ss services.StockService, bs services.BatchService) *StockHandler {
	return &StockHandler{stockService: ss, batchService: bs}
}

// Stock Categories Handlers

func (h *StockHandler) GetCategories(c *gin.Context) {
	categories, err := h.stockService.ListCategories(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to fetch stock categories.")
		return
	}
	c.JSON(http.StatusOK, categories)
}

func (h *StockHandler) CreateCategory(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	var req services.CreateCategoryRequest
	if !bindJSON(c, &req) {
		return
	}
	category, err := h.stockService.CreateCategory(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err, "Failed to create stock category.")
		return
	}
	c.JSON(http.StatusCreated, category)
}

// Stock Items Handlers

// GetItems lists items. Query: category_id, active, low_stock.
func (h *StockHandler) GetItems(c *gin.Context) {
	var filter models.StockItemFilter
	if raw := c.Query("category_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			utils.RespondValidationFailed(c, "category_id must be an integer")
			return
		}
		filter.CategoryID = &id
	}
	active, ok := queryBool(c, "active")
	if !ok {
		return
	}
	filter.Active = active
	lowStock, ok := queryBool(c, "low_stock")
	if !ok {
		return
	}
	filter.LowStock = lowStock != nil && *lowStock

	items, err := h.stockService.ListItems(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err, "Failed to fetch stock items.")
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *StockHandler) GetItemByID(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	item, err := h.stockService.GetItem(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to fetch stock item.")
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *StockHandler) CreateItem(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	var req services.CreateStockItemRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := h.stockService.CreateItem(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err, "Failed to create stock item.")
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *StockHandler) UpdateItem(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req services.UpdateStockItemRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := h.stockService.UpdateItem(c.Request.Context(), actor, id, req)
	if err != nil {
		respondError(c, err, "Failed to update stock item.")
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *StockHandler) DeleteItem(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.stockService.DeleteItem(c.Request.Context(), actor, id); err != nil {
		respondError(c, err, "Failed to delete stock item.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Stock item deleted successfully"})
}

// AdjustItem applies a signed manual adjustment.
func (h *StockHandler) AdjustItem(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req services.AdjustStockRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := h.stockService.AdjustQuantity(c.Request.Context(), actor, id, req)
	if err != nil {
		respondError(c, err, "Failed to adjust stock.")
		return
	}
	c.JSON(http.StatusOK, item)
}

// ConsumeItem draws stock from the item's batches, earliest expiry first.
func (h *StockHandler) ConsumeItem(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req services.ConsumeStockRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.stockService.Consume(c.Request.Context(), actor, id, req)
	if err != nil {
		respondError(c, err, "Failed to consume stock.")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *StockHandler) GetItemTransactions(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	n := 0
	if limit != nil {
		n = *limit
	}
	txns, err := h.stockService.ListTransactions(c.Request.Context(), id, n)
	if err != nil {
		respondError(c, err, "Failed to fetch stock transactions.")
		return
	}
	c.JSON(http.StatusOK, txns)
}

// Batch Handlers

func (h *StockHandler) GetItemBatches(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	batches, err := h.batchService.ListActiveBatches(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to fetch batches.")
		return
	}
	c.JSON(http.StatusOK, batches)
}

// GetExpiringBatches lists batches expiring within ?days (default from configuration).
func (h *StockHandler) GetExpiringBatches(c *gin.Context) {
	days, ok := queryInt(c, "days")
	if !ok {
		return
	}
	batches, err := h.batchService.ListExpiring(c.Request.Context(), days)
	if err != nil {
		respondError(c, err, "Failed to fetch expiring batches.")
		return
	}
	c.JSON(http.StatusOK, batches)
}

func (h *StockHandler) AdjustBatch(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req services.AdjustBatchRequest
	if !bindJSON(c, &req) {
		return
	}
	batch, err := h.batchService.AdjustRemaining(c.Request.Context(), actor, id, req)
	if err != nil {
		respondError(c, err, "Failed to adjust batch.")
		return
	}
	c.JSON(http.StatusOK, batch)
}
