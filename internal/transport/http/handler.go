package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"inventory-service/internal/cache"
	"inventory-service/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	svc   service.InventoryService
	cache *cache.RedisClient // nil = кэш выключен
	log   *zap.Logger
}

func NewHandler(svc service.InventoryService, cache *cache.RedisClient, log *zap.Logger) *Handler {
	return &Handler{svc: svc, cache: cache, log: log}
}

func (h *Handler) GetInventoryBySKU(c *gin.Context) {
	sku := c.Param("sku")

	item, err := h.svc.GetInventoryBySKU(c.Request.Context(), sku)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toItemResponse(item))
}

func (h *Handler) ReserveStock(c *gin.Context) {
	var req ReserveStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	handle, err := h.svc.Reserve(c.Request.Context(), service.ReserveInput{
		SKU:        req.SKU,
		Quantity:   req.Quantity,
		CustomerID: req.CustomerID,
		OrderID:    req.OrderID,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ReservationResponse{
		ReservationID: handle.ReservationID,
		SKU:           handle.SKU,
		Quantity:      handle.Quantity,
		ExpiresAt:     handle.ExpiresAt.Format(time.RFC3339),
		Status:        string(handle.Status),
	})
}

func (h *Handler) ConfirmReservation(c *gin.Context) {
	id := c.Param("reservationId")
	if err := h.svc.ConfirmReservation(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "confirmed"})
}

func (h *Handler) CancelReservation(c *gin.Context) {
	id := c.Param("reservationId")
	if err := h.svc.CancelReservation(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

func (h *Handler) ReservationsByOrder(c *gin.Context) {
	orderID := c.Param("orderId")

	list, err := h.svc.ReservationsByOrder(c.Request.Context(), orderID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	out := make([]OrderReservationResponse, 0, len(list))
	for i := range list {
		r := &list[i]
		out = append(out, OrderReservationResponse{
			ReservationID:   r.ReservationID,
			InventoryItemID: r.InventoryItemID,
			Quantity:        r.Quantity,
			CustomerID:      r.CustomerID,
			OrderID:         r.OrderID,
			Status:          string(r.Status),
			ExpiresAt:       r.ExpiresAt.Format(time.RFC3339),
			CreatedAt:       r.CreatedAt.Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) AddStock(c *gin.Context) {
	var req AddStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.svc.AddStock(c.Request.Context(), service.AddStockInput{
		SKU:         req.SKU,
		StoreID:     req.StoreID,
		ProductID:   req.ProductID,
		Quantity:    req.Quantity,
		Reason:      req.Reason,
		ReferenceID: req.ReferenceID,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) CheckAvailability(c *gin.Context) {
	var req AvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()

	// read-through: сначала кэш, промахи добираем из БД и кладём обратно
	cached := make([]service.ProductAvailability, 0, len(req.SKUs))
	misses := req.SKUs
	if h.cache != nil {
		misses = misses[:0]
		for _, sku := range req.SKUs {
			raw, err := h.cache.GetAvailability(ctx, req.StoreID, sku)
			if err != nil {
				misses = append(misses, sku)
				continue
			}
			var pa service.ProductAvailability
			if err := json.Unmarshal(raw, &pa); err != nil {
				misses = append(misses, sku)
				continue
			}
			cached = append(cached, pa)
		}
	}

	result := &service.AvailabilityResult{StoreID: req.StoreID, Products: cached}
	if len(misses) > 0 {
		fresh, err := h.svc.CheckAvailability(ctx, req.StoreID, misses)
		if err != nil {
			h.respondError(c, err)
			return
		}
		result.Products = append(result.Products, fresh.Products...)
		if h.cache != nil {
			for i := range fresh.Products {
				if raw, err := json.Marshal(fresh.Products[i]); err == nil {
					if err := h.cache.SetAvailability(ctx, req.StoreID, fresh.Products[i].SKU, raw); err != nil {
						h.log.Debug("availability cache set failed", zap.Error(err))
					}
				}
			}
		}
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) LowStockItems(c *gin.Context) {
	storeID, ok := storeIDParam(c)
	if !ok {
		return
	}
	items, err := h.svc.LowStockItems(c.Request.Context(), storeID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	out := make([]InventoryItemResponse, 0, len(items))
	for i := range items {
		out = append(out, toItemResponse(&items[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) ItemsNeedingReplenishment(c *gin.Context) {
	storeID, ok := storeIDParam(c)
	if !ok {
		return
	}
	items, err := h.svc.ItemsNeedingReplenishment(c.Request.Context(), storeID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	out := make([]InventoryItemResponse, 0, len(items))
	for i := range items {
		out = append(out, toItemResponse(&items[i]))
	}
	c.JSON(http.StatusOK, out)
}

func storeIDParam(c *gin.Context) (int64, bool) {
	raw := c.Query("storeId")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid storeId"})
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(c *gin.Context, err error) {
	var insufficient *service.InsufficientStockError
	switch {
	case errors.As(err, &insufficient):
		c.JSON(http.StatusConflict, gin.H{
			"error":     "insufficient stock",
			"sku":       insufficient.SKU,
			"available": insufficient.Available,
			"requested": insufficient.Requested,
		})
	case errors.Is(err, service.ErrInventoryNotFound),
		errors.Is(err, service.ErrReservationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidReservation),
		errors.Is(err, service.ErrInvalidQuantity):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrOptimisticLock):
		// транзиентный конфликт: клиент повторяет операцию с перечитанным состоянием
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "retryable": true})
	default:
		h.log.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
