package http

import (
	"time"

	"inventory-service/internal/models"
)

type ReserveStockRequest struct {
	SKU        string `json:"sku" binding:"required"`
	Quantity   int32  `json:"quantity" binding:"required,gt=0"`
	CustomerID int64  `json:"customer_id" binding:"required"`
	OrderID    string `json:"order_id" binding:"required"`
}

type ReservationResponse struct {
	ReservationID string `json:"reservation_id"`
	SKU           string `json:"sku"`
	Quantity      int32  `json:"quantity"`
	ExpiresAt     string `json:"expires_at"`
	Status        string `json:"status"`
}

type OrderReservationResponse struct {
	ReservationID   string `json:"reservation_id"`
	InventoryItemID int64  `json:"inventory_item_id"`
	Quantity        int32  `json:"quantity"`
	CustomerID      int64  `json:"customer_id"`
	OrderID         string `json:"order_id"`
	Status          string `json:"status"`
	ExpiresAt       string `json:"expires_at"`
	CreatedAt       string `json:"created_at"`
}

type AddStockRequest struct {
	SKU         string `json:"sku" binding:"required"`
	StoreID     int64  `json:"store_id" binding:"required"`
	ProductID   int64  `json:"product_id"`
	Quantity    int32  `json:"quantity" binding:"required,gt=0"`
	Reason      string `json:"reason"`
	ReferenceID string `json:"reference_id"`
}

type AvailabilityRequest struct {
	StoreID int64    `json:"store_id" binding:"required"`
	SKUs    []string `json:"skus" binding:"required,min=1"`
}

type InventoryItemResponse struct {
	SKU            string    `json:"sku"`
	ProductID      int64     `json:"product_id"`
	StoreID        int64     `json:"store_id"`
	CurrentStock   int32     `json:"current_stock"`
	ReservedStock  int32     `json:"reserved_stock"`
	AvailableStock int32     `json:"available_stock"`
	SafetyStock    int32     `json:"safety_stock"`
	MaxStock       int32     `json:"max_stock"`
	LastUpdated    time.Time `json:"last_updated"`
}

func toItemResponse(item *models.InventoryItem) InventoryItemResponse {
	return InventoryItemResponse{
		SKU:            item.SKU,
		ProductID:      item.ProductID,
		StoreID:        item.StoreID,
		CurrentStock:   item.CurrentStock,
		ReservedStock:  item.ReservedStock,
		AvailableStock: item.AvailableStock(),
		SafetyStock:    item.SafetyStock,
		MaxStock:       item.MaxStock,
		LastUpdated:    item.LastUpdated,
	}
}
