package service

import (
	"context"
	"time"

	"inventory-service/internal/models"
)

type ReserveInput struct {
	SKU        string
	Quantity   int32
	CustomerID int64
	OrderID    string
}

type ReservationHandle struct {
	ReservationID string
	SKU           string
	Quantity      int32
	ExpiresAt     time.Time
	Status        models.ReservationStatus
}

type AddStockInput struct {
	SKU         string
	StoreID     int64
	ProductID   int64
	Quantity    int32
	Reason      string
	ReferenceID string
}

type AvailabilityStatus string

const (
	StatusAvailable  AvailabilityStatus = "AVAILABLE"
	StatusLowStock   AvailabilityStatus = "LOW_STOCK"
	StatusOutOfStock AvailabilityStatus = "OUT_OF_STOCK"
)

type ProductAvailability struct {
	SKU            string             `json:"sku"`
	ProductID      int64              `json:"product_id"`
	CurrentStock   int32              `json:"current_stock"`
	ReservedStock  int32              `json:"reserved_stock"`
	AvailableStock int32              `json:"available_stock"`
	SafetyStock    int32              `json:"safety_stock"`
	InStock        bool               `json:"in_stock"`
	LowStock       bool               `json:"low_stock"`
	Status         AvailabilityStatus `json:"status"`
}

type AvailabilityResult struct {
	StoreID  int64                 `json:"store_id"`
	Products []ProductAvailability `json:"products"`
}

type InventoryService interface {
	GetInventoryBySKU(ctx context.Context, sku string) (*models.InventoryItem, error)

	// reservations
	Reserve(ctx context.Context, in ReserveInput) (*ReservationHandle, error)
	ConfirmReservation(ctx context.Context, reservationID string) error
	CancelReservation(ctx context.Context, reservationID string) error
	ReservationsByOrder(ctx context.Context, orderID string) ([]models.StockReservation, error)

	// stock
	AddStock(ctx context.Context, in AddStockInput) error

	// queries
	CheckAvailability(ctx context.Context, storeID int64, skus []string) (*AvailabilityResult, error)
	LowStockItems(ctx context.Context, storeID int64) ([]models.InventoryItem, error)
	ItemsNeedingReplenishment(ctx context.Context, storeID int64) ([]models.InventoryItem, error)
}
