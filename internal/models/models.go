package models

import (
	"time"
)

type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "ACTIVE"
	ReservationConfirmed ReservationStatus = "CONFIRMED"
	ReservationCancelled ReservationStatus = "CANCELLED"
)

type MovementType string

const (
	MovementInbound   MovementType = "INBOUND"
	MovementOutbound  MovementType = "OUTBOUND"
	MovementReserve   MovementType = "RESERVE"
	MovementUnreserve MovementType = "UNRESERVE"
)

type ReferenceType string

const (
	ReferencePurchase    ReferenceType = "PURCHASE"
	ReferenceSale        ReferenceType = "SALE"
	ReferenceReservation ReferenceType = "RESERVATION"
)

// InventoryItem — складская позиция (sku, store). Инвариант: reserved_stock <= current_stock.
type InventoryItem struct {
	ID            int64     `gorm:"primaryKey;autoIncrement"`
	SKU           string    `gorm:"type:text;not null;index;uniqueIndex:ux_inventory_items_store_sku"`
	ProductID     int64     `gorm:"not null;index"`
	StoreID       int64     `gorm:"not null;index;uniqueIndex:ux_inventory_items_store_sku"`
	CurrentStock  int32     `gorm:"not null;default:0"`
	ReservedStock int32     `gorm:"not null;default:0"`
	SafetyStock   int32     `gorm:"not null;default:0"`
	MaxStock      int32     `gorm:"not null;default:0"`
	UnitCostCents int64     `gorm:"not null;default:0"`
	Version       int64     `gorm:"not null;default:0"` // инкрементируется только version-gated апдейтами
	LastUpdated   time.Time `gorm:"not null;default:now()"`
}

func (InventoryItem) TableName() string {
	return "inventory_items"
}

func (i *InventoryItem) AvailableStock() int32 {
	return i.CurrentStock - i.ReservedStock
}

func (i *InventoryItem) IsLowStock() bool {
	return i.CurrentStock <= i.SafetyStock
}

func (i *InventoryItem) NeedsReplenishment(multiplier float64) bool {
	return float64(i.CurrentStock) <= float64(i.SafetyStock)*multiplier
}

func (i *InventoryItem) SuggestedReorderQuantity() int32 {
	reorder := i.MaxStock - i.CurrentStock
	if doubled := i.SafetyStock * 2; doubled > reorder {
		return doubled
	}
	return reorder
}

// StockReservation — временная бронь на время checkout.
// ACTIVE -> CONFIRMED | CANCELLED; истечение TTL это системный переход в CANCELLED.
type StockReservation struct {
	ID              int64             `gorm:"primaryKey;autoIncrement"`
	ReservationID   string            `gorm:"type:text;not null;uniqueIndex"`
	InventoryItemID int64             `gorm:"not null;index"`
	Quantity        int32             `gorm:"not null"`
	CustomerID      int64             `gorm:"not null;index"`
	OrderID         string            `gorm:"type:text;not null;index"`
	ExpiresAt       time.Time         `gorm:"not null;index"`
	Status          ReservationStatus `gorm:"type:text;not null;default:'ACTIVE';index"`
	CreatedAt       time.Time         `gorm:"not null;default:now();index"`
}

func (StockReservation) TableName() string {
	return "stock_reservations"
}

func (r *StockReservation) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// StockMovement — append-only журнал движений остатков, одна строка на мутацию.
type StockMovement struct {
	ID              int64         `gorm:"primaryKey;autoIncrement"`
	InventoryItemID int64         `gorm:"not null;index"`
	MovementType    MovementType  `gorm:"type:text;not null;index"`
	Quantity        int32         `gorm:"not null"`
	ReferenceType   ReferenceType `gorm:"type:text;not null"`
	ReferenceID     string        `gorm:"type:text"`
	Reason          string        `gorm:"type:text"`
	CreatedAt       time.Time     `gorm:"not null;default:now();index"`
}

func (StockMovement) TableName() string {
	return "inventory_movements"
}
