package service

import (
	"context"
	"time"

	"inventory-service/internal/models"
)

type LowStockEvent struct {
	SKU          string    `json:"sku"`
	StoreID      int64     `json:"store_id"`
	CurrentStock int32     `json:"current_stock"`
	SafetyStock  int32     `json:"safety_stock"`
	OccurredAt   time.Time `json:"occurred_at"`
}

type StockMovementEvent struct {
	InventoryItemID int64                `json:"inventory_item_id"`
	MovementType    models.MovementType  `json:"movement_type"`
	Quantity        int32                `json:"quantity"`
	ReferenceType   models.ReferenceType `json:"reference_type"`
	ReferenceID     string               `json:"reference_id,omitempty"`
	Reason          string               `json:"reason,omitempty"`
	OccurredAt      time.Time            `json:"occurred_at"`
}

// EventBus — исходящий канал уведомлений. Обязательство движка заканчивается
// на публикации; доставка — забота потребителя.
type EventBus interface {
	PublishLowStock(ctx context.Context, e LowStockEvent) error
	PublishStockMovement(ctx context.Context, e StockMovementEvent) error
}

// AvailabilityCache — read-through кэш остатков; мутации его инвалидируют.
type AvailabilityCache interface {
	Invalidate(ctx context.Context, storeID int64, sku string) error
}
