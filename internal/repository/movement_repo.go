package repository

import (
	"context"
	"inventory-service/internal/models"

	"gorm.io/gorm"
)

// MovementRepo — append-only журнал: никаких update/delete.
type MovementRepo interface {
	Record(ctx context.Context, m *models.StockMovement) error
	ListByItem(ctx context.Context, inventoryItemID int64, limit int) ([]models.StockMovement, error)
}

type movementRepo struct{ db *gorm.DB }

func NewMovementRepo(db *gorm.DB) MovementRepo { return &movementRepo{db: db} }

func (r *movementRepo) Record(ctx context.Context, m *models.StockMovement) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *movementRepo) ListByItem(ctx context.Context, inventoryItemID int64, limit int) ([]models.StockMovement, error) {
	if limit <= 0 {
		limit = 100
	}
	var list []models.StockMovement
	err := r.db.WithContext(ctx).
		Where("inventory_item_id = ?", inventoryItemID).
		Order("created_at DESC").
		Limit(limit).
		Find(&list).Error
	return list, err
}
