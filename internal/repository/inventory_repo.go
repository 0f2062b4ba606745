package repository

import (
	"context"
	"errors"
	"inventory-service/internal/models"

	"gorm.io/gorm"
)

type InventoryItemRepo interface {
	GetByID(ctx context.Context, id int64) (*models.InventoryItem, error)
	GetBySKU(ctx context.Context, sku string) (*models.InventoryItem, error)
	GetByStoreAndSKU(ctx context.Context, storeID int64, sku string) (*models.InventoryItem, error)
	ListByStoreAndSKUs(ctx context.Context, storeID int64, skus []string) ([]models.InventoryItem, error)
	Create(ctx context.Context, item *models.InventoryItem) error

	// Резервирование (атомарно, проверка и запись в одном statement):
	// TryReserve: reserved_stock += qty, если current_stock - reserved_stock >= qty
	TryReserve(ctx context.Context, id int64, qty int32) (bool, error)
	// ReleaseReserved: reserved_stock -= qty (предполагаем reserved_stock >= qty)
	ReleaseReserved(ctx context.Context, id int64, qty int32) (bool, error)

	// Version-gated апдейты (optimistic locking):
	ConfirmStockWithVersion(ctx context.Context, id int64, newCurrent, newReserved int32, version int64) (bool, error)
	AddStockWithVersion(ctx context.Context, id int64, qty int32, version int64) (bool, error)

	ListLowStock(ctx context.Context, storeID int64) ([]models.InventoryItem, error)
	ListNeedingReplenishment(ctx context.Context, storeID int64, multiplier float64) ([]models.InventoryItem, error)
}

type inventoryItemRepo struct{ db *gorm.DB }

func NewInventoryItemRepo(db *gorm.DB) InventoryItemRepo { return &inventoryItemRepo{db: db} }

func (r *inventoryItemRepo) GetByID(ctx context.Context, id int64) (*models.InventoryItem, error) {
	var item models.InventoryItem
	err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &item, err
}

func (r *inventoryItemRepo) GetBySKU(ctx context.Context, sku string) (*models.InventoryItem, error) {
	var item models.InventoryItem
	err := r.db.WithContext(ctx).First(&item, "sku = ?", sku).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &item, err
}

func (r *inventoryItemRepo) GetByStoreAndSKU(ctx context.Context, storeID int64, sku string) (*models.InventoryItem, error) {
	var item models.InventoryItem
	err := r.db.WithContext(ctx).Where("store_id = ? AND sku = ?", storeID, sku).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &item, err
}

func (r *inventoryItemRepo) ListByStoreAndSKUs(ctx context.Context, storeID int64, skus []string) ([]models.InventoryItem, error) {
	if len(skus) == 0 {
		return []models.InventoryItem{}, nil
	}
	var list []models.InventoryItem
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND sku IN ?", storeID, skus).
		Find(&list).Error
	return list, err
}

func (r *inventoryItemRepo) Create(ctx context.Context, item *models.InventoryItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *inventoryItemRepo) TryReserve(ctx context.Context, id int64, qty int32) (bool, error) {
	// Проверка доступности и инкремент резерва в одном условном UPDATE:
	// кто из конкурентов выиграл — решает строковая блокировка БД, не приложение.
	tx := r.db.WithContext(ctx).Exec(`
UPDATE inventory_items
SET reserved_stock = reserved_stock + @q,
    last_updated   = now()
WHERE id = @id
  AND current_stock - reserved_stock >= @q
`, map[string]any{
		"id": id,
		"q":  qty,
	})
	return tx.RowsAffected > 0, tx.Error
}

func (r *inventoryItemRepo) ReleaseReserved(ctx context.Context, id int64, qty int32) (bool, error) {
	// возврат резерва: reserved_stock -= qty (если хватает резерва)
	tx := r.db.WithContext(ctx).Exec(`
UPDATE inventory_items
SET reserved_stock = reserved_stock - @q,
    last_updated   = now()
WHERE id = @id
  AND reserved_stock >= @q
`, map[string]any{
		"id": id,
		"q":  qty,
	})
	return tx.RowsAffected > 0, tx.Error
}

func (r *inventoryItemRepo) ConfirmStockWithVersion(ctx context.Context, id int64, newCurrent, newReserved int32, version int64) (bool, error) {
	tx := r.db.WithContext(ctx).Exec(`
UPDATE inventory_items
SET current_stock  = @cur,
    reserved_stock = @res,
    version        = version + 1,
    last_updated   = now()
WHERE id = @id
  AND version = @v
`, map[string]any{
		"id":  id,
		"cur": newCurrent,
		"res": newReserved,
		"v":   version,
	})
	return tx.RowsAffected > 0, tx.Error
}

func (r *inventoryItemRepo) AddStockWithVersion(ctx context.Context, id int64, qty int32, version int64) (bool, error) {
	tx := r.db.WithContext(ctx).Exec(`
UPDATE inventory_items
SET current_stock = current_stock + @q,
    version       = version + 1,
    last_updated  = now()
WHERE id = @id
  AND version = @v
`, map[string]any{
		"id": id,
		"q":  qty,
		"v":  version,
	})
	return tx.RowsAffected > 0, tx.Error
}

func (r *inventoryItemRepo) ListLowStock(ctx context.Context, storeID int64) ([]models.InventoryItem, error) {
	var list []models.InventoryItem
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND current_stock <= safety_stock", storeID).
		Order("sku ASC").
		Find(&list).Error
	return list, err
}

func (r *inventoryItemRepo) ListNeedingReplenishment(ctx context.Context, storeID int64, multiplier float64) ([]models.InventoryItem, error) {
	var list []models.InventoryItem
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND current_stock <= safety_stock * ?", storeID, multiplier).
		Order("sku ASC").
		Find(&list).Error
	return list, err
}
