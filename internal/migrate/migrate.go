package migrate

import (
	"context"
	"inventory-service/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type MigrateOptions struct {
	CreateChecks           bool // CHECK-constraint'ы
	CreateIndexes          bool // индексы и UNIQUE
	CreateUpdatedAtTrigger bool // триггер last_updated
}

func DefaultMigrateOptions() MigrateOptions {
	return MigrateOptions{
		CreateChecks:           true,
		CreateIndexes:          true,
		CreateUpdatedAtTrigger: true,
	}
}

func MigrateInventoryDB(ctx context.Context, db *gorm.DB, log *zap.Logger, opt MigrateOptions) error {
	log.Info("Начало миграции базы склада")

	// Таблицы
	log.Info("Создание таблиц: inventory_items, stock_reservations, inventory_movements")
	if err := db.AutoMigrate(&models.InventoryItem{}, &models.StockReservation{}, &models.StockMovement{}); err != nil {
		log.Error("AutoMigrate error", zap.Error(err))
		return err
	}
	log.Info("Таблицы созданы")

	// Триггер last_updated
	if opt.CreateUpdatedAtTrigger {
		log.Info("Создание триггера last_updated")
		if err := db.Exec(`
CREATE OR REPLACE FUNCTION set_last_updated() RETURNS trigger AS $$
BEGIN NEW.last_updated = now(); RETURN NEW; END; $$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS trg_inventory_items_updated ON inventory_items;
CREATE TRIGGER trg_inventory_items_updated BEFORE UPDATE ON inventory_items
FOR EACH ROW EXECUTE FUNCTION set_last_updated();
`).Error; err != nil {
			log.Error("trigger error", zap.Error(err))
			return err
		}
		log.Info("Триггер создан")
	}

	// CHECK-и
	if opt.CreateChecks {
		log.Info("Создание CHECK-ограничений")

		// Остатки неотрицательные, резерв не больше остатка
		if err := db.Exec(`
ALTER TABLE inventory_items
	DROP CONSTRAINT IF EXISTS chk_inventory_items_stock_non_negative,
	ADD CONSTRAINT chk_inventory_items_stock_non_negative
	CHECK (current_stock >= 0 AND reserved_stock >= 0 AND reserved_stock <= current_stock);
`).Error; err != nil {
			log.Error("chk inventory_items.stock", zap.Error(err))
			return err
		}

		if err := db.Exec(`
ALTER TABLE stock_reservations
	DROP CONSTRAINT IF EXISTS chk_stock_reservations_quantity_gt_zero,
	ADD CONSTRAINT chk_stock_reservations_quantity_gt_zero
	CHECK (quantity > 0);
`).Error; err != nil {
			log.Error("chk stock_reservations.qty", zap.Error(err))
			return err
		}

		// Допустимые статусы
		if err := db.Exec(`
ALTER TABLE stock_reservations
	DROP CONSTRAINT IF EXISTS chk_stock_reservations_status_allowed,
	ADD CONSTRAINT chk_stock_reservations_status_allowed
	CHECK (status IN ('ACTIVE','CONFIRMED','CANCELLED'));
`).Error; err != nil {
			log.Error("chk stock_reservations.status", zap.Error(err))
			return err
		}

		if err := db.Exec(`
ALTER TABLE inventory_movements
	DROP CONSTRAINT IF EXISTS chk_inventory_movements_type_allowed,
	ADD CONSTRAINT chk_inventory_movements_type_allowed
	CHECK (movement_type IN ('INBOUND','OUTBOUND','RESERVE','UNRESERVE'));
`).Error; err != nil {
			log.Error("chk inventory_movements.type", zap.Error(err))
			return err
		}

		log.Info("CHECK-и созданы")
	}

	// Индексы и уникальности
	if opt.CreateIndexes {
		log.Info("Создание индексов и уникальностей")

		// Одна позиция на (store_id, sku)
		if err := db.Exec(`
CREATE UNIQUE INDEX IF NOT EXISTS ux_inventory_items_store_sku
ON inventory_items (store_id, sku);
`).Error; err != nil {
			log.Error("ux inventory_items store_sku", zap.Error(err))
			return err
		}

		if err := db.Exec(`
CREATE UNIQUE INDEX IF NOT EXISTS ux_stock_reservations_reservation_id
ON stock_reservations (reservation_id);
`).Error; err != nil {
			log.Error("ux stock_reservations reservation_id", zap.Error(err))
			return err
		}

		// Выборка sweep-а: ACTIVE-брони по expires_at
		if err := db.Exec(`
CREATE INDEX IF NOT EXISTS ix_stock_reservations_status_expires
ON stock_reservations (status, expires_at);
`).Error; err != nil {
			log.Error("ix stock_reservations status_expires", zap.Error(err))
			return err
		}

		if err := db.Exec(`
CREATE INDEX IF NOT EXISTS ix_inventory_movements_item_created
ON inventory_movements (inventory_item_id, created_at DESC);
`).Error; err != nil {
			log.Error("ix inventory_movements item_created", zap.Error(err))
			return err
		}

		log.Info("Индексы созданы")
	}

	log.Info("Миграция базы склада завершена")
	return nil
}
