package repository

import (
	"context"
	"errors"
	"inventory-service/internal/models"
	"time"

	"gorm.io/gorm"
)

type ReservationRepo interface {
	Create(ctx context.Context, res *models.StockReservation) error
	GetByReservationID(ctx context.Context, reservationID string) (*models.StockReservation, error)
	ListByOrder(ctx context.Context, orderID string) ([]models.StockReservation, error)
	ListActiveByItem(ctx context.Context, inventoryItemID int64) ([]models.StockReservation, error)

	// Переход статуса с guard-ом: UPDATE ... WHERE status = from.
	// false = бронь уже в другом (терминальном) статусе.
	TransitionStatus(ctx context.Context, reservationID string, from, to models.ReservationStatus) (bool, error)

	// Просроченные ACTIVE-брони для sweep-а, порциями.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]models.StockReservation, error)
}

type reservationRepo struct{ db *gorm.DB }

func NewReservationRepo(db *gorm.DB) ReservationRepo { return &reservationRepo{db: db} }

func (r *reservationRepo) Create(ctx context.Context, res *models.StockReservation) error {
	return r.db.WithContext(ctx).Create(res).Error
}

func (r *reservationRepo) GetByReservationID(ctx context.Context, reservationID string) (*models.StockReservation, error) {
	var res models.StockReservation
	err := r.db.WithContext(ctx).First(&res, "reservation_id = ?", reservationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &res, err
}

func (r *reservationRepo) ListByOrder(ctx context.Context, orderID string) ([]models.StockReservation, error) {
	var list []models.StockReservation
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&list).Error
	return list, err
}

func (r *reservationRepo) ListActiveByItem(ctx context.Context, inventoryItemID int64) ([]models.StockReservation, error) {
	var list []models.StockReservation
	err := r.db.WithContext(ctx).
		Where("inventory_item_id = ? AND status = ?", inventoryItemID, models.ReservationActive).
		Order("created_at ASC").
		Find(&list).Error
	return list, err
}

func (r *reservationRepo) TransitionStatus(ctx context.Context, reservationID string, from, to models.ReservationStatus) (bool, error) {
	tx := r.db.WithContext(ctx).
		Model(&models.StockReservation{}).
		Where("reservation_id = ? AND status = ?", reservationID, from).
		Update("status", to)
	return tx.RowsAffected > 0, tx.Error
}

func (r *reservationRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]models.StockReservation, error) {
	var list []models.StockReservation
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", models.ReservationActive, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}
