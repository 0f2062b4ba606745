package repository

import "gorm.io/gorm"

type Repository struct {
	DB           *gorm.DB
	Items        InventoryItemRepo
	Reservations ReservationRepo
	Movements    MovementRepo
}

func buildRepository(db *gorm.DB) *Repository {
	return &Repository{
		DB:           db,
		Items:        NewInventoryItemRepo(db),
		Reservations: NewReservationRepo(db),
		Movements:    NewMovementRepo(db),
	}
}

func New(db *gorm.DB) *Repository { return buildRepository(db) }

// Глобальная транзакция на весь набор репо
func (r *Repository) WithTx(fn func(tx *Repository) error) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		return fn(buildRepository(tx))
	})
}
