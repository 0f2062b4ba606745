package service

import (
	"errors"
	"fmt"
)

var (
	ErrInventoryNotFound   = errors.New("inventory not found")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrInvalidReservation  = errors.New("reservation is not active")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrOptimisticLock      = errors.New("concurrent modification detected")
	ErrInvalidQuantity     = errors.New("quantity must be > 0")
)

// InsufficientStockError несёт payload для клиента: сколько просили и сколько доступно.
type InsufficientStockError struct {
	SKU       string
	Available int32
	Requested int32
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for sku %s: available %d, requested %d",
		e.SKU, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }
