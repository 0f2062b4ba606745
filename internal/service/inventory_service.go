package service

import (
	"context"
	"fmt"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Options struct {
	ReservationTTL      time.Duration
	DefaultSafetyStock  int32
	DefaultMaxStock     int32
	ReplenishMultiplier float64
}

const (
	defaultReservationTTL      = 15 * time.Minute
	defaultReplenishMultiplier = 1.5
)

type inventoryService struct {
	repo  *repository.Repository
	bus   EventBus          // опционально (nil = события не публикуются)
	cache AvailabilityCache // опционально
	log   *zap.Logger
	opts  Options
	now   func() time.Time
}

func NewInventoryService(repo *repository.Repository, bus EventBus, cache AvailabilityCache, log *zap.Logger, opts Options) InventoryService {
	if opts.ReservationTTL <= 0 {
		opts.ReservationTTL = defaultReservationTTL
	}
	if opts.ReplenishMultiplier <= 0 {
		opts.ReplenishMultiplier = defaultReplenishMultiplier
	}
	return &inventoryService{
		repo:  repo,
		bus:   bus,
		cache: cache,
		log:   log,
		opts:  opts,
		now:   time.Now,
	}
}

func (s *inventoryService) GetInventoryBySKU(ctx context.Context, sku string) (*models.InventoryItem, error) {
	item, err := s.repo.Items.GetBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrInventoryNotFound
	}
	return item, nil
}

// Reserve — атомарное резервирование. Проверка доступности и инкремент резерва
// выполняются одним условным UPDATE; читать остаток заранее и писать потом нельзя,
// между чтением и записью пролезет конкурент.
func (s *inventoryService) Reserve(ctx context.Context, in ReserveInput) (*ReservationHandle, error) {
	if in.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	s.log.Info("Reserving stock",
		zap.String("sku", in.SKU),
		zap.Int32("quantity", in.Quantity),
		zap.String("order_id", in.OrderID))

	item, err := s.repo.Items.GetBySKU(ctx, in.SKU)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrInventoryNotFound
	}

	now := s.now()
	res := &models.StockReservation{
		ReservationID:   s.generateReservationID(),
		InventoryItemID: item.ID,
		Quantity:        in.Quantity,
		CustomerID:      in.CustomerID,
		OrderID:         in.OrderID,
		ExpiresAt:       now.Add(s.opts.ReservationTTL),
		Status:          models.ReservationActive,
		CreatedAt:       now,
	}

	// Одна короткая транзакция: черновая бронь + условный UPDATE + движение.
	// Rollback при неудаче условия убирает черновую строку (reserve-or-abort).
	err = s.repo.WithTx(func(tx *repository.Repository) error {
		if err := tx.Reservations.Create(ctx, res); err != nil {
			return err
		}
		ok, err := tx.Items.TryReserve(ctx, item.ID, in.Quantity)
		if err != nil {
			return err
		}
		if !ok {
			fresh, err := tx.Items.GetByID(ctx, item.ID)
			if err != nil {
				return err
			}
			available := int32(0)
			if fresh != nil {
				available = fresh.AvailableStock()
			}
			return &InsufficientStockError{SKU: in.SKU, Available: available, Requested: in.Quantity}
		}
		return tx.Movements.Record(ctx, &models.StockMovement{
			InventoryItemID: item.ID,
			MovementType:    models.MovementReserve,
			Quantity:        in.Quantity,
			ReferenceType:   models.ReferenceReservation,
			ReferenceID:     res.ReservationID,
			Reason:          "Stock reservation",
			CreatedAt:       now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.invalidateCache(ctx, item.StoreID, item.SKU)
	s.publishMovement(ctx, StockMovementEvent{
		InventoryItemID: item.ID,
		MovementType:    models.MovementReserve,
		Quantity:        in.Quantity,
		ReferenceType:   models.ReferenceReservation,
		ReferenceID:     res.ReservationID,
		Reason:          "Stock reservation",
		OccurredAt:      now,
	})

	return &ReservationHandle{
		ReservationID: res.ReservationID,
		SKU:           item.SKU,
		Quantity:      res.Quantity,
		ExpiresAt:     res.ExpiresAt,
		Status:        res.Status,
	}, nil
}

// ConfirmReservation — продажа состоялась: current и reserved уменьшаются вместе
// одним version-gated UPDATE. При конфликте версий вызывающий повторяет confirm целиком.
func (s *inventoryService) ConfirmReservation(ctx context.Context, reservationID string) error {
	s.log.Info("Confirming reservation", zap.String("reservation_id", reservationID))

	res, err := s.repo.Reservations.GetByReservationID(ctx, reservationID)
	if err != nil {
		return err
	}
	if res == nil {
		return ErrReservationNotFound
	}
	if res.Status != models.ReservationActive {
		return ErrInvalidReservation
	}

	item, err := s.repo.Items.GetByID(ctx, res.InventoryItemID)
	if err != nil {
		return err
	}
	if item == nil {
		return ErrInventoryNotFound
	}

	newCurrent := item.CurrentStock - res.Quantity
	newReserved := item.ReservedStock - res.Quantity
	now := s.now()

	err = s.repo.WithTx(func(tx *repository.Repository) error {
		ok, err := tx.Items.ConfirmStockWithVersion(ctx, item.ID, newCurrent, newReserved, item.Version)
		if err != nil {
			return err
		}
		if !ok {
			return ErrOptimisticLock
		}
		moved, err := tx.Reservations.TransitionStatus(ctx, reservationID, models.ReservationActive, models.ReservationConfirmed)
		if err != nil {
			return err
		}
		if !moved {
			// статус увели из-под нас между чтением и транзакцией
			return ErrInvalidReservation
		}
		return tx.Movements.Record(ctx, &models.StockMovement{
			InventoryItemID: item.ID,
			MovementType:    models.MovementOutbound,
			Quantity:        res.Quantity,
			ReferenceType:   models.ReferenceSale,
			ReferenceID:     res.OrderID,
			Reason:          "Order confirmed",
			CreatedAt:       now,
		})
	})
	if err != nil {
		return err
	}

	s.invalidateCache(ctx, item.StoreID, item.SKU)
	s.publishMovement(ctx, StockMovementEvent{
		InventoryItemID: item.ID,
		MovementType:    models.MovementOutbound,
		Quantity:        res.Quantity,
		ReferenceType:   models.ReferenceSale,
		ReferenceID:     res.OrderID,
		Reason:          "Order confirmed",
		OccurredAt:      now,
	})
	s.checkLowStock(ctx, item, newCurrent)

	return nil
}

// CancelReservation — возврат резерва. Идемпотентен: повторный cancel (или cancel
// после confirm) не проходит guard статуса и не трогает остатки.
func (s *inventoryService) CancelReservation(ctx context.Context, reservationID string) error {
	s.log.Info("Cancelling reservation", zap.String("reservation_id", reservationID))

	res, err := s.repo.Reservations.GetByReservationID(ctx, reservationID)
	if err != nil {
		return err
	}
	if res == nil {
		return ErrReservationNotFound
	}

	now := s.now()
	cancelled := false

	err = s.repo.WithTx(func(tx *repository.Repository) error {
		moved, err := tx.Reservations.TransitionStatus(ctx, reservationID, models.ReservationActive, models.ReservationCancelled)
		if err != nil {
			return err
		}
		if !moved {
			return nil // уже терминальный статус
		}
		cancelled = true

		released, err := tx.Items.ReleaseReserved(ctx, res.InventoryItemID, res.Quantity)
		if err != nil {
			return err
		}
		if !released {
			return fmt.Errorf("release reserved stock: item %d, qty %d", res.InventoryItemID, res.Quantity)
		}
		return tx.Movements.Record(ctx, &models.StockMovement{
			InventoryItemID: res.InventoryItemID,
			MovementType:    models.MovementUnreserve,
			Quantity:        res.Quantity,
			ReferenceType:   models.ReferenceReservation,
			ReferenceID:     reservationID,
			Reason:          "Reservation cancelled",
			CreatedAt:       now,
		})
	})
	if err != nil {
		return err
	}
	if !cancelled {
		return nil
	}

	if item, err := s.repo.Items.GetByID(ctx, res.InventoryItemID); err == nil && item != nil {
		s.invalidateCache(ctx, item.StoreID, item.SKU)
	}
	s.publishMovement(ctx, StockMovementEvent{
		InventoryItemID: res.InventoryItemID,
		MovementType:    models.MovementUnreserve,
		Quantity:        res.Quantity,
		ReferenceType:   models.ReferenceReservation,
		ReferenceID:     reservationID,
		Reason:          "Reservation cancelled",
		OccurredAt:      now,
	})

	return nil
}

// ReservationsByOrder — все брони заказа (для оркестрации заказов).
func (s *inventoryService) ReservationsByOrder(ctx context.Context, orderID string) ([]models.StockReservation, error) {
	return s.repo.Reservations.ListByOrder(ctx, orderID)
}

// AddStock — приход товара; создаёт позицию при первом поступлении.
func (s *inventoryService) AddStock(ctx context.Context, in AddStockInput) error {
	if in.Quantity <= 0 {
		return ErrInvalidQuantity
	}

	s.log.Info("Adding stock",
		zap.String("sku", in.SKU),
		zap.Int64("store_id", in.StoreID),
		zap.Int32("quantity", in.Quantity),
		zap.String("reason", in.Reason))

	item, err := s.repo.Items.GetByStoreAndSKU(ctx, in.StoreID, in.SKU)
	if err != nil {
		return err
	}

	now := s.now()
	reason := in.Reason
	var newStock int32

	if item == nil {
		reason = "initial stock"
		newStock = in.Quantity
		created := &models.InventoryItem{
			SKU:          in.SKU,
			ProductID:    in.ProductID,
			StoreID:      in.StoreID,
			CurrentStock: in.Quantity,
			SafetyStock:  s.opts.DefaultSafetyStock,
			MaxStock:     s.opts.DefaultMaxStock,
			LastUpdated:  now,
		}
		err = s.repo.WithTx(func(tx *repository.Repository) error {
			if err := tx.Items.Create(ctx, created); err != nil {
				return err
			}
			return tx.Movements.Record(ctx, &models.StockMovement{
				InventoryItemID: created.ID,
				MovementType:    models.MovementInbound,
				Quantity:        in.Quantity,
				ReferenceType:   models.ReferencePurchase,
				ReferenceID:     in.ReferenceID,
				Reason:          reason,
				CreatedAt:       now,
			})
		})
		if err != nil {
			return err
		}
		item = created
	} else {
		newStock = item.CurrentStock + in.Quantity
		err = s.repo.WithTx(func(tx *repository.Repository) error {
			ok, err := tx.Items.AddStockWithVersion(ctx, item.ID, in.Quantity, item.Version)
			if err != nil {
				return err
			}
			if !ok {
				return ErrOptimisticLock
			}
			return tx.Movements.Record(ctx, &models.StockMovement{
				InventoryItemID: item.ID,
				MovementType:    models.MovementInbound,
				Quantity:        in.Quantity,
				ReferenceType:   models.ReferencePurchase,
				ReferenceID:     in.ReferenceID,
				Reason:          reason,
				CreatedAt:       now,
			})
		})
		if err != nil {
			return err
		}
	}

	s.invalidateCache(ctx, in.StoreID, in.SKU)
	s.publishMovement(ctx, StockMovementEvent{
		InventoryItemID: item.ID,
		MovementType:    models.MovementInbound,
		Quantity:        in.Quantity,
		ReferenceType:   models.ReferencePurchase,
		ReferenceID:     in.ReferenceID,
		Reason:          reason,
		OccurredAt:      now,
	})
	s.checkLowStock(ctx, item, newStock)

	return nil
}

func (s *inventoryService) CheckAvailability(ctx context.Context, storeID int64, skus []string) (*AvailabilityResult, error) {
	if len(skus) == 0 {
		return &AvailabilityResult{StoreID: storeID, Products: []ProductAvailability{}}, nil
	}

	items, err := s.repo.Items.ListByStoreAndSKUs(ctx, storeID, skus)
	if err != nil {
		return nil, err
	}

	out := &AvailabilityResult{
		StoreID:  storeID,
		Products: make([]ProductAvailability, 0, len(items)),
	}
	for i := range items {
		out.Products = append(out.Products, toProductAvailability(&items[i]))
	}
	return out, nil
}

func (s *inventoryService) LowStockItems(ctx context.Context, storeID int64) ([]models.InventoryItem, error) {
	return s.repo.Items.ListLowStock(ctx, storeID)
}

func (s *inventoryService) ItemsNeedingReplenishment(ctx context.Context, storeID int64) ([]models.InventoryItem, error) {
	return s.repo.Items.ListNeedingReplenishment(ctx, storeID, s.opts.ReplenishMultiplier)
}

func toProductAvailability(item *models.InventoryItem) ProductAvailability {
	available := item.AvailableStock()
	status := StatusAvailable
	switch {
	case available <= 0:
		status = StatusOutOfStock
	case available <= item.SafetyStock:
		status = StatusLowStock
	}
	return ProductAvailability{
		SKU:            item.SKU,
		ProductID:      item.ProductID,
		CurrentStock:   item.CurrentStock,
		ReservedStock:  item.ReservedStock,
		AvailableStock: available,
		SafetyStock:    item.SafetyStock,
		InStock:        available > 0,
		LowStock:       item.IsLowStock(),
		Status:         status,
	}
}

func (s *inventoryService) checkLowStock(ctx context.Context, item *models.InventoryItem, currentStock int32) {
	if currentStock > item.SafetyStock {
		return
	}
	s.log.Warn("Low stock",
		zap.String("sku", item.SKU),
		zap.Int64("store_id", item.StoreID),
		zap.Int32("current_stock", currentStock),
		zap.Int32("safety_stock", item.SafetyStock))
	if s.bus == nil {
		return
	}
	if err := s.bus.PublishLowStock(ctx, LowStockEvent{
		SKU:          item.SKU,
		StoreID:      item.StoreID,
		CurrentStock: currentStock,
		SafetyStock:  item.SafetyStock,
		OccurredAt:   s.now(),
	}); err != nil {
		s.log.Error("publish low stock event failed", zap.Error(err))
	}
}

func (s *inventoryService) publishMovement(ctx context.Context, e StockMovementEvent) {
	if s.bus == nil {
		return
	}
	if err := s.bus.PublishStockMovement(ctx, e); err != nil {
		s.log.Error("publish stock movement event failed", zap.Error(err))
	}
}

func (s *inventoryService) invalidateCache(ctx context.Context, storeID int64, sku string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, storeID, sku); err != nil {
		s.log.Error("cache invalidation failed", zap.String("sku", sku), zap.Error(err))
	}
}

func (s *inventoryService) generateReservationID() string {
	return fmt.Sprintf("RES_%d_%s", s.now().UnixMilli(), uuid.NewString()[:8])
}
