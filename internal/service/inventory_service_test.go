package service_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"inventory-service/internal/migrate"
	"inventory-service/internal/models"
	"inventory-service/internal/repository"
	"inventory-service/internal/service"
	"inventory-service/internal/testutil"

	"go.uber.org/zap"
)

// recorderBus собирает опубликованные события для проверок
type recorderBus struct {
	mu        sync.Mutex
	lowStock  []service.LowStockEvent
	movements []service.StockMovementEvent
}

func (b *recorderBus) PublishLowStock(_ context.Context, e service.LowStockEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lowStock = append(b.lowStock, e)
	return nil
}

func (b *recorderBus) PublishStockMovement(_ context.Context, e service.StockMovementEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.movements = append(b.movements, e)
	return nil
}

func (b *recorderBus) lowStockCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lowStock)
}

func (b *recorderBus) movementEvents() []service.StockMovementEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]service.StockMovementEvent, len(b.movements))
	copy(out, b.movements)
	return out
}

type env struct {
	repos *repository.Repository
	svc   service.InventoryService
	bus   *recorderBus
}

func setup(t *testing.T) *env {
	t.Helper()
	db := testutil.SetupTestPostgres(t)
	if err := migrate.MigrateInventoryDB(context.Background(), db, zap.NewNop(), migrate.DefaultMigrateOptions()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	repos := repository.New(db)
	bus := &recorderBus{}
	svc := service.NewInventoryService(repos, bus, nil, zap.NewNop(), service.Options{
		DefaultSafetyStock:  10,
		DefaultMaxStock:     1000,
		ReplenishMultiplier: 1.5,
	})
	return &env{repos: repos, svc: svc, bus: bus}
}

func (e *env) addStock(t *testing.T, sku string, storeID int64, qty int32) *models.InventoryItem {
	t.Helper()
	err := e.svc.AddStock(context.Background(), service.AddStockInput{
		SKU:       sku,
		StoreID:   storeID,
		ProductID: 1,
		Quantity:  qty,
		Reason:    "test stock",
	})
	if err != nil {
		t.Fatalf("AddStock %s: %v", sku, err)
	}
	item, err := e.repos.Items.GetByStoreAndSKU(context.Background(), storeID, sku)
	if err != nil || item == nil {
		t.Fatalf("item %s not found after AddStock: %v", sku, err)
	}
	return item
}

func (e *env) item(t *testing.T, id int64) *models.InventoryItem {
	t.Helper()
	item, err := e.repos.Items.GetByID(context.Background(), id)
	if err != nil || item == nil {
		t.Fatalf("GetByID %d: %v", id, err)
	}
	return item
}

func TestAddStock_CreatesItemWithDefaults(t *testing.T) {
	e := setup(t)

	item := e.addStock(t, "NEW-001", 1, 50)
	if item.CurrentStock != 50 || item.ReservedStock != 0 {
		t.Fatalf("expected current=50, reserved=0, got %+v", item)
	}
	if item.SafetyStock != 10 || item.MaxStock != 1000 {
		t.Fatalf("expected defaults safety=10, max=1000, got %+v", item)
	}

	moves, err := e.repos.Movements.ListByItem(context.Background(), item.ID, 10)
	if err != nil {
		t.Fatalf("ListByItem: %v", err)
	}
	if len(moves) != 1 || moves[0].MovementType != models.MovementInbound {
		t.Fatalf("expected 1 INBOUND movement, got %+v", moves)
	}
}

func TestAddStock_IncrementsExisting(t *testing.T) {
	e := setup(t)

	item := e.addStock(t, "ADD-001", 1, 100)
	v := item.Version

	err := e.svc.AddStock(context.Background(), service.AddStockInput{
		SKU: "ADD-001", StoreID: 1, ProductID: 1, Quantity: 25, Reason: "restock",
	})
	if err != nil {
		t.Fatalf("AddStock: %v", err)
	}

	got := e.item(t, item.ID)
	if got.CurrentStock != 125 {
		t.Fatalf("expected current=125, got %d", got.CurrentStock)
	}
	if got.Version != v+1 {
		t.Fatalf("expected version bump %d -> %d, got %d", v, v+1, got.Version)
	}
}

func TestAddStock_InitialReceiptBelowSafetyEmitsLowStock(t *testing.T) {
	e := setup(t)

	// Первый приход 6 штук при safety=10: позиция рождается уже в дефиците
	item := e.addStock(t, "LOW-INIT", 1, 6)
	if item.CurrentStock != 6 {
		t.Fatalf("expected current=6, got %d", item.CurrentStock)
	}
	if e.bus.lowStockCount() != 1 {
		t.Fatalf("expected 1 low stock event, got %d", e.bus.lowStockCount())
	}

	e.bus.mu.Lock()
	ev := e.bus.lowStock[0]
	e.bus.mu.Unlock()
	// В событии фактический остаток, не удвоенный
	if ev.SKU != "LOW-INIT" || ev.CurrentStock != 6 || ev.SafetyStock != 10 {
		t.Fatalf("unexpected event %+v", ev)
	}

	// Приход выше safety событие не даёт
	e.addStock(t, "OK-INIT", 1, 11)
	if e.bus.lowStockCount() != 1 {
		t.Fatalf("expected no event for stock above safety, got %d", e.bus.lowStockCount())
	}
}

func TestAddStock_MovementEventReasons(t *testing.T) {
	e := setup(t)

	e.addStock(t, "RSN-001", 1, 50)
	err := e.svc.AddStock(context.Background(), service.AddStockInput{
		SKU: "RSN-001", StoreID: 1, ProductID: 1, Quantity: 20, Reason: "restock",
	})
	if err != nil {
		t.Fatalf("AddStock: %v", err)
	}

	events := e.bus.movementEvents()
	if len(events) != 2 {
		t.Fatalf("expected 2 movement events, got %d", len(events))
	}
	// Событие повторяет причину строки журнала
	if events[0].Reason != "initial stock" {
		t.Fatalf("create event: expected reason %q, got %q", "initial stock", events[0].Reason)
	}
	if events[1].Reason != "restock" {
		t.Fatalf("increment event: expected reason %q, got %q", "restock", events[1].Reason)
	}
}

func TestAddStock_InvalidQuantity(t *testing.T) {
	e := setup(t)
	err := e.svc.AddStock(context.Background(), service.AddStockInput{
		SKU: "X", StoreID: 1, Quantity: 0,
	})
	if !errors.Is(err, service.ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
}

func TestReserveConfirm_Lifecycle(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	item := e.addStock(t, "LIFE-001", 1, 100)

	handle, err := e.svc.Reserve(ctx, service.ReserveInput{
		SKU: "LIFE-001", Quantity: 10, CustomerID: 42, OrderID: "ORD-1",
	})
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if handle.Status != models.ReservationActive || handle.Quantity != 10 {
		t.Fatalf("unexpected handle %+v", handle)
	}

	got := e.item(t, item.ID)
	if got.CurrentStock != 100 || got.ReservedStock != 10 {
		t.Fatalf("after reserve expected current=100, reserved=10, got %+v", got)
	}

	if err := e.svc.ConfirmReservation(ctx, handle.ReservationID); err != nil {
		t.Fatalf("ConfirmReservation: %v", err)
	}

	// Продажа: current и reserved уменьшаются вместе
	got = e.item(t, item.ID)
	if got.CurrentStock != 90 || got.ReservedStock != 0 {
		t.Fatalf("after confirm expected current=90, reserved=0, got %+v", got)
	}

	res, _ := e.repos.Reservations.GetByReservationID(ctx, handle.ReservationID)
	if res.Status != models.ReservationConfirmed {
		t.Fatalf("expected CONFIRMED, got %s", res.Status)
	}

	moves, _ := e.repos.Movements.ListByItem(ctx, item.ID, 10)
	if len(moves) != 3 { // INBOUND + RESERVE + OUTBOUND
		t.Fatalf("expected 3 movements, got %d", len(moves))
	}

	byOrder, err := e.svc.ReservationsByOrder(ctx, "ORD-1")
	if err != nil {
		t.Fatalf("ReservationsByOrder: %v", err)
	}
	if len(byOrder) != 1 || byOrder[0].ReservationID != handle.ReservationID {
		t.Fatalf("expected the order's reservation, got %+v", byOrder)
	}
}

func TestReserveCancel_RestoresAvailability(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	item := e.addStock(t, "CANCEL-001", 1, 100)

	handle, err := e.svc.Reserve(ctx, service.ReserveInput{
		SKU: "CANCEL-001", Quantity: 10, CustomerID: 42, OrderID: "ORD-2",
	})
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	if err := e.svc.CancelReservation(ctx, handle.ReservationID); err != nil {
		t.Fatalf("CancelReservation: %v", err)
	}

	got := e.item(t, item.ID)
	if got.CurrentStock != 100 || got.ReservedStock != 0 {
		t.Fatalf("after cancel expected current=100, reserved=0, got %+v", got)
	}

	res, _ := e.repos.Reservations.GetByReservationID(ctx, handle.ReservationID)
	if res.Status != models.ReservationCancelled {
		t.Fatalf("expected CANCELLED, got %s", res.Status)
	}
}

func TestReserve_InsufficientStock(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	item := e.addStock(t, "LOW-001", 1, 5)

	_, err := e.svc.Reserve(ctx, service.ReserveInput{
		SKU: "LOW-001", Quantity: 8, CustomerID: 1, OrderID: "ORD-3",
	})
	var insufficient *service.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if insufficient.Available != 5 || insufficient.Requested != 8 || insufficient.SKU != "LOW-001" {
		t.Fatalf("unexpected payload %+v", insufficient)
	}
	if !errors.Is(err, service.ErrInsufficientStock) {
		t.Fatal("expected errors.Is(err, ErrInsufficientStock)")
	}

	// Черновая бронь откатилась, резерв не тронут
	got := e.item(t, item.ID)
	if got.ReservedStock != 0 {
		t.Fatalf("expected reserved=0 after failed reserve, got %d", got.ReservedStock)
	}
	active, _ := e.repos.Reservations.ListActiveByItem(ctx, item.ID)
	if len(active) != 0 {
		t.Fatalf("expected no active reservations, got %d", len(active))
	}
}

func TestReserve_UnknownSKU(t *testing.T) {
	e := setup(t)
	_, err := e.svc.Reserve(context.Background(), service.ReserveInput{
		SKU: "MISSING", Quantity: 1, CustomerID: 1, OrderID: "ORD-4",
	})
	if !errors.Is(err, service.ErrInventoryNotFound) {
		t.Fatalf("expected ErrInventoryNotFound, got %v", err)
	}
}

func TestConcurrentReserve_LastUnit(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	item := e.addStock(t, "RACE-001", 1, 1)

	var wg sync.WaitGroup
	var success, insufficient atomic.Int32
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.svc.Reserve(ctx, service.ReserveInput{
				SKU: "RACE-001", Quantity: 1, CustomerID: 1, OrderID: "ORD-race",
			})
			switch {
			case err == nil:
				success.Add(1)
			case errors.Is(err, service.ErrInsufficientStock):
				insufficient.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if success.Load() != 1 || insufficient.Load() != 2 {
		t.Fatalf("expected 1 success / 2 insufficient, got %d / %d", success.Load(), insufficient.Load())
	}

	got := e.item(t, item.ID)
	if got.ReservedStock != 1 || got.CurrentStock != 1 {
		t.Fatalf("expected current=1, reserved=1, got %+v", got)
	}
}

func TestConcurrentReserve_NoOverselling(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	item := e.addStock(t, "RACE-002", 1, 5)

	var wg sync.WaitGroup
	var success atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.svc.Reserve(ctx, service.ReserveInput{
				SKU: "RACE-002", Quantity: 1, CustomerID: 1, OrderID: "ORD-race2",
			})
			if err == nil {
				success.Add(1)
			} else if !errors.Is(err, service.ErrInsufficientStock) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if success.Load() != 5 {
		t.Fatalf("expected exactly 5 successful reserves, got %d", success.Load())
	}

	// Сверка с журналом броней: резерв равен сумме ACTIVE
	got := e.item(t, item.ID)
	if got.ReservedStock != 5 {
		t.Fatalf("expected reserved=5, got %d", got.ReservedStock)
	}
	active, _ := e.repos.Reservations.ListActiveByItem(ctx, item.ID)
	var sum int32
	for _, r := range active {
		sum += r.Quantity
	}
	if sum != got.ReservedStock {
		t.Fatalf("ledger mismatch: reserved=%d, sum(ACTIVE)=%d", got.ReservedStock, sum)
	}
}

func TestConfirm_TerminalStatusRejected(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	item := e.addStock(t, "TERM-001", 1, 20)
	handle, err := e.svc.Reserve(ctx, service.ReserveInput{
		SKU: "TERM-001", Quantity: 5, CustomerID: 1, OrderID: "ORD-5",
	})
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if err := e.svc.ConfirmReservation(ctx, handle.ReservationID); err != nil {
		t.Fatalf("ConfirmReservation: %v", err)
	}

	// Повторный confirm не проходит и не трогает остатки
	err = e.svc.ConfirmReservation(ctx, handle.ReservationID)
	if !errors.Is(err, service.ErrInvalidReservation) {
		t.Fatalf("expected ErrInvalidReservation, got %v", err)
	}
	got := e.item(t, item.ID)
	if got.CurrentStock != 15 || got.ReservedStock != 0 {
		t.Fatalf("stocks mutated by repeated confirm: %+v", got)
	}

	// Cancel после confirm — no-op без ошибки
	if err := e.svc.CancelReservation(ctx, handle.ReservationID); err != nil {
		t.Fatalf("cancel after confirm: %v", err)
	}
	got = e.item(t, item.ID)
	if got.CurrentStock != 15 || got.ReservedStock != 0 {
		t.Fatalf("stocks mutated by cancel after confirm: %+v", got)
	}
	res, _ := e.repos.Reservations.GetByReservationID(ctx, handle.ReservationID)
	if res.Status != models.ReservationConfirmed {
		t.Fatalf("expected status CONFIRMED kept, got %s", res.Status)
	}
}

func TestCancel_Idempotent(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	item := e.addStock(t, "IDEM-001", 1, 20)
	handle, err := e.svc.Reserve(ctx, service.ReserveInput{
		SKU: "IDEM-001", Quantity: 5, CustomerID: 1, OrderID: "ORD-6",
	})
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	if err := e.svc.CancelReservation(ctx, handle.ReservationID); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	if err := e.svc.CancelReservation(ctx, handle.ReservationID); err != nil {
		t.Fatalf("second cancel: %v", err)
	}

	// Резерв вернулся ровно один раз
	got := e.item(t, item.ID)
	if got.ReservedStock != 0 || got.CurrentStock != 20 {
		t.Fatalf("expected current=20, reserved=0, got %+v", got)
	}

	if err := e.svc.CancelReservation(ctx, "RES_unknown"); !errors.Is(err, service.ErrReservationNotFound) {
		t.Fatalf("expected ErrReservationNotFound, got %v", err)
	}
}

func TestCheckAvailability_Statuses(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	e.addStock(t, "AV-ok", 1, 100)
	e.addStock(t, "AV-low", 1, 8) // current <= safety(10)
	e.addStock(t, "AV-out", 1, 3)

	// Весь остаток в резерве — OUT_OF_STOCK
	if _, err := e.svc.Reserve(ctx, service.ReserveInput{
		SKU: "AV-out", Quantity: 3, CustomerID: 1, OrderID: "ORD-7",
	}); err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	result, err := e.svc.CheckAvailability(ctx, 1, []string{"AV-ok", "AV-low", "AV-out", "AV-missing"})
	if err != nil {
		t.Fatalf("CheckAvailability: %v", err)
	}
	if len(result.Products) != 3 {
		t.Fatalf("expected 3 products (missing sku skipped), got %d", len(result.Products))
	}

	byStatus := map[string]service.AvailabilityStatus{}
	for _, p := range result.Products {
		byStatus[p.SKU] = p.Status
	}
	if byStatus["AV-ok"] != service.StatusAvailable {
		t.Fatalf("AV-ok: expected AVAILABLE, got %s", byStatus["AV-ok"])
	}
	if byStatus["AV-low"] != service.StatusLowStock {
		t.Fatalf("AV-low: expected LOW_STOCK, got %s", byStatus["AV-low"])
	}
	if byStatus["AV-out"] != service.StatusOutOfStock {
		t.Fatalf("AV-out: expected OUT_OF_STOCK, got %s", byStatus["AV-out"])
	}
}

func TestConfirm_PublishesLowStockEvent(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	// current=12, safety=10: после продажи 3 штук остаток падает ниже safety
	e.addStock(t, "LSE-001", 1, 12)
	handle, err := e.svc.Reserve(ctx, service.ReserveInput{
		SKU: "LSE-001", Quantity: 3, CustomerID: 1, OrderID: "ORD-8",
	})
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if e.bus.lowStockCount() != 0 {
		t.Fatal("low stock event published too early")
	}

	if err := e.svc.ConfirmReservation(ctx, handle.ReservationID); err != nil {
		t.Fatalf("ConfirmReservation: %v", err)
	}
	if e.bus.lowStockCount() != 1 {
		t.Fatalf("expected 1 low stock event, got %d", e.bus.lowStockCount())
	}

	e.bus.mu.Lock()
	ev := e.bus.lowStock[0]
	e.bus.mu.Unlock()
	if ev.SKU != "LSE-001" || ev.CurrentStock != 9 || ev.SafetyStock != 10 {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestItemsNeedingReplenishment(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	e.addStock(t, "REP-low", 1, 5)    // <= 10
	e.addStock(t, "REP-near", 1, 14)  // <= 10 * 1.5
	e.addStock(t, "REP-ok", 1, 200)

	low, err := e.svc.LowStockItems(ctx, 1)
	if err != nil {
		t.Fatalf("LowStockItems: %v", err)
	}
	if len(low) != 1 || low[0].SKU != "REP-low" {
		t.Fatalf("expected only REP-low, got %+v", low)
	}

	need, err := e.svc.ItemsNeedingReplenishment(ctx, 1)
	if err != nil {
		t.Fatalf("ItemsNeedingReplenishment: %v", err)
	}
	if len(need) != 2 {
		t.Fatalf("expected 2 items, got %d", len(need))
	}
}
