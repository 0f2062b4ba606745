package sweeper

import (
	"context"
	"time"

	"inventory-service/internal/repository"
	"inventory-service/internal/service"

	"go.uber.org/zap"
)

const (
	defaultInterval  = 60 * time.Second
	defaultBatchSize = 50
)

// Sweeper периодически отменяет просроченные ACTIVE-брони через тот же путь,
// что и ручной cancel. Ошибки изолируются: одна бронь не роняет пачку,
// пачка не роняет планировщик.
type Sweeper struct {
	repo      *repository.Repository
	svc       service.InventoryService
	log       *zap.Logger
	interval  time.Duration
	batchSize int
	stopCh    chan struct{}
}

func New(repo *repository.Repository, svc service.InventoryService, log *zap.Logger, interval time.Duration, batchSize int) *Sweeper {
	if interval <= 0 {
		interval = defaultInterval
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Sweeper{
		repo:      repo,
		svc:       svc,
		log:       log,
		interval:  interval,
		batchSize: batchSize,
		stopCh:    make(chan struct{}),
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	s.log.Info("starting reservation expiry sweeper",
		zap.Duration("interval", s.interval),
		zap.Int("batch_size", s.batchSize))
	go s.run(ctx)
}

func (s *Sweeper) Stop() {
	s.log.Info("stopping reservation expiry sweeper")
	close(s.stopCh)
}

func (s *Sweeper) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Выполняем сразу при старте
	s.sweep(ctx)

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-s.stopCh:
			s.log.Info("expiry sweeper stopped")
			return
		case <-ctx.Done():
			s.log.Info("expiry sweeper cancelled")
			return
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	expired, err := s.repo.Reservations.ListExpired(ctx, time.Now(), s.batchSize)
	if err != nil {
		s.log.Error("expired reservations query failed", zap.Error(err))
		return
	}
	if len(expired) == 0 {
		return
	}

	cancelled := 0
	for _, res := range expired {
		if err := s.svc.CancelReservation(ctx, res.ReservationID); err != nil {
			s.log.Error("expired reservation cancel failed",
				zap.String("reservation_id", res.ReservationID),
				zap.Error(err))
			continue
		}
		cancelled++
	}
	s.log.Info("expired reservations swept",
		zap.Int("found", len(expired)),
		zap.Int("cancelled", cancelled))
}

// RunOnceNow выполняет один проход немедленно (для тестирования)
func (s *Sweeper) RunOnceNow(ctx context.Context) {
	s.sweep(ctx)
}
