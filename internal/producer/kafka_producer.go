package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"inventory-service/internal/service"

	"github.com/segmentio/kafka-go"
)

// StockEventProducer публикует события движка в Kafka (реализация service.EventBus).
type StockEventProducer struct {
	lowStockWriter *kafka.Writer
	movementWriter *kafka.Writer
}

func NewStockEventProducer(brokers []string, lowStockTopic, movementTopic string) *StockEventProducer {
	return &StockEventProducer{
		lowStockWriter: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        lowStockTopic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
		},
		movementWriter: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        movementTopic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
		},
	}
}

func (p *StockEventProducer) PublishLowStock(ctx context.Context, e service.LowStockEvent) error {
	key := fmt.Sprintf("%d:%s", e.StoreID, e.SKU)
	return publish(ctx, p.lowStockWriter, key, e)
}

func (p *StockEventProducer) PublishStockMovement(ctx context.Context, e service.StockMovementEvent) error {
	key := fmt.Sprintf("%d", e.InventoryItemID)
	return publish(ctx, p.movementWriter, key, e)
}

func publish(ctx context.Context, w *kafka.Writer, key string, payload any) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	value, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
	})
}

func (p *StockEventProducer) Close() error {
	if err := p.lowStockWriter.Close(); err != nil {
		return err
	}
	return p.movementWriter.Close()
}
