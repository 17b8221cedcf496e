// Package events publishes order lifecycle events to Kafka for downstream
// consumers (notifications, analytics). Publishing is best effort: the
// service logs failures and never fails a request over them.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"shopflow-backend/internal/config"
	"shopflow-backend/internal/entities"

	"github.com/segmentio/kafka-go"
)

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
)

type orderEvent struct {
	Event      string  `json:"event"`
	OrderID    string  `json:"order_id"`
	OrderCode  string  `json:"order_code"`
	OwnerID    string  `json:"owner_id"`
	Status     string  `json:"status"`
	PrevStatus string  `json:"prev_status,omitempty"`
	Total      float64 `json:"total"`
	OccurredAt int64   `json:"occurred_at"`
}

type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(cfg config.Kafka) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: cfg.BatchTimeout,
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (p *Publisher) OrderCreated(ctx context.Context, order entities.Order) error {
	return p.write(ctx, orderEvent{
		Event:      EventOrderCreated,
		OrderID:    order.ID,
		OrderCode:  order.Code,
		OwnerID:    order.OwnerID,
		Status:     string(order.Status),
		Total:      order.Pricing.Total,
		OccurredAt: time.Now().Unix(),
	})
}

func (p *Publisher) OrderStatusChanged(ctx context.Context, order entities.Order, from entities.Status) error {
	return p.write(ctx, orderEvent{
		Event:      EventOrderStatusChanged,
		OrderID:    order.ID,
		OrderCode:  order.Code,
		OwnerID:    order.OwnerID,
		Status:     string(order.Status),
		PrevStatus: string(from),
		Total:      order.Pricing.Total,
		OccurredAt: time.Now().Unix(),
	})
}

func (p *Publisher) write(ctx context.Context, event orderEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.OrderID),
		Value: value,
	})
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
