package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	StreamPriceChanges = "pricescout:price-changes"

	EventPriceChanged   = "PRICE_CHANGED"
	EventThresholdCross = "THRESHOLD_CROSSED"
)

// RedisClient interface for Redis operations (for testing)
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
	Close() error
}

// PriceChange describes one observed price movement for a tracked product.
type PriceChange struct {
	ProductID     uuid.UUID `json:"product_id"`
	UserID        uuid.UUID `json:"user_id"`
	Title         string    `json:"title"`
	URL           string    `json:"url"`
	Site          string    `json:"site"`
	PreviousPrice float64   `json:"previous_price"`
	CurrentPrice  float64   `json:"current_price"`
	Threshold     float64   `json:"threshold,omitempty"`
}

// Publisher writes price events to a Redis stream.
type Publisher struct {
	redis  RedisClient
	logger *slog.Logger
	stream string
}

func NewPublisher(client RedisClient, logger *slog.Logger) *Publisher {
	return &Publisher{
		redis:  client,
		logger: logger.With("component", "events"),
		stream: StreamPriceChanges,
	}
}

// PublishPriceChange emits a PRICE_CHANGED event, or THRESHOLD_CROSSED
// when the new price dropped to or below the user's threshold.
func (p *Publisher) PublishPriceChange(ctx context.Context, change PriceChange) error {
	eventType := EventPriceChanged
	if change.Threshold > 0 && change.CurrentPrice <= change.Threshold {
		eventType = EventThresholdCross
	}

	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	eventID := uuid.New()
	err = p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"id":        eventID.String(),
			"type":      eventType,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"payload":   string(payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Info("event published",
		"event_id", eventID,
		"event_type", eventType,
		"product_id", change.ProductID,
		"current_price", change.CurrentPrice)

	return nil
}

func (p *Publisher) Close() error {
	return p.redis.Close()
}
