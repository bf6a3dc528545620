package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// MovementType names what happened to a tag or its contents.
type MovementType string

const (
	MovementTagCreated       MovementType = "tag_created"
	MovementTagUpdated       MovementType = "tag_updated"
	MovementTagDeleted       MovementType = "tag_deleted"
	MovementUnitAdded        MovementType = "unit_added"
	MovementUnitRemoved      MovementType = "unit_removed"
	MovementItemAdded        MovementType = "item_added"
	MovementItemRemoved      MovementType = "item_removed"
	MovementTagNested        MovementType = "tag_nested"
	MovementTagDetached      MovementType = "tag_detached"
	MovementIndicatorAdded   MovementType = "indicator_added"
	MovementIndicatorRemoved MovementType = "indicator_removed"
	MovementContentsCleared  MovementType = "contents_cleared"
	MovementContentsMoved    MovementType = "contents_moved"
	MovementTagScanned       MovementType = "tag_scanned"
	MovementUnitScanned      MovementType = "unit_scanned"
	MovementReservationMade  MovementType = "reservation_made"
	MovementReservationFreed MovementType = "reservation_freed"
)

// MovementEvent is one entry on the movement stream. CounterpartTagID is the
// second tag involved in nesting and move events.
type MovementEvent struct {
	Type             MovementType `json:"type"`
	TagID            string       `json:"tag_id,omitempty"`
	CounterpartTagID string       `json:"counterpart_tag_id,omitempty"`
	UnitID           int64        `json:"unit_id,omitempty"`
	ItemKeyID        int64        `json:"item_key_id,omitempty"`
	SerialKeyID      int64        `json:"serial_key_id,omitempty"`
	LotInfoKeyID     int64        `json:"lot_info_key_id,omitempty"`
	IndicatorID      int64        `json:"indicator_id,omitempty"`
	LocationKeyID    int64        `json:"location_key_id,omitempty"`
	Actor            string       `json:"actor,omitempty"`
	OccurredAt       time.Time    `json:"occurred_at"`
}

// Publisher pushes movement events to downstream consumers.
type Publisher interface {
	PublishMovement(ctx context.Context, event MovementEvent) error
}

// RedisPublisher appends movement events to a Redis stream.
type RedisPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
	logger *zap.Logger
}

// NewRedisPublisher creates the stream publisher. maxLen caps the stream
// with approximate trimming; 0 disables trimming.
func NewRedisPublisher(client *redis.Client, stream string, maxLen int64, logger *zap.Logger) *RedisPublisher {
	return &RedisPublisher{
		client: client,
		stream: stream,
		maxLen: maxLen,
		logger: logger,
	}
}

var _ Publisher = (*RedisPublisher)(nil)

// PublishMovement appends one event to the stream.
func (p *RedisPublisher) PublishMovement(ctx context.Context, event MovementEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal movement event: %w", err)
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data":      string(payload),
			"timestamp": event.OccurredAt.Unix(),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to publish movement event: %w", err)
	}

	p.logger.Debug("published movement event",
		zap.String("stream", p.stream),
		zap.String("message_id", id),
		zap.String("type", string(event.Type)))
	return nil
}

// NopPublisher drops every event. Used when Redis is disabled.
type NopPublisher struct{}

var _ Publisher = (*NopPublisher)(nil)

func (NopPublisher) PublishMovement(ctx context.Context, event MovementEvent) error {
	return nil
}
