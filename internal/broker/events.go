package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"shopper-service/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing shopper behavior events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishProductViewed publishes a ProductViewed event
func (ep *EventPublisher) PublishProductViewed(ctx context.Context, event *models.ProductViewedEvent) error {
	key := fmt.Sprintf("product-%d", event.ProductID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishSearchSubmitted publishes a SearchSubmitted event
func (ep *EventPublisher) PublishSearchSubmitted(ctx context.Context, event *models.SearchSubmittedEvent) error {
	key := fmt.Sprintf("session-%s", event.SessionID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishCartMerged publishes a CartMerged event
func (ep *EventPublisher) PublishCartMerged(ctx context.Context, event *models.CartMergedEvent) error {
	key := fmt.Sprintf("user-%d", event.UserID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishCartCleared publishes a CartCleared event
func (ep *EventPublisher) PublishCartCleared(ctx context.Context, event *models.CartClearedEvent) error {
	key := fmt.Sprintf("session-%s", event.SessionID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler routes consumed behavior events to registered handlers
type EventHandler struct {
	onProductViewed func(context.Context, *models.ProductViewedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnProductViewed registers a handler for ProductViewed events
func (eh *EventHandler) OnProductViewed(handler func(context.Context, *models.ProductViewedEvent) error) {
	eh.onProductViewed = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch baseEvent.EventType {
	case models.EventTypeProductViewed:
		if eh.onProductViewed != nil {
			var event models.ProductViewedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal ProductViewed event: %w", err)
			}
			return eh.onProductViewed(ctx, &event)
		}

	default:
		// Other behavior events are published for downstream analytics and
		// have no in-service consumer.
		log.Printf("Skipping event type: %s", baseEvent.EventType)
	}

	return nil
}
