package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/zeineb-manai/depot-vente/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing domain events. Publishing is
// best-effort everywhere it is used: a failed publish is logged and never
// fails the store operation it follows.
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishSaleRecorded publishes a SaleRecorded event
func (ep *EventPublisher) PublishSaleRecorded(ctx context.Context, event *models.SaleRecordedEvent) error {
	key := fmt.Sprintf("receipt-%s", event.ReceiptID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishItemListed publishes an ItemListed event
func (ep *EventPublisher) PublishItemListed(ctx context.Context, event *models.ItemListedEvent) error {
	key := fmt.Sprintf("item-%s", event.ItemID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishItemDeleted publishes an ItemDeleted event
func (ep *EventPublisher) PublishItemDeleted(ctx context.Context, event *models.ItemDeletedEvent) error {
	return ep.producer.PublishEvent(ctx, event.EventID, event)
}

// PublishUserCreated publishes a UserCreated event
func (ep *EventPublisher) PublishUserCreated(ctx context.Context, event *models.UserCreatedEvent) error {
	key := fmt.Sprintf("user-%s", event.UserID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler routes incoming events to registered handlers
type EventHandler struct {
	onSaleRecorded func(context.Context, *models.SaleRecordedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnSaleRecorded registers a handler for SaleRecorded events
func (eh *EventHandler) OnSaleRecorded(handler func(context.Context, *models.SaleRecordedEvent) error) {
	eh.onSaleRecorded = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	log.Printf("Handling event: type=%s, id=%s", baseEvent.EventType, baseEvent.EventID)

	switch baseEvent.EventType {
	case models.EventTypeSaleRecorded:
		if eh.onSaleRecorded != nil {
			var event models.SaleRecordedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal SaleRecorded event: %w", err)
			}
			return eh.onSaleRecorded(ctx, &event)
		}

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}
