package models

import "time"

// Event types
const (
	EventTypeSaleRecorded = "SALE_RECORDED"
	EventTypeItemListed   = "ITEM_LISTED"
	EventTypeItemDeleted  = "ITEM_DELETED"
	EventTypeUserCreated  = "USER_CREATED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// SaleItemData represents a line-item snapshot carried in events
type SaleItemData struct {
	ItemID  string  `json:"item_id"`
	Article string  `json:"article"`
	Depot   string  `json:"depot"`
	Price   float64 `json:"price"`
}

// SaleRecordedEvent published after a sale's receipt is durable. Consumers
// must tolerate the catalogue update still being in flight (or failed).
type SaleRecordedEvent struct {
	BaseEvent
	ReceiptID        string         `json:"receipt_id"`
	ActorID          string         `json:"actor_id"`
	Role             string         `json:"role"`
	Total            float64        `json:"total"`
	Items            []SaleItemData `json:"items"`
	CatalogueUpdated bool           `json:"catalogue_updated"`
}

// ItemListedEvent published when an item enters the catalogue
type ItemListedEvent struct {
	BaseEvent
	ItemID   string  `json:"item_id"`
	Article  string  `json:"article"`
	Depot    string  `json:"depot"`
	Price    float64 `json:"price"`
	SellerID string  `json:"seller_id,omitempty"`
}

// ItemDeletedEvent published when items are removed from the catalogue
type ItemDeletedEvent struct {
	BaseEvent
	ItemIDs []string `json:"item_ids"`
}

// UserCreatedEvent published when a new user is registered
type UserCreatedEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}
