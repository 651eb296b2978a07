package models

import "time"

// Event types
const (
	EventTypeProductViewed   = "PRODUCT_VIEWED"
	EventTypeSearchSubmitted = "SEARCH_SUBMITTED"
	EventTypeCartMerged      = "CART_MERGED"
	EventTypeCartCleared     = "CART_CLEARED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// ProductViewedEvent published when a shopper opens a product page
type ProductViewedEvent struct {
	BaseEvent
	SessionID   string   `json:"session_id"`
	ProductID   int64    `json:"product_id"`
	Brand       string   `json:"brand"`
	ScentFamily []string `json:"scent_family"`
}

// SearchSubmittedEvent published when a shopper submits a search query
type SearchSubmittedEvent struct {
	BaseEvent
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
}

// CartMergedEvent published after a guest cart is merged into an account cart
type CartMergedEvent struct {
	BaseEvent
	SessionID  string `json:"session_id"`
	UserID     int64  `json:"user_id"`
	GuestLines int    `json:"guest_lines"`
	MergedInto int    `json:"merged_into"`
}

// CartClearedEvent published when a cart is emptied
type CartClearedEvent struct {
	BaseEvent
	SessionID string `json:"session_id"`
	UserID    int64  `json:"user_id,omitempty"`
}
