package tablegroup

import "time"

// OrderClosedEvent is the envelope published when a group checks out. The
// product service's inventory listener consumes it to deduct stock.
type OrderClosedEvent struct {
	EventID   string             `json:"event_id"`
	EventType string             `json:"event_type"`
	Payload   OrderClosedPayload `json:"payload"`
	Timestamp time.Time          `json:"timestamp"`
}

type OrderClosedPayload struct {
	ID           string             `json:"id"`
	RestaurantID string             `json:"merchant_id"`
	StoreID      string             `json:"store_id"`
	ServerID     string             `json:"server_id"`
	TableIDs     []string           `json:"table_ids"`
	Items        []OrderItemPayload `json:"items"`
	Total        float64            `json:"total"`
}

type OrderItemPayload struct {
	ProductID string  `json:"product_id"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	LineTotal float64 `json:"line_total"`
}

const EventTypeOrderClosed = "OrderClosed"
