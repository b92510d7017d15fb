package orders

import "time"

// CreateOrderRequest carries the fields for a new draft order.
type CreateOrderRequest struct {
	CustomerID     *int64                   `json:"customer_id,omitempty"`
	DiscountAmount float64                  `json:"discount_amount" validate:"gte=0"`
	Notes          *string                  `json:"notes,omitempty"`
	Items          []CreateOrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

// CreateOrderItemRequest is one requested line. When UnitPrice is omitted
// the product's list price applies.
type CreateOrderItemRequest struct {
	ProductID int64    `json:"product_id" validate:"required,gt=0"`
	Quantity  float64  `json:"quantity" validate:"required,gt=0"`
	UnitPrice *float64 `json:"unit_price,omitempty" validate:"omitempty,gte=0"`
}

// UpdateOrderRequest mutates customer and notes only; items and totals are
// frozen after creation.
type UpdateOrderRequest struct {
	CustomerID *int64  `json:"customer_id,omitempty"`
	Notes      *string `json:"notes,omitempty"`
}

// UpdateStatusRequest moves an order along the transition graph.
type UpdateStatusRequest struct {
	Status Status `json:"status" validate:"required"`
}

// ListOrdersRequest filters the order listing.
type ListOrdersRequest struct {
	CompanyID  int64
	CustomerID int64
	Status     Status
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}
