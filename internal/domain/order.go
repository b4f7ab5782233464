package domain

import "time"

// OrderType indicates the time-in-force policy.
type OrderType string

const (
	OrderTypeGTC OrderType = "GTC" // Good-Till-Cancelled
	OrderTypeFOK OrderType = "FOK" // Fill-Or-Kill
	OrderTypeIOC OrderType = "IOC" // Immediate-Or-Cancel
)

// OrderStatus tracks the order lifecycle.
//
// PENDING -> OPEN | FAILED
// OPEN    -> PARTIAL | FILLED | CANCELLED
// PARTIAL -> FILLED | CANCELLED
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusOpen      OrderStatus = "OPEN"
	OrderStatusPartial   OrderStatus = "PARTIAL"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusFailed    OrderStatus = "FAILED"
)

// Terminal reports whether no further transitions are possible.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusFilled || s == OrderStatusCancelled || s == OrderStatusFailed
}

// Order is one of our CLOB orders, live or simulated.
type Order struct {
	ID          string
	TokenID     string
	ConditionID string
	Side        TradeSide
	Size        float64 // shares
	Price       float64
	FilledSize  float64
	Status      OrderStatus
	Type        OrderType
	Paper       bool
	Error       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OrderResult wraps the CLOB response after order submission.
type OrderResult struct {
	Success bool
	OrderID string
	Status  OrderStatus
	Message string
}
