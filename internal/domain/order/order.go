package order

import (
	"errors"
	"time"
)

var (
	ErrNotFound             = errors.New("order: not found")
	ErrConflict             = errors.New("order: conflict")
	ErrDuplicateTransaction = errors.New("order: transaction already consumed")
	ErrNoItems              = errors.New("order: at least one line item is required")
	ErrInvalidQuantity      = errors.New("order: quantity must be between 1 and 99")
	ErrInvalidAmount        = errors.New("order: amount must be zero or greater")
	ErrAllocationExhausted  = errors.New("order: order number allocation exhausted")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusPreparing Status = "preparing"
	StatusShipping  Status = "shipping"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// ValidStatus reports whether s is one of the known order statuses.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusPreparing, StatusShipping, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

type PaymentMethod string

const (
	MethodCard           PaymentMethod = "card"
	MethodTransfer       PaymentMethod = "transfer"
	MethodVirtualAccount PaymentMethod = "virtual_account"
	MethodMobile         PaymentMethod = "mobile"
)

// ValidPaymentMethod reports whether m is one of the accepted payment methods.
func ValidPaymentMethod(m PaymentMethod) bool {
	switch m {
	case MethodCard, MethodTransfer, MethodVirtualAccount, MethodMobile:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// LineItem captures a purchased product at order time. PriceAtOrder is frozen
// when the order is created; later catalog price changes do not affect it.
type LineItem struct {
	ProductID    string
	Quantity     int
	SelectedSize string
	PriceAtOrder int64
	Subtotal     int64
}

type ShippingInfo struct {
	RecipientName  string
	RecipientPhone string
	Address        string
	PostalCode     string
	DeliveryNote   string
}

type Payment struct {
	Method        PaymentMethod
	Status        PaymentStatus
	TransactionID string
	PaidAt        *time.Time
}

type Pricing struct {
	ItemsTotal int64
	FinalTotal int64
}

type Tracking struct {
	Carrier        string
	TrackingNumber string
	ShippedAt      *time.Time
	DeliveredAt    *time.Time
}

type Cancellation struct {
	IsCancelled  bool
	CancelledAt  *time.Time
	CancelReason string
}

type Order struct {
	ID           string
	OrderNumber  string
	UserID       string
	Items        []LineItem
	ShippingInfo ShippingInfo
	Payment      Payment
	Pricing      Pricing
	Status       Status
	Tracking     Tracking
	Cancellation Cancellation
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// New builds an order with its items, pricing, and initial status. Items must
// be non-empty and quantities within range; pricing is derived from the items.
func New(id, orderNumber, userID string, items []LineItem, shipping ShippingInfo, payment Payment, status Status) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	var itemsTotal int64
	for _, item := range items {
		if item.Quantity < 1 || item.Quantity > 99 {
			return nil, ErrInvalidQuantity
		}
		if item.PriceAtOrder < 0 {
			return nil, ErrInvalidAmount
		}
		itemsTotal += item.Subtotal
	}
	if !ValidStatus(status) {
		return nil, ErrInvalidStateTransition
	}

	now := time.Now().UTC()
	return &Order{
		ID:           id,
		OrderNumber:  orderNumber,
		UserID:       userID,
		Items:        append([]LineItem(nil), items...),
		ShippingInfo: shipping,
		Payment:      payment,
		Pricing:      Pricing{ItemsTotal: itemsTotal, FinalTotal: itemsTotal},
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// TotalItems returns the summed quantity across all line items.
func (o *Order) TotalItems() int {
	total := 0
	for _, item := range o.Items {
		total += item.Quantity
	}
	return total
}

// Clone returns a deep copy so repositories can hand out isolated values.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Items = append([]LineItem(nil), o.Items...)
	if o.Payment.PaidAt != nil {
		t := *o.Payment.PaidAt
		clone.Payment.PaidAt = &t
	}
	if o.Tracking.ShippedAt != nil {
		t := *o.Tracking.ShippedAt
		clone.Tracking.ShippedAt = &t
	}
	if o.Tracking.DeliveredAt != nil {
		t := *o.Tracking.DeliveredAt
		clone.Tracking.DeliveredAt = &t
	}
	if o.Cancellation.CancelledAt != nil {
		t := *o.Cancellation.CancelledAt
		clone.Cancellation.CancelledAt = &t
	}
	return &clone
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}
