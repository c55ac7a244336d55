package order

import "time"

// OrderCreatedEvent is a domain event emitted after an order is durably persisted.
type OrderCreatedEvent struct {
	OrderID     string
	OrderNumber string
	UserID      string
	ItemsTotal  int64
	TotalItems  int
	Status      Status
	OccurredAt  time.Time
}

func (OrderCreatedEvent) EventName() string { return "order.created" }

func (e OrderCreatedEvent) EventKey() string { return e.OrderID }

func NewOrderCreatedEvent(o *Order) OrderCreatedEvent {
	return OrderCreatedEvent{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		UserID:      o.UserID,
		ItemsTotal:  o.Pricing.ItemsTotal,
		TotalItems:  o.TotalItems(),
		Status:      o.Status,
		OccurredAt:  time.Now().UTC(),
	}
}

// OrderCancelledEvent is emitted after a cancellation commits, stock already released.
type OrderCancelledEvent struct {
	OrderID     string
	OrderNumber string
	Reason      string
	OccurredAt  time.Time
}

func (OrderCancelledEvent) EventName() string { return "order.cancelled" }

func (e OrderCancelledEvent) EventKey() string { return e.OrderID }

func NewOrderCancelledEvent(o *Order) OrderCancelledEvent {
	return OrderCancelledEvent{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Reason:      o.Cancellation.CancelReason,
		OccurredAt:  time.Now().UTC(),
	}
}

// OrderShippedEvent is emitted when tracking info is recorded and shipping begins.
type OrderShippedEvent struct {
	OrderID        string
	Carrier        string
	TrackingNumber string
	OccurredAt     time.Time
}

func (OrderShippedEvent) EventName() string { return "order.shipped" }

func (e OrderShippedEvent) EventKey() string { return e.OrderID }

func NewOrderShippedEvent(o *Order) OrderShippedEvent {
	return OrderShippedEvent{
		OrderID:        o.ID,
		Carrier:        o.Tracking.Carrier,
		TrackingNumber: o.Tracking.TrackingNumber,
		OccurredAt:     time.Now().UTC(),
	}
}

// OrderDeliveredEvent is emitted when the order reaches its terminal delivered status.
type OrderDeliveredEvent struct {
	OrderID    string
	OccurredAt time.Time
}

func (OrderDeliveredEvent) EventName() string { return "order.delivered" }

func (e OrderDeliveredEvent) EventKey() string { return e.OrderID }

func NewOrderDeliveredEvent(o *Order) OrderDeliveredEvent {
	return OrderDeliveredEvent{
		OrderID:    o.ID,
		OccurredAt: time.Now().UTC(),
	}
}
