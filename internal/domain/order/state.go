package order

import (
	"errors"
	"time"
)

var ErrInvalidStateTransition = errors.New("order: invalid state transition")

// IsTerminal reports whether the order has reached a final status.
func (o *Order) IsTerminal() bool {
	return o.Status == StatusDelivered || o.Status == StatusCancelled
}

// Cancel moves the order to cancelled and records the reason. Delivered and
// already-cancelled orders cannot be cancelled again, which also keeps the
// compensating stock release from running twice.
func (o *Order) Cancel(reason string) error {
	if o.IsTerminal() {
		return ErrInvalidStateTransition
	}

	now := time.Now().UTC()
	o.Status = StatusCancelled
	o.Cancellation.IsCancelled = true
	o.Cancellation.CancelledAt = &now
	o.Cancellation.CancelReason = reason
	o.Payment.Status = PaymentRefunded
	o.touch()
	return nil
}

// StartShipping moves a preparing order to shipping and records the tracking info.
func (o *Order) StartShipping(carrier, trackingNumber string) error {
	if o.Status != StatusPreparing {
		return ErrInvalidStateTransition
	}

	now := time.Now().UTC()
	o.Status = StatusShipping
	o.Tracking.Carrier = carrier
	o.Tracking.TrackingNumber = trackingNumber
	o.Tracking.ShippedAt = &now
	o.touch()
	return nil
}

// CompleteDelivery moves a shipping order to delivered.
func (o *Order) CompleteDelivery() error {
	if o.Status != StatusShipping {
		return ErrInvalidStateTransition
	}

	now := time.Now().UTC()
	o.Status = StatusDelivered
	o.Tracking.DeliveredAt = &now
	o.touch()
	return nil
}

// CompletePayment records an offline/after-the-fact payment confirmation.
// A confirmed order with a pending payment is a reachable state; this closes
// it. Terminal orders are excluded: a cancelled order has already refunded
// and released its stock, so confirming it again would strand the reservation.
func (o *Order) CompletePayment(transactionID string) error {
	if o.IsTerminal() {
		return ErrInvalidStateTransition
	}
	if o.Payment.Status == PaymentCompleted {
		return ErrInvalidStateTransition
	}

	now := time.Now().UTC()
	o.Payment.Status = PaymentCompleted
	o.Payment.PaidAt = &now
	o.Payment.TransactionID = transactionID
	o.Status = StatusConfirmed
	o.touch()
	return nil
}

// SetStatus applies an operator-driven status change. Only pending and
// confirmed orders may be moved this way, and only toward fulfilment states.
// Cancellation is not a bare status flip: it refunds the payment and releases
// reserved stock, so it must go through Cancel.
func (o *Order) SetStatus(target Status) error {
	if !ValidStatus(target) {
		return ErrInvalidStateTransition
	}
	if o.Status != StatusPending && o.Status != StatusConfirmed {
		return ErrInvalidStateTransition
	}
	switch target {
	case StatusPreparing, StatusShipping, StatusDelivered:
		o.Status = target
		o.touch()
		return nil
	default:
		return ErrInvalidStateTransition
	}
}
