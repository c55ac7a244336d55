package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domcart "github.com/stitchmall/ordercore/internal/domain/cart"
	domorder "github.com/stitchmall/ordercore/internal/domain/order"
	domoutbox "github.com/stitchmall/ordercore/internal/domain/outbox"
	"github.com/stitchmall/ordercore/internal/observability"
	"github.com/stitchmall/ordercore/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	orderService = "order-service"

	ucCreate          = "order.create"
	ucCancel          = "order.cancel"
	ucGet             = "order.get"
	ucListMine        = "order.list_mine"
	ucListAll         = "order.list_all"
	ucUpdateStatus    = "order.update_status"
	ucStartShipping   = "order.start_shipping"
	ucCompleteDeliver = "order.complete_delivery"
	ucCompletePayment = "order.complete_payment"

	spanPrefix     = "UC."
	publishPeer    = "outbox"
	publishTimeout = 300 * time.Millisecond
)

var (
	ErrNotFound   = domorder.ErrNotFound
	ErrConflict   = domorder.ErrConflict
	ErrRepository = errors.New("order: repository failure")
)

// Service is the order lifecycle manager. It orchestrates the cart snapshot,
// the inventory ledger, the payment verifier, and the number allocator into
// the saga-like create flow, and owns every status transition afterwards.
type Service struct {
	orders    domorder.Repository
	carts     domcart.Repository
	ledger    InventoryLedger
	verifier  Verifier
	allocator NumberAllocator
	ids       IDGenerator
	publisher domoutbox.Publisher
	tel       observability.Observability

	log observability.Logger

	reqCounter      observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram    observability.Histogram // usecase_duration_seconds{use_case}
	extCounter      observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram    observability.Histogram // external_request_duration_seconds{peer,endpoint}
	rollbackCounter observability.Counter   // stock_rollback_failed_total{product_id is too high-cardinality; labelled by stage}
}

// NewService wires the collaborators required by the order lifecycle.
func NewService(
	orders domorder.Repository,
	carts domcart.Repository,
	ledger InventoryLedger,
	verifier Verifier,
	allocator NumberAllocator,
	ids IDGenerator,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *Service {
	if tel == nil {
		tel = observability.Nop()
	}
	baseLog := tel.Logger().With(observability.F("service", orderService))
	metrics := tel.Metrics()

	return &Service{
		orders:          orders,
		carts:           carts,
		ledger:          ledger,
		verifier:        verifier,
		allocator:       allocator,
		ids:             ids,
		publisher:       publisher,
		tel:             tel,
		log:             baseLog,
		reqCounter:      metrics.Counter(observability.MUsecaseRequests),
		durHistogram:    metrics.Histogram(observability.MUsecaseDuration),
		extCounter:      metrics.Counter(observability.MExternalRequests),
		extHistogram:    metrics.Histogram(observability.MExternalRequestDuration),
		rollbackCounter: metrics.Counter(observability.MStockRollbackFailures),
	}
}

// begin opens a use-case span and returns a completion func that records the
// span status, RED metrics, and the use_case_done log line.
func (s *Service) begin(ctx context.Context, useCase string, attrs ...attribute.KeyValue) (context.Context, observability.Logger, func(err error)) {
	logger := logctx.FromOr(ctx, s.log).With(observability.F("use_case", useCase))

	attrs = append(attrs, attribute.String("use_case", useCase))
	ctx, span := s.tel.Tracer().Start(ctx, spanPrefix+useCase, attrs...)
	start := time.Now()

	done := func(err error) {
		lat := time.Since(start).Seconds()
		outcome := "success"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "OK")
		}
		span.End()

		s.reqCounter.Add(1,
			observability.L("use_case", useCase),
			observability.L("outcome", outcome),
		)
		s.durHistogram.Observe(lat, observability.L("use_case", useCase))

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("latency_seconds", lat),
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)
	}

	return ctx, logger, done
}

type CreateOrderInput struct {
	UserID string
	// Lines overrides the cart snapshot when non-empty. The default path
	// orders whatever is in the user's cart.
	Lines         []domcart.Line
	Shipping      domorder.ShippingInfo
	Method        domorder.PaymentMethod
	TransactionID string
}

type reservation struct {
	productID string
	quantity  int
}

// CreateOrder runs the create saga: snapshot, reserve per line, verify
// payment, allocate a number, persist, then clear the cart. Any failure after
// a reservation triggers a compensating release of everything reserved so far.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (_ *domorder.Order, err error) {
	ctx, logger, done := s.begin(ctx, ucCreate,
		attribute.String("order.user_id", input.UserID),
	)
	defer func() { done(err) }()

	if input.UserID == "" {
		return nil, newValidation("user_id", "user id is required")
	}
	if !domorder.ValidPaymentMethod(input.Method) {
		return nil, newValidation("payment_method", "payment method is not valid")
	}
	if verr := validateShipping(input.Shipping); verr != nil {
		return nil, verr
	}

	lines := input.Lines
	if len(lines) == 0 {
		snapshot, cartErr := s.carts.Get(ctx, input.UserID)
		if cartErr != nil && !errors.Is(cartErr, domcart.ErrNotFound) {
			return nil, fmt.Errorf("order: cart snapshot: %w", cartErr)
		}
		if snapshot != nil {
			lines = snapshot.Lines
		}
	}
	if len(lines) == 0 {
		return nil, domcart.ErrEmpty
	}
	if verr := validateLines(lines); verr != nil {
		return nil, verr
	}

	// Reserve stock per line, deriving the price from the catalog at
	// reservation time. Client-supplied prices are never trusted.
	var (
		items      []domorder.LineItem
		reserved   []reservation
		itemsTotal int64
	)
	for _, line := range lines {
		p, perr := s.ledger.Product(ctx, line.ProductID)
		if perr != nil {
			s.rollbackReservations(ctx, logger, reserved)
			return nil, perr
		}

		if _, rerr := s.ledger.Reserve(ctx, line.ProductID, line.Quantity); rerr != nil {
			s.rollbackReservations(ctx, logger, reserved)
			return nil, rerr
		}
		reserved = append(reserved, reservation{productID: line.ProductID, quantity: line.Quantity})

		subtotal := p.Price * int64(line.Quantity)
		itemsTotal += subtotal
		items = append(items, domorder.LineItem{
			ProductID:    line.ProductID,
			Quantity:     line.Quantity,
			SelectedSize: strings.ToUpper(strings.TrimSpace(line.SelectedSize)),
			PriceAtOrder: p.Price,
			Subtotal:     subtotal,
		})
	}

	// Payment verification decides the initial status: a verified payment or
	// a method without online settlement confirms the order; a sanctioned
	// verification skip leaves it pending.
	pay := domorder.Payment{Method: input.Method, Status: domorder.PaymentPending}
	status := domorder.StatusConfirmed
	if input.TransactionID != "" {
		verified, verr := s.verifier.Verify(ctx, input.TransactionID, itemsTotal)
		if verr != nil {
			s.rollbackReservations(ctx, logger, reserved)
			return nil, verr
		}
		pay.TransactionID = input.TransactionID
		if verified != nil {
			now := time.Now().UTC()
			pay.Status = domorder.PaymentCompleted
			pay.PaidAt = &now
		} else {
			status = domorder.StatusPending
		}
	}

	orderNumber, aerr := s.allocator.Allocate(ctx)
	if aerr != nil {
		s.rollbackReservations(ctx, logger, reserved)
		return nil, aerr
	}

	entity, derr := domorder.New(s.ids.NewID(), orderNumber, input.UserID, items, input.Shipping, pay, status)
	if derr != nil {
		s.rollbackReservations(ctx, logger, reserved)
		return nil, fmt.Errorf("order: construct: %w", derr)
	}

	if ierr := s.orders.Insert(ctx, entity); ierr != nil {
		s.rollbackReservations(ctx, logger, reserved)
		return nil, wrapRepositoryError(ierr)
	}

	logger.Info("order_created",
		observability.F("order_id", entity.ID),
		observability.F("order_number", entity.OrderNumber),
		observability.F("items_total", entity.Pricing.ItemsTotal),
		observability.F("status", string(entity.Status)),
	)

	// Post-commit side effects. The order is durable; neither a failed cart
	// clear nor a failed event publish may fail the result.
	if cerr := s.carts.Clear(ctx, input.UserID); cerr != nil && !errors.Is(cerr, domcart.ErrNotFound) {
		logger.Warn("cart_clear_failed",
			observability.F("user_id", input.UserID),
			observability.F("error", cerr.Error()),
		)
	}
	s.publish(ctx, logger, domorder.NewOrderCreatedEvent(entity))

	return entity, nil
}

// GetOrder returns an order visible to the requester: its owner or an admin.
func (s *Service) GetOrder(ctx context.Context, orderID string, req Requester) (_ *domorder.Order, err error) {
	ctx, _, done := s.begin(ctx, ucGet, attribute.String("order.id", orderID))
	defer func() { done(err) }()

	if orderID == "" {
		return nil, newValidation("order_id", "order id is required")
	}
	entity, gerr := s.orders.Get(ctx, orderID)
	if gerr != nil {
		return nil, wrapRepositoryError(gerr)
	}
	if !req.CanAccess(entity.UserID) {
		return nil, ErrPermissionDenied
	}
	return entity, nil
}

// ListMyOrders returns the requester's own orders, newest first.
func (s *Service) ListMyOrders(ctx context.Context, userID string) (_ []*domorder.Order, err error) {
	ctx, _, done := s.begin(ctx, ucListMine)
	defer func() { done(err) }()

	if userID == "" {
		return nil, newValidation("user_id", "user id is required")
	}
	orders, lerr := s.orders.ListByUser(ctx, userID)
	if lerr != nil {
		return nil, wrapRepositoryError(lerr)
	}
	return orders, nil
}

// ListAllOrders returns every order. Admin only.
func (s *Service) ListAllOrders(ctx context.Context, req Requester) (_ []*domorder.Order, err error) {
	ctx, _, done := s.begin(ctx, ucListAll)
	defer func() { done(err) }()

	if !req.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	orders, lerr := s.orders.ListAll(ctx)
	if lerr != nil {
		return nil, wrapRepositoryError(lerr)
	}
	return orders, nil
}

// CancelOrder cancels a non-terminal order and releases its reserved stock.
// The cancelled status is persisted before stock is released: the
// compare-and-set update is what keeps two racing cancels from releasing
// twice, and stock was reserved at creation regardless of payment status.
func (s *Service) CancelOrder(ctx context.Context, orderID string, req Requester, reason string) (_ *domorder.Order, err error) {
	ctx, logger, done := s.begin(ctx, ucCancel, attribute.String("order.id", orderID))
	defer func() { done(err) }()

	if orderID == "" {
		return nil, newValidation("order_id", "order id is required")
	}
	if reason == "" {
		reason = "customer request"
	}

	entity, gerr := s.orders.Get(ctx, orderID)
	if gerr != nil {
		return nil, wrapRepositoryError(gerr)
	}
	if !req.CanAccess(entity.UserID) {
		return nil, ErrPermissionDenied
	}

	previous := entity.Status
	if terr := entity.Cancel(reason); terr != nil {
		return nil, terr
	}
	if uerr := s.orders.Update(ctx, entity, previous); uerr != nil {
		if errors.Is(uerr, domorder.ErrConflict) {
			// A concurrent transition won; re-check against the stored state.
			return nil, domorder.ErrInvalidStateTransition
		}
		return nil, wrapRepositoryError(uerr)
	}

	for _, item := range entity.Items {
		if _, rerr := s.ledger.Release(ctx, item.ProductID, item.Quantity); rerr != nil {
			// Orphaned reservation: flag for manual reconciliation.
			logger.Error("stock_release_failed",
				observability.F("order_id", entity.ID),
				observability.F("product_id", item.ProductID),
				observability.F("quantity", item.Quantity),
				observability.F("error", rerr.Error()),
			)
			s.rollbackCounter.Add(1, observability.L("stage", "cancel"))
		}
	}

	logger.Info("order_cancelled",
		observability.F("order_id", entity.ID),
		observability.F("reason", reason),
	)
	s.publish(ctx, logger, domorder.NewOrderCancelledEvent(entity))

	return entity, nil
}

// UpdateStatus applies an operator-driven status change. Admin only.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, status domorder.Status, req Requester) (_ *domorder.Order, err error) {
	ctx, _, done := s.begin(ctx, ucUpdateStatus,
		attribute.String("order.id", orderID),
		attribute.String("order.target_status", string(status)),
	)
	defer func() { done(err) }()

	if !req.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	if !domorder.ValidStatus(status) {
		return nil, newValidation("status", "order status is not valid")
	}

	entity, gerr := s.orders.Get(ctx, orderID)
	if gerr != nil {
		return nil, wrapRepositoryError(gerr)
	}
	previous := entity.Status
	if terr := entity.SetStatus(status); terr != nil {
		return nil, terr
	}
	if uerr := s.orders.Update(ctx, entity, previous); uerr != nil {
		if errors.Is(uerr, domorder.ErrConflict) {
			return nil, domorder.ErrInvalidStateTransition
		}
		return nil, wrapRepositoryError(uerr)
	}
	return entity, nil
}

// StartShipping records tracking info and moves a preparing order to shipping. Admin only.
func (s *Service) StartShipping(ctx context.Context, orderID, carrier, trackingNumber string, req Requester) (_ *domorder.Order, err error) {
	ctx, logger, done := s.begin(ctx, ucStartShipping, attribute.String("order.id", orderID))
	defer func() { done(err) }()

	if !req.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	if carrier == "" {
		return nil, newValidation("carrier", "carrier is required")
	}
	if trackingNumber == "" {
		return nil, newValidation("tracking_number", "tracking number is required")
	}

	entity, gerr := s.orders.Get(ctx, orderID)
	if gerr != nil {
		return nil, wrapRepositoryError(gerr)
	}
	previous := entity.Status
	if terr := entity.StartShipping(carrier, trackingNumber); terr != nil {
		return nil, terr
	}
	if uerr := s.orders.Update(ctx, entity, previous); uerr != nil {
		if errors.Is(uerr, domorder.ErrConflict) {
			return nil, domorder.ErrInvalidStateTransition
		}
		return nil, wrapRepositoryError(uerr)
	}

	s.publish(ctx, logger, domorder.NewOrderShippedEvent(entity))
	return entity, nil
}

// CompleteDelivery moves a shipping order to its terminal delivered status. Admin only.
func (s *Service) CompleteDelivery(ctx context.Context, orderID string, req Requester) (_ *domorder.Order, err error) {
	ctx, logger, done := s.begin(ctx, ucCompleteDeliver, attribute.String("order.id", orderID))
	defer func() { done(err) }()

	if !req.IsAdmin() {
		return nil, ErrPermissionDenied
	}

	entity, gerr := s.orders.Get(ctx, orderID)
	if gerr != nil {
		return nil, wrapRepositoryError(gerr)
	}
	previous := entity.Status
	if terr := entity.CompleteDelivery(); terr != nil {
		return nil, terr
	}
	if uerr := s.orders.Update(ctx, entity, previous); uerr != nil {
		if errors.Is(uerr, domorder.ErrConflict) {
			return nil, domorder.ErrInvalidStateTransition
		}
		return nil, wrapRepositoryError(uerr)
	}

	s.publish(ctx, logger, domorder.NewOrderDeliveredEvent(entity))
	return entity, nil
}

// CompletePayment attaches a settled transaction to an order whose payment is
// still pending. Admin only; the transaction ID must not be consumed by any
// other order.
func (s *Service) CompletePayment(ctx context.Context, orderID, transactionID string, req Requester) (_ *domorder.Order, err error) {
	ctx, _, done := s.begin(ctx, ucCompletePayment, attribute.String("order.id", orderID))
	defer func() { done(err) }()

	if !req.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	if transactionID == "" {
		return nil, newValidation("transaction_id", "transaction id is required")
	}

	existing, ferr := s.orders.FindByTransactionID(ctx, transactionID)
	if ferr != nil && !errors.Is(ferr, domorder.ErrNotFound) {
		return nil, wrapRepositoryError(ferr)
	}
	if existing != nil && existing.ID != orderID {
		return nil, domorder.ErrDuplicateTransaction
	}

	entity, gerr := s.orders.Get(ctx, orderID)
	if gerr != nil {
		return nil, wrapRepositoryError(gerr)
	}
	previous := entity.Status
	if terr := entity.CompletePayment(transactionID); terr != nil {
		return nil, terr
	}
	if uerr := s.orders.Update(ctx, entity, previous); uerr != nil {
		if errors.Is(uerr, domorder.ErrConflict) {
			return nil, domorder.ErrInvalidStateTransition
		}
		return nil, wrapRepositoryError(uerr)
	}
	return entity, nil
}

// rollbackReservations is the compensating action for an aborted create. A
// release that itself fails leaves an orphaned reservation, which is logged
// for manual reconciliation rather than silently dropped.
func (s *Service) rollbackReservations(ctx context.Context, logger observability.Logger, reserved []reservation) {
	for _, r := range reserved {
		if _, err := s.ledger.Release(ctx, r.productID, r.quantity); err != nil {
			logger.Error("stock_rollback_failed",
				observability.F("product_id", r.productID),
				observability.F("quantity", r.quantity),
				observability.F("error", err.Error()),
			)
			s.rollbackCounter.Add(1, observability.L("stage", "create"))
		}
	}
}

// publish sends a lifecycle event with a bounded timeout. Post-commit only;
// failures are logged and counted, never returned.
func (s *Service) publish(ctx context.Context, logger observability.Logger, e domoutbox.Event) {
	if s.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	start := time.Now()
	outcome := "success"
	if err := s.publisher.Publish(pubCtx, e); err != nil {
		outcome = "error"
		logger.Warn("event_publish_failed",
			observability.F("event", e.EventName()),
			observability.F("error", err.Error()),
		)
	}

	s.extCounter.Add(1,
		observability.L("peer", publishPeer),
		observability.L("endpoint", e.EventName()),
		observability.L("outcome", outcome),
	)
	s.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", publishPeer),
		observability.L("endpoint", e.EventName()),
	)
}

func wrapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domorder.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, domorder.ErrDuplicateTransaction):
		return domorder.ErrDuplicateTransaction
	case errors.Is(err, domorder.ErrConflict):
		return ErrConflict
	default:
		return fmt.Errorf("%w: %w", ErrRepository, err)
	}
}
