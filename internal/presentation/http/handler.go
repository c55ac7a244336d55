package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	apporder "github.com/stitchmall/ordercore/internal/application/order"
	domcart "github.com/stitchmall/ordercore/internal/domain/cart"
	domorder "github.com/stitchmall/ordercore/internal/domain/order"
	dompayment "github.com/stitchmall/ordercore/internal/domain/payment"
	domproduct "github.com/stitchmall/ordercore/internal/domain/product"
	"github.com/stitchmall/ordercore/internal/observability"
	"github.com/stitchmall/ordercore/internal/observability/logctx"
)

type Handler struct {
	orders *apporder.Service
	log    observability.Logger
	tel    observability.Observability
}

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
	headerUserID         = "X-User-ID"
	headerUserRole       = "X-User-Role"
)

func NewHandler(orderSvc *apporder.Service, logger observability.Logger, tel observability.Observability) *Handler {
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = observability.NopLogger()
	}
	return &Handler{
		orders: orderSvc,
		log:    baseLogger.With(observability.F("component", componentHTTPHandler)),
		tel:    tel,
	}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	// Wire each route with middlewares:
	// Trace → ObservabilityMiddleware (request logger) → Access log → Handler
	h.muxHandle(mux, "POST /api/orders", h.handleCreateOrder)
	h.muxHandle(mux, "GET /api/orders", h.handleListMyOrders)
	h.muxHandle(mux, "GET /api/orders/admin/all", h.handleListAllOrders)
	h.muxHandle(mux, "GET /api/orders/{id}", h.handleGetOrder)
	h.muxHandle(mux, "PATCH /api/orders/{id}/cancel", h.handleCancelOrder)
	h.muxHandle(mux, "PATCH /api/orders/{id}/status", h.handleUpdateStatus)
	h.muxHandle(mux, "PATCH /api/orders/{id}/shipping", h.handleStartShipping)
	h.muxHandle(mux, "PATCH /api/orders/{id}/delivery", h.handleCompleteDelivery)
	h.muxHandle(mux, "PATCH /api/orders/{id}/payment", h.handleCompletePayment)
	h.muxHandle(mux, "GET /health", h.handleHealth)

	return mux
}

func (h *Handler) muxHandle(mux *http.ServeMux, pattern string, handler http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		// Store stable route template for low-cardinality labels
		ctx := contextWithRoute(r.Context(), pattern)
		r = r.WithContext(ctx)

		wrapped := h.withTrace(
			ObservabilityMiddleware(
				logctx.FromOr(ctx, h.log),
				func(r *http.Request) string {
					return r.Header.Get(headerRequestID)
				},
				h.tel,
			)(
				h.withAccessLog(http.HandlerFunc(handler)),
			),
		)
		wrapped.ServeHTTP(w, r)
	})
}

// requesterFrom builds the caller identity from headers set by the gateway's
// auth layer. An empty user ID means the request is unauthenticated.
func requesterFrom(r *http.Request) (apporder.Requester, bool) {
	userID := r.Header.Get(headerUserID)
	if userID == "" {
		return apporder.Requester{}, false
	}
	role := apporder.RoleCustomer
	if r.Header.Get(headerUserRole) == string(apporder.RoleAdmin) {
		role = apporder.RoleAdmin
	}
	return apporder.Requester{UserID: userID, Role: role}, true
}

type orderLineRequest struct {
	ProductID    string `json:"product_id"`
	Quantity     int    `json:"quantity"`
	SelectedSize string `json:"selected_size,omitempty"`
}

type shippingRequest struct {
	RecipientName  string `json:"recipient_name"`
	RecipientPhone string `json:"recipient_phone"`
	Address        string `json:"address"`
	PostalCode     string `json:"postal_code,omitempty"`
	DeliveryNote   string `json:"delivery_note,omitempty"`
}

type createOrderRequest struct {
	Items         []orderLineRequest `json:"items,omitempty"`
	Shipping      shippingRequest    `json:"shipping"`
	PaymentMethod string             `json:"payment_method"`
	TransactionID string             `json:"transaction_id,omitempty"`
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeAuthenticated(w, r)
	if !ok {
		return
	}

	var body createOrderRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	lines := make([]domcart.Line, 0, len(body.Items))
	for _, item := range body.Items {
		lines = append(lines, domcart.Line{
			ProductID:    item.ProductID,
			Quantity:     item.Quantity,
			SelectedSize: item.SelectedSize,
		})
	}

	order, err := h.orders.CreateOrder(r.Context(), apporder.CreateOrderInput{
		UserID: req.UserID,
		Lines:  lines,
		Shipping: domorder.ShippingInfo{
			RecipientName:  body.Shipping.RecipientName,
			RecipientPhone: body.Shipping.RecipientPhone,
			Address:        body.Shipping.Address,
			PostalCode:     body.Shipping.PostalCode,
			DeliveryNote:   body.Shipping.DeliveryNote,
		},
		Method:        domorder.PaymentMethod(body.PaymentMethod),
		TransactionID: body.TransactionID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeAuthenticated(w, r)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handler) handleListMyOrders(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeAuthenticated(w, r)
	if !ok {
		return
	}

	orders, err := h.orders.ListMyOrders(r.Context(), req.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderListResponse(orders))
}

func (h *Handler) handleListAllOrders(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeAuthenticated(w, r)
	if !ok {
		return
	}

	orders, err := h.orders.ListAllOrders(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderListResponse(orders))
}

type cancelOrderRequest struct {
	Reason string `json:"reason,omitempty"`
}

func (h *Handler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeAuthenticated(w, r)
	if !ok {
		return
	}

	var body cancelOrderRequest
	if err := decodeJSON(r, &body); err != nil && !errors.Is(err, errEmptyBody) {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	order, err := h.orders.CancelOrder(r.Context(), r.PathValue("id"), req, body.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeAuthenticated(w, r)
	if !ok {
		return
	}

	var body updateStatusRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), r.PathValue("id"), domorder.Status(body.Status), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

type startShippingRequest struct {
	Carrier        string `json:"carrier"`
	TrackingNumber string `json:"tracking_number"`
}

func (h *Handler) handleStartShipping(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeAuthenticated(w, r)
	if !ok {
		return
	}

	var body startShippingRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	order, err := h.orders.StartShipping(r.Context(), r.PathValue("id"), body.Carrier, body.TrackingNumber, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handler) handleCompleteDelivery(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeAuthenticated(w, r)
	if !ok {
		return
	}

	order, err := h.orders.CompleteDelivery(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

type completePaymentRequest struct {
	TransactionID string `json:"transaction_id"`
}

func (h *Handler) handleCompletePayment(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeAuthenticated(w, r)
	if !ok {
		return
	}

	var body completePaymentRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	order, err := h.orders.CompletePayment(r.Context(), r.PathValue("id"), body.TransactionID, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) decodeAuthenticated(w http.ResponseWriter, r *http.Request) (apporder.Requester, bool) {
	req, ok := requesterFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, errors.New("missing user identity"))
		return apporder.Requester{}, false
	}
	return req, true
}

// withAccessLog writes a single access log after the handler completes.
// It relies on the request-scoped logger already injected by ObservabilityMiddleware.
func (h *Handler) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		logctx.FromOr(r.Context(), h.log).Info("http_access",
			observability.F("method", r.Method),
			observability.F("route", routeFromContext(r.Context())),
			observability.F("path", r.URL.Path),
			observability.F("status", lrw.status),
			observability.F("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

// withTrace creates a server span for the request using OTel and W3C propagation.
func (h *Handler) withTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer("ordercore.http")
		parentCtx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		route := routeFromContext(parentCtx)
		spanName := route
		if spanName == "unknown" {
			spanName = r.Method + " " + r.URL.Path
		}
		template := route
		if idx := strings.Index(template, " "); idx >= 0 {
			template = template[idx+1:]
		}
		if template == "unknown" || template == "" {
			template = r.URL.Path
		}

		ctxWithSpan, span := tracer.Start(parentCtx,
			spanName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", template),
				attribute.String("http.target", r.URL.Path),
				attribute.String("http.user_agent", r.UserAgent()),
			),
		)
		defer span.End()

		next.ServeHTTP(w, r.WithContext(ctxWithSpan))
	})
}

var errEmptyBody = errors.New("empty request body")

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return errEmptyBody
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// errPaymentRejected hides which payment check failed. Echoing the precise
// reason would let a caller probe transaction IDs.
var errPaymentRejected = errors.New("payment could not be verified")

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case apporder.IsValidation(err),
		errors.Is(err, domorder.ErrNoItems),
		errors.Is(err, domorder.ErrInvalidQuantity),
		errors.Is(err, domorder.ErrInvalidAmount),
		errors.Is(err, domcart.ErrEmpty),
		errors.Is(err, domproduct.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, domorder.ErrDuplicateTransaction),
		errors.Is(err, dompayment.ErrAmountMismatch),
		errors.Is(err, dompayment.ErrNotPaid):
		writeError(w, http.StatusBadRequest, errPaymentRejected)
	case errors.Is(err, apporder.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, err)
	case errors.Is(err, domorder.ErrNotFound),
		errors.Is(err, domproduct.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domproduct.ErrInactive),
		errors.Is(err, domproduct.ErrInsufficientStock),
		errors.Is(err, domorder.ErrConflict),
		errors.Is(err, domorder.ErrInvalidStateTransition):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, dompayment.ErrGateway):
		writeError(w, http.StatusBadGateway, errPaymentRejected)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

type routeKey struct{}

// contextWithRoute stores the stable route template in the context so downstream
// metrics/logging can rely on low-cardinality values.
func contextWithRoute(ctx context.Context, route string) context.Context {
	if route == "" {
		return ctx
	}
	return context.WithValue(ctx, routeKey{}, route)
}

func routeFromContext(ctx context.Context) string {
	if ctx == nil {
		return "unknown"
	}
	if route, ok := ctx.Value(routeKey{}).(string); ok && route != "" {
		return route
	}
	return "unknown"
}
