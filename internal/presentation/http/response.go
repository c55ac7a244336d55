package httppresentation

import (
	"time"

	domorder "github.com/stitchmall/ordercore/internal/domain/order"
)

type orderItemResponse struct {
	ProductID    string `json:"product_id"`
	Quantity     int    `json:"quantity"`
	SelectedSize string `json:"selected_size,omitempty"`
	PriceAtOrder int64  `json:"price_at_order"`
	Subtotal     int64  `json:"subtotal"`
}

type shippingResponse struct {
	RecipientName  string `json:"recipient_name"`
	RecipientPhone string `json:"recipient_phone"`
	Address        string `json:"address"`
	PostalCode     string `json:"postal_code,omitempty"`
	DeliveryNote   string `json:"delivery_note,omitempty"`
}

type paymentResponse struct {
	Method        string     `json:"method"`
	Status        string     `json:"status"`
	TransactionID string     `json:"transaction_id,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
}

type trackingResponse struct {
	Carrier        string     `json:"carrier,omitempty"`
	TrackingNumber string     `json:"tracking_number,omitempty"`
	ShippedAt      *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`
}

type cancellationResponse struct {
	IsCancelled  bool       `json:"is_cancelled"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CancelReason string     `json:"cancel_reason,omitempty"`
}

type orderResponse struct {
	ID           string                `json:"id"`
	OrderNumber  string                `json:"order_number"`
	UserID       string                `json:"user_id"`
	Items        []orderItemResponse   `json:"items"`
	Shipping     shippingResponse      `json:"shipping"`
	Payment      paymentResponse       `json:"payment"`
	ItemsTotal   int64                 `json:"items_total"`
	FinalTotal   int64                 `json:"final_total"`
	Status       domorder.Status       `json:"status"`
	Tracking     *trackingResponse     `json:"tracking,omitempty"`
	Cancellation *cancellationResponse `json:"cancellation,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Total  int             `json:"total"`
}

func toOrderResponse(order *domorder.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ProductID:    item.ProductID,
			Quantity:     item.Quantity,
			SelectedSize: item.SelectedSize,
			PriceAtOrder: item.PriceAtOrder,
			Subtotal:     item.Subtotal,
		})
	}

	resp := orderResponse{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Items:       items,
		Shipping: shippingResponse{
			RecipientName:  order.ShippingInfo.RecipientName,
			RecipientPhone: order.ShippingInfo.RecipientPhone,
			Address:        order.ShippingInfo.Address,
			PostalCode:     order.ShippingInfo.PostalCode,
			DeliveryNote:   order.ShippingInfo.DeliveryNote,
		},
		Payment: paymentResponse{
			Method:        string(order.Payment.Method),
			Status:        string(order.Payment.Status),
			TransactionID: order.Payment.TransactionID,
			PaidAt:        order.Payment.PaidAt,
		},
		ItemsTotal: order.Pricing.ItemsTotal,
		FinalTotal: order.Pricing.FinalTotal,
		Status:     order.Status,
		CreatedAt:  order.CreatedAt,
		UpdatedAt:  order.UpdatedAt,
	}

	if order.Tracking.Carrier != "" || order.Tracking.ShippedAt != nil {
		resp.Tracking = &trackingResponse{
			Carrier:        order.Tracking.Carrier,
			TrackingNumber: order.Tracking.TrackingNumber,
			ShippedAt:      order.Tracking.ShippedAt,
			DeliveredAt:    order.Tracking.DeliveredAt,
		}
	}
	if order.Cancellation.IsCancelled {
		resp.Cancellation = &cancellationResponse{
			IsCancelled:  true,
			CancelledAt:  order.Cancellation.CancelledAt,
			CancelReason: order.Cancellation.CancelReason,
		}
	}
	return resp
}

func toOrderListResponse(orders []*domorder.Order) orderListResponse {
	out := make([]orderResponse, 0, len(orders))
	for _, order := range orders {
		out = append(out, toOrderResponse(order))
	}
	return orderListResponse{Orders: out, Total: len(out)}
}
