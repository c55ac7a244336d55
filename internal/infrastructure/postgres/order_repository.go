package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	domain "github.com/stitchmall/ordercore/internal/domain/order"
)

const uniqueViolation = "23505"

// OrderRepository persists orders in Postgres. The unique indexes on
// order_number and payment_transaction_id are the authoritative guards
// against racing creations; Update is a compare-and-set on order_status.
type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `
	id, order_number, user_id,
	recipient_name, recipient_phone, address, postal_code, delivery_note,
	payment_method, payment_status, payment_transaction_id, paid_at,
	items_total, final_total, order_status,
	carrier, tracking_number, shipped_at, delivered_at,
	is_cancelled, cancelled_at, cancel_reason,
	created_at, updated_at`

func (r *OrderRepository) Insert(ctx context.Context, order *domain.Order) error {
	if order == nil || order.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		        $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
	`, orderArgs(order)...)
	if err != nil {
		return mapUniqueViolation(err)
	}

	for i, item := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, line_no, product_id, quantity, selected_size, price_at_order, subtotal)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, uuid.NewString(), order.ID, i, item.ProductID, item.Quantity, item.SelectedSize, item.PriceAtOrder, item.Subtotal)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	order, err := r.scanOrder(r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+` FROM orders WHERE id = $1
	`, id))
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, quantity, selected_size, price_at_order, subtotal
		FROM order_items
		WHERE order_id = $1
		ORDER BY line_no
	`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var item domain.LineItem
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.SelectedSize, &item.PriceAtOrder, &item.Subtotal); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return order, nil
}

func (r *OrderRepository) Update(ctx context.Context, order *domain.Order, expectedStatus domain.Status) error {
	if order == nil || order.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET payment_status = $3, payment_transaction_id = $4, paid_at = $5,
		    order_status = $6,
		    carrier = $7, tracking_number = $8, shipped_at = $9, delivered_at = $10,
		    is_cancelled = $11, cancelled_at = $12, cancel_reason = $13,
		    updated_at = NOW()
		WHERE id = $1 AND order_status = $2
	`, order.ID, string(expectedStatus),
		string(order.Payment.Status), nullString(order.Payment.TransactionID), order.Payment.PaidAt,
		string(order.Status),
		nullString(order.Tracking.Carrier), nullString(order.Tracking.TrackingNumber),
		order.Tracking.ShippedAt, order.Tracking.DeliveredAt,
		order.Cancellation.IsCancelled, order.Cancellation.CancelledAt, nullString(order.Cancellation.CancelReason),
	)
	if err != nil {
		return mapUniqueViolation(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, order.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return domain.ErrNotFound
		}
		return domain.ErrConflict
	}
	return nil
}

func (r *OrderRepository) FindByTransactionID(ctx context.Context, transactionID string) (*domain.Order, error) {
	if transactionID == "" {
		return nil, domain.ErrNotFound
	}

	var id string
	err := r.db.QueryRowContext(ctx, `
		SELECT id FROM orders WHERE payment_transaction_id = $1
	`, transactionID).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return r.Get(ctx, id)
}

func (r *OrderRepository) OrderNumberExists(ctx context.Context, orderNumber string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM orders WHERE order_number = $1)
	`, orderNumber).Scan(&exists)
	return exists, err
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	return r.list(ctx, `
		SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
}

func (r *OrderRepository) ListAll(ctx context.Context) ([]*domain.Order, error) {
	return r.list(ctx, `
		SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC
	`)
}

func (r *OrderRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		order, err := r.scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orderMap[order.ID] = order
		orderIDs = append(orderIDs, order.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(orderIDs) == 0 {
		return []*domain.Order{}, nil
	}

	itemRows, err := r.db.QueryContext(ctx, `
		SELECT order_id, product_id, quantity, selected_size, price_at_order, subtotal
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, line_no
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = itemRows.Close() }()

	for itemRows.Next() {
		var orderID string
		var item domain.LineItem
		if err := itemRows.Scan(&orderID, &item.ProductID, &item.Quantity, &item.SelectedSize, &item.PriceAtOrder, &item.Subtotal); err != nil {
			return nil, err
		}
		orderMap[orderID].Items = append(orderMap[orderID].Items, item)
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	orders := make([]*domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, orderMap[id])
	}
	return orders, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *OrderRepository) scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		order         domain.Order
		transactionID sql.NullString
		postalCode    sql.NullString
		deliveryNote  sql.NullString
		carrier       sql.NullString
		trackingNum   sql.NullString
		cancelReason  sql.NullString
		paidAt        sql.NullTime
		shippedAt     sql.NullTime
		deliveredAt   sql.NullTime
		cancelledAt   sql.NullTime
	)

	err := row.Scan(
		&order.ID, &order.OrderNumber, &order.UserID,
		&order.ShippingInfo.RecipientName, &order.ShippingInfo.RecipientPhone,
		&order.ShippingInfo.Address, &postalCode, &deliveryNote,
		&order.Payment.Method, &order.Payment.Status, &transactionID, &paidAt,
		&order.Pricing.ItemsTotal, &order.Pricing.FinalTotal, &order.Status,
		&carrier, &trackingNum, &shippedAt, &deliveredAt,
		&order.Cancellation.IsCancelled, &cancelledAt, &cancelReason,
		&order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	order.ShippingInfo.PostalCode = postalCode.String
	order.ShippingInfo.DeliveryNote = deliveryNote.String
	order.Payment.TransactionID = transactionID.String
	order.Tracking.Carrier = carrier.String
	order.Tracking.TrackingNumber = trackingNum.String
	order.Cancellation.CancelReason = cancelReason.String
	if paidAt.Valid {
		order.Payment.PaidAt = &paidAt.Time
	}
	if shippedAt.Valid {
		order.Tracking.ShippedAt = &shippedAt.Time
	}
	if deliveredAt.Valid {
		order.Tracking.DeliveredAt = &deliveredAt.Time
	}
	if cancelledAt.Valid {
		order.Cancellation.CancelledAt = &cancelledAt.Time
	}
	return &order, nil
}

func orderArgs(order *domain.Order) []any {
	return []any{
		order.ID, order.OrderNumber, order.UserID,
		order.ShippingInfo.RecipientName, order.ShippingInfo.RecipientPhone,
		order.ShippingInfo.Address, nullString(order.ShippingInfo.PostalCode), nullString(order.ShippingInfo.DeliveryNote),
		string(order.Payment.Method), string(order.Payment.Status), nullString(order.Payment.TransactionID), order.Payment.PaidAt,
		order.Pricing.ItemsTotal, order.Pricing.FinalTotal, string(order.Status),
		nullString(order.Tracking.Carrier), nullString(order.Tracking.TrackingNumber),
		order.Tracking.ShippedAt, order.Tracking.DeliveredAt,
		order.Cancellation.IsCancelled, order.Cancellation.CancelledAt, nullString(order.Cancellation.CancelReason),
		order.CreatedAt, order.UpdatedAt,
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func mapUniqueViolation(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		if strings.Contains(pqErr.Constraint, "transaction") {
			return domain.ErrDuplicateTransaction
		}
		return domain.ErrConflict
	}
	return err
}
