// Package postgres implements the order persistence surface over PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/dukerupert/skuld/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OrderRepository implements domain.OrderRepository using PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// Compile-time check that OrderRepository implements domain.OrderRepository.
var _ domain.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{
		pool: pool,
	}
}

// GetOrderByIncrementID loads the full order aggregate: the order row plus its
// items, payment, and recorded transactions.
func (r *OrderRepository) GetOrderByIncrementID(ctx context.Context, incrementID string) (*domain.Order, error) {
	var order domain.Order
	err := r.pool.QueryRow(ctx, `
		SELECT id, increment_id, status,
		       discount_amount, discount_description, shipping_discount_amount,
		       shipping_amount, shipping_incl_tax, shipping_tax_amount, shipping_description,
		       grand_total, base_reward_currency_amount, base_total_refunded, is_virtual
		FROM sales_orders
		WHERE increment_id = $1`,
		incrementID,
	).Scan(
		&order.ID, &order.IncrementID, &order.Status,
		&order.DiscountAmount, &order.DiscountDescription, &order.ShippingDiscountAmount,
		&order.ShippingAmount, &order.ShippingInclTax, &order.ShippingTaxAmount, &order.ShippingDescription,
		&order.GrandTotal, &order.BaseRewardCurrencyAmount, &order.BaseTotalRefunded, &order.IsVirtual,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("order.get", "order", incrementID)
		}
		return nil, domain.Internal(err, "order.get", "failed to load order")
	}

	if err := r.loadItems(ctx, &order); err != nil {
		return nil, err
	}
	if err := r.loadPayment(ctx, &order); err != nil {
		return nil, err
	}
	if err := r.loadTransactions(ctx, &order); err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *OrderRepository) loadItems(ctx context.Context, order *domain.Order) error {
	rows, err := r.pool.Query(ctx, `
		SELECT id, parent_item_id, name, product_type, qty_ordered,
		       price, price_incl_tax, tax_percent, no_discount
		FROM sales_order_items
		WHERE order_id = $1
		ORDER BY id`,
		order.ID,
	)
	if err != nil {
		return domain.Internal(err, "order.get", "failed to load order items")
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.LineItem
		if err := rows.Scan(
			&item.ID, &item.ParentItemID, &item.Name, &item.ProductType, &item.QtyOrdered,
			&item.Price, &item.PriceInclTax, &item.TaxPercent, &item.NoDiscount,
		); err != nil {
			return domain.Internal(err, "order.get", "failed to scan order item")
		}
		order.Items = append(order.Items, item)
	}
	if err := rows.Err(); err != nil {
		return domain.Internal(err, "order.get", "failed to read order items")
	}
	return nil
}

func (r *OrderRepository) loadPayment(ctx context.Context, order *domain.Order) error {
	var p domain.Payment
	err := r.pool.QueryRow(ctx, `
		SELECT id, order_id, transaction_id, last_transaction_id
		FROM sales_order_payments
		WHERE order_id = $1`,
		order.ID,
	).Scan(&p.ID, &p.OrderID, &p.TransactionID, &p.LastTransactionID)
	if err != nil {
		// An order without a payment row is a valid aggregate; the
		// reconciler rejects it explicitly.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return domain.Internal(err, "order.get", "failed to load order payment")
	}
	order.Payment = &p
	return nil
}

func (r *OrderRepository) loadTransactions(ctx context.Context, order *domain.Order) error {
	rows, err := r.pool.Query(ctx, `
		SELECT id, order_id, txn_id, txn_type, is_closed, is_failsafe, is_cancel,
		       message, raw_details, created_at
		FROM sales_payment_transactions
		WHERE order_id = $1
		ORDER BY id`,
		order.ID,
	)
	if err != nil {
		return domain.Internal(err, "order.get", "failed to load transactions")
	}
	defer rows.Close()

	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(
			&t.ID, &t.OrderID, &t.TxnID, &t.Type, &t.IsClosed, &t.IsFailsafe, &t.IsCancel,
			&t.Message, &t.RawDetails, &t.CreatedAt,
		); err != nil {
			return domain.Internal(err, "order.get", "failed to scan transaction")
		}
		order.Transactions = append(order.Transactions, &t)
	}
	if err := rows.Err(); err != nil {
		return domain.Internal(err, "order.get", "failed to read transactions")
	}
	return nil
}

// SaveOrder persists the aggregate in one database transaction: the order
// row, the payment's transaction ids, and any transactions appended since the
// aggregate was loaded (rows with a zero id).
func (r *OrderRepository) SaveOrder(ctx context.Context, order *domain.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Internal(err, "order.save", "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		UPDATE sales_orders
		SET status = $2, base_total_refunded = $3, updated_at = NOW()
		WHERE id = $1`,
		order.ID, order.Status, order.BaseTotalRefunded,
	)
	if err != nil {
		return domain.Internal(err, "order.save", "failed to update order")
	}

	if order.Payment != nil {
		_, err = tx.Exec(ctx, `
			UPDATE sales_order_payments
			SET transaction_id = $2, last_transaction_id = $3
			WHERE order_id = $1`,
			order.ID, order.Payment.TransactionID, order.Payment.LastTransactionID,
		)
		if err != nil {
			return domain.Internal(err, "order.save", "failed to update payment")
		}
	}

	for _, txn := range order.Transactions {
		if txn.ID != 0 {
			continue
		}
		err = tx.QueryRow(ctx, `
			INSERT INTO sales_payment_transactions
				(order_id, txn_id, txn_type, is_closed, is_failsafe, is_cancel, message, raw_details, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id`,
			order.ID, txn.TxnID, txn.Type, txn.IsClosed, txn.IsFailsafe, txn.IsCancel,
			txn.Message, txn.RawDetails, txn.CreatedAt,
		).Scan(&txn.ID)
		if err != nil {
			return domain.Internal(err, "order.save", fmt.Sprintf("failed to insert transaction %s", txn.TxnID))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Internal(err, "order.save", "failed to commit order")
	}
	return nil
}

// FindTransaction returns the transaction with the given gateway transaction
// number recorded on the order.
func (r *OrderRepository) FindTransaction(ctx context.Context, orderID int64, txnID string) (*domain.Transaction, error) {
	var t domain.Transaction
	err := r.pool.QueryRow(ctx, `
		SELECT id, order_id, txn_id, txn_type, is_closed, is_failsafe, is_cancel,
		       message, raw_details, created_at
		FROM sales_payment_transactions
		WHERE order_id = $1 AND txn_id = $2`,
		orderID, txnID,
	).Scan(
		&t.ID, &t.OrderID, &t.TxnID, &t.Type, &t.IsClosed, &t.IsFailsafe, &t.IsCancel,
		&t.Message, &t.RawDetails, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("transaction.find", "transaction", txnID)
		}
		return nil, domain.Internal(err, "transaction.find", "failed to find transaction")
	}
	return &t, nil
}

// FirstTransactionID returns the gateway transaction number of the earliest
// recorded transaction for the order.
func (r *OrderRepository) FirstTransactionID(ctx context.Context, orderID int64) (string, error) {
	var txnID string
	err := r.pool.QueryRow(ctx, `
		SELECT txn_id
		FROM sales_payment_transactions
		WHERE order_id = $1
		ORDER BY id ASC
		LIMIT 1`,
		orderID,
	).Scan(&txnID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.NotFound("transaction.first", "transaction", "order "+strconv.FormatInt(orderID, 10))
		}
		return "", domain.Internal(err, "transaction.first", "failed to load first transaction")
	}
	return txnID, nil
}

// AddStatusHistory appends an operator-visible comment to the order's status
// history.
func (r *OrderRepository) AddStatusHistory(ctx context.Context, orderID int64, status, comment string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sales_order_status_history (order_id, status, comment)
		VALUES ($1, $2, $3)`,
		orderID, status, comment,
	)
	if err != nil {
		return domain.Internal(err, "order.history", "failed to add status history")
	}
	return nil
}
