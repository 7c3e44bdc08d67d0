package postgres

import (
	"context"

	"github.com/dukerupert/skuld/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// InvoiceFactory implements domain.InvoiceFactory using PostgreSQL.
type InvoiceFactory struct {
	pool *pgxpool.Pool
}

// Compile-time check that InvoiceFactory implements domain.InvoiceFactory.
var _ domain.InvoiceFactory = (*InvoiceFactory)(nil)

// NewInvoiceFactory creates a new PostgreSQL-backed invoice factory.
func NewInvoiceFactory(pool *pgxpool.Pool) *InvoiceFactory {
	return &InvoiceFactory{
		pool: pool,
	}
}

// PrepareInvoice builds an unregistered invoice covering the whole order.
func (f *InvoiceFactory) PrepareInvoice(ctx context.Context, order *domain.Order) (*domain.Invoice, error) {
	return &domain.Invoice{
		IncrementID: "INV-" + order.IncrementID + "-" + uuid.NewString()[:8],
		OrderID:     order.ID,
		GrandTotal:  order.GrandTotal,
	}, nil
}

// RegisterInvoice persists the invoice together with its comments.
func (f *InvoiceFactory) RegisterInvoice(ctx context.Context, inv *domain.Invoice, order *domain.Order) error {
	tx, err := f.pool.Begin(ctx)
	if err != nil {
		return domain.Internal(err, "invoice.register", "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO sales_invoices (increment_id, order_id, capture_case, is_paid, transaction_id, grand_total)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		inv.IncrementID, inv.OrderID, inv.CaptureCase, inv.IsPaid, inv.TransactionID, inv.GrandTotal,
	).Scan(&inv.ID)
	if err != nil {
		return domain.Internal(err, "invoice.register", "failed to insert invoice")
	}

	for _, comment := range inv.Comments {
		_, err = tx.Exec(ctx, `
			INSERT INTO sales_invoice_comments (invoice_id, comment)
			VALUES ($1, $2)`,
			inv.ID, comment,
		)
		if err != nil {
			return domain.Internal(err, "invoice.register", "failed to insert invoice comment")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Internal(err, "invoice.register", "failed to commit invoice")
	}
	return nil
}

// SaveInvoice persists changes to an already registered invoice.
func (f *InvoiceFactory) SaveInvoice(ctx context.Context, inv *domain.Invoice) error {
	_, err := f.pool.Exec(ctx, `
		UPDATE sales_invoices
		SET capture_case = $2, is_paid = $3, transaction_id = $4
		WHERE id = $1`,
		inv.ID, inv.CaptureCase, inv.IsPaid, inv.TransactionID,
	)
	if err != nil {
		return domain.Internal(err, "invoice.save", "failed to update invoice")
	}
	return nil
}

// CreditMemoFactory implements domain.CreditMemoFactory using PostgreSQL.
type CreditMemoFactory struct {
	pool *pgxpool.Pool
}

// Compile-time check that CreditMemoFactory implements domain.CreditMemoFactory.
var _ domain.CreditMemoFactory = (*CreditMemoFactory)(nil)

// NewCreditMemoFactory creates a new PostgreSQL-backed credit memo factory.
func NewCreditMemoFactory(pool *pgxpool.Pool) *CreditMemoFactory {
	return &CreditMemoFactory{
		pool: pool,
	}
}

// PrepareCreditMemo builds an unregistered credit memo, tied to the invoice
// when one is given.
func (f *CreditMemoFactory) PrepareCreditMemo(ctx context.Context, order *domain.Order, inv *domain.Invoice) (*domain.CreditMemo, error) {
	memo := &domain.CreditMemo{OrderID: order.ID}
	if inv != nil {
		memo.InvoiceID = inv.ID
	}
	return memo, nil
}

// RegisterCreditMemo persists the memo and rolls its amount into the order's
// refunded total in one database transaction.
func (f *CreditMemoFactory) RegisterCreditMemo(ctx context.Context, memo *domain.CreditMemo, order *domain.Order, inv *domain.Invoice) error {
	tx, err := f.pool.Begin(ctx)
	if err != nil {
		return domain.Internal(err, "creditmemo.register", "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var invoiceID interface{}
	if memo.InvoiceID != 0 {
		invoiceID = memo.InvoiceID
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO sales_credit_memos (order_id, invoice_id, payment_refund_disallowed, base_grand_total, transaction_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		memo.OrderID, invoiceID, memo.PaymentRefundDisallowed, memo.BaseGrandTotal, memo.TransactionID,
	).Scan(&memo.ID)
	if err != nil {
		return domain.Internal(err, "creditmemo.register", "failed to insert credit memo")
	}

	order.BaseTotalRefunded += memo.BaseGrandTotal
	_, err = tx.Exec(ctx, `
		UPDATE sales_orders
		SET base_total_refunded = $2, updated_at = NOW()
		WHERE id = $1`,
		order.ID, order.BaseTotalRefunded,
	)
	if err != nil {
		return domain.Internal(err, "creditmemo.register", "failed to update refunded total")
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Internal(err, "creditmemo.register", "failed to commit credit memo")
	}
	return nil
}
