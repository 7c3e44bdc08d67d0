package domain

import (
	"context"
	"time"
)

// Order-related domain errors.
var (
	ErrOrderNotFound       = &Error{Code: ENOTFOUND, Message: "Order not found"}
	ErrTransactionNotFound = &Error{Code: ENOTFOUND, Message: "Transaction not found"}
	ErrInvoiceNotRegistered = &Error{Code: EPAYMENT, Message: "Invoice could not be registered"}
)

// TransactionType classifies a payment transaction recorded against an order.
type TransactionType string

const (
	TxnTypeAuth    TransactionType = "authorization"
	TxnTypePayment TransactionType = "payment"
	TxnTypeCapture TransactionType = "capture"
)

// CaptureCase selects how an invoice collects its payment.
type CaptureCase string

const (
	// CaptureOnline captures the payment through the gateway when the
	// invoice is registered.
	CaptureOnline CaptureCase = "online"

	// CaptureOffline marks the invoice paid without contacting the gateway;
	// the payment was already collected out of band.
	CaptureOffline CaptureCase = "offline"
)

// ProductTypeBundle flags composite products whose stored tax percent is
// unreliable; the invoice projection recomputes their effective VAT rate from
// the inclusive/exclusive price delta instead.
const ProductTypeBundle = "bundle"

// Order is the aggregate root owned by the host platform. This module only
// reads it and appends transactions to it; lifecycle and persistence stay with
// the host behind OrderRepository.
type Order struct {
	ID          int64
	IncrementID string
	Status      string

	Items []LineItem

	DiscountAmount         float64
	DiscountDescription    string
	ShippingDiscountAmount float64
	ShippingAmount         float64
	ShippingInclTax        float64
	ShippingTaxAmount      float64
	ShippingDescription    string

	GrandTotal               float64
	BaseRewardCurrencyAmount float64
	BaseTotalRefunded        float64

	IsVirtual bool

	Payment      *Payment
	Transactions []*Transaction
}

// LineItem is one ordered product row. Child rows of composite products carry
// a non-zero ParentItemID and are excluded from totals to avoid double
// counting.
type LineItem struct {
	ID           int64
	ParentItemID int64
	Name         string
	ProductType  string
	QtyOrdered   float64
	Price        float64
	PriceInclTax float64
	TaxPercent   float64
	NoDiscount   bool
}

// TopLevel reports whether the item contributes to order totals directly.
func (i LineItem) TopLevel() bool {
	return i.ParentItemID == 0
}

// Payment belongs to exactly one order and tracks the gateway transaction ids
// recorded against it.
type Payment struct {
	ID      int64
	OrderID int64

	// TransactionID is the pending gateway transaction number attached
	// before a transaction record is created.
	TransactionID string

	// LastTransactionID is the most recent gateway transaction number that
	// produced a transaction record.
	LastTransactionID string
}

// Transaction is one recorded gateway transaction. TxnID is the gateway's
// transaction number and is unique per order; a number is processed at most
// once.
type Transaction struct {
	ID      int64
	OrderID int64

	TxnID    string
	Type     TransactionType
	IsClosed bool

	// IsFailsafe marks a transaction that was force-closed regardless of
	// its prior state.
	IsFailsafe bool

	IsCancel bool
	Message  string

	// RawDetails holds the full gateway callback payload for audit.
	RawDetails map[string]string

	CreatedAt time.Time
}

// Invoice is the financial document derived from a fully paid order.
type Invoice struct {
	ID          int64
	IncrementID string
	OrderID     int64

	CaptureCase   CaptureCase
	IsPaid        bool
	TransactionID string
	Comments      []string

	GrandTotal float64
}

// CreditMemo is the refund document, tied to an order and optionally to the
// invoice being refunded.
type CreditMemo struct {
	ID        int64
	OrderID   int64
	InvoiceID int64

	// PaymentRefundDisallowed blocks the host from pushing the refund back
	// through the gateway; the refund happened out of band.
	PaymentRefundDisallowed bool

	BaseGrandTotal float64
	TransactionID  string
	Comments       []string
}

// OrderRepository is the host platform's persistence surface for order
// aggregates. Implementations decide their own locking; callers must assume
// read-then-write here is only as atomic as the implementation makes it.
type OrderRepository interface {
	// GetOrderByIncrementID loads the full aggregate (items, payment,
	// transactions) for the given display id.
	GetOrderByIncrementID(ctx context.Context, incrementID string) (*Order, error)

	// SaveOrder persists the aggregate, including any transactions appended
	// since it was loaded.
	SaveOrder(ctx context.Context, order *Order) error

	// FindTransaction returns the transaction with the given gateway
	// transaction number, or an ENOTFOUND error when none exists.
	FindTransaction(ctx context.Context, orderID int64, txnID string) (*Transaction, error)

	// FirstTransactionID returns the gateway transaction number of the
	// earliest transaction recorded for the order, or an ENOTFOUND error.
	FirstTransactionID(ctx context.Context, orderID int64) (string, error)

	// AddStatusHistory appends an operator-visible comment to the order's
	// status history.
	AddStatusHistory(ctx context.Context, orderID int64, status, comment string) error
}

// InvoiceFactory is the host's invoice creation service.
type InvoiceFactory interface {
	// PrepareInvoice builds an unregistered invoice covering all order items.
	PrepareInvoice(ctx context.Context, order *Order) (*Invoice, error)

	// RegisterInvoice registers and persists the invoice together with its
	// order, applying the capture case set on the invoice.
	RegisterInvoice(ctx context.Context, inv *Invoice, order *Order) error

	// SaveInvoice persists subsequent changes to an already registered invoice.
	SaveInvoice(ctx context.Context, inv *Invoice) error
}

// CreditMemoFactory is the host's credit memo creation service.
type CreditMemoFactory interface {
	// PrepareCreditMemo builds an unregistered credit memo, from the given
	// invoice when non-nil, else from the whole order.
	PrepareCreditMemo(ctx context.Context, order *Order, inv *Invoice) (*CreditMemo, error)

	// RegisterCreditMemo registers the memo, applies the refund, and
	// persists memo, order, and invoice in one host transaction.
	RegisterCreditMemo(ctx context.Context, memo *CreditMemo, order *Order, inv *Invoice) error
}
