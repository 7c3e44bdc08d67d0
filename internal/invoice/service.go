// Package invoice creates invoices and credit memos through the host
// platform's factories and projects orders into the external invoice print
// document.
package invoice

import (
	"context"

	"github.com/dukerupert/skuld/internal/audit"
	"github.com/dukerupert/skuld/internal/domain"
	"github.com/dukerupert/skuld/internal/telemetry"
)

// autoComment marks documents this module generated on the operator's behalf.
const autoComment = "Auto-generated by the payment gateway integration."

// Service orchestrates invoice and credit memo creation. Document
// construction and persistence mechanics stay with the host factories; this
// service owns the capture semantics, transaction linkage, and the error
// policy around registration.
type Service struct {
	repo  domain.OrderRepository
	inv   domain.InvoiceFactory
	memo  domain.CreditMemoFactory
	trail audit.Sink
}

// NewService creates an invoice service over the host factories.
func NewService(repo domain.OrderRepository, inv domain.InvoiceFactory, memo domain.CreditMemoFactory, trail audit.Sink) *Service {
	return &Service{
		repo:  repo,
		inv:   inv,
		memo:  memo,
		trail: trail,
	}
}

// MakeInvoice creates, registers, and persists an invoice for the order.
// online selects gateway capture during registration; offline marks the
// invoice paid without contacting the gateway.
//
// Registration failure is fatal for the request: downstream accounting
// depends on the invoice existing, so the error is appended to the order's
// status history for operator visibility and re-raised.
func (s *Service) MakeInvoice(ctx context.Context, order *domain.Order, online bool) (*domain.Invoice, error) {
	inv, err := s.inv.PrepareInvoice(ctx, order)
	if err != nil {
		return nil, domain.Internal(err, "invoice.make", "failed to prepare invoice")
	}

	inv.Comments = append(inv.Comments, autoComment)
	if online {
		inv.CaptureCase = domain.CaptureOnline
	} else {
		inv.CaptureCase = domain.CaptureOffline
	}

	if err := s.inv.RegisterInvoice(ctx, inv, order); err != nil {
		historyErr := s.repo.AddStatusHistory(ctx, order.ID, order.Status, "Failed to create invoice: "+err.Error())
		if historyErr != nil {
			s.trail.Append(order.IncrementID, "Error: "+historyErr.Error())
		}
		return nil, domain.WrapError(err, domain.EPAYMENT, "invoice.make", "invoice could not be registered")
	}

	inv.IsPaid = true

	// Assign the payment's last transaction id with the invoice.
	if order.Payment != nil && order.Payment.LastTransactionID != "" {
		inv.TransactionID = order.Payment.LastTransactionID
		if err := s.inv.SaveInvoice(ctx, inv); err != nil {
			return nil, domain.Internal(err, "invoice.make", "failed to save invoice")
		}
	}

	if telemetry.Business != nil {
		telemetry.Business.InvoicesCreated.WithLabelValues(string(inv.CaptureCase)).Inc()
	}

	return inv, nil
}

// MakeCreditMemo creates and registers a credit memo over the given invoice,
// or over the whole order when inv is nil. amount becomes the memo's base
// grand total. Offline memos disallow the host from pushing the refund back
// through the gateway.
func (s *Service) MakeCreditMemo(ctx context.Context, order *domain.Order, inv *domain.Invoice, amount float64, online bool, transactionID string) (*domain.CreditMemo, error) {
	memo, err := s.memo.PrepareCreditMemo(ctx, order, inv)
	if err != nil {
		return nil, domain.Internal(err, "creditmemo.make", "failed to prepare credit memo")
	}

	memo.Comments = append(memo.Comments, autoComment)
	if !online {
		memo.PaymentRefundDisallowed = true
	}

	// The host recomputes refund totals during registration; reset so the
	// requested amount is authoritative.
	order.BaseTotalRefunded = 0
	memo.BaseGrandTotal = amount
	if transactionID != "" {
		memo.TransactionID = transactionID
	}

	if err := s.memo.RegisterCreditMemo(ctx, memo, order, inv); err != nil {
		return nil, domain.Internal(err, "creditmemo.make", "failed to register credit memo")
	}

	if telemetry.Business != nil {
		capture := string(domain.CaptureOffline)
		if online {
			capture = string(domain.CaptureOnline)
		}
		telemetry.Business.CreditMemosCreated.WithLabelValues(capture).Inc()
	}

	return memo, nil
}

// FirstTransactionID returns the gateway transaction number of the earliest
// transaction recorded for the order. ok is false for unsaved orders and
// orders with no transactions.
func (s *Service) FirstTransactionID(ctx context.Context, order *domain.Order) (string, bool) {
	if order.ID == 0 {
		return "", false
	}
	txnID, err := s.repo.FirstTransactionID(ctx, order.ID)
	if err != nil {
		return "", false
	}
	return txnID, true
}
