// Package reconcile holds the two gateway reconciliation cores: mapping
// callback status codes onto the host's transaction state machine, and
// recomputing an order amount that must agree with the host grand total.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/dukerupert/skuld/internal/audit"
	"github.com/dukerupert/skuld/internal/domain"
	"github.com/dukerupert/skuld/internal/telemetry"
)

// closure describes what happens to a transaction's closed flag.
type closure int

const (
	// closedDefault leaves the host's default for the transaction type,
	// which closes the record.
	closedDefault closure = iota

	// leftOpen keeps the transaction open (authorizations awaiting capture).
	leftOpen

	// failsafeClosed forces the transaction closed regardless of prior state.
	failsafeClosed
)

// transition is one row of the status mapping table: which transaction record
// a gateway status produces.
type transition struct {
	txnType domain.TransactionType
	close   closure
	cancel  bool
	message func(c domain.Callback) string
}

func statusMessage(c domain.Callback) string {
	return fmt.Sprintf("Transaction Status: %d.", *c.Status)
}

// transitions maps every recognized gateway status to its transaction record.
// StatusInitialize is absent: it depends on the callback's pending flag and is
// resolved in transitionFor. Statuses without a row produce the unsaved
// invalid-status placeholder.
var transitions = map[domain.TransactionStatus]transition{
	domain.StatusAuthorize: {
		txnType: domain.TxnTypeAuth,
		close:   leftOpen,
		message: statusMessage,
	},
	domain.StatusSale: {
		txnType: domain.TxnTypeCapture,
		close:   failsafeClosed,
		message: statusMessage,
	},
	domain.StatusCapture: {
		txnType: domain.TxnTypeCapture,
		close:   failsafeClosed,
		message: statusMessage,
	},
	domain.StatusCredit: {
		txnType: domain.TxnTypePayment,
		cancel:  true,
		message: func(c domain.Callback) string {
			return fmt.Sprintf("Detected an abnormal payment process (Transaction Status: %d).", *c.Status)
		},
	},
	domain.StatusCancel: {
		txnType: domain.TxnTypePayment,
		cancel:  true,
		message: func(domain.Callback) string {
			return "Order automatically canceled. Transaction is canceled."
		},
	},
	domain.StatusFailure: {
		txnType: domain.TxnTypePayment,
		cancel:  true,
		message: func(c domain.Callback) string {
			msg := "Order automatically canceled. Transaction is failed."
			if detail := c.VerboseError(); detail != "" {
				msg += " " + detail
			}
			return msg
		},
	},
}

// transitionFor resolves the transition for a callback, handling the
// pending-dependent initialize status. ok is false for unrecognized or
// missing statuses.
func transitionFor(c domain.Callback) (transition, bool) {
	if c.Status == nil {
		return transition{}, false
	}
	if *c.Status == domain.StatusInitialize {
		if c.Pending {
			return transition{
				txnType: domain.TxnTypeAuth,
				close:   leftOpen,
				message: statusMessage,
			}, true
		}
		return transition{
			txnType: domain.TxnTypePayment,
			message: statusMessage,
		}, true
	}
	t, ok := transitions[*c.Status]
	return t, ok
}

// TransactionReconciler records gateway callbacks as payment transactions on
// the order aggregate. It is stateless; every call works only on the order it
// is given.
type TransactionReconciler struct {
	repo  domain.OrderRepository
	trail audit.Sink
	now   func() time.Time
}

// NewTransactionReconciler creates a reconciler over the host's order
// repository and the audit trail.
func NewTransactionReconciler(repo domain.OrderRepository, trail audit.Sink) *TransactionReconciler {
	return &TransactionReconciler{
		repo:  repo,
		trail: trail,
		now:   time.Now,
	}
}

// ProcessTransaction applies one gateway callback to the order.
//
// A transaction number is processed at most once: if the number is already
// recorded on the order, the existing transaction is returned unchanged and
// nothing is mutated. The check is read-then-write; it is only as atomic as
// the repository's save path, and this reconciler takes no locks of its own.
//
// For recognized statuses the resulting transaction is appended to the order
// and the aggregate is saved. A save failure is written to the audit trail
// and swallowed: the gateway expects an acknowledgment, and the recorded
// transaction is still returned to the caller.
//
// An unrecognized or missing status returns an unsaved, cancel-flagged
// placeholder together with ErrInvalidTransactionStatus. The pending
// transaction number is still attached to the payment, but nothing is
// persisted.
func (r *TransactionReconciler) ProcessTransaction(ctx context.Context, order *domain.Order, c domain.Callback) (*domain.Transaction, error) {
	if c.TransactionNumber == "" {
		return nil, ErrMissingTransactionNumber
	}
	if order.Payment == nil {
		return nil, ErrNoPayment
	}

	existing, err := r.repo.FindTransaction(ctx, order.ID, c.TransactionNumber)
	if err != nil && !domain.IsCode(err, domain.ENOTFOUND) {
		return nil, domain.Internal(err, "reconcile.process", "transaction lookup failed")
	}
	if existing != nil {
		r.trail.Append(order.IncrementID, fmt.Sprintf("Transaction %s already processed.", c.TransactionNumber))
		if telemetry.Business != nil {
			telemetry.Business.DuplicateCallbacks.Inc()
		}
		return existing, nil
	}

	order.Payment.TransactionID = c.TransactionNumber

	t, ok := transitionFor(c)
	if !ok {
		if telemetry.Business != nil {
			telemetry.Business.InvalidStatus.Inc()
		}
		return &domain.Transaction{
			Message:  "Invalid transaction status.",
			IsCancel: true,
		}, ErrInvalidTransactionStatus
	}

	message := t.message(c)
	txn := &domain.Transaction{
		OrderID:    order.ID,
		TxnID:      c.TransactionNumber,
		Type:       t.txnType,
		IsClosed:   t.close != leftOpen,
		IsFailsafe: t.close == failsafeClosed,
		IsCancel:   t.cancel,
		Message:    message,
		RawDetails: c.Raw,
		CreatedAt:  r.now(),
	}
	order.Transactions = append(order.Transactions, txn)
	order.Payment.LastTransactionID = c.TransactionNumber

	if err := r.repo.SaveOrder(ctx, order); err != nil {
		// Best effort: the callback must not fail loudly even when
		// persistence does. The caller owns any alerting.
		r.trail.Append(order.IncrementID, "Error: "+err.Error())
		if telemetry.Business != nil {
			telemetry.Business.SaveFailures.Inc()
		}
		telemetry.CaptureErrorWithOrder(err, order.IncrementID, map[string]interface{}{
			"transaction_number": c.TransactionNumber,
		})
	} else {
		r.trail.Append(order.IncrementID, message)
	}

	if telemetry.Business != nil {
		telemetry.Business.TransactionsRecorded.WithLabelValues(string(txn.Type)).Inc()
	}

	return txn, nil
}
