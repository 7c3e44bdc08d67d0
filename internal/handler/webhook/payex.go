// Package webhook receives the payment gateway's transaction callbacks and
// feeds them through the reconciler.
package webhook

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/skuld/internal/audit"
	"github.com/dukerupert/skuld/internal/domain"
	"github.com/dukerupert/skuld/internal/handler"
	"github.com/dukerupert/skuld/internal/invoice"
	"github.com/dukerupert/skuld/internal/reconcile"
	"github.com/dukerupert/skuld/internal/telemetry"
	"github.com/go-playground/validator/v10"
)

// PayexHandler handles gateway transaction callback requests.
type PayexHandler struct {
	repo       domain.OrderRepository
	reconciler *reconcile.TransactionReconciler
	invoices   *invoice.Service
	trail      audit.Sink
	validate   *validator.Validate
}

// NewPayexHandler creates a new gateway callback handler.
func NewPayexHandler(repo domain.OrderRepository, reconciler *reconcile.TransactionReconciler, invoices *invoice.Service, trail audit.Sink) *PayexHandler {
	return &PayexHandler{
		repo:       repo,
		reconciler: reconciler,
		invoices:   invoices,
		trail:      trail,
		validate:   validator.New(),
	}
}

// callbackRequest is the form-encoded callback payload. The status field is
// deliberately not validated here: an unrecognized or missing status still
// has defined processing semantics downstream.
type callbackRequest struct {
	OrderRef          string `validate:"required"`
	TransactionNumber string `validate:"required"`
}

// HandleCallback processes one transaction callback.
//
// Usage in main.go or router:
//
//	payexHandler := webhook.NewPayexHandler(orderRepo, reconciler, trail)
//	http.HandleFunc("/webhooks/payex", payexHandler.HandleCallback)
//
// The gateway retries on any non-2xx response. Malformed payloads get a 400
// since retrying them cannot help; transient server-side failures get a 500
// so the gateway retries; everything else is acknowledged with a 200 even
// when the callback could not be applied.
func (h *PayexHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	log.Printf("[WEBHOOK] Received request: %s %s", r.Method, r.URL.Path)

	// Only accept POST requests
	if r.Method != http.MethodPost {
		log.Printf("[WEBHOOK] Rejected: method %s not allowed", r.Method)
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "", "Method not allowed"))
		return
	}

	if err := r.ParseForm(); err != nil {
		log.Printf("[WEBHOOK] Error parsing form payload: %v", err)
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "", "Error reading request body"))
		return
	}

	req := callbackRequest{
		OrderRef:          r.PostFormValue("orderRef"),
		TransactionNumber: r.PostFormValue("transactionNumber"),
	}
	if err := h.validate.Struct(req); err != nil {
		log.Printf("[WEBHOOK] Payload validation failed: %v", err)
		if telemetry.Business != nil {
			telemetry.Business.CallbackFailed.WithLabelValues("none", "validation").Inc()
		}
		handler.ErrorResponse(w, r, domain.Invalid("callback.parse", "orderRef and transactionNumber are required"))
		return
	}

	rawStatus := r.PostFormValue("transactionStatus")
	statusLabel := rawStatus
	if statusLabel == "" {
		statusLabel = "none"
	}

	callback := domain.Callback{
		TransactionNumber: req.TransactionNumber,
		Pending:           r.PostFormValue("pending") == "true",
		Raw:               make(map[string]string, len(r.PostForm)),
	}
	for key := range r.PostForm {
		callback.Raw[key] = r.PostFormValue(key)
	}
	if code, err := strconv.Atoi(rawStatus); err == nil {
		status := domain.TransactionStatus(code)
		callback.Status = &status
	}

	log.Printf("[WEBHOOK] Callback for order %s: transaction %s, status %s",
		req.OrderRef, req.TransactionNumber, statusLabel)

	if telemetry.Business != nil {
		telemetry.Business.CallbackReceived.WithLabelValues(statusLabel).Inc()
	}

	// Track processing time at the end
	defer func() {
		if telemetry.Business != nil {
			duration := time.Since(startTime).Seconds()
			telemetry.Business.CallbackLatency.WithLabelValues(statusLabel).Observe(duration)
		}
	}()

	ctx := r.Context()
	order, err := h.repo.GetOrderByIncrementID(ctx, req.OrderRef)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			// Acknowledge: the gateway cannot fix an unknown order by retrying.
			log.Printf("[WEBHOOK] Order %s not found, acknowledging callback", req.OrderRef)
			h.trail.Append(req.OrderRef, "Error: order not found for gateway callback.")
			if telemetry.Business != nil {
				telemetry.Business.CallbackFailed.WithLabelValues(statusLabel, "order_not_found").Inc()
			}
			ack(w)
			return
		}
		log.Printf("[WEBHOOK] Order lookup failed for %s: %v", req.OrderRef, err)
		handler.ErrorResponse(w, r, domain.Internal(err, "callback.order", "failed to load order"))
		return
	}

	transactionsBefore := len(order.Transactions)
	txn, err := h.reconciler.ProcessTransaction(ctx, order, callback)
	if err != nil {
		switch {
		case errors.Is(err, reconcile.ErrInvalidTransactionStatus):
			// Acknowledged: retrying the same status cannot succeed.
			log.Printf("[WEBHOOK] Invalid transaction status %s for order %s", statusLabel, req.OrderRef)
			if telemetry.Business != nil {
				telemetry.Business.CallbackFailed.WithLabelValues(statusLabel, "invalid_status").Inc()
			}
			ack(w)

		case errors.Is(err, reconcile.ErrNoPayment):
			log.Printf("[WEBHOOK] CRITICAL: order %s has no payment record", req.OrderRef)
			if telemetry.Business != nil {
				telemetry.Business.CallbackFailed.WithLabelValues(statusLabel, "no_payment").Inc()
			}
			telemetry.CaptureErrorWithOrder(err, req.OrderRef, map[string]interface{}{
				"transaction_number": req.TransactionNumber,
			})
			ack(w)

		default:
			log.Printf("[WEBHOOK] Failed to process transaction %s for order %s: %v",
				req.TransactionNumber, req.OrderRef, err)
			if telemetry.Business != nil {
				telemetry.Business.CallbackFailed.WithLabelValues(statusLabel, "processing_failed").Inc()
			}
			handler.ErrorResponse(w, r, err)
		}
		return
	}

	log.Printf("[WEBHOOK] Recorded %s transaction %s for order %s (closed: %t, cancel: %t)",
		txn.Type, txn.TxnID, req.OrderRef, txn.IsClosed, txn.IsCancel)

	// A freshly recorded closed capture means the gateway collected the
	// payment; invoice it offline. Retried callbacks take the duplicate path
	// above and never reach here, so captures are invoiced once.
	newlyRecorded := len(order.Transactions) > transactionsBefore
	if newlyRecorded && txn.Type == domain.TxnTypeCapture && txn.IsClosed {
		if _, err := h.invoices.MakeInvoice(ctx, order, false); err != nil {
			// The transaction is already recorded; a gateway retry cannot
			// recreate the invoice. Alert and acknowledge.
			log.Printf("[WEBHOOK] CRITICAL: failed to invoice captured order %s: %v", req.OrderRef, err)
			if telemetry.Business != nil {
				telemetry.Business.CallbackFailed.WithLabelValues(statusLabel, "invoice_failed").Inc()
			}
			telemetry.CaptureErrorWithOrder(err, req.OrderRef, map[string]interface{}{
				"transaction_number": req.TransactionNumber,
			})
			ack(w)
			return
		}
		log.Printf("[WEBHOOK] Invoiced captured order %s", req.OrderRef)
	}

	if telemetry.Business != nil {
		telemetry.Business.CallbackProcessed.WithLabelValues(statusLabel).Inc()
	}

	ack(w)
}

// ack acknowledges receipt. The gateway retries anything else.
func ack(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"received": true}`))
}
