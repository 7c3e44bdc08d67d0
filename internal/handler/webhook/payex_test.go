package webhook_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/dukerupert/skuld/internal/audit"
	"github.com/dukerupert/skuld/internal/domain"
	"github.com/dukerupert/skuld/internal/handler/webhook"
	"github.com/dukerupert/skuld/internal/invoice"
	"github.com/dukerupert/skuld/internal/reconcile"
	"github.com/stretchr/testify/assert"
)

func callbackOrder() *domain.Order {
	return &domain.Order{
		ID:          42,
		IncrementID: "100000042",
		GrandTotal:  12.50,
		Payment:     &domain.Payment{ID: 7, OrderID: 42},
	}
}

func newCallbackHandler(repo *reconcile.MockOrderRepository, trail audit.Sink) (*webhook.PayexHandler, *invoice.MockInvoiceFactory) {
	invoices := invoice.NewMockInvoiceFactory()
	svc := invoice.NewService(repo, invoices, invoice.NewMockCreditMemoFactory(), trail)
	return webhook.NewPayexHandler(repo, reconcile.NewTransactionReconciler(repo, trail), svc, trail), invoices
}

func postCallback(t *testing.T, h *webhook.PayexHandler, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payex", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.HandleCallback(rec, req)
	return rec
}

// Test_HandleCallback_RecordsTransaction validates the happy path: a valid
// callback records a transaction on the order and is acknowledged.
func Test_HandleCallback_RecordsTransaction(t *testing.T) {
	repo := reconcile.NewMockOrderRepository()
	order := callbackOrder()
	repo.AddOrder(order)
	h, invoices := newCallbackHandler(repo, audit.NewMemory())

	rec := postCallback(t, h, url.Values{
		"orderRef":          {"100000042"},
		"transactionNumber": {"txn-1001"},
		"transactionStatus": {"3"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received": true}`, rec.Body.String())
	if assert.Len(t, order.Transactions, 1) {
		assert.Equal(t, domain.TxnTypeAuth, order.Transactions[0].Type)
		assert.False(t, order.Transactions[0].IsClosed)
	}
	assert.Equal(t, 1, repo.Saved)
	assert.Empty(t, invoices.Registered, "open authorizations must not be invoiced")
}

// Test_HandleCallback_CaptureCreatesInvoice validates that a capture callback
// records the transaction and invoices the order offline.
func Test_HandleCallback_CaptureCreatesInvoice(t *testing.T) {
	repo := reconcile.NewMockOrderRepository()
	order := callbackOrder()
	repo.AddOrder(order)
	h, invoices := newCallbackHandler(repo, audit.NewMemory())

	rec := postCallback(t, h, url.Values{
		"orderRef":          {"100000042"},
		"transactionNumber": {"txn-1001"},
		"transactionStatus": {"6"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	if assert.Len(t, invoices.Registered, 1) {
		inv := invoices.Registered[0]
		assert.Equal(t, domain.CaptureOffline, inv.CaptureCase, "payment already collected by the gateway")
		assert.Equal(t, "txn-1001", inv.TransactionID)
	}
}

// Test_HandleCallback_RejectsMalformedRequests validates the 400 paths:
// wrong method and missing required fields.
func Test_HandleCallback_RejectsMalformedRequests(t *testing.T) {
	t.Run("method not allowed", func(t *testing.T) {
		h, _ := newCallbackHandler(reconcile.NewMockOrderRepository(), audit.NewMemory())

		req := httptest.NewRequest(http.MethodGet, "/webhooks/payex", nil)
		rec := httptest.NewRecorder()
		h.HandleCallback(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing transaction number", func(t *testing.T) {
		repo := reconcile.NewMockOrderRepository()
		h, _ := newCallbackHandler(repo, audit.NewMemory())

		rec := postCallback(t, h, url.Values{
			"orderRef":          {"100000042"},
			"transactionStatus": {"3"},
		})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, repo.CallLog, "invalid payloads must not reach the repository")
	})

	t.Run("missing order ref", func(t *testing.T) {
		h, _ := newCallbackHandler(reconcile.NewMockOrderRepository(), audit.NewMemory())

		rec := postCallback(t, h, url.Values{
			"transactionNumber": {"txn-1001"},
			"transactionStatus": {"3"},
		})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

// Test_HandleCallback_UnknownOrderAcknowledged validates that a callback for
// an order this store never created is acknowledged so the gateway stops
// retrying, with the miss recorded in the audit trail.
func Test_HandleCallback_UnknownOrderAcknowledged(t *testing.T) {
	trail := audit.NewMemory()
	h, _ := newCallbackHandler(reconcile.NewMockOrderRepository(), trail)

	rec := postCallback(t, h, url.Values{
		"orderRef":          {"999999999"},
		"transactionNumber": {"txn-1001"},
		"transactionStatus": {"3"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, trail.Messages("999999999"), "Error: order not found for gateway callback.")
}

// Test_HandleCallback_InvalidStatusAcknowledged validates that unrecognized
// and missing status codes record nothing but still acknowledge.
func Test_HandleCallback_InvalidStatusAcknowledged(t *testing.T) {
	tests := []struct {
		name string
		form url.Values
	}{
		{
			name: "unrecognized status code",
			form: url.Values{
				"orderRef":          {"100000042"},
				"transactionNumber": {"txn-1001"},
				"transactionStatus": {"9"},
			},
		},
		{
			name: "missing status field",
			form: url.Values{
				"orderRef":          {"100000042"},
				"transactionNumber": {"txn-1001"},
			},
		},
		{
			name: "non-numeric status",
			form: url.Values{
				"orderRef":          {"100000042"},
				"transactionNumber": {"txn-1001"},
				"transactionStatus": {"credit"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := reconcile.NewMockOrderRepository()
			order := callbackOrder()
			repo.AddOrder(order)
			h, _ := newCallbackHandler(repo, audit.NewMemory())

			rec := postCallback(t, h, tt.form)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Empty(t, order.Transactions)
			assert.Equal(t, 0, repo.Saved, "nothing may be persisted for an invalid status")
		})
	}
}

// Test_HandleCallback_DuplicateAcknowledged validates retried callbacks do
// not record a second transaction.
func Test_HandleCallback_DuplicateAcknowledged(t *testing.T) {
	repo := reconcile.NewMockOrderRepository()
	order := callbackOrder()
	repo.AddOrder(order)
	h, invoices := newCallbackHandler(repo, audit.NewMemory())
	form := url.Values{
		"orderRef":          {"100000042"},
		"transactionNumber": {"txn-1001"},
		"transactionStatus": {"6"},
	}

	first := postCallback(t, h, form)
	second := postCallback(t, h, form)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Len(t, order.Transactions, 1)
	assert.Equal(t, 1, repo.Saved)
	assert.Len(t, invoices.Registered, 1, "a retried capture must not invoice twice")
}

// Test_HandleCallback_SaveFailureStillAcknowledged validates the gateway gets
// its acknowledgment even when the host cannot persist the order.
func Test_HandleCallback_SaveFailureStillAcknowledged(t *testing.T) {
	repo := reconcile.NewMockOrderRepository()
	repo.AddOrder(callbackOrder())
	repo.SaveOrderFunc = func(ctx context.Context, order *domain.Order) error {
		return errors.New("deadlock detected")
	}
	h, _ := newCallbackHandler(repo, audit.NewMemory())

	rec := postCallback(t, h, url.Values{
		"orderRef":          {"100000042"},
		"transactionNumber": {"txn-1001"},
		"transactionStatus": {"6"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
}

// Test_HandleCallback_LookupFailureRetries validates transient lookup
// failures produce a 500 so the gateway retries later.
func Test_HandleCallback_LookupFailureRetries(t *testing.T) {
	repo := reconcile.NewMockOrderRepository()
	repo.GetOrderByIncrementIDFunc = func(ctx context.Context, incrementID string) (*domain.Order, error) {
		return nil, errors.New("connection refused")
	}
	h, _ := newCallbackHandler(repo, audit.NewMemory())

	rec := postCallback(t, h, url.Values{
		"orderRef":          {"100000042"},
		"transactionNumber": {"txn-1001"},
		"transactionStatus": {"3"},
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
