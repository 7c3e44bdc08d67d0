package handler

import (
	"net/http"

	"github.com/dukerupert/skuld/internal/domain"
	"github.com/dukerupert/skuld/internal/invoice"
)

// InvoicePrintHandler serves the invoice print document for an order.
type InvoicePrintHandler struct {
	repo      domain.OrderRepository
	projector *invoice.Projector
}

// NewInvoicePrintHandler creates a new invoice print handler.
func NewInvoicePrintHandler(repo domain.OrderRepository, projector *invoice.Projector) *InvoicePrintHandler {
	return &InvoicePrintHandler{
		repo:      repo,
		projector: projector,
	}
}

// ServeHTTP renders the OnlineInvoice document for the order named by the
// orderRef query parameter.
func (h *InvoicePrintHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	orderRef := r.URL.Query().Get("orderRef")
	if orderRef == "" {
		ErrorResponse(w, r, domain.Invalid("invoice.print", "orderRef is required"))
		return
	}

	order, err := h.repo.GetOrderByIncrementID(r.Context(), orderRef)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	doc, err := h.projector.PrintXML(order)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}
