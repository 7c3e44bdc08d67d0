package invoice

import (
	"context"
	"fmt"

	"github.com/dukerupert/skuld/internal/domain"
)

// MockInvoiceFactory is a mock host invoice factory for testing.
type MockInvoiceFactory struct {
	// PrepareInvoiceFunc allows customizing preparation behavior
	PrepareInvoiceFunc func(ctx context.Context, order *domain.Order) (*domain.Invoice, error)

	// RegisterInvoiceFunc allows customizing registration behavior
	// (e.g. injecting persistence failures)
	RegisterInvoiceFunc func(ctx context.Context, inv *domain.Invoice, order *domain.Order) error

	// Registered stores invoices that passed registration
	Registered []*domain.Invoice

	// CallLog tracks method calls for test assertions
	CallLog []string
}

// NewMockInvoiceFactory creates a new mock invoice factory.
func NewMockInvoiceFactory() *MockInvoiceFactory {
	return &MockInvoiceFactory{CallLog: []string{}}
}

func (m *MockInvoiceFactory) PrepareInvoice(ctx context.Context, order *domain.Order) (*domain.Invoice, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("PrepareInvoice(%s)", order.IncrementID))

	if m.PrepareInvoiceFunc != nil {
		return m.PrepareInvoiceFunc(ctx, order)
	}

	return &domain.Invoice{
		IncrementID: "INV-" + order.IncrementID,
		OrderID:     order.ID,
		GrandTotal:  order.GrandTotal,
	}, nil
}

func (m *MockInvoiceFactory) RegisterInvoice(ctx context.Context, inv *domain.Invoice, order *domain.Order) error {
	m.CallLog = append(m.CallLog, fmt.Sprintf("RegisterInvoice(%s)", inv.IncrementID))

	if m.RegisterInvoiceFunc != nil {
		return m.RegisterInvoiceFunc(ctx, inv, order)
	}

	inv.ID = int64(len(m.Registered) + 1)
	m.Registered = append(m.Registered, inv)
	return nil
}

func (m *MockInvoiceFactory) SaveInvoice(ctx context.Context, inv *domain.Invoice) error {
	m.CallLog = append(m.CallLog, fmt.Sprintf("SaveInvoice(%s)", inv.IncrementID))
	return nil
}

var _ domain.InvoiceFactory = (*MockInvoiceFactory)(nil)

// MockCreditMemoFactory is a mock host credit memo factory for testing.
type MockCreditMemoFactory struct {
	// PrepareCreditMemoFunc allows customizing preparation behavior
	PrepareCreditMemoFunc func(ctx context.Context, order *domain.Order, inv *domain.Invoice) (*domain.CreditMemo, error)

	// RegisterCreditMemoFunc allows customizing registration behavior
	RegisterCreditMemoFunc func(ctx context.Context, memo *domain.CreditMemo, order *domain.Order, inv *domain.Invoice) error

	// Registered stores memos that passed registration
	Registered []*domain.CreditMemo

	// CallLog tracks method calls for test assertions
	CallLog []string
}

// NewMockCreditMemoFactory creates a new mock credit memo factory.
func NewMockCreditMemoFactory() *MockCreditMemoFactory {
	return &MockCreditMemoFactory{CallLog: []string{}}
}

func (m *MockCreditMemoFactory) PrepareCreditMemo(ctx context.Context, order *domain.Order, inv *domain.Invoice) (*domain.CreditMemo, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("PrepareCreditMemo(%s)", order.IncrementID))

	if m.PrepareCreditMemoFunc != nil {
		return m.PrepareCreditMemoFunc(ctx, order, inv)
	}

	memo := &domain.CreditMemo{OrderID: order.ID}
	if inv != nil {
		memo.InvoiceID = inv.ID
	}
	return memo, nil
}

func (m *MockCreditMemoFactory) RegisterCreditMemo(ctx context.Context, memo *domain.CreditMemo, order *domain.Order, inv *domain.Invoice) error {
	m.CallLog = append(m.CallLog, fmt.Sprintf("RegisterCreditMemo(order %s)", order.IncrementID))

	if m.RegisterCreditMemoFunc != nil {
		return m.RegisterCreditMemoFunc(ctx, memo, order, inv)
	}

	memo.ID = int64(len(m.Registered) + 1)
	m.Registered = append(m.Registered, memo)
	return nil
}

var _ domain.CreditMemoFactory = (*MockCreditMemoFactory)(nil)
