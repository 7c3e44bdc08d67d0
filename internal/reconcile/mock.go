package reconcile

import (
	"context"
	"fmt"

	"github.com/dukerupert/skuld/internal/domain"
)

// MockOrderRepository is an in-memory order repository for testing.
// Simulates the host persistence layer without a database.
type MockOrderRepository struct {
	// GetOrderByIncrementIDFunc allows customizing order lookup behavior
	GetOrderByIncrementIDFunc func(ctx context.Context, incrementID string) (*domain.Order, error)

	// SaveOrderFunc allows customizing save behavior (e.g. injecting failures)
	SaveOrderFunc func(ctx context.Context, order *domain.Order) error

	// FindTransactionFunc allows customizing transaction lookup behavior
	FindTransactionFunc func(ctx context.Context, orderID int64, txnID string) (*domain.Transaction, error)

	// Orders stores aggregates by increment id for retrieval
	Orders map[string]*domain.Order

	// Saved counts successful SaveOrder calls
	Saved int

	// CallLog tracks method calls for test assertions
	CallLog []string
}

// NewMockOrderRepository creates a new mock order repository.
func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{
		Orders:  make(map[string]*domain.Order),
		CallLog: []string{},
	}
}

// AddOrder registers an aggregate with the mock.
func (m *MockOrderRepository) AddOrder(order *domain.Order) {
	m.Orders[order.IncrementID] = order
}

func (m *MockOrderRepository) GetOrderByIncrementID(ctx context.Context, incrementID string) (*domain.Order, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("GetOrderByIncrementID(%s)", incrementID))

	if m.GetOrderByIncrementIDFunc != nil {
		return m.GetOrderByIncrementIDFunc(ctx, incrementID)
	}

	order, ok := m.Orders[incrementID]
	if !ok {
		return nil, domain.NotFound("order.get", "order", incrementID)
	}
	return order, nil
}

func (m *MockOrderRepository) SaveOrder(ctx context.Context, order *domain.Order) error {
	m.CallLog = append(m.CallLog, fmt.Sprintf("SaveOrder(%s)", order.IncrementID))

	if m.SaveOrderFunc != nil {
		return m.SaveOrderFunc(ctx, order)
	}

	m.Orders[order.IncrementID] = order
	m.Saved++
	return nil
}

func (m *MockOrderRepository) FindTransaction(ctx context.Context, orderID int64, txnID string) (*domain.Transaction, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("FindTransaction(%d, %s)", orderID, txnID))

	if m.FindTransactionFunc != nil {
		return m.FindTransactionFunc(ctx, orderID, txnID)
	}

	for _, order := range m.Orders {
		if order.ID != orderID {
			continue
		}
		for _, txn := range order.Transactions {
			if txn.TxnID == txnID {
				return txn, nil
			}
		}
	}
	return nil, domain.NotFound("transaction.find", "transaction", txnID)
}

func (m *MockOrderRepository) FirstTransactionID(ctx context.Context, orderID int64) (string, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("FirstTransactionID(%d)", orderID))

	for _, order := range m.Orders {
		if order.ID != orderID {
			continue
		}
		if len(order.Transactions) > 0 {
			return order.Transactions[0].TxnID, nil
		}
	}
	return "", domain.NotFound("transaction.first", "transaction", fmt.Sprintf("order %d", orderID))
}

func (m *MockOrderRepository) AddStatusHistory(ctx context.Context, orderID int64, status, comment string) error {
	m.CallLog = append(m.CallLog, fmt.Sprintf("AddStatusHistory(%d, %s, %s)", orderID, status, comment))
	return nil
}

// Compile-time check that the mock satisfies the repository interface.
var _ domain.OrderRepository = (*MockOrderRepository)(nil)
