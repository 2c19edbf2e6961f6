package mock

import (
	"sync"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/yourorg/opp-checkout/internal/adapter"
	"github.com/yourorg/opp-checkout/internal/context"
	"github.com/yourorg/opp-checkout/internal/order"
)

// MockGateway is a mock implementation of the PaymentGateway interface for testing.
type MockGateway struct {
	Name         string
	InitiateFunc func(tc context.TraceContext, o *order.Order, wf adapter.Workflow) (*adapter.FormDescriptor, error)
	VerifyFunc   func(tc context.TraceContext, o *order.Order, checkoutID string) (bool, error)

	mu        sync.Mutex
	initiated []string // order ids
	verified  []string // checkout ids
}

// NewMockGateway creates a new MockGateway.
func NewMockGateway(name string) *MockGateway {
	return &MockGateway{Name: name}
}

// InitiateCheckout implements the PaymentGateway interface.
// It calls InitiateFunc if defined, otherwise records a fake response in the
// order history and returns a descriptor with a random checkout id.
func (m *MockGateway) InitiateCheckout(tc context.TraceContext, o *order.Order, wf adapter.Workflow) (*adapter.FormDescriptor, error) {
	m.mu.Lock()
	m.initiated = append(m.initiated, o.ID)
	m.mu.Unlock()

	if m.InitiateFunc != nil {
		return m.InitiateFunc(tc, o, wf)
	}

	checkoutID := uuid.NewString()
	if rec, err := structpb.NewStruct(map[string]any{
		"id":     checkoutID,
		"result": map[string]any{"code": "000.200.100"},
	}); err == nil {
		o.AppendPayment(m.Name, rec)
	}
	return &adapter.FormDescriptor{
		BaseURL:    "https://mock.gateway.invalid",
		Action:     wf.GenerateURLForStep(adapter.StepComplete, o),
		CheckoutID: checkoutID,
	}, nil
}

// VerifyAndCapture implements the PaymentGateway interface.
// It calls VerifyFunc if defined, otherwise succeeds.
func (m *MockGateway) VerifyAndCapture(tc context.TraceContext, o *order.Order, checkoutID string) (bool, error) {
	m.mu.Lock()
	m.verified = append(m.verified, checkoutID)
	m.mu.Unlock()

	if m.VerifyFunc != nil {
		return m.VerifyFunc(tc, o, checkoutID)
	}
	return true, nil
}

// GetName implements the PaymentGateway interface.
func (m *MockGateway) GetName() string {
	return m.Name
}

// InitiatedOrders returns the order ids InitiateCheckout was called with.
func (m *MockGateway) InitiatedOrders() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.initiated...)
}

// VerifiedCheckouts returns the checkout ids VerifyAndCapture was called with.
func (m *MockGateway) VerifiedCheckouts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.verified...)
}
