package mock

import (
	stdcontext "context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/opp-checkout/internal/adapter"
	"github.com/yourorg/opp-checkout/internal/context"
	"github.com/yourorg/opp-checkout/internal/order"
)

type stubWorkflow struct{ redirects []string }

func (w *stubWorkflow) RedirectToStep(step string) { w.redirects = append(w.redirects, step) }

func (w *stubWorkflow) GenerateURLForStep(step string, o *order.Order) string {
	return "/checkout/" + o.ID + "/" + step
}

var _ adapter.PaymentGateway = (*MockGateway)(nil)

func TestNewMockGateway(t *testing.T) {
	mock := NewMockGateway("test_mock")
	require.NotNil(t, mock)
	assert.Equal(t, "test_mock", mock.GetName())
}

func TestMockGateway_DefaultBehavior(t *testing.T) {
	mock := NewMockGateway("OPP")
	o, err := order.New("o-1", 1000, "EUR")
	require.NoError(t, err)
	tc := context.NewTraceContext(stdcontext.Background())

	form, err := mock.InitiateCheckout(tc, o, &stubWorkflow{})
	require.NoError(t, err)
	assert.NotEmpty(t, form.CheckoutID)
	assert.Equal(t, "/checkout/o-1/complete", form.Action)
	assert.Len(t, o.Payments("OPP"), 1)

	ok, err := mock.VerifyAndCapture(tc, o, form.CheckoutID)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, []string{"o-1"}, mock.InitiatedOrders())
	assert.Equal(t, []string{form.CheckoutID}, mock.VerifiedCheckouts())
}

func TestMockGateway_WithCustomFuncs(t *testing.T) {
	mock := NewMockGateway("custom")
	expected := errors.New("custom verify error")
	mock.InitiateFunc = func(tc context.TraceContext, o *order.Order, wf adapter.Workflow) (*adapter.FormDescriptor, error) {
		wf.RedirectToStep(adapter.StepFailed)
		return nil, &adapter.GatewayError{Phase: adapter.PhaseInitiate, OrderID: o.ID}
	}
	mock.VerifyFunc = func(tc context.TraceContext, o *order.Order, checkoutID string) (bool, error) {
		return false, expected
	}

	o, err := order.New("o-2", 1, "USD")
	require.NoError(t, err)
	tc := context.NewTraceContext(stdcontext.Background())
	wf := &stubWorkflow{}

	form, err := mock.InitiateCheckout(tc, o, wf)
	assert.Nil(t, form)
	assert.True(t, adapter.IsMismatch(err))
	assert.Equal(t, []string{adapter.StepFailed}, wf.redirects)

	ok, err := mock.VerifyAndCapture(tc, o, "chk")
	assert.False(t, ok)
	assert.Equal(t, expected, err)
}
