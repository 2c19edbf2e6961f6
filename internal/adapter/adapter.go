// Package adapter defines the contract between the checkout workflow and a
// hosted-checkout payment gateway, plus the collaborators a gateway adapter
// is handed explicitly: the workflow, the order store and the audit sink.
// Implementations live in sub-packages (opp, mock).
package adapter

import (
	stdcontext "context"
	"errors"
	"fmt"
	"strings"

	"github.com/yourorg/opp-checkout/internal/context"
	"github.com/yourorg/opp-checkout/internal/order"
)

// Phases reported in GatewayError and log fields.
const (
	PhaseInitiate = "initiate"
	PhaseVerify   = "verify"
	PhaseCapture  = "capture"
)

// Checkout workflow steps.
const (
	StepProcess  = "process"
	StepComplete = "complete"
	StepFailed   = "failed"
)

var (
	// ErrTransport wraps network and HTTP-layer failures talking to the gateway.
	ErrTransport = errors.New("gateway transport failure")
	// ErrCircuitOpen is returned without calling the gateway while its host is
	// tripped. It wraps ErrTransport.
	ErrCircuitOpen = fmt.Errorf("%w: circuit open", ErrTransport)
)

// Workflow is the checkout flow driving the adapter.
type Workflow interface {
	// RedirectToStep sends the shopper to the named step.
	RedirectToStep(step string)
	// GenerateURLForStep returns the absolute URL of a step for the order.
	GenerateURLForStep(step string, o *order.Order) string
}

// OrderStore persists an order after its payment history changes.
type OrderStore interface {
	Save(ctx stdcontext.Context, o *order.Order) error
}

// AuditSink receives raw gateway exchanges.
type AuditSink interface {
	Log(entry string)
}

// NopAudit discards audit entries.
type NopAudit struct{}

// Log implements AuditSink.
func (NopAudit) Log(string) {}

// FormDescriptor is everything a client-side payment widget needs.
type FormDescriptor struct {
	BaseURL    string `json:"base_url"`
	Action     string `json:"action"`      // completion callback URL
	CheckoutID string `json:"checkout_id"` // gateway-issued checkout id
	Brands     string `json:"brands,omitempty"`
}

// PaymentGateway is implemented by each hosted-checkout gateway adapter.
type PaymentGateway interface {
	// InitiateCheckout creates a gateway checkout for the order. On a result
	// code mismatch it redirects wf to StepFailed and returns a *GatewayError.
	InitiateCheckout(traceCtx context.TraceContext, o *order.Order, wf Workflow) (*FormDescriptor, error)

	// VerifyAndCapture confirms the payment behind checkoutID and, in capture
	// mode, captures it. A false result with a nil error is a rejected payment.
	VerifyAndCapture(traceCtx context.TraceContext, o *order.Order, checkoutID string) (bool, error)

	// GetName returns the gateway key used in the order's payment history.
	GetName() string
}

// GatewayError is a gateway response that failed an expected-value check.
type GatewayError struct {
	Phase      string
	OrderID    string
	ResultCode string
	Violations []string
	Err        error
}

func (e *GatewayError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "gateway %s mismatch for order %s", e.Phase, e.OrderID)
	if e.ResultCode != "" {
		fmt.Fprintf(&b, " (result code %s)", e.ResultCode)
	}
	if len(e.Violations) > 0 {
		fmt.Fprintf(&b, ": %s", strings.Join(e.Violations, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *GatewayError) Unwrap() error { return e.Err }

// ParseError is a gateway response that could not be decoded into the
// expected shape.
type ParseError struct {
	Missing []string
	Err     error
}

func (e *ParseError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("gateway response missing required fields: %s", strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("gateway response malformed: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsMismatch reports whether err is a protocol mismatch rather than a
// transport or persistence failure.
func IsMismatch(err error) bool {
	var ge *GatewayError
	var pe *ParseError
	return errors.As(err, &ge) || errors.As(err, &pe)
}
