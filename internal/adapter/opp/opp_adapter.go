// Package opp implements adapter.PaymentGateway for the Open Payment Platform
// hosted checkout (COPYandPAY style): create a checkout, verify the payment
// the shopper completed in the widget, then optionally capture it.
package opp

import (
	stdcontext "context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/yourorg/opp-checkout/internal/adapter"
	"github.com/yourorg/opp-checkout/internal/circuitbreaker"
	"github.com/yourorg/opp-checkout/internal/context"
	"github.com/yourorg/opp-checkout/internal/logging"
	"github.com/yourorg/opp-checkout/internal/monitor"
	"github.com/yourorg/opp-checkout/internal/order"
	"github.com/yourorg/opp-checkout/internal/policy"
)

const (
	// GatewayKey is the payment history key responses are stored under.
	GatewayKey = "OPP"

	CodeCheckoutCreated      = "000.200.100"
	CodeTransactionSucceeded = "000.100.110"

	PaymentTypePreauthorization = "PA"
	PaymentTypeCapture          = "CP"

	spanCreateCheckout = "OPP.CreateCheckout"
	spanVerifyPayment  = "OPP.VerifyPayment"
	spanCapturePayment = "OPP.CapturePayment"

	defaultHTTPTimeout = 10 * time.Second
	tracerName         = "github.com/yourorg/opp-checkout/internal/adapter/opp"
)

var errEmptyCheckoutID = errors.New("opp: empty checkout id")

var _ adapter.PaymentGateway = (*Adapter)(nil)

// Adapter talks to one OPP entity with fixed credentials.
type Adapter struct {
	creds      context.GatewayCredentials
	store      adapter.OrderStore
	audit      adapter.AuditSink
	logger     *zap.Logger
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	tracer     trace.Tracer
	brands     string
	apiBaseURL string // Allow overriding for testing

	checkoutContract *monitor.ContractMonitor
	paymentContract  *monitor.ContractMonitor
	checkoutRules    *policy.RuleSet
	verifyRules      *policy.RuleSet
	captureRules     *policy.RuleSet
}

// Option customises an Adapter.
type Option func(*Adapter)

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(client *http.Client) Option {
	return func(a *Adapter) {
		if client != nil {
			a.httpClient = client
		}
	}
}

// WithLogger sets the structured error logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithAudit sets the raw-exchange audit sink.
func WithAudit(sink adapter.AuditSink) Option {
	return func(a *Adapter) {
		if sink != nil {
			a.audit = sink
		}
	}
}

// WithBreaker shares a circuit breaker between adapters.
func WithBreaker(cb *circuitbreaker.CircuitBreaker) Option {
	return func(a *Adapter) {
		if cb != nil {
			a.breaker = cb
		}
	}
}

// WithBrands sets the card brands offered by the payment widget.
func WithBrands(brands string) Option {
	return func(a *Adapter) { a.brands = brands }
}

// WithTracerProvider uses tp instead of the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(a *Adapter) {
		if tp != nil {
			a.tracer = tp.Tracer(tracerName)
		}
	}
}

// NewAdapter creates an Adapter. store persists the order after every
// gateway response.
func NewAdapter(creds context.GatewayCredentials, store adapter.OrderStore, opts ...Option) *Adapter {
	a := &Adapter{
		creds:      creds,
		store:      store,
		audit:      adapter.NopAudit{},
		logger:     zap.NewNop(),
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		breaker:    circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{}),
		tracer:     otel.Tracer(tracerName),

		checkoutContract: monitor.MustContractMonitor("opp.checkout", checkoutSchema),
		paymentContract:  monitor.MustContractMonitor("opp.payment", paymentSchema),
		checkoutRules:    policy.MustRuleSet("opp.checkout", policy.CheckoutRules()),
		verifyRules:      policy.MustRuleSet("opp.verify", policy.VerifyRules()),
		captureRules:     policy.MustRuleSet("opp.capture", policy.CaptureRules()),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// GetName returns the payment history key.
func (a *Adapter) GetName() string {
	return GatewayKey
}

// BaseURL returns the gateway host the adapter talks to.
func (a *Adapter) BaseURL() string {
	if a.apiBaseURL != "" {
		return a.apiBaseURL
	}
	return a.creds.BaseURL()
}

// InitiateCheckout creates a PA checkout for the order's total.
func (a *Adapter) InitiateCheckout(traceCtx context.TraceContext, o *order.Order, wf adapter.Workflow) (*adapter.FormDescriptor, error) {
	const origin = "opp.Adapter.InitiateCheckout"
	start := time.Now()

	ctx, span := a.startSpan(traceCtx, spanCreateCheckout, o)
	defer span.End()
	traceCtx = traceCtx.WithContext(ctx)
	log := a.log(traceCtx, o, origin, adapter.PhaseInitiate)

	base := a.BaseURL()
	ex, err := a.call(traceCtx, http.MethodPost, base+"/v1/checkouts", buildPaymentForm(a.creds, o, PaymentTypePreauthorization))
	if err != nil {
		a.fail(span, opCreateCheckout, start, err)
		log.Error("checkout request failed", zap.Error(err))
		return nil, fmt.Errorf("opp: create checkout for order %s: %w", o.ID, err)
	}
	if err := a.persist(ctx, o, ex); err != nil {
		a.fail(span, opCreateCheckout, start, err)
		log.Error("payment history could not be saved", zap.Error(err))
		return nil, err
	}

	resp, err := decodeResponse(a.checkoutContract, ex.body)
	var violations []policy.Violation
	if err == nil {
		violations, err = a.checkoutRules.Evaluate(map[string]interface{}{
			policy.ParamResultCode:   resp.Result.Code,
			policy.ParamExpectedCode: CodeCheckoutCreated,
		})
	}
	if err != nil || len(violations) > 0 {
		gerr := &adapter.GatewayError{
			Phase:      adapter.PhaseInitiate,
			OrderID:    o.ID,
			ResultCode: resultCodeOf(ex.record),
			Violations: policy.RuleIDs(violations),
			Err:        err,
		}
		a.fail(span, opCreateCheckout, start, gerr)
		a.reportMismatch(log, o, "payment could not be initialized", gerr, ex)
		wf.RedirectToStep(adapter.StepFailed)
		return nil, gerr
	}

	observe(opCreateCheckout, outcomeSuccess, start)
	span.SetAttributes(attribute.String("opp.checkout_id", resp.ID))
	return &adapter.FormDescriptor{
		BaseURL:    base,
		Action:     wf.GenerateURLForStep(adapter.StepComplete, o),
		CheckoutID: resp.ID,
		Brands:     a.brands,
	}, nil
}

// VerifyAndCapture checks the payment behind checkoutID against the order and,
// in capture mode, captures it. Mismatches return false with a nil error;
// transport and persistence failures during verification return the error.
// Capture problems are logged and audited only and never change the result.
func (a *Adapter) VerifyAndCapture(traceCtx context.TraceContext, o *order.Order, checkoutID string) (bool, error) {
	paymentID, err := a.verify(traceCtx, o, checkoutID)
	if err != nil {
		if adapter.IsMismatch(err) {
			return false, nil
		}
		return false, err
	}

	if a.creds.CaptureMode() {
		a.capture(traceCtx, o, paymentID)
	}
	return true, nil
}

func (a *Adapter) verify(traceCtx context.TraceContext, o *order.Order, checkoutID string) (string, error) {
	const origin = "opp.Adapter.VerifyAndCapture"
	start := time.Now()

	ctx, span := a.startSpan(traceCtx, spanVerifyPayment, o)
	defer span.End()
	traceCtx = traceCtx.WithContext(ctx)
	log := a.log(traceCtx, o, origin, adapter.PhaseVerify)

	if strings.TrimSpace(checkoutID) == "" {
		gerr := &adapter.GatewayError{Phase: adapter.PhaseVerify, OrderID: o.ID, Err: errEmptyCheckoutID}
		a.fail(span, opVerifyPayment, start, gerr)
		log.Error("payment data could not be verified", zap.Error(gerr))
		return "", gerr
	}

	endpoint := a.BaseURL() + "/v1/checkouts/" + url.PathEscape(checkoutID) + "/payment"
	ex, err := a.call(traceCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		a.fail(span, opVerifyPayment, start, err)
		log.Error("verify request failed", zap.Error(err))
		return "", fmt.Errorf("opp: verify checkout %s for order %s: %w", checkoutID, o.ID, err)
	}
	if err := a.persist(ctx, o, ex); err != nil {
		a.fail(span, opVerifyPayment, start, err)
		log.Error("payment history could not be saved", zap.Error(err))
		return "", err
	}

	resp, amount, err := decodePayment(a.paymentContract, ex.body)
	var violations []policy.Violation
	if err == nil {
		violations, err = a.verifyRules.Evaluate(map[string]interface{}{
			policy.ParamResultCode:          resp.Result.Code,
			policy.ParamExpectedCode:        CodeTransactionSucceeded,
			policy.ParamPaymentType:         resp.PaymentType,
			policy.ParamExpectedPaymentType: PaymentTypePreauthorization,
			policy.ParamNDC:                 resp.NDC,
			policy.ParamCheckoutID:          checkoutID,
			policy.ParamAmount:              float64(amount),
			policy.ParamOrderTotal:          float64(o.Total),
			policy.ParamCurrency:            resp.Currency,
			policy.ParamOrderCurrency:       o.Currency,
		})
	}
	if err != nil || len(violations) > 0 {
		gerr := &adapter.GatewayError{
			Phase:      adapter.PhaseVerify,
			OrderID:    o.ID,
			ResultCode: resultCodeOf(ex.record),
			Violations: policy.RuleIDs(violations),
			Err:        err,
		}
		a.fail(span, opVerifyPayment, start, gerr)
		a.audit.Log(fmt.Sprintf("order %s verify request: %s %s", o.ID, ex.method, ex.url))
		if uri := traceCtx.Get(context.BaggageRequestURI); uri != "" {
			a.audit.Log(fmt.Sprintf("order %s return request: %s", o.ID, uri))
		}
		a.reportMismatch(log, o, "payment data could not be verified", gerr, ex)
		return "", gerr
	}

	observe(opVerifyPayment, outcomeSuccess, start)
	span.SetAttributes(attribute.String("opp.payment_id", resp.ID))
	return resp.ID, nil
}

func (a *Adapter) capture(traceCtx context.TraceContext, o *order.Order, paymentID string) {
	const origin = "opp.Adapter.VerifyAndCapture"
	start := time.Now()

	ctx, span := a.startSpan(traceCtx, spanCapturePayment, o)
	defer span.End()
	traceCtx = traceCtx.WithContext(ctx)
	log := a.log(traceCtx, o, origin, adapter.PhaseCapture).With(zap.String("payment_id", paymentID))

	endpoint := a.BaseURL() + "/v1/payments/" + url.PathEscape(paymentID)
	ex, err := a.call(traceCtx, http.MethodPost, endpoint, buildPaymentForm(a.creds, o, PaymentTypeCapture))
	if err != nil {
		a.fail(span, opCapturePayment, start, err)
		captureUnconfirmed.Inc()
		log.Error("capture request failed", zap.Error(err))
		a.audit.Log(fmt.Sprintf("order %s capture request failed: %v", o.ID, err))
		return
	}
	if err := a.persist(ctx, o, ex); err != nil {
		// The capture went through on the gateway side; only our copy is missing.
		a.fail(span, opCapturePayment, start, err)
		log.Error("payment history could not be saved", zap.Error(err))
		a.audit.Log(fmt.Sprintf("order %s capture response (HTTP %d), not saved: %s", o.ID, ex.status, ex.body))
		return
	}

	resp, amount, err := decodePayment(a.paymentContract, ex.body)
	var violations []policy.Violation
	if err == nil {
		violations, err = a.captureRules.Evaluate(map[string]interface{}{
			policy.ParamResultCode:          resp.Result.Code,
			policy.ParamExpectedCode:        CodeTransactionSucceeded,
			policy.ParamPaymentType:         resp.PaymentType,
			policy.ParamExpectedPaymentType: PaymentTypeCapture,
			policy.ParamAmount:              float64(amount),
			policy.ParamOrderTotal:          float64(o.Total),
			policy.ParamCurrency:            resp.Currency,
			policy.ParamOrderCurrency:       o.Currency,
		})
	}
	if err != nil || len(violations) > 0 {
		gerr := &adapter.GatewayError{
			Phase:      adapter.PhaseCapture,
			OrderID:    o.ID,
			ResultCode: resultCodeOf(ex.record),
			Violations: policy.RuleIDs(violations),
			Err:        err,
		}
		a.fail(span, opCapturePayment, start, gerr)
		captureUnconfirmed.Inc()
		a.reportMismatch(log, o, "payment could not be captured", gerr, ex)
		return
	}

	observe(opCapturePayment, outcomeSuccess, start)
}

// exchange is one completed HTTP round trip with the gateway.
type exchange struct {
	method string
	url    string
	status int
	body   []byte
	record *structpb.Struct
}

// call performs a single request. There are no retries; the circuit breaker
// only short-circuits calls to a host that keeps failing.
func (a *Adapter) call(traceCtx context.TraceContext, method, endpoint string, form url.Values) (*exchange, error) {
	host := hostOf(endpoint)
	if !a.breaker.AllowRequest(host) {
		return nil, fmt.Errorf("%w: %s", adapter.ErrCircuitOpen, host)
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	// A shopper leaving mid-request must not abort a call the gateway may
	// already be acting on; the client timeout bounds it instead.
	req, err := http.NewRequestWithContext(stdcontext.WithoutCancel(traceCtx.Context()), method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create http request: %w", adapter.ErrTransport, err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.breaker.RecordFailure(host)
		return nil, fmt.Errorf("%w: %s %s: %w", adapter.ErrTransport, method, endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		a.breaker.RecordFailure(host)
		return nil, fmt.Errorf("%w: reading %s response: %w", adapter.ErrTransport, endpoint, err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		a.breaker.RecordFailure(host)
	} else {
		a.breaker.RecordSuccess(host)
	}
	trace.SpanFromContext(traceCtx.Context()).SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	return &exchange{
		method: method,
		url:    endpoint,
		status: resp.StatusCode,
		body:   raw,
		record: newRecord(raw, resp.StatusCode),
	}, nil
}

// persist appends the response to the order history and saves the order.
// The save outlives the inbound request so a received response is never lost.
func (a *Adapter) persist(ctx stdcontext.Context, o *order.Order, ex *exchange) error {
	o.AppendPayment(GatewayKey, ex.record)
	if err := a.store.Save(stdcontext.WithoutCancel(ctx), o); err != nil {
		return fmt.Errorf("opp: save payment history for order %s: %w", o.ID, err)
	}
	return nil
}

func (a *Adapter) reportMismatch(log *zap.Logger, o *order.Order, msg string, gerr *adapter.GatewayError, ex *exchange) {
	fields := []zap.Field{
		zap.String("result_code", gerr.ResultCode),
		zap.Strings("violations", gerr.Violations),
		zap.Int("http_status", ex.status),
	}
	if gerr.Err != nil {
		fields = append(fields, zap.Error(gerr.Err))
	}
	log.Error(msg, fields...)
	a.audit.Log(fmt.Sprintf("order %s %s response (HTTP %d): %s", o.ID, gerr.Phase, ex.status, ex.body))
}

func (a *Adapter) log(traceCtx context.TraceContext, o *order.Order, origin, phase string) *zap.Logger {
	return logging.WithTrace(a.logger, traceCtx.TraceID, traceCtx.SpanID).With(
		zap.String("order_id", o.ID),
		zap.String("origin", origin),
		zap.String("phase", phase),
	)
}

func (a *Adapter) startSpan(traceCtx context.TraceContext, name string, o *order.Order) (stdcontext.Context, trace.Span) {
	return a.tracer.Start(traceCtx.Context(), name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("order.id", o.ID),
			attribute.String("payment.gateway", GatewayKey),
		),
	)
}

func (a *Adapter) fail(span trace.Span, operation string, start time.Time, err error) {
	outcome := outcomeFor(err)
	observe(operation, outcome, start)
	span.RecordError(err)
	span.SetStatus(codes.Error, outcome)
}

func hostOf(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return endpoint
	}
	return u.Host
}
