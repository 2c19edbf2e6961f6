package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/yourorg/opp-checkout/internal/adapter"
	"github.com/yourorg/opp-checkout/internal/checkout"
	custom_context "github.com/yourorg/opp-checkout/internal/context"
	"github.com/yourorg/opp-checkout/internal/lock"
	"github.com/yourorg/opp-checkout/internal/order"
	"github.com/yourorg/opp-checkout/internal/reporting"
)

// serverDeps is everything the HTTP layer needs; main wires the real ones,
// tests wire in-memory ones.
type serverDeps struct {
	serviceName string
	publicURL   string
	lockTTL     time.Duration
	repo        order.Repository
	gateway     adapter.PaymentGateway
	locker      lock.Locker
	reporter    *reporting.HistoryReporter
	logger      *zap.Logger
}

type handlers struct {
	serverDeps
}

type createOrderRequest struct {
	ID       string `json:"id"`
	Total    string `json:"total" binding:"required"`
	Currency string `json:"currency" binding:"required"`
}

func setupRouter(d serverDeps) *gin.Engine {
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	h := &handlers{serverDeps: d}

	router := gin.New()
	router.Use(gin.Recovery(), otelgin.Middleware(d.serviceName), requestLogger(d.logger))
	router.SetHTMLTemplate(checkout.Templates())

	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/orders", h.createOrder)
	router.GET("/orders/:orderId", h.getOrder)

	steps := router.Group("/checkout/:orderId")
	steps.GET("/"+adapter.StepProcess, h.processCheckout)
	steps.GET("/"+adapter.StepComplete, h.completeCheckout)
	steps.GET("/"+adapter.StepFailed, h.failedCheckout)
	return router
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func (h *handlers) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	total, err := order.ParseAmount(req.Total)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	o, err := order.New(req.ID, total, req.Currency)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.repo.Create(c.Request.Context(), o); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (h *handlers) getOrder(c *gin.Context) {
	o, err := h.repo.Get(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	report, err := h.reporter.Generate(o.Payments(h.gateway.GetName()))
	if err != nil {
		h.logger.Warn("payment history report failed", zap.String("order_id", o.ID), zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"order": o, "report": report})
}

// processCheckout creates the gateway checkout and renders the widget, or
// hands the descriptor to API clients as JSON.
func (h *handlers) processCheckout(c *gin.Context) {
	orderID := c.Param("orderId")
	release, err := lock.Hold(c.Request.Context(), h.locker, orderID, h.lockTTL)
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer release()

	o, err := h.repo.Get(c.Request.Context(), orderID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	wf := checkout.NewModule(c, h.publicURL, orderID)
	form, err := h.gateway.InitiateCheckout(h.traceContext(c), o, wf)
	if _, redirected := wf.Redirected(); redirected {
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}

	switch c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) {
	case gin.MIMEJSON:
		c.JSON(http.StatusOK, form)
	default:
		c.HTML(http.StatusOK, checkout.WidgetTemplateName, form)
	}
}

// completeCheckout is the shopper's return from the payment widget.
func (h *handlers) completeCheckout(c *gin.Context) {
	orderID := c.Param("orderId")
	release, err := lock.Hold(c.Request.Context(), h.locker, orderID, h.lockTTL)
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer release()

	o, err := h.repo.Get(c.Request.Context(), orderID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	paid, err := h.gateway.VerifyAndCapture(h.traceContext(c), o, c.Query("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !paid {
		checkout.NewModule(c, h.publicURL, orderID).RedirectToStep(adapter.StepFailed)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "paid", "order_id": o.ID})
}

func (h *handlers) failedCheckout(c *gin.Context) {
	o, err := h.repo.Get(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusPaymentRequired, gin.H{
		"status":   "failed",
		"order_id": o.ID,
		"error":    "The payment could not be completed.",
	})
}

// traceContext builds the adapter's trace context from the request so gateway
// spans nest under the otelgin server span. Client disconnects do not cancel it.
func (h *handlers) traceContext(c *gin.Context) custom_context.TraceContext {
	tc := custom_context.NewTraceContext(context.WithoutCancel(c.Request.Context()))
	tc.Baggage[custom_context.BaggageRequestURI] = c.Request.URL.RequestURI()
	tc.Baggage[custom_context.BaggageRemoteAddr] = c.ClientIP()
	return tc
}

func (h *handlers) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("order_id", c.Param("orderId")),
			zap.Error(err),
		)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, order.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, lock.ErrNotAcquired):
		return http.StatusConflict
	case errors.Is(err, order.ErrInvalidID),
		errors.Is(err, order.ErrInvalidAmount),
		errors.Is(err, order.ErrInvalidCurrency),
		errors.Is(err, order.ErrMalformedAmount):
		return http.StatusBadRequest
	case errors.Is(err, order.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, adapter.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, adapter.ErrTransport):
		return http.StatusBadGateway
	case adapter.IsMismatch(err):
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}
