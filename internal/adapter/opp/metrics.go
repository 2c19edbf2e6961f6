package opp

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/yourorg/opp-checkout/internal/adapter"
)

const (
	opCreateCheckout = "create_checkout"
	opVerifyPayment  = "verify_payment"
	opCapturePayment = "capture_payment"

	outcomeSuccess        = "success"
	outcomeMismatch       = "mismatch"
	outcomeTransportError = "transport_error"
	outcomeCircuitOpen    = "circuit_open"
	outcomePersistError   = "persist_error"
)

var (
	gatewayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opp_gateway_requests_total",
		Help: "Gateway calls by operation and outcome.",
	}, []string{"operation", "outcome"})

	gatewayDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "opp_gateway_request_duration_seconds",
		Help:    "Time spent on one gateway call, decode and checks included.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	captureUnconfirmed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "opp_capture_unconfirmed_total",
		Help: "Verified payments whose capture could not be confirmed.",
	})
)

func observe(operation, outcome string, start time.Time) {
	gatewayRequests.WithLabelValues(operation, outcome).Inc()
	gatewayDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, adapter.ErrCircuitOpen):
		return outcomeCircuitOpen
	case errors.Is(err, adapter.ErrTransport):
		return outcomeTransportError
	case adapter.IsMismatch(err):
		return outcomeMismatch
	default:
		return outcomePersistError
	}
}
