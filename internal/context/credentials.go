package context

const (
	productionBaseURL = "https://oppwa.com"
	sandboxBaseURL    = "https://test.oppwa.com"

	// TransactionCapture makes the adapter capture a verified pre-authorization.
	TransactionCapture = "capture"
	// TransactionAuthorize leaves a verified pre-authorization uncaptured.
	TransactionAuthorize = "auth"
)

// GatewayCredentials is the immutable configuration of one payment method.
// It is passed by value so a checkout never observes a change mid-flight.
type GatewayCredentials struct {
	UserID          string
	Password        string
	EntityID        string
	TransactionType string // TransactionCapture or TransactionAuthorize
	Debug           bool   // selects the gateway sandbox
}

// CaptureMode reports whether verified payments are captured right away.
func (c GatewayCredentials) CaptureMode() bool {
	return c.TransactionType == TransactionCapture
}

// BaseURL returns the gateway host for the configured environment.
func (c GatewayCredentials) BaseURL() string {
	if c.Debug {
		return sandboxBaseURL
	}
	return productionBaseURL
}

// Redacted returns a copy safe for logging.
func (c GatewayCredentials) Redacted() GatewayCredentials {
	if c.Password != "" {
		c.Password = "***"
	}
	return c
}
