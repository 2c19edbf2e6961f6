// Package checkout binds the gateway adapter's workflow collaborator to a gin
// request and renders the hosted payment widget.
package checkout

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/yourorg/opp-checkout/internal/adapter"
	"github.com/yourorg/opp-checkout/internal/order"
)

var _ adapter.Workflow = (*Module)(nil)

// Module is the checkout flow of one order within one HTTP request.
type Module struct {
	c          *gin.Context
	publicURL  string
	orderID    string
	redirected string
}

// NewModule creates a Module for orderID. publicURL is the externally visible
// base of this service, without a trailing slash.
func NewModule(c *gin.Context, publicURL, orderID string) *Module {
	return &Module{c: c, publicURL: publicURL, orderID: orderID}
}

// StepPath returns the route of a checkout step.
func StepPath(orderID, step string) string {
	return "/checkout/" + url.PathEscape(orderID) + "/" + step
}

// RedirectToStep answers the request with a 303 to the step and aborts the
// handler chain. Only the first redirect takes effect.
func (m *Module) RedirectToStep(step string) {
	if m.redirected != "" {
		return
	}
	m.redirected = step
	m.c.Redirect(http.StatusSeeOther, m.publicURL+StepPath(m.orderID, step))
	m.c.Abort()
}

// GenerateURLForStep returns the absolute URL of a step for o.
func (m *Module) GenerateURLForStep(step string, o *order.Order) string {
	return m.publicURL + StepPath(o.ID, step)
}

// Redirected returns the step the request was redirected to, if any.
func (m *Module) Redirected() (string, bool) {
	return m.redirected, m.redirected != ""
}
