package opp

import (
	"net/url"

	"github.com/yourorg/opp-checkout/internal/context"
	"github.com/yourorg/opp-checkout/internal/order"
)

// buildPaymentForm creates the form body shared by checkout creation and
// capture. The amount always carries two decimals and a period separator.
func buildPaymentForm(creds context.GatewayCredentials, o *order.Order, paymentType string) url.Values {
	form := url.Values{}
	form.Set("authentication.userId", creds.UserID)
	form.Set("authentication.password", creds.Password)
	form.Set("authentication.entityId", creds.EntityID)
	form.Set("amount", o.FormattedTotal())
	form.Set("currency", o.Currency)
	form.Set("paymentType", paymentType)
	return form
}
