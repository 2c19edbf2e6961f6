package checkout

import (
	"bytes"
	"html/template"
	"io"

	"github.com/yourorg/opp-checkout/internal/adapter"
)

// WidgetTemplateName is the name the widget is registered under with gin.
const WidgetTemplateName = "opp_widget"

var widgetTemplate = template.Must(template.New(WidgetTemplateName).Parse(
	`<script src="{{.BaseURL}}/v1/paymentWidgets.js?checkoutId={{.CheckoutID}}"></script>
<form action="{{.Action}}" class="paymentWidgets">{{.Brands}}</form>
`))

// Templates returns the template set for gin's HTML renderer.
func Templates() *template.Template {
	return widgetTemplate
}

// Render writes the widget for form.
func Render(w io.Writer, form *adapter.FormDescriptor) error {
	return widgetTemplate.Execute(w, form)
}

// RenderString is Render into a string.
func RenderString(form *adapter.FormDescriptor) (string, error) {
	var buf bytes.Buffer
	if err := Render(&buf, form); err != nil {
		return "", err
	}
	return buf.String(), nil
}
