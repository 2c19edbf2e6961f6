package opp

import (
	_ "embed"
	"encoding/json"
	"errors"
	"strings"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/yourorg/opp-checkout/internal/adapter"
	"github.com/yourorg/opp-checkout/internal/monitor"
	"github.com/yourorg/opp-checkout/internal/order"
)

var (
	//go:embed schema/checkout.json
	checkoutSchema string
	//go:embed schema/payment.json
	paymentSchema string
)

// Result is the gateway's outcome block.
type Result struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// PaymentResponse is the subset of a gateway response the adapter decides on.
type PaymentResponse struct {
	ID          string      `json:"id"`
	PaymentType string      `json:"paymentType"`
	Amount      json.Number `json:"amount"`
	Currency    string      `json:"currency"`
	NDC         string      `json:"ndc"`
	Descriptor  string      `json:"descriptor"`
	Result      Result      `json:"result"`
	BuildNumber string      `json:"buildNumber"`
	Timestamp   string      `json:"timestamp"`
}

// MinorAmount returns the amount in minor units.
func (r *PaymentResponse) MinorAmount() (int64, error) {
	return order.ParseAmount(r.Amount.String())
}

// newRecord converts a raw body into a history record. Bodies that are not a
// JSON object are kept verbatim so the exchange is still on file.
func newRecord(body []byte, status int) *structpb.Struct {
	rec := &structpb.Struct{}
	if err := protojson.Unmarshal(body, rec); err == nil {
		return rec
	}
	rec, err := structpb.NewStruct(map[string]any{
		"raw_body":    strings.ToValidUTF8(string(body), "\uFFFD"),
		"http_status": status,
	})
	if err != nil {
		return &structpb.Struct{Fields: map[string]*structpb.Value{}}
	}
	return rec
}

// resultCodeOf digs result.code out of a record, "" when absent.
func resultCodeOf(rec *structpb.Struct) string {
	return rec.GetFields()["result"].GetStructValue().GetFields()["code"].GetStringValue()
}

// decodeResponse checks body against contract and decodes it. Every failure
// is an *adapter.ParseError.
func decodeResponse(contract *monitor.ContractMonitor, body []byte) (*PaymentResponse, error) {
	res, err := contract.Inspect(body)
	if err != nil {
		return nil, &adapter.ParseError{Err: err}
	}
	if !res.Valid {
		return nil, &adapter.ParseError{Missing: res.Missing, Err: errors.New(monitor.FormatErrors(res.Errors))}
	}

	var resp PaymentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &adapter.ParseError{Err: err}
	}
	return &resp, nil
}

// decodePayment is decodeResponse plus an exact amount conversion.
func decodePayment(contract *monitor.ContractMonitor, body []byte) (*PaymentResponse, int64, error) {
	resp, err := decodeResponse(contract, body)
	if err != nil {
		return nil, 0, err
	}
	amount, err := resp.MinorAmount()
	if err != nil {
		return nil, 0, &adapter.ParseError{Err: err}
	}
	return resp, amount, nil
}
