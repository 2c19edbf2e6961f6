// Package reporting summarises an order's stored gateway responses.
package reporting

import (
	"fmt"
	"strconv"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/yourorg/opp-checkout/internal/order"
)

// timestampLayout is the gateway's timestamp format; fractional seconds are
// accepted when present.
const timestampLayout = "2006-01-02 15:04:05-0700"

// HistoryReport summarizes the gateway responses recorded for one order.
type HistoryReport struct {
	TotalResponses       int              `json:"totalResponses"`
	Successful           int              `json:"successful"`
	Failed               int              `json:"failed"`
	Unparsed             int              `json:"unparsed"`             // responses that were not JSON objects
	PaymentTypeUsage     map[string]int   `json:"paymentTypeUsage"`     // every response carrying a paymentType
	AuthorizedByCurrency map[string]int64 `json:"authorizedByCurrency"` // successful PA, minor units
	CapturedByCurrency   map[string]int64 `json:"capturedByCurrency"`   // successful CP and DB, minor units
	ResultCodeBreakdown  map[string]int   `json:"resultCodeBreakdown"`
	DateFrom             time.Time        `json:"dateFrom"`
	DateTo               time.Time        `json:"dateTo"`
	Span                 time.Duration    `json:"span"`
}

// HistoryReporter generates reports from payment history records.
type HistoryReporter struct {
	successCodes map[string]bool
}

// NewHistoryReporter creates a reporter that treats exactly successCodes as
// successful results.
func NewHistoryReporter(successCodes ...string) *HistoryReporter {
	codes := make(map[string]bool, len(successCodes))
	for _, c := range successCodes {
		codes[c] = true
	}
	return &HistoryReporter{successCodes: codes}
}

func newReport() *HistoryReport {
	return &HistoryReport{
		PaymentTypeUsage:     make(map[string]int),
		AuthorizedByCurrency: make(map[string]int64),
		CapturedByCurrency:   make(map[string]int64),
		ResultCodeBreakdown:  make(map[string]int),
	}
}

// Generate analyzes records, oldest first, and produces a HistoryReport.
// A successful response whose amount cannot be read is an error.
func (hr *HistoryReporter) Generate(records []*structpb.Struct) (*HistoryReport, error) {
	report := newReport()

	for i, rec := range records {
		if rec == nil {
			continue
		}
		report.TotalResponses++
		fields := rec.GetFields()

		if _, raw := fields["raw_body"]; raw {
			report.Unparsed++
			report.Failed++
			continue
		}

		if ts, err := time.Parse(timestampLayout, fields["timestamp"].GetStringValue()); err == nil {
			if report.DateFrom.IsZero() || ts.Before(report.DateFrom) {
				report.DateFrom = ts
			}
			if ts.After(report.DateTo) {
				report.DateTo = ts
			}
		}

		code := fields["result"].GetStructValue().GetFields()["code"].GetStringValue()
		if code != "" {
			report.ResultCodeBreakdown[code]++
		}
		paymentType := fields["paymentType"].GetStringValue()
		if paymentType != "" {
			report.PaymentTypeUsage[paymentType]++
		}

		if !hr.successCodes[code] {
			report.Failed++
			continue
		}
		report.Successful++

		var bucket map[string]int64
		switch paymentType {
		case "PA":
			bucket = report.AuthorizedByCurrency
		case "CP", "DB":
			bucket = report.CapturedByCurrency
		default:
			continue
		}
		amount, err := amountOf(fields["amount"])
		if err != nil {
			return nil, fmt.Errorf("reporting: record %d: %w", i, err)
		}
		bucket[fields["currency"].GetStringValue()] += amount
	}

	if !report.DateFrom.IsZero() {
		report.Span = report.DateTo.Sub(report.DateFrom)
	}
	return report, nil
}

func amountOf(v *structpb.Value) (int64, error) {
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return order.ParseAmount(k.StringValue)
	case *structpb.Value_NumberValue:
		return order.ParseAmount(strconv.FormatFloat(k.NumberValue, 'f', -1, 64))
	default:
		return 0, fmt.Errorf("%w: missing", order.ErrMalformedAmount)
	}
}
