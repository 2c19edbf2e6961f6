// Package order holds the Order entity whose payment history the gateway
// adapters append to, plus the repositories that persist it.
package order

import (
	"errors"
	"strings"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

var (
	ErrNotFound        = errors.New("order: not found")
	ErrAlreadyExists   = errors.New("order: already exists")
	ErrInvalidAmount   = errors.New("order: total must be zero or greater")
	ErrInvalidCurrency = errors.New("order: currency must be a three letter ISO code")
	ErrInvalidID       = errors.New("order: id is required")
)

// Order is the subject of a checkout. Total is held in minor units (cents).
type Order struct {
	ID          string      `gorm:"primaryKey;size:64" json:"id"`
	Total       int64       `gorm:"not null" json:"total"`
	Currency    string      `gorm:"size:3;not null" json:"currency"`
	PaymentData PaymentData `gorm:"type:jsonb" json:"paymentData"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// New validates its input and returns an order with an empty payment history.
func New(id string, total int64, currency string) (*Order, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalidID
	}
	if total < 0 {
		return nil, ErrInvalidAmount
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if len(currency) != 3 {
		return nil, ErrInvalidCurrency
	}

	now := time.Now().UTC()
	return &Order{
		ID:          id,
		Total:       total,
		Currency:    currency,
		PaymentData: PaymentData{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// FormattedTotal renders the total the way payment gateways expect it.
func (o *Order) FormattedTotal() string {
	return FormatAmount(o.Total)
}

// AppendPayment adds a gateway response to the history kept under key.
func (o *Order) AppendPayment(key string, record *structpb.Struct) {
	if o.PaymentData == nil {
		o.PaymentData = PaymentData{}
	}
	o.PaymentData[key] = append(o.PaymentData[key], record)
	o.touch()
}

// Payments returns the responses recorded under key, oldest first.
func (o *Order) Payments(key string) []*structpb.Struct {
	return o.PaymentData.Records(key)
}

// Clone returns a deep copy, including history records.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	cp := *o
	cp.PaymentData = o.PaymentData.Clone()
	return &cp
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}
