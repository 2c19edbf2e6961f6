package order

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// PaymentData is the payment history of an order: gateway key -> responses.
// Records are opaque; they are stored as received and never re-interpreted here.
type PaymentData map[string][]*structpb.Struct

// Records returns the responses kept under key.
func (p PaymentData) Records(key string) []*structpb.Struct {
	if p == nil {
		return nil
	}
	return p[key]
}

// Clone deep-copies every record.
func (p PaymentData) Clone() PaymentData {
	if p == nil {
		return nil
	}
	out := make(PaymentData, len(p))
	for key, records := range p {
		copied := make([]*structpb.Struct, len(records))
		for i, rec := range records {
			copied[i] = proto.Clone(rec).(*structpb.Struct)
		}
		out[key] = copied
	}
	return out
}

func (p PaymentData) MarshalJSON() ([]byte, error) {
	raw := make(map[string][]json.RawMessage, len(p))
	for key, records := range p {
		list := make([]json.RawMessage, 0, len(records))
		for _, rec := range records {
			b, err := protojson.Marshal(rec)
			if err != nil {
				return nil, fmt.Errorf("order: marshal %s record: %w", key, err)
			}
			list = append(list, b)
		}
		raw[key] = list
	}
	return json.Marshal(raw)
}

func (p *PaymentData) UnmarshalJSON(data []byte) error {
	var raw map[string][]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("order: unmarshal payment data: %w", err)
	}
	out := make(PaymentData, len(raw))
	for key, list := range raw {
		records := make([]*structpb.Struct, 0, len(list))
		for _, b := range list {
			rec := &structpb.Struct{}
			if err := protojson.Unmarshal(b, rec); err != nil {
				return fmt.Errorf("order: unmarshal %s record: %w", key, err)
			}
			records = append(records, rec)
		}
		out[key] = records
	}
	*p = out
	return nil
}

// Value stores the history as a JSON document.
func (p PaymentData) Value() (driver.Value, error) {
	b, err := p.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan reads a JSON document written by Value.
func (p *PaymentData) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*p = PaymentData{}
		return nil
	case []byte:
		return p.UnmarshalJSON(v)
	case string:
		return p.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("order: cannot scan %T into PaymentData", src)
	}
}
