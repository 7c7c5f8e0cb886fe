package ops

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/possync/internal/order"
)

// EncodePayload serializes a payload to canonical JSON.
// Returns the kind tag stored alongside the bytes.
func EncodePayload(p Payload) (Kind, []byte, error) {
	if p == nil {
		return "", nil, &ContractError{Message: "nil payload"}
	}
	var v any
	switch pl := p.(type) {
	case Create:
		pl.Order = normalizeSnapshot(pl.Order)
		v = pl
	case Status:
		v = pl
	case Payment:
		pl.Payment = normalizePayment(pl.Payment)
		v = pl
	case Cancel:
		v = pl
	case Items:
		pl.Items = normalizeItems(pl.Items)
		v = pl
	default:
		return "", nil, NewUnknownKindError(fmt.Sprintf("%T", p))
	}

	data, err := marshalCanonical(v)
	if err != nil {
		return "", nil, fmt.Errorf("encode %s payload: %w", p.Kind(), err)
	}
	return p.Kind(), data, nil
}

// DecodePayload parses a payload previously produced by EncodePayload.
// An unknown kind yields a ContractError.
func DecodePayload(kind Kind, data []byte) (Payload, error) {
	switch kind {
	case KindCreate:
		var p Create
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode create payload: %w", err)
		}
		return p, nil
	case KindStatus:
		var p Status
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode status payload: %w", err)
		}
		return p, nil
	case KindPayment:
		var p Payment
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode payment payload: %w", err)
		}
		return p, nil
	case KindCancel:
		return Cancel{}, nil
	case KindItems:
		var p Items
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode items payload: %w", err)
		}
		if p.Items == nil {
			p.Items = []order.LineItem{}
		}
		return p, nil
	default:
		return nil, NewUnknownKindError(string(kind))
	}
}

// envelope is the JSON shape of an Operation outside the durable log
// (status API, CLI output).
type envelope struct {
	ID        string          `json:"id"`
	Seq       int64           `json:"seq"`
	CreatedAt time.Time       `json:"created_at"`
	OrderID   string          `json:"order_id"`
	Type      Kind            `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts,omitempty"`
	LastError string          `json:"last_error,omitempty"`
}

// MarshalJSON encodes the operation as a tagged envelope.
func (op Operation) MarshalJSON() ([]byte, error) {
	kind, payload, err := EncodePayload(op.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{
		ID:        op.ID,
		Seq:       op.Seq,
		CreatedAt: op.CreatedAt,
		OrderID:   op.OrderID,
		Type:      kind,
		Payload:   payload,
		Attempts:  op.Attempts,
		LastError: op.LastError,
	})
}

// UnmarshalJSON decodes a tagged envelope.
func (op *Operation) UnmarshalJSON(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	p, err := DecodePayload(env.Type, env.Payload)
	if err != nil {
		return err
	}
	*op = Operation{
		ID:        env.ID,
		Seq:       env.Seq,
		CreatedAt: env.CreatedAt,
		OrderID:   env.OrderID,
		Payload:   p,
		Attempts:  env.Attempts,
		LastError: env.LastError,
	}
	return nil
}

// marshalCanonical encodes v without HTML escaping and without the
// trailing newline json.Encoder appends.
func marshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func nfc(s string) string {
	return norm.NFC.String(s)
}

func normalizeCustomer(c order.Customer) order.Customer {
	return order.Customer{
		Name:    nfc(c.Name),
		Phone:   nfc(c.Phone),
		Address: nfc(c.Address),
		TaxID:   nfc(c.TaxID),
	}
}

func normalizeSnapshot(s order.Snapshot) order.Snapshot {
	s.Customer = normalizeCustomer(s.Customer)
	s.TableRef = nfc(s.TableRef)
	s.Items = normalizeItems(s.Items)
	return s
}

func normalizePayment(p order.Payment) order.Payment {
	if p.Customer != nil {
		c := normalizeCustomer(*p.Customer)
		p.Customer = &c
	}
	return p
}

// normalizeItems also applies the included-addon price invariant so nothing
// but zero is ever persisted for an included addon.
func normalizeItems(items []order.LineItem) []order.LineItem {
	if items == nil {
		return []order.LineItem{}
	}
	out := order.NormalizeItems(items)
	for i := range out {
		out[i].Name = nfc(out[i].Name)
		out[i].Note = nfc(out[i].Note)
		for j := range out[i].Addons {
			out[i].Addons[j].Name = nfc(out[i].Addons[j].Name)
		}
	}
	return out
}
