package billing

import (
	"errors"
	"strings"

	"github.com/tidwall/gjson"
)

// CheckoutCompleted is the data needed to book a paid checkout session.
type CheckoutCompleted struct {
	SessionID   string
	UserID      string
	CustomerID  string
	AmountCents int64
	Paid        bool
}

// AmountEUR converts the session total to euros.
func (c CheckoutCompleted) AmountEUR() float64 {
	return float64(c.AmountCents) / 100
}

// ParseCheckoutCompleted extracts the checkout session fields from the raw
// event object. The user comes from metadata, falling back to
// client_reference_id.
func ParseCheckoutCompleted(raw []byte) (CheckoutCompleted, error) {
	if !gjson.ValidBytes(raw) {
		return CheckoutCompleted{}, errors.New("invalid checkout session payload")
	}
	obj := gjson.ParseBytes(raw)

	out := CheckoutCompleted{
		SessionID:   obj.Get("id").String(),
		UserID:      strings.TrimSpace(obj.Get("metadata.user_id").String()),
		CustomerID:  obj.Get("customer").String(),
		AmountCents: obj.Get("amount_total").Int(),
		Paid:        obj.Get("payment_status").String() == "paid",
	}
	if out.UserID == "" {
		out.UserID = strings.TrimSpace(obj.Get("client_reference_id").String())
	}
	if out.SessionID == "" {
		return out, errors.New("checkout session id missing")
	}
	if out.UserID == "" {
		return out, errors.New("checkout session has no user reference")
	}
	return out, nil
}
