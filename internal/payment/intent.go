// Package payment builds payment requests against the operator's receiver
// wallet, rendered as Phantom deep links. The bot never holds keys and
// never signs; it only hands the user a link for their own wallet app.
package payment

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
)

const phantomSendURL = "https://phantom.app/ul/send"

// Intent is an ephemeral payment request. It carries no user identity; the
// Reference exists only so the operational log can correlate link issuance.
type Intent struct {
	Reference string
	Receiver  string
	Amount    float64
	Asset     string
}

// Builder constructs intents from operator-configured constants.
// All fields are fixed at startup, so no per-call validation is needed.
type Builder struct {
	receiver string
	amount   float64
	asset    string
}

func NewBuilder(receiver string, amount float64, asset string) *Builder {
	return &Builder{receiver: receiver, amount: amount, asset: asset}
}

// Build returns a fresh intent against the configured receiver.
func (b *Builder) Build() Intent {
	return Intent{
		Reference: uuid.NewString(),
		Receiver:  b.receiver,
		Amount:    b.amount,
		Asset:     b.asset,
	}
}

// DeepLink renders the intent as a Phantom universal link.
func (i Intent) DeepLink() string {
	q := url.Values{}
	q.Set("recipient", i.Receiver)
	q.Set("amount", strconv.FormatFloat(i.Amount, 'f', -1, 64))
	q.Set("token", i.Asset)
	return fmt.Sprintf("%s?%s", phantomSendURL, q.Encode())
}
