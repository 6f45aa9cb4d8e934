// Package payment creates payment intents at the gateway and turns its
// notifications into ledger credits.
package payment

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Payment statuses reported by the gateway.
const (
	StatusPending   = "pending"
	StatusSucceeded = "succeeded"
	StatusCanceled  = "canceled"
)

// Metadata keys written at intent creation.
const (
	MetaUserID = "userId"
	MetaCoins  = "coins"
)

type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type Confirmation struct {
	Type            string `json:"type"`
	ReturnURL       string `json:"return_url,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

// Payment is the gateway's view of a payment. Metadata values may arrive as
// strings or numbers.
type Payment struct {
	ID           string                     `json:"id"`
	Status       string                     `json:"status"`
	Paid         bool                       `json:"paid"`
	Amount       Amount                     `json:"amount"`
	Description  string                     `json:"description,omitempty"`
	Confirmation *Confirmation              `json:"confirmation,omitempty"`
	Metadata     map[string]json.RawMessage `json:"metadata,omitempty"`
}

type CreatePaymentRequest struct {
	Amount         decimal.Decimal
	Description    string
	ReturnURL      string
	Metadata       map[string]string
	IdempotenceKey string
}

// Gateway is the external payment processor.
type Gateway interface {
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*Payment, error)
	GetPayment(ctx context.Context, id string) (*Payment, error)
}
