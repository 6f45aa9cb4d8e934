package payment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"storyvote/internal/apperr"

	"github.com/shopspring/decimal"
)

const EventPaymentSucceeded = "payment.succeeded"

// Notification is the body the gateway posts to the webhook.
type Notification struct {
	Type   string  `json:"type"`
	Event  string  `json:"event"`
	Object Payment `json:"object"`
}

func ParseNotification(raw []byte) (*Notification, error) {
	var n Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("%w: notification body: %v", apperr.ErrInvalidInput, err)
	}
	if n.Event == "" {
		return nil, fmt.Errorf("%w: notification has no event", apperr.ErrInvalidInput)
	}
	return &n, nil
}

// Purchase is what a succeeded payment entitles the reader to.
type Purchase struct {
	UserID uint64
	Coins  int64
}

// PurchaseFromMetadata reads the user and coin count written when the intent
// was created. Both must be positive whole numbers.
func PurchaseFromMetadata(md map[string]json.RawMessage) (Purchase, error) {
	user, err := metaNumber(md, MetaUserID)
	if err != nil {
		return Purchase{}, err
	}
	coins, err := metaNumber(md, MetaCoins)
	if err != nil {
		return Purchase{}, err
	}
	if !user.IsInteger() || !coins.IsInteger() {
		return Purchase{}, fmt.Errorf("%w: userId and coins must be whole numbers", apperr.ErrMalformedMetadata)
	}
	uid, err := strconv.ParseUint(user.String(), 10, 64)
	if err != nil {
		return Purchase{}, fmt.Errorf("%w: userId out of range", apperr.ErrMalformedMetadata)
	}
	if !coins.IsPositive() || coins.GreaterThan(decimal.NewFromInt(1_000_000)) {
		return Purchase{}, fmt.Errorf("%w: coins out of range", apperr.ErrMalformedMetadata)
	}
	return Purchase{UserID: uid, Coins: coins.IntPart()}, nil
}

// metaNumber accepts both "10" and 10.
func metaNumber(md map[string]json.RawMessage, key string) (decimal.Decimal, error) {
	raw, ok := md[key]
	if !ok || len(bytes.TrimSpace(raw)) == 0 || string(raw) == "null" {
		return decimal.Decimal{}, fmt.Errorf("%w: missing %s", apperr.ErrMalformedMetadata, key)
	}

	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Decimal{}, fmt.Errorf("%w: %s", apperr.ErrMalformedMetadata, key)
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %s is not a number", apperr.ErrMalformedMetadata, key)
	}
	if !d.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%w: %s must be positive", apperr.ErrMalformedMetadata, key)
	}
	return d, nil
}
