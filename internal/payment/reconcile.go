package payment

import (
	"context"
	"errors"
	"fmt"

	"storyvote/internal/apperr"
	"storyvote/internal/events"
	"storyvote/internal/jobs"
	"storyvote/internal/ledger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Outcome string

const (
	OutcomeIgnored   Outcome = "ignored"
	OutcomeCredited  Outcome = "credited"
	OutcomeDuplicate Outcome = "duplicate"
)

type Result struct {
	Outcome   Outcome `json:"status"`
	PaymentID string  `json:"payment_id,omitempty"`
	UserID    uint64  `json:"user_id,omitempty"`
	Coins     int64   `json:"coins,omitempty"`
}

// Reconciler is the only path that credits coins.
type Reconciler struct {
	db      *gorm.DB
	gateway Gateway
	verify  bool
	log     *zap.Logger
}

// NewReconciler builds a reconciler. With verify set, every succeeded
// notification is checked against the gateway and the gateway's copy of the
// payment is used instead of the inbound body.
func NewReconciler(db *gorm.DB, gw Gateway, verify bool, logger *zap.Logger) *Reconciler {
	return &Reconciler{db: db, gateway: gw, verify: verify, log: logger.Named("Reconciler")}
}

// HandlePaymentNotification credits a succeeded payment exactly once per
// payment id. Non-success events are ignored. Errors wrapping
// apperr.ErrReconciliation should be answered with a server error so the
// gateway retries; any other error is final for this body.
func (r *Reconciler) HandlePaymentNotification(ctx context.Context, raw []byte) (*Result, error) {
	n, err := ParseNotification(raw)
	if err != nil {
		return nil, err
	}
	if n.Event != EventPaymentSucceeded {
		r.log.Info("Notification ignored", zap.String("event", n.Event), zap.String("paymentID", n.Object.ID))
		return &Result{Outcome: OutcomeIgnored, PaymentID: n.Object.ID}, nil
	}

	p := n.Object
	if p.ID == "" {
		return nil, fmt.Errorf("%w: payment id missing", apperr.ErrInvalidInput)
	}
	log := r.log.With(zap.String("paymentID", p.ID))

	if r.verify {
		fetched, err := r.gateway.GetPayment(ctx, p.ID)
		if err != nil {
			log.Error("Payment verification failed", zap.Error(err))
			return nil, fmt.Errorf("%w: verify payment: %v", apperr.ErrReconciliation, err)
		}
		if fetched.Status != StatusSucceeded {
			log.Warn("Notification does not match gateway status", zap.String("status", fetched.Status))
			return &Result{Outcome: OutcomeIgnored, PaymentID: p.ID}, nil
		}
		p = *fetched
	}

	purchase, err := PurchaseFromMetadata(p.Metadata)
	if err != nil {
		log.Error("Malformed payment metadata", zap.Error(err))
		return nil, err
	}

	var credited bool
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		credited, _, err = ledger.Credit(tx, purchase.UserID, purchase.Coins, p.ID)
		if err != nil || !credited {
			return err
		}
		return jobs.Emit(tx, purchase.UserID, events.CoinsCredited, events.CoinsCreditedData{
			UserID:    purchase.UserID,
			Coins:     purchase.Coins,
			PaymentID: p.ID,
		})
	})
	if err != nil {
		if errors.Is(err, apperr.ErrInvalidAmount) || errors.Is(err, apperr.ErrInvalidInput) {
			return nil, err
		}
		log.Error("Credit failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", apperr.ErrReconciliation, err)
	}

	res := &Result{PaymentID: p.ID, UserID: purchase.UserID, Coins: purchase.Coins}
	if credited {
		res.Outcome = OutcomeCredited
		log.Info("Coins credited", zap.Uint64("userID", purchase.UserID), zap.Int64("coins", purchase.Coins))
	} else {
		res.Outcome = OutcomeDuplicate
		log.Info("Duplicate notification, already credited")
	}
	return res, nil
}
