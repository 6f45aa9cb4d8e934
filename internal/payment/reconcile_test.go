package payment

import (
	"context"
	"errors"
	"testing"

	"storyvote/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// These cases never reach the database, so the reconciler runs without one.

func TestReconcileIgnoresOtherEvents(t *testing.T) {
	r := NewReconciler(nil, &fakeGateway{}, true, zap.NewNop())

	for _, ev := range []string{"payment.waiting_for_capture", "payment.canceled", "refund.succeeded"} {
		res, err := r.HandlePaymentNotification(context.Background(),
			[]byte(`{"type":"notification","event":"`+ev+`","object":{"id":"p-1"}}`))
		require.NoError(t, err)
		assert.Equal(t, OutcomeIgnored, res.Outcome)
	}
}

func TestReconcileRejectsBadBody(t *testing.T) {
	r := NewReconciler(nil, &fakeGateway{}, false, zap.NewNop())

	_, err := r.HandlePaymentNotification(context.Background(), []byte(`{`))
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = r.HandlePaymentNotification(context.Background(), succeededBody("p-2", `{"userId":"5"}`))
	assert.ErrorIs(t, err, apperr.ErrMalformedMetadata)
	assert.False(t, errors.Is(err, apperr.ErrReconciliation))
}

func TestReconcileVerifiesWithGateway(t *testing.T) {
	gw := &fakeGateway{payments: map[string]*Payment{}}
	r := NewReconciler(nil, gw, true, zap.NewNop())

	// The gateway still reports the payment as pending: forged or early.
	res, err := r.HandlePaymentNotification(context.Background(), succeededBody("p-3", `{"userId":"5","coins":"10"}`))
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, res.Outcome)

	gw.err = errors.New("connection reset")
	_, err = r.HandlePaymentNotification(context.Background(), succeededBody("p-3", `{"userId":"5","coins":"10"}`))
	assert.ErrorIs(t, err, apperr.ErrReconciliation)
}

func TestReconcileUsesGatewayMetadata(t *testing.T) {
	gw := &fakeGateway{payments: map[string]*Payment{
		"p-4": {ID: "p-4", Status: StatusSucceeded},
	}}
	r := NewReconciler(nil, gw, true, zap.NewNop())

	// The body claims coins but the gateway's copy has no metadata.
	_, err := r.HandlePaymentNotification(context.Background(), succeededBody("p-4", `{"userId":"5","coins":"1000"}`))
	assert.ErrorIs(t, err, apperr.ErrMalformedMetadata)
}
