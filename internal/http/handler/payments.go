package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"storyvote/internal/apperr"
	"storyvote/internal/auth"
	"storyvote/internal/payment"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type PaymentHandler struct {
	Intents *payment.IntentService
	Log     *zap.Logger
}

// createPaymentReq carries userId for older clients. The buyer is always the
// token user; a different userId is refused.
type createPaymentReq struct {
	Amount decimal.Decimal `json:"amount"`
	UserID userRef         `json:"userId"`
	Coins  int64           `json:"coins" validate:"required,min=1"`
}

// userRef is a user id sent either as a JSON number or a numeric string.
type userRef uint64

func (u *userRef) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("userId %s is not a user id", b)
	}
	*u = userRef(n)
	return nil
}

func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	var req createPaymentReq
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.UserID != 0 && uint64(req.UserID) != uid {
		h.Log.Warn("Payment requested for another user",
			zap.Uint64("userID", uid),
			zap.Uint64("requestedUserID", uint64(req.UserID)),
		)
		writeAppError(w, h.Log, apperr.ErrUnauthorized)
		return
	}

	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	in, err := h.Intents.CreateIntent(r.Context(), uid, req.Amount, req.Coins, key)
	paymentIntentsTotal.WithLabelValues(result(err)).Inc()
	if err != nil {
		writeAppError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, in)
}
