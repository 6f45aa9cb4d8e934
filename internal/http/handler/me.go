package handler

import (
	"errors"
	"net/http"
	"strconv"

	"storyvote/internal/apperr"
	"storyvote/internal/auth"
	"storyvote/internal/ledger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type MeHandler struct {
	DB     *gorm.DB
	Ledger *ledger.Service
	Log    *zap.Logger
}

func (h *MeHandler) Me(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	var u auth.User
	if err := h.DB.WithContext(r.Context()).Where("id = ?", uid).Take(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = apperr.ErrNotFound
		}
		writeAppError(w, h.Log, err)
		return
	}
	balance, err := h.Ledger.Balance(r.Context(), uid)
	if err != nil {
		writeAppError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":      uid,
		"display_name": u.DisplayName(),
		"coin_balance": balance,
	})
}

// Transactions lists the caller's recent ledger entries. ?limit= caps the page.
func (h *MeHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	txs, err := h.Ledger.Transactions(r.Context(), uid, limit)
	if err != nil {
		writeAppError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": txs})
}
