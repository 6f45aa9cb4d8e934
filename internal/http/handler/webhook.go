package handler

import (
	"errors"
	"io"
	"net/http"

	"storyvote/internal/apperr"
	"storyvote/internal/payment"

	"go.uber.org/zap"
)

type WebhookHandler struct {
	Reconciler *payment.Reconciler
	Log        *zap.Logger
}

// YooKassa answers 200 for every notification it is done with, including
// ignored and unusable ones, so the gateway stops retrying. Only
// reconciliation failures get a 500, which makes the gateway deliver again.
func (h *WebhookHandler) YooKassa(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		webhookOutcomesTotal.WithLabelValues("rejected").Inc()
		writeJSON(w, http.StatusOK, map[string]string{"status": "rejected", "error": "unreadable body"})
		return
	}

	res, err := h.Reconciler.HandlePaymentNotification(r.Context(), raw)
	switch {
	case err == nil:
		webhookOutcomesTotal.WithLabelValues(string(res.Outcome)).Inc()
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, apperr.ErrReconciliation):
		webhookOutcomesTotal.WithLabelValues("error").Inc()
		h.Log.Error("Webhook reconciliation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "reconciliation failed")
	default:
		webhookOutcomesTotal.WithLabelValues("rejected").Inc()
		h.Log.Warn("Webhook rejected", zap.Error(err))
		writeJSON(w, http.StatusOK, map[string]string{"status": "rejected", "error": err.Error()})
	}
}
