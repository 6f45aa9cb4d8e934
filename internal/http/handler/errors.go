package handler

import (
	"errors"
	"net/http"

	"storyvote/internal/apperr"

	"go.uber.org/zap"
)

var statusTable = []struct {
	err    error
	status int
}{
	{apperr.ErrUnauthenticated, http.StatusUnauthorized},
	{apperr.ErrUnauthorized, http.StatusForbidden},
	{apperr.ErrInvalidInput, http.StatusBadRequest},
	{apperr.ErrInvalidAmount, http.StatusBadRequest},
	{apperr.ErrMalformedMetadata, http.StatusBadRequest},
	{apperr.ErrNotFound, http.StatusNotFound},
	{apperr.ErrAlreadyVoted, http.StatusConflict},
	{apperr.ErrChapterClosed, http.StatusConflict},
	{apperr.ErrNotYetVoted, http.StatusConflict},
	{apperr.ErrSequenceConflict, http.StatusConflict},
	{apperr.ErrStoryCompleted, http.StatusConflict},
	{apperr.ErrAlreadyCompleted, http.StatusConflict},
	{apperr.ErrNotLatest, http.StatusConflict},
	{apperr.ErrVotingClosed, http.StatusConflict},
	{apperr.ErrInsufficientBalance, http.StatusPaymentRequired},
	{apperr.ErrGateway, http.StatusBadGateway},
	{apperr.ErrReconciliation, http.StatusInternalServerError},
}

func statusFor(err error) int {
	for _, e := range statusTable {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

// writeAppError answers with the status mapped from err. Server errors are
// logged and their details hidden.
func writeAppError(w http.ResponseWriter, log *zap.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error("Request failed", zap.Error(err))
		writeError(w, status, "server error")
		return
	}
	writeError(w, status, err.Error())
}
