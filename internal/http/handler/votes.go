package handler

import (
	"net/http"

	"storyvote/internal/auth"
	"storyvote/internal/voting"

	"go.uber.org/zap"
)

type VoteHandler struct {
	Recorder *voting.Recorder
	Redeemer *voting.Redeemer
	Log      *zap.Logger
}

type voteReq struct {
	OptionID uint64 `json:"option_id" validate:"required"`
}

func (h *VoteHandler) Free(w http.ResponseWriter, r *http.Request) {
	chapterID, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	uid, _ := auth.UserIDFromContext(r.Context())

	var req voteReq
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	opt, err := h.Recorder.CastFreeVote(r.Context(), chapterID, req.OptionID, uid)
	votesTotal.WithLabelValues("free", result(err)).Inc()
	if err != nil {
		writeAppError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"option": opt})
}

func (h *VoteHandler) Coin(w http.ResponseWriter, r *http.Request) {
	chapterID, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	uid, _ := auth.UserIDFromContext(r.Context())

	var req voteReq
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	red, err := h.Redeemer.RedeemCoinVote(r.Context(), chapterID, req.OptionID, uid)
	votesTotal.WithLabelValues("coin", result(err)).Inc()
	if err != nil {
		writeAppError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, red)
}
