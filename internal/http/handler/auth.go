package handler

import (
	"errors"
	"net/http"
	"strings"

	"storyvote/internal/auth"
	"storyvote/internal/db/pgerr"
	"storyvote/internal/ledger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type AuthHandler struct {
	DB  *gorm.DB
	JWT *auth.JWT
	Log *zap.Logger
}

type registerReq struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	Pseudonym string `json:"pseudonym" validate:"omitempty,max=64"`
}

type loginReq struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Register creates the account and its zero-balance profile together.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Email = auth.NormalizeEmail(req.Email)

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeAppError(w, h.Log, err)
		return
	}

	u := auth.User{Email: req.Email, PasswordHash: hash, Pseudonym: strings.TrimSpace(req.Pseudonym)}
	err = h.DB.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&u).Error; err != nil {
			return err
		}
		return ledger.EnsureProfile(tx, u.ID)
	})
	if err != nil {
		if pgerr.IsUniqueViolation(err) {
			writeError(w, http.StatusConflict, "email already used")
			return
		}
		writeAppError(w, h.Log, err)
		return
	}

	token, err := h.JWT.Sign(u.ID)
	if err != nil {
		writeAppError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"token": token, "user_id": u.ID})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Email = auth.NormalizeEmail(req.Email)

	var u auth.User
	if err := h.DB.WithContext(r.Context()).Where("email = ?", req.Email).First(&u).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			writeAppError(w, h.Log, err)
			return
		}
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if !auth.ComparePassword(u.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.JWT.Sign(u.ID)
	if err != nil {
		writeAppError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user_id": u.ID})
}
