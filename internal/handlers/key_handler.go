package handlers

import (
	"errors"
	"net/http"

	"cvquest/internal/models"
	"cvquest/internal/service"
	"cvquest/internal/validation"
)

type verifyResponse struct {
	Valid bool                   `json:"valid"`
	Data  *models.AchievementKey `json:"data,omitempty"`
	Error string                 `json:"error,omitempty"`
}

// VerifyKey checks a key for a CV page. Failures are reported with one
// generic message whatever went wrong.
func (h *Handler) VerifyKey(w http.ResponseWriter, r *http.Request) {
	encoded := r.URL.Query().Get("key")
	if err := validation.ValidateKey(encoded); err != nil {
		respondWithError(w, h.log, http.StatusBadRequest, err.Error(), "", nil)
		return
	}

	key, err := h.codec.Verify(encoded)
	if err != nil {
		h.log.Warn("Invalid achievement key", "key", encoded, "error", err)
		writeJSON(w, h.log, http.StatusOK, verifyResponse{Valid: false, Error: ErrCouldNotVerify})
		return
	}
	writeJSON(w, h.log, http.StatusOK, verifyResponse{Valid: true, Data: key})
}

// SendKey emails a verified key to the address in the form
func (h *Handler) SendKey(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondWithError(w, h.log, http.StatusBadRequest, ErrInvalidFormData, "", err)
		return
	}
	to := r.PostForm.Get("to")
	encoded := r.PostForm.Get("key")

	key, err := h.codec.Verify(encoded)
	if err != nil {
		respondWithError(w, h.log, http.StatusBadRequest, ErrCouldNotVerify, "Refusing to mail invalid key", err)
		return
	}
	title := key.GameID
	if def, ok := h.catalog.Game(key.GameID); ok {
		title = def.Title
	}

	err = h.mailer.SendAchievementKey(r.Context(), to, key.StudentID, title, encoded)
	var invalid validation.ValidationError
	switch {
	case errors.As(err, &invalid):
		respondWithError(w, h.log, http.StatusBadRequest, invalid.Error(), "", nil)
		return
	case errors.Is(err, service.ErrMailerDisabled):
		respondWithError(w, h.log, http.StatusServiceUnavailable, "Email is not available", "", nil)
		return
	case err != nil:
		respondWithError(w, h.log, http.StatusBadGateway, "Could not send email", "Key email failed", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
