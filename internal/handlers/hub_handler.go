package handlers

import (
	"errors"
	"net/http"

	"cvquest/internal/catalog"
	"cvquest/internal/models"
	"cvquest/internal/platform"
	"cvquest/internal/service"
	"cvquest/internal/storage"
	"cvquest/internal/validation"
)

type hubResponse struct {
	State     platform.State         `json:"state"`
	Returned  *models.AchievementKey `json:"returned,omitempty"`
	CSRFToken string                 `json:"csrfToken"`
}

// Hub serves a hub page load: student data, then any key handed back by a
// game. A rejected key is reported through the state notifications.
func (h *Handler) Hub(w http.ResponseWriter, r *http.Request) {
	p := h.platformFor(r, true)
	pageURL := h.pageURL(r)

	if _, err := p.LoadStudentData(pageURL); err != nil {
		respondWithError(w, h.log, http.StatusBadRequest, "Invalid hub URL", "", err)
		return
	}
	if sid := p.Store.StudentID(); sid != "" {
		if err := validation.ValidateStudentID(sid); err != nil {
			respondWithError(w, h.log, http.StatusBadRequest, err.Error(), "Invalid student id", err)
			return
		}
	}

	returned, err := p.HandleReturn(pageURL)
	if err != nil && !errors.Is(err, platform.ErrKeyRejected) {
		respondWithError(w, h.log, http.StatusInternalServerError, ErrInternalServerError, "Failed to handle game return", err)
		return
	}

	writeJSON(w, h.log, http.StatusOK, hubResponse{
		State:     p.State(),
		Returned:  returned,
		CSRFToken: h.mw.CSRFToken(r),
	})
}

// StartGame redirects to the launch URL of an unlocked game
func (h *Handler) StartGame(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("gameId")
	if err := validation.ValidateGameID(gameID); err != nil {
		respondWithError(w, h.log, http.StatusBadRequest, err.Error(), "", nil)
		return
	}

	p := h.platformFor(r, true)
	if _, err := p.LoadStudentData(h.hubURL()); err != nil {
		respondWithError(w, h.log, http.StatusInternalServerError, ErrInternalServerError, "Failed to load student data", err)
		return
	}

	launchURL, err := p.StartGame(gameID, h.hubURL())
	switch {
	case errors.Is(err, catalog.ErrUnknownGame):
		respondWithError(w, h.log, http.StatusNotFound, ErrGameNotFound, "", err)
		return
	case errors.Is(err, platform.ErrGameLocked):
		respondWithError(w, h.log, http.StatusForbidden, ErrGameLocked, "Locked game requested", err)
		return
	case err != nil:
		respondWithError(w, h.log, http.StatusInternalServerError, ErrInternalServerError, "Failed to start game", err)
		return
	}

	http.Redirect(w, r, launchURL, http.StatusSeeOther)
}

// ReturnToCV redirects to the student's CV carrying the key
func (h *Handler) ReturnToCV(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if err := validation.ValidateKey(key); err != nil {
		respondWithError(w, h.log, http.StatusBadRequest, err.Error(), "", nil)
		return
	}

	p := h.platformFor(r, true)
	if _, err := p.LoadStudentData(h.hubURL()); err != nil {
		respondWithError(w, h.log, http.StatusInternalServerError, ErrInternalServerError, "Failed to load student data", err)
		return
	}

	cvURL, err := p.ReturnToCV(key)
	if err != nil {
		respondWithError(w, h.log, http.StatusBadRequest, "No CV return URL is known", "Return to CV failed", err)
		return
	}
	http.Redirect(w, r, cvURL, http.StatusSeeOther)
}

func (h *Handler) backupFor(store storage.Storage) (*service.BackupService, error) {
	return service.NewBackupService(store, h.catalog, h.exportSecret, h.log)
}

// ExportProgress returns the signed progress bundle of the stored student
func (h *Handler) ExportProgress(w http.ResponseWriter, r *http.Request) {
	store := h.origin(r)
	studentID, ok, err := store.Get(storage.KeyStudentID)
	if err != nil {
		respondWithError(w, h.log, http.StatusServiceUnavailable, service.StorageNotice, "Export failed", err)
		return
	}
	if !ok || studentID == "" {
		respondWithError(w, h.log, http.StatusBadRequest, "No student to export", "", nil)
		return
	}

	backup, err := h.backupFor(store)
	if err != nil {
		respondWithError(w, h.log, http.StatusInternalServerError, ErrInternalServerError, "Export unavailable", err)
		return
	}
	token, err := backup.Export(studentID)
	if err != nil {
		respondWithError(w, h.log, http.StatusInternalServerError, ErrInternalServerError, "Export failed", err)
		return
	}

	w.Header().Set("Content-Type", "application/jwt")
	w.Header().Set("Content-Disposition", `attachment; filename="cvquest-progress.jwt"`)
	_, _ = w.Write([]byte(token))
}

// ImportProgress restores a bundle for the stored student
func (h *Handler) ImportProgress(w http.ResponseWriter, r *http.Request) {
	store := h.origin(r)
	studentID, _, err := store.Get(storage.KeyStudentID)
	if err != nil {
		respondWithError(w, h.log, http.StatusServiceUnavailable, service.StorageNotice, "Import failed", err)
		return
	}

	backup, err := h.backupFor(store)
	if err != nil {
		respondWithError(w, h.log, http.StatusInternalServerError, ErrInternalServerError, "Import unavailable", err)
		return
	}
	snapshot, err := backup.ImportFromReader(studentID, r.Body)
	switch {
	case errors.Is(err, service.ErrStudentMismatch):
		respondWithError(w, h.log, http.StatusConflict, "This backup belongs to another student", "", err)
		return
	case errors.Is(err, service.ErrInvalidBackup):
		respondWithError(w, h.log, http.StatusBadRequest, "Invalid backup", "Rejected backup", err)
		return
	case errors.Is(err, storage.ErrUnavailable):
		respondWithError(w, h.log, http.StatusServiceUnavailable, service.StorageNotice, "Import not saved", err)
		return
	case err != nil:
		respondWithError(w, h.log, http.StatusInternalServerError, ErrInternalServerError, "Import failed", err)
		return
	}

	writeJSON(w, h.log, http.StatusOK, snapshot)
}
