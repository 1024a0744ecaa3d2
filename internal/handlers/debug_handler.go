package handlers

import (
	"net/http"

	"cvquest/internal/debug"
)

type debugResponse struct {
	Debug   debug.Snapshot         `json:"debug"`
	Storage map[string]interface{} `json:"storage"`
}

// DebugDump shows the debug state and the stored items of the client. The
// recorder is rebuilt per request, so only the enabled flag and flow start
// survive between pages; the storage dump is the durable part.
func (h *Handler) DebugDump(w http.ResponseWriter, r *http.Request) {
	store := h.origin(r)
	items, err := debug.DumpStorage(store)
	if err != nil {
		respondWithError(w, h.log, http.StatusServiceUnavailable, "Storage unavailable", "Debug dump failed", err)
		return
	}
	rec := debug.NewRecorder(store, h.log, true, debug.WithClock(h.now))
	writeJSON(w, h.log, http.StatusOK, debugResponse{Debug: rec.Snapshot(), Storage: items})
}

// ToggleDebug flips the stored debug mode
func (h *Handler) ToggleDebug(w http.ResponseWriter, r *http.Request) {
	rec := debug.NewRecorder(h.origin(r), h.log, true, debug.WithClock(h.now))
	enabled := rec.Toggle()
	writeJSON(w, h.log, http.StatusOK, map[string]bool{"enabled": enabled})
}
