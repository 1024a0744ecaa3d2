package handlers

import (
	"encoding/json"
	"net/http"

	"cvquest/internal/logger"
)

// respondWithError logs err under logMsg (or userMsg) and sends userMsg with
// status. Internal details never reach the client.
func respondWithError(w http.ResponseWriter, log *logger.Logger, status int, userMsg, logMsg string, err error) {
	if err != nil {
		if logMsg == "" {
			logMsg = userMsg
		}
		if status >= http.StatusInternalServerError {
			log.Error(logMsg, "status", status, "error", err)
		} else {
			log.Warn(logMsg, "status", status, "error", err)
		}
	}

	http.Error(w, userMsg, status)
}

func writeJSON(w http.ResponseWriter, log *logger.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Failed to encode response", "error", err)
	}
}
