package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"cvquest/internal/catalog"
	"cvquest/internal/debug"
	"cvquest/internal/game"
	"cvquest/internal/models"
	"cvquest/internal/navigation"
	"cvquest/internal/storage"
)

type gamePageResponse struct {
	Game      catalog.GameDefinition `json:"game"`
	Student   string                 `json:"student"`
	Return    string                 `json:"platformReturn,omitempty"`
	CVReturn  string                 `json:"cvReturn,omitempty"`
	Attempts  []models.Attempt       `json:"attempts,omitempty"`
	Progress  int                    `json:"progress"`
	StartedAt int64                  `json:"startedAt"`
	Debug     bool                   `json:"debug"`
	CSRFToken string                 `json:"csrfToken"`
}

type completeResponse struct {
	Key               string `json:"key"`
	Score             int    `json:"score"`
	MeetsRequirements bool   `json:"meetsRequirements"`
}

func (h *Handler) gameDefinition(w http.ResponseWriter, r *http.Request) (catalog.GameDefinition, bool) {
	def, ok := h.catalog.Game(r.PathValue("gameId"))
	if !ok {
		respondWithError(w, h.log, http.StatusNotFound, ErrGameNotFound, "", nil)
	}
	return def, ok
}

func (h *Handler) recorder(store storage.Storage) *debug.Recorder {
	return debug.NewRecorder(store, h.log, false, debug.WithClock(h.now))
}

// GamePage starts a game session from its launch parameters
func (h *Handler) GamePage(w http.ResponseWriter, r *http.Request) {
	def, ok := h.gameDefinition(w, r)
	if !ok {
		return
	}

	session, err := game.NewSession(def, h.pageURL(r), h.now, game.WithRecorder(h.recorder(h.origin(r))))
	if err != nil {
		respondWithError(w, h.log, http.StatusBadRequest, "Invalid game URL", "", err)
		return
	}

	params := session.Params()
	writeJSON(w, h.log, http.StatusOK, gamePageResponse{
		Game:      def,
		Student:   params.Student,
		Return:    params.PlatformReturn,
		CVReturn:  params.CVReturn,
		Attempts:  params.Attempts,
		Progress:  session.Progress(),
		StartedAt: session.StartedAt().Unix(),
		Debug:     params.Debug,
		CSRFToken: h.mw.CSRFToken(r),
	})
}

// CompleteGame replays a finished session from the form (started_at,
// visited sections, correct answers), mints the key and sends the student
// back to the hub. Without a platform return URL the key is returned as JSON.
func (h *Handler) CompleteGame(w http.ResponseWriter, r *http.Request) {
	def, ok := h.gameDefinition(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		respondWithError(w, h.log, http.StatusBadRequest, ErrInvalidFormData, "", err)
		return
	}

	var opts []game.Option
	if raw := r.PostForm.Get("started_at"); raw != "" {
		sec, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || sec <= 0 {
			respondWithError(w, h.log, http.StatusBadRequest, ErrInvalidFormData, "Invalid started_at", err)
			return
		}
		opts = append(opts, game.WithStartedAt(time.Unix(sec, 0)))
	}
	correct := 0
	if raw := r.PostForm.Get("correct"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondWithError(w, h.log, http.StatusBadRequest, ErrInvalidFormData, "Invalid correct", err)
			return
		}
		correct = n
	}
	opts = append(opts, game.WithRecorder(h.recorder(h.origin(r))))

	session, err := game.NewSession(def, h.pageURL(r), h.now, opts...)
	if err != nil {
		respondWithError(w, h.log, http.StatusBadRequest, "Invalid game URL", "", err)
		return
	}
	for _, section := range r.PostForm["visited"] {
		if err := session.Visit(section); err != nil {
			respondWithError(w, h.log, http.StatusBadRequest, ErrInvalidFormData, "Unknown section", err)
			return
		}
	}
	for i := 0; i < correct && i < def.QuizCount; i++ {
		session.AnswerQuiz(true)
	}

	key, err := session.Complete(h.codecFor(r))
	if err != nil {
		respondWithError(w, h.log, http.StatusInternalServerError, ErrInternalServerError, "Failed to mint key", err)
		return
	}
	h.log.Info("Game completed", "game_id", def.ID, "student_id", session.Params().Student, "score", session.Score())

	returnURL, err := session.ReturnURL()
	switch {
	case errors.Is(err, game.ErrNoReturnURL), errors.Is(err, navigation.ErrInvalidURL):
		writeJSON(w, h.log, http.StatusOK, completeResponse{
			Key:               key,
			Score:             session.Score(),
			MeetsRequirements: session.MeetsRequirements(),
		})
		return
	case err != nil:
		respondWithError(w, h.log, http.StatusInternalServerError, ErrInternalServerError, "Failed to build return URL", err)
		return
	}

	http.Redirect(w, r, returnURL, http.StatusSeeOther)
}
