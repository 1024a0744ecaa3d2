package handlers

import (
	"net/http"
	"strings"
	"time"

	"cvquest/internal/catalog"
	"cvquest/internal/debug"
	"cvquest/internal/keys"
	"cvquest/internal/logger"
	"cvquest/internal/platform"
	"cvquest/internal/service"
	"cvquest/internal/storage"
)

// Options are the dependencies of the hub server handlers
type Options struct {
	Storage      storage.Provider
	Catalog      *catalog.Catalog
	Codec        *keys.Codec
	Probe        keys.RenderProbe
	Mailer       *service.KeyMailer
	ExportSecret string
	BaseURL      string
	Log          *logger.Logger
	Now          func() time.Time
}

// Handler serves the hub, the game pages and the key endpoints
type Handler struct {
	storage      storage.Provider
	catalog      *catalog.Catalog
	codec        *keys.Codec
	probe        keys.RenderProbe
	mailer       *service.KeyMailer
	exportSecret string
	baseURL      string
	log          *logger.Logger
	now          func() time.Time
	mw           *Middleware
}

func New(opts Options, mw *Middleware) *Handler {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Handler{
		storage:      opts.Storage,
		catalog:      opts.Catalog,
		codec:        opts.Codec,
		probe:        opts.Probe,
		mailer:       opts.Mailer,
		exportSecret: opts.ExportSecret,
		baseURL:      strings.TrimSuffix(opts.BaseURL, "/"),
		log:          opts.Log,
		now:          now,
		mw:           mw,
	}
}

// Routes registers every route on a new mux
func (h *Handler) Routes() http.Handler {
	mw := h.mw
	mux := http.NewServeMux()

	mux.HandleFunc("GET /hub", mw.Client(h.Hub))
	mux.HandleFunc("POST /hub/games/{gameId}/start", mw.Client(mw.CSRFProtect(h.StartGame)))
	mux.HandleFunc("GET /hub/return-to-cv", mw.Client(h.ReturnToCV))
	mux.HandleFunc("GET /hub/export", mw.Client(h.ExportProgress))
	mux.HandleFunc("POST /hub/import", mw.Client(mw.CSRFProtect(h.ImportProgress)))

	mux.HandleFunc("GET /games/{gameId}/{$}", mw.Client(h.GamePage))
	mux.HandleFunc("POST /games/{gameId}/complete", mw.Client(mw.CSRFProtect(h.CompleteGame)))

	mux.HandleFunc("GET /keys/verify", mw.RateLimit(h.VerifyKey))
	mux.HandleFunc("POST /keys/send", mw.RateLimit(mw.Client(mw.CSRFProtect(h.SendKey))))

	mux.HandleFunc("GET /debug", mw.Client(h.DebugDump))
	mux.HandleFunc("POST /debug/toggle", mw.Client(mw.CSRFProtect(h.ToggleDebug)))

	return Logging(h.log)(mux)
}

// origin is the storage scope of the requesting browser
func (h *Handler) origin(r *http.Request) storage.Storage {
	return h.storage.Open("client/" + ClientIDFromContext(r.Context()))
}

// codecFor fingerprints the requesting browser
func (h *Handler) codecFor(r *http.Request) *keys.Codec {
	return h.codec.ForClient(&keys.Collector{Env: keys.EnvironmentFromRequest(r), Probe: h.probe})
}

// pageURL is the absolute URL the browser requested
func (h *Handler) pageURL(r *http.Request) string {
	return h.baseURL + r.URL.RequestURI()
}

func (h *Handler) hubURL() string {
	return h.baseURL + "/hub"
}

func (h *Handler) platformFor(r *http.Request, debugByDefault bool) *platform.Platform {
	store := h.origin(r)
	rec := debug.NewRecorder(store, h.log, debugByDefault, debug.WithClock(h.now))
	return platform.New(store, h.catalog, h.codecFor(r), h.log, platform.WithClock(h.now), platform.WithRecorder(rec))
}
