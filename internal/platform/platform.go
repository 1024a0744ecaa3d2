// Package platform is the hub page: it loads the student, accepts keys
// handed back by games, launches games and sends keys on to the CV.
// A Platform is built per page load and holds no global state.
package platform

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"cvquest/internal/catalog"
	"cvquest/internal/debug"
	"cvquest/internal/keys"
	"cvquest/internal/logger"
	"cvquest/internal/models"
	"cvquest/internal/navigation"
	"cvquest/internal/service"
	"cvquest/internal/storage"
)

var (
	ErrGameLocked    = errors.New("game is locked")
	ErrNoCVReturnURL = errors.New("no CV return URL")
	ErrNoKey         = errors.New("no achievement key")
	ErrKeyRejected   = errors.New("achievement key rejected")
)

// VerifyNotice is shown when a returned key fails verification
const VerifyNotice = "Could not verify achievement"

// Platform ties the progress store, resolver, key codec and debug recorder
// of one origin together.
type Platform struct {
	Store    *service.ProgressService
	Resolver *service.Resolver
	Codec    *keys.Codec
	Debug    *debug.Recorder
	Storage  storage.Storage

	catalog *catalog.Catalog
	log     *logger.Logger
	now     func() time.Time

	mu            sync.Mutex
	studentID     string
	cvReturnURL   string
	lastKey       string
	notifications []string
}

// Option configures a Platform
type Option func(*Platform)

func WithClock(now func() time.Time) Option {
	return func(p *Platform) { p.now = now }
}

func WithRecorder(r *debug.Recorder) Option {
	return func(p *Platform) { p.Debug = r }
}

// New builds a platform over store. The debug recorder is on by default on
// the hub unless the stored debugMode says otherwise.
func New(store storage.Storage, cat *catalog.Catalog, codec *keys.Codec, log *logger.Logger, opts ...Option) *Platform {
	p := &Platform{
		Codec:   codec,
		Storage: store,
		catalog: cat,
		log:     log,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.Debug == nil {
		p.Debug = debug.NewRecorder(store, log, true, debug.WithClock(p.now))
	}
	p.Store = service.NewProgressService(store, cat, log, service.WithProgressClock(p.now))
	p.Resolver = service.NewResolver(cat, log)
	return p
}

// StudentData is what the hub knows after a page load
type StudentData struct {
	StudentID      string   `json:"studentId"`
	CompletedGames []string `json:"completedGames"`
	ReturnURL      string   `json:"returnUrl,omitempty"`
}

// LoadStudentData reads the student, completed games and CV return URL from
// the hub URL, falling back to storage, and persists what it found.
func (p *Platform) LoadStudentData(rawURL string) (StudentData, error) {
	params, err := navigation.ParseHub(rawURL)
	if err != nil {
		return StudentData{}, err
	}

	studentID := params.Student
	if studentID == "" {
		studentID = p.stored(storage.KeyStudentID)
	}
	returnURL := params.ReturnURL
	if returnURL == "" {
		returnURL = p.stored(storage.KeyCVReturnURL)
	}

	if studentID != "" {
		p.persist(storage.KeyStudentID, studentID)
	}
	if returnURL != "" {
		p.persist(storage.KeyCVReturnURL, returnURL)
	}

	p.mu.Lock()
	p.studentID = studentID
	p.cvReturnURL = returnURL
	p.mu.Unlock()

	p.Store.Load(studentID)
	p.Store.MergeExternal(params.Completed)

	data := StudentData{
		StudentID:      studentID,
		CompletedGames: p.Store.CompletedSet().Sorted(),
		ReturnURL:      returnURL,
	}
	p.Debug.Log("Student data loaded", debug.LevelInfo, data)
	return data, nil
}

// HandleReturn accepts a key handed back by a game. It returns nil when the
// URL carries no return. A key that fails verification, or that was minted
// for another game than the one reporting it, changes nothing and records a
// notification.
func (p *Platform) HandleReturn(rawURL string) (*models.AchievementKey, error) {
	ret, ok := navigation.ParseReturn(rawURL)
	if !ok {
		return nil, nil
	}

	key, err := p.Codec.Verify(ret.Key)
	if err == nil && key.GameID != ret.Source {
		err = fmt.Errorf("key is for %s", key.GameID)
	}
	if err != nil {
		p.log.Warn("Rejected achievement key", "source", ret.Source, "key", ret.Key, "error", err)
		p.Debug.Log("Invalid achievement key", debug.LevelError, map[string]string{"source": ret.Source})
		p.notify(VerifyNotice)
		return nil, fmt.Errorf("%w: %w", ErrKeyRejected, err)
	}

	p.Store.MarkCompleted(ret.Source)
	p.Store.MergeExternal([]string{ret.Source})

	p.mu.Lock()
	p.lastKey = ret.Key
	p.mu.Unlock()

	p.log.Info("Achievement accepted", "game_id", key.GameID, "student_id", key.StudentID, "points", key.TotalPoints())
	p.Debug.Log("Game completed: "+ret.Source, debug.LevelSuccess, nil)
	return key, nil
}

// StartGame records an attempt and returns the URL that launches gameID from
// the hub page at platformURL.
func (p *Platform) StartGame(gameID, platformURL string) (string, error) {
	def, ok := p.catalog.Game(gameID)
	if !ok {
		p.Debug.Log("Game not found: "+gameID, debug.LevelError, nil)
		return "", fmt.Errorf("%w: %s", catalog.ErrUnknownGame, gameID)
	}
	if !p.Resolver.IsGameUnlocked(gameID, p.Store.CompletedSet()) {
		p.Debug.Log("Please complete prerequisite games first", debug.LevelWarning, map[string]string{"gameId": gameID})
		return "", fmt.Errorf("%w: %s", ErrGameLocked, gameID)
	}

	gamePath, err := navigation.ResolveGamePath(platformURL, def.Path)
	if err != nil {
		return "", err
	}
	platformReturn, err := navigation.StripReturn(platformURL)
	if err != nil {
		return "", err
	}

	previous := p.Store.Attempts(gameID)
	p.Store.RecordAttempt(gameID, models.Attempt{StartedAt: p.now().UTC()})

	p.mu.Lock()
	launch := navigation.Launch{
		Student:           p.studentID,
		PlatformReturnURL: platformReturn,
		CVReturnURL:       p.cvReturnURL,
		Attempts:          previous,
	}
	p.mu.Unlock()

	launchURL, err := navigation.BuildGameLaunchURL(gamePath, launch)
	if err != nil {
		return "", err
	}

	p.Debug.Log("Starting game: "+gameID, debug.LevelInfo, nil)
	p.Debug.TrackNavigation(debug.PlacePlatform, debug.GamePlace(def.Title), map[string]interface{}{"gameId": gameID})
	return launchURL, nil
}

// ReturnToCV builds the CV URL carrying key. An empty key means the last key
// accepted by HandleReturn.
func (p *Platform) ReturnToCV(key string) (string, error) {
	p.mu.Lock()
	cvURL := p.cvReturnURL
	if key == "" {
		key = p.lastKey
	}
	p.mu.Unlock()

	if cvURL == "" {
		return "", ErrNoCVReturnURL
	}
	if key == "" {
		return "", ErrNoKey
	}
	u, err := navigation.BuildCVReturnURL(cvURL, key)
	if err != nil {
		return "", err
	}

	p.Debug.Log("Returning to CV with key", debug.LevelInfo, nil)
	p.Debug.TrackNavigation(debug.PlacePlatform, debug.PlaceCV, map[string]interface{}{"key": key})
	return u, nil
}

// GameState is the rendering state of one game
type GameState struct {
	ID         string                     `json:"id"`
	Title      string                     `json:"title"`
	Icon       string                     `json:"icon,omitempty"`
	Difficulty string                     `json:"difficulty,omitempty"`
	Unlocked   bool                       `json:"unlocked"`
	Completed  bool                       `json:"completed"`
	Progress   *models.GameProgressRecord `json:"progress,omitempty"`
}

// State is everything the hub page renders
type State struct {
	StudentID     string                `json:"studentId"`
	CVReturnURL   string                `json:"cvReturnUrl,omitempty"`
	LastKey       string                `json:"lastKey,omitempty"`
	Games         []GameState           `json:"games"`
	Paths         []service.PathStatus  `json:"paths"`
	Totals        models.ProgressTotals `json:"totals"`
	CurrentPath   string                `json:"currentPath"`
	Notifications []string              `json:"notifications"`
}

func (p *Platform) State() State {
	completed := p.Store.CompletedSet()
	progress := p.Store.Progress()

	games := make([]GameState, 0, len(p.catalog.Games()))
	for _, g := range p.catalog.Games() {
		games = append(games, GameState{
			ID:         g.ID,
			Title:      g.Title,
			Icon:       g.Icon,
			Difficulty: g.Difficulty,
			Unlocked:   p.Resolver.IsGameUnlocked(g.ID, completed),
			Completed:  completed.Has(g.ID),
			Progress:   progress[g.ID],
		})
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return State{
		StudentID:     p.studentID,
		CVReturnURL:   p.cvReturnURL,
		LastKey:       p.lastKey,
		Games:         games,
		Paths:         p.Resolver.PathStatuses(completed),
		Totals:        p.Store.Totals(),
		CurrentPath:   p.Resolver.CurrentPath(completed),
		Notifications: dedupe(append(p.Store.Notifications(), p.notifications...)),
	}
}

func (p *Platform) stored(key string) string {
	v, _, err := p.Storage.Get(key)
	if err != nil {
		p.storageFailed(key, err)
		return ""
	}
	return v
}

func (p *Platform) persist(key, value string) {
	if err := p.Storage.Set(key, value); err != nil {
		p.storageFailed(key, err)
	}
}

func (p *Platform) storageFailed(key string, err error) {
	p.log.Warn("Storage unavailable, continuing in memory", "storage_key", key, "error", err)
	p.notify(service.StorageNotice)
}

func (p *Platform) notify(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notifications = dedupe(append(p.notifications, msg))
}

func dedupe(list []string) []string {
	out := make([]string, 0, len(list))
	seen := make(map[string]bool, len(list))
	for _, s := range list {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
