// Package debug records what a page did so it can be shown in a debug panel:
// log lines, navigation between pages and the state of the
// platform -> game -> achievement -> CV flow.
package debug

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"cvquest/internal/logger"
	"cvquest/internal/storage"
)

// Level classifies a log entry
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

const (
	maxLogs       = 100
	maxNavigation = 50
)

// Places used in navigation entries
const (
	PlacePlatform = "Game Platform"
	PlaceCV       = "Student CV"
	gamePrefix    = "Game: "
)

// GamePlace names a game page in navigation entries
func GamePlace(title string) string {
	return gamePrefix + title
}

// Flow steps, in display order
const (
	StepPlatform    = "platform"
	StepGame        = "game"
	StepAchievement = "achievement"
	StepReturnCV    = "returnCV"
)

var flowOrder = []string{StepPlatform, StepGame, StepAchievement, StepReturnCV}

// Flow statuses
const (
	StatusPending   = "pending"
	StatusActive    = "active"
	StatusCompleted = "completed"
)

type LogEntry struct {
	ID      string      `json:"id"`
	Time    time.Time   `json:"time"`
	Message string      `json:"message"`
	Level   Level       `json:"level"`
	Data    interface{} `json:"data,omitempty"`
}

type NavEntry struct {
	ID   string                 `json:"id"`
	Time time.Time              `json:"time"`
	From string                 `json:"from"`
	To   string                 `json:"to"`
	Data map[string]interface{} `json:"data,omitempty"`
}

type FlowStep struct {
	Step   string `json:"step"`
	Status string `json:"status"`
	Data   string `json:"data,omitempty"`
}

// Snapshot is everything a debug panel shows
type Snapshot struct {
	Enabled    bool       `json:"enabled"`
	Logs       []LogEntry `json:"logs"`
	Navigation []NavEntry `json:"navigation"`
	Flow       []FlowStep `json:"flow"`
}

// Recorder collects debug events while enabled. The enabled flag is kept in
// storage under debugMode so it survives page loads.
type Recorder struct {
	mu      sync.Mutex
	enabled bool
	logs    []LogEntry
	nav     []NavEntry
	flow    map[string]*FlowStep

	store storage.Storage
	log   *logger.Logger
	now   func() time.Time
}

// Option configures a Recorder
type Option func(*Recorder)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// NewRecorder restores the enabled flag from store, falling back to
// enabledByDefault when nothing is stored.
func NewRecorder(store storage.Storage, log *logger.Logger, enabledByDefault bool, opts ...Option) *Recorder {
	r := &Recorder{
		enabled: enabledByDefault,
		store:   store,
		log:     log,
		now:     time.Now,
		flow: map[string]*FlowStep{
			StepPlatform:    {Step: StepPlatform, Status: StatusActive},
			StepGame:        {Step: StepGame, Status: StatusPending},
			StepAchievement: {Step: StepAchievement, Status: StatusPending},
			StepReturnCV:    {Step: StepReturnCV, Status: StatusPending},
		},
	}
	for _, opt := range opts {
		opt(r)
	}

	v, ok, err := store.Get(storage.KeyDebugMode)
	switch {
	case err != nil:
		log.Warn("Could not read debug mode", "error", err)
	case ok:
		r.enabled = v == "true"
	}
	return r
}

func (r *Recorder) Enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

func (r *Recorder) Enable() {
	r.setEnabled(true)
}

func (r *Recorder) Disable() {
	r.setEnabled(false)
}

// Toggle flips the enabled flag and returns the new value
func (r *Recorder) Toggle() bool {
	r.mu.Lock()
	enabled := !r.enabled
	r.mu.Unlock()
	r.setEnabled(enabled)
	return enabled
}

func (r *Recorder) setEnabled(enabled bool) {
	r.mu.Lock()
	r.enabled = enabled
	r.mu.Unlock()

	value := "false"
	if enabled {
		value = "true"
	}
	if err := r.store.Set(storage.KeyDebugMode, value); err != nil {
		r.log.Warn("Could not persist debug mode", "error", err)
	}
}

// Log records a message. It is mirrored to the structured logger.
func (r *Recorder) Log(message string, level Level, data interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.enabled {
		return
	}

	r.logs = append(r.logs, LogEntry{
		ID:      uuid.NewString(),
		Time:    r.now(),
		Message: message,
		Level:   level,
		Data:    data,
	})
	if len(r.logs) > maxLogs {
		r.logs = r.logs[len(r.logs)-maxLogs:]
	}

	kv := []interface{}{"level", string(level)}
	if data != nil {
		kv = append(kv, "data", data)
	}
	switch level {
	case LevelError:
		r.log.Error(message, kv...)
	case LevelWarning:
		r.log.Warn(message, kv...)
	default:
		r.log.Debug(message, kv...)
	}
}

// TrackNavigation records a move between pages and advances the flow:
// hub to game starts the game step, game to hub produces the key, and hub
// to CV with a key hands it back.
func (r *Recorder) TrackNavigation(from, to string, data map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.enabled {
		return
	}

	r.nav = append(r.nav, NavEntry{
		ID:   uuid.NewString(),
		Time: r.now(),
		From: from,
		To:   to,
		Data: data,
	})
	if len(r.nav) > maxNavigation {
		r.nav = r.nav[len(r.nav)-maxNavigation:]
	}

	switch {
	case from == PlacePlatform && strings.HasPrefix(to, gamePrefix):
		r.flow[StepPlatform].Status = StatusCompleted
		r.flow[StepGame].Status = StatusActive
		r.flow[StepGame].Data = "Playing: " + strings.TrimPrefix(to, gamePrefix)
	case strings.HasPrefix(from, gamePrefix) && to == PlacePlatform:
		r.flow[StepGame].Status = StatusCompleted
		r.flow[StepAchievement].Status = StatusActive
		r.flow[StepAchievement].Data = "Key generated"
	case from == PlacePlatform && to == PlaceCV && data["key"] != nil:
		r.flow[StepAchievement].Status = StatusCompleted
		r.flow[StepReturnCV].Status = StatusActive
		r.flow[StepReturnCV].Data = "Returned with key"
	}
}

// UpdateFlowState sets the status of a flow step. Unknown steps are ignored
// and an empty data keeps the previous one.
func (r *Recorder) UpdateFlowState(step, status, data string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.enabled {
		return
	}
	s, ok := r.flow[step]
	if !ok {
		return
	}
	s.Status = status
	if data != "" {
		s.Data = data
	}
}

// Snapshot copies the recorded state
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		Enabled:    r.enabled,
		Logs:       append([]LogEntry{}, r.logs...),
		Navigation: append([]NavEntry{}, r.nav...),
	}
	for _, step := range flowOrder {
		snap.Flow = append(snap.Flow, *r.flow[step])
	}
	return snap
}

// DumpStorage returns every stored item, decoding JSON values where possible
func DumpStorage(s storage.Storage) (map[string]interface{}, error) {
	keys, err := s.Keys()
	if err != nil {
		return nil, err
	}
	out := make(map[string]interface{}, len(keys))
	for _, k := range keys {
		raw, ok, err := s.Get(k)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		var v interface{}
		if json.Unmarshal([]byte(raw), &v) == nil {
			out[k] = v
		} else {
			out[k] = raw
		}
	}
	return out, nil
}
