// Package game runs one play-through of a game page: section navigation,
// quiz scoring and minting the achievement key at the end.
package game

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"cvquest/internal/catalog"
	"cvquest/internal/debug"
	"cvquest/internal/keys"
	"cvquest/internal/navigation"
)

var (
	ErrUnknownSection = errors.New("unknown section")
	ErrNoReturnURL    = errors.New("no platform return URL")
	ErrNotCompleted   = errors.New("game not completed")
)

const (
	// SectionChallenge is worth the non-quiz share of the score
	SectionChallenge = "challenge"
	// SectionComplete is shown once the key is minted
	SectionComplete = "game-complete"

	quizWeight      = 60
	challengeWeight = 40
)

// Session is the state of one game page
type Session struct {
	mu       sync.Mutex
	game     catalog.GameDefinition
	params   navigation.LaunchParams
	now      func() time.Time
	recorder *debug.Recorder

	startedAt time.Time
	current   string
	visited   []string
	progress  int
	correct   int
	key       string
}

// Option configures a Session
type Option func(*Session)

// WithStartedAt restores the start time of a session begun earlier
func WithStartedAt(t time.Time) Option {
	return func(s *Session) { s.startedAt = t }
}

// WithRecorder sends session events to a debug recorder
func WithRecorder(r *debug.Recorder) Option {
	return func(s *Session) { s.recorder = r }
}

// NewSession starts a session of def opened at launchURL. The first section
// is visited immediately. A nil clock means time.Now.
func NewSession(def catalog.GameDefinition, launchURL string, clock func() time.Time, opts ...Option) (*Session, error) {
	params, err := navigation.ParseLaunch(launchURL)
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = time.Now
	}
	s := &Session{game: def, params: params, now: clock}
	for _, opt := range opts {
		opt(s)
	}
	if s.startedAt.IsZero() {
		s.startedAt = clock()
	}
	if params.Debug && s.recorder != nil {
		s.recorder.Enable()
	}
	if len(def.Sections) > 0 {
		s.visit(def.Sections[0].ID)
	}
	s.logf(debug.LevelInfo, map[string]string{"gameId": def.ID, "studentId": params.Student}, "Game session started")
	return s, nil
}

func (s *Session) Game() catalog.GameDefinition { return s.game }

func (s *Session) Params() navigation.LaunchParams { return s.params }

func (s *Session) StartedAt() time.Time { return s.startedAt }

// Visit moves to sectionID, marking it visited
func (s *Session) Visit(sectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sectionIndex(sectionID) < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownSection, sectionID)
	}
	s.visit(sectionID)
	return nil
}

func (s *Session) visit(sectionID string) {
	s.current = sectionID
	if !contains(s.visited, sectionID) {
		s.visited = append(s.visited, sectionID)
	}

	idx := s.sectionIndex(sectionID)
	switch n := len(s.game.Sections); {
	case idx < 0:
	case n == 1:
		s.progress = 100
	default:
		s.progress = int(math.Round(float64(idx) / float64(n-1) * 100))
	}

	if s.recorder != nil {
		s.recorder.UpdateFlowState(debug.StepGame, debug.StatusActive, "Section: "+sectionID)
	}
	s.logf(debug.LevelInfo, nil, "Navigated to section: %s", sectionID)
}

// AnswerQuiz records one checked quiz answer. Correct answers beyond the
// game's quiz count are not counted.
func (s *Session) AnswerQuiz(correct bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !correct {
		s.logf(debug.LevelError, nil, "Quiz answer incorrect")
		return
	}
	if s.game.QuizCount > 0 && s.correct < s.game.QuizCount {
		s.correct++
	}
	s.logf(debug.LevelSuccess, nil, "Quiz answer correct")
}

// Score is the quiz share of 60 points plus 40 once the challenge was reached
func (s *Session) Score() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.score()
}

func (s *Session) score() int {
	var total float64
	if s.game.QuizCount > 0 {
		total = float64(s.correct) / float64(s.game.QuizCount) * quizWeight
	}
	if contains(s.visited, SectionChallenge) {
		total += challengeWeight
	}
	return int(math.Round(total))
}

// Progress is the position of the current section as a percentage
func (s *Session) Progress() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

func (s *Session) Visited() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.visited...)
}

func (s *Session) Elapsed() time.Duration {
	return s.now().Sub(s.startedAt)
}

// MeetsRequirements reports whether the session satisfies the game's
// required sections and minimum score.
func (s *Session) MeetsRequirements() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.game.MeetsRequirements(s.score(), s.visited)
}

// Complete mints the achievement key for this session. Completing twice
// returns the first key.
func (s *Session) Complete(codec *keys.Codec) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.key != "" {
		return s.key, nil
	}

	key, err := codec.Mint(s.game.ID, s.game.Achievements, s.params.Student, s.now().Sub(s.startedAt))
	if err != nil {
		return "", fmt.Errorf("failed to mint key for %s: %w", s.game.ID, err)
	}
	s.key = key

	if s.recorder != nil {
		s.recorder.UpdateFlowState(debug.StepAchievement, debug.StatusCompleted, "Key generated")
	}
	if s.sectionIndex(SectionComplete) >= 0 {
		s.visit(SectionComplete)
	}
	s.logf(debug.LevelSuccess, map[string]interface{}{"key": key, "score": s.score()}, "Game completed")
	return key, nil
}

// Key returns the minted key, empty before Complete
func (s *Session) Key() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key
}

// ReturnURL builds the hub URL that hands the minted key back
func (s *Session) ReturnURL() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.key == "" {
		return "", ErrNotCompleted
	}
	if s.params.PlatformReturn == "" {
		s.logf(debug.LevelError, nil, "No platform return URL")
		return "", ErrNoReturnURL
	}
	u, err := navigation.BuildReturnURL(s.params.PlatformReturn, navigation.Return{
		Source:    s.game.ID,
		Completed: true,
		Key:       s.key,
	})
	if err != nil {
		return "", err
	}
	if s.recorder != nil {
		s.recorder.TrackNavigation(debug.GamePlace(s.game.Title), debug.PlacePlatform, map[string]interface{}{
			"completed": true,
			"key":       s.key,
		})
	}
	return u, nil
}

func (s *Session) sectionIndex(id string) int {
	for i, sec := range s.game.Sections {
		if sec.ID == id {
			return i
		}
	}
	return -1
}

func (s *Session) logf(level debug.Level, data interface{}, format string, args ...interface{}) {
	if s.recorder == nil {
		return
	}
	s.recorder.Log(fmt.Sprintf(format, args...), level, data)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
