package handlers

import (
	"net/http"
	"sync"

	"cvquest/internal/logger"
)

// Startup steps of the hub server
const (
	StepDatabase   = "Database connection"
	StepMigrations = "Running migrations"
	StepCatalog    = "Loading catalog"
	StepServices   = "Initializing services"
	StepReady      = "Server ready"
)

// StartupStatus tracks the initialization progress
type StartupStatus struct {
	mu       sync.RWMutex
	ready    bool
	current  string
	progress int
	steps    []StartupStep
	log      *logger.Logger
}

type StartupStep struct {
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
}

// NewStartupStatus tracks the given steps, none completed
func NewStartupStatus(log *logger.Logger, steps ...string) *StartupStatus {
	s := &StartupStatus{current: "Initializing...", log: log}
	for _, name := range steps {
		s.steps = append(s.steps, StartupStep{Name: name})
	}
	return s
}

// SetCurrentStep updates the current initialization step
func (s *StartupStatus) SetCurrentStep(step string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = step
}

// CompleteStep marks a step as completed and updates progress
func (s *StartupStatus) CompleteStep(stepName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.steps {
		if s.steps[i].Name == stepName {
			s.steps[i].Completed = true
			break
		}
	}

	completed := 0
	for _, step := range s.steps {
		if step.Completed {
			completed++
		}
	}
	if len(s.steps) > 0 {
		s.progress = (completed * 100) / len(s.steps)
	}
	s.log.Info("Startup step completed", "step", stepName, "progress", s.progress)
}

// MarkReady marks the server as fully initialized
func (s *StartupStatus) MarkReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = true
	s.current = StepReady
	s.progress = 100
	for i := range s.steps {
		s.steps[i].Completed = true
	}
}

func (s *StartupStatus) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

type startupView struct {
	Ready    bool          `json:"ready"`
	Current  string        `json:"current"`
	Progress int           `json:"progress"`
	Steps    []StartupStep `json:"steps"`
}

// ShowStartupStatus reports the startup state; 503 until ready
func (s *StartupStatus) ShowStartupStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	view := startupView{
		Ready:    s.ready,
		Current:  s.current,
		Progress: s.progress,
		Steps:    append([]StartupStep{}, s.steps...),
	}
	s.mu.RUnlock()

	status := http.StatusOK
	if !view.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, s.log, status, view)
}

// RequireReady answers 503 until the server is ready
func (s *StartupStatus) RequireReady(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.IsReady() && r.URL.Path != "/healthz" {
			s.ShowStartupStatus(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
