package service

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"cvquest/internal/catalog"
	"cvquest/internal/logger"
	"cvquest/internal/models"
	"cvquest/internal/storage"
)

// ErrStudentMismatch is returned when importing another student's snapshot
var ErrStudentMismatch = errors.New("snapshot belongs to another student")

// maxAttempts bounds the launch history kept per game
const maxAttempts = 50

// StorageNotice is shown once when progress cannot be persisted
const StorageNotice = "Progress could not be saved and will only last for this session"

// ProgressService tracks one student's progress on one origin.
//
// Persistence is read-then-write without locking across processes: two pages
// updating the same student concurrently can overwrite each other's changes.
type ProgressService struct {
	mu      sync.Mutex
	store   storage.Storage
	catalog *catalog.Catalog
	log     *logger.Logger
	now     func() time.Time

	studentID     string
	progress      models.ProgressMap
	completedList []string
	external      models.GameSet
	attempts      map[string][]models.Attempt
	notifications []string
}

// ProgressOption configures a ProgressService
type ProgressOption func(*ProgressService)

// WithProgressClock overrides the time source
func WithProgressClock(now func() time.Time) ProgressOption {
	return func(s *ProgressService) {
		s.now = now
	}
}

// NewProgressService creates a progress service backed by store
func NewProgressService(store storage.Storage, cat *catalog.Catalog, log *logger.Logger, opts ...ProgressOption) *ProgressService {
	s := &ProgressService{
		store:    store,
		catalog:  cat,
		log:      log,
		now:      time.Now,
		external: models.NewGameSet(),
		attempts: make(map[string][]models.Attempt),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.progress = s.initialize()
	return s
}

// StudentID returns the student whose progress is loaded
func (s *ProgressService) StudentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.studentID
}

// Load reads the stored progress of studentID and the flat completed list.
// Missing or unreadable progress yields a fresh map with one not_started
// record per known game.
func (s *ProgressService) Load(studentID string) models.ProgressMap {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.studentID = studentID
	s.progress = s.initialize()
	s.attempts = make(map[string][]models.Attempt)

	if studentID != "" {
		var stored models.ProgressMap
		found, err := storage.GetJSON(s.store, storage.ProgressKey(studentID), &stored)
		switch {
		case errors.Is(err, storage.ErrUnavailable):
			s.storageFailed("load progress", err)
		case err != nil:
			s.log.Warn("Stored progress is unreadable, starting fresh", "student_id", studentID, "error", err)
		case found:
			for id, rec := range stored {
				if rec == nil {
					continue
				}
				if rec.Achievements == nil {
					rec.Achievements = []models.Achievement{}
				}
				s.progress[id] = rec
			}
		}
	}

	var list []string
	_, err := storage.GetJSON(s.store, storage.KeyCompletedGames, &list)
	switch {
	case errors.Is(err, storage.ErrUnavailable):
		s.storageFailed("load completed games", err)
	case err != nil:
		s.log.Warn("Stored completed games list is unreadable, ignoring it", "error", err)
	}
	s.completedList = union(nil, list)

	s.log.Debug("Progress loaded", "student_id", studentID, "games", len(s.progress))
	return s.progress.Clone()
}

// Progress returns a copy of the current progress map
func (s *ProgressService) Progress() models.ProgressMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress.Clone()
}

// GameProgress returns the record of one game, or nil when there is none
func (s *ProgressService) GameProgress(gameID string) *models.GameProgressRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress[gameID].Clone()
}

// Update merges patch into the record of gameID and persists the map.
// Unknown games are ignored with a warning; the return value reports whether
// the patch was applied.
func (s *ProgressService) Update(gameID string, patch models.ProgressPatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.catalog.HasGame(gameID) {
		s.log.Warn("Ignoring progress update for unknown game", "game_id", gameID)
		return false
	}

	rec := s.record(gameID)
	if patch.Status != nil {
		rec.Status = *patch.Status
	}
	if patch.Score != nil {
		rec.Score = *patch.Score
		if rec.Score > rec.BestScore {
			rec.BestScore = rec.Score
		}
	}
	if patch.Attempts != nil {
		rec.Attempts = *patch.Attempts
	}
	if patch.CompletionTime != nil {
		v := *patch.CompletionTime
		rec.CompletionTime = &v
	}
	if patch.Achievements != nil {
		rec.Achievements = append([]models.Achievement{}, patch.Achievements...)
	}
	now := s.now().UTC()
	rec.LastAttempt = &now

	s.saveProgress()
	return true
}

// MarkCompleted sets gameID to completed with the current unix time as its
// completion time.
func (s *ProgressService) MarkCompleted(gameID string) bool {
	return s.Update(gameID, models.ProgressPatch{
		Status:         models.Ptr(models.StatusCompleted),
		CompletionTime: models.Ptr(s.now().Unix()),
	})
}

// MergeExternal records games reported completed by another page. Scores and
// attempts are left alone. Unknown ids still join the completed set but get
// no progress record. Calling it again with the same ids changes nothing.
func (s *ProgressService) MergeExternal(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changedMap := false
	for _, id := range ids {
		if id == "" {
			continue
		}
		s.external[id] = true
		if !s.catalog.HasGame(id) {
			s.log.Warn("Completed game is not in the catalog", "game_id", id)
			continue
		}
		rec := s.record(id)
		if rec.Status != models.StatusCompleted {
			rec.Status = models.StatusCompleted
			changedMap = true
		}
	}

	merged := union(s.completedList, ids)
	if len(merged) != len(s.completedList) {
		s.completedList = merged
		s.saveCompletedList()
	}
	if changedMap {
		s.saveProgress()
	}
}

// CompletedSet is the union of completed records, the flat completed list
// and every id merged from outside.
func (s *ProgressService) CompletedSet() models.GameSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completedSet()
}

func (s *ProgressService) completedSet() models.GameSet {
	set := models.NewGameSet(s.completedList...)
	for id, rec := range s.progress {
		if rec.IsCompleted() {
			set[id] = true
		}
	}
	for id := range s.external {
		set[id] = true
	}
	return set
}

// Totals summarises progress over the known games
func (s *ProgressService) Totals() models.ProgressTotals {
	s.mu.Lock()
	defer s.mu.Unlock()

	completed := s.completedSet()
	totals := models.ProgressTotals{Total: len(s.catalog.GameIDs())}
	for _, id := range s.catalog.GameIDs() {
		switch {
		case completed.Has(id):
			totals.Completed++
		case s.progress[id] != nil && s.progress[id].Status == models.StatusInProgress:
			totals.InProgress++
		}
	}
	if totals.Total > 0 {
		totals.Percentage = int(math.Floor(100*float64(totals.Completed)/float64(totals.Total) + 0.5))
	}
	return totals
}

// RecordAttempt appends a launch of gameID to the student's history and moves
// an unfinished game to in_progress.
func (s *ProgressService) RecordAttempt(gameID string, attempt models.Attempt) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.catalog.HasGame(gameID) {
		s.log.Warn("Ignoring attempt for unknown game", "game_id", gameID)
		return false
	}

	history := append(s.loadAttempts(gameID), attempt)
	if len(history) > maxAttempts {
		history = history[len(history)-maxAttempts:]
	}
	s.attempts[gameID] = history
	if s.studentID != "" {
		if err := storage.SetJSON(s.store, storage.AttemptsKey(s.studentID, gameID), history); err != nil {
			s.persistFailed("save attempts", err)
		}
	}

	rec := s.record(gameID)
	rec.Attempts++
	if rec.Status == models.StatusNotStarted {
		rec.Status = models.StatusInProgress
	}
	now := s.now().UTC()
	rec.LastAttempt = &now
	s.saveProgress()
	return true
}

// Attempts returns the recorded launches of gameID, oldest first
func (s *ProgressService) Attempts(gameID string) []models.Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Attempt{}, s.loadAttempts(gameID)...)
}

func (s *ProgressService) loadAttempts(gameID string) []models.Attempt {
	if history, ok := s.attempts[gameID]; ok {
		return history
	}
	var history []models.Attempt
	if s.studentID != "" {
		_, err := storage.GetJSON(s.store, storage.AttemptsKey(s.studentID, gameID), &history)
		switch {
		case errors.Is(err, storage.ErrUnavailable):
			s.storageFailed("load attempts", err)
		case err != nil:
			s.log.Warn("Stored attempts are unreadable, ignoring them", "game_id", gameID, "error", err)
			history = nil
		}
	}
	s.attempts[gameID] = history
	return history
}

// Export returns a snapshot of the student's progress
func (s *ProgressService) Export() models.ProgressSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.ProgressSnapshot{
		StudentID:      s.studentID,
		Progress:       s.progress.Clone(),
		CompletedGames: s.completedSet().Sorted(),
		ExportDate:     s.now().UTC(),
	}
}

// Import replaces the progress map with a snapshot of the same student. The
// snapshot is kept in memory even when persisting it fails; that failure is
// returned wrapping the storage error.
func (s *ProgressService) Import(snapshot models.ProgressSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snapshot.StudentID != s.studentID {
		return ErrStudentMismatch
	}

	s.progress = s.initialize()
	for id, rec := range snapshot.Progress {
		if rec != nil {
			s.progress[id] = rec.Clone()
		}
	}
	s.completedList = union(s.completedList, snapshot.CompletedGames)
	err := s.saveProgress()
	if cerr := s.saveCompletedList(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to persist imported progress: %w", err)
	}
	return nil
}

// Notifications returns the non-fatal problems met so far
func (s *ProgressService) Notifications() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.notifications...)
}

func (s *ProgressService) initialize() models.ProgressMap {
	m := make(models.ProgressMap)
	for _, id := range s.catalog.GameIDs() {
		m[id] = models.NewGameProgressRecord()
	}
	return m
}

func (s *ProgressService) record(gameID string) *models.GameProgressRecord {
	rec, ok := s.progress[gameID]
	if !ok || rec == nil {
		rec = models.NewGameProgressRecord()
		s.progress[gameID] = rec
	}
	return rec
}

func (s *ProgressService) saveProgress() error {
	if s.studentID == "" {
		return nil
	}
	err := storage.SetJSON(s.store, storage.ProgressKey(s.studentID), s.progress)
	if err != nil {
		s.persistFailed("save progress", err)
	}
	return err
}

func (s *ProgressService) saveCompletedList() error {
	err := storage.SetJSON(s.store, storage.KeyCompletedGames, s.completedList)
	if err != nil {
		s.persistFailed("save completed games", err)
	}
	return err
}

func (s *ProgressService) persistFailed(op string, err error) {
	if errors.Is(err, storage.ErrUnavailable) {
		s.storageFailed(op, err)
		return
	}
	s.log.Error("Failed to persist progress", "op", op, "error", err)
}

func (s *ProgressService) storageFailed(op string, err error) {
	s.log.Warn("Storage unavailable, continuing in memory", "op", op, "error", err)
	for _, n := range s.notifications {
		if n == StorageNotice {
			return
		}
	}
	s.notifications = append(s.notifications, StorageNotice)
}

// union appends the ids of add missing from base, keeping first-seen order
func union(base, add []string) []string {
	out := make([]string, 0, len(base)+len(add))
	seen := make(map[string]bool, len(base)+len(add))
	for _, list := range [][]string{base, add} {
		for _, id := range list {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
