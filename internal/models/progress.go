package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// GameStatus is the lifecycle state of a game for one student
type GameStatus string

const (
	StatusNotStarted GameStatus = "not_started"
	StatusInProgress GameStatus = "in_progress"
	StatusCompleted  GameStatus = "completed"
)

// ParseGameStatus converts a stored string into a GameStatus
func ParseGameStatus(s string) (GameStatus, error) {
	switch GameStatus(s) {
	case StatusNotStarted, StatusInProgress, StatusCompleted:
		return GameStatus(s), nil
	default:
		return "", fmt.Errorf("unknown game status %q", s)
	}
}

// Label returns the display form of the status
func (s GameStatus) Label() string {
	switch s {
	case StatusNotStarted:
		return "Not Started"
	case StatusInProgress:
		return "In Progress"
	case StatusCompleted:
		return "Completed"
	default:
		return string(s)
	}
}

func (s *GameStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseGameStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// GameProgressRecord is the persisted progress of one student in one game
type GameProgressRecord struct {
	Status         GameStatus    `json:"status"`
	Score          int           `json:"score"`
	Attempts       int           `json:"attempts"`
	BestScore      int           `json:"bestScore"`
	LastAttempt    *time.Time    `json:"lastAttempt"`
	CompletionTime *int64        `json:"completionTime"`
	Achievements   []Achievement `json:"achievements"`
}

// NewGameProgressRecord returns the zero-valued record used for unseen games
func NewGameProgressRecord() *GameProgressRecord {
	return &GameProgressRecord{
		Status:       StatusNotStarted,
		Achievements: []Achievement{},
	}
}

// IsCompleted reports whether the game is completed
func (r *GameProgressRecord) IsCompleted() bool {
	return r != nil && r.Status == StatusCompleted
}

// Clone returns a deep copy of the record
func (r *GameProgressRecord) Clone() *GameProgressRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.LastAttempt != nil {
		t := *r.LastAttempt
		c.LastAttempt = &t
	}
	if r.CompletionTime != nil {
		v := *r.CompletionTime
		c.CompletionTime = &v
	}
	c.Achievements = append([]Achievement{}, r.Achievements...)
	return &c
}

// ProgressMap holds a student's records keyed by game id
type ProgressMap map[string]*GameProgressRecord

// Clone returns a deep copy of the map
func (m ProgressMap) Clone() ProgressMap {
	out := make(ProgressMap, len(m))
	for id, r := range m {
		out[id] = r.Clone()
	}
	return out
}

// GameSet is a set of game ids
type GameSet map[string]bool

// NewGameSet builds a set from ids
func NewGameSet(ids ...string) GameSet {
	s := make(GameSet, len(ids))
	for _, id := range ids {
		s[id] = true
	}
	return s
}

func (s GameSet) Has(id string) bool {
	return s[id]
}

// Sorted returns the ids in lexical order
func (s GameSet) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ProgressPatch carries optional updates for a GameProgressRecord.
// Nil fields are left untouched.
type ProgressPatch struct {
	Status         *GameStatus
	Score          *int
	Attempts       *int
	CompletionTime *int64
	Achievements   []Achievement
}

// ProgressTotals summarises completion across the catalog
type ProgressTotals struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	InProgress int `json:"inProgress"`
	Percentage int `json:"percentage"`
}

// Attempt is one launch of a game recorded by the hub
type Attempt struct {
	StartedAt time.Time `json:"startedAt"`
	Score     int       `json:"score,omitempty"`
	Completed bool      `json:"completed,omitempty"`
}

// ProgressSnapshot is the exportable form of a student's progress
type ProgressSnapshot struct {
	StudentID      string      `json:"studentId"`
	Progress       ProgressMap `json:"progress"`
	CompletedGames []string    `json:"completedGames"`
	ExportDate     time.Time   `json:"exportDate"`
}

// Ptr returns a pointer to v, for building patches
func Ptr[T any](v T) *T {
	return &v
}
