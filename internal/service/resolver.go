package service

import (
	"cvquest/internal/catalog"
	"cvquest/internal/logger"
	"cvquest/internal/models"
)

// Resolver decides which games and paths a student may open.
// Resolution is plain membership testing, so a prerequisite cycle would only
// leave games locked; the catalog rejects cycles on load anyway.
type Resolver struct {
	catalog *catalog.Catalog
	log     *logger.Logger
}

func NewResolver(cat *catalog.Catalog, log *logger.Logger) *Resolver {
	return &Resolver{catalog: cat, log: log}
}

// IsGameUnlocked reports whether gameID can be launched. A completed game is
// always replayable.
func (r *Resolver) IsGameUnlocked(gameID string, completed models.GameSet) bool {
	game, ok := r.catalog.Game(gameID)
	if !ok {
		r.log.Warn("Unlock check for unknown game", "game_id", gameID)
		return false
	}
	if completed.Has(gameID) {
		return true
	}
	for _, pre := range game.Prerequisites {
		if !completed.Has(pre) {
			return false
		}
	}
	return true
}

// IsPathUnlocked reports whether the games of pathID are open for access.
// It depends only on the prerequisite path, never on the path's own games.
func (r *Resolver) IsPathUnlocked(pathID string, completed models.GameSet) bool {
	path, ok := r.catalog.Path(pathID)
	if !ok {
		r.log.Warn("Unlock check for unknown path", "path_id", pathID)
		return false
	}
	if path.PrerequisitePath == "" {
		return true
	}
	prereq, ok := r.catalog.Path(path.PrerequisitePath)
	if !ok {
		return false
	}
	return allCompleted(prereq.Games, completed)
}

// CurrentPath returns the title of the first path that is started but not
// finished, or the first path's title when none is.
func (r *Resolver) CurrentPath(completed models.GameSet) string {
	paths := r.catalog.Paths()
	if len(paths) == 0 {
		return ""
	}
	for _, p := range paths {
		done := countCompleted(p.Games, completed)
		if done > 0 && done < len(p.Games) {
			return p.Title
		}
	}
	return paths[0].Title
}

// UnlockedGames lists the unlocked game ids in catalog order
func (r *Resolver) UnlockedGames(completed models.GameSet) []string {
	var ids []string
	for _, id := range r.catalog.GameIDs() {
		if r.IsGameUnlocked(id, completed) {
			ids = append(ids, id)
		}
	}
	return ids
}

// PathStatus is the rendering state of one path
type PathStatus struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Color     string `json:"color,omitempty"`
	Unlocked  bool   `json:"unlocked"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Finished  bool   `json:"finished"`
}

// PathStatuses returns the state of every path in declared order
func (r *Resolver) PathStatuses(completed models.GameSet) []PathStatus {
	paths := r.catalog.Paths()
	out := make([]PathStatus, 0, len(paths))
	for _, p := range paths {
		done := countCompleted(p.Games, completed)
		out = append(out, PathStatus{
			ID:        p.ID,
			Title:     p.Title,
			Color:     p.Color,
			Unlocked:  r.IsPathUnlocked(p.ID, completed),
			Completed: done,
			Total:     len(p.Games),
			Finished:  len(p.Games) > 0 && done == len(p.Games),
		})
	}
	return out
}

func countCompleted(ids []string, completed models.GameSet) int {
	n := 0
	for _, id := range ids {
		if completed.Has(id) {
			n++
		}
	}
	return n
}

func allCompleted(ids []string, completed models.GameSet) bool {
	return countCompleted(ids, completed) == len(ids)
}
