// Package catalog holds the static game and learning-path definitions
package catalog

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"cvquest/internal/models"
)

var (
	ErrUnknownGame = errors.New("unknown game")
	ErrUnknownPath = errors.New("unknown path")
	ErrCycle       = errors.New("prerequisite cycle")
)

// Section is one step of a game page
type Section struct {
	ID    string `yaml:"id" json:"id"`
	Title string `yaml:"title" json:"title"`
	Type  string `yaml:"type" json:"type"`
}

// GameDefinition describes a game the hub can launch
type GameDefinition struct {
	ID               string               `yaml:"id" json:"id"`
	Title            string               `yaml:"title" json:"title"`
	Icon             string               `yaml:"icon" json:"icon"`
	Path             string               `yaml:"path" json:"path"`
	Prerequisites    []string             `yaml:"prerequisites" json:"prerequisites"`
	Skills           []string             `yaml:"skills" json:"skills"`
	Difficulty       string               `yaml:"difficulty" json:"difficulty"`
	Achievements     []models.Achievement `yaml:"achievements,omitempty" json:"achievements,omitempty"`
	Sections         []Section            `yaml:"sections,omitempty" json:"sections,omitempty"`
	QuizCount        int                  `yaml:"quiz_count,omitempty" json:"quizCount,omitempty"`
	RequiredSections []string             `yaml:"required_sections,omitempty" json:"requiredSections,omitempty"`
	MinimumScore     int                  `yaml:"minimum_score,omitempty" json:"minimumScore,omitempty"`
}

// PathDefinition is an ordered group of games
type PathDefinition struct {
	ID               string   `yaml:"id" json:"id"`
	Title            string   `yaml:"title" json:"title"`
	Games            []string `yaml:"games" json:"games"`
	PrerequisitePath string   `yaml:"prerequisite,omitempty" json:"prerequisite,omitempty"`
	Color            string   `yaml:"color,omitempty" json:"color,omitempty"`
}

// Catalog is an immutable, validated set of games and paths in declaration order
type Catalog struct {
	games     []GameDefinition
	paths     []PathDefinition
	gameIndex map[string]int
	pathIndex map[string]int
}

type file struct {
	Games []GameDefinition `yaml:"games"`
	Paths []PathDefinition `yaml:"paths"`
}

// New validates the definitions and builds a catalog
func New(games []GameDefinition, paths []PathDefinition) (*Catalog, error) {
	c := &Catalog{
		games:     games,
		paths:     paths,
		gameIndex: make(map[string]int, len(games)),
		pathIndex: make(map[string]int, len(paths)),
	}
	for i, g := range games {
		if g.ID == "" {
			return nil, fmt.Errorf("game #%d has no id", i+1)
		}
		if _, dup := c.gameIndex[g.ID]; dup {
			return nil, fmt.Errorf("duplicate game id %q", g.ID)
		}
		c.gameIndex[g.ID] = i
	}
	for i, p := range paths {
		if p.ID == "" {
			return nil, fmt.Errorf("path #%d has no id", i+1)
		}
		if _, dup := c.pathIndex[p.ID]; dup {
			return nil, fmt.Errorf("duplicate path id %q", p.ID)
		}
		c.pathIndex[p.ID] = i
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads a YAML catalog file
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data)
}

// Parse builds a catalog from YAML
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return New(f.Games, f.Paths)
}

// Validate checks that every prerequisite names a known game or path and that
// neither the game graph nor the path chain loops back on itself. Path game
// lists may name games that are not in the catalog yet.
func (c *Catalog) Validate() error {
	for _, g := range c.games {
		for _, pre := range g.Prerequisites {
			if _, ok := c.gameIndex[pre]; !ok {
				return fmt.Errorf("game %q requires %q: %w", g.ID, pre, ErrUnknownGame)
			}
		}
	}
	for _, p := range c.paths {
		if p.PrerequisitePath == "" {
			continue
		}
		if _, ok := c.pathIndex[p.PrerequisitePath]; !ok {
			return fmt.Errorf("path %q requires %q: %w", p.ID, p.PrerequisitePath, ErrUnknownPath)
		}
	}

	if err := c.checkGameCycles(); err != nil {
		return err
	}
	return c.checkPathCycles()
}

func (c *Catalog) checkGameCycles() error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(c.games))

	var visit func(id string, trail []string) error
	visit = func(id string, trail []string) error {
		switch state[id] {
		case visiting:
			return fmt.Errorf("%w: %s", ErrCycle, strings.Join(append(trail, id), " -> "))
		case done:
			return nil
		}
		state[id] = visiting
		for _, pre := range c.games[c.gameIndex[id]].Prerequisites {
			if err := visit(pre, append(trail, id)); err != nil {
				return err
			}
		}
		state[id] = done
		return nil
	}

	for _, g := range c.games {
		if err := visit(g.ID, nil); err != nil {
			return err
		}
	}
	return nil
}

func (c *Catalog) checkPathCycles() error {
	for _, p := range c.paths {
		seen := map[string]bool{p.ID: true}
		trail := []string{p.ID}
		for next := p.PrerequisitePath; next != ""; next = c.paths[c.pathIndex[next]].PrerequisitePath {
			trail = append(trail, next)
			if seen[next] {
				return fmt.Errorf("%w: %s", ErrCycle, strings.Join(trail, " -> "))
			}
			seen[next] = true
		}
	}
	return nil
}

// Game looks up a game definition by id
func (c *Catalog) Game(id string) (GameDefinition, bool) {
	i, ok := c.gameIndex[id]
	if !ok {
		return GameDefinition{}, false
	}
	return c.games[i], true
}

// HasGame reports whether id is a known game
func (c *Catalog) HasGame(id string) bool {
	_, ok := c.gameIndex[id]
	return ok
}

// Games returns the game definitions in declaration order
func (c *Catalog) Games() []GameDefinition {
	out := make([]GameDefinition, len(c.games))
	copy(out, c.games)
	return out
}

// GameIDs returns the known game ids in declaration order
func (c *Catalog) GameIDs() []string {
	ids := make([]string, len(c.games))
	for i, g := range c.games {
		ids[i] = g.ID
	}
	return ids
}

// Path looks up a path definition by id
func (c *Catalog) Path(id string) (PathDefinition, bool) {
	i, ok := c.pathIndex[id]
	if !ok {
		return PathDefinition{}, false
	}
	return c.paths[i], true
}

// Paths returns the path definitions in declaration order
func (c *Catalog) Paths() []PathDefinition {
	out := make([]PathDefinition, len(c.paths))
	copy(out, c.paths)
	return out
}

// MeetsRequirements reports whether a finished session satisfies the game's
// completion requirements.
func (g GameDefinition) MeetsRequirements(score int, visited []string) bool {
	if score < g.MinimumScore {
		return false
	}
	seen := make(map[string]bool, len(visited))
	for _, s := range visited {
		seen[s] = true
	}
	for _, req := range g.RequiredSections {
		if !seen[req] {
			return false
		}
	}
	return true
}
