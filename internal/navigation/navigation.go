// Package navigation builds and parses the query parameters that carry a
// student, completed games and achievement keys between the CV page, the hub
// and the game pages.
package navigation

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"cvquest/internal/models"
)

// ErrInvalidURL is returned for URLs that cannot carry parameters
var ErrInvalidURL = errors.New("invalid url")

// Query parameter names
const (
	ParamSource         = "source"
	ParamCompleted      = "completed"
	ParamKey            = "key"
	ParamStudent        = "student"
	ParamPlatformReturn = "platform_return"
	ParamCVReturn       = "cv_return"
	ParamAttempts       = "attempts"
	ParamDebug          = "debug"
	ParamReturnURL      = "return_url"
)

// Return is what a game hands back to the hub
type Return struct {
	Source    string
	Completed bool
	Key       string
}

// Launch is what the hub hands to a game
type Launch struct {
	Student           string
	PlatformReturnURL string
	CVReturnURL       string
	Attempts          []models.Attempt
}

// LaunchParams is a game page's view of its own URL
type LaunchParams struct {
	Student        string
	PlatformReturn string
	CVReturn       string
	Debug          bool
	Attempts       []models.Attempt
}

// HubParams is the hub's view of its own URL
type HubParams struct {
	Student   string
	Completed []string
	ReturnURL string
}

// BuildReturnURL appends source, completed and key to base
func BuildReturnURL(base string, r Return) (string, error) {
	u, err := parseAbsolute(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(ParamSource, r.Source)
	q.Set(ParamCompleted, fmt.Sprint(r.Completed))
	q.Set(ParamKey, r.Key)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// BuildGameLaunchURL appends the launch parameters to gamePath. cv_return and
// attempts are only added when set.
func BuildGameLaunchURL(gamePath string, l Launch) (string, error) {
	u, err := url.Parse(gamePath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	q := u.Query()
	q.Add(ParamStudent, l.Student)
	q.Add(ParamPlatformReturn, l.PlatformReturnURL)
	if l.CVReturnURL != "" {
		q.Add(ParamCVReturn, l.CVReturnURL)
	}
	if len(l.Attempts) > 0 {
		raw, err := json.Marshal(l.Attempts)
		if err != nil {
			return "", fmt.Errorf("failed to encode attempts: %w", err)
		}
		q.Add(ParamAttempts, string(raw))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ResolveGamePath resolves a catalog game path against the hub URL
func ResolveGamePath(platformURL, gamePath string) (string, error) {
	base, err := parseAbsolute(platformURL)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(gamePath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// ParseReturn extracts a game return from the hub URL. Only a URL carrying a
// source, completed=true and a key counts as a return; anything less is an
// ordinary page load.
func ParseReturn(rawURL string) (Return, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Return{}, false
	}
	q := u.Query()
	r := Return{
		Source:    q.Get(ParamSource),
		Completed: q.Get(ParamCompleted) == "true",
		Key:       q.Get(ParamKey),
	}
	if r.Source == "" || !r.Completed || r.Key == "" {
		return Return{}, false
	}
	return r, true
}

// BuildCVReturnURL appends the achievement key to the CV page URL
func BuildCVReturnURL(cvURL, key string) (string, error) {
	u, err := parseAbsolute(cvURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Add(ParamKey, key)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ParseLaunch reads the parameters a game page was opened with. An attempts
// value that is not a JSON array is ignored.
func ParseLaunch(rawURL string) (LaunchParams, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return LaunchParams{}, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	q := u.Query()
	p := LaunchParams{
		Student:        q.Get(ParamStudent),
		PlatformReturn: q.Get(ParamPlatformReturn),
		CVReturn:       q.Get(ParamCVReturn),
		Debug:          q.Get(ParamDebug) == "true",
	}
	if raw := q.Get(ParamAttempts); raw != "" {
		var attempts []models.Attempt
		if json.Unmarshal([]byte(raw), &attempts) == nil {
			p.Attempts = attempts
		}
	}
	return p, nil
}

// ParseHub reads the parameters the hub was opened with. A completed value
// that is not a JSON array of strings is ignored.
func ParseHub(rawURL string) (HubParams, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return HubParams{}, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	q := u.Query()
	p := HubParams{
		Student:   q.Get(ParamStudent),
		ReturnURL: q.Get(ParamReturnURL),
	}
	if raw := q.Get(ParamCompleted); raw != "" {
		var ids []string
		if json.Unmarshal([]byte(raw), &ids) == nil {
			p.Completed = ids
		}
	}
	return p, nil
}

// StripReturn removes the return parameters from a hub URL. A completed list
// goes too: the hub has stored it by the time a game is launched, and it would
// shadow the completed flag of the game's return.
func StripReturn(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	q := u.Query()
	q.Del(ParamSource)
	q.Del(ParamKey)
	q.Del(ParamCompleted)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func parseAbsolute(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("%w: %q is not absolute", ErrInvalidURL, raw)
	}
	return u, nil
}
