package navigation

import (
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"cvquest/internal/models"
)

// a key whose base64 text contains '+', '/' and '='
const awkwardKey = "eyJhIjoi+/8ifQ=="

func TestBuildReturnURLRoundTrip(t *testing.T) {
	built, err := BuildReturnURL("https://hub.example/platform/?student=alice", Return{
		Source:    "internet-basics",
		Completed: true,
		Key:       awkwardKey,
	})
	if err != nil {
		t.Fatalf("BuildReturnURL() error = %v", err)
	}

	got, ok := ParseReturn(built)
	if !ok {
		t.Fatalf("ParseReturn(%q) found no return", built)
	}
	want := Return{Source: "internet-basics", Completed: true, Key: awkwardKey}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseReturn() mismatch (-want +got):\n%s", diff)
	}

	u, _ := url.Parse(built)
	if u.Query().Get("student") != "alice" {
		t.Error("existing query parameters should be kept")
	}
}

func TestBuildReturnURLRejectsRelativeBase(t *testing.T) {
	_, err := BuildReturnURL("/platform/", Return{Source: "x", Completed: true, Key: "k"})
	if !errors.Is(err, ErrInvalidURL) {
		t.Errorf("BuildReturnURL() error = %v, want %v", err, ErrInvalidURL)
	}
}

func TestParseReturn(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		wantOK bool
	}{
		{name: "complete return", url: "https://hub.example/?source=a&completed=true&key=abc", wantOK: true},
		{name: "no source", url: "https://hub.example/?completed=true&key=abc"},
		{name: "completed false", url: "https://hub.example/?source=a&completed=false&key=abc"},
		{name: "completed list instead of flag", url: `https://hub.example/?source=a&completed=["a"]&key=abc`},
		{name: "empty key", url: "https://hub.example/?source=a&completed=true&key="},
		{name: "plain page load", url: "https://hub.example/?student=alice"},
		{name: "unparseable", url: "://nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := ParseReturn(tt.url)
			if ok != tt.wantOK {
				t.Errorf("ParseReturn() ok = %v, want %v", ok, tt.wantOK)
			}
		})
	}
}

func TestBuildGameLaunchURL(t *testing.T) {
	started := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		launch       Launch
		wantCV       bool
		wantAttempts bool
	}{
		{
			name:   "minimal",
			launch: Launch{Student: "alice", PlatformReturnURL: "https://hub.example/"},
		},
		{
			name: "everything",
			launch: Launch{
				Student:           "alice",
				PlatformReturnURL: "https://hub.example/",
				CVReturnURL:       "https://cv.example/alice",
				Attempts:          []models.Attempt{{StartedAt: started}},
			},
			wantCV:       true,
			wantAttempts: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			built, err := BuildGameLaunchURL("https://hub.example/games/internet-basics/", tt.launch)
			if err != nil {
				t.Fatalf("BuildGameLaunchURL() error = %v", err)
			}
			q, _ := url.Parse(built)
			values := q.Query()

			if _, ok := values[ParamCVReturn]; ok != tt.wantCV {
				t.Errorf("cv_return present = %v, want %v", ok, tt.wantCV)
			}
			if _, ok := values[ParamAttempts]; ok != tt.wantAttempts {
				t.Errorf("attempts present = %v, want %v", ok, tt.wantAttempts)
			}

			params, err := ParseLaunch(built + "&debug=true")
			if err != nil {
				t.Fatalf("ParseLaunch() error = %v", err)
			}
			want := LaunchParams{
				Student:        tt.launch.Student,
				PlatformReturn: tt.launch.PlatformReturnURL,
				CVReturn:       tt.launch.CVReturnURL,
				Debug:          true,
				Attempts:       tt.launch.Attempts,
			}
			if diff := cmp.Diff(want, params); diff != "" {
				t.Errorf("ParseLaunch() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseLaunchIgnoresBadAttempts(t *testing.T) {
	params, err := ParseLaunch("https://hub.example/games/x/?student=bob&attempts=not-json")
	if err != nil {
		t.Fatalf("ParseLaunch() error = %v", err)
	}
	if params.Attempts != nil || params.Debug {
		t.Errorf("ParseLaunch() = %+v, want no attempts and debug off", params)
	}
}

func TestResolveGamePath(t *testing.T) {
	got, err := ResolveGamePath("https://hub.example/platform/index.html?student=a", "games/internet-basics/")
	if err != nil {
		t.Fatalf("ResolveGamePath() error = %v", err)
	}
	if want := "https://hub.example/platform/games/internet-basics/"; got != want {
		t.Errorf("ResolveGamePath() = %v, want %v", got, want)
	}
}

func TestBuildCVReturnURL(t *testing.T) {
	got, err := BuildCVReturnURL("https://cv.example/alice?tab=skills", awkwardKey)
	if err != nil {
		t.Fatalf("BuildCVReturnURL() error = %v", err)
	}
	u, _ := url.Parse(got)
	if u.Query().Get("key") != awkwardKey || u.Query().Get("tab") != "skills" {
		t.Errorf("BuildCVReturnURL() = %v", got)
	}

	if _, err := BuildCVReturnURL("", awkwardKey); !errors.Is(err, ErrInvalidURL) {
		t.Errorf("BuildCVReturnURL(\"\") error = %v, want %v", err, ErrInvalidURL)
	}
}

func TestParseHub(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want HubParams
	}{
		{
			name: "all parameters",
			url:  "https://hub.example/?student=alice&completed=" + url.QueryEscape(`["internet-basics","html-fundamentals"]`) + "&return_url=" + url.QueryEscape("https://cv.example/alice"),
			want: HubParams{Student: "alice", Completed: []string{"internet-basics", "html-fundamentals"}, ReturnURL: "https://cv.example/alice"},
		},
		{
			name: "completed is a return flag",
			url:  "https://hub.example/?student=alice&completed=true",
			want: HubParams{Student: "alice"},
		},
		{
			name: "completed is an object",
			url:  "https://hub.example/?completed=" + url.QueryEscape(`{"a":1}`),
			want: HubParams{},
		},
		{
			name: "nothing",
			url:  "https://hub.example/",
			want: HubParams{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseHub(tt.url)
			if err != nil {
				t.Fatalf("ParseHub() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseHub() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStripReturn(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"game return", "https://hub.example/?student=alice&source=a&completed=true&key=abc", "https://hub.example/?student=alice"},
		{"completed list", "https://hub.example/?student=alice&completed=%5B%22internet-basics%22%5D", "https://hub.example/?student=alice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := StripReturn(tt.in)
			if err != nil {
				t.Fatalf("StripReturn() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("StripReturn() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildReturnURLReplacesCompletedList(t *testing.T) {
	base := "https://hub.example/?student=alice&completed=%5B%22internet-basics%22%5D&key=old"
	built, err := BuildReturnURL(base, Return{Source: "html-fundamentals", Completed: true, Key: "new"})
	if err != nil {
		t.Fatalf("BuildReturnURL() error = %v", err)
	}

	u, _ := url.Parse(built)
	if got := u.Query()[ParamCompleted]; len(got) != 1 || got[0] != "true" {
		t.Errorf("completed = %v, want [true]", got)
	}
	got, ok := ParseReturn(built)
	if !ok {
		t.Fatalf("ParseReturn(%q) found no return", built)
	}
	if got.Key != "new" || got.Source != "html-fundamentals" {
		t.Errorf("ParseReturn() = %+v", got)
	}
}
