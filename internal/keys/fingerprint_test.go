package keys

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type failingProbe struct{}

func (failingProbe) Render() (string, error) { return "", errors.New("no canvas") }

func TestDeviceFingerprint(t *testing.T) {
	env := Environment{
		ScreenHeight:   1080,
		ScreenWidth:    1920,
		ColorDepth:     24,
		TimezoneOffset: -60,
		Languages:      []string{"en-GB", "en"},
		Platform:       "Linux x86_64",
		UserAgent:      "Mozilla/5.0",
	}

	want := Hash("1080x1920x24|-60|en-GB,en|Linux x86_64|Mozilla/5.0")
	if got := DeviceFingerprint(env); got != want {
		t.Errorf("DeviceFingerprint() = %v, want %v", got, want)
	}

	env.UserAgent = "curl/8.0"
	if DeviceFingerprint(env) == want {
		t.Error("DeviceFingerprint() should change with the user agent")
	}
}

func TestRenderFingerprint(t *testing.T) {
	tests := []struct {
		name  string
		probe RenderProbe
		want  string
	}{
		{
			name:  "nil probe",
			probe: nil,
			want:  Hash(""),
		},
		{
			name:  "failing probe",
			probe: failingProbe{},
			want:  Hash(""),
		},
		{
			name:  "short data url",
			probe: StaticProbe("data:,x"),
			want:  Hash("data:,x"),
		},
		{
			name:  "long data url truncated",
			probe: StaticProbe(strings.Repeat("z", 80)),
			want:  Hash(strings.Repeat("z", renderPrefixLen)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RenderFingerprint(tt.probe); got != tt.want {
				t.Errorf("RenderFingerprint() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanvasProbeIsReproducible(t *testing.T) {
	probe := NewCanvasProbe()

	first, err := probe.Render()
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	second, err := probe.Render()
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	if !strings.HasPrefix(first, "data:image/png;base64,") {
		t.Errorf("Render() = %q, want a PNG data URL", first[:30])
	}
	if first != second {
		t.Error("Render() should produce the same image on every call")
	}
}

func TestEnvironmentFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/hub?screen=900x1440x30&tz=300&platform=MacIntel", nil)
	r.Header.Set("User-Agent", "TestAgent/1.0")
	r.Header.Set("Accept-Language", "fr-CA, fr;q=0.9, *;q=0.1")

	want := Environment{
		ScreenHeight:   900,
		ScreenWidth:    1440,
		ColorDepth:     30,
		TimezoneOffset: 300,
		Languages:      []string{"fr-CA", "fr"},
		Platform:       "MacIntel",
		UserAgent:      "TestAgent/1.0",
	}

	if diff := cmp.Diff(want, EnvironmentFromRequest(r)); diff != "" {
		t.Errorf("EnvironmentFromRequest() mismatch (-want +got):\n%s", diff)
	}
}

func TestCollector(t *testing.T) {
	c := &Collector{Env: Environment{UserAgent: "ua"}, Probe: StaticProbe("probe")}

	got := c.Collect()
	if got.Device != DeviceFingerprint(c.Env) {
		t.Errorf("Collect().Device = %v, want %v", got.Device, DeviceFingerprint(c.Env))
	}
	if got.Render != Hash("probe") {
		t.Errorf("Collect().Render = %v, want %v", got.Render, Hash("probe"))
	}
}
