package keys

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/color"
	"image/png"
	"net/http"
	"strconv"
	"strings"

	"github.com/fogleman/gg"
)

// Environment describes the client signals folded into the device fingerprint
type Environment struct {
	ScreenHeight   int
	ScreenWidth    int
	ColorDepth     int
	TimezoneOffset int // minutes, sign as reported by the browser
	Languages      []string
	Platform       string
	UserAgent      string
}

// DeviceFingerprint hashes the environment signals. It is descriptive
// telemetry only and collides freely across identical setups.
func DeviceFingerprint(env Environment) string {
	screen := fmt.Sprintf("%dx%dx%d", env.ScreenHeight, env.ScreenWidth, env.ColorDepth)
	device := strings.Join([]string{
		screen,
		strconv.Itoa(env.TimezoneOffset),
		strings.Join(env.Languages, ","),
		env.Platform,
		env.UserAgent,
	}, "|")
	return Hash(device)
}

// RenderProbe renders the fixed probe image and returns it as a data URL
type RenderProbe interface {
	Render() (string, error)
}

// renderPrefixLen is how much of the data URL feeds the render fingerprint
const renderPrefixLen = 50

// RenderFingerprint hashes a prefix of the probe's data URL. A failing probe
// hashes the empty string.
func RenderFingerprint(probe RenderProbe) string {
	if probe == nil {
		return Hash("")
	}
	dataURL, err := probe.Render()
	if err != nil {
		return Hash("")
	}
	if len(dataURL) > renderPrefixLen {
		dataURL = dataURL[:renderPrefixLen]
	}
	return Hash(dataURL)
}

// CanvasProbe draws the same text-rendering probe on every call
type CanvasProbe struct {
	Width  int
	Height int
}

// NewCanvasProbe returns a probe with the default 300x150 canvas size
func NewCanvasProbe() *CanvasProbe {
	return &CanvasProbe{Width: 300, Height: 150}
}

func (p *CanvasProbe) Render() (string, error) {
	dc := gg.NewContext(p.Width, p.Height)

	dc.SetColor(color.RGBA{R: 0xff, G: 0x66, B: 0x00, A: 0xff})
	dc.DrawRectangle(125, 1, 62, 20)
	dc.Fill()

	dc.SetColor(color.RGBA{R: 0x00, G: 0x66, B: 0x99, A: 0xff})
	dc.DrawString("IP:Identifier", 2, 15)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return "", fmt.Errorf("failed to encode probe image: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// StaticProbe returns a fixed data URL. Useful where no renderer exists.
type StaticProbe string

func (p StaticProbe) Render() (string, error) {
	return string(p), nil
}

// Fingerprints is the pair embedded in a minted key
type Fingerprints struct {
	Device string
	Render string
}

// Collector gathers both fingerprints for one client
type Collector struct {
	Env   Environment
	Probe RenderProbe
}

// Collect computes the device and render fingerprints
func (c *Collector) Collect() Fingerprints {
	return Fingerprints{
		Device: DeviceFingerprint(c.Env),
		Render: RenderFingerprint(c.Probe),
	}
}

// EnvironmentFromRequest derives an Environment from request headers plus the
// optional screen ("HxWxD"), tz and platform query parameters.
func EnvironmentFromRequest(r *http.Request) Environment {
	env := Environment{
		UserAgent: r.UserAgent(),
		Languages: parseAcceptLanguage(r.Header.Get("Accept-Language")),
	}

	q := r.URL.Query()
	if screen := q.Get("screen"); screen != "" {
		parts := strings.Split(screen, "x")
		if len(parts) == 3 {
			env.ScreenHeight, _ = strconv.Atoi(parts[0])
			env.ScreenWidth, _ = strconv.Atoi(parts[1])
			env.ColorDepth, _ = strconv.Atoi(parts[2])
		}
	}
	if tz := q.Get("tz"); tz != "" {
		env.TimezoneOffset, _ = strconv.Atoi(tz)
	}
	env.Platform = q.Get("platform")
	if env.Platform == "" {
		env.Platform = r.Header.Get("Sec-CH-UA-Platform")
	}
	return env
}

func parseAcceptLanguage(header string) []string {
	if header == "" {
		return nil
	}
	var langs []string
	for _, part := range strings.Split(header, ",") {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if tag != "" && tag != "*" {
			langs = append(langs, tag)
		}
	}
	return langs
}
