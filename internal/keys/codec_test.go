package keys

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"cvquest/internal/models"
)

const testSecret = "CV_PLATFORM_SECRET_KEY_2025"

// goldenKey was produced by the browser implementation for alice completing
// internet-basics; the Go codec must accept it byte for byte.
const goldenKey = "eyJnYW1lSWQiOiJpbnRlcm5ldC1iYXNpY3MiLCJzdHVkZW50SWQiOiJhbGljZSIsInRpbWVzdGFtcCI6MTczNTY4OTYwMCwiaXBIYXNoIjoibjFhMmIzYyIsImRldmljZUlkIjoiN2YwMGZmIiwiY29tcGxldGlvblRpbWUiOjc1NCwiYWNoaWV2ZW1lbnRzIjpbeyJza2lsbElkIjoiaW50ZXJuZXQiLCJwb2ludHMiOjIwLCJsZXZlbCI6MSwiZGVzY3JpcHRpb24iOiJNYXN0ZXJlZCBpbnRlcm5ldCBiYXNpY3MgY29uY2VwdHMifSx7InNraWxsSWQiOiJuZXR3b3JraW5nIiwicG9pbnRzIjoxNSwibGV2ZWwiOjEsImRlc2NyaXB0aW9uIjoiTGVhcm5lZCBIVFRQIHByb3RvY29sIGJhc2ljcyJ9XSwic2lnbmF0dXJlIjoiNGRjZjkxM2EifQ=="

var testAchievements = []models.Achievement{
	{SkillID: "internet", Points: 20, Level: 1, Description: "Mastered internet basics concepts"},
	{SkillID: "networking", Points: 15, Level: 1, Description: "Learned HTTP protocol basics"},
	{SkillID: "problem-solving", Points: 10, Level: 1, Description: "Completed network troubleshooting <challenge> & more"},
}

func newTestCodec() *Codec {
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return NewCodec(testSecret,
		WithClock(func() time.Time { return fixed }),
		WithCollector(&Collector{Env: Environment{UserAgent: "test"}, Probe: StaticProbe("probe")}),
	)
}

func decodedJSON(t *testing.T, encoded string) string {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("failed to decode key: %v", err)
	}
	return string(raw)
}

func reencode(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func TestMintVerifyRoundTrip(t *testing.T) {
	codec := newTestCodec()

	tests := []struct {
		name         string
		gameID       string
		achievements []models.Achievement
		studentID    string
		wantStudent  string
	}{
		{
			name:         "named student",
			gameID:       "internet-basics",
			achievements: testAchievements,
			studentID:    "alice",
			wantStudent:  "alice",
		},
		{
			name:         "anonymous student",
			gameID:       "html-fundamentals",
			achievements: testAchievements[:1],
			studentID:    "",
			wantStudent:  AnonymousStudent,
		},
		{
			name:         "no achievements",
			gameID:       "css-styling",
			achievements: nil,
			studentID:    "bob",
			wantStudent:  "bob",
		},
		{
			name:         "non-ascii student",
			gameID:       "internet-basics",
			achievements: testAchievements,
			studentID:    "zoë",
			wantStudent:  "zoë",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := codec.Mint(tt.gameID, tt.achievements, tt.studentID, 5*time.Minute)
			if err != nil {
				t.Fatalf("Mint() error = %v", err)
			}

			key, err := codec.Verify(encoded)
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}

			if key.GameID != tt.gameID {
				t.Errorf("GameID = %v, want %v", key.GameID, tt.gameID)
			}
			if key.StudentID != tt.wantStudent {
				t.Errorf("StudentID = %v, want %v", key.StudentID, tt.wantStudent)
			}
			wantAchievements := tt.achievements
			if wantAchievements == nil {
				wantAchievements = []models.Achievement{}
			}
			if diff := cmp.Diff(wantAchievements, key.Achievements); diff != "" {
				t.Errorf("Achievements mismatch (-want +got):\n%s", diff)
			}
			if key.Timestamp != 1735689600 {
				t.Errorf("Timestamp = %v, want %v", key.Timestamp, 1735689600)
			}
		})
	}
}

func TestMintEmbedsFingerprints(t *testing.T) {
	codec := newTestCodec()

	encoded, err := codec.Mint("internet-basics", testAchievements, "alice", 2*time.Minute)
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}
	key, err := Inspect(encoded)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}

	if key.RenderFingerprint != Hash("probe") {
		t.Errorf("RenderFingerprint = %v, want %v", key.RenderFingerprint, Hash("probe"))
	}
	if key.DeviceFingerprint != DeviceFingerprint(Environment{UserAgent: "test"}) {
		t.Errorf("DeviceFingerprint = %v, want hash of the collector environment", key.DeviceFingerprint)
	}

	json := decodedJSON(t, encoded)
	if !strings.HasPrefix(json, `{"gameId":"internet-basics","studentId":"alice","timestamp":1735689600,"ipHash":`) {
		t.Errorf("unexpected field order: %s", json)
	}
	if !strings.Contains(json, "<challenge> & more") {
		t.Errorf("expected unescaped HTML characters in payload, got %s", json)
	}
}

func TestCompletionTimeFloor(t *testing.T) {
	codec := newTestCodec()

	tests := []struct {
		name    string
		elapsed time.Duration
		want    int64
	}{
		{name: "too fast", elapsed: 10 * time.Second, want: 600},
		{name: "just under a minute", elapsed: 59 * time.Second, want: 600},
		{name: "exactly a minute", elapsed: 60 * time.Second, want: 60},
		{name: "two minutes", elapsed: 120 * time.Second, want: 120},
		{name: "no start time", elapsed: 0, want: 600},
		{name: "fractional seconds truncated", elapsed: 90*time.Second + 900*time.Millisecond, want: 90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := codec.Mint("internet-basics", testAchievements, "alice", tt.elapsed)
			if err != nil {
				t.Fatalf("Mint() error = %v", err)
			}
			key, err := codec.Verify(encoded)
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if key.CompletionTime != tt.want {
				t.Errorf("CompletionTime = %v, want %v", key.CompletionTime, tt.want)
			}
		})
	}
}

func TestVerifyGoldenKey(t *testing.T) {
	codec := NewCodec(testSecret)

	key, err := codec.Verify(goldenKey)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if key.Signature != "4dcf913a" {
		t.Errorf("Signature = %v, want %v", key.Signature, "4dcf913a")
	}
	if key.CompletionTime != 754 {
		t.Errorf("CompletionTime = %v, want %v", key.CompletionTime, 754)
	}

	reencoded, err := Encode(key)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if reencoded != goldenKey {
		t.Errorf("Encode() should reproduce the browser encoding byte for byte")
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	codec := newTestCodec()

	encoded, err := codec.Mint("internet-basics", testAchievements, "alice", 3*time.Minute)
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}
	original := decodedJSON(t, encoded)

	tests := []struct {
		name string
		from string
		to   string
	}{
		{name: "student id", from: `"studentId":"alice"`, to: `"studentId":"alicf"`},
		{name: "game id", from: `"gameId":"internet-basics"`, to: `"gameId":"html-fundamentals"`},
		{name: "timestamp", from: `"timestamp":1735689600`, to: `"timestamp":1735689601`},
		{name: "completion time", from: `"completionTime":180`, to: `"completionTime":181`},
		{name: "points", from: `"points":20`, to: `"points":90`},
		{name: "level", from: `"level":1,"description":"Mastered`, to: `"level":5,"description":"Mastered`},
		{name: "description", from: "Learned HTTP", to: "Learned HTTPS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.Contains(original, tt.from) {
				t.Fatalf("payload does not contain %q: %s", tt.from, original)
			}
			tampered := reencode(strings.Replace(original, tt.from, tt.to, 1))

			_, err := codec.Verify(tampered)
			if !errors.Is(err, ErrSignatureMismatch) {
				t.Errorf("Verify() error = %v, want %v", err, ErrSignatureMismatch)
			}
		})
	}
}

func TestVerifyRejectsEverySingleCharacterFlip(t *testing.T) {
	codec := newTestCodec()

	encoded, err := codec.Mint("internet-basics", testAchievements, "alice", 3*time.Minute)
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}
	original := []byte(decodedJSON(t, encoded))

	for i, c := range original {
		for _, flip := range []func(byte) (byte, bool){flipChar, swapCase} {
			flipped, ok := flip(c)
			if !ok {
				continue
			}
			mutated := make([]byte, len(original))
			copy(mutated, original)
			mutated[i] = flipped

			if _, err := codec.Verify(reencode(string(mutated))); err == nil {
				t.Errorf("Verify() accepted payload with byte %d changed from %q to %q", i, c, flipped)
			}
		}
	}
}

func swapCase(c byte) (byte, bool) {
	switch {
	case c >= 'a' && c <= 'z':
		return c - 'a' + 'A', true
	case c >= 'A' && c <= 'Z':
		return c - 'A' + 'a', true
	default:
		return 0, false
	}
}

func TestVerifyRejectsRenamedFields(t *testing.T) {
	codec := newTestCodec()
	encoded, err := codec.Mint("internet-basics", testAchievements, "alice", 3*time.Minute)
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}
	original := decodedJSON(t, encoded)

	tests := []struct {
		name string
		from string
		to   string
	}{
		{"game id capitalised", `"gameId"`, `"GameId"`},
		{"achievement points capitalised", `"points"`, `"Points"`},
		{"render fingerprint lowercased", `"ipHash"`, `"iphash"`},
		{"unknown field added", `"gameId"`, `"extra":1,"gameId"`},
		{"whitespace added", `,"studentId"`, `, "studentId"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tampered := reencode(strings.Replace(original, tt.from, tt.to, 1))
			_, err := codec.Verify(tampered)
			if !errors.Is(err, ErrSignatureMismatch) {
				t.Errorf("Verify() error = %v, want %v", err, ErrSignatureMismatch)
			}
		})
	}
}

func TestLineSeparatorsStayRaw(t *testing.T) {
	codec := newTestCodec()

	tests := []struct {
		name        string
		description string
		wantJSON    string
	}{
		{"line separator", "one\u2028two", "one\u2028two"},
		{"paragraph separator", "one\u2029two", "one\u2029two"},
		{"escaped backslash before u2028 text", `a\u2028b`, `a\\u2028b`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			achievements := []models.Achievement{{SkillID: "html", Points: 5, Level: 1, Description: tt.description}}
			encoded, err := codec.Mint("html-fundamentals", achievements, "alice", 2*time.Minute)
			if err != nil {
				t.Fatalf("Mint() error = %v", err)
			}
			if got := decodedJSON(t, encoded); !strings.Contains(got, `"description":"`+tt.wantJSON+`"`) {
				t.Errorf("payload = %s, want description %q", got, tt.wantJSON)
			}
			key, err := codec.Verify(encoded)
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if got := key.Achievements[0].Description; got != tt.description {
				t.Errorf("Description = %q, want %q", got, tt.description)
			}
		})
	}
}

func flipChar(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '8', c >= 'a' && c <= 'y', c >= 'A' && c <= 'Y':
		return c + 1, true
	case c == '9':
		return '1', true
	case c == 'z':
		return 'a', true
	case c == 'Z':
		return 'A', true
	default:
		return 0, false
	}
}

func TestVerifyErrors(t *testing.T) {
	codec := newTestCodec()

	encoded, err := codec.Mint("internet-basics", testAchievements, "alice", 3*time.Minute)
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}
	original := decodedJSON(t, encoded)
	key, _ := Decode(encoded)

	tests := []struct {
		name      string
		input     string
		wantKind  error
		wantField string
	}{
		{
			name:     "not base64",
			input:    "!!!not-a-key!!!",
			wantKind: ErrMalformedEncoding,
		},
		{
			name:     "empty",
			input:    "",
			wantKind: ErrMalformedEncoding,
		},
		{
			name:     "base64 but not json",
			input:    reencode("hello world"),
			wantKind: ErrMalformedEncoding,
		},
		{
			name:     "wrong type",
			input:    reencode(`{"gameId":"x","timestamp":"soon"}`),
			wantKind: ErrMalformedEncoding,
		},
		{
			name:      "achievements stripped",
			input:     reencode(strings.Replace(original, `"achievements":`+achievementsJSON(t, original)+`,`, "", 1)),
			wantKind:  ErrMissingField,
			wantField: "achievements",
		},
		{
			name:      "achievements null",
			input:     reencode(strings.Replace(original, `"achievements":`+achievementsJSON(t, original), `"achievements":null`, 1)),
			wantKind:  ErrMissingField,
			wantField: "achievements",
		},
		{
			name:      "empty student",
			input:     reencode(strings.Replace(original, `"studentId":"alice"`, `"studentId":""`, 1)),
			wantKind:  ErrMissingField,
			wantField: "studentId",
		},
		{
			name:      "zero timestamp",
			input:     reencode(strings.Replace(original, `"timestamp":1735689600`, `"timestamp":0`, 1)),
			wantKind:  ErrMissingField,
			wantField: "timestamp",
		},
		{
			name:      "no signature",
			input:     reencode(strings.Replace(original, `,"signature":"`+key.Signature+`"`, "", 1)),
			wantKind:  ErrMissingField,
			wantField: "signature",
		},
		{
			name:     "signed with another secret",
			input:    mintWith(t, "another-secret"),
			wantKind: ErrSignatureMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Verify(tt.input)
			if !errors.Is(err, tt.wantKind) {
				t.Fatalf("Verify() error = %v, want %v", err, tt.wantKind)
			}
			var verr *VerifyError
			if !errors.As(err, &verr) {
				t.Fatalf("Verify() error should be a *VerifyError, got %T", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", verr.Field, tt.wantField)
			}
		})
	}
}

func TestVerifyAcceptsURLMangledKeys(t *testing.T) {
	codec := newTestCodec()
	encoded, err := codec.Mint("internet-basics", testAchievements, "alice", 3*time.Minute)
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}

	tests := []struct {
		name  string
		input string
	}{
		{name: "plus turned to space", input: strings.ReplaceAll(encoded, "+", " ")},
		{name: "padding stripped", input: strings.TrimRight(encoded, "=")},
		{name: "url alphabet", input: strings.NewReplacer("+", "-", "/", "_").Replace(encoded)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := codec.Verify(tt.input); err != nil {
				t.Errorf("Verify() error = %v", err)
			}
		})
	}
}

func TestSignIgnoresExistingSignature(t *testing.T) {
	codec := newTestCodec()
	key := &models.AchievementKey{
		GameID:       "internet-basics",
		StudentID:    "alice",
		Timestamp:    1,
		Achievements: []models.Achievement{},
	}

	unsignedSig, err := codec.Sign(key)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	key.Signature = "stale"
	resigned, err := codec.Sign(key)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	if unsignedSig != resigned {
		t.Errorf("Sign() = %v after setting a stale signature, want %v", resigned, unsignedSig)
	}
}

func achievementsJSON(t *testing.T, payload string) string {
	t.Helper()
	start := strings.Index(payload, `"achievements":`)
	end := strings.Index(payload, `,"signature"`)
	if start < 0 || end < 0 {
		t.Fatalf("unexpected payload layout: %s", payload)
	}
	return payload[start+len(`"achievements":`) : end]
}

func mintWith(t *testing.T, secret string) string {
	t.Helper()
	other := NewCodec(secret, WithCollector(&Collector{Probe: StaticProbe("probe")}))
	encoded, err := other.Mint("internet-basics", testAchievements, "alice", 3*time.Minute)
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}
	return encoded
}
