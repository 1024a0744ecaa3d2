package keys

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cvquest/internal/models"
)

const (
	// AnonymousStudent replaces an empty student id
	AnonymousStudent = "anonymous"

	// DefaultCompletionTime is used when the session start is unknown or the
	// measured time is implausibly short.
	DefaultCompletionTime = 600 * time.Second

	// MinCompletionTime is the shortest elapsed time taken at face value
	MinCompletionTime = 60 * time.Second
)

// Codec mints and verifies achievement keys with a shared secret
type Codec struct {
	secret    string
	now       func() time.Time
	collector *Collector
}

// Option configures a Codec
type Option func(*Codec)

// WithClock overrides the time source used for key timestamps
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// WithCollector sets the fingerprint collector used when minting
func WithCollector(collector *Collector) Option {
	return func(c *Codec) {
		c.collector = collector
	}
}

// NewCodec creates a codec for the given shared secret
func NewCodec(secret string, opts ...Option) *Codec {
	c := &Codec{
		secret:    secret,
		now:       time.Now,
		collector: &Collector{Probe: NewCanvasProbe()},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ForClient returns a copy of the codec that fingerprints the given client
func (c *Codec) ForClient(collector *Collector) *Codec {
	clone := *c
	clone.collector = collector
	return &clone
}

// CompletionSeconds applies the completion-time floor to an elapsed duration.
// A non-positive duration means no session start was recorded.
func CompletionSeconds(elapsed time.Duration) int64 {
	if elapsed <= 0 {
		elapsed = DefaultCompletionTime
	}
	if elapsed < MinCompletionTime {
		elapsed = DefaultCompletionTime
	}
	return int64(elapsed / time.Second)
}

// Mint builds, signs and encodes an achievement key
func (c *Codec) Mint(gameID string, achievements []models.Achievement, studentID string, elapsed time.Duration) (string, error) {
	if studentID == "" {
		studentID = AnonymousStudent
	}
	if achievements == nil {
		achievements = []models.Achievement{}
	}

	var fp Fingerprints
	if c.collector != nil {
		fp = c.collector.Collect()
	}

	key := &models.AchievementKey{
		GameID:            gameID,
		StudentID:         studentID,
		Timestamp:         c.now().Unix(),
		RenderFingerprint: fp.Render,
		DeviceFingerprint: fp.Device,
		CompletionTime:    CompletionSeconds(elapsed),
		Achievements:      achievements,
	}

	signature, err := c.Sign(key)
	if err != nil {
		return "", err
	}
	key.Signature = signature

	return Encode(key)
}

// Sign computes the signature of key. Any signature already present on key is
// excluded from the signed material.
func (c *Codec) Sign(key *models.AchievementKey) (string, error) {
	payload, err := canonicalJSON(key, false)
	if err != nil {
		return "", err
	}
	return Hash(c.secret + payload + c.secret), nil
}

// Verify decodes an encoded key and checks its fields and signature. The
// decoded text must be exactly the canonical form of the key it decodes to:
// encoding/json matches field names case-insensitively and drops unknown
// fields, so edits of that kind never reach the signature otherwise.
func (c *Codec) Verify(encoded string) (*models.AchievementKey, error) {
	raw, key, err := decode(encoded)
	if err != nil {
		return nil, err
	}

	if err := checkRequired(key); err != nil {
		return nil, err
	}

	canonical, err := canonicalJSON(key, true)
	if err != nil {
		return nil, malformed(err)
	}
	if canonical != string(raw) {
		return nil, &VerifyError{Kind: ErrSignatureMismatch}
	}

	expected, err := c.Sign(key)
	if err != nil {
		return nil, malformed(err)
	}
	if expected != key.Signature {
		return nil, &VerifyError{Kind: ErrSignatureMismatch}
	}

	return key, nil
}

// Encode serializes a key to JSON and base64-encodes it
func Encode(key *models.AchievementKey) (string, error) {
	payload, err := canonicalJSON(key, true)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString([]byte(payload)), nil
}

// Decode reverses Encode without checking the signature
func Decode(encoded string) (*models.AchievementKey, error) {
	_, key, err := decode(encoded)
	return key, err
}

func decode(encoded string) ([]byte, *models.AchievementKey, error) {
	raw, err := decodeBase64(encoded)
	if err != nil {
		return nil, nil, malformed(err)
	}

	var key models.AchievementKey
	if err := json.Unmarshal(raw, &key); err != nil {
		return nil, nil, malformed(err)
	}
	return raw, &key, nil
}

// Inspect decodes a key for display; it never fails on a bad signature
func Inspect(encoded string) (*models.AchievementKey, error) {
	return Decode(encoded)
}

func checkRequired(key *models.AchievementKey) error {
	switch {
	case key.GameID == "":
		return missingField("gameId")
	case key.StudentID == "":
		return missingField("studentId")
	case key.Timestamp == 0:
		return missingField("timestamp")
	case key.Achievements == nil:
		return missingField("achievements")
	case key.Signature == "":
		return missingField("signature")
	}
	return nil
}

// canonicalJSON renders the key in struct field order without HTML escaping,
// matching the browser's JSON.stringify for the same object. JSON.stringify
// leaves U+2028 and U+2029 raw where encoding/json escapes them.
func canonicalJSON(key *models.AchievementKey, withSignature bool) (string, error) {
	var v interface{} = key
	if !withSignature {
		v = unsigned(*key)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("failed to serialize key: %w", err)
	}
	return unescapeLineSeparators(strings.TrimSuffix(buf.String(), "\n")), nil
}

// unescapeLineSeparators turns \u2028 and \u2029 escapes back into the raw
// characters. An escape preceded by an escaped backslash is literal text and
// is left alone.
func unescapeLineSeparators(s string) string {
	if !strings.Contains(s, `\u202`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			b.WriteByte(s[i])
			continue
		}
		if i+5 < len(s) && s[i+1:i+5] == "u202" && (s[i+5] == '8' || s[i+5] == '9') {
			if s[i+5] == '8' {
				b.WriteRune('\u2028')
			} else {
				b.WriteRune('\u2029')
			}
			i += 5
			continue
		}
		// copy the escape pair as is so an escaped backslash is not reread
		b.WriteByte(s[i])
		if i+1 < len(s) {
			b.WriteByte(s[i+1])
			i++
		}
	}
	return b.String()
}

// unsignedKey mirrors AchievementKey without the signature field
type unsignedKey struct {
	GameID            string               `json:"gameId"`
	StudentID         string               `json:"studentId"`
	Timestamp         int64                `json:"timestamp"`
	RenderFingerprint string               `json:"ipHash"`
	DeviceFingerprint string               `json:"deviceId"`
	CompletionTime    int64                `json:"completionTime"`
	Achievements      []models.Achievement `json:"achievements"`
}

func unsigned(k models.AchievementKey) unsignedKey {
	return unsignedKey{
		GameID:            k.GameID,
		StudentID:         k.StudentID,
		Timestamp:         k.Timestamp,
		RenderFingerprint: k.RenderFingerprint,
		DeviceFingerprint: k.DeviceFingerprint,
		CompletionTime:    k.CompletionTime,
		Achievements:      k.Achievements,
	}
}

// decodeBase64 accepts standard or URL alphabets, with or without padding.
// A '+' turned into a space by form decoding is restored.
func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty key")
	}
	s = strings.ReplaceAll(s, " ", "+")

	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	}
	var firstErr error
	for _, enc := range encodings {
		raw, err := enc.DecodeString(s)
		if err == nil {
			return raw, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}
