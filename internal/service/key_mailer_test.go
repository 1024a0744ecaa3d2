package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"cvquest/internal/logger"
)

type fakeSES struct {
	inputs []*sesv2.SendEmailInput
	err    error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

var testMailerConfig = MailerConfig{
	Region:          "us-east-1",
	FromEmail:       "quest@example.com",
	FromName:        "CV Quest",
	PlatformBaseURL: "https://hub.example",
}

func TestNewKeyMailerDisabled(t *testing.T) {
	m, err := NewKeyMailer(context.Background(), MailerConfig{}, logger.Nop())
	if err != nil {
		t.Fatalf("NewKeyMailer() error = %v", err)
	}
	if m.IsEnabled() {
		t.Error("IsEnabled() = true without a sender, want false")
	}
	err = m.SendAchievementKey(context.Background(), "alice@example.com", "alice", "Internet Basics", "abc")
	if !errors.Is(err, ErrMailerDisabled) {
		t.Errorf("SendAchievementKey() error = %v, want %v", err, ErrMailerDisabled)
	}
}

func TestSendAchievementKey(t *testing.T) {
	ses := &fakeSES{}
	m := newKeyMailerWithClient(ses, testMailerConfig, logger.Nop())

	err := m.SendAchievementKey(context.Background(), "alice@example.com", "alice", "Internet Basics", "eyJr<x>")
	if err != nil {
		t.Fatalf("SendAchievementKey() error = %v", err)
	}
	if len(ses.inputs) != 1 {
		t.Fatalf("SendEmail called %d times, want 1", len(ses.inputs))
	}

	in := ses.inputs[0]
	if got, want := aws.ToString(in.FromEmailAddress), "CV Quest <quest@example.com>"; got != want {
		t.Errorf("FromEmailAddress = %v, want %v", got, want)
	}
	if got := in.Destination.ToAddresses; len(got) != 1 || got[0] != "alice@example.com" {
		t.Errorf("ToAddresses = %v, want [alice@example.com]", got)
	}
	msg := in.Content.Simple
	if got, want := aws.ToString(msg.Subject.Data), "Your achievement key for Internet Basics"; got != want {
		t.Errorf("Subject = %v, want %v", got, want)
	}
	if !strings.Contains(aws.ToString(msg.Body.Text.Data), "eyJr<x>") {
		t.Error("text body should carry the key verbatim")
	}
	if !strings.Contains(aws.ToString(msg.Body.Html.Data), "eyJr&lt;x&gt;") {
		t.Error("html body should carry the escaped key")
	}
}

func TestSendAchievementKeyErrors(t *testing.T) {
	tests := []struct {
		name    string
		to      string
		key     string
		sesErr  error
		wantSES int
	}{
		{name: "bad address", to: "not-an-email", key: "abc"},
		{name: "empty key", to: "alice@example.com", key: ""},
		{name: "ses failure", to: "alice@example.com", key: "abc", sesErr: errors.New("throttled"), wantSES: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ses := &fakeSES{err: tt.sesErr}
			m := newKeyMailerWithClient(ses, testMailerConfig, logger.Nop())

			err := m.SendAchievementKey(context.Background(), tt.to, "alice", "Internet Basics", tt.key)
			if err == nil {
				t.Fatal("SendAchievementKey() error = nil, want an error")
			}
			if tt.sesErr != nil && !errors.Is(err, tt.sesErr) {
				t.Errorf("SendAchievementKey() error = %v, want %v", err, tt.sesErr)
			}
			if len(ses.inputs) != tt.wantSES {
				t.Errorf("SendEmail called %d times, want %d", len(ses.inputs), tt.wantSES)
			}
		})
	}
}
