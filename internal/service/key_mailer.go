package service

import (
	"context"
	"errors"
	"fmt"
	"html"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"cvquest/internal/logger"
	"cvquest/internal/validation"
)

// ErrMailerDisabled is returned when no sender address is configured
var ErrMailerDisabled = errors.New("key mailer disabled")

// sesClient is the part of the SES API the mailer uses
type sesClient interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// MailerConfig holds the SES settings of the key mailer
type MailerConfig struct {
	Region          string
	FromEmail       string
	FromName        string
	PlatformBaseURL string
}

// KeyMailer emails achievement keys to students via Amazon SES
type KeyMailer struct {
	client  sesClient
	cfg     MailerConfig
	enabled bool
	log     *logger.Logger
}

// NewKeyMailer creates a key mailer. Without a sender address the mailer is
// disabled and every send returns ErrMailerDisabled.
func NewKeyMailer(ctx context.Context, cfg MailerConfig, log *logger.Logger) (*KeyMailer, error) {
	if cfg.FromEmail == "" {
		log.Info("Key mailer disabled: SES_FROM_EMAIL not configured")
		return &KeyMailer{cfg: cfg, log: log}, nil
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	log.Info("Key mailer enabled", "from", cfg.FromEmail, "region", cfg.Region)
	return newKeyMailerWithClient(sesv2.NewFromConfig(awsCfg), cfg, log), nil
}

func newKeyMailerWithClient(client sesClient, cfg MailerConfig, log *logger.Logger) *KeyMailer {
	return &KeyMailer{client: client, cfg: cfg, enabled: true, log: log}
}

func (m *KeyMailer) IsEnabled() bool {
	return m.enabled
}

// SendAchievementKey mails key to a student so it can be pasted into their CV
func (m *KeyMailer) SendAchievementKey(ctx context.Context, to, studentID, gameTitle, key string) error {
	if err := validation.ValidateEmail(to); err != nil {
		return err
	}
	if err := validation.ValidateKey(key); err != nil {
		return err
	}
	if !m.enabled {
		m.log.Info("Skipping key email (mailer disabled)", "to", to, "game", gameTitle)
		return ErrMailerDisabled
	}

	if studentID == "" {
		studentID = "there"
	}
	subject := fmt.Sprintf("Your achievement key for %s", gameTitle)

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<style>
		body { font-family: "Courier New", monospace; line-height: 1.6; color: #222; }
		.container { max-width: 600px; margin: 0 auto; padding: 20px; }
		.header { background-color: #3b82f6; color: white; padding: 20px; text-align: center; }
		.key { background-color: #f3f4f6; padding: 12px; word-break: break-all; font-size: 12px; }
		.footer { text-align: center; margin-top: 20px; font-size: 12px; color: #666; }
	</style>
</head>
<body>
	<div class="container">
		<div class="header"><h1>%s complete!</h1></div>
		<p>Hi %s,</p>
		<p>Here is your achievement key. Paste it into your CV to show off your new skills.</p>
		<p class="key">%s</p>
		<p>Keep learning at <a href="%s">%s</a>.</p>
		<div class="footer"><p>This is an automated email from CV Quest. Please do not reply.</p></div>
	</div>
</body>
</html>
`, html.EscapeString(gameTitle), html.EscapeString(studentID), html.EscapeString(key),
		html.EscapeString(m.cfg.PlatformBaseURL), html.EscapeString(m.cfg.PlatformBaseURL))

	textBody := fmt.Sprintf(`Hi %s,

You completed %s. Here is your achievement key:

%s

Paste it into your CV to show off your new skills.
Keep learning at %s

---
This is an automated email from CV Quest. Please do not reply.
`, studentID, gameTitle, key, m.cfg.PlatformBaseURL)

	return m.send(ctx, to, subject, htmlBody, textBody)
}

func (m *KeyMailer) send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	from := m.cfg.FromEmail
	if m.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", m.cfg.FromName, m.cfg.FromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(htmlBody),
						Charset: aws.String("UTF-8"),
					},
					Text: &types.Content{
						Data:    aws.String(textBody),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	result, err := m.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}

	messageID := ""
	if result != nil && result.MessageId != nil {
		messageID = *result.MessageId
	}
	m.log.Info("Key email sent", "to", to, "subject", subject, "message_id", messageID)
	return nil
}
