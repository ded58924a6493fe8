package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"

	"github.com/justsurfingit/studentva/internal/config"
	"github.com/justsurfingit/studentva/internal/models"
	"github.com/justsurfingit/studentva/internal/storage"
)

const submittedLayout = "1/2/2006, 3:04:05 PM"

// EmailTransport delivers a composed message.
type EmailTransport interface {
	Send(ctx context.Context, msg *mail.Msg) error
	// Verify checks connectivity and credentials without sending anything.
	Verify(ctx context.Context) error
}

// EmailService renders the application into an HTML mail with the CV attached.
type EmailService struct {
	cfg       config.EmailConfig
	transport EmailTransport
	now       func() time.Time
}

func NewEmailService(cfg config.EmailConfig, transport EmailTransport) *EmailService {
	return &EmailService{cfg: cfg, transport: transport, now: time.Now}
}

func (s *EmailService) Name() string { return "email" }

// Notify sends the tabular summary to the operator address, attaching the CV if present.
func (s *EmailService) Notify(ctx context.Context, app models.Application, attachment *storage.StagedFile) error {
	if !s.cfg.Configured() || s.transport == nil {
		return ErrEmailNotConfigured
	}
	msg, err := s.compose("New Application: "+app.FullName, app, attachment)
	if err != nil {
		return err
	}
	if err := s.transport.Send(ctx, msg); err != nil {
		return fmt.Errorf("send application email: %w", err)
	}
	return nil
}

// SendTest delivers a short message proving the configuration works.
func (s *EmailService) SendTest(ctx context.Context) error {
	if !s.cfg.Configured() || s.transport == nil {
		return ErrEmailNotConfigured
	}
	msg, err := s.newMsg("Test Email from Student VA Backend")
	if err != nil {
		return err
	}
	var body bytes.Buffer
	if err := testEmailTemplate.Execute(&body, map[string]string{
		"Account": s.cfg.User,
		"Time":    s.now().Format(submittedLayout),
	}); err != nil {
		return fmt.Errorf("render test email: %w", err)
	}
	msg.SetBodyString(mail.TypeTextHTML, body.String())
	return s.transport.Send(ctx, msg)
}

func (s *EmailService) Verify(ctx context.Context) error {
	if !s.cfg.Configured() || s.transport == nil {
		return ErrEmailNotConfigured
	}
	return s.transport.Verify(ctx)
}

func (s *EmailService) newMsg(subject string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.FromFormat(s.cfg.FromName, s.cfg.User); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(s.cfg.Recipient()); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	msg.Subject(subject)
	msg.SetDate()
	msg.SetMessageID()
	return msg, nil
}

func (s *EmailService) compose(subject string, app models.Application, attachment *storage.StagedFile) (*mail.Msg, error) {
	msg, err := s.newMsg(subject)
	if err != nil {
		return nil, err
	}
	if models.ValidEmail(app.Email) {
		_ = msg.ReplyTo(app.Email)
	}
	body, err := RenderEmailHTML(app, s.now())
	if err != nil {
		return nil, err
	}
	msg.SetBodyString(mail.TypeTextHTML, body)
	if attachment != nil {
		opts := []mail.FileOption{mail.WithFileName(attachment.OriginalName)}
		if attachment.ContentType != "" {
			opts = append(opts, mail.WithFileContentType(mail.ContentType(attachment.ContentType)))
		}
		msg.AttachFile(attachment.Path, opts...)
	}
	return msg, nil
}

type emailRow struct {
	Label string
	Value string
}

var applicationEmailTemplate = template.Must(template.New("application").Parse(`
<h2>New Application Received</h2>
<table style="border-collapse: collapse; width: 100%;">
{{- range .Rows}}
  <tr>
    <td style="padding: 8px; border: 1px solid #ddd; font-weight: bold;">{{.Label}}</td>
    <td style="padding: 8px; border: 1px solid #ddd;">{{.Value}}</td>
  </tr>
{{- end}}
</table>
<p style="margin-top: 20px; color: #666;">
  Submitted: {{.Submitted}}
</p>
`))

var testEmailTemplate = template.Must(template.New("test").Parse(`
<h2>Test Email</h2>
<p>This is a test to verify your email configuration is working correctly.</p>
<p>If you received this email, your backend is ready to receive application notifications!</p>
<ul>
  <li>Email: {{.Account}}</li>
  <li>Time: {{.Time}}</li>
</ul>
`))

// RenderEmailHTML renders the operator summary; all submitted values are HTML-escaped.
func RenderEmailHTML(app models.Application, submitted time.Time) (string, error) {
	rows := []emailRow{
		{"Full Name", app.FullName},
		{"Email", app.Email},
		{"Phone", models.OrDefault(app.Phone, models.NotProvided)},
		{"Country", app.Country},
		{"Education", models.OrDefault(app.Education.Label(), models.NotSpecified)},
		{"Skills", models.OrDefault(app.Skills, models.NotProvided)},
		{"Experience", models.OrDefault(app.Experience, models.NotProvided)},
		{"Why Hire", app.Pitch},
	}
	var buf bytes.Buffer
	err := applicationEmailTemplate.Execute(&buf, map[string]any{
		"Rows":      rows,
		"Submitted": submitted.Format(submittedLayout),
	})
	if err != nil {
		return "", fmt.Errorf("render application email: %w", err)
	}
	return buf.String(), nil
}

// SMTPTransport talks to an SMTP relay (Gmail by default) with STARTTLS and PLAIN auth.
// SMTPTransport dials a fresh authenticated connection per message.
type SMTPTransport struct {
	host     string
	port     int
	username string
	password string
}

func NewSMTPTransport(cfg config.EmailConfig) *SMTPTransport {
	return &SMTPTransport{host: cfg.SMTPHost, port: cfg.SMTPPort, username: cfg.User, password: cfg.Pass}
}

func (t *SMTPTransport) client() (*mail.Client, error) {
	return mail.NewClient(t.host,
		mail.WithPort(t.port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(t.username),
		mail.WithPassword(t.password),
		mail.WithTLSPortPolicy(mail.TLSMandatory),
		mail.WithTimeout(30*time.Second),
	)
}

func (t *SMTPTransport) Send(ctx context.Context, msg *mail.Msg) error {
	c, err := t.client()
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	return c.DialAndSendWithContext(ctx, msg)
}

func (t *SMTPTransport) Verify(ctx context.Context) error {
	c, err := t.client()
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := c.DialWithContext(ctx); err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	return c.Close()
}

// GmailTransport sends the rendered MIME message through users.messages.send.
type GmailTransport struct {
	svc         *gmail.Service
	tokenSource oauth2.TokenSource
}

func NewGmailTransport(svc *gmail.Service, ts oauth2.TokenSource) *GmailTransport {
	return &GmailTransport{svc: svc, tokenSource: ts}
}

func (t *GmailTransport) Send(ctx context.Context, msg *mail.Msg) error {
	var raw bytes.Buffer
	if _, err := msg.WriteTo(&raw); err != nil {
		return fmt.Errorf("render mime message: %w", err)
	}
	sent, err := t.svc.Users.Messages.Send("me", &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(raw.Bytes()),
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("gmail send: %w", err)
	}
	slog.DebugContext(ctx, "gmail message accepted", "id", sent.Id)
	return nil
}

// Verify refreshes the OAuth token; the send-only scope allows nothing else.
func (t *GmailTransport) Verify(ctx context.Context) error {
	if t.tokenSource == nil {
		return nil
	}
	if _, err := t.tokenSource.Token(); err != nil {
		return fmt.Errorf("gmail token: %w", err)
	}
	return nil
}
