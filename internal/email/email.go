// Package email sends the account and contact form mails.
package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"net/url"
	"strings"

	"projectron-api/internal/config"

	"go.uber.org/zap"
)

// Sender delivers one HTML message.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPSender delivers through an SMTP relay with optional PLAIN auth.
type SMTPSender struct {
	cfg config.SMTPConfig
}

func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) Send(_ context.Context, to, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.cfg.From, to, subject, body)

	var auth smtp.Auth
	if s.cfg.Password != "" {
		user := s.cfg.Username
		if user == "" {
			user = s.cfg.From
		}
		auth = smtp.PlainAuth("", user, s.cfg.Password, s.cfg.Host)
	}
	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

// LogSender only logs messages. Used when no SMTP host is configured.
type LogSender struct {
	Logger *zap.Logger
}

func (s LogSender) Send(_ context.Context, to, subject, body string) error {
	s.Logger.Info("mail not sent, smtp is not configured",
		zap.String("to", to), zap.String("subject", subject), zap.Int("body_bytes", len(body)))
	return nil
}

// NewSender picks the SMTP sender when a host is configured.
func NewSender(cfg config.SMTPConfig, logger *zap.Logger) Sender {
	if cfg.Host == "" {
		return LogSender{Logger: logger}
	}
	return NewSMTPSender(cfg)
}

var templates = template.Must(template.New("mail").Parse(`
{{define "verify"}}<html><body>
<h2>Welcome to Projectron{{if .Name}}, {{.Name}}{{end}}!</h2>
<p>Please confirm your email address to activate your account.</p>
<p><a href="{{.Link}}">Verify Email Address</a></p>
<p>The link expires in 24 hours. If you did not sign up you can ignore this message.</p>
</body></html>{{end}}

{{define "reset"}}<html><body>
<h2>Reset your password</h2>
<p>Someone asked to reset the password of your Projectron account.</p>
<p><a href="{{.Link}}">Choose a new password</a></p>
<p>The link expires in one hour. If it was not you, nothing changes.</p>
</body></html>{{end}}

{{define "contact"}}<html><body>
<h2>New {{.Type}} message</h2>
<p><b>From:</b> {{.Name}} &lt;{{.Email}}&gt;</p>
<p><b>Subject:</b> {{.Subject}}</p>
<pre>{{.Message}}</pre>
</body></html>{{end}}
`))

// ContactMessage is a submission of the public contact form.
type ContactMessage struct {
	Name    string
	Email   string
	Subject string
	Message string
	Type    string
}

// Mailer renders and sends the application mails.
type Mailer struct {
	sender      Sender
	frontendURL string
	support     string
}

func NewMailer(sender Sender, frontendURL, supportAddress string) *Mailer {
	return &Mailer{
		sender:      sender,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		support:     supportAddress,
	}
}

func (m *Mailer) SendVerification(ctx context.Context, to, name, token string) error {
	body, err := render("verify", map[string]string{
		"Name": name,
		"Link": m.link("/auth/verify-email/confirm", token),
	})
	if err != nil {
		return err
	}
	return m.sender.Send(ctx, to, "Verify your email address", body)
}

func (m *Mailer) SendPasswordReset(ctx context.Context, to, token string) error {
	body, err := render("reset", map[string]string{"Link": m.link("/auth/reset-password", token)})
	if err != nil {
		return err
	}
	return m.sender.Send(ctx, to, "Reset your password", body)
}

// SendContact forwards a contact form submission to the support address.
func (m *Mailer) SendContact(ctx context.Context, msg ContactMessage) error {
	body, err := render("contact", msg)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("[Projectron Contact] %s: %s", titleCase(msg.Type), msg.Subject)
	return m.sender.Send(ctx, m.support, subject, body)
}

func (m *Mailer) link(path, token string) string {
	return m.frontendURL + path + "?token=" + url.QueryEscape(token)
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s mail: %w", name, err)
	}
	return buf.String(), nil
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
