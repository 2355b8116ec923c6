package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/aymerick/raymond"
	"github.com/wneessen/go-mail"
)

// EmailSubject is the subject of the completion email.
const EmailSubject = "Your Resume PDF is Ready"

const fallbackName = "there"

var (
	textBody = raymond.MustParse(`Hi {{{name}}},

Your resume PDF has been generated successfully.

Download it here: {{{pdfUrl}}}

Best regards,
Resume PDF`)

	htmlBody = raymond.MustParse(`<div style="font-family: Arial, sans-serif; max-width: 520px; margin: auto;">
  <h2>Hi {{name}},</h2>
  <p>Your resume PDF has been generated successfully.</p>
  <p style="margin: 24px 0;">
    <a href="{{pdfUrl}}" style="background: #2563eb; color: #fff; padding: 12px 28px; border-radius: 6px; text-decoration: none; font-weight: 600;">Download PDF</a>
  </p>
  <p style="color: #888; font-size: 13px;">Best regards,<br/>Resume PDF</p>
</div>`)
)

// Email is one completion email.
type Email struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers an email.
type Sender interface {
	Send(ctx context.Context, e Email) error
}

// BuildEmail renders the completion email for to. An empty name greets "there".
func BuildEmail(to, pdfURL, name string) (Email, error) {
	if strings.TrimSpace(name) == "" {
		name = fallbackName
	}
	data := map[string]any{"name": name, "pdfUrl": pdfURL}
	text, err := textBody.Exec(data)
	if err != nil {
		return Email{}, fmt.Errorf("render text body: %w", err)
	}
	html, err := htmlBody.Exec(data)
	if err != nil {
		return Email{}, fmt.Errorf("render html body: %w", err)
	}
	return Email{To: to, Subject: EmailSubject, Text: text, HTML: html}, nil
}

// SMTPOptions configures SMTPSender.
type SMTPOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender sends mail through an SMTP relay.
type SMTPSender struct {
	opts SMTPOptions
}

// NewSMTPSender constructs an SMTPSender.
func NewSMTPSender(opts SMTPOptions) *SMTPSender {
	if opts.Port == 0 {
		opts.Port = 587
	}
	return &SMTPSender{opts: opts}
}

// Send dials the relay and delivers e.
func (s *SMTPSender) Send(ctx context.Context, e Email) error {
	msg := mail.NewMsg()
	if err := msg.From(s.opts.From); err != nil {
		return fmt.Errorf("from address: %w", err)
	}
	if err := msg.To(e.To); err != nil {
		return fmt.Errorf("to address: %w", err)
	}
	msg.Subject(e.Subject)
	msg.SetBodyString(mail.TypeTextPlain, e.Text)
	msg.AddAlternativeString(mail.TypeTextHTML, e.HTML)

	client, err := mail.NewClient(s.opts.Host, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (s *SMTPSender) clientOptions() []mail.Option {
	opts := []mail.Option{mail.WithPort(s.opts.Port)}
	if s.opts.Port == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if s.opts.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.opts.Username),
			mail.WithPassword(s.opts.Password),
		)
	}
	return opts
}

var _ Sender = (*SMTPSender)(nil)
