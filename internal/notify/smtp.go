package notify

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"
)

type Config struct {
	Driver   string
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// SMTPNotifier delivers messages through an SMTP relay. A failed dial, auth
// or send is returned to the caller, never swallowed. Each Send dials its own
// connection, so one notifier serves concurrent reservations.
type SMTPNotifier struct {
	host string
	opts []mail.Option
	from string
}

func NewSMTPNotifier(cfg Config) (*SMTPNotifier, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(cfg.Timeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	if _, err := mail.NewClient(cfg.Host, opts...); err != nil {
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}

	slog.Info("SMTP notifier configured", "host", cfg.Host, "port", cfg.Port, "from", cfg.From)
	return &SMTPNotifier{host: cfg.Host, opts: opts, from: cfg.From}, nil
}

func (n *SMTPNotifier) Send(ctx context.Context, msg *Message) error {
	m, err := Compose(n.from, msg)
	if err != nil {
		return err
	}
	client, err := mail.NewClient(n.host, n.opts...)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", msg.To, err)
	}
	return nil
}

// Compose converts msg into a multipart MIME message: plain text with an HTML
// alternative and the attachment.
func Compose(from string, msg *Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", from, err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}
	if a := msg.Attachment; a != nil {
		err := m.AttachReader(a.Filename, bytes.NewReader(a.Data),
			mail.WithFileContentType(mail.ContentType(a.ContentType)))
		if err != nil {
			return nil, fmt.Errorf("failed to attach %s: %w", a.Filename, err)
		}
	}
	return m, nil
}

// LogNotifier writes messages to the log instead of sending them. It is meant
// for local development and never fails.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, msg *Message) error {
	attrs := []any{"to", msg.To, "subject", msg.Subject}
	if msg.Attachment != nil {
		attrs = append(attrs, "attachment", msg.Attachment.Filename, "attachment_bytes", len(msg.Attachment.Data))
	}
	n.logger.InfoContext(ctx, "Confirmation message (not sent)", attrs...)
	return nil
}
