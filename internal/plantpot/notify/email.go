package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/saturnblock/pythonplantpot/internal/plantpot/config"
)

// Email sends notices over SMTP
type Email struct {
	cfg    config.EmailConfig
	dialer *gomail.Dialer
}

// NewEmail creates an SMTP notifier
func NewEmail(cfg config.EmailConfig) *Email {
	return &Email{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

// Name implements Notifier
func (e *Email) Name() string { return "email" }

// Notify implements Notifier. gomail has no context support; ctx is only checked
// before dialing.
func (e *Email) Notify(ctx context.Context, n Notice) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.dialer.DialAndSend(e.message(n)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (e *Email) message(n Notice) *gomail.Message {
	from := e.cfg.From
	if from == "" {
		from = e.cfg.Username
	}
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", e.cfg.To...)
	m.SetHeader("Subject", "[plantpot] "+n.Title)
	m.SetBody("text/html", emailBody(n))
	return m
}

func emailBody(n Notice) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	fmt.Fprintf(&b, "<h2>%s</h2><p>%s</p>", html.EscapeString(n.Title), html.EscapeString(n.Message))
	if len(n.Fields) > 0 {
		b.WriteString("<ul>")
		for _, k := range sortedKeys(n.Fields) {
			fmt.Fprintf(&b, "<li><strong>%s:</strong> %s</li>", html.EscapeString(k), html.EscapeString(n.Fields[k]))
		}
		b.WriteString("</ul>")
	}
	fmt.Fprintf(&b, "<p><small>%s</small></p></body></html>", n.Time.Format("2006-01-02 15:04:05 MST"))
	return b.String()
}
