package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"mgmonitor/internal/config"
)

// EmailNotifier delivers over plain SMTP with optional auth.
type EmailNotifier struct {
	cfg config.EmailConfig

	// send is swapped in tests; defaults to smtp.SendMail.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmailNotifier(cfg config.EmailConfig) *EmailNotifier {
	return &EmailNotifier{cfg: cfg, send: smtp.SendMail}
}

func (n *EmailNotifier) Name() string {
	return "email"
}

func (n *EmailNotifier) Send(ctx context.Context, event DealEvent) error {
	if n.cfg.SMTPHost == "" || n.cfg.To == "" {
		return fmt.Errorf("email notify: smtp host and recipient required")
	}
	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.SMTPHost)
	}
	addr := fmt.Sprintf("%s:%d", n.cfg.SMTPHost, n.cfg.SMTPPort)

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", n.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", n.cfg.To)
	fmt.Fprintf(&msg, "Subject: %s\r\n", event.Subject())
	msg.WriteString("\r\n")
	msg.WriteString(event.Body())

	if err := n.send(addr, auth, n.cfg.From, []string{n.cfg.To}, []byte(msg.String())); err != nil {
		return fmt.Errorf("email notify: %w", err)
	}
	return nil
}
