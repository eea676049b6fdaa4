package mail

import (
	"fmt"
	"strconv"

	"gopkg.in/gomail.v2"

	"github.com/fulljjb/server/internal/config"
)

// Mailer sends the registration confirmation email. Delivery is
// best-effort from the caller's point of view: a failure surfaces as an
// error but nothing is rolled back.
type Mailer interface {
	SendConfirmation(to, name, link string) error
}

type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(cfg *config.Config) (*SMTPMailer, error) {
	port, err := strconv.Atoi(cfg.EMAIL_PORT)
	if err != nil {
		return nil, fmt.Errorf("invalid EMAIL_PORT %q: %w", cfg.EMAIL_PORT, err)
	}
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.EMAIL_HOST, port, cfg.EMAIL_USER, cfg.EMAIL_PASSWORD),
		from:   cfg.EMAIL_USER,
	}, nil
}

func (m *SMTPMailer) SendConfirmation(to, name, link string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", "Confirm your registration")
	msg.SetBody("text/html", fmt.Sprintf(
		`Hello %s,<br><br>Click <a href="%s">here</a> to confirm your registration.`,
		name, link,
	))

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("mail: send failed: %w", err)
	}
	return nil
}
