package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"gopkg.in/gomail.v2"
)

// ErrSMTPDisabled signals that SMTP delivery is disabled via configuration.
var ErrSMTPDisabled = errors.New("smtp: delivery disabled")

// Message represents an outbound email. HTMLBody takes precedence over Body
// when both are set; Body is then attached as the plain text alternative.
type Message struct {
	From     string
	To       []string
	Subject  string
	Body     string
	HTMLBody string
}

// Mailer defines behaviour for sending email messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSettings capture the runtime configuration required by the SMTP mailer.
type SMTPSettings struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
	UseTLS   bool
	Timeout  time.Duration
}

type sendFunc func(cfg SMTPSettings, m *gomail.Message) error

type smtpMailer struct {
	cfg  SMTPSettings
	send sendFunc
}

// NewSMTPMailer validates cfg and returns a gomail backed Mailer.
func NewSMTPMailer(cfg SMTPSettings) (Mailer, error) {
	if err := validateSMTPConfig(cfg); err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &smtpMailer{cfg: cfg, send: dialAndSend}, nil
}

func (m *smtpMailer) Send(ctx context.Context, msg Message) error {
	if !m.cfg.Enabled {
		return ErrSMTPDisabled
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	built, err := m.build(msg)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- m.send(m.cfg, built) }()

	timer := time.NewTimer(m.cfg.Timeout)
	defer timer.Stop()

	var ctxDone <-chan struct{}
	if ctx != nil {
		ctxDone = ctx.Done()
	}

	select {
	case err := <-done:
		return err
	case <-ctxDone:
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("smtp: send timed out after %s", m.cfg.Timeout)
	}
}

func (m *smtpMailer) build(msg Message) (*gomail.Message, error) {
	recipients := uniqueAddresses(msg.To)
	if len(recipients) == 0 {
		return nil, errors.New("smtp: at least one recipient is required")
	}

	from := strings.TrimSpace(msg.From)
	if from == "" {
		from = m.cfg.From
	}
	if from == "" {
		return nil, errors.New("smtp: sender address is required")
	}
	if _, err := mail.ParseAddress(from); err != nil {
		return nil, fmt.Errorf("smtp: invalid from address: %w", err)
	}
	for _, rcpt := range recipients {
		if _, err := mail.ParseAddress(rcpt); err != nil {
			return nil, fmt.Errorf("smtp: invalid recipient address %q: %w", rcpt, err)
		}
	}

	out := gomail.NewMessage(gomail.SetCharset("UTF-8"))
	out.SetHeader("From", from)
	out.SetHeader("To", recipients...)
	out.SetHeader("Subject", escapeHeader(msg.Subject))

	switch {
	case msg.HTMLBody != "" && msg.Body != "":
		out.SetBody("text/plain", msg.Body)
		out.AddAlternative("text/html", msg.HTMLBody)
	case msg.HTMLBody != "":
		out.SetBody("text/html", msg.HTMLBody)
	default:
		out.SetBody("text/plain", msg.Body)
	}
	return out, nil
}

func dialAndSend(cfg SMTPSettings, m *gomail.Message) error {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	dialer.SSL = cfg.UseTLS
	dialer.TLSConfig = &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}
	if err := dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp: send: %w", err)
	}
	return nil
}

func validateSMTPConfig(cfg SMTPSettings) error {
	if !cfg.Enabled {
		return nil
	}
	if strings.TrimSpace(cfg.Host) == "" {
		return errors.New("smtp: host is required when enabled")
	}
	if cfg.Port == 0 {
		return errors.New("smtp: port is required when enabled")
	}
	return nil
}

func uniqueAddresses(addresses []string) []string {
	seen := make(map[string]struct{}, len(addresses))
	var result []string
	for _, addr := range addresses {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		if _, exists := seen[addr]; exists {
			continue
		}
		seen[addr] = struct{}{}
		result = append(result, addr)
	}
	return result
}

func escapeHeader(value string) string {
	value = strings.ReplaceAll(value, "\r", " ")
	return strings.ReplaceAll(value, "\n", " ")
}
