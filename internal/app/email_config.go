package app

import (
	"github.com/MarcosLauremiro/miKan-api/internal/notifications"
	"github.com/MarcosLauremiro/miKan-api/pkg/mail"
)

// SMTPSettings converts EmailConfig to the mail package representation.
func (c EmailConfig) SMTPSettings() mail.SMTPSettings {
	return mail.SMTPSettings{
		Enabled:  c.SMTP.Enabled,
		Host:     c.SMTP.Host,
		Port:     c.SMTP.Port,
		Username: c.SMTP.Username,
		Password: c.SMTP.Password,
		From:     c.SMTP.From,
		UseTLS:   c.SMTP.UseTLS,
		Timeout:  c.SMTP.Timeout,
	}
}

// NotificationConfig builds the email listener settings. Links point at the
// frontend because that is where invitations are accepted.
func (c ServerConfig) NotificationConfig() notifications.Config {
	url := c.FrontendURL
	if url == "" {
		url = c.AppURL
	}
	return notifications.Config{AppName: "miKan", AppURL: url}
}
