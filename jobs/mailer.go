package jobs

import (
	"fmt"
	"net/smtp"
	"strings"
)

// Mailer sends a plain-text message to one recipient.
type Mailer interface {
	Send(to, subject, body string) error
}

// SMTPMailer delivers mail through a plain SMTP relay (Mailpit locally).
type SMTPMailer struct {
	Addr string
	From string
}

func (m SMTPMailer) Send(to, subject, body string) error {
	if m.Addr == "" || m.From == "" {
		return fmt.Errorf("jobs: smtp mailer not configured")
	}
	msg := strings.Join([]string{
		"From: " + m.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")
	return smtp.SendMail(m.Addr, nil, m.From, []string{to}, []byte(msg))
}
