package publisher

import (
	"context"
	"fmt"
	"mime"
	"net/smtp"
	"strings"
)

// SMTPPublisher sends the digest as a plain-text email via SMTP.
type SMTPPublisher struct {
	host     string
	port     int
	username string
	password string
	from     string
	to       []string
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPPublisher(host string, port int, username, password, from string, to []string) *SMTPPublisher {
	return &SMTPPublisher{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		to:       to,
		sendMail: smtp.SendMail,
	}
}

func (p *SMTPPublisher) Publish(_ context.Context, msg Message) error {
	raw := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\nContent-Transfer-Encoding: 8bit\r\n\r\n%s",
		p.from,
		strings.Join(p.to, ","),
		mime.QEncoding.Encode("utf-8", msg.Subject),
		strings.ReplaceAll(msg.Body, "\n", "\r\n"),
	)

	addr := fmt.Sprintf("%s:%d", p.host, p.port)
	var auth smtp.Auth
	if p.username != "" {
		auth = smtp.PlainAuth("", p.username, p.password, p.host)
	}

	if err := p.sendMail(addr, auth, p.from, p.to, []byte(raw)); err != nil {
		return &MailError{Provider: "smtp", Err: err}
	}
	return nil
}
