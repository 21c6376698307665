package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/smtp"
	"net/textproto"
	"strings"
)

type SMTPSender struct {
	Host     string
	Port     int
	From     string
	FromName string
	User     string
	Pass     string
	UseTLS   bool
}

func NewSMTPSender(host string, port int, from, fromName, user, pass string, useTLS bool) *SMTPSender {
	return &SMTPSender{
		Host:     strings.TrimSpace(host),
		Port:     port,
		From:     strings.TrimSpace(from),
		FromName: strings.TrimSpace(fromName),
		User:     strings.TrimSpace(user),
		Pass:     strings.TrimSpace(pass),
		UseTLS:   useTLS,
	}
}

// Send performs the whole connect/authenticate/send/disconnect cycle for one
// message. Nothing persists between calls.
func (s *SMTPSender) Send(ctx context.Context, toEmail, subject, htmlBody string) (Result, error) {
	toEmail = strings.TrimSpace(toEmail)
	if toEmail == "" {
		return Result{StatusCode: 400}, fmt.Errorf("empty recipient email")
	}
	if err := ctx.Err(); err != nil {
		return Result{StatusCode: 500}, err
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s <%s>\r\n", s.FromName, s.From)
	fmt.Fprintf(&buf, "To: %s\r\n", toEmail)
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: text/html; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&buf, "%s\r\n", htmlBody)

	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)

	// Mailpit or development SMTP (no auth, no TLS)
	if !s.UseTLS && s.User == "" {
		if err := smtp.SendMail(addr, nil, s.From, []string{toEmail}, buf.Bytes()); err != nil {
			return Result{StatusCode: smtpStatus(err)}, err
		}
		return Result{Sent: true, StatusCode: 200}, nil
	}

	var auth smtp.Auth
	if s.User != "" {
		auth = smtp.PlainAuth("", s.User, s.Pass, s.Host)
	}

	// Plain SMTP first (STARTTLS when the server offers it)
	sendErr := smtp.SendMail(addr, auth, s.From, []string{toEmail}, buf.Bytes())
	if sendErr == nil {
		return Result{Sent: true, StatusCode: 200}, nil
	}

	// Fallback to implicit TLS (port 465)
	if s.UseTLS {
		if err := s.sendImplicitTLS(addr, auth, toEmail, buf.Bytes()); err != nil {
			return Result{StatusCode: smtpStatus(err)}, err
		}
		return Result{Sent: true, StatusCode: 200}, nil
	}

	return Result{StatusCode: smtpStatus(sendErr)}, fmt.Errorf("smtp send failed: %w", sendErr)
}

func (s *SMTPSender) sendImplicitTLS(addr string, auth smtp.Auth, toEmail string, msg []byte) error {
	tlsCfg := &tls.Config{ServerName: s.Host}
	conn, err := tls.Dial("tcp", addr, tlsCfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	c, err := smtp.NewClient(conn, s.Host)
	if err != nil {
		return err
	}
	defer c.Quit()

	if auth != nil {
		if err := c.Auth(auth); err != nil {
			return err
		}
	}

	if err := c.Mail(s.From); err != nil {
		return err
	}
	if err := c.Rcpt(toEmail); err != nil {
		return err
	}

	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	return w.Close()
}

func smtpStatus(err error) int {
	var proto *textproto.Error
	if errors.As(err, &proto) && proto.Code > 0 {
		return proto.Code
	}
	return 500
}
