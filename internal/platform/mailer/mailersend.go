package mailer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mailersend/mailersend-go"
)

type MailerSendSender struct {
	client  *mailersend.Mailersend
	from    mailersend.From
	enabled bool
}

func NewMailerSendSender(apiKey, fromName, fromEmail string) *MailerSendSender {
	m := &MailerSendSender{
		enabled: apiKey != "" && fromEmail != "",
		from: mailersend.From{
			Name:  fromName,
			Email: fromEmail,
		},
	}
	if m.enabled {
		m.client = mailersend.NewMailersend(apiKey)
	}
	return m
}

func (m *MailerSendSender) Send(ctx context.Context, toEmail, subject, htmlBody string) (Result, error) {
	if !m.enabled {
		return Result{StatusCode: 500}, errors.New("mailersend disabled (missing MAILERSEND_API_KEY or sender address)")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	msg := m.client.Email.NewMessage()
	msg.SetFrom(m.from)
	msg.SetRecipients([]mailersend.Recipient{{Email: toEmail}})
	msg.SetSubject(subject)
	msg.SetHTML(htmlBody)

	res, err := m.client.Email.Send(ctx, msg)
	if err != nil {
		return Result{StatusCode: 500}, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(res.Body)
		return Result{StatusCode: res.StatusCode},
			fmt.Errorf("mailersend error: status=%d body=%s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	return Result{Sent: true, StatusCode: res.StatusCode}, nil
}
