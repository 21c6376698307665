package mailer

import (
	"context"

	"github.com/nailstore/nailstore-api/pkg/logger"
)

// DevSender logs messages instead of delivering them.
type DevSender struct{}

func NewDevSender() *DevSender {
	return &DevSender{}
}

func (d *DevSender) Send(ctx context.Context, toEmail, subject, htmlBody string) (Result, error) {
	logger.InfoContext(ctx, "[DEV MAIL]",
		"to", toEmail,
		"subject", subject,
		"body", htmlBody,
	)
	return Result{Sent: true, StatusCode: 200}, nil
}
