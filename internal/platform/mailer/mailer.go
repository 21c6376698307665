package mailer

import "context"

// Result reports whether a message left and the provider's status code for the
// attempt. The code is surfaced to callers that echo it in error responses.
type Result struct {
	Sent       bool
	StatusCode int
}

// Sender delivers one transactional HTML email per call. Implementations own
// the full connect/authenticate/send/disconnect cycle inside Send; nothing is
// shared between calls, so a Sender is safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, toEmail, subject, htmlBody string) (Result, error)
}
