package port

import "context"

// EmailSender delivers HTML email.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, html string) error
}

// SMSSender delivers short text messages.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}
