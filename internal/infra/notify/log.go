package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/David567rs/LoginAna/internal/infra/logger"
)

// LogSender writes messages to the log instead of delivering them. It lets development
// setups without provider credentials read codes and links from the console.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{logger: log}
}

func (s *LogSender) Name() string { return "log" }

func (s *LogSender) SendEmail(_ context.Context, to, subject, html string) error {
	s.logger.Info("email (log delivery)",
		logger.Email(to),
		zap.String("subject", subject),
		zap.String("body", html),
	)
	return nil
}

func (s *LogSender) SendSMS(_ context.Context, to, body string) error {
	s.logger.Info("sms (log delivery)",
		zap.String("phone", logger.MaskPhone(to)),
		zap.String("body", body),
	)
	return nil
}
