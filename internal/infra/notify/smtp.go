package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	mail "github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

var defaultSMTPPorts = []int{587, 465, 25}

type SMTPConfig struct {
	Host     string
	Ports    []int
	Username string
	Password string
	From     string
}

// SMTPSender delivers email over SMTP, trying each configured port in order. Port 465
// uses implicit TLS, 587 requires STARTTLS and anything else upgrades opportunistically.
type SMTPSender struct {
	cfg    SMTPConfig
	logger *zap.Logger
	send   func(ctx context.Context, port int, msg *mail.Msg) error
}

func NewSMTPSender(cfg SMTPConfig, logger *zap.Logger) *SMTPSender {
	if len(cfg.Ports) == 0 {
		cfg.Ports = defaultSMTPPorts
	}
	s := &SMTPSender{cfg: cfg, logger: logger}
	s.send = s.dialAndSend
	return s
}

func (s *SMTPSender) Name() string { return "smtp" }

func (s *SMTPSender) SendEmail(ctx context.Context, to, subject, html string) error {
	if strings.TrimSpace(s.cfg.Host) == "" {
		return errors.New("smtp host is not configured")
	}

	msg := mail.NewMsg()
	if err := msg.From(s.from()); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, html)

	var errs []error
	for _, port := range s.cfg.Ports {
		err := s.send(ctx, port, msg)
		if err == nil {
			return nil
		}
		s.logger.Debug("smtp port failed", zap.Int("port", port), zap.Error(err))
		errs = append(errs, fmt.Errorf("port %d: %w", port, err))
		if ctx.Err() != nil {
			break
		}
	}
	return errors.Join(errs...)
}

func (s *SMTPSender) from() string {
	if s.cfg.From != "" {
		return s.cfg.From
	}
	return s.cfg.Username
}

func (s *SMTPSender) dialAndSend(ctx context.Context, port int, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithTimeout(10 * time.Second),
	}
	switch port {
	case 465:
		opts = append(opts, mail.WithSSL())
	case 587:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthAutoDiscover),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, msg)
}
