// Package notify delivers email and SMS messages through an ordered chain of providers.
package notify

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/David567rs/LoginAna/internal/core/port"
	"github.com/David567rs/LoginAna/internal/infra/logger"
)

// ErrNoProvider is returned by a chain without any configured strategy.
var ErrNoProvider = errors.New("notify: no delivery provider configured")

// EmailStrategy is one way of sending an email.
type EmailStrategy interface {
	port.EmailSender
	Name() string
}

// SMSStrategy is one way of sending an SMS.
type SMSStrategy interface {
	port.SMSSender
	Name() string
}

// EmailChain tries each strategy in order and stops at the first success.
type EmailChain struct {
	strategies []EmailStrategy
	logger     *zap.Logger
}

var _ port.EmailSender = (*EmailChain)(nil)

func NewEmailChain(logger *zap.Logger, strategies ...EmailStrategy) *EmailChain {
	return &EmailChain{strategies: strategies, logger: logger}
}

// Strategies returns the provider names in the order they are tried.
func (c *EmailChain) Strategies() []string {
	names := make([]string, 0, len(c.strategies))
	for _, s := range c.strategies {
		names = append(names, s.Name())
	}
	return names
}

func (c *EmailChain) SendEmail(ctx context.Context, to, subject, html string) error {
	if len(c.strategies) == 0 {
		return ErrNoProvider
	}

	var errs []error
	for _, strategy := range c.strategies {
		err := strategy.SendEmail(ctx, to, subject, html)
		if err == nil {
			c.logger.Debug("email delivered",
				zap.String("provider", strategy.Name()),
				logger.Email(to),
			)
			return nil
		}

		c.logger.Warn("email provider failed",
			zap.String("provider", strategy.Name()),
			logger.Email(to),
			zap.Error(err),
		)
		errs = append(errs, fmt.Errorf("%s: %w", strategy.Name(), err))

		if ctx.Err() != nil {
			break
		}
	}
	return errors.Join(errs...)
}

// SMSChain tries each strategy in order and stops at the first success.
type SMSChain struct {
	strategies []SMSStrategy
	logger     *zap.Logger
}

var _ port.SMSSender = (*SMSChain)(nil)

func NewSMSChain(logger *zap.Logger, strategies ...SMSStrategy) *SMSChain {
	return &SMSChain{strategies: strategies, logger: logger}
}

func (c *SMSChain) Strategies() []string {
	names := make([]string, 0, len(c.strategies))
	for _, s := range c.strategies {
		names = append(names, s.Name())
	}
	return names
}

func (c *SMSChain) SendSMS(ctx context.Context, to, body string) error {
	if len(c.strategies) == 0 {
		return ErrNoProvider
	}

	var errs []error
	for _, strategy := range c.strategies {
		err := strategy.SendSMS(ctx, to, body)
		if err == nil {
			c.logger.Debug("sms delivered",
				zap.String("provider", strategy.Name()),
				zap.String("phone", logger.MaskPhone(to)),
			)
			return nil
		}

		c.logger.Warn("sms provider failed",
			zap.String("provider", strategy.Name()),
			zap.String("phone", logger.MaskPhone(to)),
			zap.Error(err),
		)
		errs = append(errs, fmt.Errorf("%s: %w", strategy.Name(), err))

		if ctx.Err() != nil {
			break
		}
	}
	return errors.Join(errs...)
}
