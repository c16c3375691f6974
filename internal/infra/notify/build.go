package notify

import (
	"strings"

	"go.uber.org/zap"

	"github.com/David567rs/LoginAna/internal/infra/config"
)

// BuildEmailChain assembles the email strategies that have configuration, in priority order.
func BuildEmailChain(cfg config.NotifySettings, log *zap.Logger) *EmailChain {
	retry := RetryPolicy{MaxTries: cfg.RetryMaxAttempts}

	var strategies []EmailStrategy
	if cfg.SendGrid.APIKey != "" && cfg.SendGrid.From != "" {
		strategies = append(strategies, NewSendGridSender(cfg.SendGrid.APIKey, cfg.SendGrid.From, cfg.SendGrid.BaseURL, retry))
	}
	if strings.TrimSpace(cfg.SMTP.Host) != "" {
		strategies = append(strategies, NewSMTPSender(SMTPConfig{
			Host:     cfg.SMTP.Host,
			Ports:    cfg.SMTP.Ports,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     firstNonEmpty(cfg.SMTP.From, cfg.SendGrid.From),
		}, log))
	}
	if cfg.LogFallback {
		strategies = append(strategies, NewLogSender(log))
	}

	chain := NewEmailChain(log, strategies...)
	if len(strategies) == 0 {
		log.Warn("no email provider configured, email delivery will fail")
	} else {
		log.Info("email delivery chain ready", zap.Strings("providers", chain.Strategies()))
	}
	return chain
}

// BuildSMSChain assembles the SMS strategies that have configuration, in priority order.
func BuildSMSChain(cfg config.NotifySettings, log *zap.Logger) *SMSChain {
	retry := RetryPolicy{MaxTries: cfg.RetryMaxAttempts}

	var strategies []SMSStrategy
	tw := cfg.Twilio
	if tw.AccountSID != "" && tw.AuthToken != "" && (tw.MessagingServiceSID != "" || tw.From != "") {
		strategies = append(strategies, NewTwilioSender(TwilioConfig{
			AccountSID:          tw.AccountSID,
			AuthToken:           tw.AuthToken,
			MessagingServiceSID: tw.MessagingServiceSID,
			From:                tw.From,
			BaseURL:             tw.BaseURL,
		}, retry))
	}
	if cfg.LogFallback {
		strategies = append(strategies, NewLogSender(log))
	}

	chain := NewSMSChain(log, strategies...)
	if len(strategies) == 0 {
		log.Warn("no sms provider configured, sms delivery will fail")
	} else {
		log.Info("sms delivery chain ready", zap.Strings("providers", chain.Strategies()))
	}
	return chain
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
