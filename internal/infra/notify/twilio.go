package notify

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTwilioURL = "https://api.twilio.com"

// TwilioSender delivers SMS through the Twilio Messages API. A messaging service SID
// takes precedence over a from number.
type TwilioSender struct {
	accountSID          string
	authToken           string
	messagingServiceSID string
	from                string
	baseURL             string
	client              *http.Client
	retry               RetryPolicy
}

type TwilioConfig struct {
	AccountSID          string
	AuthToken           string
	MessagingServiceSID string
	From                string
	BaseURL             string
}

func NewTwilioSender(cfg TwilioConfig, retry RetryPolicy) *TwilioSender {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultTwilioURL
	}
	return &TwilioSender{
		accountSID:          cfg.AccountSID,
		authToken:           cfg.AuthToken,
		messagingServiceSID: cfg.MessagingServiceSID,
		from:                cfg.From,
		baseURL:             strings.TrimRight(baseURL, "/"),
		client:              &http.Client{Timeout: 10 * time.Second},
		retry:               retry,
	}
}

func (s *TwilioSender) Name() string { return "twilio" }

func (s *TwilioSender) SendSMS(ctx context.Context, to, body string) error {
	if s.accountSID == "" || s.authToken == "" {
		return errors.New("twilio is not configured")
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("Body", body)
	switch {
	case s.messagingServiceSID != "":
		form.Set("MessagingServiceSid", s.messagingServiceSID)
	case s.from != "":
		form.Set("From", s.from)
	default:
		return errors.New("twilio needs a messaging service sid or a from number")
	}
	encoded := form.Encode()

	endpoint := s.baseURL + "/2010-04-01/Accounts/" + url.PathEscape(s.accountSID) + "/Messages.json"

	return doWithRetry(ctx, s.client, s.Name(), s.retry, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.SetBasicAuth(s.accountSID, s.authToken)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
}
