package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
)

const defaultSendGridURL = "https://api.sendgrid.com"

// SendGridSender delivers email through the SendGrid v3 mail API.
type SendGridSender struct {
	apiKey  string
	from    string
	baseURL string
	client  *http.Client
	retry   RetryPolicy
}

func NewSendGridSender(apiKey, from, baseURL string, retry RetryPolicy) *SendGridSender {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultSendGridURL
	}
	return &SendGridSender{
		apiKey:  apiKey,
		from:    from,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		retry:   retry,
	}
}

func (s *SendGridSender) Name() string { return "sendgrid" }

type sendGridAddress struct {
	Email string `json:"email"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendGridPersonalization struct {
	To []sendGridAddress `json:"to"`
}

type sendGridMessage struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendGridContent         `json:"content"`
}

func (s *SendGridSender) SendEmail(ctx context.Context, to, subject, html string) error {
	if s.apiKey == "" || s.from == "" {
		return errors.New("sendgrid is not configured")
	}

	payload, err := json.Marshal(sendGridMessage{
		Personalizations: []sendGridPersonalization{{To: []sendGridAddress{{Email: to}}}},
		From:             sendGridAddress{Email: s.from},
		Subject:          subject,
		Content:          []sendGridContent{{Type: "text/html", Value: html}},
	})
	if err != nil {
		return err
	}

	return doWithRetry(ctx, s.client, s.Name(), s.retry, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v3/mail/send", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
}
