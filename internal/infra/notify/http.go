package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const defaultInitialInterval = 200 * time.Millisecond

// RetryPolicy bounds how often an HTTP provider call is repeated.
type RetryPolicy struct {
	MaxTries        uint
	InitialInterval time.Duration
}

func (p RetryPolicy) options() []backoff.RetryOption {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = defaultInitialInterval
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}

	tries := p.MaxTries
	if tries == 0 {
		tries = 1
	}
	return []backoff.RetryOption{backoff.WithBackOff(b), backoff.WithMaxTries(tries)}
}

// StatusError reports a non-2xx provider response.
type StatusError struct {
	Provider string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s responded %d: %s", e.Provider, e.Status, e.Body)
}

// doWithRetry sends the request built by newRequest until it succeeds. Network errors
// and 5xx responses are retried, any other non-2xx status is permanent.
func doWithRetry(ctx context.Context, client *http.Client, provider string, policy RetryPolicy, newRequest func(context.Context) (*http.Request, error)) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		req, err := newRequest(ctx)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}

		resp, err := client.Do(req)
		if err != nil {
			return struct{}{}, err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			_, _ = io.Copy(io.Discard, resp.Body)
			return struct{}{}, nil
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		statusErr := &StatusError{Provider: provider, Status: resp.StatusCode, Body: string(body)}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return struct{}{}, statusErr
		}
		return struct{}{}, backoff.Permanent(statusErr)
	}, policy.options()...)
	return err
}
