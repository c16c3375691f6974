package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/David567rs/LoginAna/internal/core/port"
)

// RateLimitStore is the in-process counterpart of the Redis sliding-window repository.
type RateLimitStore struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
}

var _ port.RateLimitStore = (*RateLimitStore)(nil)

// NewRateLimitStore constructs an empty store.
func NewRateLimitStore() *RateLimitStore {
	return &RateLimitStore{attempts: make(map[string][]time.Time)}
}

func (s *RateLimitStore) TrimWindow(_ context.Context, identifier string, window time.Duration, reference time.Time) error {
	if window <= 0 {
		return errors.New("window must be positive")
	}
	threshold := reference.Add(-window)

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.attempts[identifier][:0]
	for _, at := range s.attempts[identifier] {
		if !at.Before(threshold) {
			kept = append(kept, at)
		}
	}
	if len(kept) == 0 {
		delete(s.attempts, identifier)
		return nil
	}
	s.attempts[identifier] = kept
	return nil
}

func (s *RateLimitStore) CountAttempts(_ context.Context, identifier string, window time.Duration, reference time.Time) (int, error) {
	if window <= 0 {
		return 0, errors.New("window must be positive")
	}
	threshold := reference.Add(-window)

	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, at := range s.attempts[identifier] {
		if !at.Before(threshold) && !at.After(reference) {
			count++
		}
	}
	return count, nil
}

func (s *RateLimitStore) RecordAttempt(_ context.Context, identifier string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := append(s.attempts[identifier], at)
	sort.Slice(list, func(i, j int) bool { return list[i].Before(list[j]) })
	s.attempts[identifier] = list
	return nil
}

func (s *RateLimitStore) OldestAttempt(_ context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error) {
	if window <= 0 {
		return time.Time{}, false, errors.New("window must be positive")
	}
	threshold := reference.Add(-window)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, at := range s.attempts[identifier] {
		if !at.Before(threshold) && !at.After(reference) {
			return at, true, nil
		}
	}
	return time.Time{}, false, nil
}
