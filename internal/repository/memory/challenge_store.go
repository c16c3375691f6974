package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/David567rs/LoginAna/internal/core/domain"
	"github.com/David567rs/LoginAna/internal/core/port"
	"github.com/David567rs/LoginAna/internal/repository"
)

type challengeEntry struct {
	challenge domain.Challenge
	evictAt   time.Time
}

// ChallengeStore keeps challenges in process memory. Contents are lost on restart and
// are not shared between instances; use the Redis store for multi-instance deployments.
type ChallengeStore struct {
	mu      sync.Mutex
	entries map[string]challengeEntry
	now     func() time.Time
}

var _ port.ChallengeStore = (*ChallengeStore)(nil)

// NewChallengeStore constructs an empty store.
func NewChallengeStore() *ChallengeStore {
	return &ChallengeStore{
		entries: make(map[string]challengeEntry),
		now:     time.Now,
	}
}

// WithClock overrides the internal clock, used in tests.
func (s *ChallengeStore) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

func (s *ChallengeStore) Put(_ context.Context, challenge domain.Challenge, ttl time.Duration) error {
	if strings.TrimSpace(challenge.ID) == "" {
		return errors.New("challenge id is required")
	}
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	challenge.Secret = ""

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[challenge.ID] = challengeEntry{challenge: challenge, evictAt: s.now().Add(ttl)}
	return nil
}

func (s *ChallengeStore) Get(_ context.Context, id string) (*domain.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.lookupLocked(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := entry.challenge
	return &out, nil
}

func (s *ChallengeStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
	return nil
}

// Resolve runs decide while holding the store lock.
func (s *ChallengeStore) Resolve(_ context.Context, id string, decide func(domain.Challenge) port.ChallengeDecision) (*domain.Challenge, port.ChallengeDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.lookupLocked(id)
	if !ok {
		return nil, port.ChallengeKeep, repository.ErrNotFound
	}

	out := entry.challenge
	decision := decide(out)
	if decision == port.ChallengeDelete {
		delete(s.entries, id)
	}
	return &out, decision, nil
}

// Len reports how many entries are currently retained.
func (s *ChallengeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep drops entries whose retention window has passed and returns how many were removed.
func (s *ChallengeStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, entry := range s.entries {
		if now.After(entry.evictAt) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// StartJanitor sweeps the store every interval until ctx is cancelled.
func (s *ChallengeStore) StartJanitor(ctx context.Context, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := s.Sweep(); removed > 0 {
					logger.Debug("expired challenges swept", zap.Int("removed", removed))
				}
			}
		}
	}()
}

func (s *ChallengeStore) lookupLocked(id string) (challengeEntry, bool) {
	entry, ok := s.entries[id]
	if !ok {
		return challengeEntry{}, false
	}
	if s.now().After(entry.evictAt) {
		delete(s.entries, id)
		return challengeEntry{}, false
	}
	return entry, true
}
