package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/David567rs/LoginAna/internal/core/domain"
	"github.com/David567rs/LoginAna/internal/core/port"
	"github.com/David567rs/LoginAna/internal/repository"
)

const (
	defaultChallengePrefix = "challenge"
	maxResolveRetries      = 4

	fieldSubjectID  = "subject_id"
	fieldChannel    = "channel"
	fieldPurpose    = "purpose"
	fieldSecretHash = "secret_hash"
	fieldCreatedAt  = "created_at"
	fieldExpiresAt  = "expires_at"
)

// ChallengeStore persists pending challenges as Redis hashes so that several API
// instances can share them. Only the secret digest is written.
type ChallengeStore struct {
	client *red.Client
	prefix string
}

var _ port.ChallengeStore = (*ChallengeStore)(nil)

// NewChallengeStore constructs a store with the provided Redis client and key prefix.
func NewChallengeStore(client *red.Client, keyPrefix string) *ChallengeStore {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultChallengePrefix
	}
	return &ChallengeStore{client: client, prefix: prefix}
}

// Put writes the challenge and applies ttl to the key.
func (s *ChallengeStore) Put(ctx context.Context, challenge domain.Challenge, ttl time.Duration) error {
	switch {
	case strings.TrimSpace(challenge.ID) == "":
		return errors.New("challenge id is required")
	case challenge.SecretHash == "":
		return errors.New("challenge secret hash is required")
	case ttl <= 0:
		return errors.New("ttl must be positive")
	}

	key := s.key(challenge.ID)

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, map[string]any{
		fieldSubjectID:  challenge.SubjectID,
		fieldChannel:    string(challenge.Channel),
		fieldPurpose:    string(challenge.Purpose),
		fieldSecretHash: challenge.SecretHash,
		fieldCreatedAt:  strconv.FormatInt(challenge.CreatedAt.UnixMilli(), 10),
		fieldExpiresAt:  strconv.FormatInt(challenge.ExpiresAt.UnixMilli(), 10),
	})
	pipe.Expire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis store challenge: %w", err)
	}
	return nil
}

// Get loads the challenge by id.
func (s *ChallengeStore) Get(ctx context.Context, id string) (*domain.Challenge, error) {
	if strings.TrimSpace(id) == "" {
		return nil, repository.ErrNotFound
	}

	values, err := s.client.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall challenge: %w", err)
	}
	if len(values) == 0 {
		return nil, repository.ErrNotFound
	}

	return decodeChallenge(id, values)
}

// Delete removes the challenge. Deleting an unknown id is not an error.
func (s *ChallengeStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("redis delete challenge: %w", err)
	}
	return nil
}

// Resolve watches the key, lets decide inspect the challenge and deletes it inside
// MULTI/EXEC when asked. A concurrent writer aborts the transaction and the loop retries,
// so two racing callers can never both observe a challenge they are about to delete.
func (s *ChallengeStore) Resolve(ctx context.Context, id string, decide func(domain.Challenge) port.ChallengeDecision) (*domain.Challenge, port.ChallengeDecision, error) {
	if strings.TrimSpace(id) == "" {
		return nil, port.ChallengeKeep, repository.ErrNotFound
	}
	key := s.key(id)

	for i := 0; i < maxResolveRetries; i++ {
		var (
			record   *domain.Challenge
			decision = port.ChallengeKeep
		)

		err := s.client.Watch(ctx, func(tx *red.Tx) error {
			values, err := tx.HGetAll(ctx, key).Result()
			if err != nil {
				return err
			}
			if len(values) == 0 {
				return repository.ErrNotFound
			}

			record, err = decodeChallenge(id, values)
			if err != nil {
				return err
			}

			decision = decide(*record)
			if decision != port.ChallengeDelete {
				return nil
			}

			_, err = tx.TxPipelined(ctx, func(pipe red.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			return err
		}, key)

		if errors.Is(err, red.TxFailedErr) {
			continue
		}
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, port.ChallengeKeep, err
			}
			return nil, port.ChallengeKeep, fmt.Errorf("redis resolve challenge: %w", err)
		}
		return record, decision, nil
	}

	return nil, port.ChallengeKeep, fmt.Errorf("redis resolve challenge %s: %w", id, repository.ErrContention)
}

func (s *ChallengeStore) key(id string) string {
	return fmt.Sprintf("%s:%s", s.prefix, strings.TrimSpace(id))
}

func decodeChallenge(id string, values map[string]string) (*domain.Challenge, error) {
	hash := strings.TrimSpace(values[fieldSecretHash])
	if hash == "" {
		return nil, repository.ErrNotFound
	}

	createdAt, err := parseUnixMilli(values[fieldCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	expiresAt, err := parseUnixMilli(values[fieldExpiresAt])
	if err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}

	return &domain.Challenge{
		ID:         id,
		SubjectID:  values[fieldSubjectID],
		Channel:    domain.Channel(values[fieldChannel]),
		Purpose:    domain.ChallengePurpose(values[fieldPurpose]),
		SecretHash: hash,
		CreatedAt:  createdAt,
		ExpiresAt:  expiresAt,
	}, nil
}

func parseUnixMilli(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, errors.New("timestamp is empty")
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(v).UTC(), nil
}
