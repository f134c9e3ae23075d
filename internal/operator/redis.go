package operator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/diagnosis/luxsuv-checkin/internal/domain"
	"github.com/diagnosis/luxsuv-checkin/pkg/clock"
)

// RedisStore keeps the session in Redis under a per-terminal key that
// expires with the session, so a restarted terminal keeps its operator.
type RedisStore struct {
	rdb   *redis.Client
	key   string
	clock clock.Clock
}

func NewRedisStore(rdb *redis.Client, terminalID string, c clock.Clock) *RedisStore {
	return &RedisStore{rdb: rdb, key: sessionKey(terminalID), clock: c}
}

func sessionKey(terminalID string) string {
	return "checkin:terminal:" + terminalID + ":operator"
}

func (r *RedisStore) Credential(ctx context.Context) (domain.OperatorCredential, error) {
	s, err := r.Current(ctx)
	if err != nil {
		return "", err
	}
	return s.Credential, nil
}

func (r *RedisStore) Current(ctx context.Context) (Session, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	data, err := r.rdb.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, domain.ErrNoOperatorCredential
	}
	if err != nil {
		return Session{}, fmt.Errorf("failed to load operator session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("failed to decode operator session: %w", err)
	}
	if s.Credential.IsZero() || !s.ExpiresAt.After(r.clock.Now()) {
		return Session{}, domain.ErrNoOperatorCredential
	}
	return s, nil
}

func (r *RedisStore) SignIn(ctx context.Context, s Session) error {
	now := r.clock.Now()
	if err := validate(s, now); err != nil {
		return err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode operator session: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.rdb.Set(ctx, r.key, data, s.ExpiresAt.Sub(now)).Err(); err != nil {
		return fmt.Errorf("failed to store operator session: %w", err)
	}
	return nil
}

func (r *RedisStore) SignOut(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.rdb.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("failed to clear operator session: %w", err)
	}
	return nil
}
