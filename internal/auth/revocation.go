package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Hons90/CRM/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// RevocationStore remembers token ids (jti) that must no longer be accepted.
// Entries only need to outlive the token they revoke.
//
// Revoke reports first=true only for the call that actually recorded the jti,
// so concurrent rotations of one refresh token have a single winner.
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) (first bool, err error)
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// RedisRevocationStore shares revocations across API instances.
type RedisRevocationStore struct {
	rdb *redis.Client
}

func NewRedisRevocationStore(rdb *redis.Client) *RedisRevocationStore {
	return &RedisRevocationStore{rdb: rdb}
}

func (s *RedisRevocationStore) Revoke(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	if jti == "" {
		return false, errors.New("jti is required")
	}
	if ttl <= 0 {
		// Already expired; nothing to remember.
		return true, nil
	}
	return s.rdb.SetNX(ctx, utils.RevokedTokenKey(jti), 1, ttl).Result()
}

func (s *RedisRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.rdb.Exists(ctx, utils.RevokedTokenKey(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MemoryRevocationStore is a single-process store for tests and local runs without Redis.
type MemoryRevocationStore struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{revoked: make(map[string]time.Time), now: time.Now}
}

func (s *MemoryRevocationStore) Revoke(_ context.Context, jti string, ttl time.Duration) (bool, error) {
	if jti == "" {
		return false, errors.New("jti is required")
	}
	if ttl <= 0 {
		return true, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if exp, ok := s.revoked[jti]; ok && now.Before(exp) {
		return false, nil
	}
	s.revoked[jti] = now.Add(ttl)
	return true, nil
}

func (s *MemoryRevocationStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.revoked[jti]
	if !ok {
		return false, nil
	}
	if !s.now().Before(exp) {
		delete(s.revoked, jti)
		return false, nil
	}
	return true, nil
}
