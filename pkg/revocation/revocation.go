package revocation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const opTimeout = 3 * time.Second

// MemoryRevoker keeps revoked token IDs in process memory. Revocations are
// lost on restart and are not shared between instances.
type MemoryRevoker struct {
	mu     sync.Mutex
	tokens map[string]time.Time
	now    func() time.Time
}

// NewMemoryRevoker creates an empty MemoryRevoker.
func NewMemoryRevoker() *MemoryRevoker {
	return &MemoryRevoker{
		tokens: make(map[string]time.Time),
		now:    time.Now,
	}
}

// Revoke marks tokenID as revoked for ttl. A non-positive ttl is ignored.
func (r *MemoryRevoker) Revoke(tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[tokenID] = r.now().Add(ttl)
	r.sweep()
	return nil
}

// IsRevoked reports whether tokenID is currently revoked.
func (r *MemoryRevoker) IsRevoked(tokenID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	expiry, ok := r.tokens[tokenID]
	if !ok {
		return false, nil
	}
	if r.now().After(expiry) {
		delete(r.tokens, tokenID)
		return false, nil
	}
	return true, nil
}

// sweep drops expired entries. Caller holds mu.
func (r *MemoryRevoker) sweep() {
	now := r.now()
	for id, expiry := range r.tokens {
		if now.After(expiry) {
			delete(r.tokens, id)
		}
	}
}

// RedisRevoker stores revoked token IDs in Redis with an expiry, so every
// instance sharing the Redis server sees the same revocations.
type RedisRevoker struct {
	client *redis.Client
}

// NewRedisRevoker connects to Redis at addr and checks the connection.
func NewRedisRevoker(addr, password string) (*RedisRevoker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisRevoker{client: client}, nil
}

// Revoke marks tokenID as revoked for ttl. A non-positive ttl is ignored.
func (r *RedisRevoker) Revoke(tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return r.client.Set(ctx, key(tokenID), "1", ttl).Err()
}

// IsRevoked reports whether tokenID is currently revoked.
func (r *RedisRevoker) IsRevoked(tokenID string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	n, err := r.client.Exists(ctx, key(tokenID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Close closes the Redis connection.
func (r *RedisRevoker) Close() error {
	return r.client.Close()
}

func key(tokenID string) string {
	return "revoked:" + tokenID
}
