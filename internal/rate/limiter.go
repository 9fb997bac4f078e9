package rate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds limiter tuning parameters.
type Config struct {
	Prefix           string
	MaxPerIdentity   int
	IdentityWindow   time.Duration
	EnableIPThrottle bool
	MaxPerIP         int
	IPWindow         time.Duration
}

// Limiter counts issuance attempts in Redis.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "vg"
	}
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// AllowIssue records one issuance attempt for identity (and ip when IP
// throttling is on) and returns ErrRateLimited once a budget is exceeded.
// The identity counter is charged before the IP counter.
func (l *Limiter) AllowIssue(ctx context.Context, identity, ip string) error {
	count, err := l.incrementWithTTL(ctx, l.identityKey(identity), l.config.IdentityWindow)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxPerIdentity) {
		return ErrRateLimited
	}

	if l.config.EnableIPThrottle && ip != "" {
		count, err = l.incrementWithTTL(ctx, l.ipKey(ip), l.config.IPWindow)
		if err != nil {
			return err
		}
		if count > int64(l.config.MaxPerIP) {
			return ErrRateLimited
		}
	}

	return nil
}

// Reset clears the counters for identity and ip.
func (l *Limiter) Reset(ctx context.Context, identity, ip string) error {
	keys := []string{l.identityKey(identity)}
	if ip != "" {
		keys = append(keys, l.ipKey(ip))
	}
	if err := l.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

func (l *Limiter) identityKey(identity string) string {
	sum := sha256.Sum256([]byte(identity))
	return l.config.Prefix + ":i:" + hex.EncodeToString(sum[:16])
}

func (l *Limiter) ipKey(ip string) string {
	return l.config.Prefix + ":ip:" + ip
}
