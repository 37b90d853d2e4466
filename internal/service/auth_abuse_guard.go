package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type AuthAbuseScope string

const (
	AuthAbuseScopeLogin  AuthAbuseScope = "login"
	AuthAbuseScopeForgot AuthAbuseScope = "forgot"
)

// AuthAbusePolicy controls the exponential cooldown applied to repeated
// credential failures for one identity.
type AuthAbusePolicy struct {
	FreeAttempts int
	BaseDelay    time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	ResetWindow  time.Duration
}

func (p AuthAbusePolicy) normalized() AuthAbusePolicy {
	if p.FreeAttempts < 0 {
		p.FreeAttempts = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	if p.Multiplier < 1 {
		p.Multiplier = 2
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 5 * time.Minute
	}
	if p.ResetWindow <= 0 {
		p.ResetWindow = 15 * time.Minute
	}
	return p
}

type AuthAbuseGuard interface {
	Check(ctx context.Context, scope AuthAbuseScope, identity string) (time.Duration, error)
	RegisterFailure(ctx context.Context, scope AuthAbuseScope, identity string) (time.Duration, error)
	Reset(ctx context.Context, scope AuthAbuseScope, identity string) error
}

type RedisAuthAbuseGuard struct {
	client redis.UniversalClient
	prefix string
	policy AuthAbusePolicy
}

func NewRedisAuthAbuseGuard(client redis.UniversalClient, prefix string, policy AuthAbusePolicy) *RedisAuthAbuseGuard {
	if prefix == "" {
		prefix = "auth_abuse"
	}
	return &RedisAuthAbuseGuard{client: client, prefix: prefix, policy: policy.normalized()}
}

func (g *RedisAuthAbuseGuard) Check(ctx context.Context, scope AuthAbuseScope, identity string) (time.Duration, error) {
	if g.client == nil {
		return 0, nil
	}
	vals, err := g.client.HGetAll(ctx, g.stateKey(scope, identity)).Result()
	if err != nil {
		return 0, err
	}
	if len(vals) == 0 {
		return 0, nil
	}
	until, err := parseMillis(vals["cooldown_until_ms"])
	if err != nil {
		return 0, err
	}
	remaining := time.Until(until)
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

func (g *RedisAuthAbuseGuard) RegisterFailure(ctx context.Context, scope AuthAbuseScope, identity string) (time.Duration, error) {
	if g.client == nil {
		return 0, nil
	}
	key := g.stateKey(scope, identity)
	vals, err := g.client.HGetAll(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	failures := 0
	if raw, ok := vals["failures"]; ok {
		failures, err = strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("malformed failure count: %w", err)
		}
	}
	failures++

	cooldown := time.Duration(0)
	if failures > g.policy.FreeAttempts {
		cooldown = g.policy.BaseDelay
		for i := g.policy.FreeAttempts + 1; i < failures; i++ {
			cooldown = time.Duration(float64(cooldown) * g.policy.Multiplier)
			if cooldown >= g.policy.MaxDelay {
				cooldown = g.policy.MaxDelay
				break
			}
		}
	}

	now := time.Now()
	pipe := g.client.TxPipeline()
	pipe.HSet(ctx, key,
		"failures", failures,
		"last_failure_ms", now.UnixMilli(),
		"cooldown_until_ms", now.Add(cooldown).UnixMilli(),
	)
	pipe.Expire(ctx, key, g.policy.ResetWindow)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return cooldown, nil
}

func (g *RedisAuthAbuseGuard) Reset(ctx context.Context, scope AuthAbuseScope, identity string) error {
	if g.client == nil {
		return nil
	}
	return g.client.Del(ctx, g.stateKey(scope, identity)).Err()
}

func (g *RedisAuthAbuseGuard) stateKey(scope AuthAbuseScope, identity string) string {
	return fmt.Sprintf("%s:%s:%s", g.prefix, scope, hashIdentity(normalizeAuthIdentity(identity)))
}

func normalizeAuthIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

func hashIdentity(identity string) string {
	sum := sha256.Sum256([]byte(identity))
	return hex.EncodeToString(sum[:16])
}

func parseMillis(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed millis value: %w", err)
	}
	return time.UnixMilli(ms), nil
}
