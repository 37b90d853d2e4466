package service

import (
	"context"
	"testing"
	"time"
)

func newTestAbuseGuard(t *testing.T) *RedisAuthAbuseGuard {
	t.Helper()
	_, client := startMiniredis(t)
	return NewRedisAuthAbuseGuard(client, "", AuthAbusePolicy{
		FreeAttempts: 2,
		BaseDelay:    time.Second,
		Multiplier:   2,
		MaxDelay:     8 * time.Second,
		ResetWindow:  15 * time.Minute,
	})
}

func TestAbuseGuardFreeAttemptsHaveNoCooldown(t *testing.T) {
	guard := newTestAbuseGuard(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		cooldown, err := guard.RegisterFailure(ctx, AuthAbuseScopeLogin, "alice")
		if err != nil {
			t.Fatalf("register failure %d: %v", i, err)
		}
		if cooldown != 0 {
			t.Fatalf("failure %d cooldown = %v, want 0", i, cooldown)
		}
	}
	remaining, err := guard.Check(ctx, AuthAbuseScopeLogin, "alice")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("remaining = %v, want 0", remaining)
	}
}

func TestAbuseGuardCooldownEscalatesAndCaps(t *testing.T) {
	guard := newTestAbuseGuard(t)
	ctx := context.Background()

	var last time.Duration
	for i := 0; i < 8; i++ {
		cooldown, err := guard.RegisterFailure(ctx, AuthAbuseScopeLogin, "alice")
		if err != nil {
			t.Fatalf("register failure %d: %v", i, err)
		}
		if cooldown < last {
			t.Fatalf("cooldown shrank: %v after %v", cooldown, last)
		}
		last = cooldown
	}
	if last != 8*time.Second {
		t.Fatalf("final cooldown = %v, want the 8s cap", last)
	}

	remaining, err := guard.Check(ctx, AuthAbuseScopeLogin, "alice")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if remaining <= 0 {
		t.Fatal("expected an active cooldown")
	}
}

func TestAbuseGuardIdentityNormalized(t *testing.T) {
	guard := newTestAbuseGuard(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := guard.RegisterFailure(ctx, AuthAbuseScopeLogin, "Alice@Example.com "); err != nil {
			t.Fatalf("register failure: %v", err)
		}
	}
	remaining, err := guard.Check(ctx, AuthAbuseScopeLogin, "alice@example.com")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if remaining <= 0 {
		t.Fatal("case and whitespace variants must share one failure counter")
	}
}

func TestAbuseGuardScopesAreIsolated(t *testing.T) {
	guard := newTestAbuseGuard(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := guard.RegisterFailure(ctx, AuthAbuseScopeLogin, "alice"); err != nil {
			t.Fatalf("register failure: %v", err)
		}
	}
	remaining, err := guard.Check(ctx, AuthAbuseScopeForgot, "alice")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("forgot scope remaining = %v, want 0", remaining)
	}
}

func TestAbuseGuardResetClearsCooldown(t *testing.T) {
	guard := newTestAbuseGuard(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := guard.RegisterFailure(ctx, AuthAbuseScopeLogin, "alice"); err != nil {
			t.Fatalf("register failure: %v", err)
		}
	}
	if err := guard.Reset(ctx, AuthAbuseScopeLogin, "alice"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	remaining, err := guard.Check(ctx, AuthAbuseScopeLogin, "alice")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("remaining after reset = %v, want 0", remaining)
	}
}

func TestAbuseGuardNilClientIsPermissive(t *testing.T) {
	guard := NewRedisAuthAbuseGuard(nil, "", AuthAbusePolicy{})
	ctx := context.Background()

	if _, err := guard.RegisterFailure(ctx, AuthAbuseScopeLogin, "alice"); err != nil {
		t.Fatalf("register failure: %v", err)
	}
	remaining, err := guard.Check(ctx, AuthAbuseScopeLogin, "alice")
	if err != nil || remaining != 0 {
		t.Fatalf("nil client must never throttle, got %v / %v", remaining, err)
	}
}
