package gridauth

import (
	"context"
	"errors"
	"testing"
)

func TestLogoutInvalidatesWholePair(t *testing.T) {
	h := newAuthHarness(t, nil)
	ctx := context.Background()

	login := h.login(t)
	if err := h.engine.Logout(ctx, login.Tokens.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}

	if _, err := h.engine.ValidateAccess(ctx, login.Tokens.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("access after logout: expected ErrTokenRevoked, got %v", err)
	}
	if _, err := h.engine.Refresh(ctx, login.Tokens.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("refresh after logout: expected ErrTokenRevoked, got %v", err)
	}

	snap := h.engine.MetricsSnapshot()
	if snap.Counters[MetricSessionInvalidated] != 1 {
		t.Fatalf("expected 1 invalidated session, got %d", snap.Counters[MetricSessionInvalidated])
	}
}

func TestLogoutWithAccessToken(t *testing.T) {
	h := newAuthHarness(t, nil)
	ctx := context.Background()

	login := h.login(t)
	if err := h.engine.Logout(ctx, login.Tokens.AccessToken); err != nil {
		t.Fatalf("logout by access token: %v", err)
	}
	if _, err := h.engine.ValidateAccess(ctx, login.Tokens.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked, got %v", err)
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	h := newAuthHarness(t, nil)
	ctx := context.Background()

	login := h.login(t)
	if err := h.engine.Logout(ctx, login.Tokens.RefreshToken); err != nil {
		t.Fatalf("first logout: %v", err)
	}
	if err := h.engine.Logout(ctx, login.Tokens.RefreshToken); err != nil {
		t.Fatalf("second logout must be a no-op, got %v", err)
	}
	if err := h.engine.Logout(ctx, "never-issued"); err != nil {
		t.Fatalf("logout of unknown token must be a no-op, got %v", err)
	}
}

func TestLogoutOrphanTokenStaysBlacklisted(t *testing.T) {
	h := newAuthHarness(t, nil)
	ctx := context.Background()

	login := h.login(t)

	// Destroy the session via the refresh token, then log out the access
	// token. Its session is gone but the token itself still verifies, so it
	// must be pinned to the blacklist rather than silently ignored.
	if err := h.engine.Logout(ctx, login.Tokens.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if err := h.engine.Logout(ctx, login.Tokens.AccessToken); err != nil {
		t.Fatalf("orphan logout: %v", err)
	}
	if _, err := h.engine.ValidateAccess(ctx, login.Tokens.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked, got %v", err)
	}
}
