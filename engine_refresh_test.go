package gridauth

import (
	"context"
	"errors"
	"testing"
)

func TestRefreshRotatesPair(t *testing.T) {
	h := newAuthHarness(t, nil)
	ctx := context.Background()

	login := h.login(t)

	rotated, err := h.engine.Refresh(ctx, login.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if rotated.AccessToken == login.Tokens.AccessToken {
		t.Fatal("refresh must mint a new access token")
	}
	if rotated.RefreshToken == login.Tokens.RefreshToken {
		t.Fatal("refresh must rotate the refresh token")
	}
	if rotated.ExpiresIn <= 0 {
		t.Fatalf("implausible ExpiresIn %s", rotated.ExpiresIn)
	}

	// Both halves of the new pair are live, both halves of the old pair dead.
	if _, err := h.engine.ValidateAccess(ctx, rotated.AccessToken); err != nil {
		t.Fatalf("validate new access token: %v", err)
	}
	if _, err := h.engine.ValidateAccess(ctx, login.Tokens.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("old access token: expected ErrTokenRevoked, got %v", err)
	}

	snap := h.engine.MetricsSnapshot()
	if snap.Counters[MetricRefreshSuccess] != 1 {
		t.Fatalf("expected 1 refresh success, got %d", snap.Counters[MetricRefreshSuccess])
	}
}

func TestRefreshDetectsRotatedTokenReuse(t *testing.T) {
	h := newAuthHarness(t, nil)
	ctx := context.Background()

	login := h.login(t)
	if _, err := h.engine.Refresh(ctx, login.Tokens.RefreshToken); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	// Presenting the rotated-out refresh token is the classic theft signature.
	if _, err := h.engine.Refresh(ctx, login.Tokens.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("reuse: expected ErrTokenRevoked, got %v", err)
	}

	snap := h.engine.MetricsSnapshot()
	if snap.Counters[MetricRefreshReuseDetected] == 0 {
		t.Fatal("reuse metric not recorded")
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	h := newAuthHarness(t, nil)
	login := h.login(t)

	if _, err := h.engine.Refresh(context.Background(), login.Tokens.AccessToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("access-as-refresh: expected ErrTokenInvalid, got %v", err)
	}
}

func TestRefreshRejectsGarbage(t *testing.T) {
	h := newAuthHarness(t, nil)
	if _, err := h.engine.Refresh(context.Background(), "garbage"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestRefreshAfterLogout(t *testing.T) {
	h := newAuthHarness(t, nil)
	ctx := context.Background()

	login := h.login(t)
	if err := h.engine.Logout(ctx, login.Tokens.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := h.engine.Refresh(ctx, login.Tokens.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("refresh after logout: expected ErrTokenRevoked, got %v", err)
	}
}

func TestAccessRefreshStatus(t *testing.T) {
	h := newAuthHarness(t, nil)
	login := h.login(t)

	status, err := h.engine.AccessRefreshStatus(login.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.NeedsRefresh {
		t.Fatal("fresh access token must not need refresh")
	}
	if status.ExpiresIn <= 0 {
		t.Fatalf("implausible ExpiresIn %s", status.ExpiresIn)
	}

	if _, err := h.engine.AccessRefreshStatus("garbage"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}
