package gridauth

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"github.com/redis/go-redis/v9"
)

// mapIdentityProvider is the in-test identity backend: a plain map with an
// optional failure switch.
type mapIdentityProvider struct {
	mu       sync.Mutex
	byWallet map[string]Identity
	fail     bool
}

func newMapIdentityProvider() *mapIdentityProvider {
	return &mapIdentityProvider{byWallet: make(map[string]Identity)}
}

func (p *mapIdentityProvider) GetOrCreateByWallet(_ context.Context, walletAddress string) (Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return Identity{}, errors.New("identity backend down")
	}
	if id, ok := p.byWallet[walletAddress]; ok {
		return id, nil
	}
	id := Identity{
		ID:            uuid.NewString(),
		WalletAddress: walletAddress,
		CreatedAt:     time.Now(),
	}
	p.byWallet[walletAddress] = id
	return id, nil
}

func (p *mapIdentityProvider) GetByWallet(_ context.Context, walletAddress string) (Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return Identity{}, errors.New("identity backend down")
	}
	id, ok := p.byWallet[walletAddress]
	if !ok {
		return Identity{}, ErrRegistrationFailed
	}
	return id, nil
}

type authHarness struct {
	engine     *Engine
	mr         *miniredis.Miniredis
	ids        *mapIdentityProvider
	walletAddr string
	walletKey  ed25519.PrivateKey
}

func newAuthHarness(t *testing.T, mutate func(*Config)) *authHarness {
	t.Helper()
	return newAuthHarnessWithSink(t, mutate, nil)
}

func newAuthHarnessWithSink(t *testing.T, mutate func(*Config), sink AuditSink) *authHarness {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})

	jwtPub, jwtPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("jwt keys: %v", err)
	}

	cfg := defaultConfig()
	cfg.JWT.PrivateKey = jwtPriv
	cfg.JWT.PublicKey = jwtPub
	cfg.RateLimit.Enabled = false
	cfg.Metrics.Enabled = true
	if mutate != nil {
		mutate(&cfg)
	}

	ids := newMapIdentityProvider()
	builder := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithIdentityProvider(ids)
	if sink != nil {
		builder = builder.WithAuditSink(sink)
	}
	engine, err := builder.Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)

	walletPub, walletPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("wallet keys: %v", err)
	}

	return &authHarness{
		engine:     engine,
		mr:         mr,
		ids:        ids,
		walletAddr: base58.Encode(walletPub),
		walletKey:  walletPriv,
	}
}

func (h *authHarness) sign(message string) string {
	return base58.Encode(ed25519.Sign(h.walletKey, []byte(message)))
}

// login runs the complete challenge-sign-login round for the harness wallet.
func (h *authHarness) login(t *testing.T) *LoginResult {
	t.Helper()
	ctx := context.Background()

	ch, err := h.engine.IssueChallenge(ctx, h.walletAddr)
	if err != nil {
		t.Fatalf("issue challenge: %v", err)
	}

	result, err := h.engine.Login(ctx, LoginRequest{
		WalletAddress: h.walletAddr,
		Signature:     h.sign(ch.Message),
		Message:       ch.Message,
		Nonce:         ch.Nonce,
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return result
}

func TestLoginHappyPath(t *testing.T) {
	h := newAuthHarness(t, nil)
	ctx := context.Background()

	result := h.login(t)
	if result.Tokens.AccessToken == "" || result.Tokens.RefreshToken == "" {
		t.Fatal("login must return a full token pair")
	}
	if result.User.WalletAddress != h.walletAddr {
		t.Fatalf("identity wallet mismatch: %s", result.User.WalletAddress)
	}
	if result.User.Role != "participant" {
		t.Fatalf("auto-registered identity must carry the default role, got %s", result.User.Role)
	}
	if result.SessionID == "" {
		t.Fatal("login must create a session")
	}

	auth, err := h.engine.ValidateAccess(ctx, result.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("validate fresh access token: %v", err)
	}
	if auth.UserID != result.User.ID || auth.SessionID != result.SessionID {
		t.Fatalf("auth result mismatch: %+v", auth)
	}

	snap := h.engine.MetricsSnapshot()
	if snap.Counters[MetricLoginSuccess] != 1 {
		t.Fatalf("expected 1 login success, got %d", snap.Counters[MetricLoginSuccess])
	}
	if snap.Counters[MetricIdentityRegistered] != 1 {
		t.Fatalf("expected 1 registration, got %d", snap.Counters[MetricIdentityRegistered])
	}

	// A returning wallet must not register again.
	h.login(t)
	snap = h.engine.MetricsSnapshot()
	if snap.Counters[MetricIdentityRegistered] != 1 {
		t.Fatalf("returning wallet re-registered: %d", snap.Counters[MetricIdentityRegistered])
	}
}

func TestLoginChallengeStatesAreDistinct(t *testing.T) {
	h := newAuthHarness(t, func(cfg *Config) {
		cfg.Challenge.TTL = 50 * time.Millisecond
	})
	ctx := context.Background()

	// Unknown nonce.
	_, err := h.engine.Login(ctx, LoginRequest{
		WalletAddress: h.walletAddr,
		Signature:     h.sign("anything"),
		Message:       "anything",
		Nonce:         "ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff",
	})
	if !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("unknown nonce: expected ErrChallengeNotFound, got %v", err)
	}

	// Expired nonce: still present as a record, but past its logical TTL.
	ch, err := h.engine.IssueChallenge(ctx, h.walletAddr)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	time.Sleep(80 * time.Millisecond)
	_, err = h.engine.Login(ctx, LoginRequest{
		WalletAddress: h.walletAddr,
		Signature:     h.sign(ch.Message),
		Message:       ch.Message,
		Nonce:         ch.Nonce,
	})
	if !errors.Is(err, ErrExpiredChallenge) {
		t.Fatalf("expired nonce: expected ErrExpiredChallenge, got %v", err)
	}
}

func TestLoginReplayIsRejected(t *testing.T) {
	h := newAuthHarness(t, nil)
	ctx := context.Background()

	ch, err := h.engine.IssueChallenge(ctx, h.walletAddr)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	req := LoginRequest{
		WalletAddress: h.walletAddr,
		Signature:     h.sign(ch.Message),
		Message:       ch.Message,
		Nonce:         ch.Nonce,
	}

	if _, err := h.engine.Login(ctx, req); err != nil {
		t.Fatalf("first login: %v", err)
	}
	if _, err := h.engine.Login(ctx, req); !errors.Is(err, ErrChallengeAlreadyUsed) {
		t.Fatalf("replay: expected ErrChallengeAlreadyUsed, got %v", err)
	}

	snap := h.engine.MetricsSnapshot()
	if snap.Counters[MetricChallengeReplay] == 0 {
		t.Fatal("replay metric not recorded")
	}
}

func TestLoginRejectsForeignSignatureWithoutBurningNonce(t *testing.T) {
	h := newAuthHarness(t, nil)
	ctx := context.Background()

	ch, err := h.engine.IssueChallenge(ctx, h.walletAddr)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	_, foreignKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("foreign key: %v", err)
	}
	_, err = h.engine.Login(ctx, LoginRequest{
		WalletAddress: h.walletAddr,
		Signature:     base58.Encode(ed25519.Sign(foreignKey, []byte(ch.Message))),
		Message:       ch.Message,
		Nonce:         ch.Nonce,
	})
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}

	// A failed signature must not consume the challenge: signing correctly
	// afterwards still succeeds.
	if _, err := h.engine.Login(ctx, LoginRequest{
		WalletAddress: h.walletAddr,
		Signature:     h.sign(ch.Message),
		Message:       ch.Message,
		Nonce:         ch.Nonce,
	}); err != nil {
		t.Fatalf("retry with valid signature: %v", err)
	}
}

func TestLoginRejectsMessageWithoutNonce(t *testing.T) {
	h := newAuthHarness(t, nil)
	ctx := context.Background()

	ch, err := h.engine.IssueChallenge(ctx, h.walletAddr)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	// Signature is valid over the submitted message, but the message does not
	// embed the challenge nonce.
	stripped := "EmpowerGrid wants you to sign in."
	_, err = h.engine.Login(ctx, LoginRequest{
		WalletAddress: h.walletAddr,
		Signature:     h.sign(stripped),
		Message:       stripped,
		Nonce:         ch.Nonce,
	})
	if !errors.Is(err, ErrMessageNonceMismatch) {
		t.Fatalf("expected ErrMessageNonceMismatch, got %v", err)
	}
}

func TestLoginRejectsWalletBindingMismatch(t *testing.T) {
	h := newAuthHarness(t, nil)
	ctx := context.Background()

	// Challenge issued for one wallet, submitted by another. The other wallet
	// signs correctly, so only the binding check can reject it.
	otherPub, otherKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("other wallet: %v", err)
	}
	ch, err := h.engine.IssueChallenge(ctx, h.walletAddr)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	_, err = h.engine.Login(ctx, LoginRequest{
		WalletAddress: base58.Encode(otherPub),
		Signature:     base58.Encode(ed25519.Sign(otherKey, []byte(ch.Message))),
		Message:       ch.Message,
		Nonce:         ch.Nonce,
	})
	if !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("expected ErrChallengeNotFound for foreign wallet, got %v", err)
	}
}

func TestLoginRejectsMalformedAddress(t *testing.T) {
	h := newAuthHarness(t, nil)
	_, err := h.engine.Login(context.Background(), LoginRequest{
		WalletAddress: "not-a-wallet",
		Signature:     "x",
		Message:       "x",
		Nonce:         "x",
	})
	if !errors.Is(err, ErrMalformedAddress) {
		t.Fatalf("expected ErrMalformedAddress, got %v", err)
	}
}

func TestLoginWithoutAutoRegister(t *testing.T) {
	h := newAuthHarness(t, func(cfg *Config) {
		cfg.Identity.AutoRegister = false
	})
	ctx := context.Background()

	ch, err := h.engine.IssueChallenge(ctx, h.walletAddr)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	_, err = h.engine.Login(ctx, LoginRequest{
		WalletAddress: h.walletAddr,
		Signature:     h.sign(ch.Message),
		Message:       ch.Message,
		Nonce:         ch.Nonce,
	})
	if !errors.Is(err, ErrRegistrationFailed) {
		t.Fatalf("unknown wallet without auto-register: expected ErrRegistrationFailed, got %v", err)
	}
}

func TestLoginConcurrentSameChallengeSingleWinner(t *testing.T) {
	h := newAuthHarness(t, nil)
	ctx := context.Background()

	ch, err := h.engine.IssueChallenge(ctx, h.walletAddr)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	req := LoginRequest{
		WalletAddress: h.walletAddr,
		Signature:     h.sign(ch.Message),
		Message:       ch.Message,
		Nonce:         ch.Nonce,
	}

	const workers = 8
	start := make(chan struct{})
	results := make(chan error, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			_, err := h.engine.Login(ctx, req)
			results <- err
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	winners := 0
	for err := range results {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, ErrChallengeAlreadyUsed):
		default:
			t.Fatalf("unexpected login error: %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winning login, got %d", winners)
	}
}

func TestIssueChallengeUnboundWallet(t *testing.T) {
	h := newAuthHarness(t, nil)
	ctx := context.Background()

	// No wallet given: the challenge is unbound and any wallet may answer it.
	ch, err := h.engine.IssueChallenge(ctx, "")
	if err != nil {
		t.Fatalf("issue unbound challenge: %v", err)
	}
	if ch.Nonce == "" || ch.Message == "" {
		t.Fatal("unbound challenge must still carry nonce and message")
	}

	if _, err := h.engine.Login(ctx, LoginRequest{
		WalletAddress: h.walletAddr,
		Signature:     h.sign(ch.Message),
		Message:       ch.Message,
		Nonce:         ch.Nonce,
	}); err != nil {
		t.Fatalf("login with unbound challenge: %v", err)
	}
}

func TestLoginAppliesConfiguredDefaultRole(t *testing.T) {
	h := newAuthHarness(t, func(cfg *Config) {
		cfg.Identity.DefaultRole = "operator"
	})

	result := h.login(t)
	if result.User.Role != "operator" {
		t.Fatalf("expected configured default role, got %q", result.User.Role)
	}
}

func TestLoginSessionLivesToAbsoluteLifetime(t *testing.T) {
	h := newAuthHarness(t, func(cfg *Config) {
		cfg.JWT.RefreshTTL = time.Hour
		cfg.Session.AbsoluteSessionLifetime = 2 * time.Hour
	})
	ctx := context.Background()

	result := h.login(t)
	sess, err := h.engine.sessions.Get(ctx, result.SessionID)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}

	lo := time.Now().Add(110 * time.Minute).UnixMilli()
	hi := time.Now().Add(130 * time.Minute).UnixMilli()
	if sess.ExpiresAt < lo || sess.ExpiresAt > hi {
		t.Fatalf("session expiry must follow the absolute lifetime, got %d", sess.ExpiresAt)
	}
}

func TestIssueChallengeRejectsMalformedAddress(t *testing.T) {
	h := newAuthHarness(t, nil)
	if _, err := h.engine.IssueChallenge(context.Background(), "zzz"); !errors.Is(err, ErrMalformedAddress) {
		t.Fatalf("expected ErrMalformedAddress, got %v", err)
	}
}
