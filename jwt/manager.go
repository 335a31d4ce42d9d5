package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the token signature algorithm.
type SigningMethod string

const (
	// MethodEd25519 signs tokens with EdDSA. Default.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 signs tokens with HMAC-SHA256.
	MethodHS256 SigningMethod = "hs256"
)

// TokenType distinguishes the two halves of a pair via the typ claim.
type TokenType string

const (
	// TypeAccess marks short-lived per-request tokens.
	TypeAccess TokenType = "access"
	// TypeRefresh marks the longer-lived token used only to mint new pairs.
	TypeRefresh TokenType = "refresh"
)

var (
	// ErrTokenExpired is returned when the exp claim has passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenMalformed is returned when the input is not a parseable JWT.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrSignatureInvalid is returned when the signature does not verify.
	ErrSignatureInvalid = errors.New("token signature invalid")
	// ErrWrongTokenType is returned when an access token is presented where a
	// refresh token is required, or vice versa.
	ErrWrongTokenType = errors.New("wrong token type")
)

// Config holds token issuance and verification parameters.
type Config struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// RefreshThreshold is the fraction of total lifetime below which
	// RefreshStatus reports needsRefresh. Defaults to 0.2.
	RefreshThreshold float64

	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte
}

// Manager issues and verifies token pairs. Safe for concurrent use.
type Manager struct {
	config Config
}

// Claims is the payload carried by both token types.
type Claims struct {
	UID      string `json:"uid"`
	Wallet   string `json:"wlt"`
	Role     string `json:"role,omitempty"`
	Username string `json:"unm,omitempty"`
	SID      string `json:"sid"`
	Type     string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenPair is the result of issuing: a signed access/refresh pair plus the
// access token's expiry window.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	IssuedAt     time.Time
	ExpiresAt    time.Time
	ExpiresIn    time.Duration
}

// RefreshStatus reports whether a token is close enough to expiry that the
// caller should silently refresh.
type RefreshStatus struct {
	NeedsRefresh bool
	ExpiresIn    time.Duration
}

// NewManager validates cfg and returns a [Manager]. Access token lifetime must
// be strictly shorter than refresh token lifetime.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.AccessTTL >= cfg.RefreshTTL {
		return nil, errors.New("access TTL must be shorter than refresh TTL")
	}
	if cfg.RefreshThreshold == 0 {
		cfg.RefreshThreshold = 0.2
	}
	if cfg.RefreshThreshold <= 0 || cfg.RefreshThreshold >= 1 {
		return nil, errors.New("refresh threshold must be in (0, 1)")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("hs256 requires private key")
		}
	case MethodEd25519, "":
		cfg.SigningMethod = MethodEd25519
		if len(cfg.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.PublicKey) > 0 {
			if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.VerifyKeys) == 0 && len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires public key or verify key set")
		}
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, errors.New("verify key map contains empty kid")
			}
			if _, err := parseEdPublicKey(key); err != nil {
				return nil, fmt.Errorf("invalid ed25519 verify key for kid %q: %w", kid, err)
			}
		}
	default:
		return nil, errors.New("unsupported signing method")
	}
	if cfg.KeyID != "" && len(cfg.VerifyKeys) > 0 {
		if _, ok := cfg.VerifyKeys[cfg.KeyID]; !ok {
			return nil, errors.New("KeyID is not present in VerifyKeys")
		}
	}

	return &Manager{config: cfg}, nil
}

// IssuePair signs a fresh access/refresh pair for the session. The two tokens
// share uid, wallet, role, and sid; only typ and exp differ.
func (j *Manager) IssuePair(uid, walletAddress, role, sessionID, username string) (TokenPair, error) {
	now := time.Now()

	access, err := j.sign(uid, walletAddress, role, sessionID, username, TypeAccess, now, j.config.AccessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := j.sign(uid, walletAddress, role, sessionID, username, TypeRefresh, now, j.config.RefreshTTL)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		IssuedAt:     now,
		ExpiresAt:    now.Add(j.config.AccessTTL),
		ExpiresIn:    j.config.AccessTTL,
	}, nil
}

func (j *Manager) sign(uid, walletAddress, role, sessionID, username string, typ TokenType, now time.Time, ttl time.Duration) (string, error) {
	claims := Claims{
		UID:      uid,
		Wallet:   walletAddress,
		Role:     role,
		Username: username,
		SID:      sessionID,
		Type:     string(typ),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    j.config.Issuer,
		},
	}
	if j.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{j.config.Audience}
	}

	token := jwt.NewWithClaims(j.getMethod(), claims)
	if j.config.KeyID != "" {
		token.Header["kid"] = j.config.KeyID
	}

	signKey, err := j.getSignKey()
	if err != nil {
		return "", err
	}

	return token.SignedString(signKey)
}

// Verify parses and verifies a token of the expected type and returns its
// claims. Failures are typed: expired, malformed, bad signature, wrong type.
func (j *Manager) Verify(tokenStr string, expected TokenType) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{j.getMethod().Alg()}),
	}
	if j.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(j.config.Leeway))
	}
	if j.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(j.config.Issuer))
	}
	if j.config.Audience != "" {
		options = append(options, jwt.WithAudience(j.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != j.getMethod().Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}

		if len(j.config.VerifyKeys) > 0 {
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, errors.New("missing kid")
			}
			key, ok := j.config.VerifyKeys[kid]
			if !ok {
				return nil, errors.New("unknown kid")
			}
			return j.keyBytesToVerifyKey(key)
		}

		if j.config.KeyID != "" {
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, errors.New("missing kid")
			}
			if kid != j.config.KeyID {
				return nil, errors.New("unknown kid")
			}
		}

		return j.getVerifyKey()
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrSignatureInvalid
		default:
			return nil, ErrTokenMalformed
		}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenMalformed
	}
	if claims.Type != string(expected) {
		return nil, ErrWrongTokenType
	}

	return claims, nil
}

// RefreshStatus reports whether the access token's remaining lifetime has
// dropped below the configured fraction of its total lifetime. An expired or
// otherwise invalid token returns the verification error.
func (j *Manager) RefreshStatus(tokenStr string) (RefreshStatus, error) {
	claims, err := j.Verify(tokenStr, TypeAccess)
	if err != nil {
		return RefreshStatus{}, err
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return RefreshStatus{}, ErrTokenMalformed
	}

	now := time.Now()
	remaining := claims.ExpiresAt.Time.Sub(now)
	total := claims.ExpiresAt.Time.Sub(claims.IssuedAt.Time)
	if total <= 0 {
		return RefreshStatus{}, ErrTokenMalformed
	}

	return RefreshStatus{
		NeedsRefresh: float64(remaining) < j.config.RefreshThreshold*float64(total),
		ExpiresIn:    remaining,
	}, nil
}

func (j *Manager) getMethod() jwt.SigningMethod {
	switch j.config.SigningMethod {
	case MethodHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (j *Manager) getSignKey() (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodHS256:
		return j.config.PrivateKey, nil
	default:
		return parseEdPrivateKey(j.config.PrivateKey)
	}
}

func (j *Manager) getVerifyKey() (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodHS256:
		return j.config.PrivateKey, nil
	default:
		return parseEdPublicKey(j.config.PublicKey)
	}
}

func (j *Manager) keyBytesToVerifyKey(key []byte) (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodHS256:
		return key, nil
	default:
		return parseEdPublicKey(key)
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
