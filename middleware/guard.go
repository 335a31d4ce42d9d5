package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/empower-grid/gridauth"
)

type authResultContextKey struct{}

// AuthResultFromContext returns the principal injected by [Guard] or
// [Optional], if any.
func AuthResultFromContext(ctx context.Context) (*gridauth.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*gridauth.AuthResult)
	return res, ok
}

// Guard requires a valid bearer access token on every wrapped request. The
// validated principal is injected into the request context for downstream
// handlers.
func Guard(engine *gridauth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := requestContext(r)
			res, err := engine.ValidateAccess(ctx, token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx = context.WithValue(ctx, authResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Optional validates a bearer token when one is present but never rejects.
// Handlers ask [AuthResultFromContext] whether the request is authenticated.
func Optional(engine *gridauth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestContext(r)

			if engine != nil {
				if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
					if res, err := engine.ValidateAccess(ctx, token); err == nil {
						ctx = context.WithValue(ctx, authResultContextKey{}, res)
					}
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requestContext(r *http.Request) context.Context {
	ctx := gridauth.WithClientIP(r.Context(), clientIP(r))
	return gridauth.WithUserAgent(ctx, r.UserAgent())
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i > 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
