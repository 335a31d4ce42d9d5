// Package http is the gin transport for gridauth: the wallet authentication
// endpoints, the bearer-token middleware, and the rate-limit surface.
//
// # Endpoints
//
//   - POST /auth/challenge — issue a single-use login challenge
//   - POST /auth/login     — exchange a signed challenge for a token pair
//   - POST /auth/refresh   — rotate a token pair
//   - POST /auth/logout    — destroy the session and blacklist its tokens
//   - GET  /rate-limit/status — current window usage per operation class
//   - GET  /healthz        — Redis round-trip check
//   - GET  /metrics        — Prometheus text exposition
//
// Error responses carry a stable machine-readable code from [gridauth.Code]
// in the body: {"error": {"code": "...", "message": "..."}}.
//
// # What this package must NOT do
//
//   - Implement authentication decisions (delegates to the engine).
//   - Talk to Redis directly.
package http
