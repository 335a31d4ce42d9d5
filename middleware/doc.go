// Package middleware exposes net/http middleware built on top of
// gridauth.Engine: bearer-token guards and per-class rate limiting.
//
// # Guards
//
//   - [Guard] — requires a valid access token; rejects with 401 otherwise.
//   - [Optional] — attaches the principal when a valid token is present,
//     passes anonymous requests through untouched.
//   - [RateLimit] — sliding-window quota enforcement with X-RateLimit headers.
//
// Each guard reads the Authorization header, calls Engine.ValidateAccess, and
// injects the validated principal into the request context.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself — all decisions are delegated to the
// engine.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access Redis (Engine handles I/O).
//   - Make authorization decisions beyond pass/reject from the Engine.
package middleware
