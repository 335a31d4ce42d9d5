// Package gridauth provides wallet-signature authentication for the EmpowerGrid
// backend: single-use signed challenges, ed25519 signature verification against
// base58 wallet addresses, JWT access/refresh token pairs with atomic rotation,
// Redis-backed session controls, and per-operation sliding-window rate limits.
//
// The package is designed for concurrent server workloads: Engine methods are safe
// to call from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// gridauth is the public surface. It exposes [Engine], [Builder], [Config], and
// value types (Identity, TokenPair, RateLimitResult, etc.). Orchestration lives in
// the Engine; reusable mechanisms live in the wallet, challenge, jwt, and session
// subpackages; rate limiting lives under internal/ and is never exported directly.
//
// # What this package must NOT do
//
//   - Expose Redis clients, key layouts, or encoding details in its public API.
//   - Perform I/O outside of Engine methods (construction via Builder is
//     allocation-only until Build).
//   - Decide business authorization. Role and reputation are carried as claims;
//     policy belongs to the caller.
//
// # Replay safety contract
//
// Login orders its checks as: nonce validity (read-only), signature verification,
// message-contains-nonce, and only then the atomic nonce consume. A forged
// signature never burns a challenge; a verified signature consumes it exactly
// once. Callers must not re-order these steps.
package gridauth
