// Package session persists active sessions, the token blacklist, and the
// token-to-session index in Redis.
//
// # Key layout
//
//   - sg:<sid>  — JSON session blob, TTL = session lifetime
//   - sgt:<h>   — sha256(token) hex → sid, for both tokens of the current pair
//   - sgr:<sid> — sha256(refresh token) hex, the CAS cell for rotation
//   - sgb:<h>   — blacklist marker, TTL = remaining natural token lifetime
//
// # Rotation protocol
//
// Rotate runs one Lua script that compares the provided refresh hash against
// the CAS cell, swaps in the next pair, reindexes, and blacklists the old pair.
// There is no interleaving where the old and new refresh token are both valid,
// and a stale refresh token (hash mismatch) is reuse — the caller treats it as
// revoked.
package session
