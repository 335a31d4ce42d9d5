// Package challenge issues and tracks single-use, time-bounded login
// challenges. A challenge is a 256-bit random nonce embedded verbatim in a
// deterministic message the wallet signs out of band.
//
// # Consumption semantics
//
// Consume is the single commit point for replay prevention: a Lua script reads
// the challenge record, rejects consumed or logically expired nonces, and flips
// the consumed flag — one atomic unit, so N racing consumers of the same nonce
// yield exactly one success. Consumed records are retained as tombstones for
// the remainder of their Redis TTL so reuse reports already-used rather than
// not-found.
//
// Records live twice the logical TTL in Redis; logical expiry is checked
// against the stored expiry timestamp, which is why an expired-but-unconsumed
// nonce still fails Validate. Key prefix: ch:.
package challenge
