// Package wallet models Solana-style wallet identities: a validated [Address]
// value type (base58-encoded ed25519 public key) and pure signature
// verification against a declared message encoding.
//
// # What this package must NOT do
//
//   - Hold mutable state. Verification is a pure function and is safe to call
//     concurrently.
//   - Guess encodings. Callers declare how the wallet provider presented the
//     signed payload; nothing here infers it from the bytes.
//   - Touch Redis, tokens, or sessions.
package wallet
