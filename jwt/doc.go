// Package jwt issues and verifies the signed access/refresh token pairs used
// by the gridauth engine. Both tokens are JWTs carrying minimal claims
// (user ID, wallet address, role, session ID) plus a typ claim that keeps
// access and refresh tokens from being swapped for each other.
//
// Signing is ed25519 (EdDSA) by default with HS256 as an option; verification
// supports kid-based key sets for rotation. Token encode/decode is pure and
// stateless — revocation and rotation atomicity live in the session store, not
// here.
package jwt
