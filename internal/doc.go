// Package internal holds cross-cutting helpers shared by the gridauth engine:
// nonce and ID generation, token digests, and secret truncation for audit
// output. Nothing here is part of the public API.
package internal
