package wallet

import (
	"crypto/ed25519"
	"crypto/subtle"
	"errors"

	"github.com/mr-tron/base58"
)

// ErrMalformedAddress is returned by [ParseAddress] when the input is not a
// base58-encoded 32-byte ed25519 public key.
var ErrMalformedAddress = errors.New("malformed wallet address")

// Address is a validated wallet public key. The zero value is not a valid
// address; construct one through [ParseAddress].
type Address struct {
	key ed25519.PublicKey
	str string
}

// ParseAddress decodes a base58 wallet address into an [Address]. The decoded
// key must be exactly ed25519.PublicKeySize bytes.
func ParseAddress(s string) (Address, error) {
	if s == "" {
		return Address{}, ErrMalformedAddress
	}

	raw, err := base58.Decode(s)
	if err != nil {
		return Address{}, ErrMalformedAddress
	}
	if len(raw) != ed25519.PublicKeySize {
		return Address{}, ErrMalformedAddress
	}

	return Address{
		key: ed25519.PublicKey(raw),
		str: base58.Encode(raw),
	}, nil
}

// String returns the canonical base58 form of the address.
func (a Address) String() string {
	return a.str
}

// IsZero reports whether the address was not constructed through ParseAddress.
func (a Address) IsZero() bool {
	return len(a.key) == 0
}

// Equal compares two addresses in constant time.
func (a Address) Equal(other Address) bool {
	if len(a.key) != len(other.key) {
		return false
	}
	return subtle.ConstantTimeCompare(a.key, other.key) == 1
}

// PublicKey returns the underlying ed25519 public key. The returned slice must
// not be mutated.
func (a Address) PublicKey() ed25519.PublicKey {
	return a.key
}
