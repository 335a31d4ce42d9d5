package wallet

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"errors"

	"github.com/mr-tron/base58"
)

// MessageEncoding declares how the wallet provider presented the signed
// payload. Different providers sign different byte representations of the same
// challenge message, so the encoding is explicit and never inferred.
type MessageEncoding string

const (
	// EncodingUTF8 signs the raw message bytes.
	EncodingUTF8 MessageEncoding = "utf8"
	// EncodingHex signs the lowercase hex encoding of the message.
	EncodingHex MessageEncoding = "hex"
	// EncodingBase58 signs the base58 encoding of the message.
	EncodingBase58 MessageEncoding = "base58"
	// EncodingBase64 signs the standard base64 encoding of the message.
	EncodingBase64 MessageEncoding = "base64"
)

var (
	// ErrMalformedSignature is returned when the signature does not decode to
	// exactly 64 raw bytes.
	ErrMalformedSignature = errors.New("malformed signature")
	// ErrSignatureMismatch is returned when a well-formed signature does not
	// verify against the address and message.
	ErrSignatureMismatch = errors.New("signature mismatch")
	// ErrUnknownEncoding is returned for a MessageEncoding this package does
	// not support.
	ErrUnknownEncoding = errors.New("unknown message encoding")
)

// DecodeSignature decodes a wallet signature presented as base58 or base64 and
// enforces the raw 64-byte ed25519 signature size before any cryptographic
// work runs.
func DecodeSignature(s string) ([]byte, error) {
	if s == "" {
		return nil, ErrMalformedSignature
	}

	if raw, err := base58.Decode(s); err == nil && len(raw) == ed25519.SignatureSize {
		return raw, nil
	}
	if raw, err := base64.StdEncoding.DecodeString(s); err == nil && len(raw) == ed25519.SignatureSize {
		return raw, nil
	}

	return nil, ErrMalformedSignature
}

// EncodeMessage renders the message into the byte representation the wallet
// provider signed.
func EncodeMessage(message string, encoding MessageEncoding) ([]byte, error) {
	switch encoding {
	case EncodingUTF8, "":
		return []byte(message), nil
	case EncodingHex:
		return []byte(hex.EncodeToString([]byte(message))), nil
	case EncodingBase58:
		return []byte(base58.Encode([]byte(message))), nil
	case EncodingBase64:
		return []byte(base64.StdEncoding.EncodeToString([]byte(message))), nil
	default:
		return nil, ErrUnknownEncoding
	}
}

// Verify checks that signature proves control of the private key behind
// address for the given message and encoding. It returns nil on success and a
// typed error otherwise. Verify holds no state and is safe for concurrent use.
func Verify(message, signature string, address Address, encoding MessageEncoding) error {
	if address.IsZero() {
		return ErrMalformedAddress
	}

	sig, err := DecodeSignature(signature)
	if err != nil {
		return err
	}

	payload, err := EncodeMessage(message, encoding)
	if err != nil {
		return err
	}

	if !ed25519.Verify(address.PublicKey(), payload, sig) {
		return ErrSignatureMismatch
	}

	return nil
}
