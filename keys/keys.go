// Package keys wraps secp256k1 key handling for the ledger: deriving public
// identifiers, signing arbitrary messages and verifying hex-encoded signatures.
package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

const (
	PrivateKeySize = secp256k1.PrivKeyBytesLen

	// rawPubKeySize is the X||Y form without the 0x04 prefix.
	rawPubKeySize = 64
	// rawSignatureSize is the fixed-width r||s form.
	rawSignatureSize = 64
)

var (
	ErrInvalidPrivateKey = errors.New("keys: invalid secp256k1 private key")
	ErrInvalidPublicKey  = errors.New("keys: invalid secp256k1 public key")
	ErrInvalidSignature  = errors.New("keys: invalid signature encoding")
)

// Signer is the handle a key provider hands to the ledger. It must be able to
// derive its own public identifier and sign an arbitrary byte string.
type Signer interface {
	PublicID() string
	Sign(msg []byte) ([]byte, error)
}

// PrivateKey is a secp256k1 Signer.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// GenerateKey creates a fresh random key.
func GenerateKey() (*PrivateKey, error) {
	k, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate secp256k1 key: %w", err)
	}
	return &PrivateKey{key: k}, nil
}

// PrivateKeyFromBytes parses a 32-byte big-endian scalar.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != PrivateKeySize {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidPrivateKey, PrivateKeySize, len(b))
	}
	var scalar secp256k1.ModNScalar
	if overflow := scalar.SetByteSlice(b); overflow || scalar.IsZero() {
		return nil, ErrInvalidPrivateKey
	}
	return &PrivateKey{key: secp256k1.NewPrivateKey(&scalar)}, nil
}

// PrivateKeyFromHex parses a hex-encoded private key, tolerating a 0x prefix
// and surrounding whitespace.
func PrivateKeyFromHex(s string) (*PrivateKey, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	return PrivateKeyFromBytes(b)
}

// Hex returns the private scalar as lowercase hex.
func (k *PrivateKey) Hex() string {
	return hex.EncodeToString(k.key.Serialize())
}

// PublicKey returns the curve point matching k.
func (k *PrivateKey) PublicKey() *secp256k1.PublicKey {
	return k.key.PubKey()
}

// PublicID is the compressed public key, hex encoded.
func (k *PrivateKey) PublicID() string {
	return hex.EncodeToString(k.key.PubKey().SerializeCompressed())
}

// Sign produces a DER signature over SHA-256(msg). Signing is deterministic
// (RFC 6979).
func (k *PrivateKey) Sign(msg []byte) ([]byte, error) {
	digest := sha256.Sum256(msg)
	return ecdsa.Sign(k.key, digest[:]).Serialize(), nil
}

// ParsePublicID decodes a hex public identifier. Compressed (33 bytes),
// uncompressed (65 bytes) and raw X||Y (64 bytes) encodings are accepted.
func ParsePublicID(id string) (*secp256k1.PublicKey, error) {
	b, err := hex.DecodeString(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	if len(b) == rawPubKeySize {
		b = append([]byte{secp256k1.PubKeyFormatUncompressed}, b...)
	}
	pub, err := secp256k1.ParsePubKey(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return pub, nil
}

// SamePublicID reports whether two identifiers decode to the same curve point.
func SamePublicID(a, b string) bool {
	pa, err := ParsePublicID(a)
	if err != nil {
		return false
	}
	pb, err := ParsePublicID(b)
	if err != nil {
		return false
	}
	return pa.IsEqual(pb)
}

// ParseSignature decodes either a DER signature or a fixed 64-byte r||s pair.
func ParseSignature(b []byte) (*ecdsa.Signature, error) {
	if len(b) != rawSignatureSize {
		sig, err := ecdsa.ParseDERSignature(b)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		return sig, nil
	}

	var r, s secp256k1.ModNScalar
	if overflow := r.SetByteSlice(b[:32]); overflow || r.IsZero() {
		return nil, ErrInvalidSignature
	}
	if overflow := s.SetByteSlice(b[32:]); overflow || s.IsZero() {
		return nil, ErrInvalidSignature
	}
	return ecdsa.NewSignature(&r, &s), nil
}

// Verify checks a hex signature made over SHA-256(msg) by publicID. Every
// decoding failure is reported as an invalid signature.
func Verify(publicID string, msg []byte, sigHex string) bool {
	pub, err := ParsePublicID(publicID)
	if err != nil {
		return false
	}
	raw, err := hex.DecodeString(sigHex)
	if err != nil {
		return false
	}
	sig, err := ParseSignature(raw)
	if err != nil {
		return false
	}
	digest := sha256.Sum256(msg)
	return sig.Verify(digest[:], pub)
}
