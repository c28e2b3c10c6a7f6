// Package sig implements the Ed25519 verification primitive of §4.2: a
// pure, I/O-free function that checks a hex-encoded signature over a
// payload against a hex-encoded public key.
package sig

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/ed25519"
)

// SHA256Hex returns the lowercase hex SHA-256 digest of data, used for
// registry key fingerprints and content-addressed snapshot inputs.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// VerifyEd25519Hex decodes publicKeyHex (64 hex chars, 32 bytes) and
// signatureHex (128 hex chars, 64 bytes) and reports whether signature is
// valid for payload under that key. Decoding failures (non-hex input, or
// the wrong byte length once decoded) are returned as errors; a
// successfully decoded but non-matching signature returns (false, nil) —
// this function never silently returns false for malformed input.
func VerifyEd25519Hex(payload []byte, publicKeyHex, signatureHex string) (bool, error) {
	publicKeyBytes, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return false, fmt.Errorf("failed to decode Ed25519 public key hex: %w", err)
	}
	signatureBytes, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false, fmt.Errorf("failed to decode Ed25519 signature hex: %w", err)
	}

	if len(publicKeyBytes) != ed25519.PublicKeySize {
		return false, fmt.Errorf("invalid Ed25519 public key length: expected %d bytes, got %d", ed25519.PublicKeySize, len(publicKeyBytes))
	}
	if len(signatureBytes) != ed25519.SignatureSize {
		return false, fmt.Errorf("invalid Ed25519 signature length: expected %d bytes, got %d", ed25519.SignatureSize, len(signatureBytes))
	}

	return ed25519.Verify(ed25519.PublicKey(publicKeyBytes), payload, signatureBytes), nil
}
