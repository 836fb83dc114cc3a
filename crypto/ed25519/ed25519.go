// Package ed25519 wraps the standard library's crypto/ed25519 with the
// narrow surface the safety kernel's Signer needs: generate, sign, verify,
// derive-public-from-private. Ed25519 (RFC 8032) is deterministic in the
// message alone, so Sign never needs a random source and re-signing an
// already-signed payload reproduces the identical signature byte-for-byte.
package ed25519

import stded25519 "crypto/ed25519"

const (
	PublicKeySize  = stded25519.PublicKeySize
	PrivateKeySize = stded25519.PrivateKeySize
	SignatureSize  = stded25519.SignatureSize
	SeedSize       = stded25519.SeedSize
)

type (
	PublicKey  = stded25519.PublicKey
	PrivateKey = stded25519.PrivateKey
)

// NewKeyFromSeed derives a private key deterministically from a 32-byte seed.
func NewKeyFromSeed(seed []byte) PrivateKey {
	return stded25519.NewKeyFromSeed(seed)
}

// Sign returns the deterministic Ed25519 signature of message under privateKey.
func Sign(privateKey PrivateKey, message []byte) []byte {
	return stded25519.Sign(privateKey, message)
}

// Verify reports whether sig is a valid signature of message by publicKey.
func Verify(publicKey PublicKey, message []byte, sig []byte) bool {
	return stded25519.Verify(publicKey, message, sig)
}

// PublicFromPrivate extracts the public half of an Ed25519 private key.
func PublicFromPrivate(privateKey PrivateKey) PublicKey {
	pub, ok := stded25519.PrivateKey(privateKey).Public().(stded25519.PublicKey)
	if !ok {
		return nil
	}
	return PublicKey(pub)
}
