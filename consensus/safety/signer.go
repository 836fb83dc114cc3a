package safety

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/tos-network/safetyrules/crypto/ed25519"
)

// Signer wraps the validator's consensus private key. Signing is
// deterministic per (key, payload): re-signing an already-recorded message
// on retry reproduces the same bytes rather than risking a second, distinct
// signature over the same content — the class of bug that produces
// accidental equivocation.
type Signer struct {
	author  common.Address
	private ed25519.PrivateKey
}

// NewSigner binds a consensus private key to the validator's author identity.
func NewSigner(author common.Address, private ed25519.PrivateKey) *Signer {
	return &Signer{author: author, private: private}
}

// Author returns the validator address this signer signs on behalf of.
func (s *Signer) Author() common.Address { return s.author }

// PublicKey returns the Ed25519 public key corresponding to the private key.
func (s *Signer) PublicKey() ed25519.PublicKey {
	return ed25519.PublicFromPrivate(s.private)
}

// Sign signs an arbitrary hashed payload.
func (s *Signer) Sign(hash common.Hash) []byte {
	return ed25519.Sign(s.private, hash[:])
}
