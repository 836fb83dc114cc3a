// Package bls wraps github.com/supranational/blst's BLS12-381 bindings with
// the narrow surface the validator verifier needs: aggregate a quorum of
// per-validator signatures into one, and verify that aggregate against the
// matching set of public keys. Adapted from the BLS12-381 account-signer
// scheme in the teacher repo's accountsigner package, which used the same
// blst primitives (P1/P2 affine points, AggregateCompressed, KeyGen) to sign
// and verify individual account transactions rather than consensus QCs.
package bls

import (
	"errors"
	"io"

	blst "github.com/supranational/blst/bindings/go"
)

const (
	PrivateKeySize = 32
	PublicKeySize  = 48 // compressed G1
	SignatureSize  = 96 // compressed G2
)

// ErrInvalidKeyOrSignature is returned for malformed keys, signatures, or an
// empty aggregation set.
var ErrInvalidKeyOrSignature = errors.New("bls: invalid key or signature")

// domainSeparationTag binds signatures to this protocol so they cannot be
// replayed against an unrelated BLS12-381 signing scheme.
var domainSeparationTag = []byte("SAFETYRULES_BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_")

// GeneratePrivateKey derives a new BLS12-381 secret key from randomness read
// from r.
func GeneratePrivateKey(r io.Reader) ([]byte, error) {
	ikm := make([]byte, PrivateKeySize)
	if _, err := io.ReadFull(r, ikm); err != nil {
		return nil, err
	}
	sk := blst.KeyGen(ikm)
	if sk == nil {
		return nil, ErrInvalidKeyOrSignature
	}
	out := append([]byte(nil), sk.Serialize()...)
	sk.Zeroize()
	return out, nil
}

// PublicKey derives the compressed G1 public key for a secret key.
func PublicKey(priv []byte) ([]byte, error) {
	sk, err := secretKeyFromBytes(priv)
	if err != nil {
		return nil, err
	}
	return new(blst.P1Affine).From(sk).Compress(), nil
}

// Sign signs hash with priv, returning a compressed G2 signature.
func Sign(priv []byte, hash []byte) ([]byte, error) {
	sk, err := secretKeyFromBytes(priv)
	if err != nil {
		return nil, err
	}
	return new(blst.P2Affine).Sign(sk, hash, domainSeparationTag).Compress(), nil
}

// Verify checks a single compressed signature against a single compressed
// public key over hash.
func Verify(pub []byte, sig []byte, hash []byte) bool {
	if len(pub) != PublicKeySize || len(sig) != SignatureSize {
		return false
	}
	var s blst.P2Affine
	return s.VerifyCompressed(sig, true, pub, true, hash, domainSeparationTag)
}

// AggregatePublicKeys combines compressed G1 public keys into one compressed
// aggregate public key.
func AggregatePublicKeys(pubkeys [][]byte) ([]byte, error) {
	if len(pubkeys) == 0 {
		return nil, ErrInvalidKeyOrSignature
	}
	agg := new(blst.P1Aggregate)
	if !agg.AggregateCompressed(pubkeys, true) {
		return nil, ErrInvalidKeyOrSignature
	}
	out := agg.ToAffine()
	if out == nil || !out.KeyValidate() {
		return nil, ErrInvalidKeyOrSignature
	}
	return out.Compress(), nil
}

// AggregateSignatures combines compressed G2 signatures into one compressed
// aggregate signature.
func AggregateSignatures(signatures [][]byte) ([]byte, error) {
	if len(signatures) == 0 {
		return nil, ErrInvalidKeyOrSignature
	}
	agg := new(blst.P2Aggregate)
	if !agg.AggregateCompressed(signatures, true) {
		return nil, ErrInvalidKeyOrSignature
	}
	out := agg.ToAffine()
	if out == nil || !out.SigValidate(false) {
		return nil, ErrInvalidKeyOrSignature
	}
	return out.Compress(), nil
}

// VerifyFastAggregate aggregates pubkeys and checks signature (itself already
// an aggregate of matching per-validator signatures) against the result, all
// over one message hash. This is the verification a quorum certificate needs:
// every signer attests to the exact same block hash.
func VerifyFastAggregate(pubkeys [][]byte, signature []byte, hash []byte) bool {
	aggPub, err := AggregatePublicKeys(pubkeys)
	if err != nil {
		return false
	}
	return Verify(aggPub, signature, hash)
}

func secretKeyFromBytes(priv []byte) (*blst.SecretKey, error) {
	if len(priv) != PrivateKeySize {
		return nil, ErrInvalidKeyOrSignature
	}
	sk := new(blst.SecretKey).Deserialize(priv)
	if sk == nil {
		return nil, ErrInvalidKeyOrSignature
	}
	return sk, nil
}
