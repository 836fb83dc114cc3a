package safety

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tos-network/safetyrules/crypto/bls"
)

// Sentinel errors for constructing a Verifier, in the teacher's
// New()-validates-its-arguments style (see dpos.New in the teacher repo).
var (
	errNoValidators    = errors.New("safety: validator set must not be empty")
	errZeroWeight      = errors.New("safety: validator weight must be > 0")
	errDuplicateSigner = errors.New("safety: duplicate validator address")
)

// ValidatorInfo is one validator's voting weight and BLS12-381 public key
// within a given epoch's validator set.
type ValidatorInfo struct {
	Address   common.Address
	Weight    uint64
	PublicKey []byte // compressed BLS12-381 G1 public key
}

// Verifier is the in-memory representation of one epoch's validator set: who
// the signers are, how much weight each carries, and the quorum threshold
// aggregate signatures must meet. A Verifier is immutable once built and is
// replaced wholesale — never mutated in place — at each epoch transition, so
// a reference held for the duration of one kernel operation stays valid.
type Verifier struct {
	byAddress    map[common.Address]ValidatorInfo
	totalWeight  uint64
	quorumWeight uint64
}

// NewVerifier builds a Verifier for a validator set, rejecting an empty set,
// a zero-weight validator, or a duplicate address.
func NewVerifier(validators []ValidatorInfo) (*Verifier, error) {
	if len(validators) == 0 {
		return nil, errNoValidators
	}
	byAddress := make(map[common.Address]ValidatorInfo, len(validators))
	var total uint64
	for _, v := range validators {
		if v.Weight == 0 {
			return nil, errZeroWeight
		}
		if _, dup := byAddress[v.Address]; dup {
			return nil, errDuplicateSigner
		}
		byAddress[v.Address] = v
		total += v.Weight
	}
	return &Verifier{
		byAddress:    byAddress,
		totalWeight:  total,
		quorumWeight: RequiredQuorumWeight(total),
	}, nil
}

// RequiredQuorumWeight returns the minimum weight for a Byzantine quorum
// (more than 2/3) out of total.
func RequiredQuorumWeight(total uint64) uint64 {
	if total == 0 {
		return 1
	}
	return (2*total)/3 + 1
}

// TotalWeight returns the sum of voting weight across the validator set.
func (v *Verifier) TotalWeight() uint64 { return v.totalWeight }

// QuorumWeight returns the minimum weight required for a valid quorum.
func (v *Verifier) QuorumWeight() uint64 { return v.quorumWeight }

// VerifyAggregate checks that sig.Signers together carry quorum weight and
// that sig.Signature is a valid BLS12-381 aggregate signature by exactly
// those signers over messageHash.
func (v *Verifier) VerifyAggregate(messageHash common.Hash, sig AggregateSignature) error {
	if len(sig.Signers) == 0 {
		return &InvalidQuorumCertificateError{Reason: "no signers"}
	}
	seen := make(map[common.Address]struct{}, len(sig.Signers))
	pubkeys := make([][]byte, 0, len(sig.Signers))
	var weight uint64
	for _, addr := range sig.Signers {
		if _, dup := seen[addr]; dup {
			return &InvalidQuorumCertificateError{Reason: "duplicate signer " + addr.Hex()}
		}
		seen[addr] = struct{}{}
		info, ok := v.byAddress[addr]
		if !ok {
			return &InvalidQuorumCertificateError{Reason: "unknown signer " + addr.Hex()}
		}
		weight += info.Weight
		pubkeys = append(pubkeys, info.PublicKey)
	}
	if weight < v.quorumWeight {
		return &InvalidQuorumCertificateError{Reason: "signers do not carry quorum weight"}
	}
	if !bls.VerifyFastAggregate(pubkeys, sig.Signature, messageHash[:]) {
		return &InvalidQuorumCertificateError{Reason: "aggregate signature verification failed"}
	}
	return nil
}
