// Package safety implements the consensus safety kernel: the component that
// owns a validator's consensus private key and the small persistent state
// encoding its voting history, and is the sole gatekeeper for every
// signature the validator produces (proposals, votes, timeouts).
//
// Block execution, networking, the pacemaker/leader-election policy, the
// mempool, and the concrete backing store are all external collaborators;
// this package consumes them only through the interfaces declared here.
package safety

import (
	"github.com/ethereum/go-ethereum/common"
)

// NextEpochState describes the validator set and quorum weight that take
// effect once the enclosing LedgerInfo or QuorumCert is committed.
type NextEpochState struct {
	Epoch      uint64
	Validators []ValidatorInfo
}

// Verifier builds the in-memory ValidatorVerifier this epoch state implies.
func (s *NextEpochState) Verifier() (*Verifier, error) {
	return NewVerifier(s.Validators)
}

// BlockInfo is a commitment to the result of executing a block: which block,
// at what epoch/round, and the state it produced.
type BlockInfo struct {
	Epoch           uint64
	Round           uint64
	BlockID         common.Hash
	ExecutedStateID common.Hash
	Version         uint64
	NextEpochState  *NextEpochState
}

// Empty reports whether this is the placeholder BlockInfo used by a
// LedgerInfo that commits nothing (the 3-chain rule was not satisfied).
func (b BlockInfo) Empty() bool {
	return b == BlockInfo{}
}

// VoteData binds a proposed block to its parent. A vote's signature covers
// its LedgerInfo, not the VoteData. Viewed through a QuorumCert formed over this vote,
// Proposed becomes the QC's certified_block and Parent becomes the QC's
// parent_block.
type VoteData struct {
	Proposed BlockInfo
	Parent   BlockInfo
}

// LedgerInfo is a commitment over a BlockInfo, optionally carrying the next
// validator set when it ends an epoch. ConsensusDataHash is filled in by the
// execution pipeline; the kernel only ever produces a zero hash here.
type LedgerInfo struct {
	CommitInfo        BlockInfo
	ConsensusDataHash common.Hash
}

// EndsEpoch reports whether this LedgerInfo carries a next validator set.
func (li LedgerInfo) EndsEpoch() bool {
	return li.CommitInfo.NextEpochState != nil
}

// LedgerInfoWithSignatures pairs a LedgerInfo with the aggregated signatures
// of the quorum that certified it.
type LedgerInfoWithSignatures struct {
	LedgerInfo LedgerInfo
	Signatures AggregateSignature
}

// AggregateSignature is a BLS12-381 aggregate signature plus the identities
// of the signers it was built from, so a Verifier can reconstruct which
// aggregate public key to check it against.
type AggregateSignature struct {
	Signers   []common.Address
	Signature []byte
}

// QuorumCert is the aggregated proof that a quorum of validators certified a
// block. QuorumCert "ends the epoch" when its VoteData's certified block
// carries a NextEpochState.
type QuorumCert struct {
	VoteData   VoteData
	LedgerInfo LedgerInfoWithSignatures
}

// EndsEpoch reports whether this QC's certified block ends the epoch.
func (qc QuorumCert) EndsEpoch() bool {
	return qc.VoteData.Proposed.NextEpochState != nil
}

// Block is a leader's proposal: the payload it carries is opaque to the
// kernel, which never inspects transaction contents.
type Block struct {
	Epoch     uint64
	Round     uint64
	Author    common.Address
	Payload   []byte
	QC        QuorumCert
	Timestamp uint64
	Signature []byte
}

// AccumulatorExtensionProof attests that applying Block's payload on top of
// QC.VoteData.Proposed's executed state produces a specific new state.
// Verification of the proof itself belongs to the execution pipeline; the
// kernel only checks that the proof is anchored to the QC it expects.
type AccumulatorExtensionProof struct {
	ExtendsFrom    common.Hash
	ResultRootHash common.Hash
	ResultVersion  uint64
}

// VoteProposal is what the execution pipeline hands the kernel to request a
// vote: the candidate block, the accumulator extension it produces, and the
// next epoch state if voting for this block would end the epoch.
type VoteProposal struct {
	Block                     Block
	AccumulatorExtensionProof AccumulatorExtensionProof
	NextEpochState            *NextEpochState
}

// Vote is a validator's signed endorsement of a VoteProposal.
type Vote struct {
	VoteData   VoteData
	Author     common.Address
	LedgerInfo LedgerInfo
	Signature  []byte
}

// Timeout is a validator's declaration that it gave up waiting on round.
type Timeout struct {
	Epoch uint64
	Round uint64
}

// ConsensusState is a read-only snapshot of the kernel's persistent state.
type ConsensusState struct {
	Epoch           uint64
	LastVotedRound  uint64
	PreferredRound  uint64
	Waypoint        Waypoint
}
