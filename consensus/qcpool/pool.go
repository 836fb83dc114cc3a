// Package qcpool assembles quorum certificates from individual validators'
// votes — the external collaborator a pacemaker/networking layer uses to
// turn the signed Votes a fleet of safety kernels produce into the
// QuorumCerts that feed back into Update. None of this runs inside the
// safety kernel: the kernel only ever signs or verifies, it never collects.
//
// Adapted from the teacher's consensus/bft VotePool: same equivocation
// detection via a (epoch, round) -> voted-block-hash map, same
// quorum-by-weight tally, generalized from a single Ed25519 signature per
// vote to a BLS partial signature that can be aggregated into the
// AggregateSignature the safety kernel's Verifier expects.
package qcpool

import (
	"errors"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tos-network/safetyrules/consensus/safety"
	"github.com/tos-network/safetyrules/crypto/bls"
)

var (
	ErrInvalidSubmission = errors.New("qcpool: submission is missing a vote, block id, or BLS signature")
	ErrEquivocation      = errors.New("qcpool: validator voted for two different blocks at the same (epoch, round)")
)

// Submission pairs a kernel-produced Vote with the submitting validator's BLS
// partial signature over the vote's LedgerInfo hash — the signature that, once
// aggregated with a quorum of others, becomes the QC's AggregateSignature.
// The Vote's own Signature field (Ed25519) authenticates the vote message
// itself and plays no further role here.
type Submission struct {
	Vote         *safety.Vote
	BLSSignature []byte
}

type voteKey struct {
	epoch, round uint64
	block        common.Hash
}

type instanceKey struct {
	epoch, round uint64
}

// Pool collects Submissions for one validator set and assembles QuorumCerts
// once a target accumulates quorum weight.
type Pool struct {
	mu sync.RWMutex

	weights  map[common.Address]uint64
	required uint64

	byTarget    map[voteKey]map[common.Address]Submission
	votedTarget map[instanceKey]map[common.Address]common.Hash
}

// New builds a Pool for a validator set's per-address voting weight.
func New(weights map[common.Address]uint64) *Pool {
	var total uint64
	for _, w := range weights {
		total += w
	}
	return &Pool{
		weights:     weights,
		required:    safety.RequiredQuorumWeight(total),
		byTarget:    make(map[voteKey]map[common.Address]Submission),
		votedTarget: make(map[instanceKey]map[common.Address]common.Hash),
	}
}

// RequiredWeight returns the quorum weight threshold for this pool.
func (p *Pool) RequiredWeight() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.required
}

// AddSubmission records a validator's vote. It returns (false, ErrEquivocation)
// if the same validator already voted for a different block at the same
// (epoch, round) — the cryptographically attributable fault the kernel's
// increasing-round rule exists to make rare, not impossible, since the pool
// sees votes from every validator, not just this one.
func (p *Pool) AddSubmission(s Submission) (bool, error) {
	if err := validateSubmission(s); err != nil {
		return false, err
	}
	proposed := s.Vote.VoteData.Proposed
	target := voteKey{epoch: proposed.Epoch, round: proposed.Round, block: proposed.BlockID}
	instance := instanceKey{epoch: proposed.Epoch, round: proposed.Round}
	author := s.Vote.Author

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.votedTarget[instance] == nil {
		p.votedTarget[instance] = make(map[common.Address]common.Hash)
	}
	if prev, ok := p.votedTarget[instance][author]; ok {
		if prev != proposed.BlockID {
			return false, ErrEquivocation
		}
		if existing, ok := p.byTarget[target]; ok {
			if _, exists := existing[author]; exists {
				return false, nil
			}
		}
	}
	p.votedTarget[instance][author] = proposed.BlockID

	if p.byTarget[target] == nil {
		p.byTarget[target] = make(map[common.Address]Submission)
	}
	p.byTarget[target][author] = s
	return true, nil
}

// Tally returns the accumulated weight and submission count for one target.
func (p *Pool) Tally(epoch, round uint64, block common.Hash) (uint64, int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	submissions := p.byTarget[voteKey{epoch, round, block}]
	var total uint64
	for addr := range submissions {
		total += p.weights[addr]
	}
	return total, len(submissions)
}

// BuildQuorumCert aggregates the BLS partial signatures collected for
// (epoch, round, block) into a QuorumCert, once they carry quorum weight. The
// VoteData and LedgerInfo of the resulting QC are taken from any one
// submission for the target — by construction every submission for the same
// target carries an identical VoteData and LedgerInfo, since both are
// deterministic functions of the proposed block.
func (p *Pool) BuildQuorumCert(epoch, round uint64, block common.Hash) (*safety.QuorumCert, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	submissions := p.byTarget[voteKey{epoch, round, block}]
	if len(submissions) == 0 {
		return nil, false
	}

	var total uint64
	signers := make([]common.Address, 0, len(submissions))
	sigs := make([][]byte, 0, len(submissions))
	var sample *safety.Vote
	for addr, s := range submissions {
		total += p.weights[addr]
		signers = append(signers, addr)
		sigs = append(sigs, s.BLSSignature)
		sample = s.Vote
	}
	if total < p.required {
		return nil, false
	}

	agg, err := bls.AggregateSignatures(sigs)
	if err != nil {
		return nil, false
	}
	sort.Slice(signers, func(i, j int) bool { return signers[i].Hex() < signers[j].Hex() })

	return &safety.QuorumCert{
		VoteData: sample.VoteData,
		LedgerInfo: safety.LedgerInfoWithSignatures{
			LedgerInfo: sample.LedgerInfo,
			Signatures: safety.AggregateSignature{Signers: signers, Signature: agg},
		},
	}, true
}

// PruneBelow drops submissions for epochs strictly lower than minEpoch, so
// the pool's memory does not grow without bound across epoch transitions.
func (p *Pool) PruneBelow(minEpoch uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for target := range p.byTarget {
		if target.epoch < minEpoch {
			delete(p.byTarget, target)
		}
	}
	for inst := range p.votedTarget {
		if inst.epoch < minEpoch {
			delete(p.votedTarget, inst)
		}
	}
}

func validateSubmission(s Submission) error {
	if s.Vote == nil || len(s.BLSSignature) == 0 {
		return ErrInvalidSubmission
	}
	if s.Vote.Author == (common.Address{}) || s.Vote.VoteData.Proposed.BlockID == (common.Hash{}) {
		return ErrInvalidSubmission
	}
	return nil
}
