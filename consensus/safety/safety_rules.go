package safety

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
)

// SafetyRules is the consensus safety kernel. Exactly one operation runs at
// a time — the lock below enforces that even if a caller forgets to
// serialize its own calls. No operation calls back out into caller-provided
// code that could re-enter the kernel, so the lock never needs to be
// re-entrant.
type SafetyRules struct {
	mu sync.Mutex

	store    Store
	signer   *Signer
	verifier *Verifier // nil until Initialize succeeds
}

// New constructs a SafetyRules kernel bound to store and signer. The kernel
// is Uninitialized until Initialize is called.
func New(store Store, signer *Signer) *SafetyRules {
	return &SafetyRules{store: store, signer: signer}
}

// ConsensusState returns a snapshot of the kernel's persistent state.
func (sr *SafetyRules) ConsensusState() (ConsensusState, error) {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	epoch, err := sr.store.Epoch()
	if err != nil {
		return ConsensusState{}, err
	}
	lastVoted, err := sr.store.LastVotedRound()
	if err != nil {
		return ConsensusState{}, err
	}
	preferred, err := sr.store.PreferredRound()
	if err != nil {
		return ConsensusState{}, err
	}
	waypoint, err := sr.store.Waypoint()
	if err != nil {
		return ConsensusState{}, err
	}
	return ConsensusState{
		Epoch:          epoch,
		LastVotedRound: lastVoted,
		PreferredRound: preferred,
		Waypoint:       waypoint,
	}, nil
}

// Initialize verifies proof against the durably stored waypoint and, on
// success, starts the epoch the proof's last ledger info describes.
// Idempotent: calling it again with a proof that still chains from the
// current waypoint simply re-runs the (idempotent) epoch-start routine.
func (sr *SafetyRules) Initialize(proof *EpochChangeProof) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	waypoint, err := sr.store.Waypoint()
	if err != nil {
		return err
	}
	lastLI, err := proof.Verify(waypoint)
	if err != nil {
		return err
	}
	if !lastLI.EndsEpoch() {
		return ErrInvalidLedgerInfo
	}
	return sr.startNewEpoch(lastLI)
}

// Update admits a quorum certificate. If the QC ends the epoch, it performs
// an epoch transition; otherwise it advances preferred_round monotonically.
func (sr *SafetyRules) Update(qc *QuorumCert) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	if sr.verifier == nil {
		return ErrNotInitialized
	}
	if err := sr.verifyQC(qc); err != nil {
		return err
	}
	if qc.EndsEpoch() {
		li := qc.LedgerInfo.LedgerInfo
		return sr.startNewEpoch(li)
	}
	preferred, err := sr.store.PreferredRound()
	if err != nil {
		return err
	}
	if qc.VoteData.Parent.Round > preferred {
		if err := sr.store.SetPreferredRound(qc.VoteData.Parent.Round); err != nil {
			return err
		}
	}
	return nil
}

// ConstructAndSignVote validates vp against the increasing-round and
// preferred-round rules, persists last_voted_round BEFORE signing, then
// signs and returns the resulting Vote.
func (sr *SafetyRules) ConstructAndSignVote(vp *VoteProposal) (*Vote, error) {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	if sr.verifier == nil {
		return nil, ErrNotInitialized
	}
	b := vp.Block

	storedEpoch, err := sr.store.Epoch()
	if err != nil {
		return nil, err
	}
	if b.Epoch != storedEpoch {
		return nil, &IncorrectEpochError{Got: b.Epoch, Expected: storedEpoch}
	}

	lastVoted, err := sr.store.LastVotedRound()
	if err != nil {
		return nil, err
	}
	if b.Round <= lastVoted {
		return nil, &OldProposalError{ProposalRound: b.Round, LastVotedRound: lastVoted}
	}

	preferred, err := sr.store.PreferredRound()
	if err != nil {
		return nil, err
	}
	if b.QC.VoteData.Proposed.Round < preferred {
		return nil, &ProposalRoundLowerThanPreferredBlockError{PreferredRound: preferred}
	}

	if err := sr.verifyAccumulatorExtension(vp); err != nil {
		return nil, err
	}

	// The single most important write in the kernel: last_voted_round must
	// be durable before any signature derived from this round can exist,
	// so a crash immediately after signing never loses the record that
	// would have prevented a second, conflicting vote at the same round.
	if err := sr.store.SetLastVotedRound(b.Round); err != nil {
		return nil, err
	}

	proposed := BlockInfo{
		Epoch:           b.Epoch,
		Round:           b.Round,
		BlockID:         blockHash(b),
		ExecutedStateID: vp.AccumulatorExtensionProof.ResultRootHash,
		Version:         vp.AccumulatorExtensionProof.ResultVersion,
		NextEpochState:  vp.NextEpochState,
	}
	voteData := VoteData{Proposed: proposed, Parent: b.QC.VoteData.Proposed}
	ledgerInfo := sr.constructLedgerInfo(b)

	sig := sr.signer.Sign(hashLedgerInfo(ledgerInfo))
	return &Vote{
		VoteData:   voteData,
		Author:     sr.signer.Author(),
		LedgerInfo: ledgerInfo,
		Signature:  sig,
	}, nil
}

// SignProposal signs a block authored by this validator. It deliberately
// does not enforce round/epoch monotonicity against the kernel's own state
// (see design note in SPEC_FULL.md §9): the block's id is the hash of its
// contents, and the returned Block carries the signature over that id.
func (sr *SafetyRules) SignProposal(blockData *Block) (*Block, error) {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	metricSignProposal.Inc(1)

	signed := *blockData
	hash := blockHash(signed)
	signed.Signature = sr.signer.Sign(hash)
	return &signed, nil
}

// SignTimeout validates timeout against the preferred-round and
// last-voted-round rules, persists last_voted_round BEFORE signing only when
// it strictly advances, then signs and returns the signature. Determinism
// of the underlying signature scheme means signing the same (epoch, round)
// twice is never equivocation.
func (sr *SafetyRules) SignTimeout(timeout *Timeout) ([]byte, error) {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	metricRequestedSignTimeout.Inc(1)

	storedEpoch, err := sr.store.Epoch()
	if err != nil {
		return nil, err
	}
	if timeout.Epoch != storedEpoch {
		return nil, &IncorrectEpochError{Got: timeout.Epoch, Expected: storedEpoch}
	}

	preferred, err := sr.store.PreferredRound()
	if err != nil {
		return nil, err
	}
	if timeout.Round <= preferred {
		return nil, &BadTimeoutPreferredRoundError{Round: timeout.Round, Preferred: preferred}
	}

	lastVoted, err := sr.store.LastVotedRound()
	if err != nil {
		return nil, err
	}
	if timeout.Round < lastVoted {
		return nil, &BadTimeoutLastVotedRoundError{Round: timeout.Round, LastVoted: lastVoted}
	}
	if timeout.Round > lastVoted {
		if err := sr.store.SetLastVotedRound(timeout.Round); err != nil {
			return nil, err
		}
	}

	sig := sr.signer.Sign(hashTimeout(*timeout))
	metricSignTimeout.Inc(1)
	return sig, nil
}

// verifyQC checks that a verifier is present, that the QC's aggregate
// signature verifies, and that it does not regress preferred_round.
func (sr *SafetyRules) verifyQC(qc *QuorumCert) error {
	if sr.verifier == nil {
		return ErrNotInitialized
	}
	preferred, err := sr.store.PreferredRound()
	if err != nil {
		return err
	}
	if qc.VoteData.Parent.Round < preferred {
		return &InvalidQuorumCertificateError{Reason: "Preferred round too early"}
	}
	hash := hashLedgerInfo(qc.LedgerInfo.LedgerInfo)
	if err := sr.verifier.VerifyAggregate(hash, qc.LedgerInfo.Signatures); err != nil {
		return err
	}
	return nil
}

// constructLedgerInfo implements the 3-chain commit rule: r0+1=r1 and
// r1+1=r2 commits the QC's parent block; otherwise nothing commits.
func (sr *SafetyRules) constructLedgerInfo(b Block) LedgerInfo {
	r2 := b.Round
	r1 := b.QC.VoteData.Proposed.Round
	r0 := b.QC.VoteData.Parent.Round

	if r0+1 == r1 && r1+1 == r2 {
		return LedgerInfo{CommitInfo: b.QC.VoteData.Parent}
	}
	return LedgerInfo{CommitInfo: BlockInfo{}}
}

func (sr *SafetyRules) verifyAccumulatorExtension(vp *VoteProposal) error {
	certified := vp.Block.QC.VoteData.Proposed.ExecutedStateID
	if vp.AccumulatorExtensionProof.ExtendsFrom != certified {
		return &InvalidAccumulatorExtensionError{
			Reason: fmt.Sprintf("proof extends from %s, certified block's executed state is %s",
				vp.AccumulatorExtensionProof.ExtendsFrom.Hex(), certified.Hex()),
		}
	}
	return nil
}

// startNewEpoch replaces the in-memory verifier and, if the new epoch is
// strictly greater than the stored one, performs the strictly ordered
// durable writes that make the transition crash-safe: waypoint first (it
// pins the minimum restart point), the round resets next (so the old
// (epoch, round) pair is never paired with the new epoch), and the epoch
// bump last (so the guard below is monotone and re-entry-safe).
func (sr *SafetyRules) startNewEpoch(li LedgerInfo) error {
	if li.CommitInfo.NextEpochState == nil {
		return ErrInvalidLedgerInfo
	}
	verifier, err := li.CommitInfo.NextEpochState.Verifier()
	if err != nil {
		return err
	}
	sr.verifier = verifier

	storedEpoch, err := sr.store.Epoch()
	if err != nil {
		return err
	}
	newEpoch := li.CommitInfo.NextEpochState.Epoch
	if newEpoch <= storedEpoch {
		return nil
	}

	if err := sr.store.SetWaypoint(waypointFromLedgerInfo(li)); err != nil {
		return err
	}
	if err := sr.store.SetLastVotedRound(0); err != nil {
		return err
	}
	if err := sr.store.SetPreferredRound(0); err != nil {
		return err
	}
	if err := sr.store.SetEpoch(newEpoch); err != nil {
		return err
	}
	log.Info("Safety kernel entered new epoch", "epoch", newEpoch)
	return nil
}

func blockHash(b Block) common.Hash {
	data := make([]byte, 0, 64+len(b.Payload))
	data = appendUint64(data, b.Epoch)
	data = appendUint64(data, b.Round)
	data = append(data, b.Author[:]...)
	data = append(data, b.Payload...)
	data = appendUint64(data, b.Timestamp)
	return crypto.Keccak256Hash(data)
}

func hashTimeout(t Timeout) common.Hash {
	data := make([]byte, 0, 16)
	data = appendUint64(data, t.Epoch)
	data = appendUint64(data, t.Round)
	return crypto.Keccak256Hash(data)
}
