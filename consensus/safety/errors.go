package safety

import (
	"errors"
	"fmt"
)

// Sentinel errors that carry no parameters, in the teacher's
// errFoo = errors.New("pkg: message") style.
var (
	ErrNotInitialized    = errors.New("safety: verifier not initialized, call Initialize first")
	ErrInvalidLedgerInfo = errors.New("safety: epoch-ending ledger info carries no next epoch state")
)

// InvalidAccumulatorExtensionError reports that the accumulator extension
// proof carried by a vote proposal does not extend from the certified
// block's executed state, along with the underlying verification failure.
type InvalidAccumulatorExtensionError struct {
	Reason string
}

func (e *InvalidAccumulatorExtensionError) Error() string {
	return fmt.Sprintf("safety: invalid accumulator extension: %s", e.Reason)
}

// IncorrectEpochError reports a message epoch that disagrees with the
// kernel's stored epoch.
type IncorrectEpochError struct {
	Got, Expected uint64
}

func (e *IncorrectEpochError) Error() string {
	return fmt.Sprintf("safety: incorrect epoch: got %d, expected %d", e.Got, e.Expected)
}

// OldProposalError reports a vote that would violate the increasing-round rule.
type OldProposalError struct {
	ProposalRound, LastVotedRound uint64
}

func (e *OldProposalError) Error() string {
	return fmt.Sprintf("safety: old proposal: round %d is not greater than last voted round %d", e.ProposalRound, e.LastVotedRound)
}

// ProposalRoundLowerThanPreferredBlockError reports a vote that would violate
// the preferred-round rule.
type ProposalRoundLowerThanPreferredBlockError struct {
	PreferredRound uint64
}

func (e *ProposalRoundLowerThanPreferredBlockError) Error() string {
	return fmt.Sprintf("safety: proposal's certified round is lower than preferred round %d", e.PreferredRound)
}

// InvalidQuorumCertificateError reports a QC that failed signature
// verification or regresses the preferred round.
type InvalidQuorumCertificateError struct {
	Reason string
}

func (e *InvalidQuorumCertificateError) Error() string {
	return fmt.Sprintf("safety: invalid quorum certificate: %s", e.Reason)
}

// WaypointMismatchError reports an epoch-change proof that does not chain
// from the stored waypoint.
type WaypointMismatchError struct {
	Reason string
}

func (e *WaypointMismatchError) Error() string {
	return fmt.Sprintf("safety: waypoint mismatch: %s", e.Reason)
}

// BadTimeoutPreferredRoundError reports a timeout at or below the preferred round.
type BadTimeoutPreferredRoundError struct {
	Round, Preferred uint64
}

func (e *BadTimeoutPreferredRoundError) Error() string {
	return fmt.Sprintf("safety: timeout round %d must be strictly greater than preferred round %d", e.Round, e.Preferred)
}

// BadTimeoutLastVotedRoundError reports a timeout below the last voted round.
type BadTimeoutLastVotedRoundError struct {
	Round, LastVoted uint64
}

func (e *BadTimeoutLastVotedRoundError) Error() string {
	return fmt.Sprintf("safety: timeout round %d is below last voted round %d", e.Round, e.LastVoted)
}

// InternalStorageError wraps a persistent store I/O failure.
type InternalStorageError struct {
	Reason string
	Err    error
}

func (e *InternalStorageError) Error() string {
	return fmt.Sprintf("safety: internal storage error: %s: %v", e.Reason, e.Err)
}

func (e *InternalStorageError) Unwrap() error {
	return e.Err
}

func storageErr(reason string, err error) error {
	return &InternalStorageError{Reason: reason, Err: err}
}
