package safety

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// EpochChangeProof is an ordered chain of signed, epoch-ending LedgerInfos
// used to bootstrap or fast-forward a validator from a trusted waypoint to
// the current epoch.
type EpochChangeProof struct {
	LedgerInfos []LedgerInfoWithSignatures
}

// Verify checks that the proof's first LedgerInfo matches waypoint, that
// every LedgerInfo except possibly the last is epoch-ending, and that each
// LedgerInfo after the first is signed by the validator set carried by its
// predecessor. The first LedgerInfo's signatures are not checked: it is
// accepted because it matches waypoint, or unconditionally when waypoint is
// the zero value. It returns the last LedgerInfo in the chain.
func (p *EpochChangeProof) Verify(waypoint Waypoint) (LedgerInfo, error) {
	if len(p.LedgerInfos) == 0 {
		return LedgerInfo{}, &WaypointMismatchError{Reason: "empty epoch change proof"}
	}

	first := p.LedgerInfos[0].LedgerInfo
	if !waypoint.IsZero() && !waypoint.matches(first) {
		return LedgerInfo{}, &WaypointMismatchError{Reason: "first ledger info does not match stored waypoint"}
	}

	var verifier *Verifier
	if first.CommitInfo.NextEpochState != nil {
		// The waypoint itself commits the validator set the *next* link
		// must be signed by; the first link's own signature is accepted on
		// the strength of the waypoint pin, mirroring how a validator
		// bootstraps trust from an externally-provisioned waypoint rather
		// than a signature it can check against nothing.
		v, err := first.CommitInfo.NextEpochState.Verifier()
		if err != nil {
			return LedgerInfo{}, &WaypointMismatchError{Reason: "invalid next epoch state: " + err.Error()}
		}
		verifier = v
	}

	for i := 1; i < len(p.LedgerInfos); i++ {
		entry := p.LedgerInfos[i]
		prev := p.LedgerInfos[i-1].LedgerInfo
		if !prev.EndsEpoch() {
			return LedgerInfo{}, &WaypointMismatchError{Reason: "non-terminal ledger info does not end its epoch"}
		}
		if verifier == nil {
			return LedgerInfo{}, &WaypointMismatchError{Reason: "no validator set to verify against"}
		}
		hash := hashLedgerInfo(entry.LedgerInfo)
		if err := verifier.VerifyAggregate(hash, entry.Signatures); err != nil {
			return LedgerInfo{}, &WaypointMismatchError{Reason: "chain signature verification failed: " + err.Error()}
		}
		last := i == len(p.LedgerInfos)-1
		if !last && !entry.LedgerInfo.EndsEpoch() {
			return LedgerInfo{}, &WaypointMismatchError{Reason: "intermediate ledger info does not end its epoch"}
		}
		if entry.LedgerInfo.EndsEpoch() {
			v, err := entry.LedgerInfo.CommitInfo.NextEpochState.Verifier()
			if err != nil {
				return LedgerInfo{}, &WaypointMismatchError{Reason: "invalid next epoch state: " + err.Error()}
			}
			verifier = v
		}
	}

	return p.LedgerInfos[len(p.LedgerInfos)-1].LedgerInfo, nil
}

func hashLedgerInfo(li LedgerInfo) common.Hash {
	data := make([]byte, 0, 128)
	data = appendUint64(data, li.CommitInfo.Epoch)
	data = appendUint64(data, li.CommitInfo.Round)
	data = append(data, li.CommitInfo.BlockID[:]...)
	data = append(data, li.CommitInfo.ExecutedStateID[:]...)
	data = appendUint64(data, li.CommitInfo.Version)
	data = append(data, li.ConsensusDataHash[:]...)
	return crypto.Keccak256Hash(data)
}

func appendUint64(b []byte, v uint64) []byte {
	var buf [8]byte
	for i := 7; i >= 0; i-- {
		buf[i] = byte(v)
		v >>= 8
	}
	return append(b, buf[:]...)
}
