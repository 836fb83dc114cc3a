package safety

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Waypoint is a trusted commitment a restarting validator must synchronize
// to before it is allowed to vote again.
type Waypoint struct {
	Epoch   uint64
	Version uint64
	Root    common.Hash
}

// IsZero reports whether w is the unset waypoint.
func (w Waypoint) IsZero() bool {
	return w == Waypoint{}
}

func waypointFromLedgerInfo(li LedgerInfo) Waypoint {
	return Waypoint{
		Epoch:   li.CommitInfo.Epoch,
		Version: li.CommitInfo.Version,
		Root:    li.CommitInfo.ExecutedStateID,
	}
}

// matches reports whether li is the LedgerInfo this waypoint pins.
func (w Waypoint) matches(li LedgerInfo) bool {
	return w == waypointFromLedgerInfo(li)
}

func (w Waypoint) String() string {
	return fmt.Sprintf("waypoint(epoch=%d, version=%d, root=%s)", w.Epoch, w.Version, w.Root.Hex())
}
