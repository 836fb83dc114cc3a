package safety

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tos-network/safetyrules/tosdb/memorydb"
)

func TestKVStore_DefaultsBeforeFirstWrite(t *testing.T) {
	s := NewKVStore(memorydb.New())

	epoch, err := s.Epoch()
	if err != nil || epoch != 0 {
		t.Fatalf("expected epoch 0, nil; got %d, %v", epoch, err)
	}
	lvr, err := s.LastVotedRound()
	if err != nil || lvr != 0 {
		t.Fatalf("expected last_voted_round 0, nil; got %d, %v", lvr, err)
	}
	w, err := s.Waypoint()
	if err != nil || !w.IsZero() {
		t.Fatalf("expected zero waypoint, nil; got %+v, %v", w, err)
	}
	if _, err := s.ConsensusKey(); err != ErrRecordNotFound {
		t.Fatalf("expected ErrRecordNotFound for an unprovisioned consensus key, got %v", err)
	}
}

func TestKVStore_RoundTrip(t *testing.T) {
	s := NewKVStore(memorydb.New())

	if err := s.SetEpoch(5); err != nil {
		t.Fatalf("set epoch: %v", err)
	}
	if err := s.SetLastVotedRound(42); err != nil {
		t.Fatalf("set last_voted_round: %v", err)
	}
	if err := s.SetPreferredRound(41); err != nil {
		t.Fatalf("set preferred_round: %v", err)
	}
	wp := Waypoint{Epoch: 5, Version: 100, Root: common.HexToHash("0xbeef")}
	if err := s.SetWaypoint(wp); err != nil {
		t.Fatalf("set waypoint: %v", err)
	}
	if err := s.SetConsensusKey([]byte("the-private-key")); err != nil {
		t.Fatalf("set consensus key: %v", err)
	}

	if got, err := s.Epoch(); err != nil || got != 5 {
		t.Fatalf("epoch round-trip: got %d, %v", got, err)
	}
	if got, err := s.LastVotedRound(); err != nil || got != 42 {
		t.Fatalf("last_voted_round round-trip: got %d, %v", got, err)
	}
	if got, err := s.PreferredRound(); err != nil || got != 41 {
		t.Fatalf("preferred_round round-trip: got %d, %v", got, err)
	}
	if got, err := s.Waypoint(); err != nil || got != wp {
		t.Fatalf("waypoint round-trip: got %+v, %v", got, err)
	}
	if got, err := s.ConsensusKey(); err != nil || string(got) != "the-private-key" {
		t.Fatalf("consensus key round-trip: got %q, %v", got, err)
	}
}

func TestDecodeRecord_RejectsBadEnvelope(t *testing.T) {
	var v uint64
	if err := decodeRecord([]byte("not-an-envelope"), &v); err == nil {
		t.Fatalf("expected a malformed envelope to be rejected")
	}
}
