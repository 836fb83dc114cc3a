package safety

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/tos-network/safetyrules/tosdb"
)

// ErrRecordNotFound is returned by Store.ConsensusKey before a key has ever
// been provisioned.
var ErrRecordNotFound = errors.New("safety: persistent record not found")

// Store is the durable key/value surface the kernel is the sole writer of.
// Every Set* method is durable on return: once it returns nil, the write has
// survived a crash. There are no multi-record transactions — the ordering
// invariants the kernel depends on (§4.6) are enforced by calling these
// methods in the right sequence, not by the store.
type Store interface {
	ConsensusKey() ([]byte, error)
	SetConsensusKey(key []byte) error

	Epoch() (uint64, error)
	SetEpoch(epoch uint64) error

	LastVotedRound() (uint64, error)
	SetLastVotedRound(round uint64) error

	PreferredRound() (uint64, error)
	SetPreferredRound(round uint64) error

	Waypoint() (Waypoint, error)
	SetWaypoint(w Waypoint) error
}

// recordKey namespaces the five records within the backing KeyValueStore.
type recordKey string

const (
	keyConsensusKey   recordKey = "safety/consensus_key"
	keyEpoch          recordKey = "safety/epoch"
	keyLastVotedRound recordKey = "safety/last_voted_round"
	keyPreferredRound recordKey = "safety/preferred_round"
	keyWaypoint       recordKey = "safety/waypoint"
)

// envelope prefix + version mirror the teacher's kvstore/codec.go pattern: a
// short ASCII magic followed by an RLP-encoded envelope holding a version
// number and the RLP-encoded value, so an incompatible future change to a
// record's shape fails closed rather than silently misdecoding.
const (
	envelopePrefix  = "SK01"
	envelopeVersion = uint8(1)
)

type envelope struct {
	Version uint8
	Body    []byte
}

func encodeRecord(v interface{}) ([]byte, error) {
	body, err := rlp.EncodeToBytes(v)
	if err != nil {
		return nil, err
	}
	env, err := rlp.EncodeToBytes(&envelope{Version: envelopeVersion, Body: body})
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(envelopePrefix)+len(env))
	out = append(out, envelopePrefix...)
	out = append(out, env...)
	return out, nil
}

func decodeRecord(raw []byte, v interface{}) error {
	if len(raw) <= len(envelopePrefix) || !bytes.Equal(raw[:len(envelopePrefix)], []byte(envelopePrefix)) {
		return fmt.Errorf("safety: malformed record: bad envelope prefix")
	}
	var env envelope
	if err := rlp.DecodeBytes(raw[len(envelopePrefix):], &env); err != nil {
		return fmt.Errorf("safety: malformed record envelope: %w", err)
	}
	if env.Version != envelopeVersion {
		return fmt.Errorf("safety: unsupported record version %d", env.Version)
	}
	return rlp.DecodeBytes(env.Body, v)
}

// KVStore implements Store over any tosdb.KeyValueStore — an in-memory
// backend for tests and bootstrap, or a LevelDB-backed one for production.
type KVStore struct {
	db tosdb.KeyValueStore
}

// NewKVStore wraps db as a Store. db must not be shared with any other
// writer — the kernel requires single-writer semantics.
func NewKVStore(db tosdb.KeyValueStore) *KVStore {
	return &KVStore{db: db}
}

func (s *KVStore) getUint64(key recordKey) (uint64, error) {
	ok, err := s.db.Has([]byte(key))
	if err != nil {
		return 0, storageErr("has "+string(key), err)
	}
	if !ok {
		// A record that has never been written defaults to its zero value:
		// epoch 0, round 0 — the state a freshly provisioned kernel starts
		// from before its first initialize().
		return 0, nil
	}
	raw, err := s.db.Get([]byte(key))
	if err != nil {
		return 0, storageErr("get "+string(key), err)
	}
	var v uint64
	if err := decodeRecord(raw, &v); err != nil {
		return 0, storageErr("decode "+string(key), err)
	}
	return v, nil
}

func (s *KVStore) setUint64(key recordKey, v uint64) error {
	raw, err := encodeRecord(v)
	if err != nil {
		return storageErr("encode "+string(key), err)
	}
	if err := s.db.Put([]byte(key), raw); err != nil {
		return storageErr("put "+string(key), err)
	}
	return nil
}

func (s *KVStore) ConsensusKey() ([]byte, error) {
	ok, err := s.db.Has([]byte(keyConsensusKey))
	if err != nil {
		return nil, storageErr("has consensus_key", err)
	}
	if !ok {
		return nil, ErrRecordNotFound
	}
	raw, err := s.db.Get([]byte(keyConsensusKey))
	if err != nil {
		return nil, storageErr("get consensus_key", err)
	}
	var key []byte
	if err := decodeRecord(raw, &key); err != nil {
		return nil, storageErr("decode consensus_key", err)
	}
	return key, nil
}

func (s *KVStore) SetConsensusKey(key []byte) error {
	raw, err := encodeRecord(key)
	if err != nil {
		return storageErr("encode consensus_key", err)
	}
	if err := s.db.Put([]byte(keyConsensusKey), raw); err != nil {
		return storageErr("put consensus_key", err)
	}
	return nil
}

func (s *KVStore) Epoch() (uint64, error)              { return s.getUint64(keyEpoch) }
func (s *KVStore) SetEpoch(epoch uint64) error         { return s.setUint64(keyEpoch, epoch) }
func (s *KVStore) LastVotedRound() (uint64, error)     { return s.getUint64(keyLastVotedRound) }
func (s *KVStore) SetLastVotedRound(r uint64) error    { return s.setUint64(keyLastVotedRound, r) }
func (s *KVStore) PreferredRound() (uint64, error)     { return s.getUint64(keyPreferredRound) }
func (s *KVStore) SetPreferredRound(r uint64) error    { return s.setUint64(keyPreferredRound, r) }

func (s *KVStore) Waypoint() (Waypoint, error) {
	ok, err := s.db.Has([]byte(keyWaypoint))
	if err != nil {
		return Waypoint{}, storageErr("has waypoint", err)
	}
	if !ok {
		// No waypoint provisioned yet: the zero-value Waypoint signals an
		// untrusted bootstrap state, which EpochChangeProof.Verify treats as
		// "trust whatever the first ledger info says".
		return Waypoint{}, nil
	}
	raw, err := s.db.Get([]byte(keyWaypoint))
	if err != nil {
		return Waypoint{}, storageErr("get waypoint", err)
	}
	var rec waypointRecord
	if err := decodeRecord(raw, &rec); err != nil {
		return Waypoint{}, storageErr("decode waypoint", err)
	}
	return rec.toWaypoint(), nil
}

func (s *KVStore) SetWaypoint(w Waypoint) error {
	raw, err := encodeRecord(fromWaypoint(w))
	if err != nil {
		return storageErr("encode waypoint", err)
	}
	if err := s.db.Put([]byte(keyWaypoint), raw); err != nil {
		return storageErr("put waypoint", err)
	}
	return nil
}

// waypointRecord is the RLP-encodable projection of Waypoint (RLP cannot
// encode common.Hash's [32]byte array field directly inside a struct without
// an explicit byte-slice conversion on some encoder versions, so the on-disk
// shape is kept deliberately simple: two uints and a byte slice).
type waypointRecord struct {
	Epoch   uint64
	Version uint64
	Root    []byte
}

func fromWaypoint(w Waypoint) waypointRecord {
	return waypointRecord{Epoch: w.Epoch, Version: w.Version, Root: w.Root.Bytes()}
}

func (r waypointRecord) toWaypoint() Waypoint {
	var w Waypoint
	w.Epoch = r.Epoch
	w.Version = r.Version
	w.Root.SetBytes(r.Root)
	return w
}
