package safety

import (
	"crypto/rand"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tos-network/safetyrules/crypto/bls"
	"github.com/tos-network/safetyrules/crypto/ed25519"
	"github.com/tos-network/safetyrules/tosdb/memorydb"
)

type testValidator struct {
	addr    common.Address
	blsPriv []byte
	blsPub  []byte
}

func newTestValidators(t *testing.T, n int) []testValidator {
	t.Helper()
	vs := make([]testValidator, n)
	for i := range vs {
		priv, err := bls.GeneratePrivateKey(rand.Reader)
		if err != nil {
			t.Fatalf("generate bls key: %v", err)
		}
		pub, err := bls.PublicKey(priv)
		if err != nil {
			t.Fatalf("derive bls pubkey: %v", err)
		}
		var addr common.Address
		addr[common.AddressLength-1] = byte(i + 1)
		vs[i] = testValidator{addr: addr, blsPriv: priv, blsPub: pub}
	}
	return vs
}

func validatorInfos(vs []testValidator) []ValidatorInfo {
	out := make([]ValidatorInfo, len(vs))
	for i, v := range vs {
		out[i] = ValidatorInfo{Address: v.addr, Weight: 1, PublicKey: v.blsPub}
	}
	return out
}

// quorumSign has the first q validators sign hash and returns the resulting
// AggregateSignature. q must carry quorum weight for the set vs came from.
func quorumSign(t *testing.T, vs []testValidator, q int, hash common.Hash) AggregateSignature {
	t.Helper()
	signers := make([]common.Address, 0, q)
	sigs := make([][]byte, 0, q)
	for i := 0; i < q; i++ {
		sig, err := bls.Sign(vs[i].blsPriv, hash[:])
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		signers = append(signers, vs[i].addr)
		sigs = append(sigs, sig)
	}
	agg, err := bls.AggregateSignatures(sigs)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	return AggregateSignature{Signers: signers, Signature: agg}
}

func newTestStore() Store {
	return NewKVStore(memorydb.New())
}

func newTestSigner(t *testing.T, author common.Address) *Signer {
	t.Helper()
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		t.Fatalf("read seed: %v", err)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return NewSigner(author, priv)
}

// genesisLedgerInfo builds the epoch-ending LedgerInfo that bootstraps a
// kernel from its zero-value (untrusted) waypoint into epoch 1. Its non-zero
// executed state root makes the waypoint it pins differ from the unset one.
func genesisLedgerInfo(vs []testValidator) LedgerInfo {
	return LedgerInfo{
		CommitInfo: BlockInfo{
			Epoch:           0,
			Round:           0,
			ExecutedStateID: common.HexToHash("0x01"),
			NextEpochState: &NextEpochState{
				Epoch:      1,
				Validators: validatorInfos(vs),
			},
		},
	}
}

// newInitializedKernel builds a SafetyRules bound to a fresh store and
// initializes it into epoch 1 with the given validator set, trusting the
// genesis waypoint implicitly (no stored waypoint yet).
func newInitializedKernel(t *testing.T, vs []testValidator) (*SafetyRules, common.Address) {
	t.Helper()
	store := newTestStore()
	author := vs[0].addr
	signer := newTestSigner(t, author)
	sr := New(store, signer)

	proof := &EpochChangeProof{LedgerInfos: []LedgerInfoWithSignatures{{LedgerInfo: genesisLedgerInfo(vs)}}}
	if err := sr.Initialize(proof); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return sr, author
}

func quorumFor(n int) int {
	return int(RequiredQuorumWeight(uint64(n)))
}

// qcAt builds a QuorumCert certifying a block at round certifiedRound whose
// QC extends a block at round parentRound, signed by a quorum of vs.
func qcAt(t *testing.T, vs []testValidator, parentRound, certifiedRound uint64, executedStateID common.Hash) QuorumCert {
	t.Helper()
	voteData := VoteData{
		Proposed: BlockInfo{Epoch: 1, Round: certifiedRound, ExecutedStateID: executedStateID},
		Parent:   BlockInfo{Epoch: 1, Round: parentRound},
	}
	li := LedgerInfo{CommitInfo: BlockInfo{}}
	sig := quorumSign(t, vs, quorumFor(len(vs)), hashLedgerInfo(li))
	return QuorumCert{
		VoteData:   voteData,
		LedgerInfo: LedgerInfoWithSignatures{LedgerInfo: li, Signatures: sig},
	}
}
