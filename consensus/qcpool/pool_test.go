package qcpool

import (
	"crypto/rand"
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tos-network/safetyrules/consensus/safety"
	"github.com/tos-network/safetyrules/crypto/bls"
)

type testSigner struct {
	addr common.Address
	priv []byte
}

func newTestSigners(t *testing.T, n int) []testSigner {
	t.Helper()
	out := make([]testSigner, n)
	for i := range out {
		priv, err := bls.GeneratePrivateKey(rand.Reader)
		if err != nil {
			t.Fatalf("generate bls key: %v", err)
		}
		var addr common.Address
		addr[common.AddressLength-1] = byte(i + 1)
		out[i] = testSigner{addr: addr, priv: priv}
	}
	return out
}

func weightsOf(signers []testSigner, weight uint64) map[common.Address]uint64 {
	m := make(map[common.Address]uint64, len(signers))
	for _, s := range signers {
		m[s.addr] = weight
	}
	return m
}

func submission(t *testing.T, s testSigner, epoch, round uint64, block common.Hash) Submission {
	t.Helper()
	vote := &safety.Vote{
		VoteData:  safety.VoteData{Proposed: safety.BlockInfo{Epoch: epoch, Round: round, BlockID: block}},
		Author:    s.addr,
		Signature: []byte{0x01},
	}
	sig, err := bls.Sign(s.priv, block[:])
	if err != nil {
		t.Fatalf("bls sign: %v", err)
	}
	return Submission{Vote: vote, BLSSignature: sig}
}

func TestPool_BuildQuorumCertAtQuorum(t *testing.T) {
	signers := newTestSigners(t, 3)
	pool := New(weightsOf(signers, 10)) // total 30, required 21

	block := common.HexToHash("0x100")
	if added, err := pool.AddSubmission(submission(t, signers[0], 10, 1, block)); err != nil || !added {
		t.Fatalf("unexpected add result: added=%v err=%v", added, err)
	}
	if qc, ok := pool.BuildQuorumCert(10, 1, block); ok || qc != nil {
		t.Fatalf("qc should not be ready after a single submission")
	}

	for _, s := range signers[1:] {
		if added, err := pool.AddSubmission(submission(t, s, 10, 1, block)); err != nil || !added {
			t.Fatalf("unexpected add result: added=%v err=%v", added, err)
		}
	}
	qc, ok := pool.BuildQuorumCert(10, 1, block)
	if !ok || qc == nil {
		t.Fatalf("expected a quorum cert once all three submitted")
	}
	if len(qc.LedgerInfo.Signatures.Signers) != 3 {
		t.Fatalf("expected 3 signers, got %d", len(qc.LedgerInfo.Signatures.Signers))
	}
}

func TestPool_DuplicateAndEquivocation(t *testing.T) {
	signers := newTestSigners(t, 3)
	pool := New(weightsOf(signers, 10))

	block := common.HexToHash("0x200")
	sub := submission(t, signers[0], 20, 2, block)
	if _, err := pool.AddSubmission(sub); err != nil {
		t.Fatalf("unexpected err adding submission: %v", err)
	}
	added, err := pool.AddSubmission(sub)
	if err != nil {
		t.Fatalf("duplicate submission should not error: %v", err)
	}
	if added {
		t.Fatalf("duplicate submission should not be marked added")
	}

	otherBlock := common.HexToHash("0x201")
	equiv := submission(t, signers[0], 20, 2, otherBlock)
	if _, err := pool.AddSubmission(equiv); !errors.Is(err, ErrEquivocation) {
		t.Fatalf("expected equivocation error, got: %v", err)
	}
}

func TestPool_SequentialRoundsWithPruning(t *testing.T) {
	signers := newTestSigners(t, 3)
	pool := New(weightsOf(signers, 10)) // required 21

	blockAt := func(epoch uint64) common.Hash {
		return common.HexToHash(fmt.Sprintf("0x%x", 0x9000+epoch))
	}

	for epoch := uint64(1); epoch <= 5; epoch++ {
		block := blockAt(epoch)
		for _, s := range signers {
			if _, err := pool.AddSubmission(submission(t, s, epoch, 1, block)); err != nil {
				t.Fatalf("add at epoch %d: %v", epoch, err)
			}
		}
		qc, ok := pool.BuildQuorumCert(epoch, 1, block)
		if !ok || qc == nil {
			t.Fatalf("expected qc at epoch %d", epoch)
		}
		pool.PruneBelow(epoch)
		if epoch > 1 {
			total, count := pool.Tally(epoch-1, 1, blockAt(epoch-1))
			if total != 0 || count != 0 {
				t.Fatalf("expected epoch %d pruned, got total=%d count=%d", epoch-1, total, count)
			}
		}
	}
}
