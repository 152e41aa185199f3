package core

import "testing"

type fakeSigEngine struct {
	threshold  int
	rejectProp bool
	validSig   map[Hash]bool
}

func newFakeSigEngine(threshold int) *fakeSigEngine {
	return &fakeSigEngine{threshold: threshold, validSig: make(map[Hash]bool)}
}

func (f *fakeSigEngine) VerifyProposer(ProposalBlock) bool { return !f.rejectProp }
func (f *fakeSigEngine) VerifyPartial(blockHash Hash, sig PartialSignature) bool {
	return true
}
func (f *fakeSigEngine) HarvesterThreshold() int { return f.threshold }

func TestDAGAppendGenesisOnce(t *testing.T) {
	d := NewDAG(newFakeSigEngine(2))
	g := NewGenesisBlock(0, 0, map[Address]uint64{{1}: 100})
	if err := d.AppendGenesis(g); err != nil {
		t.Fatalf("append genesis: %v", err)
	}
	if err := d.AppendGenesis(g); err != ErrGenesisAlreadyExists {
		t.Fatalf("expected ErrGenesisAlreadyExists, got %v", err)
	}
	if d.LastConfirmed() != g.Header.Hash {
		t.Fatal("expected last confirmed to be genesis hash")
	}
}

func TestDAGAppendProposalMissingReference(t *testing.T) {
	d := NewDAG(newFakeSigEngine(2))
	p := ProposalBlock{Header: BlockHeader{Hash: HashBytes([]byte("p"))}, Reference: HashBytes([]byte("nonexistent"))}
	if err := d.AppendProposal(p); err != ErrNonExistentSource {
		t.Fatalf("expected ErrNonExistentSource, got %v", err)
	}
}

func TestDAGAppendProposalSuccess(t *testing.T) {
	d := NewDAG(newFakeSigEngine(2))
	g := NewGenesisBlock(0, 0, map[Address]uint64{{1}: 100})
	if err := d.AppendGenesis(g); err != nil {
		t.Fatalf("append genesis: %v", err)
	}
	p := ProposalBlock{Header: BlockHeader{Hash: HashBytes([]byte("p"))}, Reference: g.Header.Hash}
	if err := d.AppendProposal(p); err != nil {
		t.Fatalf("append proposal: %v", err)
	}
	if _, ok := d.GetReferenceBlock(p.Header.Hash); !ok {
		t.Fatal("expected proposal to be retrievable")
	}
}

func TestDAGConvergenceBufferedThenCertified(t *testing.T) {
	sig := newFakeSigEngine(2)
	d := NewDAG(sig)
	conv := ConvergenceBlock{
		Header:       BlockHeader{Hash: HashBytes([]byte("c"))},
		ProposalRefs: []Hash{HashBytes([]byte("p1"))},
	}
	if err := d.AppendConvergence(conv); err != nil {
		t.Fatalf("append convergence: %v", err)
	}
	if _, ok := d.GetPendingConvergenceBlock(conv.Header.Hash); !ok {
		t.Fatal("expected convergence block to be buffered pending certificate")
	}

	// Threshold - 1: no certificate.
	sigA := PartialSignature{Signer: "a"}
	if _, ok := d.AddSignerToConvergence(conv.Header.Hash, sigA); ok {
		t.Fatal("expected threshold not met with 1 of 2 signatures")
	}

	// Threshold met: certificate signature set returned.
	sigB := PartialSignature{Signer: "b"}
	parts, ok := d.AddSignerToConvergence(conv.Header.Hash, sigB)
	if !ok {
		t.Fatal("expected threshold met with 2 of 2 signatures")
	}
	if len(parts) != 2 {
		t.Fatalf("expected 2 partial signatures, got %d", len(parts))
	}
}

func TestDAGAddSignerIdempotent(t *testing.T) {
	sig := newFakeSigEngine(3)
	d := NewDAG(sig)
	blockHash := HashBytes([]byte("block"))
	s := PartialSignature{Signer: "x"}
	d.AddSignerToConvergence(blockHash, s)
	d.AddSignerToConvergence(blockHash, s)
	if got := d.partialSigs.Signatures(blockHash); len(got) != 1 {
		t.Fatalf("expected idempotent insertion, got %d entries", len(got))
	}
}

func TestResolveRetainedOrderDeterministic(t *testing.T) {
	p1 := HashBytes([]byte("p1"))
	p2 := HashBytes([]byte("p2"))
	d1 := HashBytes([]byte("d1"))
	d2 := HashBytes([]byte("d2"))
	retained := map[Hash][]Hash{
		p2: {d2, d1},
		p1: {d1},
	}
	order := ResolveRetainedOrder(retained)
	if len(order) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(order))
	}
	// proposals ordered lexicographically: whichever of p1/p2 sorts first
	// must appear first.
	firstProposal := order[0].Proposal
	for _, entry := range order {
		if entry.Proposal != firstProposal {
			if entry.Proposal.Less(firstProposal) {
				t.Fatal("expected proposals in lexicographic order")
			}
			break
		}
	}
}
