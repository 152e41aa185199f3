package core

import "testing"

// harvesterSigEngine is the DAG's signature engine in harvester tests: every
// proposer and partial signature is accepted, so AddSignerToConvergence
// exercises the real threshold-accumulation path while the harvesters sign
// with real DKG engines.
type harvesterSigEngine struct {
	threshold int
}

func (h *harvesterSigEngine) VerifyProposer(ProposalBlock) bool                   { return true }
func (h *harvesterSigEngine) VerifyPartial(blockHash Hash, sig PartialSignature) bool { return true }
func (h *harvesterSigEngine) HarvesterThreshold() int                            { return h.threshold }

func TestHarvesterAcceptVoteReachesThreshold(t *testing.T) {
	engines := newActiveEngines(t, []NodeID{"1", "2"}, ThresholdConfig{Threshold: 1, Total: 2})
	dag := NewDAG(&harvesterSigEngine{threshold: 2})
	h := NewHarvester("h1", 2, engines["1"], dag, nil)

	digest := HashBytes([]byte("txn"))
	sig1, err := engines["1"].SignPartial(digest)
	if err != nil {
		t.Fatalf("sign1: %v", err)
	}
	sig2, err := engines["2"].SignPartial(digest)
	if err != nil {
		t.Fatalf("sign2: %v", err)
	}

	certified, err := h.AcceptVote(Vote{FarmerID: "1", Kind: VoteValid, PartialSig: sig1.Sig, TransactionHash: digest})
	if err != nil {
		t.Fatalf("accept vote 1: %v", err)
	}
	if certified {
		t.Fatal("expected not yet certified with 1 of 2 votes")
	}

	certified, err = h.AcceptVote(Vote{FarmerID: "2", Kind: VoteValid, PartialSig: sig2.Sig, TransactionHash: digest})
	if err != nil {
		t.Fatalf("accept vote 2: %v", err)
	}
	if !certified {
		t.Fatal("expected certified with 2 of 2 votes")
	}
}

func TestHarvesterAcceptVoteDedups(t *testing.T) {
	engines := newActiveEngines(t, []NodeID{"1", "2"}, ThresholdConfig{Threshold: 1, Total: 2})
	dag := NewDAG(&harvesterSigEngine{threshold: 2})
	h := NewHarvester("h1", 2, engines["1"], dag, nil)

	digest := HashBytes([]byte("txn"))
	sig1, _ := engines["1"].SignPartial(digest)

	v := Vote{FarmerID: "1", Kind: VoteValid, PartialSig: sig1.Sig, TransactionHash: digest}
	if _, err := h.AcceptVote(v); err != nil {
		t.Fatalf("first accept: %v", err)
	}
	certified, err := h.AcceptVote(v)
	if err != nil {
		t.Fatalf("duplicate accept: %v", err)
	}
	if certified {
		t.Fatal("duplicate vote from the same farmer must not advance certification")
	}
}

func TestHarvesterInvalidVotesDoNotCount(t *testing.T) {
	engines := newActiveEngines(t, []NodeID{"1", "2"}, ThresholdConfig{Threshold: 1, Total: 2})
	dag := NewDAG(&harvesterSigEngine{threshold: 2})
	h := NewHarvester("h1", 2, engines["1"], dag, nil)

	digest := HashBytes([]byte("txn"))
	sig1, _ := engines["1"].SignPartial(digest)
	sig2, _ := engines["2"].SignPartial(digest)

	if _, err := h.AcceptVote(Vote{FarmerID: "1", Kind: VoteInvalid, PartialSig: sig1.Sig, TransactionHash: digest}); err != nil {
		t.Fatalf("accept invalid vote: %v", err)
	}
	certified, err := h.AcceptVote(Vote{FarmerID: "2", Kind: VoteValid, PartialSig: sig2.Sig, TransactionHash: digest})
	if err != nil {
		t.Fatalf("accept valid vote: %v", err)
	}
	if certified {
		t.Fatal("1 valid + 1 invalid must not reach a 2-vote threshold")
	}
}

func TestHarvesterPrecheckConvergenceMissingReference(t *testing.T) {
	engines := newActiveEngines(t, []NodeID{"1", "2"}, ThresholdConfig{Threshold: 1, Total: 2})
	dag := NewDAG(&harvesterSigEngine{threshold: 2})
	h := NewHarvester("h1", 2, engines["1"], dag, nil)

	block := ConvergenceBlock{
		Header:       BlockHeader{Hash: HashBytes([]byte("c"))},
		ProposalRefs: []Hash{HashBytes([]byte("nonexistent"))},
	}
	if err := h.PrecheckConvergence(block); err != ErrNonExistentSource {
		t.Fatalf("expected ErrNonExistentSource, got %v", err)
	}
}

func TestHarvesterPrecheckVerifiesRetainedDigests(t *testing.T) {
	engines := newActiveEngines(t, []NodeID{"1", "2"}, ThresholdConfig{Threshold: 1, Total: 2})
	dag := NewDAG(&harvesterSigEngine{threshold: 2})
	h := NewHarvester("h1", 2, engines["1"], dag, nil)

	g := NewGenesisBlock(0, 0, map[Address]uint64{{1}: 10})
	if err := dag.AppendGenesis(g); err != nil {
		t.Fatalf("append genesis: %v", err)
	}
	carried := HashBytes([]byte("carried"))
	p := ProposalBlock{
		Header:       BlockHeader{Hash: HashBytes([]byte("p"))},
		Reference:    g.Header.Hash,
		Transactions: map[Hash]Transaction{carried: {Digest: carried}},
	}
	if err := dag.AppendProposal(p); err != nil {
		t.Fatalf("append proposal: %v", err)
	}

	good := ConvergenceBlock{
		Header:          BlockHeader{Hash: HashBytes([]byte("c-good"))},
		ProposalRefs:    []Hash{p.Header.Hash},
		RetainedDigests: map[Hash][]Hash{p.Header.Hash: {carried}},
	}
	if err := h.PrecheckConvergence(good); err != nil {
		t.Fatalf("expected carried digest to pass precheck: %v", err)
	}

	fabricated := ConvergenceBlock{
		Header:          BlockHeader{Hash: HashBytes([]byte("c-bad"))},
		ProposalRefs:    []Hash{p.Header.Hash},
		RetainedDigests: map[Hash][]Hash{p.Header.Hash: {HashBytes([]byte("never-proposed"))}},
	}
	if err := h.PrecheckConvergence(fabricated); err != ErrRetainedDigestUnknown {
		t.Fatalf("expected ErrRetainedDigestUnknown, got %v", err)
	}
}

func TestHarvesterPrecheckRejectsDigestRetainedTwice(t *testing.T) {
	engines := newActiveEngines(t, []NodeID{"1", "2"}, ThresholdConfig{Threshold: 1, Total: 2})
	dag := NewDAG(&harvesterSigEngine{threshold: 2})
	h := NewHarvester("h1", 2, engines["1"], dag, nil)

	g := NewGenesisBlock(0, 0, map[Address]uint64{{1}: 10})
	if err := dag.AppendGenesis(g); err != nil {
		t.Fatalf("append genesis: %v", err)
	}
	shared := HashBytes([]byte("shared"))
	p1 := ProposalBlock{
		Header:       BlockHeader{Hash: HashBytes([]byte("p1"))},
		Reference:    g.Header.Hash,
		Transactions: map[Hash]Transaction{shared: {Digest: shared}},
	}
	p2 := ProposalBlock{
		Header:       BlockHeader{Hash: HashBytes([]byte("p2"))},
		Reference:    g.Header.Hash,
		Transactions: map[Hash]Transaction{shared: {Digest: shared}},
	}
	if err := dag.AppendProposal(p1); err != nil {
		t.Fatalf("append p1: %v", err)
	}
	if err := dag.AppendProposal(p2); err != nil {
		t.Fatalf("append p2: %v", err)
	}

	conv := ConvergenceBlock{
		Header:       BlockHeader{Hash: HashBytes([]byte("c"))},
		ProposalRefs: []Hash{p1.Header.Hash, p2.Header.Hash},
		RetainedDigests: map[Hash][]Hash{
			p1.Header.Hash: {shared},
			p2.Header.Hash: {shared},
		},
	}
	if err := h.PrecheckConvergence(conv); err != ErrRetainedDigestDup {
		t.Fatalf("expected ErrRetainedDigestDup, got %v", err)
	}
}

func TestHarvesterSignConvergenceFormsCertificateOnce(t *testing.T) {
	members := []NodeID{"1", "2"}
	engines := newActiveEngines(t, members, ThresholdConfig{Threshold: 1, Total: 2})
	dag := NewDAG(&harvesterSigEngine{threshold: 2})

	g := NewGenesisBlock(0, 0, map[Address]uint64{{1}: 10})
	if err := dag.AppendGenesis(g); err != nil {
		t.Fatalf("append genesis: %v", err)
	}
	p := ProposalBlock{Header: BlockHeader{Hash: HashBytes([]byte("p"))}, Reference: g.Header.Hash}

	// AppendProposal needs VerifyProposer; harvesterSigEngine allows it.
	if err := dag.AppendProposal(p); err != nil {
		t.Fatalf("append proposal: %v", err)
	}

	conv := ConvergenceBlock{
		Header:       BlockHeader{Hash: HashBytes([]byte("c"))},
		ProposalRefs: []Hash{p.Header.Hash},
	}
	if err := dag.AppendConvergence(conv); err != nil {
		t.Fatalf("append convergence: %v", err)
	}

	h1 := NewHarvester("h1", 2, engines["1"], dag, nil)
	h2 := NewHarvester("h2", 2, engines["2"], dag, nil)

	if cert, err := h1.SignConvergence(conv); err != nil || cert != nil {
		t.Fatalf("expected nil certificate with 1 of 2 signers, got %v err=%v", cert, err)
	}
	cert, err := h2.SignConvergence(conv)
	if err != nil {
		t.Fatalf("sign convergence 2: %v", err)
	}
	if cert == nil {
		t.Fatal("expected certificate formed with 2 of 2 signers")
	}
	if len(cert.Signatures) != 2 {
		t.Fatalf("expected 2 signatures in certificate, got %d", len(cert.Signatures))
	}
}

func TestHarvesterApplyRewardsNilFunc(t *testing.T) {
	h := NewHarvester("h1", 1, nil, nil, nil)
	if out := h.ApplyRewards(ConvergenceRound{}); out != nil {
		t.Fatalf("expected nil reward map with no reward function, got %v", out)
	}
}

func TestHarvesterSlashProposer(t *testing.T) {
	h := NewHarvester("h1", 1, nil, nil, nil)
	claim := NewClaim("bad-proposer", []byte("pub"))
	h.SlashProposer(&claim)
	if claim.Eligible {
		t.Fatal("expected claim to be marked ineligible after slashing")
	}
}
