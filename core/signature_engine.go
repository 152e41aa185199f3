package core

// QuorumSignatureEngine is the production SignatureEngine (dag.go) backed
// by a DKG-derived threshold keyset: proposer eligibility is the claim's
// own Eligible flag (claim.go), and partial-signature verification checks
// a harvester's contribution against the verification key the DKG
// handshake derived for it (dkg.go's Engine.PublicKeyShare).
type QuorumSignatureEngine struct {
	dkg       *Engine
	threshold int
}

// NewQuorumSignatureEngine binds a DAG to dkg's derived keyset, requiring
// threshold distinct partial signatures before a convergence block
// certifies.
func NewQuorumSignatureEngine(dkg *Engine, threshold int) *QuorumSignatureEngine {
	return &QuorumSignatureEngine{dkg: dkg, threshold: threshold}
}

// VerifyProposer reports whether block's proposer claim is still eligible;
// a slashed claim (claim.go's Slash) can no longer author proposals.
func (q *QuorumSignatureEngine) VerifyProposer(block ProposalBlock) bool {
	return block.Proposer.Eligible
}

// VerifyPartial checks sig against the verification key the DKG handshake
// derived for sig.Signer.
func (q *QuorumSignatureEngine) VerifyPartial(blockHash Hash, sig PartialSignature) bool {
	pub, ok := q.dkg.PublicKeyShare(sig.Signer)
	if !ok {
		return false
	}
	return sig.Sig.VerifyByte(&pub, blockHash[:])
}

// HarvesterThreshold returns the distinct-signer count a convergence block
// needs before it certifies.
func (q *QuorumSignatureEngine) HarvesterThreshold() int {
	return q.threshold
}
