package core

// Harvester path: aggregates farmer votes into quorum-certified
// transactions, and signs/certifies convergence blocks.

import (
	"errors"
	"sort"
	"sync"

	bls "github.com/herumi/bls-eth-go-binary/bls"
)

var (
	ErrVoteThresholdNotMet   = errors.New("harvester: not enough valid votes to certify transaction")
	ErrCertificateExists     = errors.New("harvester: certificate already formed for this block hash")
	ErrRetainedDigestUnknown = errors.New("harvester: retained digest not carried by its proposal")
	ErrRetainedDigestDup     = errors.New("harvester: digest retained by more than one proposal")
)

// voteKey dedups votes by (digest, farmer-id).
type voteKey struct {
	digest Hash
	farmer NodeID
}

// Harvester aggregates votes per transaction digest and forms block
// certificates once partial signatures meet the harvester threshold.
type Harvester struct {
	mu sync.Mutex

	id              NodeID
	farmerThreshold int
	dkg             *Engine
	dag             *DAG
	reward          RewardFunc

	votes     map[voteKey]Vote
	certified map[Hash]bool // transaction digests already quorum-certified

	formedCertificates map[Hash]bool // block hashes already certified, "only one Certificate per block hash"
}

// NewHarvester constructs a Harvester bound to dkg (Active) for signing
// and dag for certificate accumulation.
func NewHarvester(id NodeID, farmerThreshold int, dkg *Engine, dag *DAG, reward RewardFunc) *Harvester {
	return &Harvester{
		id:                 id,
		farmerThreshold:    farmerThreshold,
		dkg:                dkg,
		dag:                dag,
		reward:             reward,
		votes:              make(map[voteKey]Vote),
		certified:          make(map[Hash]bool),
		formedCertificates: make(map[Hash]bool),
	}
}

// CertifiedTransaction is a transaction digest that reached quorum, with
// the combined threshold signature over it.
type CertifiedTransaction struct {
	Digest Hash
	Sig    bls.Sign
}

// AcceptVote records vote, deduplicated by (digest, farmer). Once ≥
// farmerThreshold distinct valid votes exist for vote.TransactionHash, the
// partial signatures are combined into a threshold signature and the
// digest is marked certified.
func (h *Harvester) AcceptVote(vote Vote) (certified bool, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := voteKey{digest: vote.TransactionHash, farmer: vote.FarmerID}
	if _, dup := h.votes[key]; dup {
		return h.certified[vote.TransactionHash], nil
	}
	h.votes[key] = vote

	if h.certified[vote.TransactionHash] {
		return true, nil
	}

	valid := h.validVotesFor(vote.TransactionHash)
	if len(valid) < h.farmerThreshold {
		return false, nil
	}

	parts := make([]PartialSignature, 0, len(valid))
	for _, v := range valid {
		parts = append(parts, PartialSignature{Signer: v.FarmerID, Sig: v.PartialSig})
	}
	if _, err := CombinePartialSignatures(parts); err != nil {
		return false, err
	}
	h.certified[vote.TransactionHash] = true
	return true, nil
}

func (h *Harvester) validVotesFor(digest Hash) []Vote {
	out := make([]Vote, 0)
	for k, v := range h.votes {
		if k.digest == digest && v.IsValid() {
			out = append(out, v)
		}
	}
	return out
}

// PrecheckConvergence verifies referenced proposals exist, retained
// transaction digests resolve against the proposals that carry them, and
// conflict resolution is internally consistent (no digest retained by
// more than one proposal), the precheck a
// ConvergenceBlockPrecheckRequested event asks for.
func (h *Harvester) PrecheckConvergence(block ConvergenceBlock) error {
	for _, ref := range block.ProposalRefs {
		if _, ok := h.dag.GetReferenceBlock(ref); !ok {
			return ErrNonExistentSource
		}
	}
	seen := make(map[Hash]bool)
	for proposalHash, digests := range block.RetainedDigests {
		found := false
		for _, ref := range block.ProposalRefs {
			if ref == proposalHash {
				found = true
				break
			}
		}
		if !found {
			return ErrNonExistentSource
		}
		vertex, ok := h.dag.GetReferenceBlock(proposalHash)
		if !ok || vertex.Kind != BlockProposal {
			return ErrNonExistentSource
		}
		for _, digest := range digests {
			if _, carried := vertex.Proposal.Transactions[digest]; !carried {
				return ErrRetainedDigestUnknown
			}
			if seen[digest] {
				return ErrRetainedDigestDup
			}
			seen[digest] = true
		}
	}
	return nil
}

// SignConvergence produces this harvester's partial signature over
// block.Header.Hash once precheck passes, and submits it to dag for
// accumulation. Returns the formed Certificate once the harvester
// threshold is reached; nil otherwise.
func (h *Harvester) SignConvergence(block ConvergenceBlock) (*Certificate, error) {
	if err := h.PrecheckConvergence(block); err != nil {
		return nil, err
	}

	h.mu.Lock()
	if h.formedCertificates[block.Header.Hash] {
		h.mu.Unlock()
		return nil, ErrCertificateExists
	}
	h.mu.Unlock()

	sig, err := h.dkg.SignPartial(block.Header.Hash)
	if err != nil {
		return nil, err
	}

	parts, ok := h.dag.AddSignerToConvergence(block.Header.Hash, sig)
	if !ok {
		return nil, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.formedCertificates[block.Header.Hash] {
		return nil, ErrCertificateExists
	}

	group, err := CombinePartialSignatures(parts)
	if err != nil {
		return nil, err
	}

	sort.Slice(parts, func(i, j int) bool { return parts[i].Signer < parts[j].Signer })
	cert := &Certificate{
		Signatures: parts,
		GroupSig:   group,
		BlockHash:  block.Header.Hash,
	}
	h.formedCertificates[block.Header.Hash] = true
	return cert, nil
}

// ApplyRewards runs the configured reward function over round and returns
// the resulting per-address credit deltas, folded into the convergence
// round's state-apply set.
func (h *Harvester) ApplyRewards(round ConvergenceRound) map[Address]uint64 {
	if h.reward == nil {
		return nil
	}
	return h.reward(round)
}

// SlashProposer marks claim ineligible, the harvester-side penalty for a
// proposer whose block contained transactions that failed validation.
func (h *Harvester) SlashProposer(claim *Claim) {
	claim.Slash()
}
