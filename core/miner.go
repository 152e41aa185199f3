package core

// Miner path: lowest-pointer-sum leader election, proposal/convergence
// block assembly, and proposer-conflict resolution.

import (
	"crypto/sha256"
	"sort"
	"time"
)

// Miner runs the lowest-pointer election and assembles proposal/
// convergence blocks. It is only active on NodeMiner-kind nodes.
type Miner struct {
	id      NodeID
	mempool *Mempool
	dag     *DAG
}

// NewMiner constructs a Miner bound to mempool (for transaction selection)
// and dag (for reference resolution).
func NewMiner(id NodeID, mempool *Mempool, dag *DAG) *Miner {
	return &Miner{id: id, mempool: mempool, dag: dag}
}

// ElectLeader runs the lowest-pointer-sum election over eligible claims
// for blockSeed: the lowest non-absent pointer wins, ties broken by
// claim-hash lexicographic order.
func ElectLeader(claims []Claim, blockSeed Hash) (Claim, bool) {
	type candidate struct {
		claim   Claim
		pointer uint64
	}
	var best *candidate
	for _, c := range claims {
		pointer, ok := c.GetPointer(blockSeed)
		if !ok {
			continue
		}
		if best == nil || pointer < best.pointer || (pointer == best.pointer && c.Hash.Less(best.claim.Hash)) {
			cand := candidate{claim: c, pointer: pointer}
			best = &cand
		}
	}
	if best == nil {
		return Claim{}, false
	}
	return best.claim, true
}

// ProposeBlock builds a ProposalBlock referencing reference, containing
// every Pending-or-Validated mempool transaction up to no particular cap
// (subject to the mempool snapshot taken at call time).
func (m *Miner) ProposeBlock(reference Hash, proposer Claim, round, epoch uint64, claims map[NodeID]Claim) ProposalBlock {
	staged := m.mempool.SnapshotBy(func(r TxnRecord) bool {
		return r.Status == StatusPending || r.Status == StatusValidated
	})
	txns := make(map[Hash]Transaction, len(staged))
	for _, rec := range staged {
		txns[rec.Txn.Digest] = rec.Txn
	}

	digests := make([]Hash, 0, len(txns))
	for digest := range txns {
		digests = append(digests, digest)
	}
	sort.Slice(digests, func(i, j int) bool { return digests[i].Less(digests[j]) })

	h := sha256.New()
	h.Write([]byte("proposal"))
	h.Write(reference[:])
	h.Write(proposer.Hash[:])
	for _, d := range digests {
		h.Write(d[:])
	}
	var hash Hash
	copy(hash[:], h.Sum(nil))

	return ProposalBlock{
		Header: BlockHeader{
			Hash:      hash,
			Round:     round,
			Epoch:     epoch,
			Timestamp: time.Now().UTC(),
		},
		Reference:    reference,
		Transactions: txns,
		Claims:       claims,
		Proposer:     proposer,
	}
}

// ConvergeProposals builds a ConvergenceBlock merging proposals. A
// transaction digest that appears in more than one proposal is retained
// in the proposal whose claim has the lower pointer for this round, then
// in the proposal with the smaller hash lexicographically.
func (m *Miner) ConvergeProposals(proposals []ProposalBlock, blockSeed Hash, round, epoch uint64) ConvergenceBlock {
	owner := make(map[Hash]Hash) // digest -> winning proposal hash
	ownerPointer := make(map[Hash]uint64)

	order := append([]ProposalBlock(nil), proposals...)
	sort.Slice(order, func(i, j int) bool {
		return order[i].Header.Hash.Less(order[j].Header.Hash)
	})

	for _, p := range order {
		pointer, ok := p.Proposer.GetPointer(blockSeed)
		if !ok {
			pointer = ^uint64(0)
		}
		for digest := range p.Transactions {
			current, claimed := owner[digest]
			if !claimed {
				owner[digest] = p.Header.Hash
				ownerPointer[digest] = pointer
				continue
			}
			currentPointer := ownerPointer[digest]
			if pointer < currentPointer || (pointer == currentPointer && p.Header.Hash.Less(current)) {
				owner[digest] = p.Header.Hash
				ownerPointer[digest] = pointer
			}
		}
	}

	retained := make(map[Hash][]Hash)
	for digest, propHash := range owner {
		retained[propHash] = append(retained[propHash], digest)
	}
	for propHash := range retained {
		sort.Slice(retained[propHash], func(i, j int) bool {
			return retained[propHash][i].Less(retained[propHash][j])
		})
	}

	refs := make([]Hash, 0, len(order))
	h := sha256.New()
	h.Write([]byte("convergence"))
	for _, p := range order {
		refs = append(refs, p.Header.Hash)
		h.Write(p.Header.Hash[:])
	}
	var hash Hash
	copy(hash[:], h.Sum(nil))

	return ConvergenceBlock{
		Header: BlockHeader{
			Hash:      hash,
			Round:     round,
			Epoch:     epoch,
			Timestamp: time.Now().UTC(),
		},
		ProposalRefs:    refs,
		RetainedDigests: retained,
	}
}
