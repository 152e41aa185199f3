package core

import (
	"errors"
	"sort"
	"sync"

	bls "github.com/herumi/bls-eth-go-binary/bls"
)

// QuorumID names one quorum.
type QuorumID string

// QuorumKind is the role a quorum performs.
type QuorumKind uint8

const (
	QuorumFarmer QuorumKind = iota
	QuorumHarvester
	QuorumMiner
)

func (k QuorumKind) String() string {
	switch k {
	case QuorumFarmer:
		return "farmer"
	case QuorumHarvester:
		return "harvester"
	case QuorumMiner:
		return "miner"
	default:
		return "unknown"
	}
}

// NodeType is a peer's configured role.
type NodeType uint8

const (
	NodeBootstrap NodeType = iota
	NodeValidator
	NodeMiner
	NodeFull
)

// QuorumMembership maps a quorum id to its kind, members and per-member
// threshold-key shares.
type QuorumMembership struct {
	ID               QuorumID
	Kind             QuorumKind
	Members          []NodeID
	ThresholdPubKeys map[NodeID]bls.PublicKey
	GroupPublicKey   bls.PublicKey
	Threshold        int
}

var (
	ErrNotBootstrap    = errors.New("quorum: only the bootstrap node may assign quorum membership")
	ErrAlreadyAssigned = errors.New("quorum: node already assigned to a quorum this epoch")
	ErrUnknownQuorum   = errors.New("quorum: unknown quorum id")
)

// AllocationRatios controls the split of non-bootstrap peers across
// Farmer/Harvester/Miner quorums.
type AllocationRatios struct {
	Farmer    float64
	Harvester float64
	Miner     float64
}

// DefaultAllocationRatios is the default 50/25/25 split.
var DefaultAllocationRatios = AllocationRatios{Farmer: 0.50, Harvester: 0.25, Miner: 0.25}

// Allocator assigns joining peers to quorum kinds. Only a Bootstrap node
// may allocate; it is the only type permitted to call Assign.
type Allocator struct {
	mu       sync.Mutex
	isBoot   bool
	ratios   AllocationRatios
	assigned map[NodeID]QuorumKind
	order    []NodeID // join order, for deterministic round-robin allocation
}

// NewAllocator constructs an Allocator. isBootstrap must be true for the
// node that is permitted to assign membership.
func NewAllocator(isBootstrap bool, ratios AllocationRatios) *Allocator {
	return &Allocator{
		isBoot:   isBootstrap,
		ratios:   ratios,
		assigned: make(map[NodeID]QuorumKind),
	}
}

// Assign allocates peer to a quorum kind using a deterministic, weighted
// round-robin over join order. A node can belong to at most one quorum
// per epoch.
func (a *Allocator) Assign(peer NodeID) (QuorumKind, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.isBoot {
		return 0, ErrNotBootstrap
	}
	if kind, ok := a.assigned[peer]; ok {
		return kind, ErrAlreadyAssigned
	}
	kind := a.pick(len(a.order))
	a.assigned[peer] = kind
	a.order = append(a.order, peer)
	return kind, nil
}

// pick returns the quorum kind for the i-th joining peer, using the
// configured ratios as weighted buckets over a fixed-size cycle.
func (a *Allocator) pick(i int) QuorumKind {
	const cycle = 100
	pos := i % cycle
	farmerCut := int(a.ratios.Farmer * cycle)
	harvesterCut := farmerCut + int(a.ratios.Harvester*cycle)
	switch {
	case pos < farmerCut:
		return QuorumFarmer
	case pos < harvesterCut:
		return QuorumHarvester
	default:
		return QuorumMiner
	}
}

// Members returns every peer currently assigned to kind, in join order.
func (a *Allocator) Members(kind QuorumKind) []NodeID {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]NodeID, 0)
	for _, id := range a.order {
		if a.assigned[id] == kind {
			out = append(out, id)
		}
	}
	return out
}

// CertificateThresholdTracker accumulates partial signatures per block
// hash until the configured harvester threshold is reached. Accumulation
// is commutative and idempotent per (block hash, signer).
type CertificateThresholdTracker struct {
	mu        sync.Mutex
	threshold int
	sigs      map[Hash]map[NodeID]PartialSignature
}

// NewCertificateThresholdTracker constructs a tracker requiring threshold
// distinct signers per block hash before certificate formation.
func NewCertificateThresholdTracker(threshold int) *CertificateThresholdTracker {
	return &CertificateThresholdTracker{
		threshold: threshold,
		sigs:      make(map[Hash]map[NodeID]PartialSignature),
	}
}

// Add records sig for blockHash. Re-adding the same (blockHash, signer)
// pair leaves the set unchanged.
func (t *CertificateThresholdTracker) Add(blockHash Hash, sig PartialSignature) {
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.sigs[blockHash]
	if !ok {
		set = make(map[NodeID]PartialSignature)
		t.sigs[blockHash] = set
	}
	if _, exists := set[sig.Signer]; !exists {
		set[sig.Signer] = sig
	}
}

// HasThreshold reports whether blockHash has accumulated ≥ threshold
// distinct signers.
func (t *CertificateThresholdTracker) HasThreshold(blockHash Hash) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sigs[blockHash]) >= t.threshold
}

// Signatures returns a deterministically ordered (by signer) copy of the
// partial signatures collected for blockHash.
func (t *CertificateThresholdTracker) Signatures(blockHash Hash) []PartialSignature {
	t.mu.Lock()
	defer t.mu.Unlock()
	set := t.sigs[blockHash]
	out := make([]PartialSignature, 0, len(set))
	for _, sig := range set {
		out = append(out, sig)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Signer < out[j].Signer })
	return out
}

// Reset discards all accumulated signatures for blockHash. The DAG calls it
// when the block is admitted with its certificate or evicted from pending,
// and refuses partials for a block it has already admitted, so only one
// certificate forms per block hash.
func (t *CertificateThresholdTracker) Reset(blockHash Hash) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sigs, blockHash)
}
