package core

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"
	"time"
)

// BlockKind discriminates the Block tagged union.
type BlockKind uint8

const (
	BlockGenesis BlockKind = iota
	BlockProposal
	BlockConvergence
)

func (k BlockKind) String() string {
	switch k {
	case BlockGenesis:
		return "genesis"
	case BlockProposal:
		return "proposal"
	case BlockConvergence:
		return "convergence"
	default:
		return "unknown"
	}
}

// BlockHeader carries the fields common to every block variant.
type BlockHeader struct {
	Hash      Hash
	Round     uint64
	Epoch     uint64
	Timestamp time.Time
}

// GenesisBlock is the single initial block of the DAG.
type GenesisBlock struct {
	Header       BlockHeader
	Distribution map[Address]uint64
}

// ProposalBlock is a miner's proposed batch of farmer-validated
// transactions, referencing a prior confirmed block.
type ProposalBlock struct {
	Header       BlockHeader
	Reference    Hash // prior confirmed Genesis or Convergence hash
	Transactions map[Hash]Transaction
	Claims       map[NodeID]Claim
	Proposer     Claim
}

// ConvergenceBlock merges one or more proposal blocks and, once a
// Certificate attaches, advances the confirmed chain head.
type ConvergenceBlock struct {
	Header          BlockHeader
	ProposalRefs    []Hash          // hashes of every merged ProposalBlock
	RetainedDigests map[Hash][]Hash // proposal hash -> retained transaction digests, in apply order
	Certificate     *Certificate
}

// Block is the tagged union of the three variants. Exactly one of the
// Genesis/Proposal/Convergence fields is non-nil, matching Kind.
type Block struct {
	Kind        BlockKind
	Genesis     *GenesisBlock
	Proposal    *ProposalBlock
	Convergence *ConvergenceBlock
}

// Hash returns the block's own content hash, regardless of variant.
func (b Block) Hash() Hash {
	switch b.Kind {
	case BlockGenesis:
		return b.Genesis.Header.Hash
	case BlockProposal:
		return b.Proposal.Header.Hash
	case BlockConvergence:
		return b.Convergence.Header.Hash
	default:
		return Hash{}
	}
}

// Round returns the block's round number, regardless of variant.
func (b Block) Round() uint64 {
	switch b.Kind {
	case BlockGenesis:
		return b.Genesis.Header.Round
	case BlockProposal:
		return b.Proposal.Header.Round
	case BlockConvergence:
		return b.Convergence.Header.Round
	default:
		return 0
	}
}

// NewGenesisBlock builds a GenesisBlock header-first, hashing the
// distribution in address-sorted order so the hash is deterministic
// across every node applying the same genesis, regardless of map
// iteration order.
func NewGenesisBlock(round, epoch uint64, distribution map[Address]uint64) GenesisBlock {
	addrs := make([]Address, 0, len(distribution))
	for addr := range distribution {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return string(addrs[i][:]) < string(addrs[j][:]) })

	h := sha256.New()
	h.Write([]byte("genesis"))
	var scratch [8]byte
	for _, addr := range addrs {
		h.Write(addr[:])
		binary.BigEndian.PutUint64(scratch[:], distribution[addr])
		h.Write(scratch[:])
	}
	var root Hash
	copy(root[:], h.Sum(nil))

	return GenesisBlock{
		Header: BlockHeader{
			Hash:      root,
			Round:     round,
			Epoch:     epoch,
			Timestamp: time.Now().UTC(),
		},
		Distribution: distribution,
	}
}
