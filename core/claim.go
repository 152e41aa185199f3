package core

import "encoding/binary"

// Claim is a node's self-asserted mining eligibility, bound to its
// public key.
type Claim struct {
	NodeID    NodeID
	PublicKey []byte
	Hash      Hash
	Eligible  bool
}

// GetPointer returns the claim's pointer for blockSeed, used by the miner's
// lowest-pointer-sum election. Ineligible claims never return a
// pointer.
func (c Claim) GetPointer(blockSeed Hash) (uint64, bool) {
	if !c.Eligible {
		return 0, false
	}
	buf := make([]byte, 0, len(c.Hash)+len(blockSeed))
	buf = append(buf, c.Hash[:]...)
	buf = append(buf, blockSeed[:]...)
	digest := HashBytes(buf)
	return binary.BigEndian.Uint64(digest[:8]), true
}

// NewClaim builds a Claim for nodeID/publicKey, hashing the two together to
// produce the claim's own identity hash.
func NewClaim(nodeID NodeID, publicKey []byte) Claim {
	buf := append([]byte(nodeID), publicKey...)
	return Claim{
		NodeID:    nodeID,
		PublicKey: append([]byte(nil), publicKey...),
		Hash:      HashBytes(buf),
		Eligible:  true,
	}
}

// Slash marks c ineligible, the harvester-side penalty for a proposer whose
// block contained transactions that failed validation.
func (c *Claim) Slash() { c.Eligible = false }
