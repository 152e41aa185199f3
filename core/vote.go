package core

import bls "github.com/herumi/bls-eth-go-binary/bls"

// VoteKind distinguishes a farmer's normal vote from one that flags a
// transaction the farmer found invalid; farmers never silently drop.
type VoteKind uint8

const (
	VoteValid VoteKind = iota
	VoteInvalid
)

// Vote is a farmer's partial signature over a transaction digest.
type Vote struct {
	FarmerID        NodeID
	FarmerIndex     int
	Kind            VoteKind
	PartialSig      bls.Sign
	TransactionHash Hash
	ExecutionResult []byte // carries the invalid-marker reason when Kind == VoteInvalid
	QuorumID        QuorumID
	QuorumThreshold int
}

// IsValid reports whether the vote asserts the transaction is valid.
func (v Vote) IsValid() bool { return v.Kind == VoteValid }
