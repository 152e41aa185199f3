package core

import bls "github.com/herumi/bls-eth-go-binary/bls"

// Certificate attaches to a ConvergenceBlock once ≥ harvester_threshold
// partial signatures over its hash have been combined.
type Certificate struct {
	Signatures   []PartialSignature // ordered by Signer, cardinality >= harvester threshold
	GroupSig     bls.Sign           // combined threshold signature over BlockHash
	RootHash     Hash               // post-apply state root promise
	BlockHash    Hash
	Inauguration *QuorumMembership // new membership for the next epoch, if any
}

// Verify checks the certificate's combined group signature against
// groupPubKey and that enough signatures were supplied.
func (c Certificate) Verify(groupPubKey bls.PublicKey, harvesterThreshold int) bool {
	if len(c.Signatures) < harvesterThreshold {
		return false
	}
	return c.GroupSig.VerifyByte(&groupPubKey, c.BlockHash[:])
}
