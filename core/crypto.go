package core

// Package core – threshold cryptography, hashing and key derivation for the
// consensus and state-transition subsystem.
//
// Signing is split across two algorithms: Ed25519 for node/wallet identity
// (see Signer in collaborators.go, keypair.go whose keys come from
// crypto/ed25519, and transaction.go whose signatures are checked through
// security.go's Verify) and BLS12-381 (herumi/bls-eth-go-binary) for the
// threshold signatures farmers and harvesters exchange. The threshold
// scheme is joint-Feldman DKG: each quorum member's Part is a degree-t
// polynomial commitment; partial signatures are combined by Lagrange
// interpolation (bls.Sign.Recover), not naive aggregation, because the
// certificate must verify under one group public key.
//
// The multi-algorithm Sign/Verify dispatch lives in security.go; this
// file owns the hash/address/node-id primitives and the threshold-combine
// step. There is no shared Merkle-leaf utility: each trie (state_store.go)
// and block variant (block.go, miner.go) folds its own fields into its
// root digest directly, since their leaf shapes differ enough that a
// shared byte-slice-leaves function would just be indirection.

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	bls "github.com/herumi/bls-eth-go-binary/bls"
)

func init() {
	if err := bls.Init(bls.BLS12_381); err != nil {
		panic(fmt.Errorf("bls init: %w", err))
	}
	bls.SetETHmode(bls.EthModeDraft07)
}

// Hash is a 32-byte content digest, used for transaction, block and claim
// identities.
type Hash [32]byte

// HashBytes returns the SHA-256 digest of b.
func HashBytes(b []byte) Hash {
	return Hash(sha256.Sum256(b))
}

// Hex returns the lowercase hex encoding of h.
func (h Hash) Hex() string { return hex.EncodeToString(h[:]) }

// Short returns the first 8 hex characters of h, for log lines.
func (h Hash) Short() string {
	s := h.Hex()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool { return h == Hash{} }

// Less orders hashes lexicographically, used by the proposer-conflict
// tie-breakers.
func (h Hash) Less(other Hash) bool {
	for i := range h {
		if h[i] != other[i] {
			return h[i] < other[i]
		}
	}
	return false
}

// Address is a 20-byte account identifier, derived from a public key.
type Address [20]byte

// AddressFromPublicKey derives an Address as the last 20 bytes of
// sha256(pubkey).
func AddressFromPublicKey(pub []byte) Address {
	sum := sha256.Sum256(pub)
	var a Address
	copy(a[:], sum[len(sum)-20:])
	return a
}

// Hex returns the lowercase hex encoding of a, prefixed with 0x.
func (a Address) Hex() string { return "0x" + hex.EncodeToString(a[:]) }

// Short returns a shortened form of a for log lines.
func (a Address) Short() string {
	s := a.Hex()
	if len(s) > 10 {
		return s[:10]
	}
	return s
}

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool { return a == Address{} }

// NodeID identifies a quorum member inside the DKG/certificate protocols.
// It is the decimal-string form the herumi bls.ID type expects.
type NodeID string

func (id NodeID) blsID() (bls.ID, error) {
	var out bls.ID
	if err := out.SetDecString(string(id)); err != nil {
		return bls.ID{}, fmt.Errorf("node id %q: %w", id, err)
	}
	return out, nil
}

var ErrNoSharesToCombine = errors.New("crypto: no partial signatures to combine")

// PartialSignature is one quorum member's contribution to a threshold
// signature: its node id plus a BLS signature produced under its secret
// key share.
type PartialSignature struct {
	Signer NodeID
	Sig    bls.Sign
}

// CombinePartialSignatures interpolates ≥ threshold partial signatures
// into the group signature, the same Lagrange-recovery step the DKG
// engine's KeysetReady transition relies on for certificate formation.
func CombinePartialSignatures(parts []PartialSignature) (bls.Sign, error) {
	if len(parts) == 0 {
		return bls.Sign{}, ErrNoSharesToCombine
	}
	sigs := make([]bls.Sign, len(parts))
	ids := make([]bls.ID, len(parts))
	for i, p := range parts {
		id, err := p.Signer.blsID()
		if err != nil {
			return bls.Sign{}, err
		}
		sigs[i] = p.Sig
		ids[i] = id
	}
	var group bls.Sign
	if err := group.Recover(sigs, ids); err != nil {
		return bls.Sign{}, fmt.Errorf("recover group signature: %w", err)
	}
	return group, nil
}
