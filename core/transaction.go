package core

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

// TokenKind is an opaque token discriminator carried on a Transaction.
// Nothing in this module dispatches on it; it exists for wire-shape
// compatibility with wallets that set one.
type TokenKind uint32

const NativeCoin TokenKind = 0

// Transaction is a content-addressed transfer request.
type Transaction struct {
	Digest        Hash
	Sender        Address
	Receiver      Address
	Amount        uint64
	Token         TokenKind
	Timestamp     time.Time
	SenderPubKey  []byte
	Signature     []byte
	Nonce         uint64
	ValidatorVote map[NodeID]Vote
}

var (
	ErrTransactionBadSignature = errors.New("transaction: signature does not verify")
	ErrTransactionStaleTime    = errors.New("transaction: timestamp outside skew window")
	ErrTransactionInsufficient = errors.New("transaction: amount exceeds sender balance")
	ErrTransactionUnknownSender = errors.New("transaction: sender account does not exist")
	ErrTransactionBadNonce     = errors.New("transaction: nonce mismatch")
)

// canonicalBytes serializes every field except ValidatorVote, in a fixed
// field order, so Digest is deterministic over everything the validator
// map does not touch.
func (t Transaction) canonicalBytes() []byte {
	var buf bytes.Buffer
	buf.Write(t.Sender[:])
	buf.Write(t.Receiver[:])
	var amt [8]byte
	binary.BigEndian.PutUint64(amt[:], t.Amount)
	buf.Write(amt[:])
	var tok [4]byte
	binary.BigEndian.PutUint32(tok[:], uint32(t.Token))
	buf.Write(tok[:])
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(t.Timestamp.UnixNano()))
	buf.Write(ts[:])
	buf.Write(t.SenderPubKey)
	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], t.Nonce)
	buf.Write(nonce[:])
	return buf.Bytes()
}

// ComputeDigest returns the deterministic content digest for t.
func (t Transaction) ComputeDigest() Hash {
	return HashBytes(t.canonicalBytes())
}

// VerifySignature reports whether t.Signature verifies against
// t.SenderPubKey over t's canonical bytes. Wallet-issued transactions are
// Ed25519-signed (see collaborators.go's Signer); dispatch goes through
// security.go so the wallet can move to another KeyAlgo without touching
// the validation path.
func (t Transaction) VerifySignature() (bool, error) {
	return Verify(AlgoEd25519, t.SenderPubKey, t.canonicalBytes(), t.Signature)
}

// WithinSkew reports whether t.Timestamp lies within skew of now,
// inclusive of the bound.
func (t Transaction) WithinSkew(now time.Time, skew time.Duration) bool {
	delta := now.Sub(t.Timestamp)
	if delta < 0 {
		delta = -delta
	}
	return delta <= skew
}

// NonceMode controls how Farmer.validate checks Transaction.Nonce against
// the sender account's current nonce.
type NonceMode uint8

const (
	// NonceStrictEqual requires nonce == account.nonce.
	NonceStrictEqual NonceMode = iota
	// NonceMonotonic accepts nonce > account.nonce (replay-protection only).
	NonceMonotonic
)

// CheckNonce validates t.Nonce against accountNonce under mode.
func (t Transaction) CheckNonce(accountNonce uint64, mode NonceMode) bool {
	switch mode {
	case NonceMonotonic:
		return t.Nonce > accountNonce
	default:
		return t.Nonce == accountNonce
	}
}
