package core

// Farmer path: validates transactions in the farmer's assigned quorum
// and casts threshold votes.

import (
	"time"
)

// FarmerConfig bounds one farmer's validation behaviour.
type FarmerConfig struct {
	SkewWindow time.Duration
	NonceMode  NonceMode
}

// Farmer validates incoming transactions against a state/mempool snapshot
// and produces Votes signed under its DKG secret-key share.
type Farmer struct {
	id        NodeID
	cfg       FarmerConfig
	dkg       *Engine
	mempool   *Mempool
	quorum    QuorumID
	threshold int
	contracts ContractRunner
}

// NewFarmer constructs a Farmer bound to dkg (already Active) for signing
// and mempool for staging incoming transactions.
func NewFarmer(id NodeID, cfg FarmerConfig, dkg *Engine, mempool *Mempool, quorum QuorumID, threshold int) *Farmer {
	return &Farmer{id: id, cfg: cfg, dkg: dkg, mempool: mempool, quorum: quorum, threshold: threshold}
}

// WithContractRunner attaches a ContractRunner; transactions whose
// receiver account carries code are executed through it and the output
// rides the vote's execution_result.
func (f *Farmer) WithContractRunner(r ContractRunner) *Farmer {
	f.contracts = r
	return f
}

// Handle ingests txn: stages it Pending in the mempool, validates it
// against handle/mempool snapshot state, and returns the Vote to broadcast
// to the harvester quorum. Farmers never silently drop an invalid
// transaction: Handle always returns a Vote, valid or not.
func (f *Farmer) Handle(txn Transaction, handle ReadHandle, now time.Time) (Vote, error) {
	if err := f.mempool.Insert(txn); err != nil && err != ErrDuplicateInsertion {
		return Vote{}, err
	}

	reason, valid := f.validate(txn, handle, now)
	status := StatusValidated
	if !valid {
		status = StatusRejected
	}
	if err := f.mempool.UpdateStatus(txn.Digest, status); err != nil {
		return Vote{}, err
	}

	sig, err := f.dkg.SignPartial(txn.Digest)
	if err != nil {
		return Vote{}, err
	}

	kind := VoteValid
	var execResult []byte
	if !valid {
		kind = VoteInvalid
		execResult = []byte(reason)
	} else if f.contracts != nil {
		if receiver, ok := handle.Account(txn.Receiver); ok && len(receiver.Code) > 0 {
			out, runErr := f.contracts.Run(receiver.Code, txn.Digest[:])
			if runErr != nil {
				Log.WithFields(map[string]interface{}{"txn": txn.Digest.Short(), "err": runErr}).Warn("contract execution failed")
			} else {
				execResult = out
			}
		}
	}

	return Vote{
		FarmerID:        f.id,
		Kind:            kind,
		PartialSig:      sig.Sig,
		TransactionHash: txn.Digest,
		ExecutionResult: execResult,
		QuorumID:        f.quorum,
		QuorumThreshold: f.threshold,
	}, nil
}

// validate checks txn against handle: signature, skew, sender existence,
// balance, nonce.
func (f *Farmer) validate(txn Transaction, handle ReadHandle, now time.Time) (reason string, ok bool) {
	verified, err := txn.VerifySignature()
	if err != nil || !verified {
		return "bad signature", false
	}
	if !txn.WithinSkew(now, f.cfg.SkewWindow) {
		return "timestamp outside skew window", false
	}
	sender, exists := handle.Account(txn.Sender)
	if !exists {
		return "unknown sender", false
	}
	if txn.Amount > sender.Balance() {
		return "insufficient funds", false
	}
	if !txn.CheckNonce(sender.Nonce, f.cfg.NonceMode) {
		return "nonce mismatch", false
	}
	return "", true
}
