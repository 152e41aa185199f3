package core

// State store: three copy-on-write tries (accounts, transactions,
// claims) keyed by address, transaction digest, and node-id, behind a
// single owning writer with cheap derived read snapshots. Each apply
// builds fresh maps (accounts deep-cloned, transactions and claims copied
// by value) and swaps them in, so a ReadHandle, which only holds the
// current maps, is O(1) to take and isolated from the next write.

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"sort"
	"sync"
)

var ErrApplyFailed = errors.New("state store: apply failed, round rolled back to prior root")

// ReadHandle is an isolated, point-in-time view over the three tries.
type ReadHandle struct {
	accounts     map[Address]Account
	transactions map[Hash]Transaction
	claims       map[NodeID]Claim
	accountRoot  Hash
	txRoot       Hash
	claimRoot    Hash
}

// Account looks up addr in the snapshot.
func (h ReadHandle) Account(addr Address) (Account, bool) {
	a, ok := h.accounts[addr]
	return a, ok
}

// Transaction looks up digest in the snapshot.
func (h ReadHandle) Transaction(digest Hash) (Transaction, bool) {
	t, ok := h.transactions[digest]
	return t, ok
}

// Claim looks up id in the snapshot.
func (h ReadHandle) Claim(id NodeID) (Claim, bool) {
	c, ok := h.claims[id]
	return c, ok
}

// AccountRoot, TransactionRoot and ClaimRoot return the trie roots this
// handle was taken at.
func (h ReadHandle) AccountRoot() Hash     { return h.accountRoot }
func (h ReadHandle) TransactionRoot() Hash { return h.txRoot }
func (h ReadHandle) ClaimRoot() Hash       { return h.claimRoot }

// StateStore owns the three tries. All mutation happens through its own
// methods (ConvergenceApply and the single-operation inserts and updates);
// everyone else only ever sees a ReadHandle.
type StateStore struct {
	mu sync.RWMutex

	accounts     map[Address]Account
	transactions map[Hash]Transaction
	claims       map[NodeID]Claim

	accountRoot  Hash
	txRoot       Hash
	claimRoot    Hash
	priorAccount Hash
	priorTx      Hash
	priorClaim   Hash

	// appliedRounds remembers every convergence round (keyed by its
	// certified block hash) already folded into the tries, so a replayed
	// or re-delivered round is a no-op at the state root rather than
	// double-counting balances.
	appliedRounds map[Hash]bool
}

// NewStateStore constructs an empty StateStore.
func NewStateStore() *StateStore {
	return &StateStore{
		accounts:      make(map[Address]Account),
		transactions:  make(map[Hash]Transaction),
		claims:        make(map[NodeID]Claim),
		appliedRounds: make(map[Hash]bool),
	}
}

// ReadHandle returns an isolated snapshot of all three tries.
func (s *StateStore) ReadHandle() ReadHandle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ReadHandle{
		accounts:     s.accounts,
		transactions: s.transactions,
		claims:       s.claims,
		accountRoot:  s.accountRoot,
		txRoot:       s.txRoot,
		claimRoot:    s.claimRoot,
	}
}

// ConvergenceApply is the single consolidated write path for a
// convergence round: it consolidates duplicate AccountUpdateArgs for the
// same address, inserts extendTxns and extendClaims, and moves the trie
// roots forward only if every step succeeds. On failure the store is left
// exactly as it was: no half-applied round, prior roots intact. An
// account's nonce never moves backwards; a stale update's nonce is
// ignored.
//
// round identifies the certified convergence block these updates belong
// to. If round was already applied, ConvergenceApply is a no-op: it
// returns nil without touching the tries, which is what makes a
// re-delivered or replayed round idempotent at the state root rather than
// double-counting credits/debits.
func (s *StateStore) ConvergenceApply(round Hash, updates []AccountUpdateArgs, extendTxns map[Hash]Transaction, extendClaims map[NodeID]Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.appliedRounds[round] {
		return nil
	}

	consolidated := make(map[Address]AccountUpdateArgs)
	order := make([]Address, 0, len(updates))
	for _, u := range updates {
		if existing, ok := consolidated[u.Address]; ok {
			consolidated[u.Address] = consolidateUpdate(existing, u)
		} else {
			consolidated[u.Address] = u
			order = append(order, u.Address)
		}
	}

	nextAccounts := cloneAccounts(s.accounts)
	for _, addr := range order {
		u := consolidated[addr]
		acc, ok := nextAccounts[addr]
		if !ok {
			acc = Account{Address: addr}
		}
		if u.Nonce != nil && *u.Nonce > acc.Nonce {
			acc.Nonce = *u.Nonce
		}
		acc.Credits = saturatingAdd(acc.Credits, u.CreditsDelta)
		acc.Debits = saturatingAdd(acc.Debits, u.DebitsDelta)
		if len(u.Storage) > 0 {
			acc.Storage = u.Storage
		}
		if len(u.Code) > 0 {
			acc.Code = u.Code
		}
		acc.Digests.extend(u.Digests)
		nextAccounts[addr] = acc
	}

	nextTxns := cloneTransactions(s.transactions)
	for digest, tx := range extendTxns {
		nextTxns[digest] = tx
	}

	nextClaims := cloneClaims(s.claims)
	for id, c := range extendClaims {
		nextClaims[id] = c
	}

	accountRoot, err := rootOfAccounts(nextAccounts)
	if err != nil {
		return ErrApplyFailed
	}
	txRoot, err := rootOfTransactions(nextTxns)
	if err != nil {
		return ErrApplyFailed
	}
	claimRoot, err := rootOfClaims(nextClaims)
	if err != nil {
		return ErrApplyFailed
	}

	s.priorAccount, s.priorTx, s.priorClaim = s.accountRoot, s.txRoot, s.claimRoot
	s.accounts, s.transactions, s.claims = nextAccounts, nextTxns, nextClaims
	s.accountRoot, s.txRoot, s.claimRoot = accountRoot, txRoot, claimRoot
	s.appliedRounds[round] = true
	return nil
}

// InsertAccount creates acc in the account trie. Existing accounts are
// left untouched; balance-affecting changes go through ConvergenceApply.
func (s *StateStore) InsertAccount(acc Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[acc.Address]; ok {
		return nil
	}
	next := cloneAccounts(s.accounts)
	next[acc.Address] = acc.clone()
	return s.commitAccountsLocked(next)
}

// ExtendAccounts inserts every account in accs that does not already
// exist.
func (s *StateStore) ExtendAccounts(accs []Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := cloneAccounts(s.accounts)
	for _, acc := range accs {
		if _, ok := next[acc.Address]; !ok {
			next[acc.Address] = acc.clone()
		}
	}
	return s.commitAccountsLocked(next)
}

// UpdateAccount folds a single update into the account trie, outside any
// convergence round. Consolidation rules match ConvergenceApply's.
func (s *StateStore) UpdateAccount(u AccountUpdateArgs) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := cloneAccounts(s.accounts)
	acc, ok := next[u.Address]
	if !ok {
		acc = Account{Address: u.Address}
	}
	if u.Nonce != nil && *u.Nonce > acc.Nonce {
		acc.Nonce = *u.Nonce
	}
	acc.Credits = saturatingAdd(acc.Credits, u.CreditsDelta)
	acc.Debits = saturatingAdd(acc.Debits, u.DebitsDelta)
	if len(u.Storage) > 0 {
		acc.Storage = u.Storage
	}
	if len(u.Code) > 0 {
		acc.Code = u.Code
	}
	acc.Digests.extend(u.Digests)
	next[u.Address] = acc
	return s.commitAccountsLocked(next)
}

func (s *StateStore) commitAccountsLocked(next map[Address]Account) error {
	root, err := rootOfAccounts(next)
	if err != nil {
		return ErrApplyFailed
	}
	s.priorAccount = s.accountRoot
	s.accounts = next
	s.accountRoot = root
	return nil
}

// InsertTransaction records tx in the transaction trie.
func (s *StateStore) InsertTransaction(tx Transaction) error {
	return s.ExtendTransactions(map[Hash]Transaction{tx.Digest: tx})
}

// ExtendTransactions records every transaction in txns.
func (s *StateStore) ExtendTransactions(txns map[Hash]Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := cloneTransactions(s.transactions)
	for digest, tx := range txns {
		next[digest] = tx
	}
	root, err := rootOfTransactions(next)
	if err != nil {
		return ErrApplyFailed
	}
	s.priorTx = s.txRoot
	s.transactions = next
	s.txRoot = root
	return nil
}

// ExtendClaims records every claim in claims.
func (s *StateStore) ExtendClaims(claims map[NodeID]Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := cloneClaims(s.claims)
	for id, c := range claims {
		next[id] = c
	}
	root, err := rootOfClaims(next)
	if err != nil {
		return ErrApplyFailed
	}
	s.priorClaim = s.claimRoot
	s.claims = next
	s.claimRoot = root
	return nil
}

// RootHash folds the three trie roots into one digest for the store.
func (s *StateStore) RootHash() Hash {
	account, tx, claim := s.Roots()
	buf := make([]byte, 0, 3*len(account))
	buf = append(buf, account[:]...)
	buf = append(buf, tx[:]...)
	buf = append(buf, claim[:]...)
	return HashBytes(buf)
}

// RoundApplied reports whether round has already been folded into the
// tries, the same check ConvergenceApply uses internally.
func (s *StateStore) RoundApplied(round Hash) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.appliedRounds[round]
}

// PriorRoots returns the trie roots as of the apply before the most
// recent one.
func (s *StateStore) PriorRoots() (account, tx, claim Hash) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.priorAccount, s.priorTx, s.priorClaim
}

// Roots returns the current trie roots.
func (s *StateStore) Roots() (account, tx, claim Hash) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accountRoot, s.txRoot, s.claimRoot
}

func cloneAccounts(m map[Address]Account) map[Address]Account {
	out := make(map[Address]Account, len(m))
	for k, v := range m {
		out[k] = v.clone()
	}
	return out
}

func cloneTransactions(m map[Hash]Transaction) map[Hash]Transaction {
	out := make(map[Hash]Transaction, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneClaims(m map[NodeID]Claim) map[NodeID]Claim {
	out := make(map[NodeID]Claim, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// rootOfAccounts folds every account's own fields into a running digest in
// address order, so the root is deterministic regardless of map iteration
// order and changes if an account's address, nonce, credits, debits,
// storage or code changes (the Digests set is not hashed), not just a
// generic opaque byte-slice leaf per address, but the account trie's own
// record shape streamed directly into the hash.
func rootOfAccounts(m map[Address]Account) (Hash, error) {
	if len(m) == 0 {
		return Hash{}, nil
	}
	keys := make([]Address, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return string(keys[i][:]) < string(keys[j][:]) })

	h := sha256.New()
	h.Write([]byte("accounts-trie"))
	var scratch [8]byte
	for _, k := range keys {
		a := m[k]
		h.Write(a.Address[:])
		binary.BigEndian.PutUint64(scratch[:], a.Nonce)
		h.Write(scratch[:])
		binary.BigEndian.PutUint64(scratch[:], a.Credits)
		h.Write(scratch[:])
		binary.BigEndian.PutUint64(scratch[:], a.Debits)
		h.Write(scratch[:])
		h.Write(a.Storage)
		h.Write(a.Code)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out, nil
}

// rootOfTransactions folds every transaction digest present in the trie
// into a running digest, in digest order.
func rootOfTransactions(m map[Hash]Transaction) (Hash, error) {
	if len(m) == 0 {
		return Hash{}, nil
	}
	keys := make([]Hash, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	h := sha256.New()
	h.Write([]byte("transactions-trie"))
	for _, k := range keys {
		h.Write(k[:])
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out, nil
}

// rootOfClaims folds every claim's own hash into a running digest, in
// node-id order.
func rootOfClaims(m map[NodeID]Claim) (Hash, error) {
	if len(m) == 0 {
		return Hash{}, nil
	}
	keys := make([]NodeID, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	h := sha256.New()
	h.Write([]byte("claims-trie"))
	for _, k := range keys {
		c := m[k]
		h.Write([]byte(k))
		h.Write(c.Hash[:])
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out, nil
}
