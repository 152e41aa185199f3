package core

// Account and the per-account digest bag.

// DigestClass classifies why a transaction digest is recorded against an
// account.
type DigestClass uint8

const (
	DigestSent DigestClass = iota
	DigestReceived
	DigestStaked
)

// DigestBag tracks the transaction digests that have touched an account,
// split by the role the account played.
type DigestBag struct {
	Sent     []Hash
	Received []Hash
	Staked   []Hash
}

func (b *DigestBag) add(class DigestClass, h Hash) {
	switch class {
	case DigestSent:
		b.Sent = append(b.Sent, h)
	case DigestReceived:
		b.Received = append(b.Received, h)
	case DigestStaked:
		b.Staked = append(b.Staked, h)
	}
}

// clone returns a deep copy of b, used when an account snapshot is taken.
func (b DigestBag) clone() DigestBag {
	out := DigestBag{
		Sent:     append([]Hash(nil), b.Sent...),
		Received: append([]Hash(nil), b.Received...),
		Staked:   append([]Hash(nil), b.Staked...),
	}
	return out
}

// extend merges other's digest subsets onto b in place, appending to the
// sent/received/staked subsets.
func (b *DigestBag) extend(other DigestBag) {
	b.Sent = append(b.Sent, other.Sent...)
	b.Received = append(b.Received, other.Received...)
	b.Staked = append(b.Staked, other.Staked...)
}

// Account is the replicated state-store record for one address.
type Account struct {
	Address Address
	Nonce   uint64
	Credits uint64
	Debits  uint64
	Storage []byte
	Code    []byte
	Digests DigestBag
}

// Balance is credits minus debits, saturating at zero (never negative).
func (a Account) Balance() uint64 {
	if a.Debits >= a.Credits {
		return 0
	}
	return a.Credits - a.Debits
}

// clone returns a deep copy of a.
func (a Account) clone() Account {
	out := a
	out.Storage = append([]byte(nil), a.Storage...)
	out.Code = append([]byte(nil), a.Code...)
	out.Digests = a.Digests.clone()
	return out
}

// AccountUpdateArgs carries optional deltas for a single account within one
// convergence round's consolidated apply.
type AccountUpdateArgs struct {
	Address      Address
	Nonce        *uint64
	CreditsDelta uint64
	DebitsDelta  uint64
	Storage      []byte
	Code         []byte
	Digests      DigestBag
}

// saturatingAdd adds b to a, clamping at math.MaxUint64 instead of
// overflowing.
func saturatingAdd(a, b uint64) uint64 {
	sum := a + b
	if sum < a { // overflow
		return ^uint64(0)
	}
	return sum
}

// consolidateUpdate merges incoming into existing:
//   - nonce := max(existing, incoming)
//   - credits/debits := saturating sum
//   - storage/code := most recent non-empty
//   - digests are extended
func consolidateUpdate(existing AccountUpdateArgs, incoming AccountUpdateArgs) AccountUpdateArgs {
	out := existing
	if incoming.Nonce != nil {
		if out.Nonce == nil || *incoming.Nonce > *out.Nonce {
			out.Nonce = incoming.Nonce
		}
	}
	out.CreditsDelta = saturatingAdd(out.CreditsDelta, incoming.CreditsDelta)
	out.DebitsDelta = saturatingAdd(out.DebitsDelta, incoming.DebitsDelta)
	if len(incoming.Storage) > 0 {
		out.Storage = incoming.Storage
	}
	if len(incoming.Code) > 0 {
		out.Code = incoming.Code
	}
	out.Digests.extend(incoming.Digests)
	return out
}
