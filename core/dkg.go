package core

// DKG engine: the per-epoch Part/Ack handshake that derives a quorum's
// threshold keyset, built on herumi BLS12-381. Each member's Part is a
// joint-Feldman polynomial commitment (coefficients' public keys) plus
// one secret-key share per recipient, generated via
// bls.SecretKey.Set(msk, id); an Ack is the receiver confirming its share
// verifies against the sender's commitment via
// bls.PublicKey.Set(commitment, id).
//
// Shares ride the wire unencrypted: transport confidentiality is the
// gossip layer's contract (Transport in collaborators.go / GossipNode in
// network.go), not reimplemented here.

import (
	"encoding/json"
	"errors"
	"sort"
	"sync"

	bls "github.com/herumi/bls-eth-go-binary/bls"
)

// DkgState is the per-node, per-epoch state machine position.
type DkgState uint8

const (
	DkgIdle DkgState = iota
	DkgPartsCollecting
	DkgAcksCollecting
	DkgKeysetReady
	DkgActive
	DkgClearing
)

func (s DkgState) String() string {
	switch s {
	case DkgIdle:
		return "idle"
	case DkgPartsCollecting:
		return "parts_collecting"
	case DkgAcksCollecting:
		return "acks_collecting"
	case DkgKeysetReady:
		return "keyset_ready"
	case DkgActive:
		return "active"
	case DkgClearing:
		return "clearing"
	default:
		return "unknown"
	}
}

// Part is a member's broadcast polynomial commitment plus the per-recipient
// secret share it carries (unencrypted, see the package note above).
type Part struct {
	Sender     NodeID
	Commitment []bls.PublicKey          // coefficient public keys, degree t
	Shares     map[NodeID]bls.SecretKey // recipient -> their share of Sender's polynomial
}

// Ack is a receiver's confirmation that Sender's share to it verified
// against Sender's commitment.
type Ack struct {
	Receiver NodeID
	Sender   NodeID
	Valid    bool
}

// The protocol error set. All of these are local-fatal to the epoch;
// the engine returns to Idle after Clear.
var (
	ErrNotEnoughPeerPublicKeys      = errors.New("dkg: not enough peer public keys")
	ErrSyncKeyGenInstanceNotCreated = errors.New("dkg: sync key gen instance not created")
	ErrNotEnoughPartMsgsReceived    = errors.New("dkg: not enough part messages received")
	ErrNotEnoughPartsCompleted      = errors.New("dkg: not enough parts completed")
	ErrNotEnoughAckMsgsReceived     = errors.New("dkg: not enough ack messages received")
	ErrPartCommitmentNotGenerated   = errors.New("dkg: part commitment not generated")
	ErrPartMsgMissingForNode        = errors.New("dkg: part message missing for node")
	ErrPartMsgAlreadyAcknowledge    = errors.New("dkg: part message already acknowledged")
	ErrInvalidPartMessage           = errors.New("dkg: invalid part message")
	ErrInvalidAckMessage            = errors.New("dkg: invalid ack message")
	ErrSyncKeyGenError              = errors.New("dkg: sync key gen error")
	ErrConfigInvalidValue           = errors.New("dkg: invalid configuration value")
	ErrInvalidNode                  = errors.New("dkg: node type may not participate in dkg")
	ErrObserverNotAllowed           = errors.New("dkg: observer not allowed")
)

// ThresholdConfig is the (threshold, total) pair a DKG epoch runs under.
type ThresholdConfig struct {
	Threshold int // t; a group signature requires t+1 shares
	Total     int // expected quorum member count
}

// Engine runs one node's side of the DKG protocol for a single epoch.
type Engine struct {
	mu sync.Mutex

	self     NodeID
	nodeType NodeType
	cfg      ThresholdConfig
	state    DkgState
	peerKeys map[NodeID][]byte // raw peer public keys

	partStore map[NodeID]Part          // sender -> Part
	ackStore  map[[2]NodeID]Ack        // (receiver, sender) -> Ack
	myShares  map[NodeID]bls.SecretKey // sender -> share this node received

	groupPublicKey  bls.PublicKey
	secretKeyShare  bls.SecretKey
	publicKeyShares map[NodeID]bls.PublicKey // member id -> its verification key
	keysetReady     bool
}

// NewEngine constructs a DKG Engine for self, which must be a Validator
// assigned to a Farmer or Harvester quorum; Bootstrap and Miner types are
// refused with ErrInvalidNode.
func NewEngine(self NodeID, nodeType NodeType, cfg ThresholdConfig) (*Engine, error) {
	if nodeType == NodeBootstrap || nodeType == NodeMiner {
		return nil, ErrInvalidNode
	}
	return &Engine{
		self:      self,
		nodeType:  nodeType,
		cfg:       cfg,
		state:     DkgIdle,
		peerKeys:  make(map[NodeID][]byte),
		partStore: make(map[NodeID]Part),
		ackStore:  make(map[[2]NodeID]Ack),
		myShares:  make(map[NodeID]bls.SecretKey),
	}, nil
}

// State returns the engine's current state.
func (e *Engine) State() DkgState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// AddPeerPublicKey records a peer's raw public key, required before Part
// generation (ErrNotEnoughPeerPublicKeys if too few are known at
// GeneratePart time).
func (e *Engine) AddPeerPublicKey(peer NodeID, pubKey []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.peerKeys[peer] = pubKey
}

// GeneratePart computes this node's degree-t polynomial commitment and a
// secret share for every member in members (including itself), and moves
// the engine into PartsCollecting.
func (e *Engine) GeneratePart(members []NodeID) (Part, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.peerKeys) < e.cfg.Total-1 {
		return Part{}, ErrNotEnoughPeerPublicKeys
	}

	msk := make([]bls.SecretKey, e.cfg.Threshold+1)
	for i := range msk {
		msk[i].SetByCSPRNG()
	}
	commitment := make([]bls.PublicKey, len(msk))
	for i, sk := range msk {
		commitment[i] = *sk.GetPublicKey()
	}

	shares := make(map[NodeID]bls.SecretKey, len(members))
	for _, member := range members {
		id, err := member.blsID()
		if err != nil {
			return Part{}, ErrInvalidPartMessage
		}
		var share bls.SecretKey
		if err := share.Set(msk, &id); err != nil {
			return Part{}, ErrSyncKeyGenError
		}
		shares[member] = share
	}

	e.state = DkgPartsCollecting
	return Part{Sender: e.self, Commitment: commitment, Shares: shares}, nil
}

// ReceivePart records sender's Part and returns this node's Ack for it.
// Duplicate parts from the same sender are rejected.
func (e *Engine) ReceivePart(part Part) (Ack, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, dup := e.partStore[part.Sender]; dup {
		return Ack{}, ErrPartMsgAlreadyAcknowledge
	}
	share, ok := part.Shares[e.self]
	if !ok {
		return Ack{}, ErrPartMsgMissingForNode
	}

	myID, err := e.self.blsID()
	if err != nil {
		return Ack{}, ErrInvalidPartMessage
	}
	var verify bls.PublicKey
	if err := verify.Set(part.Commitment, &myID); err != nil {
		return Ack{}, ErrInvalidPartMessage
	}
	valid := verify.IsEqual(share.GetPublicKey())

	e.partStore[part.Sender] = part
	if valid {
		e.myShares[part.Sender] = share
	}
	e.state = DkgAcksCollecting
	return Ack{Receiver: e.self, Sender: part.Sender, Valid: valid}, nil
}

// ReceiveAck records a valid Ack under its (Receiver, Sender) pair.
// TryFinalize consults only the acks whose Receiver is this node, i.e. the
// acks this node issued for the parts it received.
func (e *Engine) ReceiveAck(ack Ack) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !ack.Valid {
		return ErrInvalidAckMessage
	}
	e.ackStore[[2]NodeID{ack.Receiver, ack.Sender}] = ack
	return nil
}

// TryFinalize checks that parts from at least t+1 of members have been
// recorded and that this node's own ack is recorded for every one of them;
// if so it derives the group public key and this node's secret-key share
// from the recorded parts and transitions to KeysetReady.
func (e *Engine) TryFinalize(members []NodeID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	completed := 0
	for _, m := range members {
		if _, ok := e.partStore[m]; ok {
			completed++
		}
	}
	if completed < e.cfg.Threshold+1 {
		return ErrNotEnoughPartsCompleted
	}
	for _, m := range members {
		if _, ok := e.partStore[m]; !ok {
			continue
		}
		if _, ok := e.ackStore[[2]NodeID{e.self, m}]; !ok {
			return ErrNotEnoughAckMsgsReceived
		}
	}

	var groupPub bls.PublicKey
	var secretShare bls.SecretKey
	publicShares := make(map[NodeID]bls.PublicKey, len(members))
	first := true

	for _, m := range members {
		part, ok := e.partStore[m]
		if !ok {
			continue
		}
		if first {
			groupPub = part.Commitment[0]
			first = false
		} else {
			groupPub.Add(&part.Commitment[0])
		}
		if share, ok := e.myShares[m]; ok {
			if secretShare.IsZero() {
				secretShare = share
			} else {
				secretShare.Add(&share)
			}
		}
		for _, id := range members {
			blsID, err := id.blsID()
			if err != nil {
				continue
			}
			var verify bls.PublicKey
			if err := verify.Set(part.Commitment, &blsID); err != nil {
				continue
			}
			if existing, ok := publicShares[id]; ok {
				existing.Add(&verify)
				publicShares[id] = existing
			} else {
				publicShares[id] = verify
			}
		}
	}

	e.groupPublicKey = groupPub
	e.secretKeyShare = secretShare
	e.publicKeyShares = publicShares
	e.keysetReady = true
	e.state = DkgKeysetReady
	return nil
}

// Activate transitions a KeysetReady engine into Active, ready to sign.
func (e *Engine) Activate() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != DkgKeysetReady {
		return ErrSyncKeyGenInstanceNotCreated
	}
	e.state = DkgActive
	return nil
}

// GroupPublicKey and SecretKeyShare expose the derived threshold keyset.
// Both are only meaningful once State() == DkgActive (or KeysetReady).
func (e *Engine) GroupPublicKey() bls.PublicKey { return e.groupPublicKey }
func (e *Engine) SecretKeyShare() bls.SecretKey { return e.secretKeyShare }

// PublicKeyShare returns member's verification key, used to check a
// partial signature it produces.
func (e *Engine) PublicKeyShare(member NodeID) (bls.PublicKey, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pk, ok := e.publicKeyShares[member]
	return pk, ok
}

// Clear empties all per-epoch ack/part/peer buffers atomically and
// returns the engine to Idle.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = DkgClearing
	e.partStore = make(map[NodeID]Part)
	e.ackStore = make(map[[2]NodeID]Ack)
	e.myShares = make(map[NodeID]bls.SecretKey)
	e.peerKeys = make(map[NodeID][]byte)
	e.keysetReady = false
	e.state = DkgIdle
}

// dkgSnapshot is the serialized diagnostic form of an Engine's state.
type dkgSnapshot struct {
	Self           NodeID      `json:"self"`
	State          string      `json:"state"`
	Threshold      int         `json:"threshold"`
	Total          int         `json:"total"`
	PeerCount      int         `json:"peer_count"`
	PartSenders    []NodeID    `json:"part_senders"`
	AckPairs       [][2]NodeID `json:"ack_pairs"`
	KeysetReady    bool        `json:"keyset_ready"`
	GroupPublicKey string      `json:"group_public_key,omitempty"`
	SealedShare    []byte      `json:"sealed_share,omitempty"`
}

// DiagnosticSnapshot serializes the engine's state machine position for
// diagnostics. The secret-key share never leaves the engine in the clear:
// with a 32-byte sealKey it is sealed via XChaCha20-Poly1305
// (security.go's Seal, authenticated against the node id); with a nil key
// it is omitted entirely.
func (e *Engine) DiagnosticSnapshot(sealKey []byte) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := dkgSnapshot{
		Self:        e.self,
		State:       e.state.String(),
		Threshold:   e.cfg.Threshold,
		Total:       e.cfg.Total,
		PeerCount:   len(e.peerKeys),
		KeysetReady: e.keysetReady,
	}
	for sender := range e.partStore {
		snap.PartSenders = append(snap.PartSenders, sender)
	}
	sort.Slice(snap.PartSenders, func(i, j int) bool { return snap.PartSenders[i] < snap.PartSenders[j] })
	for pair := range e.ackStore {
		snap.AckPairs = append(snap.AckPairs, pair)
	}
	sort.Slice(snap.AckPairs, func(i, j int) bool {
		if snap.AckPairs[i][0] != snap.AckPairs[j][0] {
			return snap.AckPairs[i][0] < snap.AckPairs[j][0]
		}
		return snap.AckPairs[i][1] < snap.AckPairs[j][1]
	})

	if e.keysetReady {
		snap.GroupPublicKey = e.groupPublicKey.SerializeToHexStr()
		if sealKey != nil {
			sealed, err := Seal(sealKey, e.secretKeyShare.Serialize(), []byte(e.self))
			if err != nil {
				return nil, err
			}
			snap.SealedShare = sealed
		}
	}
	return json.Marshal(snap)
}

// SignPartial signs digest under this node's secret-key share, producing
// one contribution to a threshold signature.
func (e *Engine) SignPartial(digest Hash) (PartialSignature, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.keysetReady {
		return PartialSignature{}, ErrSyncKeyGenInstanceNotCreated
	}
	sig := e.secretKeyShare.SignByte(digest[:])
	return PartialSignature{Signer: e.self, Sig: *sig}, nil
}

// BootstrapLocalQuorum runs a full Part/Ack handshake among members
// in-process and returns each member's Active engine. This is the
// single-process devnet path cmd/synnergy uses to stand up a node without
// exchanging parts over the gossip transport: every member generates its
// Part, every member (the sender included) receives it and records its own
// ack, then every member finalizes and activates once all parts and
// self-acks are in.
func BootstrapLocalQuorum(members []NodeID, nodeType NodeType, cfg ThresholdConfig) (map[NodeID]*Engine, error) {
	engines := make(map[NodeID]*Engine, len(members))
	for _, m := range members {
		e, err := NewEngine(m, nodeType, cfg)
		if err != nil {
			return nil, err
		}
		for _, peer := range members {
			if peer != m {
				e.AddPeerPublicKey(peer, []byte(peer))
			}
		}
		engines[m] = e
	}

	parts := make(map[NodeID]Part, len(members))
	for _, m := range members {
		p, err := engines[m].GeneratePart(members)
		if err != nil {
			return nil, err
		}
		parts[m] = p
	}

	for _, receiver := range members {
		for _, sender := range members {
			ack, err := engines[receiver].ReceivePart(parts[sender])
			if err != nil {
				return nil, err
			}
			if err := engines[receiver].ReceiveAck(ack); err != nil {
				return nil, err
			}
		}
	}

	for _, m := range members {
		if err := engines[m].TryFinalize(members); err != nil {
			return nil, err
		}
		if err := engines[m].Activate(); err != nil {
			return nil, err
		}
	}
	return engines, nil
}
