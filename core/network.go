package core

// Gossip transport: the concrete Transport implementation, built on
// libp2p + gossipsub with mDNS discovery. Broadcast rides one shared
// gossipsub topic and is best-effort, never retried; Unicast opens a
// direct stream and retries with exponential backoff. Peers found via
// mDNS or DialSeed are surfaced on the subscribe stream as PeerJoined
// messages so the quorum allocator can assign them.

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
)

const (
	gossipTopicName                 = "synnergy-consensus"
	unicastProtocolID   protocol.ID = "/synnergy/unicast/1.0.0"
	defaultDiscoveryTag             = "synnergy-mdns"
)

// Message kinds the transport carries. Consensus payloads are encoded
// into Message.Payload by the caller; the transport only frames and moves
// them.
const (
	MsgPartCommitment     = "PartCommitment"
	MsgPartAck            = "PartAck"
	MsgHarvesterPublicKey = "HarvesterPublicKey"
	MsgVote               = "Vote"
	MsgBlock              = "Block"
	MsgCertificate        = "Certificate"
	MsgBlockPartialSig    = "BlockPartialSig"
	MsgPeerJoined         = "PeerJoined"
)

// UnicastRetryPolicy bounds the exponential backoff for unicast control
// paths.
type UnicastRetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultUnicastRetry makes up to five attempts (four retries), the delay
// starting at 100ms and doubling, capped at 2s.
var DefaultUnicastRetry = UnicastRetryPolicy{MaxAttempts: 5, BaseDelay: 100 * time.Millisecond, MaxDelay: 2 * time.Second}

// backoff returns the delay before the attempt-th retry (0-based),
// doubling from BaseDelay and clamping at MaxDelay.
func (p UnicastRetryPolicy) backoff(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// GossipNode is a libp2p-backed Transport.
type GossipNode struct {
	host   host.Host
	pubsub *pubsub.PubSub
	topic  *pubsub.Topic
	sub    *pubsub.Subscription

	peerLock sync.RWMutex
	peers    map[NodeID]peer.ID

	out     chan Message
	outOnce sync.Once
	retry   UnicastRetryPolicy
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewGossipNode creates and bootstraps the node's gossip transport.
// listenAddr is a multiaddr (cfg.UDPGossipAddress); empty means an
// ephemeral TCP port.
func NewGossipNode(parent context.Context, cfg NodeConfig, discoveryTag string) (*GossipNode, error) {
	ctx, cancel := context.WithCancel(parent)

	listen := cfg.UDPGossipAddress
	if listen == "" {
		listen = "/ip4/0.0.0.0/tcp/0"
	}
	h, err := libp2p.New(libp2p.ListenAddrStrings(listen))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create host: %w", err)
	}

	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		h.Close()
		cancel()
		return nil, fmt.Errorf("create pubsub: %w", err)
	}
	topic, err := ps.Join(gossipTopicName)
	if err != nil {
		h.Close()
		cancel()
		return nil, fmt.Errorf("join topic %s: %w", gossipTopicName, err)
	}
	sub, err := topic.Subscribe()
	if err != nil {
		h.Close()
		cancel()
		return nil, fmt.Errorf("subscribe topic %s: %w", gossipTopicName, err)
	}

	n := &GossipNode{
		host:   h,
		pubsub: ps,
		topic:  topic,
		sub:    sub,
		peers:  make(map[NodeID]peer.ID),
		out:    make(chan Message, 256),
		retry:  DefaultUnicastRetry,
		ctx:    ctx,
		cancel: cancel,
	}

	h.SetStreamHandler(unicastProtocolID, n.handleUnicastStream)

	if err := n.DialSeed(cfg.BootstrapNodeAddresses); err != nil {
		Log.WithField("err", err).Warn("bootstrap dial incomplete")
	}

	if discoveryTag == "" {
		discoveryTag = defaultDiscoveryTag
	}
	mdns.NewMdnsService(h, discoveryTag, n)

	return n, nil
}

var _ Transport = (*GossipNode)(nil)
var _ mdns.Notifee = (*GossipNode)(nil)

// HandlePeerFound implements mdns.Notifee: connect to the discovered peer,
// record it, and surface a PeerJoined message to subscribers.
func (n *GossipNode) HandlePeerFound(info peer.AddrInfo) {
	if info.ID == n.host.ID() {
		return
	}
	id := NodeID(info.ID.String())

	n.peerLock.RLock()
	_, known := n.peers[id]
	n.peerLock.RUnlock()
	if known {
		return
	}

	if err := n.host.Connect(n.ctx, info); err != nil {
		Log.WithFields(map[string]interface{}{"peer": info.ID.String(), "err": err}).Warn("connect to discovered peer failed")
		return
	}

	n.peerLock.Lock()
	n.peers[id] = info.ID
	n.peerLock.Unlock()

	n.deliver(Message{Kind: MsgPeerJoined, Payload: []byte(id)})
	Log.WithField("peer", info.ID.String()).Info("connected to peer via mdns")
}

// DialSeed connects to the configured bootstrap peers.
func (n *GossipNode) DialSeed(seeds []string) error {
	var firstErr error
	for _, addr := range seeds {
		pi, err := peer.AddrInfoFromString(addr)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("invalid addr %s: %w", addr, err)
			}
			continue
		}
		if err := n.host.Connect(n.ctx, *pi); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("connect %s: %w", addr, err)
			}
			continue
		}
		id := NodeID(pi.ID.String())
		n.peerLock.Lock()
		n.peers[id] = pi.ID
		n.peerLock.Unlock()
		n.deliver(Message{Kind: MsgPeerJoined, Payload: []byte(id)})
	}
	return firstErr
}

// Broadcast publishes msg on the shared gossip topic. Best-effort: a
// failed publish is the caller's signal, never retried here.
func (n *GossipNode) Broadcast(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := n.topic.Publish(ctx, data); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Unicast sends msg to one known peer over a direct stream, retrying
// with exponential backoff up to the policy cap.
func (n *GossipNode) Unicast(ctx context.Context, peerID NodeID, msg Message) error {
	n.peerLock.RLock()
	pid, ok := n.peers[peerID]
	n.peerLock.RUnlock()
	if !ok {
		return fmt.Errorf("unicast: unknown peer %s", peerID)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < n.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(n.retry.backoff(attempt - 1)):
			}
		}
		if lastErr = n.sendStream(ctx, pid, data); lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("unicast to %s: %w", peerID, lastErr)
}

func (n *GossipNode) sendStream(ctx context.Context, pid peer.ID, data []byte) error {
	s, err := n.host.NewStream(ctx, pid, unicastProtocolID)
	if err != nil {
		return err
	}
	defer s.Close()
	if _, err := s.Write(data); err != nil {
		return err
	}
	return nil
}

func (n *GossipNode) handleUnicastStream(s network.Stream) {
	defer s.Close()
	var msg Message
	if err := json.NewDecoder(s).Decode(&msg); err != nil {
		Log.WithField("err", err).Warn("bad unicast frame")
		return
	}
	n.deliver(msg)
}

// Subscribe returns the stream of messages received from the gossip topic,
// unicast streams and peer discovery. The drain goroutine starts on first
// call.
func (n *GossipNode) Subscribe(ctx context.Context) (<-chan Message, error) {
	n.outOnce.Do(func() {
		go n.drainGossip(ctx)
	})
	return n.out, nil
}

func (n *GossipNode) drainGossip(ctx context.Context) {
	for {
		raw, err := n.sub.Next(ctx)
		if err != nil {
			return
		}
		if raw.ReceivedFrom == n.host.ID() {
			continue
		}
		var msg Message
		if err := json.Unmarshal(raw.Data, &msg); err != nil {
			Log.WithField("err", err).Warn("bad gossip frame")
			continue
		}
		n.deliver(msg)
	}
}

func (n *GossipNode) deliver(msg Message) {
	select {
	case n.out <- msg:
	default:
		Log.WithField("kind", msg.Kind).Warn("transport mailbox full, dropping")
	}
}

// Close tears the transport down.
func (n *GossipNode) Close() error {
	n.cancel()
	n.sub.Cancel()
	return n.host.Close()
}
