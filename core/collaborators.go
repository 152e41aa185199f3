package core

// Collaborator contracts: the external surfaces the consensus core
// depends on. Each interface names its concrete adapter where one exists
// in this repo (network.go, wal.go, api.go, contract_runner.go,
// keypair.go).

import "context"

// Message is the envelope the Transport collaborator carries. Kinds:
// PartCommitment, PartAck, HarvesterPublicKey, Vote, Block, Certificate,
// BlockPartialSig, PeerJoined (see network.go's Msg constants).
type Message struct {
	Kind    string
	Payload []byte
}

// Transport is the gossip/unicast contract, implemented by GossipNode
// (network.go): libp2p + gossipsub for Broadcast/Subscribe and mdns
// discovery for PeerJoined.
//
// Retry policy: Broadcast is best-effort gossip and is never retried by
// the core; Unicast backs control-plane sends (e.g. a targeted Ack) and
// retries with exponential backoff up to a configurable cap at the
// transport layer, not here.
type Transport interface {
	Broadcast(ctx context.Context, msg Message) error
	Unicast(ctx context.Context, peer NodeID, msg Message) error
	Subscribe(ctx context.Context) (<-chan Message, error)
}

// SnapshotStore is the KV + snapshot persistence contract, implemented by
// FileSnapshotStore (wal.go): RLP-framed WAL records plus gzip'd snapshot
// compaction under NodeConfig.DataDir.
type SnapshotStore interface {
	Save(ctx context.Context, key string, value []byte) error
	Load(ctx context.Context, key string) ([]byte, error)
	Close() error
}

// RPCServer is the JSON-RPC surface contract. APIServer (api.go)
// implements only the health/info/stop control slice the CLI needs, over
// chi.
type RPCServer interface {
	Serve(ctx context.Context) error
}

// ContractRunner is the WASM smart-contract execution contract,
// implemented by WasmRunner (contract_runner.go). The farmer invokes it
// for transactions whose receiver account carries code.
type ContractRunner interface {
	Run(code []byte, input []byte) ([]byte, error)
}

// Signer is the wallet contract: produces the Ed25519 signature a
// Transaction carries, and exposes the signer's public key.
type Signer interface {
	Sign(msg []byte) ([]byte, error)
	PublicKey() []byte
}

// ObjectBroker is the storage-agent data-broker contract. Nothing in
// this module performs content-addressed object storage beyond the state
// store and DAG, so no concrete implementation exists here.
type ObjectBroker interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}
