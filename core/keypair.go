package core

// Node identity: the Ed25519 keypair file under the node's data
// directory, generated on first run.

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// KeyPair is a node's Ed25519 wallet identity.
type KeyPair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// Address derives this keypair's account address.
func (k KeyPair) Address() Address { return AddressFromPublicKey(k.Public) }

// Sign implements the Signer collaborator contract, dispatching through
// security.go's algorithm table.
func (k KeyPair) Sign(msg []byte) ([]byte, error) {
	return Sign(AlgoEd25519, k.Private, msg)
}

// PublicKey implements the Signer collaborator contract.
func (k KeyPair) PublicKey() []byte { return append([]byte(nil), k.Public...) }

const keypairFileName = "node.key"

// GenerateKeyPair creates a fresh random Ed25519 keypair.
func GenerateKeyPair() (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("generate keypair: %w", err)
	}
	return KeyPair{Public: pub, Private: priv}, nil
}

// LoadOrCreateKeyPair reads the node's keypair from dataDir/node.key,
// generating and persisting a new one (mode 0600) on first run.
func LoadOrCreateKeyPair(dataDir string) (KeyPair, error) {
	path := filepath.Join(dataDir, keypairFileName)
	raw, err := os.ReadFile(path)
	if err == nil {
		return decodeKeyPair(raw)
	}
	if !os.IsNotExist(err) {
		return KeyPair{}, fmt.Errorf("read keypair: %w", err)
	}

	kp, err := GenerateKeyPair()
	if err != nil {
		return KeyPair{}, err
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return KeyPair{}, fmt.Errorf("create data dir: %w", err)
	}
	if err := os.WriteFile(path, encodeKeyPair(kp), 0o600); err != nil {
		return KeyPair{}, fmt.Errorf("persist keypair: %w", err)
	}
	return kp, nil
}

func encodeKeyPair(kp KeyPair) []byte {
	return []byte(hex.EncodeToString(kp.Private))
}

func decodeKeyPair(raw []byte) (KeyPair, error) {
	priv, err := hex.DecodeString(string(raw))
	if err != nil {
		return KeyPair{}, fmt.Errorf("decode keypair: %w", err)
	}
	sk := ed25519.PrivateKey(priv)
	pub, ok := sk.Public().(ed25519.PublicKey)
	if !ok {
		return KeyPair{}, fmt.Errorf("decode keypair: unexpected public key type")
	}
	return KeyPair{Public: pub, Private: sk}, nil
}
