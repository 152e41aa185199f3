package core

import (
	"crypto/ed25519"
	"testing"
)

func TestHashHexAndShort(t *testing.T) {
	h := HashBytes([]byte("hello"))
	if len(h.Hex()) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(h.Hex()))
	}
	if len(h.Short()) != 8 {
		t.Fatalf("expected 8 char short hash, got %d", len(h.Short()))
	}
}

func TestAddressFromPublicKey(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := AddressFromPublicKey(pub)
	if addr.IsZero() {
		t.Fatal("expected non-zero address")
	}
	addr2 := AddressFromPublicKey(pub)
	if addr != addr2 {
		t.Fatal("address derivation must be deterministic")
	}
}

func TestHashLess(t *testing.T) {
	a := Hash{0x01}
	b := Hash{0x02}
	if !a.Less(b) {
		t.Fatal("expected a < b")
	}
	if b.Less(a) == false && a.Less(b) == false {
		t.Fatal("expected strict ordering between distinct hashes")
	}
}

func TestSignVerifyEd25519(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	msg := []byte("payload")
	sig := ed25519.Sign(priv, msg)
	if !ed25519.Verify(pub, msg, sig) {
		t.Fatal("expected signature to verify")
	}
	if ed25519.Verify(pub, []byte("tampered"), sig) {
		t.Fatal("expected tampered message to fail verification")
	}
}

func TestCombinePartialSignaturesThreshold(t *testing.T) {
	// Build a 2-of-3 threshold keyset via the joint-Feldman DKG engine and
	// confirm the combined signature verifies under the group key,
	// exercising the same Recover() path the harvester certificate path
	// relies on.
	members := []NodeID{"1", "2", "3"}
	engines := make(map[NodeID]*Engine)
	for _, m := range members {
		e, err := NewEngine(m, NodeValidator, ThresholdConfig{Threshold: 1, Total: 3})
		if err != nil {
			t.Fatalf("new engine: %v", err)
		}
		for _, peer := range members {
			if peer != m {
				e.AddPeerPublicKey(peer, []byte(peer))
			}
		}
		engines[m] = e
	}

	parts := make(map[NodeID]Part)
	for _, m := range members {
		part, err := engines[m].GeneratePart(members)
		if err != nil {
			t.Fatalf("generate part for %s: %v", m, err)
		}
		parts[m] = part
	}

	for _, receiver := range members {
		for _, sender := range members {
			ack, err := engines[receiver].ReceivePart(parts[sender])
			if err != nil {
				t.Fatalf("%s receive part from %s: %v", receiver, sender, err)
			}
			if !ack.Valid {
				t.Fatalf("%s: part from %s did not verify", receiver, sender)
			}
			if err := engines[receiver].ReceiveAck(ack); err != nil {
				t.Fatalf("%s record own ack of %s: %v", receiver, sender, err)
			}
		}
	}

	for _, m := range members {
		if err := engines[m].TryFinalize(members); err != nil {
			t.Fatalf("finalize %s: %v", m, err)
		}
	}

	digest := HashBytes([]byte("certify me"))
	sigs := make([]PartialSignature, 0, 2)
	for _, m := range members[:2] {
		sig, err := engines[m].SignPartial(digest)
		if err != nil {
			t.Fatalf("sign partial %s: %v", m, err)
		}
		sigs = append(sigs, sig)
	}

	group, err := CombinePartialSignatures(sigs)
	if err != nil {
		t.Fatalf("combine: %v", err)
	}
	groupPub := engines[members[0]].GroupPublicKey()
	if !group.VerifyByte(&groupPub, digest[:]) {
		t.Fatal("expected combined signature to verify under the group public key")
	}
}
