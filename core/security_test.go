package core

import (
	"bytes"
	"testing"

	bls "github.com/herumi/bls-eth-go-binary/bls"
)

func TestSignVerifyEd25519Dispatch(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	msg := []byte("transfer 10 to bob")

	sig, err := Sign(AlgoEd25519, kp.Private, msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	ok, err := Verify(AlgoEd25519, kp.Public, msg, sig)
	if err != nil || !ok {
		t.Fatalf("verify: ok=%v err=%v", ok, err)
	}
	ok, _ = Verify(AlgoEd25519, kp.Public, []byte("tampered"), sig)
	if ok {
		t.Fatal("tampered message verified")
	}
}

func TestSignVerifyBLSDispatch(t *testing.T) {
	var sk bls.SecretKey
	sk.SetByCSPRNG()
	msg := []byte("block hash")

	sig, err := Sign(AlgoBLS, &sk, msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	ok, err := Verify(AlgoBLS, sk.GetPublicKey().Serialize(), msg, sig)
	if err != nil || !ok {
		t.Fatalf("verify: ok=%v err=%v", ok, err)
	}
}

func TestSignRejectsWrongKeyType(t *testing.T) {
	if _, err := Sign(AlgoEd25519, "not a key", []byte("x")); err != ErrInvalidPrivateKey {
		t.Fatalf("expected ErrInvalidPrivateKey, got %v", err)
	}
	if _, err := Sign(KeyAlgo(99), nil, []byte("x")); err != ErrUnknownAlgo {
		t.Fatalf("expected ErrUnknownAlgo, got %v", err)
	}
}

func TestDilithiumRoundTrip(t *testing.T) {
	pub, priv, err := DilithiumKeypair()
	if err != nil {
		t.Fatalf("keypair: %v", err)
	}
	msg := []byte("post-quantum wallet signature")

	sig, err := Sign(AlgoDilithium, priv, msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	ok, err := Verify(AlgoDilithium, pub, msg, sig)
	if err != nil || !ok {
		t.Fatalf("verify: ok=%v err=%v", ok, err)
	}
	ok, _ = Verify(AlgoDilithium, pub, []byte("other"), sig)
	if ok {
		t.Fatal("tampered message verified")
	}
}

func TestSealOpenRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{7}, 32)
	aad := []byte("node-1")
	plaintext := []byte("secret key share bytes")

	blob, err := Seal(key, plaintext, aad)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	got, err := Open(key, blob, aad)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("roundtrip mismatch: %q", got)
	}

	if _, err := Open(key, blob, []byte("node-2")); err == nil {
		t.Fatal("open with wrong aad succeeded")
	}
	blob[len(blob)-1] ^= 0xff
	if _, err := Open(key, blob, aad); err == nil {
		t.Fatal("open of tampered blob succeeded")
	}
}

func TestSealRejectsShortKey(t *testing.T) {
	if _, err := Seal([]byte("short"), []byte("x"), nil); err == nil {
		t.Fatal("short key accepted")
	}
}
