package core

// Shared security primitives for the node stack.
//
// Exposes:
//   - Sign / Verify       – Ed25519 (wallets) + BLS12-381 (validators).
//   - Dilithium3 helpers  – post-quantum wallet signatures.
//   - Seal / Open         – XChaCha20-Poly1305 authenticated encryption,
//     used to protect serialized key material at rest (dkg.go's
//     diagnostic snapshots seal the secret-key share with it).
//
// BLS curve setup happens in crypto.go's init; hashing, addresses and
// threshold-signature combination live there too.

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"errors"

	mode3 "github.com/cloudflare/circl/sign/dilithium/mode3"
	bls "github.com/herumi/bls-eth-go-binary/bls"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeyAlgo selects the signature scheme for Sign/Verify.
type KeyAlgo uint8

const (
	AlgoEd25519 KeyAlgo = iota
	AlgoBLS
	AlgoDilithium
)

var (
	ErrInvalidPrivateKey = errors.New("security: invalid private key type for algorithm")
	ErrInvalidPublicKey  = errors.New("security: invalid public key for algorithm")
	ErrUnknownAlgo       = errors.New("security: unknown signature algorithm")
)

// Sign signs msg with priv.
//   - For Ed25519:   priv must be ed25519.PrivateKey.
//   - For BLS:       priv must be *bls.SecretKey.
//   - For Dilithium: priv must be the packed private key bytes.
func Sign(algo KeyAlgo, priv interface{}, msg []byte) ([]byte, error) {
	switch algo {
	case AlgoEd25519:
		sk, ok := priv.(ed25519.PrivateKey)
		if !ok {
			return nil, ErrInvalidPrivateKey
		}
		return ed25519.Sign(sk, msg), nil
	case AlgoBLS:
		sk, ok := priv.(*bls.SecretKey)
		if !ok {
			return nil, ErrInvalidPrivateKey
		}
		return sk.SignByte(msg).Serialize(), nil
	case AlgoDilithium:
		packed, ok := priv.([]byte)
		if !ok {
			return nil, ErrInvalidPrivateKey
		}
		return DilithiumSign(packed, msg)
	default:
		return nil, ErrUnknownAlgo
	}
}

// Verify checks sig over msg against the serialized public key pub.
func Verify(algo KeyAlgo, pub, msg, sig []byte) (bool, error) {
	switch algo {
	case AlgoEd25519:
		if len(pub) != ed25519.PublicKeySize {
			return false, nil
		}
		return ed25519.Verify(ed25519.PublicKey(pub), msg, sig), nil
	case AlgoBLS:
		var pk bls.PublicKey
		if err := pk.Deserialize(pub); err != nil {
			return false, ErrInvalidPublicKey
		}
		var s bls.Sign
		if err := s.Deserialize(sig); err != nil {
			return false, nil
		}
		return s.VerifyByte(&pk, msg), nil
	case AlgoDilithium:
		return DilithiumVerify(pub, msg, sig)
	default:
		return false, ErrUnknownAlgo
	}
}

// DilithiumKeypair generates a Dilithium3 key pair in packed form.
func DilithiumKeypair() (pub, priv []byte, err error) {
	pk, sk, err := mode3.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	return pk.Bytes(), sk.Bytes(), nil
}

// DilithiumSign signs msg with a packed Dilithium3 private key.
func DilithiumSign(priv, msg []byte) ([]byte, error) {
	var sk mode3.PrivateKey
	if err := sk.UnmarshalBinary(priv); err != nil {
		return nil, err
	}
	return sk.Sign(rand.Reader, msg, crypto.Hash(0))
}

// DilithiumVerify verifies a signature produced by DilithiumSign.
func DilithiumVerify(pub, msg, sig []byte) (bool, error) {
	var pk mode3.PublicKey
	if err := pk.UnmarshalBinary(pub); err != nil {
		return false, err
	}
	return mode3.Verify(&pk, msg, sig), nil
}

// Seal returns nonce || ciphertext || tag using XChaCha20-Poly1305.
func Seal(key, plaintext, aad []byte) ([]byte, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, errors.New("security: key must be 32 bytes")
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	ct := aead.Seal(nil, nonce, plaintext, aad)
	return append(nonce, ct...), nil
}

// Open verifies and opens a blob produced by Seal.
func Open(key, blob, aad []byte) ([]byte, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, errors.New("security: key must be 32 bytes")
	}
	minLen := chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead
	if len(blob) < minLen {
		return nil, errors.New("security: ciphertext too short")
	}
	nonce, ciphertext := blob[:chacha20poly1305.NonceSizeX], blob[chacha20poly1305.NonceSizeX:]
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, nonce, ciphertext, aad)
}
