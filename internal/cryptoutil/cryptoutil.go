// Package cryptoutil wraps the primitives every other package signs and
// hashes with: SHA3-256 for content addressing, Ed25519 for transaction
// signatures. Generalizes the teacher's crypto.go (ECDSA/P-256 + AES) to
// the curve and hash this ledger's wire format requires.
package cryptoutil

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// Hash256 returns the SHA3-256 digest of data.
func Hash256(data ...[]byte) []byte {
	h := sha3.New256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// KeyPair is an Ed25519 identity: a private signing key and its derived
// public key, which also serves as the wallet's address.
type KeyPair struct {
	Private ed25519.PrivateKey
	Public  ed25519.PublicKey
}

// GenerateKeyPair creates a new random Ed25519 identity.
func GenerateKeyPair() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating ed25519 keypair: %w", err)
	}
	return &KeyPair{Private: priv, Public: pub}, nil
}

// Sign signs message with the keypair's private key.
func (k *KeyPair) Sign(message []byte) []byte {
	return ed25519.Sign(k.Private, message)
}

// Verify checks that signature is a valid Ed25519 signature over message
// under the given public key bytes. A malformed or wrong-length public key
// fails closed.
func Verify(publicKey, message, signature []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), message, signature)
}
