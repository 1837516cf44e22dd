// Package crypto provides the node credential primitives: asymmetric key
// pair generation and encrypt/decrypt of structured payloads. Gossip
// traffic itself is not signed or encrypted; these keys identify the node
// and protect datastore envelopes.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/nacl/box"
)

const KeySize = 32

var (
	ErrDecrypt    = errors.New("payload decryption failed")
	ErrBadKeySize = fmt.Errorf("key must be %d bytes", KeySize)
)

type KeyPair struct {
	Public  []byte `json:"publicKey"`
	Private []byte `json:"privateKey"`
}

// GenerateKeyPair creates a fresh asymmetric key pair.
func GenerateKeyPair() (*KeyPair, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &KeyPair{Public: pub[:], Private: priv[:]}, nil
}

// Fingerprint returns a short hex digest of a public key for display.
func Fingerprint(pub []byte) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:8])
}

func asKey(b []byte) (*[KeySize]byte, error) {
	if len(b) != KeySize {
		return nil, ErrBadKeySize
	}
	var k [KeySize]byte
	copy(k[:], b)
	return &k, nil
}

// Encrypt marshals a structured payload and seals it for the holder of
// peerPublic. The random nonce is prepended to the ciphertext.
func Encrypt(payload any, peerPublic, selfPrivate []byte) ([]byte, error) {
	pub, err := asKey(peerPublic)
	if err != nil {
		return nil, err
	}
	priv, err := asKey(selfPrivate)
	if err != nil {
		return nil, err
	}

	plain, err := cbor.Marshal(payload)
	if err != nil {
		return nil, err
	}

	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, err
	}
	return box.Seal(nonce[:], plain, &nonce, pub, priv), nil
}

// Decrypt opens a sealed payload produced by Encrypt and unmarshals it
// into out.
func Decrypt(data []byte, peerPublic, selfPrivate []byte, out any) error {
	pub, err := asKey(peerPublic)
	if err != nil {
		return err
	}
	priv, err := asKey(selfPrivate)
	if err != nil {
		return err
	}

	if len(data) < 24 {
		return ErrDecrypt
	}
	var nonce [24]byte
	copy(nonce[:], data[:24])

	plain, ok := box.Open(nil, data[24:], &nonce, pub, priv)
	if !ok {
		return ErrDecrypt
	}
	return cbor.Unmarshal(plain, out)
}
