// Package crypto implements the action dispatcher's signature layer: k256
// (secp256k1) ECDSA over SHA3-256 message digests, matching go-ethereum's
// curve implementation but none of its Keccak/address conventions — session
// keys here are raw uncompressed public-key bytes, compared directly against
// entities.UserInfo.SessionKeys rather than derived into an address.
package crypto

import (
	"bytes"
	"crypto/ecdsa"
	"fmt"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"
)

// Signer holds a secp256k1 key pair for signing action messages.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	publicKey  *ecdsa.PublicKey
}

// GenerateKey creates a new random secp256k1 key pair.
func GenerateKey() (*Signer, error) {
	privateKey, err := gethcrypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("crypto: generate key: %w", err)
	}
	return fromPrivateKey(privateKey)
}

// FromPrivateKeyHex creates a Signer from a hex-encoded private key.
func FromPrivateKeyHex(hexKey string) (*Signer, error) {
	privateKey, err := gethcrypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("crypto: parse private key: %w", err)
	}
	return fromPrivateKey(privateKey)
}

func fromPrivateKey(pk *ecdsa.PrivateKey) (*Signer, error) {
	pub, ok := pk.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("crypto: failed to cast public key to ECDSA")
	}
	return &Signer{privateKey: pk, publicKey: pub}, nil
}

// PublicKeyBytes returns the uncompressed public key — this is the byte
// string a client registers via add_session_key and later matches against
// in user.session_keys.
func (s *Signer) PublicKeyBytes() []byte {
	return gethcrypto.FromECDSAPub(s.publicKey)
}

// PrivateKeyHex returns the private key as a hex string (no 0x prefix).
func (s *Signer) PrivateKeyHex() string {
	return fmt.Sprintf("%x", gethcrypto.FromECDSA(s.privateKey))
}

// DigestMessage hashes an action's message template (spec.md §6,
// e.g. "{identity}:{nonce}:create_order:{order_id}") with SHA3-256, the same
// hash family every other committed digest in the system uses.
func DigestMessage(message []byte) [32]byte {
	return sha3.Sum256(message)
}

// Sign signs message (hashed first via DigestMessage) and returns a 65-byte
// [R || S || V] signature.
func (s *Signer) Sign(message []byte) ([]byte, error) {
	digest := DigestMessage(message)
	sig, err := gethcrypto.Sign(digest[:], s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("crypto: sign: %w", err)
	}
	return sig, nil
}

// RecoverPublicKey recovers the uncompressed public key that produced
// signature over message's SHA3-256 digest.
func RecoverPublicKey(message []byte, signature []byte) ([]byte, error) {
	if len(signature) != 65 {
		return nil, fmt.Errorf("crypto: invalid signature length: %d", len(signature))
	}
	digest := DigestMessage(message)
	pub, err := gethcrypto.Ecrecover(digest[:], signature)
	if err != nil {
		return nil, fmt.Errorf("crypto: recover public key: %w", err)
	}
	return pub, nil
}

// VerifySessionKey reports whether signature over message's SHA3-256 digest
// recovers a public key present in sessionKeys — the check the action
// dispatcher runs for every signed permissioned action (spec.md §6).
func VerifySessionKey(message []byte, signature []byte, sessionKeys [][]byte) bool {
	recovered, err := RecoverPublicKey(message, signature)
	if err != nil {
		return false
	}
	for _, k := range sessionKeys {
		if bytes.Equal(k, recovered) {
			return true
		}
	}
	return false
}
