// Package wallet holds the actor's signing key. The daemon signs every
// submitted instruction locally; the key never leaves the process.
package wallet

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/amitsaini144/solagram/internal/model"
)

// SeedLength is the byte length of an ed25519 seed.
const SeedLength = ed25519.SeedSize

// Wallet signs messages on behalf of one identity.
type Wallet interface {
	Identity() model.Identity
	Sign(message []byte) ([]byte, error)
}

// KeyWallet is an in-memory ed25519 wallet.
type KeyWallet struct {
	priv ed25519.PrivateKey
	id   model.Identity
}

var _ Wallet = (*KeyWallet)(nil)

// Generate creates a wallet with a fresh random key.
func Generate() (*KeyWallet, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	id, err := model.IdentityFromBytes(pub)
	if err != nil {
		return nil, err
	}
	return &KeyWallet{priv: priv, id: id}, nil
}

// FromSeed builds a wallet from a 32-byte ed25519 seed.
func FromSeed(seed []byte) (*KeyWallet, error) {
	if len(seed) != SeedLength {
		return nil, fmt.Errorf("seed is %d bytes, want %d", len(seed), SeedLength)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	id, err := model.IdentityFromBytes(priv.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}
	return &KeyWallet{priv: priv, id: id}, nil
}

// Load reads a wallet from a key file containing the hex-encoded seed.
func Load(path string) (*KeyWallet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	seed, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("key file %s: %w", path, err)
	}
	w, err := FromSeed(seed)
	if err != nil {
		return nil, fmt.Errorf("key file %s: %w", path, err)
	}
	return w, nil
}

// Save writes the hex-encoded seed to path, owner-readable only.
func (w *KeyWallet) Save(path string) error {
	seed := hex.EncodeToString(w.priv.Seed())
	if err := os.WriteFile(path, []byte(seed+"\n"), 0o600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	return nil
}

// Identity returns the wallet's public identity.
func (w *KeyWallet) Identity() model.Identity { return w.id }

// Sign signs message with the wallet's private key.
func (w *KeyWallet) Sign(message []byte) ([]byte, error) {
	return ed25519.Sign(w.priv, message), nil
}

// Verify checks a signature against an identity's public key.
func Verify(id model.Identity, message, sig []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(id[:]), message, sig)
}
