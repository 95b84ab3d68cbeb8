package attest

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Signer keys are plain ed25519 seed files (64 hex chars, 0600) under
// the conncheck home directory. This deliberately stays a local-first
// store with no external dependencies.

// DefaultKeyPath returns ~/.conncheck/keys/signer.key.
func DefaultKeyPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".conncheck", "keys", "signer.key"), nil
}

// ParseSeedHex decodes a 32-byte ed25519 seed from hex, tolerating an
// optional 0x prefix and surrounding whitespace.
func ParseSeedHex(seedHex string) ([]byte, error) {
	seedHex = strings.TrimSpace(seedHex)
	seedHex = strings.TrimPrefix(seedHex, "0x")
	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, fmt.Errorf("attest: invalid seed hex: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("attest: seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return seed, nil
}

// LoadSignerKey reads an ed25519 private key from a seed file.
func LoadSignerKey(path string) (ed25519.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	seed, err := ParseSeedHex(string(b))
	if err != nil {
		return nil, err
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

// LoadOrCreateSignerKey loads the seed file at path, generating a fresh
// key (0600, parents 0700) when none exists.
func LoadOrCreateSignerKey(path string) (ed25519.PrivateKey, error) {
	if path == "" {
		return nil, errors.New("attest: key path is required")
	}
	if key, err := LoadSignerKey(path); err == nil {
		return key, nil
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(seed)), 0o600); err != nil {
		return nil, err
	}
	return ed25519.NewKeyFromSeed(seed), nil
}
