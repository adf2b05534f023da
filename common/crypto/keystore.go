package crypto

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

// MasterKeyEnv is the environment variable Akari reads its note-encryption
// key from. The key is optional: when unset, note content is stored in
// plaintext.
const MasterKeyEnv = "AKARI_MASTER_KEY"

// LoadMasterKey reads MasterKeyEnv and parses it into a raw AES-256 key.
// Returns (nil, nil) when the variable is unset or empty, so callers can
// treat encryption as an opt-in feature with a single nil check.
func LoadMasterKey() ([]byte, error) {
	raw := strings.TrimSpace(os.Getenv(MasterKeyEnv))
	if raw == "" {
		return nil, nil
	}
	key, err := ParseMasterKey(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MasterKeyEnv, err)
	}
	return key, nil
}

// ParseMasterKey decodes a 64-character hex string (32 bytes / 256 bits) into
// a raw key suitable for use with the AES-GCM helpers in this package.
//
// This function is a pure library function with no environment dependencies.
// Callers are responsible for reading the key material from env or config.
//
// Generate a suitable key with:
//
//	openssl rand -hex 32
func ParseMasterKey(rawHex string) ([]byte, error) {
	raw := strings.TrimSpace(rawHex)
	if raw == "" {
		return nil, fmt.Errorf("master key is empty")
	}

	key, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid hex in master key: %w", err)
	}

	if len(key) != KeySize {
		return nil, fmt.Errorf("master key must be %d bytes (%d hex chars), got %d bytes",
			KeySize, KeySize*2, len(key))
	}

	return key, nil
}
