// Package auth provides API key and realtime ticket authentication.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
)

// API keys look like sl_{env}_{prefix}_{secret}, for example
// sl_live_7a9x3k_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b. The prefix is stored in
// clear for lookup; only the Argon2id hash of the whole key is kept.
const (
	KeyPrefixLen = 6
	KeySecretLen = 32
)

// Key environments.
const (
	EnvLive = "live"
	EnvTest = "test"
)

// ErrInvalidKeyFormat is returned for strings that cannot be API keys.
var ErrInvalidKeyFormat = errors.New("invalid API key format")

var keyFormat = regexp.MustCompile(`^sl_(live|test)_([a-f0-9]{6})_([a-f0-9]{32})$`)

// GeneratedKey is a new API key. Plaintext is shown to the caller once.
type GeneratedKey struct {
	Plaintext string
	Hash      string
	Prefix    string
}

// ParsedKey holds the parts of a well-formed API key.
type ParsedKey struct {
	Env    string
	Prefix string
	Secret string
}

func randomHex(chars int) (string, error) {
	b := make([]byte, chars/2)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GenerateAPIKey creates a key for env. Unknown environments produce live keys.
func GenerateAPIKey(env string) (*GeneratedKey, error) {
	if env != EnvTest {
		env = EnvLive
	}

	prefix, err := randomHex(KeyPrefixLen)
	if err != nil {
		return nil, fmt.Errorf("generate prefix: %w", err)
	}
	secret, err := randomHex(KeySecretLen)
	if err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}

	plaintext := "sl_" + env + "_" + prefix + "_" + secret
	hash, err := HashKey(plaintext)
	if err != nil {
		return nil, fmt.Errorf("hash key: %w", err)
	}
	return &GeneratedKey{Plaintext: plaintext, Hash: hash, Prefix: prefix}, nil
}

// ParseAPIKey splits a plaintext key into its parts.
func ParseAPIKey(key string) (*ParsedKey, error) {
	m := keyFormat.FindStringSubmatch(key)
	if m == nil {
		return nil, ErrInvalidKeyFormat
	}
	return &ParsedKey{Env: m[1], Prefix: m[2], Secret: m[3]}, nil
}

// ValidateKeyFormat reports whether key is shaped like an API key.
func ValidateKeyFormat(key string) bool {
	return keyFormat.MatchString(key)
}
