package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// keyParams are the Argon2id cost parameters for newly stored API keys.
var keyParams = phc{memory: 64 * 1024, time: 3, threads: 4}

const (
	keyHashLen = 32
	keySaltLen = 16

	// Stored hashes asking for more memory than this are rejected before hashing.
	maxVerifyMemory = 256 * 1024
)

var (
	// ErrInvalidHash is returned for stored hashes that are not Argon2id PHC strings.
	ErrInvalidHash = errors.New("invalid hash format")
	// ErrIncompatibleVersion is returned for hashes from another Argon2 version.
	ErrIncompatibleVersion = errors.New("incompatible argon2 version")
)

// phc is a decoded $argon2id$v=..$m=..,t=..,p=..$salt$hash string.
type phc struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	hash    []byte
}

func (p phc) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.memory, p.time, p.threads,
		base64.RawStdEncoding.EncodeToString(p.salt),
		base64.RawStdEncoding.EncodeToString(p.hash),
	)
}

func parsePHC(encoded string) (phc, error) {
	var p phc
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return p, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return p, ErrInvalidHash
	}
	if version != argon2.Version {
		return p, ErrIncompatibleVersion
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return p, ErrInvalidHash
	}
	if p.memory == 0 || p.memory > maxVerifyMemory || p.time == 0 || p.threads == 0 {
		return p, ErrInvalidHash
	}

	var err error
	if p.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil || len(p.salt) == 0 {
		return p, ErrInvalidHash
	}
	if p.hash, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(p.hash) == 0 {
		return p, ErrInvalidHash
	}
	return p, nil
}

// HashKey derives the stored Argon2id hash of a plaintext API key.
func HashKey(plaintext string) (string, error) {
	p := keyParams
	p.salt = make([]byte, keySaltLen)
	if _, err := rand.Read(p.salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	p.hash = argon2.IDKey([]byte(plaintext), p.salt, p.time, p.memory, p.threads, keyHashLen)
	return p.String(), nil
}

// VerifyKey reports whether plaintext matches a hash produced by HashKey.
// A mismatch is not an error; a malformed hash is.
func VerifyKey(plaintext, encoded string) (bool, error) {
	p, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	computed := argon2.IDKey([]byte(plaintext), p.salt, p.time, p.memory, p.threads, uint32(len(p.hash)))
	return subtle.ConstantTimeCompare(computed, p.hash) == 1, nil
}

// CacheKey derives the Redis key suffix for a plaintext API key.
// It is a fast digest for lookups and never stored as a credential.
func CacheKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:16])
}
