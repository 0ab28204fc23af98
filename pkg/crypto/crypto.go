// Package crypto hashes provisioned login secrets.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

// SaltSize is the length of the random salt generated per credential.
const SaltSize = 16

// Params are the Argon2id cost parameters.
type Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
}

// DefaultParams matches the RFC 9106 second recommended option, scaled down
// to 64 MiB.
var DefaultParams = Params{Time: 1, Memory: 64 * 1024, Threads: 4, KeyLen: 32}

// GenerateSalt returns SaltSize random bytes.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("crypto: generate salt: %w", err)
	}
	return salt, nil
}

// Hasher derives comparable digests from secrets.
type Hasher struct {
	params Params
}

// NewHasher returns a Hasher with the given parameters. Zero fields fall back
// to DefaultParams.
func NewHasher(p Params) *Hasher {
	if p.Time == 0 {
		p.Time = DefaultParams.Time
	}
	if p.Memory == 0 {
		p.Memory = DefaultParams.Memory
	}
	if p.Threads == 0 {
		p.Threads = DefaultParams.Threads
	}
	if p.KeyLen == 0 {
		p.KeyLen = DefaultParams.KeyLen
	}
	return &Hasher{params: p}
}

// Hash derives the Argon2id digest of secret under salt.
func (h *Hasher) Hash(secret string, salt []byte) []byte {
	p := h.params
	return argon2.IDKey([]byte(secret), salt, p.Time, p.Memory, p.Threads, p.KeyLen)
}

// Verify reports whether secret hashes to digest under salt.
// The digest comparison runs in constant time.
func (h *Hasher) Verify(secret string, salt, digest []byte) bool {
	return subtle.ConstantTimeCompare(h.Hash(secret, salt), digest) == 1
}
