// Package cryptox implements the encryption engine that protects vault
// secrets at rest, plus the argon2id credential hashing used for account
// passwords.
//
// Every Protect call draws a fresh random nonce and binds it into the
// returned record; Reveal reads the nonce back from the record. The engine
// never accepts an externally supplied nonce, which makes nonce reuse across
// two plaintexts under the same key structurally impossible rather than a
// calling convention.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"github.com/mvolkovs/passvault/internal/common"
	"golang.org/x/crypto/argon2"
)

// Record is the opaque encrypted representation of one secret. Only this
// package produces or consumes it; other components treat it as bytes.
type Record struct {
	Ciphertext []byte
	Nonce      []byte
}

// Cipher wraps an AES-GCM AEAD under a single process-wide key. Safe for
// concurrent use: the AEAD is read-only after construction.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher builds a Cipher from a raw AES key. The key must be 16, 24, or
// 32 bytes (AES-128/192/256). The caller owns the key slice and may wipe it
// after this returns; the AEAD keeps its own expanded schedule.
func NewCipher(key []byte) (*Cipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher init: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm init: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Protect encrypts plaintext under a fresh random nonce and returns the
// record carrying both ciphertext and nonce.
func (c *Cipher) Protect(plaintext string) (*Record, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("nonce generation: %w", err)
	}
	ciphertext := c.aead.Seal(nil, nonce, []byte(plaintext), nil)
	return &Record{Ciphertext: ciphertext, Nonce: nonce}, nil
}

// Reveal decrypts a record produced by Protect. A malformed or truncated
// record, or one written under a different key, fails the GCM authentication
// check and is reported as common.ErrDecryptionFailed; garbage is never
// returned silently.
func (c *Cipher) Reveal(rec *Record) (string, error) {
	if rec == nil || len(rec.Nonce) != c.aead.NonceSize() {
		return "", common.ErrDecryptionFailed
	}
	plaintext, err := c.aead.Open(nil, rec.Nonce, rec.Ciphertext, nil)
	if err != nil {
		return "", common.ErrDecryptionFailed
	}
	return string(plaintext), nil
}

// HashCredential derives an argon2id verifier for an account password.
func HashCredential(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, 32)
}

// CheckCredential reports whether candidate hashes to the stored verifier.
// Comparison is constant time.
func CheckCredential(verifier, candidate, salt []byte) bool {
	derived := HashCredential(candidate, salt)
	return subtle.ConstantTimeCompare(verifier, derived) == 1
}

// Fingerprint returns a stable digest of key material, used to compare keys
// without retaining them.
func Fingerprint(key []byte) []byte {
	h := sha256.Sum256(key)
	return h[:]
}
