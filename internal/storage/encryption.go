package storage

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	// SealedHeader is prepended to passphrase-sealed payloads.
	SealedHeader = "CUBEENC1"

	// Argon2id parameters (RFC 9106 recommendations)
	defaultArgon2Time    = 1
	defaultArgon2Memory  = 64 * 1024 // 64 MB
	defaultArgon2Threads = 4
	argon2KeyLen         = 32 // AES-256

	saltLength = 32
)

// ErrPassphraseRequired is returned when sealed data is opened without a passphrase.
var ErrPassphraseRequired = errors.New("passphrase required")

// SealConfig holds the passphrase and key-derivation cost.
type SealConfig struct {
	Passphrase string

	// Argon2Time is the number of Argon2 iterations. Default: 1
	Argon2Time uint32

	// Argon2Memory is the memory cost in KB. Default: 64 MB
	Argon2Memory uint32

	// Argon2Threads is the parallelism. Default: 4
	Argon2Threads uint8
}

// DefaultSealConfig returns a SealConfig with the default Argon2id cost.
func DefaultSealConfig(passphrase string) *SealConfig {
	return &SealConfig{
		Passphrase:    passphrase,
		Argon2Time:    defaultArgon2Time,
		Argon2Memory:  defaultArgon2Memory,
		Argon2Threads: defaultArgon2Threads,
	}
}

func (c *SealConfig) deriveKey(salt []byte) []byte {
	return argon2.IDKey([]byte(c.Passphrase), salt, c.Argon2Time, c.Argon2Memory, c.Argon2Threads, argon2KeyLen)
}

func (c *SealConfig) gcm(salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.deriveKey(salt))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// Seal encrypts plaintext with AES-256-GCM under an Argon2id key.
// Layout: header || salt || nonce || ciphertext+tag
func Seal(plaintext []byte, config *SealConfig) ([]byte, error) {
	if config == nil || config.Passphrase == "" {
		return nil, ErrPassphraseRequired
	}

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	gcm, err := config.gcm(salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := make([]byte, 0, len(SealedHeader)+len(salt)+len(nonce)+len(plaintext)+gcm.Overhead())
	out = append(out, SealedHeader...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plaintext, nil), nil
}

// Unseal reverses Seal.
func Unseal(sealed []byte, config *SealConfig) ([]byte, error) {
	if !IsSealed(sealed) {
		return nil, fmt.Errorf("data is not sealed or has wrong format")
	}
	if config == nil || config.Passphrase == "" {
		return nil, ErrPassphraseRequired
	}

	data := sealed[len(SealedHeader):]
	// salt + GCM nonce (12) + GCM tag (16)
	if len(data) < saltLength+12+16 {
		return nil, fmt.Errorf("sealed data too short")
	}

	salt := data[:saltLength]
	data = data[saltLength:]

	gcm, err := config.gcm(salt)
	if err != nil {
		return nil, err
	}

	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed (wrong passphrase or corrupted data): %w", err)
	}
	return plaintext, nil
}

// IsSealed reports whether data starts with SealedHeader.
func IsSealed(data []byte) bool {
	return bytes.HasPrefix(data, []byte(SealedHeader))
}
