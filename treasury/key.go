// Package treasury implements custody of the fund's operator key.
//
// The operator key signs every settlement transaction the fund
// broadcasts, so it is kept encrypted at rest with Argon2id + AES-256-GCM
// and only unlocked with the fund password.
package treasury

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	// Argon2id parameters for key encryption.
	Argon2Time        = 3
	Argon2Memory      = 64 * 1024 // 64 MB
	Argon2Parallelism = 4
	Argon2KeyLen      = 32

	// Encryption format sizes.
	SaltLen     = 16
	NonceLen    = 12
	ChecksumLen = 4

	// KeySize is the serialized secp256k1 private key length.
	KeySize = 32
)

// EncryptKey encrypts a private key with Argon2id + AES-256-GCM.
//
// Output format: salt(16B) || nonce(12B) || AES-GCM(argon2id(password,salt), nonce, key||checksum)
//
// The checksum is SHA256(key)[:4] for verifying correct decryption.
func EncryptKey(key []byte, password string) ([]byte, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKey, len(key), KeySize)
	}

	// Generate random salt for Argon2id
	salt := make([]byte, SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("treasury: failed to generate salt: %w", err)
	}

	// Derive encryption key using Argon2id
	derivedKey := argon2.IDKey(
		[]byte(password),
		salt,
		Argon2Time,
		Argon2Memory,
		Argon2Parallelism,
		Argon2KeyLen,
	)

	// Compute checksum: SHA256(key)[:4]
	keyHash := sha256.Sum256(key)
	checksum := keyHash[:ChecksumLen]

	// Prepare plaintext: key || checksum
	plaintext := make([]byte, len(key)+ChecksumLen)
	copy(plaintext, key)
	copy(plaintext[len(key):], checksum)

	// AES-256-GCM encryption
	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return nil, fmt.Errorf("treasury: AES cipher creation failed: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("treasury: GCM creation failed: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("treasury: failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	// Output: salt(16B) || nonce(12B) || ciphertext
	result := make([]byte, 0, SaltLen+NonceLen+len(ciphertext))
	result = append(result, salt...)
	result = append(result, nonce...)
	result = append(result, ciphertext...)

	return result, nil
}

// DecryptKey decrypts a private key from the operator.enc format.
//
// Input format: salt(16B) || nonce(12B) || ciphertext
//
// Derives key with Argon2id, decrypts with AES-256-GCM, then verifies
// the SHA256(key)[:4] checksum to confirm correct decryption.
func DecryptKey(encrypted []byte, password string) ([]byte, error) {
	minLen := SaltLen + NonceLen + ChecksumLen // minimum: salt + nonce + at least checksum
	if len(encrypted) < minLen {
		return nil, ErrDecryptionFailed
	}

	// Parse components
	salt := encrypted[:SaltLen]
	nonce := encrypted[SaltLen : SaltLen+NonceLen]
	ciphertext := encrypted[SaltLen+NonceLen:]

	// Derive decryption key using Argon2id with same parameters
	derivedKey := argon2.IDKey(
		[]byte(password),
		salt,
		Argon2Time,
		Argon2Memory,
		Argon2Parallelism,
		Argon2KeyLen,
	)

	// AES-256-GCM decryption
	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	if len(plaintext) < ChecksumLen {
		return nil, ErrDecryptionFailed
	}

	// Split key and checksum
	key := plaintext[:len(plaintext)-ChecksumLen]
	storedChecksum := plaintext[len(plaintext)-ChecksumLen:]

	// Verify checksum
	keyHash := sha256.Sum256(key)
	expectedChecksum := keyHash[:ChecksumLen]

	for i := 0; i < ChecksumLen; i++ {
		if storedChecksum[i] != expectedChecksum[i] {
			return nil, ErrChecksumMismatch
		}
	}

	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKey, len(key), KeySize)
	}

	return key, nil
}
