package treasury

import "errors"

var (
	// ErrInvalidKey indicates the key bytes are not a usable private key.
	ErrInvalidKey = errors.New("treasury: invalid private key")

	// ErrDecryptionFailed indicates wrong password or corrupted key data.
	ErrDecryptionFailed = errors.New("treasury: key decryption failed (wrong password or corrupted data)")

	// ErrChecksumMismatch indicates key checksum verification failed after decryption.
	ErrChecksumMismatch = errors.New("treasury: key checksum mismatch")

	// ErrOperatorNotFound indicates no operator key file exists at the given path.
	ErrOperatorNotFound = errors.New("treasury: operator key not found")
)
