package treasury

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testKey returns a fixed 32-byte private key scalar for deterministic tests.
func testKey() []byte {
	key := make([]byte, KeySize)
	for i := range key {
		key[i] = byte(i + 1)
	}
	return key
}

// --- Key encryption tests ---

func TestEncryptDecryptKey_RoundTrip(t *testing.T) {
	key := testKey()
	password := "fund-password"

	encrypted, err := EncryptKey(key, password)
	require.NoError(t, err)
	assert.Greater(t, len(encrypted), SaltLen+NonceLen, "ciphertext should follow salt and nonce")

	decrypted, err := DecryptKey(encrypted, password)
	require.NoError(t, err)
	assert.Equal(t, key, decrypted)
}

func TestDecryptKey_WrongPassword(t *testing.T) {
	encrypted, err := EncryptKey(testKey(), "correct-password")
	require.NoError(t, err)

	_, err = DecryptKey(encrypted, "wrong-password")
	assert.ErrorIs(t, err, ErrDecryptionFailed, "wrong password should fail")
}

func TestEncryptKey_WrongSize(t *testing.T) {
	_, err := EncryptKey([]byte{0x01, 0x02}, "password")
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = EncryptKey(make([]byte, 64), "password")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestDecryptKey_TooShort(t *testing.T) {
	_, err := DecryptKey([]byte{0x01, 0x02, 0x03}, "password")
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestEncryptKey_DifferentCiphertexts(t *testing.T) {
	key := testKey()
	password := "same-password"

	enc1, err := EncryptKey(key, password)
	require.NoError(t, err)

	enc2, err := EncryptKey(key, password)
	require.NoError(t, err)

	// Should differ due to random salt and nonce
	assert.NotEqual(t, enc1, enc2, "same key+password should produce different ciphertexts")

	// But both should decrypt correctly
	dec1, err := DecryptKey(enc1, password)
	require.NoError(t, err)
	assert.Equal(t, key, dec1)

	dec2, err := DecryptKey(enc2, password)
	require.NoError(t, err)
	assert.Equal(t, key, dec2)
}

// --- Operator tests ---

func TestNewOperator(t *testing.T) {
	op, err := NewOperator("mainnet")
	require.NoError(t, err)
	assert.NotNil(t, op.PrivKey)
	assert.Equal(t, "mainnet", op.Network)
	assert.Len(t, op.KeyBytes(), KeySize)

	addr, err := op.ReserveAddress()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(addr, "1"), "mainnet P2PKH address should start with 1, got %q", addr)
}

func TestNewOperator_Unique(t *testing.T) {
	op1, err := NewOperator("mainnet")
	require.NoError(t, err)
	op2, err := NewOperator("mainnet")
	require.NoError(t, err)
	assert.NotEqual(t, op1.KeyBytes(), op2.KeyBytes())
}

func TestOperatorFromBytes_Deterministic(t *testing.T) {
	op1, err := OperatorFromBytes(testKey(), "mainnet")
	require.NoError(t, err)
	op2, err := OperatorFromBytes(testKey(), "mainnet")
	require.NoError(t, err)

	assert.Equal(t, op1.KeyBytes(), op2.KeyBytes())

	addr1, err := op1.ReserveAddress()
	require.NoError(t, err)
	addr2, err := op2.ReserveAddress()
	require.NoError(t, err)
	assert.Equal(t, addr1, addr2, "same key should derive the same reserve address")
}

func TestOperatorFromBytes_WrongSize(t *testing.T) {
	_, err := OperatorFromBytes([]byte{0x01}, "mainnet")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestOperatorFromBytes_ZeroScalar(t *testing.T) {
	_, err := OperatorFromBytes(make([]byte, KeySize), "mainnet")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestReserveAddress_NetworkPrefix(t *testing.T) {
	tests := []struct {
		network string
		prefix  []string
	}{
		{"mainnet", []string{"1"}},
		// Testnet and regtest share the testnet version byte.
		{"testnet", []string{"m", "n"}},
		{"regtest", []string{"m", "n"}},
	}

	for _, tc := range tests {
		t.Run(tc.network, func(t *testing.T) {
			op, err := OperatorFromBytes(testKey(), tc.network)
			require.NoError(t, err)

			addr, err := op.ReserveAddress()
			require.NoError(t, err)

			matched := false
			for _, p := range tc.prefix {
				if strings.HasPrefix(addr, p) {
					matched = true
					break
				}
			}
			assert.True(t, matched, "address %q should start with one of %v", addr, tc.prefix)
		})
	}
}

// --- Persistence tests ---

func TestSaveLoadOperator_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := OperatorPath(dir)

	op, err := OperatorFromBytes(testKey(), "regtest")
	require.NoError(t, err)
	require.NoError(t, SaveOperator(path, op, "hunter2"))

	loaded, err := LoadOperator(path, "hunter2", "regtest")
	require.NoError(t, err)
	assert.Equal(t, op.KeyBytes(), loaded.KeyBytes())

	wantAddr, err := op.ReserveAddress()
	require.NoError(t, err)
	gotAddr, err := loaded.ReserveAddress()
	require.NoError(t, err)
	assert.Equal(t, wantAddr, gotAddr)
}

func TestLoadOperator_NotFound(t *testing.T) {
	_, err := LoadOperator(filepath.Join(t.TempDir(), "operator.enc"), "pw", "mainnet")
	assert.ErrorIs(t, err, ErrOperatorNotFound)
}

func TestLoadOperator_WrongPassword(t *testing.T) {
	dir := t.TempDir()
	path := OperatorPath(dir)

	op, err := NewOperator("mainnet")
	require.NoError(t, err)
	require.NoError(t, SaveOperator(path, op, "right"))

	_, err = LoadOperator(path, "wrong", "mainnet")
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestSaveOperator_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "fund", OperatorFile)

	op, err := NewOperator("mainnet")
	require.NoError(t, err)
	require.NoError(t, SaveOperator(path, op, "pw"))

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestSaveOperator_FilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits not meaningful on Windows")
	}

	dir := t.TempDir()
	path := OperatorPath(dir)

	op, err := NewOperator("mainnet")
	require.NoError(t, err)
	require.NoError(t, SaveOperator(path, op, "pw"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestOperatorPath(t *testing.T) {
	assert.Equal(t, filepath.Join("/data", "operator.enc"), OperatorPath("/data"))
}
