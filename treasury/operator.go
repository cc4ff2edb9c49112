package treasury

import (
	"fmt"
	"os"
	"path/filepath"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/bsv-blockchain/go-sdk/script"
)

// OperatorFile is the name of the encrypted operator key file inside a
// fund data directory.
const OperatorFile = "operator.enc"

// Operator is the fund's signing identity. Its key controls the reserve
// address that receives deposits and funds every settlement transaction.
type Operator struct {
	PrivKey *ec.PrivateKey
	Network string // "mainnet", "testnet", or "regtest"
}

// NewOperator generates an operator with a fresh random key.
func NewOperator(network string) (*Operator, error) {
	priv, err := ec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("treasury: generate key: %w", err)
	}
	return &Operator{PrivKey: priv, Network: network}, nil
}

// OperatorFromBytes builds an operator from a 32-byte serialized private key.
func OperatorFromBytes(key []byte, network string) (*Operator, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKey, len(key), KeySize)
	}
	allZero := true
	for _, b := range key {
		if b != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return nil, fmt.Errorf("%w: zero scalar", ErrInvalidKey)
	}

	priv, _ := ec.PrivateKeyFromBytes(key)
	return &Operator{PrivKey: priv, Network: network}, nil
}

// KeyBytes returns the 32-byte serialized private key.
func (o *Operator) KeyBytes() []byte {
	return o.PrivKey.Serialize()
}

// PublicKey returns the operator's public key.
func (o *Operator) PublicKey() *ec.PublicKey {
	return o.PrivKey.PubKey()
}

// ReserveAddress returns the base58 P2PKH address of the operator key.
// Regtest shares the testnet version byte, so any network other than
// mainnet produces a testnet-prefixed address.
func (o *Operator) ReserveAddress() (string, error) {
	addr, err := script.NewAddressFromPublicKey(o.PublicKey(), o.Network == "mainnet")
	if err != nil {
		return "", fmt.Errorf("treasury: reserve address: %w", err)
	}
	return addr.AddressString, nil
}

// OperatorPath returns the operator key file path inside a data directory.
func OperatorPath(dataDir string) string {
	return filepath.Join(dataDir, OperatorFile)
}

// SaveOperator encrypts the operator key with the password and writes it
// to path with 0600 permissions, creating parent directories as needed.
func SaveOperator(path string, op *Operator, password string) error {
	encrypted, err := EncryptKey(op.KeyBytes(), password)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("treasury: create directory: %w", err)
	}
	if err := os.WriteFile(path, encrypted, 0600); err != nil {
		return fmt.Errorf("treasury: write operator key: %w", err)
	}
	return nil
}

// LoadOperator reads and decrypts the operator key file.
// Returns ErrOperatorNotFound if the file does not exist.
func LoadOperator(path, password, network string) (*Operator, error) {
	encrypted, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrOperatorNotFound, path)
		}
		return nil, fmt.Errorf("treasury: read operator key: %w", err)
	}

	key, err := DecryptKey(encrypted, password)
	if err != nil {
		return nil, err
	}
	return OperatorFromBytes(key, network)
}
