package ledger

import "encoding/hex"

// AddressSize is the length of an account identifier in bytes.
const AddressSize = 20

// Address identifies an account by its P2PKH public key hash.
type Address [AddressSize]byte

// AddressFromBytes converts a raw 20-byte slice to an Address.
// Returns false if the slice has the wrong length.
func AddressFromBytes(b []byte) (Address, bool) {
	var a Address
	if len(b) != AddressSize {
		return a, false
	}
	copy(a[:], b)
	return a, true
}

// String returns the hex encoding of the address hash.
func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// IsZero reports whether the address is all zero bytes.
func (a Address) IsZero() bool {
	return a == Address{}
}
