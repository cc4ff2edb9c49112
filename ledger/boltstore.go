package ledger

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"
)

var (
	bucketBalances   = []byte("balances")
	bucketAllowances = []byte("allowances")
	bucketAccruals   = []byte("accruals")
	bucketHolders    = []byte("holders")
	bucketMeta       = []byte("meta")

	keyTotalSupply = []byte("total_supply")
)

// BoltStateStore persists ledger state in a bbolt database. Each Save
// rewrites the state buckets inside a single write transaction, so the
// on-disk state always corresponds to exactly one completed ledger
// operation.
type BoltStateStore struct {
	db *bbolt.DB
}

// Compile-time interface check.
var _ StateStore = (*BoltStateStore)(nil)

// OpenBoltStateStore opens or creates the bbolt database at dbPath.
// The parent directory is created if it does not exist.
func OpenBoltStateStore(dbPath string) (*BoltStateStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("ledger: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("ledger: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketBalances, bucketAllowances, bucketAccruals, bucketHolders, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("boltstore: create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: create buckets: %w", err)
	}

	return &BoltStateStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStateStore) Close() error { return s.db.Close() }

// positionKey encodes a holder sequence position as a 4-byte big-endian
// key so a cursor walk yields the original order.
func positionKey(i int) []byte {
	k := make([]byte, 4)
	binary.BigEndian.PutUint32(k, uint32(i))
	return k
}

// amountValue encodes a uint64 amount as an 8-byte big-endian value.
func amountValue(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// allowanceKeyBytes encodes owner||spender as a 40-byte composite key.
func allowanceKeyBytes(k AllowanceKey) []byte {
	b := make([]byte, 2*AddressSize)
	copy(b, k.Owner[:])
	copy(b[AddressSize:], k.Spender[:])
	return b
}

// recreateBucket drops and recreates a bucket within tx.
func recreateBucket(tx *bbolt.Tx, name []byte) (*bbolt.Bucket, error) {
	if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
		return nil, fmt.Errorf("boltstore: delete bucket %q: %w", name, err)
	}
	b, err := tx.CreateBucket(name)
	if err != nil {
		return nil, fmt.Errorf("boltstore: create bucket %q: %w", name, err)
	}
	return b, nil
}

// Save atomically replaces the persisted state. The state buckets are
// rewritten inside one transaction; if any write fails, the previous
// state remains intact.
func (s *BoltStateStore) Save(state *State) error {
	if state == nil {
		return fmt.Errorf("ledger: save nil state")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		bb, err := recreateBucket(tx, bucketBalances)
		if err != nil {
			return err
		}
		for addr, amount := range state.Balances {
			if err := bb.Put(addr[:], amountValue(amount)); err != nil {
				return fmt.Errorf("boltstore: put balance: %w", err)
			}
		}

		ab, err := recreateBucket(tx, bucketAllowances)
		if err != nil {
			return err
		}
		for key, amount := range state.Allowances {
			if err := ab.Put(allowanceKeyBytes(key), amountValue(amount)); err != nil {
				return fmt.Errorf("boltstore: put allowance: %w", err)
			}
		}

		cb, err := recreateBucket(tx, bucketAccruals)
		if err != nil {
			return err
		}
		for addr, amount := range state.Accruals {
			if err := cb.Put(addr[:], amountValue(amount)); err != nil {
				return fmt.Errorf("boltstore: put accrual: %w", err)
			}
		}

		hb, err := recreateBucket(tx, bucketHolders)
		if err != nil {
			return err
		}
		for i, addr := range state.Holders {
			if err := hb.Put(positionKey(i), addr[:]); err != nil {
				return fmt.Errorf("boltstore: put holder: %w", err)
			}
		}

		mb, err := recreateBucket(tx, bucketMeta)
		if err != nil {
			return err
		}
		if err := mb.Put(keyTotalSupply, amountValue(state.TotalSupply)); err != nil {
			return fmt.Errorf("boltstore: put total supply: %w", err)
		}
		return nil
	})
}

// Load reads the persisted state. A freshly created database yields an
// empty state with zero supply.
func (s *BoltStateStore) Load() (*State, error) {
	state := NewState()
	err := s.db.View(func(tx *bbolt.Tx) error {
		if b := tx.Bucket(bucketBalances); b != nil {
			if err := b.ForEach(func(k, v []byte) error {
				addr, ok := AddressFromBytes(k)
				if !ok || len(v) != 8 {
					return fmt.Errorf("%w: balance record", ErrCorruptState)
				}
				state.Balances[addr] = binary.BigEndian.Uint64(v)
				return nil
			}); err != nil {
				return err
			}
		}

		if b := tx.Bucket(bucketAllowances); b != nil {
			if err := b.ForEach(func(k, v []byte) error {
				if len(k) != 2*AddressSize || len(v) != 8 {
					return fmt.Errorf("%w: allowance record", ErrCorruptState)
				}
				owner, _ := AddressFromBytes(k[:AddressSize])
				spender, _ := AddressFromBytes(k[AddressSize:])
				state.Allowances[AllowanceKey{Owner: owner, Spender: spender}] = binary.BigEndian.Uint64(v)
				return nil
			}); err != nil {
				return err
			}
		}

		if b := tx.Bucket(bucketAccruals); b != nil {
			if err := b.ForEach(func(k, v []byte) error {
				addr, ok := AddressFromBytes(k)
				if !ok || len(v) != 8 {
					return fmt.Errorf("%w: accrual record", ErrCorruptState)
				}
				state.Accruals[addr] = binary.BigEndian.Uint64(v)
				return nil
			}); err != nil {
				return err
			}
		}

		if b := tx.Bucket(bucketHolders); b != nil {
			// Keys are big-endian positions, so the cursor order is the
			// holder sequence order.
			if err := b.ForEach(func(k, v []byte) error {
				addr, ok := AddressFromBytes(v)
				if !ok {
					return fmt.Errorf("%w: holder record", ErrCorruptState)
				}
				state.Holders = append(state.Holders, addr)
				return nil
			}); err != nil {
				return err
			}
		}

		if b := tx.Bucket(bucketMeta); b != nil {
			if v := b.Get(keyTotalSupply); v != nil {
				if len(v) != 8 {
					return fmt.Errorf("%w: total supply record", ErrCorruptState)
				}
				state.TotalSupply = binary.BigEndian.Uint64(v)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}
