package ledger

import "sync"

// State is the complete persistent ledger state: everything needed to
// reconstruct a Ledger after restart. Maps hold only non-zero entries.
type State struct {
	Balances    map[Address]uint64
	Allowances  map[AllowanceKey]uint64
	Accruals    map[Address]uint64
	TotalSupply uint64
	Holders     []Address
}

// NewState creates an empty state with allocated maps.
func NewState() *State {
	return &State{
		Balances:   make(map[Address]uint64),
		Allowances: make(map[AllowanceKey]uint64),
		Accruals:   make(map[Address]uint64),
	}
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	c := &State{
		Balances:    make(map[Address]uint64, len(s.Balances)),
		Allowances:  make(map[AllowanceKey]uint64, len(s.Allowances)),
		Accruals:    make(map[Address]uint64, len(s.Accruals)),
		TotalSupply: s.TotalSupply,
		Holders:     make([]Address, len(s.Holders)),
	}
	for k, v := range s.Balances {
		c.Balances[k] = v
	}
	for k, v := range s.Allowances {
		c.Allowances[k] = v
	}
	for k, v := range s.Accruals {
		c.Accruals[k] = v
	}
	copy(c.Holders, s.Holders)
	return c
}

// StateStore persists ledger state across restarts. Save must be
// all-or-nothing: the supply invariant spans every balance record, so a
// partially written state is worse than a stale one.
type StateStore interface {
	// Save atomically replaces the persisted state.
	Save(state *State) error

	// Load returns the persisted state, or an empty state if none was
	// ever saved.
	Load() (*State, error)

	// Close releases store resources.
	Close() error
}

// MemStateStore is an in-memory StateStore for testing and ephemeral
// ledgers. It keeps a deep copy of every saved state, so later ledger
// mutations cannot leak into it.
type MemStateStore struct {
	mu    sync.RWMutex
	state *State
}

// NewMemStateStore creates an empty in-memory store.
func NewMemStateStore() *MemStateStore {
	return &MemStateStore{}
}

// Save replaces the stored state with a deep copy of the given state.
func (s *MemStateStore) Save(state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state.Clone()
	return nil
}

// Load returns a deep copy of the stored state, or an empty state if
// nothing was saved yet.
func (s *MemStateStore) Load() (*State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return NewState(), nil
	}
	return s.state.Clone(), nil
}

// Close is a no-op for the in-memory store.
func (s *MemStateStore) Close() error {
	return nil
}
