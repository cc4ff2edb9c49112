package fund

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// StateFile is the name of the local state file inside a fund data
// directory.
const StateFile = "deposits.json"

// LocalState tracks which deposit transactions have been credited.
// Persisted as JSON at {dataDir}/deposits.json.
type LocalState struct {
	Deposits map[string]string `json:"deposits"` // key: deposit txid, value: credited account hash hex

	mu   sync.Mutex `json:"-"`
	path string     `json:"-"` // file path for persistence
}

// NewLocalState creates a new empty local state.
func NewLocalState(path string) *LocalState {
	return &LocalState{
		Deposits: make(map[string]string),
		path:     path,
	}
}

// LoadLocalState loads local state from disk. Returns a new empty state if
// the file does not exist.
func LoadLocalState(path string) (*LocalState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewLocalState(path), nil
		}
		return nil, fmt.Errorf("fund: read local state: %w", err)
	}

	var state LocalState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("fund: parse local state: %w", err)
	}
	if state.Deposits == nil {
		state.Deposits = make(map[string]string)
	}
	state.path = path
	return &state, nil
}

// Save persists the local state to disk.
func (s *LocalState) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("fund: marshal local state: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("fund: create state directory: %w", err)
	}
	return os.WriteFile(s.path, data, 0600)
}

// DepositUsed reports whether a deposit transaction has been credited.
func (s *LocalState) DepositUsed(txid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.Deposits[txid]
	return ok
}

// DepositAccount returns the account a deposit transaction was credited to.
func (s *LocalState) DepositAccount(txid string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.Deposits[txid]
	return account, ok
}

// MarkDeposit records a deposit transaction as credited to an account.
// Returns false if the transaction was already recorded, so a concurrent
// replay of the same transaction cannot double-credit.
func (s *LocalState) MarkDeposit(txid, account string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.Deposits[txid]; ok {
		return false
	}
	s.Deposits[txid] = account
	return true
}

// UnmarkDeposit removes a deposit record, releasing the transaction for
// another credit attempt after a failed mint.
func (s *LocalState) UnmarkDeposit(txid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Deposits, txid)
}
