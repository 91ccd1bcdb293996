package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"cipherlink/internal/domain"
)

// AccountsFilename is the AccountFileStore record name inside its directory.
const AccountsFilename = "accounts.json"

// AccountFileStore persists relay accounts to a single JSON file.
type AccountFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewAccountFileStore returns an AccountFileStore rooted at dir, creating dir
// if needed.
func NewAccountFileStore(dir string) (*AccountFileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create account dir: %w", err)
	}
	return &AccountFileStore{dir: dir}, nil
}

// SaveAccount stores or replaces the account.
func (s *AccountFileStore) SaveAccount(account domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts := make(map[string]domain.Account)
	if _, err := readJSON(s.path(), &accounts); err != nil {
		return err
	}
	accounts[accountKey(account.Name)] = account
	return writeJSON(s.path(), accounts, 0o600)
}

// LoadAccount looks the account up by name, ignoring case.
func (s *AccountFileStore) LoadAccount(name domain.Username) (domain.Account, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts := make(map[string]domain.Account)
	if _, err := readJSON(s.path(), &accounts); err != nil {
		return domain.Account{}, false, err
	}
	account, ok := accounts[accountKey(name)]
	return account, ok, nil
}

// Close is a no-op.
func (s *AccountFileStore) Close() error { return nil }

func (s *AccountFileStore) path() string { return filepath.Join(s.dir, AccountsFilename) }

func accountKey(name domain.Username) string { return strings.ToLower(name.String()) }

// MemoryAccountStore keeps accounts for the life of the process.
type MemoryAccountStore struct {
	mu       sync.RWMutex
	accounts map[string]domain.Account
}

// NewMemoryAccountStore returns an empty in-memory store.
func NewMemoryAccountStore() *MemoryAccountStore {
	return &MemoryAccountStore{accounts: make(map[string]domain.Account)}
}

func (s *MemoryAccountStore) SaveAccount(account domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[accountKey(account.Name)] = account
	return nil
}

func (s *MemoryAccountStore) LoadAccount(name domain.Username) (domain.Account, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[accountKey(name)]
	return account, ok, nil
}

func (s *MemoryAccountStore) Close() error { return nil }

var (
	_ domain.AccountStore = (*AccountFileStore)(nil)
	_ domain.AccountStore = (*MemoryAccountStore)(nil)
)
