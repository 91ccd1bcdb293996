package store

import (
	"encoding/json"

	bolt "go.etcd.io/bbolt"

	"cipherlink/internal/domain"
)

const accountsBucket = "accounts"

// BoltAccountStore keeps relay accounts in a bbolt database, one JSON value
// per lower-cased name.
type BoltAccountStore struct {
	db *bolt.DB
}

// OpenBoltAccounts opens (or creates) the account database at path.
func OpenBoltAccounts(path string) (*BoltAccountStore, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(accountsBucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltAccountStore{db: db}, nil
}

// SaveAccount stores or replaces the account.
func (s *BoltAccountStore) SaveAccount(account domain.Account) error {
	b, err := json.Marshal(account)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(accountsBucket)).Put([]byte(accountKey(account.Name)), b)
	})
}

// LoadAccount looks the account up by name, ignoring case.
func (s *BoltAccountStore) LoadAccount(name domain.Username) (domain.Account, bool, error) {
	var (
		account domain.Account
		ok      bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(accountsBucket)).Get([]byte(accountKey(name)))
		if v == nil {
			return nil
		}
		ok = true
		return json.Unmarshal(v, &account)
	})
	if err != nil {
		return domain.Account{}, false, err
	}
	return account, ok, nil
}

// Close releases the database file lock.
func (s *BoltAccountStore) Close() error { return s.db.Close() }

var _ domain.AccountStore = (*BoltAccountStore)(nil)
