package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"cipherlink/internal/domain"
)

const (
	// sessionBucket is the fixed namespace of the persisted session.
	sessionBucket = "session"

	keyToken  = "token"
	keyName   = "name"
	keyPubKey = "pubKey"
	keyPrvKey = "prvKey"
)

// BoltStore persists the session record in a bbolt database.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens (or creates) the database at path.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

func openDB(path string) (*bolt.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open db %s: %w", path, err)
	}
	return db, nil
}

// SaveSession replaces the session bucket with the given record.
func (s *BoltStore) SaveSession(session domain.PersistedSession) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket([]byte(sessionBucket)) != nil {
			if err := tx.DeleteBucket([]byte(sessionBucket)); err != nil {
				return err
			}
		}
		bkt, err := tx.CreateBucket([]byte(sessionBucket))
		if err != nil {
			return err
		}
		for k, v := range map[string]string{
			keyToken:  session.Token.String(),
			keyName:   session.Name.String(),
			keyPubKey: session.PubKey,
			keyPrvKey: session.PrvKey,
		} {
			if err := bkt.Put([]byte(k), []byte(v)); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadSession reads the record. ok is false if none exists or it has no token.
func (s *BoltStore) LoadSession() (domain.PersistedSession, bool, error) {
	var session domain.PersistedSession
	err := s.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(sessionBucket))
		if bkt == nil {
			return nil
		}
		// Values are only valid for the life of the transaction; string()
		// copies them out.
		session = domain.PersistedSession{
			Token:  domain.Token(bkt.Get([]byte(keyToken))),
			Name:   domain.Username(bkt.Get([]byte(keyName))),
			PubKey: string(bkt.Get([]byte(keyPubKey))),
			PrvKey: string(bkt.Get([]byte(keyPrvKey))),
		}
		return nil
	})
	if err != nil {
		return domain.PersistedSession{}, false, err
	}
	if session.Token == "" {
		return domain.PersistedSession{}, false, nil
	}
	return session, true, nil
}

// ClearSession drops the session bucket.
func (s *BoltStore) ClearSession() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket([]byte(sessionBucket)) == nil {
			return nil
		}
		return tx.DeleteBucket([]byte(sessionBucket))
	})
}

// Close releases the database file lock.
func (s *BoltStore) Close() error { return s.db.Close() }

// Compile-time assertion that BoltStore implements domain.SessionStore.
var _ domain.SessionStore = (*BoltStore)(nil)
