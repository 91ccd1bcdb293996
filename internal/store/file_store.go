package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"cipherlink/internal/domain"
)

// SessionFilename is the FileStore record name inside its directory.
const SessionFilename = "session.json"

// FileStore persists the session record as a JSON file.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore returns a FileStore rooted at dir, creating dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// SaveSession writes the record, replacing any prior one.
func (s *FileStore) SaveSession(session domain.PersistedSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return writeJSON(s.path(), session, 0o600)
}

// LoadSession reads the record. ok is false if none exists or it has no token.
func (s *FileStore) LoadSession() (domain.PersistedSession, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var session domain.PersistedSession
	ok, err := readJSON(s.path(), &session)
	if err != nil {
		return domain.PersistedSession{}, false, err
	}
	if !ok || session.Token == "" {
		return domain.PersistedSession{}, false, nil
	}
	return session, true, nil
}

// ClearSession deletes the record.
func (s *FileStore) ClearSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return removeFile(s.path())
}

// Close is a no-op; FileStore holds no open handles.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) path() string { return filepath.Join(s.dir, SessionFilename) }

// Compile-time assertion that FileStore implements domain.SessionStore.
var _ domain.SessionStore = (*FileStore)(nil)
