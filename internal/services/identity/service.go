package identity

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"cipherlink/internal/crypto"
	"cipherlink/internal/domain"
	"cipherlink/internal/util/worker"
)

// Result is the outcome of a background generation.
type Result struct {
	Keys domain.KeyPair
	Err  error
}

// Option configures a Service.
type Option func(*Service)

// WithKeyBits overrides the RSA modulus size. Only tests should need this.
func WithKeyBits(bits int) Option {
	return func(s *Service) { s.bits = bits }
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *log.Logger) Option {
	return func(s *Service) { s.log = l }
}

// Service derives, persists and restores the identity key pair.
//
// A key pair derived for one (username, digest) pair is kept for the life of
// the Service and handed out again on the next request with the same inputs.
type Service struct {
	store domain.SessionStore
	log   *log.Logger
	bits  int

	worker worker.Worker

	mu     sync.Mutex
	cached *derived
}

type derived struct {
	username domain.Username
	digest   string
	keys     domain.KeyPair
}

// New returns a key manager backed by store.
func New(store domain.SessionStore, opts ...Option) *Service {
	s := &Service{store: store, bits: crypto.KeyBits}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = log.New(io.Discard)
	}
	return s
}

// DeriveAndGenerate returns the key pair seeded from username and the
// password digest. It is CPU bound; use GenerateInBackground from
// interactive callers.
func (s *Service) DeriveAndGenerate(
	ctx context.Context,
	username domain.Username,
	passwordDigest string,
) (domain.KeyPair, error) {
	s.mu.Lock()
	if c := s.cached; c != nil && c.username == username && c.digest == passwordDigest {
		s.mu.Unlock()
		return c.keys, nil
	}
	s.mu.Unlock()

	seed := crypto.DeriveSeed(username.String(), passwordDigest)
	defer crypto.Wipe(seed)

	priv, err := crypto.GenerateKey(ctx, seed, s.bits)
	if err != nil {
		return domain.KeyPair{}, &domain.KeyManagerError{Kind: domain.GenerationFailed, Err: err}
	}
	keys := domain.KeyPair{Public: &priv.PublicKey, Private: priv}

	if fp, err := crypto.FingerprintKey(keys.Public); err == nil {
		s.log.Debug("derived identity key", "user", username, "fingerprint", fp)
	}

	s.mu.Lock()
	s.cached = &derived{username: username, digest: passwordDigest, keys: keys}
	s.mu.Unlock()
	return keys, nil
}

// GenerateInBackground runs DeriveAndGenerate on the service's worker. The
// returned channel yields exactly one Result. Generation is cancelled when
// ctx is done or the service is halted.
func (s *Service) GenerateInBackground(
	ctx context.Context,
	username domain.Username,
	passwordDigest string,
) <-chan Result {
	out := make(chan Result, 1)
	s.worker.Go(func() {
		wctx, cancel := s.worker.Context(ctx)
		defer cancel()
		keys, err := s.DeriveAndGenerate(wctx, username, passwordDigest)
		out <- Result{Keys: keys, Err: err}
	})
	return out
}

// Persist overwrites the stored session with keys, token and username.
func (s *Service) Persist(keys domain.KeyPair, token domain.Token, username domain.Username) error {
	if !keys.Valid() {
		return &domain.KeyManagerError{Kind: domain.StorageUnavailable, Err: errors.New("incomplete key pair")}
	}
	pubPEM, err := crypto.MarshalPublicKeyPEM(keys.Public)
	if err != nil {
		return &domain.KeyManagerError{Kind: domain.StorageUnavailable, Err: err}
	}
	prvPEM, err := crypto.MarshalPrivateKeyPEM(keys.Private)
	if err != nil {
		return &domain.KeyManagerError{Kind: domain.StorageUnavailable, Err: err}
	}
	err = s.store.SaveSession(domain.PersistedSession{
		Token:  token,
		Name:   username,
		PubKey: pubPEM,
		PrvKey: prvPEM,
	})
	if err != nil {
		return &domain.KeyManagerError{Kind: domain.StorageUnavailable, Err: err}
	}
	return nil
}

// Restore reads back a persisted session. ok is false when none exists. A
// record whose keys cannot be parsed is reported as StorageUnavailable and
// never as a partial key pair.
func (s *Service) Restore() (domain.Identity, domain.Token, bool, error) {
	rec, ok, err := s.store.LoadSession()
	if err != nil {
		return domain.Identity{}, "", false, &domain.KeyManagerError{Kind: domain.StorageUnavailable, Err: err}
	}
	if !ok {
		return domain.Identity{}, "", false, nil
	}
	priv, err := crypto.ParsePrivateKeyPEM(rec.PrvKey)
	if err != nil {
		return domain.Identity{}, "", false, &domain.KeyManagerError{Kind: domain.StorageUnavailable, Err: err}
	}
	pub, err := crypto.ParsePublicKeyPEM(rec.PubKey)
	if err != nil {
		return domain.Identity{}, "", false, &domain.KeyManagerError{Kind: domain.StorageUnavailable, Err: err}
	}
	if pub.N.Cmp(priv.N) != 0 || pub.E != priv.E {
		return domain.Identity{}, "", false, &domain.KeyManagerError{
			Kind: domain.StorageUnavailable,
			Err:  errors.New("stored public key does not match private key"),
		}
	}
	id := domain.Identity{
		Username: rec.Name,
		Keys:     domain.KeyPair{Public: pub, Private: priv},
	}
	return id, rec.Token, true, nil
}

// Clear erases all persisted identity material.
func (s *Service) Clear() error {
	if err := s.store.ClearSession(); err != nil {
		return &domain.KeyManagerError{Kind: domain.StorageUnavailable, Err: err}
	}
	return nil
}

// Halt cancels any running generation and waits for it to return.
func (s *Service) Halt() { s.worker.Halt() }
