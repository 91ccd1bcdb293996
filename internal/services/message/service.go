package message

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"cipherlink/internal/crypto"
	"cipherlink/internal/domain"
	"cipherlink/internal/metrics"
	"cipherlink/internal/services/roster"
)

const (
	encryptFailedFormat = "Couldn't encrypt this message, reason: %s"
	decryptFailedFormat = "Couldn't decrypt this message, reason: %s"
)

// Service seals and opens messages for one session.
type Service struct {
	roster *roster.Store
	log    *log.Logger
}

// New returns a message service recording into r. A nil logger discards.
func New(r *roster.Store, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Service{roster: r, log: logger}
}

// Seal encrypts plaintext for peer and appends it to the peer's log as a self
// entry. If encryption fails the text is logged as an error entry instead and
// the *domain.EncryptionError is returned; nothing must be sent in that case.
func (s *Service) Seal(self domain.Username, to domain.PeerID, plaintext string) (string, error) {
	peer, ok := s.roster.Peer(to)
	if !ok {
		return "", domain.ErrUnknownPeer
	}

	ct, err := crypto.EncryptPEM(peer.PublicKey, plaintext)
	if err != nil {
		metrics.EncryptFailures.Inc()
		s.log.Warn("encrypt failed", "peer", to, "err", err)
		entry := domain.Entry{
			Sender:    self.String(),
			Plaintext: fmt.Sprintf(encryptFailedFormat, reason(err)),
			Error:     true,
		}
		if rerr := s.roster.RecordOutgoing(to, entry); rerr != nil {
			return "", errors.Join(err, rerr)
		}
		return "", err
	}

	if err := s.roster.RecordOutgoing(to, domain.Entry{Sender: self.String(), Plaintext: plaintext}); err != nil {
		return "", err
	}
	return ct, nil
}

// Open decrypts ciphertext from sender and records it. Messages from senders
// outside the roster are rejected with domain.ErrUnknownPeer and not
// recorded. A decryption failure is recorded as a placeholder entry and is
// not returned as an error.
func (s *Service) Open(
	priv *rsa.PrivateKey,
	from domain.PeerID,
	ciphertext string,
) (domain.Entry, domain.Delivery, error) {
	peer, ok := s.roster.Peer(from)
	if !ok {
		return domain.Entry{}, 0, domain.ErrUnknownPeer
	}

	entry := domain.Entry{Sender: peer.Name}
	plain, err := crypto.Decrypt(priv, ciphertext)
	if err != nil {
		metrics.DecryptFailures.Inc()
		s.log.Warn("decrypt failed", "peer", from, "err", err)
		entry.Plaintext = fmt.Sprintf(decryptFailedFormat, reason(err))
		entry.Error = true
	} else {
		entry.Plaintext = plain
	}

	delivery, err := s.roster.Receive(from, entry)
	if err != nil {
		return domain.Entry{}, 0, err
	}
	metrics.MessagesReceived.Inc()
	return entry, delivery, nil
}

// reason renders the failure kind for the inline marker without the
// underlying cause, which may quote key material.
func reason(err error) string {
	var enc *domain.EncryptionError
	if errors.As(err, &enc) {
		return enc.Kind.String()
	}
	var dec *domain.DecryptionError
	if errors.As(err, &dec) {
		return dec.Kind.String()
	}
	return err.Error()
}
