package broker

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

const artifactExt = ".session"

// SessionStore persists one opaque session artifact per identity,
// AES-256-GCM encrypted at rest. The artifact bytes belong to the backend;
// the store never inspects them.
type SessionStore struct {
	dir string
	enc *Encryptor
	log zerolog.Logger
}

// NewSessionStore creates a store rooted at dir, creating it if needed.
func NewSessionStore(dir, secret string, log zerolog.Logger) (*SessionStore, error) {
	enc, err := NewEncryptor(secret)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating session dir: %w", err)
	}
	return &SessionStore{
		dir: dir,
		enc: enc,
		log: log.With().Str("component", "sessionstore").Logger(),
	}, nil
}

// Save persists the artifact for an identity label, overwriting any
// previous artifact.
func (st *SessionStore) Save(label string, artifact []byte) error {
	ciphertext, nonce, err := st.enc.Encrypt(artifact, label)
	if err != nil {
		return fmt.Errorf("encrypting session for %s: %w", label, err)
	}

	data := append(nonce, ciphertext...)
	path := st.path(label)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing session file: %w", err)
	}
	st.log.Debug().Str("label", label).Str("path", path).Msg("session saved")
	return nil
}

// Load restores the artifact for an identity label. Returns ErrNoSession
// when no artifact exists; a corrupt or undecryptable file is treated the
// same way so callers fall back to a credential login.
func (st *SessionStore) Load(label string) ([]byte, error) {
	data, err := os.ReadFile(st.path(label))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("reading session file: %w", err)
	}

	const nonceSize = 12 // AES-GCM standard nonce
	if len(data) <= nonceSize {
		return nil, ErrNoSession
	}

	artifact, err := st.enc.Decrypt(data[nonceSize:], data[:nonceSize], label)
	if err != nil {
		st.log.Warn().Str("label", label).Err(err).Msg("stored session unreadable, discarding")
		return nil, ErrNoSession
	}
	return artifact, nil
}

// Delete removes the stored artifact for an identity label, if any.
func (st *SessionStore) Delete(label string) error {
	err := os.Remove(st.path(label))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing session file: %w", err)
	}
	return nil
}

func (st *SessionStore) path(label string) string {
	name := strings.ReplaceAll(label, string(os.PathSeparator), "_")
	return filepath.Join(st.dir, name+artifactExt)
}
