package broker

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

const testSecret = "this-is-a-valid-32-character-key"

func newTestStore(t *testing.T) *SessionStore {
	t.Helper()
	st, err := NewSessionStore(t.TempDir(), testSecret, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewSessionStore() error = %v", err)
	}
	return st
}

func TestSessionStore_RoundTrip(t *testing.T) {
	st := newTestStore(t)

	artifact := []byte(`{"access_token":"abc","expires_at":"2026-10-01T00:00:00Z"}`)
	if err := st.Save("Robinhood 1", artifact); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := st.Load("Robinhood 1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(got) != string(artifact) {
		t.Errorf("Load() = %q, want %q", got, artifact)
	}
}

func TestSessionStore_MissingArtifact(t *testing.T) {
	st := newTestStore(t)

	_, err := st.Load("SoFi 1")
	if !errors.Is(err, ErrNoSession) {
		t.Errorf("Load() error = %v, want ErrNoSession", err)
	}
}

func TestSessionStore_SaveOverwrites(t *testing.T) {
	st := newTestStore(t)

	if err := st.Save("Schwab 1", []byte("old")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := st.Save("Schwab 1", []byte("new")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := st.Load("Schwab 1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(got) != "new" {
		t.Errorf("Load() = %q, want %q", got, "new")
	}
}

func TestSessionStore_CorruptArtifactFallsBack(t *testing.T) {
	dir := t.TempDir()
	st, err := NewSessionStore(dir, testSecret, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewSessionStore() error = %v", err)
	}

	path := filepath.Join(dir, "SoFi 1"+artifactExt)
	if err := os.WriteFile(path, []byte("garbage-not-a-real-artifact"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := st.Load("SoFi 1"); !errors.Is(err, ErrNoSession) {
		t.Errorf("Load() of corrupt file error = %v, want ErrNoSession", err)
	}
}

func TestSessionStore_Delete(t *testing.T) {
	st := newTestStore(t)

	if err := st.Save("SoFi 1", []byte("artifact")); err != nil {
		t.Fatal(err)
	}
	if err := st.Delete("SoFi 1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := st.Load("SoFi 1"); !errors.Is(err, ErrNoSession) {
		t.Errorf("Load() after Delete error = %v, want ErrNoSession", err)
	}

	// Deleting a missing artifact is not an error.
	if err := st.Delete("SoFi 1"); err != nil {
		t.Errorf("Delete() of missing artifact error = %v", err)
	}
}
