package client

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const sessionAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewSessionID returns an id of the form session_<unix ms>_<9 base36 chars>.
func NewSessionID(now time.Time) string {
	var b strings.Builder
	b.WriteString("session_")
	b.WriteString(strconv.FormatInt(now.UnixMilli(), 10))
	b.WriteByte('_')
	for range 9 {
		b.WriteByte(sessionAlphabet[rand.IntN(len(sessionAlphabet))])
	}
	return b.String()
}

// SessionStore persists the client session id across restarts.
type SessionStore interface {
	// Load returns the stored id, or "" when none was saved.
	Load() (string, error)
	Save(id string) error
}

// MemoryStore keeps the session id for the life of the process.
type MemoryStore struct {
	mu sync.Mutex
	id string
}

// Load implements SessionStore.
func (m *MemoryStore) Load() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.id, nil
}

// Save implements SessionStore.
func (m *MemoryStore) Save(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.id = id
	return nil
}

// FileStore keeps the session id in a small file.
type FileStore struct {
	Path string
}

// DefaultSessionPath is the CLI's session file under the user config dir.
func DefaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "goalpath", "tutor_session_id")
}

// Load implements SessionStore.
func (f FileStore) Load() (string, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read session file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Save implements SessionStore.
func (f FileStore) Save(id string) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	if err := os.WriteFile(f.Path, []byte(id+"\n"), 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}
