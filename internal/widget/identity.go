package widget

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const identityFileName = "visitor_id"

// IdentityStore persists the anonymous visitor identifier across runs, the
// way a browser profile persists a localStorage key. Unreadable or corrupt
// storage degrades to an in-memory identity for the process lifetime; the
// engine never sees a storage error.
type IdentityStore struct {
	mu     sync.Mutex
	path   string
	cached string
}

// NewIdentityStore creates a store backed by the given file. An empty path
// selects the default location under the user config dir.
func NewIdentityStore(path string) *IdentityStore {
	if path == "" {
		if configDir, err := os.UserConfigDir(); err == nil {
			path = filepath.Join(configDir, "agent-widget", identityFileName)
		}
	}
	return &IdentityStore{path: path}
}

// GetOrCreate returns the stable visitor identifier, generating and
// persisting one on first use. Repeated calls return the same value.
func (s *IdentityStore) GetOrCreate() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != "" {
		return s.cached
	}

	if s.path != "" {
		if raw, err := os.ReadFile(s.path); err == nil {
			candidate := strings.TrimSpace(string(raw))
			if _, err := uuid.Parse(candidate); err == nil {
				s.cached = candidate
				return s.cached
			}
		}
	}

	s.cached = uuid.NewString()

	if s.path != "" {
		if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err == nil {
			// A failed write keeps the identity in memory only.
			_ = os.WriteFile(s.path, []byte(s.cached), 0o600)
		}
	}

	return s.cached
}
