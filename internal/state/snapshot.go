// internal/state/snapshot.go
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/user/draftsync/internal/types"
)

// Store is a JSON-file-backed advisory cache under <root>/cache/. It exists
// to avoid UI flicker across restarts: the last known rate-limit state and
// per-conversation message lists. It is never authoritative; the server is
// consulted on the next real operation regardless of what is cached here.
//
// The store is created once at startup and passed by reference to every
// component that needs it. Nothing reads these files through ambient paths.
type Store struct {
	root        string
	maxMessages int
	mu          sync.Mutex
}

// DefaultMaxMessages bounds how many trailing messages are cached per
// conversation.
const DefaultMaxMessages = 200

// NewStore creates a snapshot store rooted at the given directory.
func NewStore(root string) *Store {
	return &Store{root: root, maxMessages: DefaultMaxMessages}
}

func (s *Store) cacheDir() string {
	return filepath.Join(s.root, "cache")
}

func (s *Store) rateLimitPath() string {
	return filepath.Join(s.cacheDir(), "ratelimit.json")
}

func (s *Store) messagesPath(id types.ConversationID) string {
	return filepath.Join(s.cacheDir(), "messages-"+string(id)+".json")
}

// rateLimitSnapshot wraps the cached state with the time it was saved so
// loads can enforce a staleness bound.
type rateLimitSnapshot struct {
	State   types.RateLimitState `json:"state"`
	SavedAt time.Time            `json:"saved_at"`
}

// writeJSON marshals v and writes it atomically (temp file then rename).
func (s *Store) writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp snapshot: %w", err)
	}
	return nil
}

// SaveRateLimit persists the current quota state with a saved-at stamp.
func (s *Store) SaveRateLimit(st types.RateLimitState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := rateLimitSnapshot{State: st.Clamped(), SavedAt: time.Now()}
	return s.writeJSON(s.rateLimitPath(), snap)
}

// LoadRateLimit returns the cached quota state, or nil when there is no
// snapshot or it is older than maxAge.
func (s *Store) LoadRateLimit(maxAge time.Duration) (*types.RateLimitState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.rateLimitPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read rate limit snapshot: %w", err)
	}

	var snap rateLimitSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal rate limit snapshot: %w", err)
	}

	if time.Since(snap.SavedAt) > maxAge {
		return nil, nil
	}
	st := snap.State.Clamped()
	return &st, nil
}

// SaveMessages caches the trailing messages of a conversation, truncated to
// the store's bound.
func (s *Store) SaveMessages(id types.ConversationID, msgs []*types.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(msgs) > s.maxMessages {
		msgs = msgs[len(msgs)-s.maxMessages:]
	}
	return s.writeJSON(s.messagesPath(id), msgs)
}

// LoadMessages returns the cached message list for a conversation, or nil
// when nothing is cached.
func (s *Store) LoadMessages(id types.ConversationID) ([]*types.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.messagesPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read message snapshot: %w", err)
	}

	var msgs []*types.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("unmarshal message snapshot: %w", err)
	}
	return msgs, nil
}

// Reset removes every cached file. Called when authentication expires: no
// local session state may survive.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(s.cacheDir()); err != nil {
		return fmt.Errorf("remove cache dir: %w", err)
	}
	return nil
}
