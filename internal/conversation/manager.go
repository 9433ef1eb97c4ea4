// Package conversation owns the local view of conversation lifecycle:
// placeholder creation, promotion to server ids, flag toggles, soft delete,
// and ordering. Server calls go through the backend service; the manager
// keeps the in-memory index consistent with what the server confirmed.
package conversation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/user/draftsync/internal/types"
	"github.com/user/draftsync/pkg/backend"
)

// Manager indexes known conversations and drives lifecycle transitions.
// A conversation has at most one in-memory representation; once a local
// placeholder is promoted its token is retired for good.
type Manager struct {
	mu      sync.Mutex
	svc     backend.Service
	byID    map[types.ConversationID]*types.Conversation
	locals  map[types.LocalToken]string // mode per unpromoted placeholder
	retired map[types.LocalToken]types.ConversationID
}

// NewManager creates an empty Manager talking to the given backend.
func NewManager(svc backend.Service) *Manager {
	return &Manager{
		svc:     svc,
		byID:    make(map[types.ConversationID]*types.Conversation),
		locals:  make(map[types.LocalToken]string),
		retired: make(map[types.LocalToken]types.ConversationID),
	}
}

// Ensure returns a local placeholder ref for a new conversation. No server
// call happens here: empty conversations are never created server-side.
// The first successful send creates the real conversation and Promote is
// called with the returned id.
func (m *Manager) Ensure(mode string) types.LocalRef {
	m.mu.Lock()
	defer m.mu.Unlock()

	ref := types.NewLocalRef()
	m.locals[ref.Token] = mode
	return ref
}

// ForceCreate creates the conversation server-side immediately and promotes
// the placeholder. Only used when a caller needs the id before any message
// exists (e.g. sharing a link to an empty conversation).
func (m *Manager) ForceCreate(ctx context.Context, local types.LocalRef) (types.RemoteRef, error) {
	m.mu.Lock()
	mode, ok := m.locals[local.Token]
	m.mu.Unlock()
	if !ok {
		if id, promoted := m.promotedID(local.Token); promoted {
			return types.RemoteRef{ID: id}, nil
		}
		return types.RemoteRef{}, fmt.Errorf("unknown placeholder %s", local.Token)
	}

	conv, err := m.svc.CreateConversation(ctx, mode)
	if err != nil {
		return types.RemoteRef{}, fmt.Errorf("create conversation: %w", err)
	}
	return m.Promote(local, conv), nil
}

// Promote retires a local placeholder in favor of the server-issued
// conversation. Idempotent: promoting an already-promoted placeholder
// returns the ref it was promoted to the first time.
func (m *Manager) Promote(local types.LocalRef, conv *types.Conversation) types.RemoteRef {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.retired[local.Token]; ok {
		return types.RemoteRef{ID: id}
	}

	if mode, ok := m.locals[local.Token]; ok && conv.Mode == "" {
		conv.Mode = mode
	}
	delete(m.locals, local.Token)
	m.retired[local.Token] = conv.ID
	m.index(conv)
	return types.RemoteRef{ID: conv.ID}
}

// promotedID reports whether the token was already promoted.
func (m *Manager) promotedID(token types.LocalToken) (types.ConversationID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.retired[token]
	return id, ok
}

// index inserts or replaces a conversation. Caller holds the mutex.
func (m *Manager) index(conv *types.Conversation) {
	m.byID[conv.ID] = conv
}

// Track indexes a server-confirmed conversation (from a listing or fetch).
func (m *Manager) Track(conv *types.Conversation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.index(conv)
}

// Get returns the indexed conversation, if known.
func (m *Manager) Get(id types.ConversationID) (*types.Conversation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.byID[id]
	return conv, ok
}

// Refresh fetches a page of conversations from the server and indexes them.
func (m *Manager) Refresh(ctx context.Context, filter backend.ListFilter, limit, offset int) ([]*types.Conversation, error) {
	list, err := m.svc.ListConversations(ctx, filter, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	m.mu.Lock()
	for _, conv := range list {
		m.index(conv)
	}
	m.mu.Unlock()
	return list, nil
}

// SetFlag toggles starred, pinned, or archived server-side and mirrors the
// change locally.
func (m *Manager) SetFlag(ctx context.Context, id types.ConversationID, flag backend.Flag, value bool) error {
	if err := m.svc.SetFlag(ctx, id, flag, value); err != nil {
		return fmt.Errorf("set %s: %w", flag, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.byID[id]
	if !ok {
		return nil
	}
	switch flag {
	case backend.FlagStarred:
		conv.Starred = value
	case backend.FlagPinned:
		conv.Pinned = value
	case backend.FlagArchived:
		conv.Archived = value
	}
	conv.UpdatedAt = time.Now()
	return nil
}

// UpdateTitle renames a conversation. An empty title after trimming is a
// validation failure and never reaches the network.
func (m *Manager) UpdateTitle(ctx context.Context, id types.ConversationID, title string) error {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return &types.ValidationError{Field: "title", Reason: "must not be empty"}
	}

	if err := m.svc.UpdateTitle(ctx, id, trimmed); err != nil {
		return fmt.Errorf("update title: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if conv, ok := m.byID[id]; ok {
		conv.Title = trimmed
		conv.UpdatedAt = time.Now()
	}
	return nil
}

// SoftDelete flags the conversation deleted. It stays indexed so a trash
// view can still list it.
func (m *Manager) SoftDelete(ctx context.Context, id types.ConversationID) error {
	if err := m.svc.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if conv, ok := m.byID[id]; ok {
		conv.Deleted = true
		conv.UpdatedAt = time.Now()
	}
	return nil
}

// Restore reverses a soft delete.
func (m *Manager) Restore(ctx context.Context, id types.ConversationID) error {
	if err := m.svc.Restore(ctx, id); err != nil {
		return fmt.Errorf("restore conversation: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if conv, ok := m.byID[id]; ok {
		conv.Deleted = false
		conv.UpdatedAt = time.Now()
	}
	return nil
}

// Purge permanently deletes the conversation and removes it from the index.
// Irreversible.
func (m *Manager) Purge(ctx context.Context, id types.ConversationID) error {
	if err := m.svc.Purge(ctx, id); err != nil {
		return fmt.Errorf("purge conversation: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
	return nil
}

// List returns indexed conversations matching the filter, pinned first,
// then most recently updated. Deleted conversations only appear under
// FilterDeleted.
func (m *Manager) List(filter backend.ListFilter) []*types.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*types.Conversation
	for _, conv := range m.byID {
		if !matches(conv, filter) {
			continue
		}
		out = append(out, conv)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Pinned != out[j].Pinned {
			return out[i].Pinned
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

func matches(conv *types.Conversation, filter backend.ListFilter) bool {
	switch filter {
	case backend.FilterDeleted:
		return conv.Deleted
	case backend.FilterArchived:
		return conv.Archived && !conv.Deleted
	case backend.FilterStarred:
		return conv.Starred && !conv.Deleted
	case backend.FilterPinned:
		return conv.Pinned && !conv.Deleted
	default:
		return !conv.Deleted && !conv.Archived
	}
}
