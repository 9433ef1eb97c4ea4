// Package quota tracks the user's message allowance. The server is the only
// authority; the tracker keeps an optimistic local mirror so the visible
// counter stays responsive between server refreshes.
package quota

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/user/draftsync/internal/state"
	"github.com/user/draftsync/internal/types"
)

// DefaultLimit is assumed when neither memory nor a fresh snapshot has a
// quota value. Deliberately permissive: the server enforces the real limit
// on the next send regardless.
const DefaultLimit = 10

// DefaultSnapshotMaxAge bounds how old a persisted snapshot may be before
// hydration ignores it.
const DefaultSnapshotMaxAge = time.Hour

// Tracker owns the in-memory quota state. Two writers exist: server truth
// (always wins) and the optimistic decrement applied after sends whose
// response carried no quota info.
type Tracker struct {
	mu         sync.Mutex
	st         *types.RateLimitState
	refreshing bool

	snapshots *state.Store
	maxAge    time.Duration
	limit     int
}

// New creates a Tracker backed by the given snapshot store.
func New(snapshots *state.Store) *Tracker {
	return &Tracker{
		snapshots: snapshots,
		maxAge:    DefaultSnapshotMaxAge,
		limit:     DefaultLimit,
	}
}

// SetDefaults overrides the conservative default limit and the snapshot
// staleness bound.
func (t *Tracker) SetDefaults(limit int, maxAge time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if limit > 0 {
		t.limit = limit
	}
	if maxAge > 0 {
		t.maxAge = maxAge
	}
}

// Check reports whether a send is currently allowed and returns the state
// behind that decision. With no in-memory state it hydrates from the
// persisted snapshot, then falls back to the default quota.
func (t *Tracker) Check() (bool, types.RateLimitState) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.st == nil {
		t.hydrate()
	}
	st := *t.st
	return st.Remaining > 0, st
}

// hydrate fills t.st from the snapshot store or the default. Caller holds
// the mutex.
func (t *Tracker) hydrate() {
	if t.snapshots != nil {
		cached, err := t.snapshots.LoadRateLimit(t.maxAge)
		if err != nil {
			slog.Warn("failed to load rate limit snapshot", "error", err)
		}
		if cached != nil {
			t.st = cached
			return
		}
	}
	t.st = &types.RateLimitState{Remaining: t.limit, Limit: t.limit}
}

// ApplyServerTruth overwrites the local state with the server's view and
// persists it. The server always wins over any optimistic value.
func (t *Tracker) ApplyServerTruth(st types.RateLimitState) {
	t.mu.Lock()
	defer t.mu.Unlock()

	clamped := st.Clamped()
	t.st = &clamped
	t.persist()
}

// OptimisticDecrement lowers the visible counter by one after a successful
// send whose response carried no quota field. It is best-effort: skipped
// while a server refresh is in flight, and never below zero.
func (t *Tracker) OptimisticDecrement() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.refreshing || t.st == nil {
		return
	}
	if t.st.Remaining > 0 {
		t.st.Remaining--
		t.persist()
	}
}

// beginRefresh / endRefresh bracket a server fetch so an optimistic
// decrement cannot race a pending authoritative value.
func (t *Tracker) beginRefresh() {
	t.mu.Lock()
	t.refreshing = true
	t.mu.Unlock()
}

func (t *Tracker) endRefresh() {
	t.mu.Lock()
	t.refreshing = false
	t.mu.Unlock()
}

// persist writes the snapshot best-effort. Caller holds the mutex.
func (t *Tracker) persist() {
	if t.snapshots == nil || t.st == nil {
		return
	}
	if err := t.snapshots.SaveRateLimit(*t.st); err != nil {
		slog.Warn("failed to persist rate limit snapshot", "error", err)
	}
}

// Notice synthesizes the quota-exceeded system message inserted into the
// transcript when a send is blocked. Exhaustion is a conversational event
// here, not an error.
func Notice(st types.RateLimitState, displayName, upgradeLink string) *types.Message {
	name := displayName
	if name == "" {
		name = "there"
	}

	content := fmt.Sprintf(
		"Hi %s, you've used all %d assistant messages for this period.",
		name, st.Limit,
	)
	if !st.ResetAt.IsZero() {
		content += fmt.Sprintf(" Your quota resets at %s.", st.ResetAt.Format("Jan 2, 15:04 MST"))
	}
	if upgradeLink != "" {
		content += fmt.Sprintf(" Upgrade for a higher limit: %s", upgradeLink)
	}

	return &types.Message{
		ID:        types.NewMessageID(),
		Role:      types.RoleSystem,
		Content:   content,
		Timestamp: time.Now(),
		Metadata: types.MessageMeta{
			Notice:      true,
			Limit:       st.Limit,
			ResetAt:     st.ResetAt,
			UpgradeLink: upgradeLink,
		},
	}
}
