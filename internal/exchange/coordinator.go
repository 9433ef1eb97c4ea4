// Package exchange orchestrates a single chat send: quota gate, optimistic
// append, network call, and reconciliation of the outcome back into local
// state. One coordinator serves one visible conversation surface.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/user/draftsync/internal/conversation"
	"github.com/user/draftsync/internal/debounce"
	"github.com/user/draftsync/internal/quota"
	"github.com/user/draftsync/internal/state"
	"github.com/user/draftsync/internal/types"
	"github.com/user/draftsync/pkg/backend"
)

// defaultSaveDelay is how long the transcript cache save is debounced after
// a message lands.
const defaultSaveDelay = 1500 * time.Millisecond

// Coordinator runs the per-send state machine. At most one send is in
// flight at a time; a second Send while one is running fails with
// ErrSendInFlight (the UI is expected to disable input instead of queuing).
type Coordinator struct {
	svc        backend.Service
	quota      *quota.Tracker
	convs      *conversation.Manager
	saver      *debounce.Scheduler
	snapshots  *state.Store
	transcript *Transcript
	tokenizer  *tiktoken.Tiktoken

	displayName string
	upgradeLink string

	onAuthExpired func()
	saveDelay     time.Duration

	mu       sync.Mutex
	inFlight bool
	ref      types.ConversationRef
	mode     string
}

// New creates a Coordinator wired to the given collaborators.
func New(
	svc backend.Service,
	tracker *quota.Tracker,
	convs *conversation.Manager,
	saver *debounce.Scheduler,
	snapshots *state.Store,
	displayName string,
) (*Coordinator, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("get tokenizer: %w", err)
	}

	return &Coordinator{
		svc:         svc,
		quota:       tracker,
		convs:       convs,
		saver:       saver,
		snapshots:   snapshots,
		transcript:  NewTranscript(),
		tokenizer:   enc,
		displayName: displayName,
		saveDelay:   defaultSaveDelay,
	}, nil
}

// SetSaveDelay overrides how long transcript cache saves are debounced.
func (c *Coordinator) SetSaveDelay(d time.Duration) {
	if d > 0 {
		c.saveDelay = d
	}
}

// SetUpgradeLink sets the fallback upgrade link for locally synthesized
// quota notices (server-supplied links take precedence).
func (c *Coordinator) SetUpgradeLink(link string) {
	c.upgradeLink = link
}

// SetOnAuthExpired sets the callback fired when the backend rejects our
// credentials. The callback must wipe whatever session state exists.
func (c *Coordinator) SetOnAuthExpired(fn func()) {
	c.onAuthExpired = fn
}

// Start begins a fresh conversation in the given mode. Nothing is created
// server-side until the first message is actually sent.
func (c *Coordinator) Start(mode string) {
	c.mode = mode
	c.ref = c.convs.Ensure(mode)
	c.transcript = NewTranscript()
}

// Resume attaches the coordinator to an existing conversation, hydrating
// the transcript from the local cache first and from the server if the
// cache is empty.
func (c *Coordinator) Resume(ctx context.Context, id types.ConversationID, mode string) error {
	c.mode = mode
	c.ref = types.RemoteRef{ID: id}
	c.transcript = NewTranscript()

	if cached, err := c.snapshots.LoadMessages(id); err == nil && len(cached) > 0 {
		c.transcript.Hydrate(cached)
		return nil
	}

	msgs, err := c.svc.Messages(ctx, id)
	if err != nil {
		return fmt.Errorf("fetch messages: %w", err)
	}
	c.transcript.Hydrate(msgs)
	return nil
}

// Ref returns the conversation reference the coordinator is bound to.
func (c *Coordinator) Ref() types.ConversationRef {
	return c.ref
}

// Transcript returns the live transcript.
func (c *Coordinator) Transcript() *Transcript {
	return c.transcript
}

// Send runs one full exchange and returns the message that concluded it:
// the assistant's reply, or a synthesized quota notice. A nil message with
// a non-nil error means the optimistic append was rolled back.
func (c *Coordinator) Send(ctx context.Context, content string) (*types.Message, error) {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return nil, types.ErrSendInFlight
	}
	c.inFlight = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, &types.ValidationError{Field: "message", Reason: "must not be empty"}
	}
	if c.ref == nil {
		return nil, fmt.Errorf("no conversation started")
	}

	// Quota gate. Exhaustion becomes a transcript notice, not an error,
	// and no network call happens.
	allowed, st := c.quota.Check()
	if !allowed {
		notice := quota.Notice(st, c.displayName, c.upgradeLink)
		c.transcript.Append(notice)
		c.scheduleSave()
		slog.Info("send blocked by quota", "remaining", st.Remaining, "limit", st.Limit)
		return notice, nil
	}

	// Optimistic append: the user's message is visible before the network
	// call resolves.
	snap := c.transcript.Snapshot()
	userMsg := &types.Message{
		ID:        types.NewMessageID(),
		Role:      types.RoleUser,
		Content:   trimmed,
		Timestamp: time.Now(),
		Metadata:  types.MessageMeta{Tokens: c.countTokens(trimmed)},
	}
	c.transcript.Append(userMsg)

	req := backend.SendRequest{
		Content:    trimmed,
		Mode:       c.mode,
		ClientTime: userMsg.Timestamp,
	}
	if remote, ok := c.ref.(types.RemoteRef); ok {
		req.ConversationID = remote.ID
	}

	result, err := c.svc.Send(ctx, req)
	if err != nil {
		// Any transport or server failure rolls the optimistic append back;
		// the transcript must never show a message the server may not have.
		c.transcript.Restore(snap)
		if errors.Is(err, types.ErrAuthExpired) {
			slog.Warn("authentication expired, clearing session state")
			if c.onAuthExpired != nil {
				c.onAuthExpired()
			}
			return nil, err
		}
		slog.Error("send failed", "error", err)
		return nil, err
	}

	switch r := result.(type) {
	case *backend.SendSuccess:
		return c.applySuccess(r)
	case *backend.SendRateLimited:
		return c.applyRateLimited(r), nil
	default:
		c.transcript.Restore(snap)
		return nil, fmt.Errorf("unexpected send result %T", result)
	}
}

// applySuccess appends the assistant reply, promotes the conversation ref
// if this was the first message, and reconciles quota state.
func (c *Coordinator) applySuccess(r *backend.SendSuccess) (*types.Message, error) {
	reply := &types.Message{
		ID:        r.MessageID,
		Role:      types.RoleAssistant,
		Content:   r.Content,
		Timestamp: r.Timestamp,
		Metadata:  types.MessageMeta{Tokens: r.TokensUsed},
	}
	if reply.ID == "" {
		reply.ID = types.NewMessageID()
	}
	if reply.Timestamp.IsZero() {
		reply.Timestamp = time.Now()
	}
	if reply.Metadata.Tokens == 0 {
		reply.Metadata.Tokens = c.countTokens(r.Content)
	}
	c.transcript.Append(reply)

	if local, ok := c.ref.(types.LocalRef); ok {
		now := time.Now()
		c.ref = c.convs.Promote(local, &types.Conversation{
			ID:           r.ConversationID,
			Mode:         c.mode,
			MessageCount: c.transcript.Len(),
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}

	// The server's quota field wins when present; otherwise keep the
	// visible counter responsive with a local decrement.
	if r.RateLimit != nil {
		c.quota.ApplyServerTruth(*r.RateLimit)
	} else {
		c.quota.OptimisticDecrement()
	}

	c.scheduleSave()
	return reply, nil
}

// applyRateLimited keeps the user's optimistic message (the attempt
// happened) and appends the quota notice as the next message.
func (c *Coordinator) applyRateLimited(r *backend.SendRateLimited) *types.Message {
	st := types.RateLimitState{
		Remaining: r.Remaining,
		Limit:     r.Limit,
		ResetAt:   r.ResetAt,
	}
	c.quota.ApplyServerTruth(st)

	link := r.UpgradeLink
	if link == "" {
		link = c.upgradeLink
	}
	notice := quota.Notice(st.Clamped(), c.displayName, link)
	c.transcript.Append(notice)
	c.scheduleSave()
	slog.Info("send rate limited", "limit", r.Limit, "reset_at", r.ResetAt)
	return notice
}

// scheduleSave debounces persisting the transcript cache for the current
// conversation. Placeholder conversations are cached too, under the ref
// key, so a reload before promotion still shows the draft transcript.
func (c *Coordinator) scheduleSave() {
	if c.saver == nil || c.snapshots == nil || c.ref == nil {
		return
	}

	key := c.ref.Key()
	var id types.ConversationID
	if remote, ok := c.ref.(types.RemoteRef); ok {
		id = remote.ID
	} else {
		id = types.ConversationID(c.ref.Key())
	}

	msgs := c.transcript.Messages()
	c.saver.Schedule(key, msgs, func(_ context.Context, payload any) error {
		cached, ok := payload.([]*types.Message)
		if !ok {
			return fmt.Errorf("unexpected payload type %T", payload)
		}
		return c.snapshots.SaveMessages(id, cached)
	}, c.saveDelay)
}

func (c *Coordinator) countTokens(text string) int {
	return len(c.tokenizer.Encode(text, nil, nil))
}
