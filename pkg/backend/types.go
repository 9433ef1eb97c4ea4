// Package backend defines the client-side view of the assistant backend:
// request/response types, the tagged send result, and the Service interface
// implemented by the HTTP client.
package backend

import (
	"context"
	"time"

	"github.com/user/draftsync/internal/types"
)

// SendRequest is a single outbound chat message.
type SendRequest struct {
	Content        string
	Mode           string
	ConversationID types.ConversationID // empty when the conversation does not exist yet
	ClientTime     time.Time
}

// SendResult is the tagged outcome of a send: *SendSuccess or
// *SendRateLimited. Anything else is an error.
type SendResult interface {
	sendResult()
}

// SendSuccess is the assistant's reply.
type SendSuccess struct {
	Content        string
	ConversationID types.ConversationID
	MessageID      types.MessageID
	TokensUsed     int
	UserTier       string
	RateLimit      *types.RateLimitState // nil when the server omitted quota info
	Timestamp      time.Time
}

// SendRateLimited is the decoded quota-exceeded response. It is an expected
// outcome, not an error: the caller turns it into a transcript notice.
type SendRateLimited struct {
	Remaining   int
	Limit       int
	ResetAt     time.Time
	UpgradeLink string
}

func (*SendSuccess) sendResult()     {}
func (*SendRateLimited) sendResult() {}

// ListFilter selects which conversations a listing returns.
type ListFilter string

const (
	FilterActive   ListFilter = "active"
	FilterArchived ListFilter = "archived"
	FilterDeleted  ListFilter = "deleted"
	FilterStarred  ListFilter = "starred"
	FilterPinned   ListFilter = "pinned"
)

// Flag names a toggleable conversation attribute.
type Flag string

const (
	FlagStarred  Flag = "starred"
	FlagPinned   Flag = "pinned"
	FlagArchived Flag = "archived"
)

// Config holds connection settings for a backend client.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Service is the assistant backend surface the sync engine talks to.
type Service interface {
	Send(ctx context.Context, req SendRequest) (SendResult, error)

	CreateConversation(ctx context.Context, mode string) (*types.Conversation, error)
	ListConversations(ctx context.Context, filter ListFilter, limit, offset int) ([]*types.Conversation, error)
	Messages(ctx context.Context, id types.ConversationID) ([]*types.Message, error)
	ClearMessages(ctx context.Context, id types.ConversationID) error
	Delete(ctx context.Context, id types.ConversationID) error
	Restore(ctx context.Context, id types.ConversationID) error
	Purge(ctx context.Context, id types.ConversationID) error
	SetFlag(ctx context.Context, id types.ConversationID, flag Flag, value bool) error
	UpdateTitle(ctx context.Context, id types.ConversationID, title string) error

	SaveDraft(ctx context.Context, documentID string, body []byte) error
	RateLimit(ctx context.Context) (*types.RateLimitState, error)
}
