// internal/types/models.go
package types

import (
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type Conversation struct {
	ID           ConversationID `json:"id"`
	Mode         string         `json:"mode"`
	Title        string         `json:"title"`
	MessageCount int            `json:"message_count"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	Starred      bool           `json:"starred"`
	Pinned       bool           `json:"pinned"`
	Archived     bool           `json:"archived"`
	Deleted      bool           `json:"deleted"`
}

// MessageMeta carries enrichment attached after a message is created.
// A message's role and content are immutable; metadata is not.
type MessageMeta struct {
	Tokens      int       `json:"tokens,omitempty"`
	Limit       int       `json:"limit,omitempty"`
	ResetAt     time.Time `json:"reset_at,omitzero"`
	UpgradeLink string    `json:"upgrade_link,omitempty"`
	Notice      bool      `json:"notice,omitempty"`
}

type Message struct {
	ID        MessageID   `json:"id"`
	Role      Role        `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
	Metadata  MessageMeta `json:"metadata,omitempty"`
}

// RateLimitState mirrors the server's quota view of the current user.
type RateLimitState struct {
	Remaining int       `json:"remaining"`
	Limit     int       `json:"limit"`
	ResetAt   time.Time `json:"reset_at"`
}

// Clamped returns the state with Remaining forced into [0, Limit].
func (s RateLimitState) Clamped() RateLimitState {
	if s.Limit < 0 {
		s.Limit = 0
	}
	if s.Remaining < 0 {
		s.Remaining = 0
	}
	if s.Remaining > s.Limit {
		s.Remaining = s.Limit
	}
	return s
}
