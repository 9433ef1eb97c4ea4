// internal/types/ids.go
package types

import (
	"github.com/google/uuid"
)

type ConversationID string
type MessageID string
type LocalToken string

func NewMessageID() MessageID {
	return MessageID(uuid.New().String())
}

func NewLocalToken() LocalToken {
	return LocalToken(uuid.New().String())
}
