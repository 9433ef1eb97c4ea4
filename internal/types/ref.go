// internal/types/ref.go
package types

// ConversationRef identifies a conversation either by a client-generated
// placeholder token (not yet created server-side) or by a server-issued id.
// Promotion from LocalRef to RemoteRef is a one-way, type-level transition.
type ConversationRef interface {
	// Key returns a stable string usable as a map or scheduler key.
	Key() string
	isRef()
}

// LocalRef is a placeholder for a conversation that has not been created on
// the server yet. The token is never sent over the wire.
type LocalRef struct {
	Token LocalToken
}

// RemoteRef is a server-issued conversation identifier.
type RemoteRef struct {
	ID ConversationID
}

// NewLocalRef returns a fresh placeholder ref.
func NewLocalRef() LocalRef {
	return LocalRef{Token: NewLocalToken()}
}

func (r LocalRef) Key() string { return "local-" + string(r.Token) }
func (r LocalRef) isRef()      {}

func (r RemoteRef) Key() string { return "conversation-" + string(r.ID) }
func (r RemoteRef) isRef()      {}
