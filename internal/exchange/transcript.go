// internal/exchange/transcript.go
package exchange

import (
	"sync"

	"github.com/user/draftsync/internal/types"
)

// Transcript is the ordered, in-memory message list of one conversation.
// Messages are value-copied on snapshot so a rollback restores the exact
// pre-send content, metadata included.
type Transcript struct {
	mu   sync.Mutex
	msgs []types.Message
}

func NewTranscript() *Transcript {
	return &Transcript{}
}

// Hydrate replaces the transcript with a cached message list.
func (t *Transcript) Hydrate(msgs []*types.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.msgs = t.msgs[:0]
	for _, m := range msgs {
		t.msgs = append(t.msgs, *m)
	}
}

// Append adds a message to the end of the transcript.
func (t *Transcript) Append(msg *types.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.msgs = append(t.msgs, *msg)
}

// Messages returns a copy of the transcript.
func (t *Transcript) Messages() []*types.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*types.Message, len(t.msgs))
	for i := range t.msgs {
		m := t.msgs[i]
		out[i] = &m
	}
	return out
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.msgs)
}

// Snapshot captures the current state for a possible rollback.
func (t *Transcript) Snapshot() []types.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap := make([]types.Message, len(t.msgs))
	copy(snap, t.msgs)
	return snap
}

// Restore resets the transcript to a snapshot.
func (t *Transcript) Restore(snap []types.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.msgs = make([]types.Message, len(snap))
	copy(t.msgs, snap)
}
