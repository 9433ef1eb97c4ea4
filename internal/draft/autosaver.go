// Package draft debounces editor mutations into document saves. Every edit
// replaces the previous unsaved body for the same document; only the latest
// body is ever sent.
package draft

import (
	"context"
	"time"

	"github.com/user/draftsync/internal/debounce"
	"github.com/user/draftsync/pkg/backend"
)

// DefaultDelay is how long a document save waits for further edits.
const DefaultDelay = 1500 * time.Millisecond

// AutoSaver feeds document edits through the debounce scheduler into the
// backend's draft endpoint.
type AutoSaver struct {
	svc   backend.Service
	sched *debounce.Scheduler
	delay time.Duration
}

// NewAutoSaver creates an AutoSaver using the given scheduler.
func NewAutoSaver(svc backend.Service, sched *debounce.Scheduler, delay time.Duration) *AutoSaver {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &AutoSaver{svc: svc, sched: sched, delay: delay}
}

// Update records a new document body. The save happens after the debounce
// delay, and is skipped entirely when the body matches the last saved one.
func (a *AutoSaver) Update(documentID string, body []byte) {
	a.sched.Schedule(key(documentID), string(body), func(ctx context.Context, payload any) error {
		return a.svc.SaveDraft(ctx, documentID, []byte(payload.(string)))
	}, a.delay)
}

// Discard drops any pending save for the document without flushing. Used
// when the editor surface for the document is torn down.
func (a *AutoSaver) Discard(documentID string) {
	a.sched.Cancel(key(documentID))
}

func key(documentID string) string {
	return "document-" + documentID
}
