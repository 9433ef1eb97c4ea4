package draft

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/user/draftsync/internal/debounce"
	"github.com/user/draftsync/pkg/backend"
)

type recordingService struct {
	backend.Service

	mu    sync.Mutex
	saves map[string][]string
}

func (r *recordingService) SaveDraft(_ context.Context, documentID string, body []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saves == nil {
		r.saves = make(map[string][]string)
	}
	r.saves[documentID] = append(r.saves[documentID], string(body))
	return nil
}

func (r *recordingService) saved(documentID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.saves[documentID]...)
}

func newSaver(t *testing.T) (*AutoSaver, *recordingService) {
	t.Helper()
	svc := &recordingService{}
	sched := debounce.New(2)
	sched.Start(context.Background())
	t.Cleanup(sched.Stop)
	return NewAutoSaver(svc, sched, 20*time.Millisecond), svc
}

func TestBurstOfEditsSavesOnce(t *testing.T) {
	saver, svc := newSaver(t)

	for _, body := range []string{`{"v":1}`, `{"v":2}`, `{"v":3}`} {
		saver.Update("doc-1", []byte(body))
	}

	time.Sleep(200 * time.Millisecond)

	got := svc.saved("doc-1")
	if len(got) != 1 {
		t.Fatalf("expected 1 save, got %d: %v", len(got), got)
	}
	if got[0] != `{"v":3}` {
		t.Errorf("expected latest body, got %s", got[0])
	}
}

func TestUnchangedBodyNotResaved(t *testing.T) {
	saver, svc := newSaver(t)

	saver.Update("doc-1", []byte(`{"v":1}`))
	time.Sleep(120 * time.Millisecond)
	saver.Update("doc-1", []byte(`{"v":1}`))
	time.Sleep(120 * time.Millisecond)

	if got := svc.saved("doc-1"); len(got) != 1 {
		t.Errorf("expected 1 save for identical body, got %d", len(got))
	}
}

func TestDocumentsSaveIndependently(t *testing.T) {
	saver, svc := newSaver(t)

	saver.Update("doc-1", []byte(`{"a":1}`))
	saver.Update("doc-2", []byte(`{"b":2}`))

	time.Sleep(200 * time.Millisecond)

	if len(svc.saved("doc-1")) != 1 || len(svc.saved("doc-2")) != 1 {
		t.Errorf("expected one save per document, got %v", svc.saves)
	}
}

func TestDiscardDropsPendingSave(t *testing.T) {
	saver, svc := newSaver(t)

	saver.Update("doc-1", []byte(`{"v":1}`))
	saver.Discard("doc-1")

	time.Sleep(200 * time.Millisecond)

	if got := svc.saved("doc-1"); len(got) != 0 {
		t.Errorf("expected no saves after discard, got %v", got)
	}
}
