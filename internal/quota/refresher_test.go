package quota

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/user/draftsync/internal/state"
	"github.com/user/draftsync/internal/types"
	"github.com/user/draftsync/pkg/backend"
)

// stubService implements only RateLimit; the embedded interface panics on
// anything else, which would indicate a test bug.
type stubService struct {
	backend.Service
	st    *types.RateLimitState
	err   error
	calls atomic.Int32
}

func (s *stubService) RateLimit(_ context.Context) (*types.RateLimitState, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.st, nil
}

func TestRefresherAppliesServerTruth(t *testing.T) {
	tr := New(state.NewStore(t.TempDir()))
	svc := &stubService{st: &types.RateLimitState{Remaining: 6, Limit: 10}}

	r := NewRefresher(tr, svc, "@every 1h")
	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	defer r.Stop()

	deadline := time.After(2 * time.Second)
	for svc.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for initial refresh")
		case <-time.After(10 * time.Millisecond):
		}
	}

	// Give ApplyServerTruth a moment after the fetch.
	time.Sleep(50 * time.Millisecond)
	_, st := tr.Check()
	if st.Remaining != 6 {
		t.Errorf("expected refreshed remaining 6, got %d", st.Remaining)
	}
}

func TestRefresherKeepsStateOnError(t *testing.T) {
	tr := New(state.NewStore(t.TempDir()))
	tr.ApplyServerTruth(types.RateLimitState{Remaining: 3, Limit: 10})
	svc := &stubService{err: errors.New("unreachable")}

	r := NewRefresher(tr, svc, "@every 1h")
	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	defer r.Stop()

	deadline := time.After(2 * time.Second)
	for svc.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for refresh attempt")
		case <-time.After(10 * time.Millisecond):
		}
	}
	time.Sleep(50 * time.Millisecond)

	_, st := tr.Check()
	if st.Remaining != 3 {
		t.Errorf("expected state untouched on error, got %d", st.Remaining)
	}
}

func TestRefresherRejectsBadSpec(t *testing.T) {
	tr := New(state.NewStore(t.TempDir()))
	r := NewRefresher(tr, &stubService{}, "not a cron spec")
	if err := r.Start(); err == nil {
		r.Stop()
		t.Fatal("expected error for invalid cron spec")
	}
}
