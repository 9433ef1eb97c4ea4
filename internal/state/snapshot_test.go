package state

import (
	"testing"
	"time"

	"github.com/user/draftsync/internal/types"
)

func TestRateLimitRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())

	st := types.RateLimitState{Remaining: 3, Limit: 10, ResetAt: time.Now().Add(time.Hour).UTC()}
	if err := store.SaveRateLimit(st); err != nil {
		t.Fatal(err)
	}

	got, err := store.LoadRateLimit(time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected snapshot, got nil")
	}
	if got.Remaining != 3 || got.Limit != 10 {
		t.Errorf("unexpected state %+v", got)
	}
}

func TestRateLimitMissingReturnsNil(t *testing.T) {
	store := NewStore(t.TempDir())

	got, err := store.LoadRateLimit(time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestRateLimitStalenessBound(t *testing.T) {
	store := NewStore(t.TempDir())

	if err := store.SaveRateLimit(types.RateLimitState{Remaining: 5, Limit: 10}); err != nil {
		t.Fatal(err)
	}

	// A zero max age makes any snapshot stale.
	got, err := store.LoadRateLimit(0)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("expected stale snapshot to be discarded, got %+v", got)
	}
}

func TestSaveClampsState(t *testing.T) {
	store := NewStore(t.TempDir())

	if err := store.SaveRateLimit(types.RateLimitState{Remaining: 99, Limit: 10}); err != nil {
		t.Fatal(err)
	}
	got, err := store.LoadRateLimit(time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if got.Remaining != 10 {
		t.Errorf("expected clamped remaining 10, got %d", got.Remaining)
	}
}

func TestMessagesRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())
	id := types.ConversationID("conv-1")

	msgs := []*types.Message{
		{ID: types.NewMessageID(), Role: types.RoleUser, Content: "hi", Timestamp: time.Now().UTC()},
		{ID: types.NewMessageID(), Role: types.RoleAssistant, Content: "hello", Timestamp: time.Now().UTC()},
	}
	if err := store.SaveMessages(id, msgs); err != nil {
		t.Fatal(err)
	}

	got, err := store.LoadMessages(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	if got[0].Content != "hi" || got[1].Role != types.RoleAssistant {
		t.Errorf("unexpected messages %+v", got)
	}
}

func TestMessagesBounded(t *testing.T) {
	store := NewStore(t.TempDir())
	store.maxMessages = 3
	id := types.ConversationID("conv-1")

	var msgs []*types.Message
	for i := 0; i < 10; i++ {
		msgs = append(msgs, &types.Message{ID: types.NewMessageID(), Role: types.RoleUser, Content: "m"})
	}
	msgs[9].Content = "last"

	if err := store.SaveMessages(id, msgs); err != nil {
		t.Fatal(err)
	}
	got, err := store.LoadMessages(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 cached messages, got %d", len(got))
	}
	if got[2].Content != "last" {
		t.Errorf("expected trailing messages kept, got %+v", got[2])
	}
}

func TestResetWipesEverything(t *testing.T) {
	store := NewStore(t.TempDir())
	id := types.ConversationID("conv-1")

	if err := store.SaveRateLimit(types.RateLimitState{Remaining: 1, Limit: 10}); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveMessages(id, []*types.Message{{Content: "x"}}); err != nil {
		t.Fatal(err)
	}

	if err := store.Reset(); err != nil {
		t.Fatal(err)
	}

	rl, err := store.LoadRateLimit(time.Hour)
	if err != nil || rl != nil {
		t.Errorf("expected empty rate limit after reset, got %+v err %v", rl, err)
	}
	msgs, err := store.LoadMessages(id)
	if err != nil || msgs != nil {
		t.Errorf("expected no messages after reset, got %v err %v", msgs, err)
	}
}
