package conversation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/user/draftsync/internal/types"
	"github.com/user/draftsync/pkg/backend"
)

// fakeService records lifecycle calls. Methods not implemented here panic
// via the embedded interface, which would indicate a test bug.
type fakeService struct {
	backend.Service

	created   int
	flagCalls []string
	titles    []string
	deleted   []types.ConversationID
	restored  []types.ConversationID
	purged    []types.ConversationID
	listing   []*types.Conversation
	err       error
}

func (f *fakeService) CreateConversation(_ context.Context, mode string) (*types.Conversation, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created++
	now := time.Now()
	return &types.Conversation{
		ID:        types.ConversationID(fmt.Sprintf("conv-%d", f.created)),
		Mode:      mode,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (f *fakeService) ListConversations(_ context.Context, _ backend.ListFilter, _, _ int) ([]*types.Conversation, error) {
	return f.listing, f.err
}

func (f *fakeService) SetFlag(_ context.Context, id types.ConversationID, flag backend.Flag, value bool) error {
	if f.err != nil {
		return f.err
	}
	f.flagCalls = append(f.flagCalls, fmt.Sprintf("%s:%s=%t", id, flag, value))
	return nil
}

func (f *fakeService) UpdateTitle(_ context.Context, _ types.ConversationID, title string) error {
	if f.err != nil {
		return f.err
	}
	f.titles = append(f.titles, title)
	return nil
}

func (f *fakeService) Delete(_ context.Context, id types.ConversationID) error {
	f.deleted = append(f.deleted, id)
	return f.err
}

func (f *fakeService) Restore(_ context.Context, id types.ConversationID) error {
	f.restored = append(f.restored, id)
	return f.err
}

func (f *fakeService) Purge(_ context.Context, id types.ConversationID) error {
	f.purged = append(f.purged, id)
	return f.err
}

func track(m *Manager, id string, update func(*types.Conversation)) *types.Conversation {
	conv := &types.Conversation{ID: types.ConversationID(id), UpdatedAt: time.Now()}
	if update != nil {
		update(conv)
	}
	m.Track(conv)
	return conv
}

func TestEnsureCreatesNothingServerSide(t *testing.T) {
	svc := &fakeService{}
	m := NewManager(svc)

	ref := m.Ensure("resume")
	if ref.Token == "" {
		t.Fatal("expected placeholder token")
	}
	if svc.created != 0 {
		t.Errorf("expected no server create, got %d", svc.created)
	}
}

func TestPromoteIsIdempotent(t *testing.T) {
	m := NewManager(&fakeService{})
	local := m.Ensure("resume")

	conv := &types.Conversation{ID: "conv-1", Mode: "resume"}
	first := m.Promote(local, conv)
	second := m.Promote(local, &types.Conversation{ID: "conv-other"})

	if first.ID != "conv-1" {
		t.Errorf("unexpected first promotion %v", first)
	}
	if second.ID != "conv-1" {
		t.Errorf("promotion must be idempotent, got %v", second)
	}
	if _, ok := m.Get("conv-1"); !ok {
		t.Error("promoted conversation should be indexed")
	}
	if _, ok := m.Get("conv-other"); ok {
		t.Error("second promotion must not index anything")
	}
}

func TestForceCreatePromotes(t *testing.T) {
	svc := &fakeService{}
	m := NewManager(svc)
	local := m.Ensure("cover-letter")

	remote, err := m.ForceCreate(context.Background(), local)
	if err != nil {
		t.Fatal(err)
	}
	if svc.created != 1 {
		t.Errorf("expected 1 server create, got %d", svc.created)
	}

	// Forcing again must not create a second conversation.
	again, err := m.ForceCreate(context.Background(), local)
	if err != nil {
		t.Fatal(err)
	}
	if svc.created != 1 {
		t.Errorf("expected still 1 server create, got %d", svc.created)
	}
	if again.ID != remote.ID {
		t.Errorf("expected same id, got %v and %v", remote, again)
	}
}

func TestSetFlagMirrorsLocally(t *testing.T) {
	svc := &fakeService{}
	m := NewManager(svc)
	track(m, "conv-1", nil)

	if err := m.SetFlag(context.Background(), "conv-1", backend.FlagStarred, true); err != nil {
		t.Fatal(err)
	}
	conv, _ := m.Get("conv-1")
	if !conv.Starred {
		t.Error("expected starred flag set")
	}
	if len(svc.flagCalls) != 1 || svc.flagCalls[0] != "conv-1:starred=true" {
		t.Errorf("unexpected calls %v", svc.flagCalls)
	}
}

func TestFlagsAreIndependent(t *testing.T) {
	svc := &fakeService{}
	m := NewManager(svc)
	track(m, "conv-1", nil)
	ctx := context.Background()

	_ = m.SetFlag(ctx, "conv-1", backend.FlagStarred, true)
	_ = m.SetFlag(ctx, "conv-1", backend.FlagPinned, true)
	_ = m.SetFlag(ctx, "conv-1", backend.FlagArchived, true)
	_ = m.SetFlag(ctx, "conv-1", backend.FlagStarred, false)

	conv, _ := m.Get("conv-1")
	if conv.Starred || !conv.Pinned || !conv.Archived {
		t.Errorf("unexpected flags %+v", conv)
	}
}

func TestSetFlagServerErrorLeavesLocalUntouched(t *testing.T) {
	svc := &fakeService{err: errors.New("boom")}
	m := NewManager(svc)
	track(m, "conv-1", nil)

	if err := m.SetFlag(context.Background(), "conv-1", backend.FlagPinned, true); err == nil {
		t.Fatal("expected error")
	}
	conv, _ := m.Get("conv-1")
	if conv.Pinned {
		t.Error("flag must not be mirrored when the server call fails")
	}
}

func TestUpdateTitleRejectsEmpty(t *testing.T) {
	svc := &fakeService{}
	m := NewManager(svc)
	track(m, "conv-1", nil)

	err := m.UpdateTitle(context.Background(), "conv-1", "   \t ")
	var verr *types.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(svc.titles) != 0 {
		t.Error("empty title must never reach the network")
	}
}

func TestUpdateTitleTrims(t *testing.T) {
	svc := &fakeService{}
	m := NewManager(svc)
	track(m, "conv-1", nil)

	if err := m.UpdateTitle(context.Background(), "conv-1", "  My resume  "); err != nil {
		t.Fatal(err)
	}
	if len(svc.titles) != 1 || svc.titles[0] != "My resume" {
		t.Errorf("unexpected titles %v", svc.titles)
	}
	conv, _ := m.Get("conv-1")
	if conv.Title != "My resume" {
		t.Errorf("unexpected local title %q", conv.Title)
	}
}

func TestSoftDeleteAndRestore(t *testing.T) {
	svc := &fakeService{}
	m := NewManager(svc)
	track(m, "conv-1", nil)
	ctx := context.Background()

	if err := m.SoftDelete(ctx, "conv-1"); err != nil {
		t.Fatal(err)
	}
	if got := m.List(backend.FilterActive); len(got) != 0 {
		t.Errorf("deleted conversation must not appear in active list: %v", got)
	}
	if got := m.List(backend.FilterDeleted); len(got) != 1 {
		t.Errorf("deleted conversation must appear in trash: %v", got)
	}

	if err := m.Restore(ctx, "conv-1"); err != nil {
		t.Fatal(err)
	}
	if got := m.List(backend.FilterActive); len(got) != 1 {
		t.Errorf("restored conversation must be active again: %v", got)
	}
}

func TestPurgeRemovesFromAllViews(t *testing.T) {
	svc := &fakeService{}
	m := NewManager(svc)
	track(m, "conv-1", func(c *types.Conversation) { c.Deleted = true })

	if err := m.Purge(context.Background(), "conv-1"); err != nil {
		t.Fatal(err)
	}
	if _, ok := m.Get("conv-1"); ok {
		t.Error("purged conversation still indexed")
	}
	if got := m.List(backend.FilterDeleted); len(got) != 0 {
		t.Errorf("purged conversation still in trash: %v", got)
	}
	if len(svc.purged) != 1 {
		t.Errorf("expected 1 purge call, got %d", len(svc.purged))
	}
}

func TestListOrdering(t *testing.T) {
	m := NewManager(&fakeService{})
	base := time.Now()

	track(m, "old", func(c *types.Conversation) { c.UpdatedAt = base.Add(-2 * time.Hour) })
	track(m, "new", func(c *types.Conversation) { c.UpdatedAt = base })
	track(m, "pinned-old", func(c *types.Conversation) {
		c.Pinned = true
		c.UpdatedAt = base.Add(-3 * time.Hour)
	})
	track(m, "pinned-new", func(c *types.Conversation) {
		c.Pinned = true
		c.UpdatedAt = base.Add(-1 * time.Hour)
	})

	got := m.List(backend.FilterActive)
	want := []types.ConversationID{"pinned-new", "pinned-old", "new", "old"}
	if len(got) != len(want) {
		t.Fatalf("expected %d conversations, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, got[i].ID)
		}
	}
}

func TestRefreshIndexesServerList(t *testing.T) {
	svc := &fakeService{listing: []*types.Conversation{
		{ID: "conv-1", Title: "A"},
		{ID: "conv-2", Title: "B"},
	}}
	m := NewManager(svc)

	list, err := m.Refresh(context.Background(), backend.FilterActive, 20, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(list))
	}
	if _, ok := m.Get("conv-2"); !ok {
		t.Error("expected refreshed conversations to be indexed")
	}
}
