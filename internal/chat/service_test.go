package chat

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"group-chat/internal/apperr"
	"group-chat/internal/bus"
	"group-chat/internal/group"
)

type fakeMsgStore struct {
	logs map[string][]Message
}

func newFakeMsgStore() *fakeMsgStore {
	return &fakeMsgStore{logs: make(map[string][]Message)}
}

func (f *fakeMsgStore) AppendMessage(_ context.Context, m *Message) error {
	f.logs[m.GroupID] = append(f.logs[m.GroupID], *m)
	return nil
}

func (f *fakeMsgStore) GetMessage(_ context.Context, groupID, messageID string) (*Message, error) {
	for _, m := range f.logs[groupID] {
		if m.ID == messageID {
			cp := m
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("message %s: %w", messageID, apperr.ErrNotFound)
}

func (f *fakeMsgStore) DeleteMessage(_ context.Context, groupID, messageID string) error {
	log := f.logs[groupID]
	for i, m := range log {
		if m.ID == messageID {
			f.logs[groupID] = append(log[:i:i], log[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("message %s: %w", messageID, apperr.ErrNotFound)
}

func (f *fakeMsgStore) ListMessages(_ context.Context, groupID string, _ int) ([]Message, error) {
	return append([]Message(nil), f.logs[groupID]...), nil
}

type fakeGroups struct {
	groups map[string]*group.Group
}

func (f *fakeGroups) Get(_ context.Context, groupID string) (*group.Group, error) {
	g, ok := f.groups[groupID]
	if !ok {
		return nil, fmt.Errorf("group %s: %w", groupID, apperr.ErrNotFound)
	}
	return g, nil
}

func (f *fakeGroups) IsMember(_ context.Context, groupID string, userID int) (bool, error) {
	g, ok := f.groups[groupID]
	if !ok {
		return false, nil
	}
	return g.HasMember(userID), nil
}

type fakeChatPublisher struct {
	updated []string
	sent    []bus.MessageSent
}

func (f *fakeChatPublisher) GroupUpdated(_ context.Context, groupID string) error {
	f.updated = append(f.updated, groupID)
	return nil
}

func (f *fakeChatPublisher) MessageSent(_ context.Context, ev bus.MessageSent) error {
	f.sent = append(f.sent, ev)
	return nil
}

func newChatTestService() (*Service, *fakeMsgStore, *fakeChatPublisher) {
	store := newFakeMsgStore()
	groups := &fakeGroups{groups: map[string]*group.Group{
		"g1": {ID: "g1", Name: "Road Trip", CreatedBy: 1, Members: []int{1, 2, 3}},
	}}
	pub := &fakeChatPublisher{}
	return NewService(store, groups, pub, time.Second), store, pub
}

func TestSendMessage(t *testing.T) {
	svc, store, pub := newChatTestService()
	ctx := context.Background()

	m, err := svc.SendMessage(ctx, "g1", 2, "Bea", "hello")
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if m.ID == "" {
		t.Error("message must get a stable id")
	}
	if m.SenderName != "Bea" {
		t.Errorf("sender name snapshot: got %q", m.SenderName)
	}

	log := store.logs["g1"]
	if len(log) != 1 || log[0].Body != "hello" || log[0].SenderID != 2 {
		t.Errorf("unexpected log state: %+v", log)
	}

	if len(pub.updated) != 1 {
		t.Errorf("expected one fan-out event, got %v", pub.updated)
	}
	if len(pub.sent) != 1 || pub.sent[0].MessageID != m.ID {
		t.Errorf("expected one notification event, got %+v", pub.sent)
	}
}

func TestSendMessageBlankBodyIsNoop(t *testing.T) {
	svc, store, pub := newChatTestService()

	for _, body := range []string{"", "   ", "\n\t"} {
		m, err := svc.SendMessage(context.Background(), "g1", 2, "Bea", body)
		if err != nil {
			t.Errorf("blank body %q must not error: %v", body, err)
		}
		if m != nil {
			t.Errorf("blank body %q must not produce a message", body)
		}
	}
	if len(store.logs["g1"]) != 0 {
		t.Error("nothing should have been appended")
	}
	if len(pub.updated) != 0 {
		t.Error("no events should have been published")
	}
}

func TestSendMessageNonMember(t *testing.T) {
	svc, _, _ := newChatTestService()

	_, err := svc.SendMessage(context.Background(), "g1", 9, "Eve", "hi")
	if !errors.Is(err, apperr.ErrPermission) {
		t.Errorf("expected ErrPermission, got %v", err)
	}
}

func TestSendMessageAppendOnly(t *testing.T) {
	svc, store, _ := newChatTestService()
	ctx := context.Background()

	first, _ := svc.SendMessage(ctx, "g1", 1, "Abe", "one")
	svc.SendMessage(ctx, "g1", 2, "Bea", "two")
	svc.SendMessage(ctx, "g1", 3, "Cal", "three")

	log := store.logs["g1"]
	if len(log) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(log))
	}
	if log[0].ID != first.ID {
		t.Error("earlier messages must keep their position")
	}
	for i, want := range []string{"one", "two", "three"} {
		if log[i].Body != want {
			t.Errorf("position %d: got %q, want %q", i, log[i].Body, want)
		}
	}
}

func TestDeleteMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("sender deletes own message", func(t *testing.T) {
		svc, store, _ := newChatTestService()
		m, _ := svc.SendMessage(ctx, "g1", 2, "Bea", "oops")
		svc.SendMessage(ctx, "g1", 2, "Bea", "keep this")

		if err := svc.DeleteMessage(ctx, "g1", 2, m.ID); err != nil {
			t.Fatalf("DeleteMessage failed: %v", err)
		}
		log := store.logs["g1"]
		if len(log) != 1 || log[0].Body != "keep this" {
			t.Errorf("exactly the targeted message should be gone, log: %+v", log)
		}
	})

	t.Run("others cannot delete, not even the creator", func(t *testing.T) {
		svc, _, _ := newChatTestService()
		m, _ := svc.SendMessage(ctx, "g1", 2, "Bea", "mine")

		for _, requester := range []int{1, 3} {
			err := svc.DeleteMessage(ctx, "g1", requester, m.ID)
			if !errors.Is(err, apperr.ErrPermission) {
				t.Errorf("requester %d: expected ErrPermission, got %v", requester, err)
			}
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		svc, _, _ := newChatTestService()
		err := svc.DeleteMessage(ctx, "g1", 2, "no-such-id")
		if !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

// Two identical bodies from different senders stay distinct entries,
// and deleting one sender's copy leaves the other's intact.
func TestIdenticalBodiesStayDistinct(t *testing.T) {
	svc, store, _ := newChatTestService()
	ctx := context.Background()

	m2, _ := svc.SendMessage(ctx, "g1", 2, "Bea", "hey all")
	m3, _ := svc.SendMessage(ctx, "g1", 3, "Cal", "hey all")

	if len(store.logs["g1"]) != 2 {
		t.Fatal("identical bodies must not be deduplicated")
	}
	if m2.ID == m3.ID {
		t.Fatal("messages must have distinct ids")
	}

	if err := svc.DeleteMessage(ctx, "g1", 2, m2.ID); err != nil {
		t.Fatalf("DeleteMessage failed: %v", err)
	}
	log := store.logs["g1"]
	if len(log) != 1 || log[0].SenderID != 3 {
		t.Errorf("user 3's copy must survive, log: %+v", log)
	}
}

func TestHistory(t *testing.T) {
	svc, _, _ := newChatTestService()
	ctx := context.Background()
	svc.SendMessage(ctx, "g1", 1, "Abe", "hi")

	msgs, err := svc.History(ctx, "g1", 2, 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(msgs) != 1 {
		t.Errorf("expected 1 message, got %d", len(msgs))
	}

	if _, err := svc.History(ctx, "g1", 9, 0); !errors.Is(err, apperr.ErrPermission) {
		t.Errorf("outsider history should fail, got %v", err)
	}
}

func TestRenderNeverCensorsSelf(t *testing.T) {
	m := Message{SenderID: 2, Body: "this is spam honestly"}
	hidden := []string{"spam", "honestly", "this"}

	if got := Render(m, 2, hidden); got != m.Body {
		t.Errorf("sender's own view must be uncensored, got %q", got)
	}
	if got := Render(m, 3, hidden); got == m.Body {
		t.Error("another viewer with hidden words should see a redacted body")
	}
}

func TestRenderSnapshotPerViewer(t *testing.T) {
	snap := &Snapshot{
		Kind:  SnapshotKindState,
		Group: &group.Group{ID: "g1", Members: []int{1, 2}},
		Messages: []Message{
			{ID: "a", SenderID: 1, Body: "spam from me"},
			{ID: "b", SenderID: 2, Body: "spam from you"},
		},
	}

	rendered := RenderSnapshot(snap, 1, []string{"spam"})
	if rendered.Messages[0].Body != "spam from me" {
		t.Errorf("own message censored: %q", rendered.Messages[0].Body)
	}
	if rendered.Messages[1].Body != "**** from you" {
		t.Errorf("other's message not censored: %q", rendered.Messages[1].Body)
	}

	// The source snapshot is untouched.
	if snap.Messages[1].Body != "spam from you" {
		t.Error("RenderSnapshot must not mutate its input")
	}
}

func TestSnapshotLoadsGroupAndLog(t *testing.T) {
	svc, _, _ := newChatTestService()
	ctx := context.Background()
	svc.SendMessage(ctx, "g1", 1, "Abe", "hello")

	snap, err := svc.Snapshot(ctx, "g1")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snap.Kind != SnapshotKindState {
		t.Errorf("kind: %q", snap.Kind)
	}
	if snap.Group == nil || snap.Group.ID != "g1" {
		t.Errorf("group missing from snapshot: %+v", snap.Group)
	}
	if len(snap.Messages) != 1 || snap.Messages[0].Body != "hello" {
		t.Errorf("log missing from snapshot: %+v", snap.Messages)
	}
}
