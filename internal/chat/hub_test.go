package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"group-chat/internal/apperr"
	"group-chat/internal/bus"
	"group-chat/internal/group"
)

type fakeSnapshots struct {
	snaps map[string]*Snapshot
}

func (f *fakeSnapshots) Snapshot(_ context.Context, groupID string) (*Snapshot, error) {
	snap, ok := f.snaps[groupID]
	if !ok {
		return nil, fmt.Errorf("group %s: %w", groupID, apperr.ErrNotFound)
	}
	return snap, nil
}

func receiveSnapshot(t *testing.T, c *Client) *Snapshot {
	t.Helper()
	select {
	case payload, ok := <-c.Send:
		if !ok {
			t.Fatal("send channel closed unexpectedly")
		}
		var snap Snapshot
		if err := json.Unmarshal(payload, &snap); err != nil {
			t.Fatalf("bad payload: %v", err)
		}
		return &snap
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func TestHubFanOut(t *testing.T) {
	snaps := &fakeSnapshots{snaps: map[string]*Snapshot{
		"g1": {
			Kind:  SnapshotKindState,
			Group: &group.Group{ID: "g1", Members: []int{1, 2}},
			Messages: []Message{
				{ID: "a", SenderID: 1, Body: "pure spam"},
			},
		},
	}}
	hub := NewHub(snaps)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	sender := &Client{Hub: hub, Send: make(chan []byte, 8), UserID: 1, GroupID: "g1"}
	viewer := &Client{Hub: hub, Send: make(chan []byte, 8), UserID: 2, GroupID: "g1", HiddenWords: []string{"spam"}}

	hub.Register <- sender
	hub.Register <- viewer

	// Both get a backfill snapshot on registration.
	if snap := receiveSnapshot(t, sender); snap.Messages[0].Body != "pure spam" {
		t.Errorf("sender sees own body uncensored, got %q", snap.Messages[0].Body)
	}
	if snap := receiveSnapshot(t, viewer); snap.Messages[0].Body != "pure ****" {
		t.Errorf("viewer should get a censored body, got %q", snap.Messages[0].Body)
	}

	// A mutation event fans out to every subscriber of the group.
	hub.Events <- bus.Event{Kind: bus.KindUpdated, GroupID: "g1"}
	receiveSnapshot(t, sender)
	if snap := receiveSnapshot(t, viewer); snap.Kind != SnapshotKindState {
		t.Errorf("unexpected kind %q", snap.Kind)
	}
}

func TestHubDeletedClosesRoom(t *testing.T) {
	snaps := &fakeSnapshots{snaps: map[string]*Snapshot{
		"g1": {Kind: SnapshotKindState, Group: &group.Group{ID: "g1"}},
	}}
	hub := NewHub(snaps)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := &Client{Hub: hub, Send: make(chan []byte, 8), UserID: 1, GroupID: "g1"}
	hub.Register <- client
	receiveSnapshot(t, client)

	hub.Events <- bus.Event{Kind: bus.KindDeleted, GroupID: "g1"}

	if snap := receiveSnapshot(t, client); snap.Kind != SnapshotKindDeleted {
		t.Errorf("expected terminal deleted snapshot, got %q", snap.Kind)
	}
	select {
	case _, ok := <-client.Send:
		if ok {
			t.Error("send channel should be closed after group deletion")
		}
	case <-time.After(time.Second):
		t.Error("send channel was not closed")
	}
}

func TestHubEventForEmptyRoomIsIgnored(t *testing.T) {
	hub := NewHub(&fakeSnapshots{snaps: map[string]*Snapshot{
		"g1": {Kind: SnapshotKindState, Group: &group.Group{ID: "g1"}},
	}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	// No subscribers for g9; the event must not wedge the hub.
	hub.Events <- bus.Event{Kind: bus.KindUpdated, GroupID: "g9"}

	client := &Client{Hub: hub, Send: make(chan []byte, 8), UserID: 1, GroupID: "g1"}
	hub.Register <- client

	select {
	case <-client.Send:
		// Backfill arrived; the hub is still serving.
	case <-time.After(time.Second):
		t.Fatal("hub stopped processing after an event for an empty room")
	}
}
