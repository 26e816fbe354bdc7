package chat

import (
	"context"
	"encoding/json"
	"log/slog"

	"group-chat/internal/bus"
	"group-chat/internal/metrics"
)

// Snapshots loads the current full state of a group; the Service
// satisfies it, tests inject a fake.
type Snapshots interface {
	Snapshot(ctx context.Context, groupID string) (*Snapshot, error)
}

// Hub owns one room per group and fans fresh snapshots out to every
// subscriber of a mutated group. Events arrive over the bus from any
// server instance; the hub loads the latest state itself, so delivery
// is always the newest full document even when events coalesce.
type Hub struct {
	rooms map[string]map[*Client]bool

	Register   chan *Client
	Unregister chan *Client
	Events     chan bus.Event

	snapshots Snapshots
}

func NewHub(snapshots Snapshots) *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Events:     make(chan bus.Event),
		snapshots:  snapshots,
	}
}

// Run drives the hub until ctx is cancelled. All room state is owned by
// this single goroutine; no locking needed.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for _, room := range h.rooms {
				for client := range room {
					close(client.Send)
				}
			}
			h.rooms = make(map[string]map[*Client]bool)
			return

		case client := <-h.Register:
			room := h.rooms[client.GroupID]
			if room == nil {
				room = make(map[*Client]bool)
				h.rooms[client.GroupID] = room
			}
			room[client] = true
			metrics.LiveSubscribers.Inc()

			// Backfill: the subscriber gets the current state right away.
			h.sendSnapshot(ctx, client.GroupID, map[*Client]bool{client: true})

		case client := <-h.Unregister:
			if room, ok := h.rooms[client.GroupID]; ok {
				if _, ok := room[client]; ok {
					delete(room, client)
					close(client.Send)
					metrics.LiveSubscribers.Dec()
				}
				if len(room) == 0 {
					delete(h.rooms, client.GroupID)
				}
			}

		case ev := <-h.Events:
			room := h.rooms[ev.GroupID]
			if len(room) == 0 {
				continue
			}
			if ev.Kind == bus.KindDeleted {
				h.closeRoom(ev.GroupID, room)
				continue
			}
			h.sendSnapshot(ctx, ev.GroupID, room)
		}
	}
}

// sendSnapshot loads the group's latest state once and delivers it to
// each target, rendered per viewer. Clients that cannot keep up are
// dropped rather than allowed to block the hub.
func (h *Hub) sendSnapshot(ctx context.Context, groupID string, targets map[*Client]bool) {
	snap, err := h.snapshots.Snapshot(ctx, groupID)
	if err != nil {
		slog.Error("snapshot load failed", "group_id", groupID, "error", err)
		return
	}

	for client := range targets {
		rendered := RenderSnapshot(snap, client.UserID, client.HiddenWords)
		payload, err := json.Marshal(rendered)
		if err != nil {
			slog.Error("snapshot marshal failed", "group_id", groupID, "error", err)
			return
		}

		select {
		case client.Send <- payload:
		default:
			h.drop(client)
		}
	}
}

// closeRoom tells every subscriber the group is gone, then releases
// their server-side resources.
func (h *Hub) closeRoom(groupID string, room map[*Client]bool) {
	payload, _ := json.Marshal(Snapshot{Kind: SnapshotKindDeleted})
	for client := range room {
		select {
		case client.Send <- payload:
		default:
		}
		close(client.Send)
		metrics.LiveSubscribers.Dec()
	}
	delete(h.rooms, groupID)
}

func (h *Hub) drop(client *Client) {
	if room, ok := h.rooms[client.GroupID]; ok {
		if _, ok := room[client]; ok {
			delete(room, client)
			close(client.Send)
			metrics.LiveSubscribers.Dec()
		}
		if len(room) == 0 {
			delete(h.rooms, client.GroupID)
		}
	}
}
