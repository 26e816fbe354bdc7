package chat

import (
	"time"

	"group-chat/internal/group"
)

// Message is one entry in a group's append-only log. SenderName is a
// snapshot taken at send time and is never updated if the sender
// later renames.
type Message struct {
	ID         string    `json:"id"`
	GroupID    string    `json:"group_id"`
	SenderID   int       `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Body       string    `json:"message"`
	CreatedAt  time.Time `json:"timestamp"`
}

// Snapshot is the full current state delivered to stream subscribers
// after every mutation. Kind "deleted" is terminal: the group is gone
// and the stream will close.
type Snapshot struct {
	Kind     string       `json:"kind"` // "snapshot" or "deleted"
	Group    *group.Group `json:"group,omitempty"`
	Messages []Message    `json:"messages,omitempty"`
}

const (
	SnapshotKindState   = "snapshot"
	SnapshotKindDeleted = "deleted"
)

type sendRequest struct {
	Body string `json:"message"`
}
