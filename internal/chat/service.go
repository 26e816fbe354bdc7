package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"group-chat/internal/apperr"
	"group-chat/internal/bus"
	"group-chat/internal/filter"
	"group-chat/internal/group"
	"group-chat/internal/metrics"

	"github.com/google/uuid"
)

// Store is the message log contract.
type Store interface {
	AppendMessage(ctx context.Context, m *Message) error
	GetMessage(ctx context.Context, groupID, messageID string) (*Message, error)
	DeleteMessage(ctx context.Context, groupID, messageID string) error
	ListMessages(ctx context.Context, groupID string, limit int) ([]Message, error)
}

// Groups is what messaging needs from the group service.
type Groups interface {
	Get(ctx context.Context, groupID string) (*group.Group, error)
	IsMember(ctx context.Context, groupID string, userID int) (bool, error)
}

// Publisher fans mutation events out to all server instances and feeds
// the external push-notification consumer.
type Publisher interface {
	GroupUpdated(ctx context.Context, groupID string) error
	MessageSent(ctx context.Context, ev bus.MessageSent) error
}

type Service struct {
	store   Store
	groups  Groups
	pub     Publisher
	timeout time.Duration
}

func NewService(store Store, groups Groups, pub Publisher, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{
		store:   store,
		groups:  groups,
		pub:     pub,
		timeout: timeout,
	}
}

// SendMessage appends to the group's log. A blank body is a silent
// no-op, mirroring the send path's UI contract. The sender's display
// name is snapshotted into the message.
func (s *Service) SendMessage(ctx context.Context, groupID string, senderID int, senderName, body string) (*Message, error) {
	const op = "chat.SendMessage"

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	body = strings.TrimSpace(body)
	if body == "" {
		return nil, nil
	}

	member, err := s.groups.IsMember(ctx, groupID, senderID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !member {
		return nil, fmt.Errorf("%s: sender is not a member: %w", op, apperr.ErrPermission)
	}

	m := &Message{
		ID:         uuid.NewString(),
		GroupID:    groupID,
		SenderID:   senderID,
		SenderName: senderName,
		Body:       body,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.AppendMessage(ctx, m); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	metrics.MessagesSent.Inc()

	if err := s.pub.GroupUpdated(ctx, groupID); err != nil {
		slog.Warn("message fan-out publish failed", "group_id", groupID, "error", err)
	}
	if err := s.pub.MessageSent(ctx, bus.MessageSent{
		GroupID:    groupID,
		MessageID:  m.ID,
		SenderID:   senderID,
		SenderName: senderName,
		Body:       body,
		SentAt:     m.CreatedAt,
	}); err != nil {
		slog.Warn("notification event publish failed", "group_id", groupID, "error", err)
	}

	return m, nil
}

// DeleteMessage removes one message by its stable id. Only the sender
// may delete it; even the group creator cannot delete others' messages.
func (s *Service) DeleteMessage(ctx context.Context, groupID string, requesterID int, messageID string) error {
	const op = "chat.DeleteMessage"

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	m, err := s.store.GetMessage(ctx, groupID, messageID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if m.SenderID != requesterID {
		return fmt.Errorf("%s: only the sender may delete a message: %w", op, apperr.ErrPermission)
	}

	if err := s.store.DeleteMessage(ctx, groupID, messageID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.pub.GroupUpdated(ctx, groupID); err != nil {
		slog.Warn("delete fan-out publish failed", "group_id", groupID, "error", err)
	}
	return nil
}

// History returns the log in insertion order, members only.
func (s *Service) History(ctx context.Context, groupID string, requesterID, limit int) ([]Message, error) {
	const op = "chat.History"

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	member, err := s.groups.IsMember(ctx, groupID, requesterID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !member {
		return nil, fmt.Errorf("%s: not a member: %w", op, apperr.ErrPermission)
	}

	msgs, err := s.store.ListMessages(ctx, groupID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return msgs, nil
}

// Snapshot loads the full current state of a group for stream delivery.
func (s *Service) Snapshot(ctx context.Context, groupID string) (*Snapshot, error) {
	const op = "chat.Snapshot"

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	g, err := s.groups.Get(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	msgs, err := s.store.ListMessages(ctx, groupID, 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Snapshot{
		Kind:     SnapshotKindState,
		Group:    g,
		Messages: msgs,
	}, nil
}

// Render produces the display text of a message for one viewer. The
// sender's own messages are never censored; everyone else's pass
// through the viewer's hidden-word filter. The stored body is never
// modified.
func Render(m Message, viewerID int, hiddenWords []string) string {
	if m.SenderID == viewerID {
		return m.Body
	}
	return filter.Censor(m.Body, hiddenWords)
}

// RenderSnapshot copies a snapshot with every message body rendered for
// the given viewer.
func RenderSnapshot(snap *Snapshot, viewerID int, hiddenWords []string) *Snapshot {
	out := &Snapshot{
		Kind:  snap.Kind,
		Group: snap.Group,
	}
	if snap.Messages != nil {
		out.Messages = make([]Message, len(snap.Messages))
		for i, m := range snap.Messages {
			m.Body = Render(m, viewerID, hiddenWords)
			out.Messages[i] = m
		}
	}
	return out
}
