package group

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"group-chat/internal/apperr"

	"github.com/google/uuid"
)

// Store is the membership store contract the service orchestrates.
type Store interface {
	CreateGroup(ctx context.Context, g *Group) error
	GetGroup(ctx context.Context, id string) (*Group, error)
	UpdateGroupInfo(ctx context.Context, id, name, imageURL string) error
	AddMembers(ctx context.Context, groupID string, userIDs []int) error
	RemoveMember(ctx context.Context, groupID string, userID int) error
	DeleteGroup(ctx context.Context, id string) error
	IsMember(ctx context.Context, groupID string, userID int) (bool, error)
	AddListEntry(ctx context.Context, userID int, e ListEntry) error
	RemoveListEntry(ctx context.Context, userID int, groupID string) error
	ListEntries(ctx context.Context, userID int) ([]ListEntry, error)
	RebuildIndex(ctx context.Context, userID int) ([]ListEntry, error)
}

// Profiles looks up a user's avatar; the creator's image is the default
// group image when none is supplied.
type Profiles interface {
	ProfileImage(ctx context.Context, userID int) (string, error)
}

// Publisher announces group changes to live subscribers on every
// instance.
type Publisher interface {
	GroupUpdated(ctx context.Context, groupID string) error
	GroupDeleted(ctx context.Context, groupID string) error
}

type Service struct {
	store    Store
	profiles Profiles
	pub      Publisher
	timeout  time.Duration
}

func NewService(store Store, profiles Profiles, pub Publisher, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{
		store:    store,
		profiles: profiles,
		pub:      pub,
		timeout:  timeout,
	}
}

// CreateGroup allocates the group id up front, writes the authoritative
// group+membership record, then fans out per-member index entries.
// Index failures are logged and never roll back the group itself.
func (s *Service) CreateGroup(ctx context.Context, creatorID int, name string, memberIDs []int, imageURL string) (string, error) {
	const op = "group.CreateGroup"

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%s: group name required: %w", op, apperr.ErrValidation)
	}

	members := []int{creatorID}
	seen := map[int]bool{creatorID: true}
	invitees := 0
	for _, id := range memberIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		members = append(members, id)
		invitees++
	}
	if invitees == 0 {
		return "", fmt.Errorf("%s: at least one other member required: %w", op, apperr.ErrValidation)
	}

	if imageURL == "" {
		img, err := s.profiles.ProfileImage(ctx, creatorID)
		if err != nil {
			slog.Warn("creator image lookup failed, creating group without image",
				"creator_id", creatorID, "error", err)
		} else {
			imageURL = img
		}
	}

	g := &Group{
		ID:        uuid.NewString(),
		Name:      name,
		ImageURL:  imageURL,
		CreatedBy: creatorID,
		Members:   members,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.store.CreateGroup(ctx, g); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	for _, userID := range members {
		s.appendListEntry(ctx, userID, g)
	}

	s.publishUpdated(ctx, g.ID)
	slog.Info("group created", "group_id", g.ID, "creator_id", creatorID, "members", len(members))
	return g.ID, nil
}

// AddMembers is creator-only. Users already in the group are skipped
// silently.
func (s *Service) AddMembers(ctx context.Context, groupID string, requesterID int, newMemberIDs []int) error {
	const op = "group.AddMembers"

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	g, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if requesterID != g.CreatedBy {
		return fmt.Errorf("%s: only the creator may add members: %w", op, apperr.ErrPermission)
	}

	var added []int
	seen := make(map[int]bool, len(newMemberIDs))
	for _, id := range newMemberIDs {
		if seen[id] || g.HasMember(id) {
			continue
		}
		seen[id] = true
		added = append(added, id)
	}
	if len(added) == 0 {
		return nil
	}

	if err := s.store.AddMembers(ctx, groupID, added); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	for _, userID := range added {
		s.appendListEntry(ctx, userID, g)
	}

	s.publishUpdated(ctx, groupID)
	slog.Info("members added", "group_id", groupID, "count", len(added))
	return nil
}

// RemoveMember covers both call patterns: the creator removing another
// member, and a member removing themselves. The creator cannot leave
// their own group; their exit path is DeleteGroup.
func (s *Service) RemoveMember(ctx context.Context, groupID string, requesterID, targetID int) error {
	const op = "group.RemoveMember"

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	g, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if targetID == g.CreatedBy {
		return fmt.Errorf("%s: the creator cannot be removed; delete the group instead: %w", op, apperr.ErrPermission)
	}
	creatorRemoval := requesterID == g.CreatedBy
	selfLeave := requesterID == targetID
	if !creatorRemoval && !selfLeave {
		return fmt.Errorf("%s: not the creator and not a self-removal: %w", op, apperr.ErrPermission)
	}
	if !g.HasMember(targetID) {
		return fmt.Errorf("%s: user %d is not a member: %w", op, targetID, apperr.ErrNotFound)
	}

	if err := s.store.RemoveMember(ctx, groupID, targetID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.store.RemoveListEntry(ctx, targetID, groupID); err != nil {
		slog.Warn("index entry removal failed; reconcile will repair it",
			"group_id", groupID, "user_id", targetID, "error", err)
	}

	s.publishUpdated(ctx, groupID)
	slog.Info("member removed", "group_id", groupID, "user_id", targetID, "by", requesterID)
	return nil
}

// LeaveGroup is self-removal routed through its own endpoint.
func (s *Service) LeaveGroup(ctx context.Context, groupID string, requesterID int) error {
	return s.RemoveMember(ctx, groupID, requesterID, requesterID)
}

// DeleteGroup is creator-only. Index entries are cleaned up before the
// group row is deleted: a crash mid-way leaves a reachable group with
// missing index entries, never index entries pointing at nothing.
func (s *Service) DeleteGroup(ctx context.Context, groupID string, requesterID int) error {
	const op = "group.DeleteGroup"

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	g, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if requesterID != g.CreatedBy {
		return fmt.Errorf("%s: only the creator may delete the group: %w", op, apperr.ErrPermission)
	}

	for _, userID := range g.Members {
		if err := s.store.RemoveListEntry(ctx, userID, groupID); err != nil {
			slog.Warn("index cleanup failed during group delete",
				"group_id", groupID, "user_id", userID, "error", err)
		}
	}

	if err := s.store.DeleteGroup(ctx, groupID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.pub.GroupDeleted(ctx, groupID); err != nil {
		slog.Warn("delete event publish failed", "group_id", groupID, "error", err)
	}
	slog.Info("group deleted", "group_id", groupID, "by", requesterID)
	return nil
}

// UpdateGroup changes the name and/or image; empty fields keep their
// current value. Creator-only.
func (s *Service) UpdateGroup(ctx context.Context, groupID string, requesterID int, name, imageURL string) error {
	const op = "group.UpdateGroup"

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	g, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if requesterID != g.CreatedBy {
		return fmt.Errorf("%s: only the creator may edit the group: %w", op, apperr.ErrPermission)
	}
	name = strings.TrimSpace(name)
	imageURL = strings.TrimSpace(imageURL)
	if name == "" && imageURL == "" {
		return fmt.Errorf("%s: nothing to update: %w", op, apperr.ErrValidation)
	}

	if err := s.store.UpdateGroupInfo(ctx, groupID, name, imageURL); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if name != "" {
		// Keep the denormalized names in step; failures repair later.
		for _, userID := range g.Members {
			s.appendListEntry(ctx, userID, &Group{
				ID: g.ID, Name: name, CreatedBy: g.CreatedBy, CreatedAt: g.CreatedAt,
			})
		}
	}

	s.publishUpdated(ctx, groupID)
	return nil
}

// GetGroup returns the group to one of its members.
func (s *Service) GetGroup(ctx context.Context, groupID string, requesterID int) (*Group, error) {
	const op = "group.GetGroup"

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	g, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !g.HasMember(requesterID) {
		return nil, fmt.Errorf("%s: not a member: %w", op, apperr.ErrPermission)
	}
	return g, nil
}

// Get returns the group without a membership check. It backs snapshot
// fan-out, where the hub already knows the subscriber is a member.
func (s *Service) Get(ctx context.Context, groupID string) (*Group, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.store.GetGroup(ctx, groupID)
}

func (s *Service) IsMember(ctx context.Context, groupID string, userID int) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.store.IsMember(ctx, groupID, userID)
}

func (s *Service) ListUserGroups(ctx context.Context, userID int) ([]ListEntry, error) {
	const op = "group.ListUserGroups"

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	entries, err := s.store.ListEntries(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return entries, nil
}

// ReconcileUserGroups rebuilds one user's index from the authoritative
// membership rows.
func (s *Service) ReconcileUserGroups(ctx context.Context, userID int) ([]ListEntry, error) {
	const op = "group.ReconcileUserGroups"

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	entries, err := s.store.RebuildIndex(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	slog.Info("group index rebuilt", "user_id", userID, "entries", len(entries))
	return entries, nil
}

func (s *Service) appendListEntry(ctx context.Context, userID int, g *Group) {
	err := s.store.AddListEntry(ctx, userID, ListEntry{
		GroupID:    g.ID,
		GroupName:  g.Name,
		GroupOwner: g.CreatedBy,
		CreatedAt:  g.CreatedAt,
	})
	if err != nil {
		slog.Warn("index entry write failed; reconcile will repair it",
			"group_id", g.ID, "user_id", userID, "error", err)
	}
}

func (s *Service) publishUpdated(ctx context.Context, groupID string) {
	if err := s.pub.GroupUpdated(ctx, groupID); err != nil {
		slog.Warn("update event publish failed", "group_id", groupID, "error", err)
	}
}
