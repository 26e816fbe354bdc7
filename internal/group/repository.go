package group

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"group-chat/internal/apperr"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateGroup writes the group row and its membership rows in one
// transaction. This is the authoritative write; per-user index entries
// are appended separately by the service.
func (r *Repository) CreateGroup(ctx context.Context, g *Group) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO groups (id, name, image_url, created_by, created_at) VALUES ($1, $2, $3, $4, $5)`,
		g.ID, g.Name, g.ImageURL, g.CreatedBy, g.CreatedAt)
	if err != nil {
		return err
	}

	for _, userID := range g.Members {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO group_members (group_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			g.ID, userID)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *Repository) GetGroup(ctx context.Context, id string) (*Group, error) {
	g := &Group{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, image_url, created_by, created_at FROM groups WHERE id = $1`, id).
		Scan(&g.ID, &g.Name, &g.ImageURL, &g.CreatedBy, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("group %s: %w", id, apperr.ErrNotFound)
		}
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM group_members WHERE group_id = $1 ORDER BY joined_at, user_id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var userID int
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		g.Members = append(g.Members, userID)
	}
	return g, rows.Err()
}

func (r *Repository) UpdateGroupInfo(ctx context.Context, id, name, imageURL string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE groups SET
            name = CASE WHEN $2 = '' THEN name ELSE $2 END,
            image_url = CASE WHEN $3 = '' THEN image_url ELSE $3 END
         WHERE id = $1`,
		id, name, imageURL)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("group %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// AddMembers unions the given users into the member set; users already
// present are skipped silently.
func (r *Repository) AddMembers(ctx context.Context, groupID string, userIDs []int) error {
	for _, userID := range userIDs {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO group_members (group_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			groupID, userID)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) RemoveMember(ctx context.Context, groupID string, userID int) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`, groupID, userID)
	return err
}

func (r *Repository) DeleteGroup(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("group %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

func (r *Repository) IsMember(ctx context.Context, groupID string, userID int) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2)`,
		groupID, userID).Scan(&exists)
	return exists, err
}

func (r *Repository) AddListEntry(ctx context.Context, userID int, e ListEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO group_list_entries (user_id, group_id, group_name, group_owner, created_at)
         VALUES ($1, $2, $3, $4, $5)
         ON CONFLICT (user_id, group_id) DO UPDATE SET group_name = EXCLUDED.group_name`,
		userID, e.GroupID, e.GroupName, e.GroupOwner, e.CreatedAt)
	return err
}

func (r *Repository) RemoveListEntry(ctx context.Context, userID int, groupID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM group_list_entries WHERE user_id = $1 AND group_id = $2`, userID, groupID)
	return err
}

func (r *Repository) ListEntries(ctx context.Context, userID int) ([]ListEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT group_id, group_name, group_owner, created_at
         FROM group_list_entries WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ListEntry
	for rows.Next() {
		var e ListEntry
		if err := rows.Scan(&e.GroupID, &e.GroupName, &e.GroupOwner, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RebuildIndex recomputes one user's denormalized index from the
// authoritative membership rows. This is the repair path for partial
// fan-out failures.
func (r *Repository) RebuildIndex(ctx context.Context, userID int) ([]ListEntry, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM group_list_entries WHERE user_id = $1`, userID); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO group_list_entries (user_id, group_id, group_name, group_owner, created_at)
         SELECT gm.user_id, g.id, g.name, g.created_by, g.created_at
         FROM group_members gm JOIN groups g ON g.id = gm.group_id
         WHERE gm.user_id = $1`, userID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return r.ListEntries(ctx, userID)
}
