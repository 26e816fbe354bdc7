package group

import "time"

// Group is the authoritative record for one chat group. Members always
// contains CreatedBy while the group exists.
type Group struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedBy int       `json:"created_by"`
	Members   []int     `json:"members"`
	CreatedAt time.Time `json:"created_at"`
}

func (g *Group) HasMember(userID int) bool {
	for _, id := range g.Members {
		if id == userID {
			return true
		}
	}
	return false
}

// ListEntry is the denormalized per-user pointer to a group, so "list my
// groups" never scans all groups. Entries are maintained saga-style:
// the membership rows are authoritative, entries may briefly lag.
type ListEntry struct {
	GroupID    string    `json:"group_id"`
	GroupName  string    `json:"group_name"`
	GroupOwner int       `json:"group_owner"`
	CreatedAt  time.Time `json:"timestamp"`
}
