// Package groups manages holding groups, the user-defined buckets that
// holdings are classified into for allocation reporting.
package groups

import "time"

// DefaultGroupName is the reserved group every user gets. It cannot be
// renamed or deleted, and absorbs holdings from deleted groups.
const DefaultGroupName = "Uncategorized"

// Group is a user-scoped classification bucket for holdings.
type Group struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"-"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsDefault   bool      `json:"isDefault"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
