package groups

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrNameTaken is returned when creating or renaming a group to a name the
// user already uses.
var ErrNameTaken = fmt.Errorf("group name already in use")

// Repository handles holding group persistence.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new group repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "groups").Logger(),
	}
}

// Create inserts a group for the user.
func (r *Repository) Create(userID, name, description string) (*Group, error) {
	now := time.Now().UTC()

	res, err := r.db.Exec(`
		INSERT INTO holding_groups (user_id, name, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, userID, name, description, now.Unix(), now.Unix())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrNameTaken
		}
		return nil, fmt.Errorf("failed to create group: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get group id: %w", err)
	}

	return &Group{
		ID:          id,
		UserID:      userID,
		Name:        name,
		Description: description,
		IsDefault:   name == DefaultGroupName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// GetByID returns the user's group with the given ID, or nil if it does not
// exist or belongs to someone else.
func (r *Repository) GetByID(id int64, userID string) (*Group, error) {
	row := r.db.QueryRow(`
		SELECT id, user_id, name, description, created_at, updated_at
		FROM holding_groups WHERE id = ? AND user_id = ?
	`, id, userID)
	return scanGroup(row)
}

// GetByName returns the user's group with the given name, or nil.
func (r *Repository) GetByName(userID, name string) (*Group, error) {
	row := r.db.QueryRow(`
		SELECT id, user_id, name, description, created_at, updated_at
		FROM holding_groups WHERE user_id = ? AND name = ?
	`, userID, name)
	return scanGroup(row)
}

// ListByUser returns all of the user's groups ordered by name.
func (r *Repository) ListByUser(userID string) ([]Group, error) {
	rows, err := r.db.Query(`
		SELECT id, user_id, name, description, created_at, updated_at
		FROM holding_groups WHERE user_id = ? ORDER BY name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	result := []Group{}
	for rows.Next() {
		g, err := scanGroupRows(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *g)
	}
	return result, rows.Err()
}

// Update renames a group and updates its description.
func (r *Repository) Update(id int64, userID, name, description string) error {
	_, err := r.db.Exec(`
		UPDATE holding_groups SET name = ?, description = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`, name, description, time.Now().Unix(), id, userID)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrNameTaken
	}
	return err
}

// DeleteAndReassign removes a group and moves its holdings to targetGroupID
// in a single transaction.
func (r *Repository) DeleteAndReassign(id int64, userID string, targetGroupID int64) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("UPDATE holdings SET group_id = ? WHERE group_id = ?", targetGroupID, id); err != nil {
		return fmt.Errorf("failed to reassign holdings: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM holding_groups WHERE id = ? AND user_id = ?", id, userID); err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}

	return tx.Commit()
}

func scanGroup(row *sql.Row) (*Group, error) {
	var g Group
	var createdAt, updatedAt int64
	var description sql.NullString
	err := row.Scan(&g.ID, &g.UserID, &g.Name, &description, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	g.Description = description.String
	g.IsDefault = g.Name == DefaultGroupName
	g.CreatedAt = time.Unix(createdAt, 0).UTC()
	g.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &g, nil
}

func scanGroupRows(rows *sql.Rows) (*Group, error) {
	var g Group
	var createdAt, updatedAt int64
	var description sql.NullString
	if err := rows.Scan(&g.ID, &g.UserID, &g.Name, &description, &createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan group: %w", err)
	}
	g.Description = description.String
	g.IsDefault = g.Name == DefaultGroupName
	g.CreatedAt = time.Unix(createdAt, 0).UTC()
	g.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &g, nil
}
