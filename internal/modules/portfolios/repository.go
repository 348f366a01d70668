package portfolios

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/folioapp/folio/internal/modules/holdings"
)

// Repository handles portfolio persistence.
type Repository struct {
	db       *sql.DB
	holdings *holdings.Repository
	log      zerolog.Logger
}

// NewRepository creates a new portfolio repository
func NewRepository(db *sql.DB, holdingRepo *holdings.Repository, log zerolog.Logger) *Repository {
	return &Repository{
		db:       db,
		holdings: holdingRepo,
		log:      log.With().Str("repository", "portfolios").Logger(),
	}
}

// Create inserts a portfolio for the user.
func (r *Repository) Create(userID, name, description string) (*Portfolio, error) {
	if name == "" {
		return nil, fmt.Errorf("portfolio name is required")
	}

	now := time.Now().UTC()
	res, err := r.db.Exec(`
		INSERT INTO portfolios (user_id, name, description, created_at)
		VALUES (?, ?, ?, ?)
	`, userID, name, description, now.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to create portfolio: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio id: %w", err)
	}

	return &Portfolio{
		ID:          id,
		UserID:      userID,
		Name:        name,
		Description: description,
		CreatedAt:   now,
		Holdings:    []holdings.Holding{},
	}, nil
}

// FindOwned returns the portfolio only when it exists AND belongs to the
// user, with its holdings loaded. A portfolio owned by someone else is
// indistinguishable from a missing one.
func (r *Repository) FindOwned(id int64, userID string) (*Portfolio, error) {
	var p Portfolio
	var createdAt int64
	var description sql.NullString

	err := r.db.QueryRow(`
		SELECT id, user_id, name, description, created_at
		FROM portfolios WHERE id = ? AND user_id = ?
	`, id, userID).Scan(&p.ID, &p.UserID, &p.Name, &description, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio: %w", err)
	}

	p.Description = description.String
	p.CreatedAt = time.Unix(createdAt, 0).UTC()

	p.Holdings, err = r.holdings.ListByPortfolio(p.ID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListByUser returns the user's portfolios without holdings, newest first.
func (r *Repository) ListByUser(userID string) ([]Portfolio, error) {
	rows, err := r.db.Query(`
		SELECT id, user_id, name, description, created_at
		FROM portfolios WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}
	defer rows.Close()

	result := []Portfolio{}
	for rows.Next() {
		var p Portfolio
		var createdAt int64
		var description sql.NullString
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &description, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio: %w", err)
		}
		p.Description = description.String
		p.CreatedAt = time.Unix(createdAt, 0).UTC()
		result = append(result, p)
	}
	return result, rows.Err()
}

// Update changes a portfolio's name and description.
func (r *Repository) Update(id int64, userID, name, description string) error {
	if name == "" {
		return fmt.Errorf("portfolio name is required")
	}

	res, err := r.db.Exec(`
		UPDATE portfolios SET name = ?, description = ?
		WHERE id = ? AND user_id = ?
	`, name, description, id, userID)
	if err != nil {
		return fmt.Errorf("failed to update portfolio: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a portfolio and, through foreign keys, its holdings and
// snapshots.
func (r *Repository) Delete(id int64, userID string) error {
	res, err := r.db.Exec("DELETE FROM portfolios WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete portfolio: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
