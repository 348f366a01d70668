package users

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/folioapp/folio/internal/currency"
)

// ErrEmailTaken is returned when registering with an email that already exists.
var ErrEmailTaken = fmt.Errorf("email already registered")

// Repository handles user persistence.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new user repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "users").Logger(),
	}
}

// Create inserts a new user and returns it with a generated ID.
// Emails are stored lowercased.
func (r *Repository) Create(email, passwordHash, baseCurrency string) (*User, error) {
	if baseCurrency == "" {
		baseCurrency = currency.Default
	}

	user := &User{
		ID:           uuid.New().String(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: passwordHash,
		BaseCurrency: baseCurrency,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}

	_, err := r.db.Exec(`
		INSERT INTO users (id, email, password_hash, base_currency, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, user.ID, user.Email, user.PasswordHash, user.BaseCurrency, user.IsActive, user.CreatedAt.Unix())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// GetByEmail returns the user with the given email, or nil if none exists.
func (r *Repository) GetByEmail(email string) (*User, error) {
	return r.scanOne(`
		SELECT id, email, password_hash, base_currency, is_active, created_at
		FROM users WHERE email = ?
	`, strings.ToLower(strings.TrimSpace(email)))
}

// GetByID returns the user with the given ID, or nil if none exists.
func (r *Repository) GetByID(id string) (*User, error) {
	return r.scanOne(`
		SELECT id, email, password_hash, base_currency, is_active, created_at
		FROM users WHERE id = ?
	`, id)
}

// UpdateBaseCurrency changes the user's reporting currency.
func (r *Repository) UpdateBaseCurrency(userID, baseCurrency string) error {
	return r.updateColumn(userID, "base_currency", baseCurrency)
}

// UpdatePassword replaces the user's password hash.
func (r *Repository) UpdatePassword(userID, passwordHash string) error {
	return r.updateColumn(userID, "password_hash", passwordHash)
}

func (r *Repository) updateColumn(userID, column, value string) error {
	res, err := r.db.Exec("UPDATE users SET "+column+" = ? WHERE id = ?", value, userID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// BaseCurrency returns the user's reporting currency, falling back to the
// default when the user is unknown.
func (r *Repository) BaseCurrency(userID string) string {
	var cur string
	err := r.db.QueryRow("SELECT base_currency FROM users WHERE id = ?", userID).Scan(&cur)
	if err != nil || cur == "" {
		return currency.Default
	}
	return cur
}

func (r *Repository) scanOne(query string, arg string) (*User, error) {
	var user User
	var createdAt int64
	err := r.db.QueryRow(query, arg).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.BaseCurrency, &user.IsActive, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	user.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &user, nil
}
