// Package users provides user account storage.
package users

import "time"

// User is a registered account. BaseCurrency is the currency all of the
// user's portfolio analytics are reported in.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	BaseCurrency string    `json:"baseCurrency"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
}
