// Package portfolios manages portfolio records and ownership checks.
package portfolios

import (
	"time"

	"github.com/folioapp/folio/internal/modules/holdings"
)

// Portfolio is a named collection of holdings owned by one user.
type Portfolio struct {
	ID          int64              `json:"id"`
	UserID      string             `json:"-"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
	Holdings    []holdings.Holding `json:"holdings,omitempty"`
}
