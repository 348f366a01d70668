// Package holdings manages the positions held inside portfolios.
package holdings

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/folioapp/folio/internal/currency"
)

// Holding is a position in a portfolio: a quantity of a symbol bought at an
// average price in the purchase currency.
type Holding struct {
	ID               int64           `json:"id"`
	PortfolioID      int64           `json:"portfolioId"`
	GroupID          int64           `json:"groupId"`
	GroupName        string          `json:"groupName,omitempty"`
	Symbol           string          `json:"symbol"`
	Quantity         decimal.Decimal `json:"quantity"`
	AvgPurchasePrice decimal.Decimal `json:"avgPurchasePrice"`
	Currency         string          `json:"currency"`
	PurchaseDate     time.Time       `json:"purchaseDate"`
}

// CostBasis is quantity times average purchase price, in the holding's currency.
func (h Holding) CostBasis() decimal.Decimal {
	return h.Quantity.Mul(h.AvgPurchasePrice)
}

var symbolPattern = regexp.MustCompile(`^[A-Z0-9.\-]{1,20}$`)

var (
	minQuantity = decimal.RequireFromString("0.0001")
	minPrice    = decimal.RequireFromString("0.01")
)

// Input is the payload for creating or updating a holding.
type Input struct {
	GroupID          int64           `json:"groupId"`
	Symbol           string          `json:"symbol"`
	Quantity         decimal.Decimal `json:"quantity"`
	AvgPurchasePrice decimal.Decimal `json:"avgPurchasePrice"`
	Currency         string          `json:"currency"`
	PurchaseDate     time.Time       `json:"purchaseDate"`
}

// Validate normalizes the input in place and reports the first rule violation.
func (in *Input) Validate() error {
	in.Symbol = strings.ToUpper(strings.TrimSpace(in.Symbol))
	if !symbolPattern.MatchString(in.Symbol) {
		return fmt.Errorf("symbol must be 1-20 characters (letters, digits, dot, dash)")
	}

	if in.Quantity.LessThan(minQuantity) {
		return fmt.Errorf("quantity must be at least %s", minQuantity)
	}
	if in.AvgPurchasePrice.LessThan(minPrice) {
		return fmt.Errorf("average purchase price must be at least %s", minPrice)
	}

	in.Currency = currency.Normalize(in.Currency)
	if !currency.IsAllowed(in.Currency) {
		return fmt.Errorf("%w: %q", currency.ErrUnsupported, in.Currency)
	}

	if in.PurchaseDate.IsZero() {
		in.PurchaseDate = time.Now().UTC()
	}
	if in.PurchaseDate.After(time.Now().UTC()) {
		return fmt.Errorf("purchase date cannot be in the future")
	}

	return nil
}
