// Package snapshots stores point-in-time portfolio valuations.
package snapshots

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is a saved valuation of a portfolio in the user's base currency.
// IsPartial is set when one or more holdings had no market quote at capture
// time; those holdings are excluded from the totals.
type Snapshot struct {
	ID                 int64           `json:"id"`
	PortfolioID        int64           `json:"portfolioId"`
	UserID             string          `json:"-"`
	CapturedAt         time.Time       `json:"capturedAt"`
	BaseCurrency       string          `json:"baseCurrency"`
	TotalMarketValue   decimal.Decimal `json:"totalMarketValue"`
	TotalCostBasis     decimal.Decimal `json:"totalCostBasis"`
	TotalUnrealizedPnl decimal.Decimal `json:"totalUnrealizedPnl"`
	IsPartial          bool            `json:"isPartial"`
	MissingSymbols     int             `json:"missingSymbols"`
	FxTimestamp        time.Time       `json:"fxTimestamp"`
	EurUsdRate         decimal.Decimal `json:"eurUsdRate"`
	EurRonRate         decimal.Decimal `json:"eurRonRate"`
}
