// Package analytics values portfolios in the owner's base currency and
// derives allocation breakdowns and snapshots from live market data.
package analytics

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionAnalytics is the valuation of a single holding. Monetary fields
// are in the portfolio's base currency.
type PositionAnalytics struct {
	Symbol        string          `json:"symbol"`
	GroupName     string          `json:"groupName"`
	Quantity      decimal.Decimal `json:"quantity"`
	Currency      string          `json:"currency"`
	CurrentPrice  decimal.Decimal `json:"currentPrice"`
	MarketValue   decimal.Decimal `json:"marketValue"`
	CostBasis     decimal.Decimal `json:"costBasis"`
	UnrealizedPnl decimal.Decimal `json:"unrealizedPnl"`
	PnlPercent    decimal.Decimal `json:"pnlPercent"`
}

// GroupAllocation is the share of portfolio market value held in one group.
type GroupAllocation struct {
	GroupName   string          `json:"groupName"`
	MarketValue decimal.Decimal `json:"marketValue"`
	Percent     decimal.Decimal `json:"percent"`
}

// CurrencyExposure is the share of portfolio market value bought in one
// currency.
type CurrencyExposure struct {
	Currency    string          `json:"currency"`
	MarketValue decimal.Decimal `json:"marketValue"`
	Percent     decimal.Decimal `json:"percent"`
}

// PortfolioAnalytics is a full valuation of a portfolio. When IsPartial is
// set, MissingSymbols lists the holdings that had no usable quote; they are
// excluded from every total and breakdown.
type PortfolioAnalytics struct {
	PortfolioID        int64               `json:"portfolioId"`
	PortfolioName      string              `json:"portfolioName"`
	BaseCurrency       string              `json:"baseCurrency"`
	ComputedAt         time.Time           `json:"computedAt"`
	Positions          []PositionAnalytics `json:"positions"`
	TotalMarketValue   decimal.Decimal     `json:"totalMarketValue"`
	TotalCostBasis     decimal.Decimal     `json:"totalCostBasis"`
	TotalUnrealizedPnl decimal.Decimal     `json:"totalUnrealizedPnl"`
	PnlPercent         decimal.Decimal     `json:"pnlPercent"`
	GroupAllocations   []GroupAllocation   `json:"groupAllocations"`
	CurrencyExposures  []CurrencyExposure  `json:"currencyExposures"`
	IsPartial          bool                `json:"isPartial"`
	MissingSymbols     []string            `json:"missingSymbols"`
	FxTimestamp        time.Time           `json:"fxTimestamp"`
	EurUsdRate         decimal.Decimal     `json:"eurUsdRate"`
	EurRonRate         decimal.Decimal     `json:"eurRonRate"`
}

// TimeSeriesPoint is one snapshot reduced to its chartable values.
type TimeSeriesPoint struct {
	CapturedAt         time.Time       `json:"capturedAt"`
	TotalMarketValue   decimal.Decimal `json:"totalMarketValue"`
	TotalCostBasis     decimal.Decimal `json:"totalCostBasis"`
	TotalUnrealizedPnl decimal.Decimal `json:"totalUnrealizedPnl"`
	IsPartial          bool            `json:"isPartial"`
}
