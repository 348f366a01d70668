package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/folioapp/folio/internal/clients/ecb"
	"github.com/folioapp/folio/internal/clients/yahoo"
	"github.com/folioapp/folio/internal/modules/holdings"
	"github.com/folioapp/folio/internal/modules/portfolios"
	"github.com/folioapp/folio/internal/modules/snapshots"
)

// ErrPortfolioNotFound is returned when the portfolio does not exist or
// belongs to another user.
var ErrPortfolioNotFound = fmt.Errorf("portfolio not found")

// QuoteProvider supplies current market quotes. A (nil, nil) result means
// the symbol has no tradable price.
type QuoteProvider interface {
	GetQuote(ctx context.Context, symbol string) (*yahoo.Quote, error)
}

// RateProvider supplies the current EUR cross-rate snapshot.
type RateProvider interface {
	GetRates(ctx context.Context) (ecb.Snapshot, error)
}

// UserCurrencyResolver maps a user to their reporting currency.
type UserCurrencyResolver interface {
	BaseCurrency(userID string) string
}

// Service computes portfolio valuations.
type Service struct {
	portfolios *portfolios.Repository
	snapshots  *snapshots.Repository
	quotes     QuoteProvider
	rates      RateProvider
	users      UserCurrencyResolver
	log        zerolog.Logger
}

// NewService creates a new analytics service
func NewService(
	portfolioRepo *portfolios.Repository,
	snapshotRepo *snapshots.Repository,
	quotes QuoteProvider,
	rates RateProvider,
	users UserCurrencyResolver,
	log zerolog.Logger,
) *Service {
	return &Service{
		portfolios: portfolioRepo,
		snapshots:  snapshotRepo,
		quotes:     quotes,
		rates:      rates,
		users:      users,
		log:        log.With().Str("service", "analytics").Logger(),
	}
}

// Compute values a portfolio in the owner's base currency using current
// quotes and a single FX snapshot. Holdings without a usable quote are
// excluded from totals and reported in MissingSymbols.
func (s *Service) Compute(ctx context.Context, portfolioID int64, userID string) (*PortfolioAnalytics, error) {
	portfolio, err := s.portfolios.FindOwned(portfolioID, userID)
	if err != nil {
		return nil, err
	}
	if portfolio == nil {
		return nil, ErrPortfolioNotFound
	}

	baseCurrency := s.users.BaseCurrency(userID)

	// One FX snapshot per computation so every position converts at the
	// same rates.
	fx, err := s.rates.GetRates(ctx)
	if err != nil {
		return nil, err
	}

	result := &PortfolioAnalytics{
		PortfolioID:    portfolio.ID,
		PortfolioName:  portfolio.Name,
		BaseCurrency:   baseCurrency,
		ComputedAt:     time.Now().UTC(),
		Positions:      []PositionAnalytics{},
		MissingSymbols: []string{},
		FxTimestamp:    fx.RetrievedAtUtc,
		EurUsdRate:     fx.EurUsd.Round(4),
		EurRonRate:     fx.EurRon.Round(4),
	}

	totalMarketValue := decimal.Zero
	totalCostBasis := decimal.Zero

	for _, holding := range portfolio.Holdings {
		quote, err := s.quotes.GetQuote(ctx, holding.Symbol)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.log.Warn().Err(err).Str("symbol", holding.Symbol).Msg("Quote fetch failed")
			result.MissingSymbols = append(result.MissingSymbols, holding.Symbol)
			continue
		}
		if quote == nil {
			result.MissingSymbols = append(result.MissingSymbols, holding.Symbol)
			continue
		}

		position, err := valuePosition(holding, quote, baseCurrency, fx)
		if err != nil {
			return nil, fmt.Errorf("failed to value %s: %w", holding.Symbol, err)
		}

		totalMarketValue = totalMarketValue.Add(position.marketValue)
		totalCostBasis = totalCostBasis.Add(position.costBasis)
		result.Positions = append(result.Positions, position.rounded())
	}

	result.IsPartial = len(result.MissingSymbols) > 0
	result.TotalMarketValue = totalMarketValue.Round(2)
	result.TotalCostBasis = totalCostBasis.Round(2)
	result.TotalUnrealizedPnl = totalMarketValue.Sub(totalCostBasis).Round(2)
	result.PnlPercent = pnlPercent(totalMarketValue.Sub(totalCostBasis), totalCostBasis)

	result.GroupAllocations = groupAllocations(result.Positions, totalMarketValue)
	result.CurrencyExposures = currencyExposures(result.Positions, totalMarketValue)

	return result, nil
}

// CreateSnapshot computes the portfolio valuation and persists its totals.
func (s *Service) CreateSnapshot(ctx context.Context, portfolioID int64, userID string) (*snapshots.Snapshot, error) {
	computed, err := s.Compute(ctx, portfolioID, userID)
	if err != nil {
		return nil, err
	}

	snapshot := &snapshots.Snapshot{
		PortfolioID:        portfolioID,
		UserID:             userID,
		CapturedAt:         computed.ComputedAt,
		BaseCurrency:       computed.BaseCurrency,
		TotalMarketValue:   computed.TotalMarketValue,
		TotalCostBasis:     computed.TotalCostBasis,
		TotalUnrealizedPnl: computed.TotalUnrealizedPnl,
		IsPartial:          computed.IsPartial,
		MissingSymbols:     len(computed.MissingSymbols),
		FxTimestamp:        computed.FxTimestamp,
		EurUsdRate:         computed.EurUsdRate,
		EurRonRate:         computed.EurRonRate,
	}

	if err := s.snapshots.Insert(snapshot); err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("portfolio_id", portfolioID).
		Str("total", snapshot.TotalMarketValue.String()).
		Bool("partial", snapshot.IsPartial).
		Msg("Snapshot captured")

	return snapshot, nil
}

// Snapshots returns saved snapshots newest first, optionally bounded by an
// inclusive time range. A portfolio that is missing or not owned yields an
// empty list, not an error.
func (s *Service) Snapshots(portfolioID int64, userID string, from, to *time.Time) ([]snapshots.Snapshot, error) {
	return s.snapshots.Query(portfolioID, userID, from, to, false)
}

// TimeSeries returns snapshot totals oldest first for charting.
func (s *Service) TimeSeries(portfolioID int64, userID string, from, to *time.Time) ([]TimeSeriesPoint, error) {
	list, err := s.snapshots.Query(portfolioID, userID, from, to, true)
	if err != nil {
		return nil, err
	}

	points := make([]TimeSeriesPoint, 0, len(list))
	for _, snap := range list {
		points = append(points, TimeSeriesPoint{
			CapturedAt:         snap.CapturedAt,
			TotalMarketValue:   snap.TotalMarketValue,
			TotalCostBasis:     snap.TotalCostBasis,
			TotalUnrealizedPnl: snap.TotalUnrealizedPnl,
			IsPartial:          snap.IsPartial,
		})
	}
	return points, nil
}

// valuedPosition keeps the unrounded base-currency values so totals are
// summed at full precision.
type valuedPosition struct {
	PositionAnalytics
	marketValue decimal.Decimal
	costBasis   decimal.Decimal
}

func (v valuedPosition) rounded() PositionAnalytics {
	p := v.PositionAnalytics
	p.MarketValue = v.marketValue.Round(2)
	p.CostBasis = v.costBasis.Round(2)
	p.UnrealizedPnl = v.marketValue.Sub(v.costBasis).Round(2)
	p.PnlPercent = pnlPercent(v.marketValue.Sub(v.costBasis), v.costBasis)
	return p
}

// valuePosition converts one holding to the base currency. Both market
// value and cost basis convert from the holding's purchase currency; the
// quote price is taken at face value in that currency. A conversion failure
// means the stored holding carries an unsupported currency.
func valuePosition(h holdings.Holding, quote *yahoo.Quote, baseCurrency string, fx ecb.Snapshot) (valuedPosition, error) {
	marketValue, err := ecb.Convert(h.Quantity.Mul(quote.Price), h.Currency, baseCurrency, fx)
	if err != nil {
		return valuedPosition{}, err
	}
	costBasis, err := ecb.Convert(h.CostBasis(), h.Currency, baseCurrency, fx)
	if err != nil {
		return valuedPosition{}, err
	}

	return valuedPosition{
		PositionAnalytics: PositionAnalytics{
			Symbol:       h.Symbol,
			GroupName:    h.GroupName,
			Quantity:     h.Quantity,
			Currency:     h.Currency,
			CurrentPrice: quote.Price,
		},
		marketValue: marketValue,
		costBasis:   costBasis,
	}, nil
}

// pnlPercent is pnl over cost basis as a percentage, zero when there is no
// cost basis to compare against.
func pnlPercent(pnl, costBasis decimal.Decimal) decimal.Decimal {
	if costBasis.IsZero() {
		return decimal.Zero
	}
	return pnl.Div(costBasis).Mul(decimal.NewFromInt(100)).Round(2)
}

// percentOf is value over total as a percentage, zero when the total is zero.
func percentOf(value, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return value.Div(total).Mul(decimal.NewFromInt(100)).Round(2)
}

func groupAllocations(positions []PositionAnalytics, total decimal.Decimal) []GroupAllocation {
	byGroup := map[string]decimal.Decimal{}
	for _, p := range positions {
		byGroup[p.GroupName] = byGroup[p.GroupName].Add(p.MarketValue)
	}

	result := make([]GroupAllocation, 0, len(byGroup))
	for name, value := range byGroup {
		result = append(result, GroupAllocation{
			GroupName:   name,
			MarketValue: value.Round(2),
			Percent:     percentOf(value, total),
		})
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].MarketValue.Equal(result[j].MarketValue) {
			return result[i].MarketValue.GreaterThan(result[j].MarketValue)
		}
		return result[i].GroupName < result[j].GroupName
	})
	return result
}

func currencyExposures(positions []PositionAnalytics, total decimal.Decimal) []CurrencyExposure {
	byCurrency := map[string]decimal.Decimal{}
	for _, p := range positions {
		byCurrency[p.Currency] = byCurrency[p.Currency].Add(p.MarketValue)
	}

	result := make([]CurrencyExposure, 0, len(byCurrency))
	for cur, value := range byCurrency {
		result = append(result, CurrencyExposure{
			Currency:    cur,
			MarketValue: value.Round(2),
			Percent:     percentOf(value, total),
		})
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].MarketValue.Equal(result[j].MarketValue) {
			return result[i].MarketValue.GreaterThan(result[j].MarketValue)
		}
		return result[i].Currency < result[j].Currency
	})
	return result
}
