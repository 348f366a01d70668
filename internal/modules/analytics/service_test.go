package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folioapp/folio/internal/clients/ecb"
	"github.com/folioapp/folio/internal/clients/yahoo"
	"github.com/folioapp/folio/internal/modules/holdings"
	"github.com/folioapp/folio/internal/modules/portfolios"
	"github.com/folioapp/folio/internal/modules/snapshots"
)

type fakeQuotes struct {
	quotes map[string]*yahoo.Quote
	errs   map[string]error
	calls  int
}

func (f *fakeQuotes) GetQuote(ctx context.Context, symbol string) (*yahoo.Quote, error) {
	f.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := f.errs[symbol]; ok {
		return nil, err
	}
	return f.quotes[symbol], nil
}

type fakeRates struct {
	snapshot ecb.Snapshot
	err      error
	calls    int
}

func (f *fakeRates) GetRates(ctx context.Context) (ecb.Snapshot, error) {
	f.calls++
	if f.err != nil {
		return ecb.Snapshot{}, f.err
	}
	return f.snapshot, nil
}

type fakeUsers struct {
	currencies map[string]string
}

func (f *fakeUsers) BaseCurrency(userID string) string {
	if cur, ok := f.currencies[userID]; ok {
		return cur
	}
	return "EUR"
}

type fixture struct {
	service    *Service
	portfolios *portfolios.Repository
	holdings   *holdings.Repository
	quotes     *fakeQuotes
	rates      *fakeRates
	users      *fakeUsers
}

func setup(t *testing.T) *fixture {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
CREATE TABLE portfolios (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	name TEXT NOT NULL,
	description TEXT,
	created_at INTEGER NOT NULL
);
CREATE TABLE holding_groups (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	name TEXT NOT NULL,
	description TEXT,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE TABLE holdings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	portfolio_id INTEGER NOT NULL,
	group_id INTEGER NOT NULL,
	symbol TEXT NOT NULL,
	quantity TEXT NOT NULL,
	avg_purchase_price TEXT NOT NULL,
	currency TEXT NOT NULL,
	purchase_date INTEGER NOT NULL
);
CREATE TABLE portfolio_snapshots (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	portfolio_id INTEGER NOT NULL,
	user_id TEXT NOT NULL,
	captured_at INTEGER NOT NULL,
	base_currency TEXT NOT NULL,
	total_market_value TEXT NOT NULL,
	total_cost_basis TEXT NOT NULL,
	total_unrealized_pnl TEXT NOT NULL,
	is_partial INTEGER NOT NULL DEFAULT 0,
	missing_symbols INTEGER NOT NULL DEFAULT 0,
	fx_timestamp INTEGER NOT NULL,
	eur_usd_rate TEXT NOT NULL,
	eur_ron_rate TEXT NOT NULL
);
INSERT INTO holding_groups (user_id, name, description, created_at, updated_at)
VALUES ('user-1', 'Uncategorized', '', 0, 0), ('user-1', 'Tech', '', 0, 0);`)
	require.NoError(t, err)

	holdingRepo := holdings.NewRepository(db, zerolog.Nop())
	portfolioRepo := portfolios.NewRepository(db, holdingRepo, zerolog.Nop())
	snapshotRepo := snapshots.NewRepository(db, zerolog.Nop())

	quotes := &fakeQuotes{quotes: map[string]*yahoo.Quote{}, errs: map[string]error{}}
	rates := &fakeRates{snapshot: ecb.Snapshot{
		EurUsd:         decimal.RequireFromString("1.10"),
		EurRon:         decimal.RequireFromString("4.975"),
		RetrievedAtUtc: time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC),
	}}
	users := &fakeUsers{currencies: map[string]string{}}

	service := NewService(portfolioRepo, snapshotRepo, quotes, rates, users, zerolog.Nop())
	return &fixture{
		service:    service,
		portfolios: portfolioRepo,
		holdings:   holdingRepo,
		quotes:     quotes,
		rates:      rates,
		users:      users,
	}
}

func (f *fixture) addPortfolio(t *testing.T, userID string) int64 {
	p, err := f.portfolios.Create(userID, "Test Portfolio", "")
	require.NoError(t, err)
	return p.ID
}

func (f *fixture) addHolding(t *testing.T, portfolioID, groupID int64, symbol, quantity, price, cur string) {
	_, err := f.holdings.Create(portfolioID, holdings.Input{
		GroupID:          groupID,
		Symbol:           symbol,
		Quantity:         decimal.RequireFromString(quantity),
		AvgPurchasePrice: decimal.RequireFromString(price),
		Currency:         cur,
		PurchaseDate:     time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
}

func (f *fixture) setQuote(symbol, price, cur string) {
	f.quotes.quotes[symbol] = &yahoo.Quote{
		Symbol:   symbol,
		Price:    decimal.RequireFromString(price),
		Currency: cur,
	}
}

func TestComputeSingleUsdHolding(t *testing.T) {
	f := setup(t)
	pid := f.addPortfolio(t, "user-1")
	f.addHolding(t, pid, 1, "AAPL", "10", "100", "USD")
	f.setQuote("AAPL", "120", "USD")

	got, err := f.service.Compute(context.Background(), pid, "user-1")
	require.NoError(t, err)

	// 1200 USD at EUR/USD 1.10, cost 1000 USD
	assert.Equal(t, "EUR", got.BaseCurrency)
	assert.True(t, got.TotalMarketValue.Equal(decimal.RequireFromString("1090.91")), "market value = %s", got.TotalMarketValue)
	assert.True(t, got.TotalCostBasis.Equal(decimal.RequireFromString("909.09")), "cost basis = %s", got.TotalCostBasis)
	assert.True(t, got.TotalUnrealizedPnl.Equal(decimal.RequireFromString("181.82")), "pnl = %s", got.TotalUnrealizedPnl)
	assert.True(t, got.PnlPercent.Equal(decimal.RequireFromString("20")), "pnl percent = %s", got.PnlPercent)
	assert.False(t, got.IsPartial)
	assert.Empty(t, got.MissingSymbols)

	require.Len(t, got.Positions, 1)
	pos := got.Positions[0]
	assert.Equal(t, "Uncategorized", pos.GroupName)
	assert.True(t, pos.MarketValue.Equal(decimal.RequireFromString("1090.91")))
	assert.True(t, pos.CurrentPrice.Equal(decimal.RequireFromString("120")))

	require.Len(t, got.GroupAllocations, 1)
	assert.True(t, got.GroupAllocations[0].Percent.Equal(decimal.RequireFromString("100")))
	require.Len(t, got.CurrencyExposures, 1)
	assert.Equal(t, "USD", got.CurrencyExposures[0].Currency)

	assert.True(t, got.EurUsdRate.Equal(decimal.RequireFromString("1.1")))
	assert.Equal(t, 1, f.rates.calls)
}

func TestComputeBaseCurrencyIdentity(t *testing.T) {
	f := setup(t)
	f.users.currencies["user-1"] = "USD"
	pid := f.addPortfolio(t, "user-1")
	f.addHolding(t, pid, 1, "AAPL", "10", "100", "USD")
	f.setQuote("AAPL", "120", "USD")

	got, err := f.service.Compute(context.Background(), pid, "user-1")
	require.NoError(t, err)

	assert.Equal(t, "USD", got.BaseCurrency)
	assert.True(t, got.TotalMarketValue.Equal(decimal.RequireFromString("1200")))
	assert.True(t, got.TotalCostBasis.Equal(decimal.RequireFromString("1000")))
}

func TestComputeMissingSymbolExcluded(t *testing.T) {
	f := setup(t)
	pid := f.addPortfolio(t, "user-1")
	f.addHolding(t, pid, 1, "AAPL", "10", "100", "USD")
	f.addHolding(t, pid, 1, "GHOST", "5", "50", "USD")
	f.setQuote("AAPL", "120", "USD")
	// GHOST has no quote

	got, err := f.service.Compute(context.Background(), pid, "user-1")
	require.NoError(t, err)

	assert.True(t, got.IsPartial)
	assert.Equal(t, []string{"GHOST"}, got.MissingSymbols)
	require.Len(t, got.Positions, 1)
	assert.True(t, got.TotalMarketValue.Equal(decimal.RequireFromString("1090.91")))
}

func TestComputeQuoteErrorCountsAsMissing(t *testing.T) {
	f := setup(t)
	pid := f.addPortfolio(t, "user-1")
	f.addHolding(t, pid, 1, "FLAKY", "10", "100", "USD")
	f.quotes.errs["FLAKY"] = fmt.Errorf("upstream timeout")

	got, err := f.service.Compute(context.Background(), pid, "user-1")
	require.NoError(t, err)

	assert.True(t, got.IsPartial)
	assert.Equal(t, []string{"FLAKY"}, got.MissingSymbols)
	assert.True(t, got.TotalMarketValue.IsZero())
}

func TestComputeCancelledContext(t *testing.T) {
	f := setup(t)
	pid := f.addPortfolio(t, "user-1")
	f.addHolding(t, pid, 1, "AAPL", "10", "100", "USD")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.service.Compute(ctx, pid, "user-1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestComputeEmptyPortfolio(t *testing.T) {
	f := setup(t)
	pid := f.addPortfolio(t, "user-1")

	got, err := f.service.Compute(context.Background(), pid, "user-1")
	require.NoError(t, err)

	assert.True(t, got.TotalMarketValue.IsZero())
	assert.True(t, got.PnlPercent.IsZero())
	assert.False(t, got.IsPartial)
	assert.Empty(t, got.Positions)
	assert.Empty(t, got.GroupAllocations)
	assert.Empty(t, got.CurrencyExposures)
}

func TestComputePortfolioNotOwned(t *testing.T) {
	f := setup(t)
	pid := f.addPortfolio(t, "user-1")

	_, err := f.service.Compute(context.Background(), pid, "user-2")
	assert.ErrorIs(t, err, ErrPortfolioNotFound)

	_, err = f.service.Compute(context.Background(), 9999, "user-1")
	assert.ErrorIs(t, err, ErrPortfolioNotFound)
}

func TestComputeAllocationsSortedByValue(t *testing.T) {
	f := setup(t)
	pid := f.addPortfolio(t, "user-1")
	f.addHolding(t, pid, 1, "SMALL", "1", "10", "EUR")
	f.addHolding(t, pid, 2, "BIG", "10", "100", "EUR")
	f.setQuote("SMALL", "10", "EUR")
	f.setQuote("BIG", "100", "EUR")

	got, err := f.service.Compute(context.Background(), pid, "user-1")
	require.NoError(t, err)

	require.Len(t, got.GroupAllocations, 2)
	assert.Equal(t, "Tech", got.GroupAllocations[0].GroupName)
	assert.True(t, got.GroupAllocations[0].MarketValue.GreaterThan(got.GroupAllocations[1].MarketValue))
	assert.True(t, got.GroupAllocations[0].Percent.Equal(decimal.RequireFromString("99.01")))
	assert.True(t, got.GroupAllocations[1].Percent.Equal(decimal.RequireFromString("0.99")))
}

func TestComputeCurrencyExposureMixed(t *testing.T) {
	f := setup(t)
	pid := f.addPortfolio(t, "user-1")
	f.addHolding(t, pid, 1, "EU1", "10", "50", "EUR")
	f.addHolding(t, pid, 1, "US1", "10", "50", "USD")
	f.setQuote("EU1", "60", "EUR")
	f.setQuote("US1", "66", "USD")

	got, err := f.service.Compute(context.Background(), pid, "user-1")
	require.NoError(t, err)

	// 600 EUR vs 660 USD = 600 EUR converted
	require.Len(t, got.CurrencyExposures, 2)
	assert.True(t, got.CurrencyExposures[0].Percent.Equal(decimal.RequireFromString("50")))
	assert.True(t, got.CurrencyExposures[1].Percent.Equal(decimal.RequireFromString("50")))
}

func TestComputeValuesInHoldingCurrency(t *testing.T) {
	f := setup(t)
	pid := f.addPortfolio(t, "user-1")
	f.addHolding(t, pid, 1, "LSE", "10", "100", "USD")
	f.setQuote("LSE", "120", "GBP")

	got, err := f.service.Compute(context.Background(), pid, "user-1")
	require.NoError(t, err)

	// The quote's reported currency is ignored; the price is valued in the
	// holding's purchase currency.
	assert.False(t, got.IsPartial)
	assert.Empty(t, got.MissingSymbols)
	require.Len(t, got.Positions, 1)
	assert.True(t, got.TotalMarketValue.Equal(decimal.RequireFromString("1090.91")), "market value = %s", got.TotalMarketValue)
	assert.True(t, got.TotalCostBasis.Equal(decimal.RequireFromString("909.09")))
}

func TestComputeAllQuotesMissing(t *testing.T) {
	f := setup(t)
	pid := f.addPortfolio(t, "user-1")
	f.addHolding(t, pid, 1, "GHOST1", "10", "100", "USD")
	f.addHolding(t, pid, 1, "GHOST2", "5", "50", "EUR")

	got, err := f.service.Compute(context.Background(), pid, "user-1")
	require.NoError(t, err)

	assert.True(t, got.IsPartial)
	assert.ElementsMatch(t, []string{"GHOST1", "GHOST2"}, got.MissingSymbols)
	assert.Empty(t, got.Positions)
	assert.True(t, got.TotalMarketValue.IsZero())
	assert.True(t, got.TotalCostBasis.IsZero())
	assert.True(t, got.PnlPercent.IsZero())
}

func TestCreateSnapshotRatesUnavailable(t *testing.T) {
	f := setup(t)
	pid := f.addPortfolio(t, "user-1")
	f.addHolding(t, pid, 1, "AAPL", "10", "100", "USD")
	f.setQuote("AAPL", "120", "USD")
	f.rates.err = ecb.ErrRatesUnavailable

	_, err := f.service.CreateSnapshot(context.Background(), pid, "user-1")
	assert.ErrorIs(t, err, ecb.ErrRatesUnavailable)

	// Nothing is persisted when the computation fails
	list, err := f.service.Snapshots(pid, "user-1", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateSnapshotAndQuery(t *testing.T) {
	f := setup(t)
	pid := f.addPortfolio(t, "user-1")
	f.addHolding(t, pid, 1, "AAPL", "10", "100", "USD")
	f.setQuote("AAPL", "120", "USD")

	snap, err := f.service.CreateSnapshot(context.Background(), pid, "user-1")
	require.NoError(t, err)
	assert.NotZero(t, snap.ID)
	assert.True(t, snap.TotalMarketValue.Equal(decimal.RequireFromString("1090.91")))
	assert.True(t, snap.EurUsdRate.Equal(decimal.RequireFromString("1.1")))
	assert.Equal(t, 1, f.rates.calls)

	list, err := f.service.Snapshots(pid, "user-1", nil, nil)
	require.NoError(t, err)
	require.Len(t, list, 1)

	// Unowned portfolios yield an empty list
	other, err := f.service.Snapshots(pid, "user-2", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestCreateSnapshotNotOwned(t *testing.T) {
	f := setup(t)
	pid := f.addPortfolio(t, "user-1")

	_, err := f.service.CreateSnapshot(context.Background(), pid, "user-2")
	assert.ErrorIs(t, err, ErrPortfolioNotFound)
}

func TestTimeSeriesAscending(t *testing.T) {
	f := setup(t)
	pid := f.addPortfolio(t, "user-1")
	f.addHolding(t, pid, 1, "AAPL", "10", "100", "USD")
	f.setQuote("AAPL", "120", "USD")

	for i := 0; i < 3; i++ {
		_, err := f.service.CreateSnapshot(context.Background(), pid, "user-1")
		require.NoError(t, err)
	}

	points, err := f.service.TimeSeries(pid, "user-1", nil, nil)
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.True(t, !points[0].CapturedAt.After(points[1].CapturedAt))
	assert.True(t, !points[1].CapturedAt.After(points[2].CapturedAt))
}
