package holdings

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
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
INSERT INTO holding_groups (user_id, name, description, created_at, updated_at)
VALUES ('user-1', 'Tech', '', 0, 0);`)
	require.NoError(t, err)

	return db
}

func validInput() Input {
	return Input{
		GroupID:          1,
		Symbol:           "AAPL",
		Quantity:         decimal.RequireFromString("10.5"),
		AvgPurchasePrice: decimal.RequireFromString("150.25"),
		Currency:         "USD",
		PurchaseDate:     time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreateAndGet(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())

	holding, err := repo.Create(7, validInput())
	require.NoError(t, err)
	require.NotNil(t, holding)

	assert.Equal(t, int64(7), holding.PortfolioID)
	assert.Equal(t, "AAPL", holding.Symbol)
	assert.Equal(t, "Tech", holding.GroupName)
	assert.True(t, holding.Quantity.Equal(decimal.RequireFromString("10.5")))
	assert.True(t, holding.CostBasis().Equal(decimal.RequireFromString("1577.625")))
}

func TestGetWrongPortfolio(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())

	holding, err := repo.Create(7, validInput())
	require.NoError(t, err)

	got, err := repo.GetByID(holding.ID, 999)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListByPortfolio(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())

	in := validInput()
	_, err := repo.Create(7, in)
	require.NoError(t, err)
	in.Symbol = "MSFT"
	_, err = repo.Create(7, in)
	require.NoError(t, err)
	_, err = repo.Create(8, in)
	require.NoError(t, err)

	list, err := repo.ListByPortfolio(7)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "AAPL", list[0].Symbol)
	assert.Equal(t, "MSFT", list[1].Symbol)
}

func TestUpdateAndDelete(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())

	holding, err := repo.Create(7, validInput())
	require.NoError(t, err)

	in := validInput()
	in.Quantity = decimal.RequireFromString("20")
	require.NoError(t, repo.Update(holding.ID, 7, in))

	updated, err := repo.GetByID(holding.ID, 7)
	require.NoError(t, err)
	assert.True(t, updated.Quantity.Equal(decimal.RequireFromString("20")))

	assert.ErrorIs(t, repo.Update(holding.ID, 999, in), sql.ErrNoRows)
	assert.ErrorIs(t, repo.Delete(holding.ID, 999), sql.ErrNoRows)
	require.NoError(t, repo.Delete(holding.ID, 7))

	gone, err := repo.GetByID(holding.ID, 7)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestInputValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Input)
		wantErr bool
	}{
		{"valid", func(in *Input) {}, false},
		{"lowercase symbol normalized", func(in *Input) { in.Symbol = " aapl " }, false},
		{"empty symbol", func(in *Input) { in.Symbol = "" }, true},
		{"symbol too long", func(in *Input) { in.Symbol = "ABCDEFGHIJKLMNOPQRSTU" }, true},
		{"zero quantity", func(in *Input) { in.Quantity = decimal.Zero }, true},
		{"negative quantity", func(in *Input) { in.Quantity = decimal.NewFromInt(-1) }, true},
		{"price below minimum", func(in *Input) { in.AvgPurchasePrice = decimal.RequireFromString("0.001") }, true},
		{"unsupported currency", func(in *Input) { in.Currency = "GBP" }, true},
		{"lowercase currency normalized", func(in *Input) { in.Currency = "eur" }, false},
		{"zero purchase date defaults to now", func(in *Input) { in.PurchaseDate = time.Time{} }, false},
		{"future purchase date", func(in *Input) { in.PurchaseDate = time.Now().Add(48 * time.Hour) }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)
			err := in.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.False(t, in.PurchaseDate.IsZero())
			}
		})
	}
}
