package holdings

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Repository handles holding persistence.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new holding repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "holdings").Logger(),
	}
}

// Create inserts a holding into a portfolio.
func (r *Repository) Create(portfolioID int64, in Input) (*Holding, error) {
	res, err := r.db.Exec(`
		INSERT INTO holdings (portfolio_id, group_id, symbol, quantity, avg_purchase_price, currency, purchase_date)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, portfolioID, in.GroupID, in.Symbol, in.Quantity.String(), in.AvgPurchasePrice.String(),
		in.Currency, in.PurchaseDate.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to create holding: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get holding id: %w", err)
	}

	return r.GetByID(id, portfolioID)
}

// GetByID returns a holding in the given portfolio, or nil.
func (r *Repository) GetByID(id, portfolioID int64) (*Holding, error) {
	row := r.db.QueryRow(`
		SELECT h.id, h.portfolio_id, h.group_id, COALESCE(g.name, ''), h.symbol,
		       h.quantity, h.avg_purchase_price, h.currency, h.purchase_date
		FROM holdings h
		LEFT JOIN holding_groups g ON g.id = h.group_id
		WHERE h.id = ? AND h.portfolio_id = ?
	`, id, portfolioID)

	holding, err := scanHolding(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return holding, err
}

// ListByPortfolio returns all holdings in a portfolio with group names.
func (r *Repository) ListByPortfolio(portfolioID int64) ([]Holding, error) {
	rows, err := r.db.Query(`
		SELECT h.id, h.portfolio_id, h.group_id, COALESCE(g.name, ''), h.symbol,
		       h.quantity, h.avg_purchase_price, h.currency, h.purchase_date
		FROM holdings h
		LEFT JOIN holding_groups g ON g.id = h.group_id
		WHERE h.portfolio_id = ?
		ORDER BY h.symbol, h.id
	`, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to list holdings: %w", err)
	}
	defer rows.Close()

	result := []Holding{}
	for rows.Next() {
		holding, err := scanHolding(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, *holding)
	}
	return result, rows.Err()
}

// Update replaces a holding's fields.
func (r *Repository) Update(id, portfolioID int64, in Input) error {
	res, err := r.db.Exec(`
		UPDATE holdings
		SET group_id = ?, symbol = ?, quantity = ?, avg_purchase_price = ?, currency = ?, purchase_date = ?
		WHERE id = ? AND portfolio_id = ?
	`, in.GroupID, in.Symbol, in.Quantity.String(), in.AvgPurchasePrice.String(),
		in.Currency, in.PurchaseDate.Unix(), id, portfolioID)
	if err != nil {
		return fmt.Errorf("failed to update holding: %w", err)
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

// Delete removes a holding from a portfolio.
func (r *Repository) Delete(id, portfolioID int64) error {
	res, err := r.db.Exec("DELETE FROM holdings WHERE id = ? AND portfolio_id = ?", id, portfolioID)
	if err != nil {
		return fmt.Errorf("failed to delete holding: %w", err)
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

func scanHolding(scan func(...interface{}) error) (*Holding, error) {
	var h Holding
	var quantity, avgPrice string
	var purchaseDate int64

	err := scan(&h.ID, &h.PortfolioID, &h.GroupID, &h.GroupName, &h.Symbol,
		&quantity, &avgPrice, &h.Currency, &purchaseDate)
	if err != nil {
		return nil, err
	}

	h.Quantity, err = decimal.NewFromString(quantity)
	if err != nil {
		return nil, fmt.Errorf("corrupt quantity %q: %w", quantity, err)
	}
	h.AvgPurchasePrice, err = decimal.NewFromString(avgPrice)
	if err != nil {
		return nil, fmt.Errorf("corrupt avg price %q: %w", avgPrice, err)
	}
	h.PurchaseDate = time.Unix(purchaseDate, 0).UTC()
	return &h, nil
}
