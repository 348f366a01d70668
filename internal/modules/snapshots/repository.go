package snapshots

import (
	"fmt"
	"time"

	"database/sql"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Repository handles snapshot persistence.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new snapshot repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "snapshots").Logger(),
	}
}

// Insert stores a snapshot and sets its generated ID.
func (r *Repository) Insert(s *Snapshot) error {
	res, err := r.db.Exec(`
		INSERT INTO portfolio_snapshots
			(portfolio_id, user_id, captured_at, base_currency,
			 total_market_value, total_cost_basis, total_unrealized_pnl,
			 is_partial, missing_symbols, fx_timestamp, eur_usd_rate, eur_ron_rate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.PortfolioID, s.UserID, s.CapturedAt.Unix(), s.BaseCurrency,
		s.TotalMarketValue.String(), s.TotalCostBasis.String(), s.TotalUnrealizedPnl.String(),
		s.IsPartial, s.MissingSymbols, s.FxTimestamp.Unix(), s.EurUsdRate.String(), s.EurRonRate.String())
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	s.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get snapshot id: %w", err)
	}
	return nil
}

// Query returns snapshots for a portfolio owned by the user, optionally
// bounded by an inclusive [from, to] capture time range. Results are ordered
// by capture time, ascending or descending.
func (r *Repository) Query(portfolioID int64, userID string, from, to *time.Time, ascending bool) ([]Snapshot, error) {
	query := `
		SELECT id, portfolio_id, user_id, captured_at, base_currency,
		       total_market_value, total_cost_basis, total_unrealized_pnl,
		       is_partial, missing_symbols, fx_timestamp, eur_usd_rate, eur_ron_rate
		FROM portfolio_snapshots
		WHERE portfolio_id = ? AND user_id = ?`
	args := []interface{}{portfolioID, userID}

	if from != nil {
		query += " AND captured_at >= ?"
		args = append(args, from.Unix())
	}
	if to != nil {
		query += " AND captured_at <= ?"
		args = append(args, to.Unix())
	}

	if ascending {
		query += " ORDER BY captured_at ASC, id ASC"
	} else {
		query += " ORDER BY captured_at DESC, id DESC"
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	result := []Snapshot{}
	for rows.Next() {
		var s Snapshot
		var capturedAt, fxTimestamp int64
		var marketValue, costBasis, pnl, eurUsd, eurRon string

		err := rows.Scan(&s.ID, &s.PortfolioID, &s.UserID, &capturedAt, &s.BaseCurrency,
			&marketValue, &costBasis, &pnl, &s.IsPartial, &s.MissingSymbols,
			&fxTimestamp, &eurUsd, &eurRon)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}

		s.CapturedAt = time.Unix(capturedAt, 0).UTC()
		s.FxTimestamp = time.Unix(fxTimestamp, 0).UTC()
		if s.TotalMarketValue, err = decimal.NewFromString(marketValue); err != nil {
			return nil, fmt.Errorf("corrupt market value %q: %w", marketValue, err)
		}
		if s.TotalCostBasis, err = decimal.NewFromString(costBasis); err != nil {
			return nil, fmt.Errorf("corrupt cost basis %q: %w", costBasis, err)
		}
		if s.TotalUnrealizedPnl, err = decimal.NewFromString(pnl); err != nil {
			return nil, fmt.Errorf("corrupt pnl %q: %w", pnl, err)
		}
		if s.EurUsdRate, err = decimal.NewFromString(eurUsd); err != nil {
			return nil, fmt.Errorf("corrupt eur/usd rate %q: %w", eurUsd, err)
		}
		if s.EurRonRate, err = decimal.NewFromString(eurRon); err != nil {
			return nil, fmt.Errorf("corrupt eur/ron rate %q: %w", eurRon, err)
		}

		result = append(result, s)
	}
	return result, rows.Err()
}
