// Package yahoo fetches stock quotes and historical prices from the Yahoo
// Finance public endpoints, with short-lived quote caching.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/folioapp/folio/internal/clientdata"
)

const userAgent = "Mozilla/5.0 (compatible; folio/1.0)"

// Quote is a point-in-time market quote for a single symbol.
type Quote struct {
	Symbol         string           `json:"symbol"`
	Price          decimal.Decimal  `json:"price"`
	Currency       string           `json:"currency"`
	CompanyName    string           `json:"companyName"`
	High52Week     *decimal.Decimal `json:"high52Week,omitempty"`
	Low52Week      *decimal.Decimal `json:"low52Week,omitempty"`
	MarketCap      *decimal.Decimal `json:"marketCap,omitempty"`
	RetrievedAtUtc time.Time        `json:"retrievedAtUtc"`
}

// Bar is one daily OHLCV candle.
type Bar struct {
	Date   time.Time       `json:"date"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

// Client for the Yahoo Finance quote and chart APIs.
type Client struct {
	quoteURL  string
	chartURL  string
	client    *http.Client
	log       zerolog.Logger
	cacheRepo *clientdata.Repository
}

// NewClient creates a new Yahoo Finance client.
// cacheRepo is optional - if nil, quote caching is disabled.
func NewClient(cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	return &Client{
		quoteURL:  "https://query1.finance.yahoo.com/v7/finance/quote",
		chartURL:  "https://query1.finance.yahoo.com/v8/finance/chart",
		client:    &http.Client{Timeout: 10 * time.Second},
		log:       log.With().Str("client", "yahoo").Logger(),
		cacheRepo: cacheRepo,
	}
}

// GetQuote returns the current quote for a symbol.
// A (nil, nil) result means the symbol is unknown or has no tradable price,
// which is not a transient condition. Errors indicate fetch failures.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}

	// Check persistent cache for fresh data
	if c.cacheRepo != nil {
		data, err := c.cacheRepo.GetIfFresh(clientdata.TableQuotes, symbol)
		if err == nil && data != nil {
			var cached Quote
			if err := json.Unmarshal(data, &cached); err == nil {
				c.log.Debug().Str("symbol", symbol).Msg("Quote cache hit")
				return &cached, nil
			}
		}
	}

	reqURL := fmt.Sprintf("%s?symbols=%s", c.quoteURL, url.QueryEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build quote request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quote request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote API returned status %d", resp.StatusCode)
	}

	var result struct {
		QuoteResponse struct {
			Result []struct {
				Symbol           string   `json:"symbol"`
				RegularMktPrice  *float64 `json:"regularMarketPrice"`
				Currency         string   `json:"currency"`
				LongName         string   `json:"longName"`
				ShortName        string   `json:"shortName"`
				FiftyTwoWeekHigh *float64 `json:"fiftyTwoWeekHigh"`
				FiftyTwoWeekLow  *float64 `json:"fiftyTwoWeekLow"`
				MarketCap        *float64 `json:"marketCap"`
			} `json:"result"`
		} `json:"quoteResponse"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse quote response: %w", err)
	}

	if len(result.QuoteResponse.Result) == 0 {
		c.log.Debug().Str("symbol", symbol).Msg("Symbol not found")
		return nil, nil
	}

	raw := result.QuoteResponse.Result[0]
	if raw.RegularMktPrice == nil {
		c.log.Debug().Str("symbol", symbol).Msg("Symbol has no market price")
		return nil, nil
	}

	name := raw.LongName
	if name == "" {
		name = raw.ShortName
	}

	quote := &Quote{
		Symbol:         symbol,
		Price:          decimal.NewFromFloat(*raw.RegularMktPrice),
		Currency:       strings.ToUpper(raw.Currency),
		CompanyName:    name,
		High52Week:     optDecimal(raw.FiftyTwoWeekHigh),
		Low52Week:      optDecimal(raw.FiftyTwoWeekLow),
		MarketCap:      optDecimal(raw.MarketCap),
		RetrievedAtUtc: time.Now().UTC(),
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store(clientdata.TableQuotes, symbol, quote, clientdata.TTLQuote); err != nil {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache quote")
		}
	}

	c.log.Info().
		Str("symbol", symbol).
		Str("price", quote.Price.String()).
		Str("currency", quote.Currency).
		Msg("Fetched quote")

	return quote, nil
}

// GetHistorical returns daily bars for a symbol in ascending date order.
// Days with no close price are skipped.
func (c *Client) GetHistorical(ctx context.Context, symbol string, from, to time.Time) ([]Bar, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if from.After(to) {
		return nil, fmt.Errorf("invalid date range: from %s to %s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	}

	reqURL := fmt.Sprintf("%s/%s?period1=%d&period2=%d&interval=1d",
		c.chartURL, url.PathEscape(symbol), from.Unix(), to.Unix())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build chart request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chart request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chart API returned status %d", resp.StatusCode)
	}

	var result struct {
		Chart struct {
			Result []struct {
				Timestamp  []int64 `json:"timestamp"`
				Indicators struct {
					Quote []struct {
						Open   []*float64 `json:"open"`
						High   []*float64 `json:"high"`
						Low    []*float64 `json:"low"`
						Close  []*float64 `json:"close"`
						Volume []*int64   `json:"volume"`
					} `json:"quote"`
				} `json:"indicators"`
			} `json:"result"`
			Error *struct {
				Code        string `json:"code"`
				Description string `json:"description"`
			} `json:"error"`
		} `json:"chart"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse chart response: %w", err)
	}
	if result.Chart.Error != nil {
		return nil, fmt.Errorf("chart API error: %s", result.Chart.Error.Description)
	}
	if len(result.Chart.Result) == 0 || len(result.Chart.Result[0].Indicators.Quote) == 0 {
		return []Bar{}, nil
	}

	series := result.Chart.Result[0]
	ohlcv := series.Indicators.Quote[0]

	bars := make([]Bar, 0, len(series.Timestamp))
	for i, ts := range series.Timestamp {
		if i >= len(ohlcv.Close) || ohlcv.Close[i] == nil {
			continue
		}
		bar := Bar{
			Date:  time.Unix(ts, 0).UTC(),
			Close: decimal.NewFromFloat(*ohlcv.Close[i]),
		}
		if i < len(ohlcv.Open) && ohlcv.Open[i] != nil {
			bar.Open = decimal.NewFromFloat(*ohlcv.Open[i])
		}
		if i < len(ohlcv.High) && ohlcv.High[i] != nil {
			bar.High = decimal.NewFromFloat(*ohlcv.High[i])
		}
		if i < len(ohlcv.Low) && ohlcv.Low[i] != nil {
			bar.Low = decimal.NewFromFloat(*ohlcv.Low[i])
		}
		if i < len(ohlcv.Volume) && ohlcv.Volume[i] != nil {
			bar.Volume = *ohlcv.Volume[i]
		}
		bars = append(bars, bar)
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })

	c.log.Debug().
		Str("symbol", symbol).
		Int("bars", len(bars)).
		Msg("Fetched historical bars")

	return bars, nil
}

func optDecimal(v *float64) *decimal.Decimal {
	if v == nil {
		return nil
	}
	d := decimal.NewFromFloat(*v)
	return &d
}
