// Package ecb provides daily EUR cross-rate fetching, caching and conversion.
package ecb

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/folioapp/folio/internal/clientdata"
	"github.com/folioapp/folio/internal/currency"
)

// ErrRatesUnavailable is returned when the feed cannot be fetched and no
// last-known-good cache entry exists. There is no valid basis for currency
// conversion in that state, so callers must abort.
var ErrRatesUnavailable = errors.New("fx rates unavailable")

const (
	defaultFeedURL = "https://www.ecb.europa.eu/stats/eurofxref/eurofxref-daily.xml"
	cacheSlot      = "eur_crosses"
)

// Snapshot is a point-in-time set of EUR-pivoted exchange rates plus the
// as-of date of the source feed. Immutable once constructed.
type Snapshot struct {
	EurUsd         decimal.Decimal `json:"eurUsd"`
	EurRon         decimal.Decimal `json:"eurRon"`
	RetrievedAtUtc time.Time       `json:"retrievedAtUtc"`
}

func (s Snapshot) valid() bool {
	return s.EurUsd.IsPositive() && s.EurRon.IsPositive()
}

// Client fetches the ECB daily reference rate feed.
type Client struct {
	feedURL string
	client  *http.Client
	cache   *clientdata.Repository
	log     zerolog.Logger
}

// NewClient creates a new ECB feed client.
// cache is optional - if nil, caching (and the fallback window) is disabled.
func NewClient(cache *clientdata.Repository, log zerolog.Logger) *Client {
	return &Client{
		feedURL: defaultFeedURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		cache:   cache,
		log:     log.With().Str("client", "ecb").Logger(),
	}
}

// GetRates returns the current EUR cross-rates, serving from cache when a
// fresh entry exists. On fetch or parse failure the last-known-good entry
// is used, if one is still inside its window; otherwise ErrRatesUnavailable.
func (c *Client) GetRates(ctx context.Context) (Snapshot, error) {
	if snap, ok := c.fromCache(clientdata.TableFxRates); ok {
		return snap, nil
	}

	snap, err := c.fetch(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("Could not fetch ECB FX rates, trying last known good cache")

		if fallback, ok := c.fromCache(clientdata.TableFxRatesFallback); ok {
			return fallback, nil
		}
		return Snapshot{}, fmt.Errorf("%w: %s", ErrRatesUnavailable, err)
	}

	if c.cache != nil {
		if err := c.cache.Store(clientdata.TableFxRates, cacheSlot, snap, clientdata.TTLFxRates); err != nil {
			c.log.Warn().Err(err).Msg("Failed to cache FX rates")
		}
		if err := c.cache.Store(clientdata.TableFxRatesFallback, cacheSlot, snap, clientdata.TTLFxRatesFallback); err != nil {
			c.log.Warn().Err(err).Msg("Failed to cache FX rates fallback")
		}
	}

	c.log.Info().
		Str("eur_usd", snap.EurUsd.String()).
		Str("eur_ron", snap.EurRon.String()).
		Time("as_of", snap.RetrievedAtUtc).
		Msg("Fetched FX rates")

	return snap, nil
}

// fromCache reads a non-expired snapshot from the given cache table. A
// corrupted entry with non-positive rates is treated as a miss.
func (c *Client) fromCache(table string) (Snapshot, bool) {
	if c.cache == nil {
		return Snapshot{}, false
	}

	data, err := c.cache.GetIfFresh(table, cacheSlot)
	if err != nil || data == nil {
		return Snapshot{}, false
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, false
	}
	if !snap.valid() {
		c.log.Warn().Str("table", table).Msg("Discarding cached FX rates with non-positive values")
		return Snapshot{}, false
	}

	return snap, true
}

// fetch retrieves and parses the daily feed.
func (c *Client) fetch(ctx context.Context) (Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.feedURL, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Snapshot{}, fmt.Errorf("feed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Snapshot{}, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read feed body: %w", err)
	}

	return parseRates(body)
}

// parseRates scans all Cube elements of the ECB daily feed. The element
// carrying a time attribute sets the as-of date (last occurrence wins);
// elements with currency+rate attributes populate the USD and RON rates.
// Non-parseable or non-positive rate values are skipped, not fatal.
func parseRates(body []byte) (Snapshot, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))

	var eurUsd, eurRon *decimal.Decimal
	var asOf *time.Time

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Snapshot{}, fmt.Errorf("failed to parse feed XML: %w", err)
		}

		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "Cube" {
			continue
		}

		var timeAttr, currencyAttr, rateAttr string
		for _, attr := range se.Attr {
			switch attr.Name.Local {
			case "time":
				timeAttr = attr.Value
			case "currency":
				currencyAttr = attr.Value
			case "rate":
				rateAttr = attr.Value
			}
		}

		if timeAttr != "" {
			if parsed, err := time.Parse("2006-01-02", timeAttr); err == nil {
				parsed = parsed.UTC()
				asOf = &parsed
			}
		}

		if currencyAttr == "" || rateAttr == "" {
			continue
		}

		rate, err := decimal.NewFromString(rateAttr)
		if err != nil || !rate.IsPositive() {
			continue
		}

		switch currency.Normalize(currencyAttr) {
		case "USD":
			eurUsd = &rate
		case "RON":
			eurRon = &rate
		}
	}

	if eurUsd == nil || eurRon == nil {
		return Snapshot{}, fmt.Errorf("feed does not contain USD and RON rates")
	}

	retrieved := time.Now().UTC()
	if asOf != nil {
		retrieved = *asOf
	}

	return Snapshot{
		EurUsd:         *eurUsd,
		EurRon:         *eurRon,
		RetrievedAtUtc: retrieved,
	}, nil
}

// Convert converts an amount between supported currencies using EUR as
// pivot. Same-currency conversions return the amount unchanged with no
// rounding applied; everything else is rounded half-away-from-zero to 4
// decimal places.
func Convert(amount decimal.Decimal, fromCurrency, toCurrency string, rates Snapshot) (decimal.Decimal, error) {
	from := currency.Normalize(fromCurrency)
	to := currency.Normalize(toCurrency)
	if from == to {
		return amount, nil
	}
	if !rates.valid() {
		return decimal.Zero, ErrRatesUnavailable
	}

	var amountInEur decimal.Decimal
	switch from {
	case "EUR":
		amountInEur = amount
	case "USD":
		amountInEur = amount.Div(rates.EurUsd)
	case "RON":
		amountInEur = amount.Div(rates.EurRon)
	default:
		return decimal.Zero, fmt.Errorf("%w: %q", currency.ErrUnsupported, from)
	}

	var converted decimal.Decimal
	switch to {
	case "EUR":
		converted = amountInEur
	case "USD":
		converted = amountInEur.Mul(rates.EurUsd)
	case "RON":
		converted = amountInEur.Mul(rates.EurRon)
	default:
		return decimal.Zero, fmt.Errorf("%w: %q", currency.ErrUnsupported, to)
	}

	return converted.Round(4), nil
}
