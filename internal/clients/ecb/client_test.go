package ecb

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folioapp/folio/internal/clientdata"
	"github.com/folioapp/folio/internal/currency"
)

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<gesmes:Envelope xmlns:gesmes="http://www.gesmes.org/xml/2002-08-01" xmlns="http://www.ecb.int/vocabulary/2002-08-01/eurofxref">
	<gesmes:subject>Reference rates</gesmes:subject>
	<Cube>
		<Cube time="2026-08-28">
			<Cube currency="USD" rate="1.1000"/>
			<Cube currency="JPY" rate="163.45"/>
			<Cube currency="RON" rate="4.9750"/>
		</Cube>
	</Cube>
</gesmes:Envelope>`

func newCacheRepo(t *testing.T) *clientdata.Repository {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
CREATE TABLE fx_rates (slot TEXT PRIMARY KEY, data TEXT NOT NULL, expires_at INTEGER NOT NULL);
CREATE TABLE fx_rates_fallback (slot TEXT PRIMARY KEY, data TEXT NOT NULL, expires_at INTEGER NOT NULL);
CREATE TABLE quotes (symbol TEXT PRIMARY KEY, data TEXT NOT NULL, expires_at INTEGER NOT NULL);
`)
	require.NoError(t, err)

	return clientdata.NewRepository(db)
}

func TestParseRates(t *testing.T) {
	snap, err := parseRates([]byte(feedXML))
	require.NoError(t, err)

	assert.True(t, snap.EurUsd.Equal(decimal.RequireFromString("1.1000")), "EurUsd = %s", snap.EurUsd)
	assert.True(t, snap.EurRon.Equal(decimal.RequireFromString("4.9750")), "EurRon = %s", snap.EurRon)
	assert.Equal(t, time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC), snap.RetrievedAtUtc)
}

func TestParseRatesSkipsMalformedRate(t *testing.T) {
	xml := `<Envelope><Cube><Cube time="2026-08-28">
		<Cube currency="USD" rate="not-a-number"/>
		<Cube currency="USD" rate="1.09"/>
		<Cube currency="RON" rate="4.97"/>
	</Cube></Cube></Envelope>`

	snap, err := parseRates([]byte(xml))
	require.NoError(t, err)
	assert.True(t, snap.EurUsd.Equal(decimal.RequireFromString("1.09")))
}

func TestParseRatesMissingRonFails(t *testing.T) {
	xml := `<Envelope><Cube><Cube time="2026-08-28">
		<Cube currency="USD" rate="1.10"/>
	</Cube></Cube></Envelope>`

	_, err := parseRates([]byte(xml))
	assert.Error(t, err)
}

func TestParseRatesLastTimeWins(t *testing.T) {
	xml := `<Envelope><Cube>
		<Cube time="2026-08-27">
			<Cube currency="USD" rate="1.08"/>
			<Cube currency="RON" rate="4.96"/>
		</Cube>
		<Cube time="2026-08-28">
			<Cube currency="USD" rate="1.10"/>
			<Cube currency="RON" rate="4.97"/>
		</Cube>
	</Cube></Envelope>`

	snap, err := parseRates([]byte(xml))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC), snap.RetrievedAtUtc)
}

func TestGetRatesCachesFeed(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		_, _ = w.Write([]byte(feedXML))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	snap, err := client.GetRates(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.EurUsd.Equal(decimal.RequireFromString("1.1000")))

	// Second call is served from the primary cache slot
	_, err = client.GetRates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, requests)
}

func TestGetRatesUsesFallbackWhenFeedDown(t *testing.T) {
	healthy := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(feedXML))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	// Seed both cache slots
	_, err := client.GetRates(context.Background())
	require.NoError(t, err)

	// Expire the primary slot, keep the fallback
	require.NoError(t, client.cache.Delete(clientdata.TableFxRates, cacheSlot))
	healthy = false

	snap, err := client.GetRates(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.EurUsd.Equal(decimal.RequireFromString("1.1000")))
}

func TestGetRatesFailsWithoutFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.GetRates(context.Background())
	assert.ErrorIs(t, err, ErrRatesUnavailable)
}

func TestGetRatesDiscardsCorruptedCache(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		_, _ = w.Write([]byte(feedXML))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	// A cached snapshot with zero rates must not be served
	corrupted := Snapshot{RetrievedAtUtc: time.Now().UTC()}
	require.NoError(t, client.cache.Store(clientdata.TableFxRates, cacheSlot, corrupted, clientdata.TTLFxRates))

	snap, err := client.GetRates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, requests)
	assert.True(t, snap.EurUsd.Equal(decimal.RequireFromString("1.1000")))
}

func TestConvertIdentity(t *testing.T) {
	rates := testRates()

	amount := decimal.RequireFromString("123.456789")
	got, err := Convert(amount, "usd", " USD ", rates)
	require.NoError(t, err)
	// Identity conversions apply no rounding
	assert.True(t, got.Equal(amount), "got %s", got)
}

func TestConvertThroughPivot(t *testing.T) {
	rates := testRates()

	// 1200 USD -> EUR at EUR/USD 1.10
	got, err := Convert(decimal.NewFromInt(1200), "USD", "EUR", rates)
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.RequireFromString("1090.9091")), "got %s", got)

	// Pivot consistency: USD -> EUR -> RON equals USD -> RON up to 4dp rounding
	viaEur, err := Convert(decimal.NewFromInt(500), "USD", "EUR", rates)
	require.NoError(t, err)
	step, err := Convert(viaEur, "EUR", "RON", rates)
	require.NoError(t, err)
	direct, err := Convert(decimal.NewFromInt(500), "USD", "RON", rates)
	require.NoError(t, err)
	assert.True(t, step.Sub(direct).Abs().LessThanOrEqual(decimal.RequireFromString("0.0005")),
		"pivot %s vs direct %s", step, direct)
}

func TestConvertUnsupportedCurrency(t *testing.T) {
	rates := testRates()

	_, err := Convert(decimal.NewFromInt(10), "GBP", "EUR", rates)
	assert.ErrorIs(t, err, currency.ErrUnsupported)

	_, err = Convert(decimal.NewFromInt(10), "EUR", "CHF", rates)
	assert.ErrorIs(t, err, currency.ErrUnsupported)
}

func TestConvertZeroRates(t *testing.T) {
	_, err := Convert(decimal.NewFromInt(10), "USD", "EUR", Snapshot{})
	assert.ErrorIs(t, err, ErrRatesUnavailable)

	// Identity conversions need no rates at all
	got, err := Convert(decimal.NewFromInt(10), "EUR", "EUR", Snapshot{})
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(10)))
}

func testRates() Snapshot {
	return Snapshot{
		EurUsd:         decimal.RequireFromString("1.10"),
		EurRon:         decimal.RequireFromString("4.975"),
		RetrievedAtUtc: time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC),
	}
}

func newTestClient(t *testing.T, feedURL string) *Client {
	client := NewClient(newCacheRepo(t), zerolog.Nop())
	client.feedURL = feedURL
	return client
}
