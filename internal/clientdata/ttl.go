package clientdata

import "time"

// TTL constants for different data types.
// These are added to time.Now() when storing to calculate expires_at.
const (
	// TTLFxRates covers the primary FX slot; the ECB feed updates once a
	// business day, 30 minutes keeps us from hammering it.
	TTLFxRates = 30 * time.Minute

	// TTLFxRatesFallback is the last-known-good window. Conversions are
	// never performed with rates older than this.
	TTLFxRatesFallback = 48 * time.Hour

	// TTLQuote - market quotes change constantly
	TTLQuote = 45 * time.Second
)
