// Package params defines the typed contract every queryable parameter set
// implements, plus the codec that canonicalizes a (route, parameters) pair
// into a collision-free cache key.
package params

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// QueryParams is the structural contract for upstream query parameters. It
// makes two things explicit that cannot be inferred from a loose map: which
// fields participate in the cache key, and which list-valued fields are
// order-insensitive (safe to sort during canonicalization).
type QueryParams interface {
	// Provider returns the upstream data provider name (e.g. "yfinance").
	Provider() string
	// Fields returns the query fields by wire name. Nil values are omitted
	// from both the querystring and the cache key.
	Fields() map[string]any
	// CacheFields returns the names of the cache-relevant fields.
	CacheFields() []string
	// OrderInsensitiveFields names the list-valued fields whose element order
	// carries no meaning. Only these may be sorted when building cache keys.
	OrderInsensitiveFields() []string
}

// EquityHistoricalParams queries historical OHLCV data for one or more
// symbols over a date range.
type EquityHistoricalParams struct {
	Symbols      []string  `validate:"required,min=1,dive,required"`
	StartDate    time.Time `validate:"required"`
	EndDate      time.Time `validate:"required,gtfield=StartDate"`
	Interval     string    `validate:"omitempty,oneof=1m 5m 15m 30m 1h 4h 1d 1w 1M"`
	DataProvider string    `validate:"required"`
}

// Validate checks the parameter set with the shared validator.
func (p EquityHistoricalParams) Validate(validate *validator.Validate) error {
	return validate.Struct(p)
}

// Provider implements QueryParams.
func (p EquityHistoricalParams) Provider() string {
	return p.DataProvider
}

// Fields implements QueryParams. Symbols are upper-cased so "aapl" and "AAPL"
// address the same upstream series and the same cache entry.
func (p EquityHistoricalParams) Fields() map[string]any {
	symbols := make([]string, len(p.Symbols))
	for i, s := range p.Symbols {
		symbols[i] = strings.ToUpper(s)
	}

	fields := map[string]any{
		"symbol":     symbols,
		"start_date": p.StartDate,
		"end_date":   p.EndDate,
		"provider":   p.DataProvider,
	}
	if p.Interval != "" {
		fields["interval"] = p.Interval
	}

	return fields
}

// CacheFields implements QueryParams.
func (p EquityHistoricalParams) CacheFields() []string {
	return []string{"symbol", "start_date", "end_date", "interval", "provider"}
}

// OrderInsensitiveFields implements QueryParams. Requesting ["AAPL","MSFT"]
// and ["MSFT","AAPL"] is the same query.
func (p EquityHistoricalParams) OrderInsensitiveFields() []string {
	return []string{"symbol"}
}

// RawParams adapts an explicit field map to the QueryParams contract. It
// exists for callers composing ad hoc queries; unlike a bare map it still
// forces the cache-relevance and order-sensitivity declarations.
type RawParams struct {
	ProviderName     string
	Values           map[string]any
	Cacheable        []string
	OrderInsensitive []string
}

// Provider implements QueryParams.
func (p RawParams) Provider() string {
	return p.ProviderName
}

// Fields implements QueryParams.
func (p RawParams) Fields() map[string]any {
	return p.Values
}

// CacheFields implements QueryParams.
func (p RawParams) CacheFields() []string {
	return p.Cacheable
}

// OrderInsensitiveFields implements QueryParams.
func (p RawParams) OrderInsensitiveFields() []string {
	return p.OrderInsensitive
}
