package ports

import (
	"context"

	"github.com/shopspring/decimal"
)

// PriceSource fetches current reference prices from an external market
// data feed. Fails as a whole when the upstream is unavailable; assets
// the feed doesn't know are simply absent from the result.
type PriceSource interface {
	// FetchPrices returns feed-symbol → price for the requested symbols.
	FetchPrices(ctx context.Context, feedSymbols []string) (map[string]decimal.Decimal, error)
}
