package prices

import (
	"context"
	"fmt"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// Feed-wide pacing: one ticker snapshot per second is far below Binance's
// public limits and plenty for an oracle that refreshes every ~30s.
const fetchRatePerSec = 1

// Client implements ports.PriceSource against Binance's public ticker
// endpoint. Read-only, no API keys needed.
type Client struct {
	api     *binance.Client
	limiter *rate.Limiter
}

// NewClient crea un price source contra la API pública de Binance.
func NewClient() *Client {
	c := binance.NewClient("", "")
	c.HTTPClient.Timeout = 10 * time.Second
	return &Client{
		api:     c,
		limiter: rate.NewLimiter(fetchRatePerSec, 1),
	}
}

// FetchPrices fetches current prices for the given feed symbols in one
// call. Fails as a whole on upstream unavailability; symbols the exchange
// doesn't know are absent from the result rather than an error.
func (c *Client) FetchPrices(ctx context.Context, feedSymbols []string) (map[string]decimal.Decimal, error) {
	if len(feedSymbols) == 0 {
		return map[string]decimal.Decimal{}, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("prices: rate limiter: %w", err)
	}

	ticks, err := c.api.NewListPricesService().Symbols(feedSymbols).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("prices: fetch %d symbols: %w", len(feedSymbols), err)
	}

	out := make(map[string]decimal.Decimal, len(ticks))
	for _, t := range ticks {
		price, err := decimal.NewFromString(t.Price)
		if err != nil {
			return nil, fmt.Errorf("prices: parse %s price %q: %w", t.Symbol, t.Price, err)
		}
		out[t.Symbol] = price
	}
	return out, nil
}
