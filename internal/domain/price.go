package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PriceDecimals is the fixed-point precision used on-chain: 7 decimal
// places, i.e. a stored price is floor(price × 10^7).
const PriceDecimals = 7

// Asset is one entry of the keeper's configured asset list.
type Asset struct {
	Symbol     string // on-chain symbol, e.g. "BTC"
	FeedSymbol string // external price-feed symbol, e.g. "BTCUSDT"
}

// PriceSnapshot is the last reference price pushed for an asset. One per
// asset, overwritten in place on each successful oracle refresh.
type PriceSnapshot struct {
	Asset     string
	Price     decimal.Decimal
	Scaled    int64
	FetchedAt time.Time
}

// ScalePrice converts a reference price to its fixed-point representation.
// Negative inputs are rejected — a negative oracle price is always a feed
// defect, never something to push on-chain.
func ScalePrice(price decimal.Decimal) (int64, error) {
	if price.IsNegative() {
		return 0, fmt.Errorf("domain.ScalePrice: negative price %s", price)
	}
	return price.Shift(PriceDecimals).Floor().IntPart(), nil
}

// FormatAmount renders a fixed-point 7dp amount for humans.
func FormatAmount(fp int64) string {
	return decimal.New(fp, -PriceDecimals).String()
}
