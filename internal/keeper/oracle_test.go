package keeper

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/driftmark/keeper/internal/domain"
)

func TestUpdateOracle_PushesEveryConfiguredAsset(t *testing.T) {
	gw := &fakeGateway{}
	src := &fakePrices{prices: map[string]decimal.Decimal{
		"BTCUSDT": decimal.RequireFromString("67890.12"),
		"ETHUSDT": decimal.RequireFromString("3456.789"),
	}}
	k := newTestKeeper(gw, src)

	k.updateOracle(context.Background())
	k.drainOutcomes()

	assert.Equal(t, []string{"BTC", "ETH"}, gw.priceCalls)
	assert.Equal(t, 2, k.stats.OracleUpdates)
	assert.Equal(t, 0, k.stats.Errors)

	snaps := k.latestPrices()
	if assert.Len(t, snaps, 2) {
		assert.Equal(t, "BTC", snaps[0].Asset)
		assert.Equal(t, int64(678901200000), snaps[0].Scaled)
		assert.Equal(t, "ETH", snaps[1].Asset)
		assert.Equal(t, int64(34567890000), snaps[1].Scaled)
	}
}

func TestUpdateOracle_FeedFailureIsOneErrorAndKeepsSnapshots(t *testing.T) {
	gw := &fakeGateway{}
	src := &fakePrices{prices: map[string]decimal.Decimal{
		"BTCUSDT": decimal.RequireFromString("50000"),
		"ETHUSDT": decimal.RequireFromString("3000"),
	}}
	k := newTestKeeper(gw, src)

	k.updateOracle(context.Background())
	k.drainOutcomes()
	before := k.latestPrices()

	src.mu.Lock()
	src.err = errors.New("binance: 503 service unavailable")
	src.mu.Unlock()

	k.updateOracle(context.Background())
	k.drainOutcomes()

	assert.Equal(t, 1, k.stats.Errors)
	assert.Equal(t, 2, k.stats.OracleUpdates)
	// El último precio conocido no se pisa con un fetch fallido.
	assert.Equal(t, before, k.latestPrices())
}

func TestUpdateOracle_MissingFeedSymbolSkipsJustThatAsset(t *testing.T) {
	gw := &fakeGateway{}
	src := &fakePrices{prices: map[string]decimal.Decimal{
		"ETHUSDT": decimal.RequireFromString("3000"),
	}}
	k := newTestKeeper(gw, src)

	k.updateOracle(context.Background())
	k.drainOutcomes()

	assert.Equal(t, []string{"ETH"}, gw.priceCalls)
	assert.Equal(t, 1, k.stats.OracleUpdates)
	assert.Equal(t, 0, k.stats.Errors)
}

func TestUpdateOracle_WriteFailureDoesNotStopRemainingAssets(t *testing.T) {
	gw := &fakeGateway{
		updatePriceFn: func(asset string, scaled int64) (domain.TxResult, error) {
			if asset == "BTC" {
				return domain.TxResult{}, errors.New("rpc: underpriced")
			}
			return domain.TxResult{TxHash: "0x" + asset}, nil
		},
	}
	src := &fakePrices{prices: map[string]decimal.Decimal{
		"BTCUSDT": decimal.RequireFromString("50000"),
		"ETHUSDT": decimal.RequireFromString("3000"),
	}}
	k := newTestKeeper(gw, src)

	k.updateOracle(context.Background())
	k.drainOutcomes()

	assert.Equal(t, []string{"BTC", "ETH"}, gw.priceCalls)
	assert.Equal(t, 1, k.stats.OracleUpdates)
	assert.Equal(t, 1, k.stats.Errors)

	snaps := k.latestPrices()
	if assert.Len(t, snaps, 1) {
		assert.Equal(t, "ETH", snaps[0].Asset)
	}
}

func TestUpdateOracle_NegativePriceRejectedBeforeWriting(t *testing.T) {
	gw := &fakeGateway{}
	src := &fakePrices{prices: map[string]decimal.Decimal{
		"BTCUSDT": decimal.RequireFromString("-1"),
		"ETHUSDT": decimal.RequireFromString("3000"),
	}}
	k := newTestKeeper(gw, src)

	k.updateOracle(context.Background())
	k.drainOutcomes()

	assert.Equal(t, []string{"ETH"}, gw.priceCalls)
	assert.Equal(t, 1, k.stats.Errors)
}
