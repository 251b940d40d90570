package keeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/driftmark/keeper/internal/domain"
	"github.com/driftmark/keeper/internal/ports"
)

// updateOracle pulls reference prices for every configured asset in one
// feed call and pushes them on-chain one by one. Runs in background; each
// per-asset result goes through the outcome queue.
//
// A feed failure aborts the whole refresh (one error). A single asset's
// write failure is counted and the remaining assets still get pushed.
func (k *Keeper) updateOracle(ctx context.Context) {
	if len(k.cfg.Assets) == 0 {
		return
	}

	symbols := make([]string, len(k.cfg.Assets))
	for i, a := range k.cfg.Assets {
		symbols[i] = a.FeedSymbol
	}

	prices, err := k.prices.FetchPrices(ctx, symbols)
	if err != nil {
		slog.Error("oracle: price fetch failed", "err", err)
		k.report(domain.Failed(domain.TaskOracle, "price fetch: "+err.Error()))
		return
	}

	for _, asset := range k.cfg.Assets {
		price, ok := prices[asset.FeedSymbol]
		if !ok {
			slog.Warn("oracle: no price in feed response", "asset", asset.Symbol, "feed_symbol", asset.FeedSymbol)
			continue
		}

		scaled, err := domain.ScalePrice(price)
		if err != nil {
			slog.Error("oracle: bad feed price", "asset", asset.Symbol, "price", price, "err", err)
			k.report(domain.Failed(domain.TaskOracle, err.Error()))
			continue
		}

		// All writes leave from the same signing identity; spacing them
		// out avoids sequence-number races with our own submissions.
		if err := k.pace.Wait(ctx); err != nil {
			return
		}

		res, err := k.gateway.UpdateOraclePrice(ctx, asset.Symbol, scaled)
		if err != nil {
			slog.Error("oracle: price update failed", "asset", asset.Symbol, "err", err)
			k.report(domain.Failed(domain.TaskOracle, asset.Symbol+": "+err.Error()))
			continue
		}

		k.setSnapshot(domain.PriceSnapshot{
			Asset:     asset.Symbol,
			Price:     price,
			Scaled:    scaled,
			FetchedAt: time.Now(),
		})
		k.report(domain.Succeeded(domain.TaskOracle, 0, res.TxHash))
		k.recordTx(ctx, ports.TxRecord{
			Task:   domain.TaskOracle,
			Asset:  asset.Symbol,
			TxHash: res.TxHash,
		})

		slog.Info("oracle: price updated", "asset", asset.Symbol, "price", price, "tx", res.TxHash)
	}
}
