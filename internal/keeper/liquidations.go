package keeper

import (
	"context"
	"log/slog"

	"github.com/driftmark/keeper/internal/domain"
	"github.com/driftmark/keeper/internal/ports"
)

// checkLiquidations scans every open position and liquidates the ones the
// contract reports as undercollateralized. Awaited by the tick.
//
// Positions routinely disappear between enumeration, check, and submit —
// closed by their owner or by a competing keeper. That is resolved state,
// not a fault: not-found errors are swallowed without touching any
// counter. Only the enumeration call itself propagates an error.
func (k *Keeper) checkLiquidations(ctx context.Context) error {
	ids, err := k.gateway.ListOpenPositionIDs(ctx)
	if err != nil {
		return err
	}

	for _, id := range ids {
		liquidatable, err := k.gateway.IsLiquidatable(ctx, id)
		if err != nil {
			if domain.IsNotFound(err) {
				continue
			}
			slog.Error("liq: check failed", "position", id, "err", err)
			k.stats.Apply(domain.Failed(domain.TaskLiquidation, err.Error()))
			continue
		}
		if !liquidatable {
			continue
		}

		res, err := k.gateway.Liquidate(ctx, id)
		if err != nil {
			if domain.IsNotFound(err) {
				// Someone beat us to it (or the owner closed). Fine.
				slog.Debug("liq: position already resolved", "position", id)
				continue
			}
			slog.Error("liq: liquidation failed", "position", id, "err", err)
			k.stats.Apply(domain.Failed(domain.TaskLiquidation, err.Error()))
			continue
		}

		k.stats.Apply(domain.Succeeded(domain.TaskLiquidation, res.Reward, res.TxHash))
		k.recordTx(ctx, ports.TxRecord{
			Task:     domain.TaskLiquidation,
			EntityID: id,
			TxHash:   res.TxHash,
			Reward:   res.Reward,
		})

		slog.Info("liq: position liquidated",
			"position", id,
			"reward", domain.FormatAmount(res.Reward),
			"tx", res.TxHash,
		)
	}
	return nil
}
