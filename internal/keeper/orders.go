package keeper

import (
	"context"
	"log/slog"

	"github.com/driftmark/keeper/internal/domain"
	"github.com/driftmark/keeper/internal/ports"
)

// checkOrders scans every pending conditional order and executes the ones
// whose trigger condition holds. Awaited by the tick, after liquidations:
// a position that just got liquidated should not have its SL/TP order
// considered in the same cycle.
//
// Submit results classify three ways:
//   - non-zero reward: executed, count it, accumulate the reward
//   - zero reward: the contract cancelled the order for slippage and
//     refunded the trader — benign, own counter, no reward
//   - position-not-found revert: the order is permanently orphaned (its
//     position was closed, liquidated, or raced by a sibling SL/TP) —
//     benign, own counter, and it will keep appearing until pruned
//     on-chain, which is expected rather than an escalating fault
func (k *Keeper) checkOrders(ctx context.Context) error {
	ids, err := k.gateway.ListPendingOrderIDs(ctx)
	if err != nil {
		return err
	}

	for _, id := range ids {
		triggered, err := k.gateway.ShouldExecuteOrder(ctx, id)
		if err != nil {
			if domain.IsNotFound(err) {
				continue
			}
			slog.Error("orders: trigger check failed", "order", id, "err", err)
			k.stats.Apply(domain.Failed(domain.TaskOrder, err.Error()))
			continue
		}
		if !triggered {
			continue
		}

		info, err := k.gateway.GetOrder(ctx, id)
		if err != nil {
			if domain.IsNotFound(err) {
				continue
			}
			slog.Error("orders: fetch failed", "order", id, "err", err)
			k.stats.Apply(domain.Failed(domain.TaskOrder, err.Error()))
			continue
		}

		slog.Info("orders: trigger condition met",
			"order", id,
			"type", info.Type.String(),
			"direction", info.DirectionLabel(),
			"asset", info.Asset,
		)

		res, err := k.gateway.ExecuteOrder(ctx, id)
		switch {
		case err == nil && res.Reward > 0:
			k.stats.Apply(domain.Succeeded(domain.TaskOrder, res.Reward, res.TxHash))
			k.recordTx(ctx, ports.TxRecord{
				Task:     domain.TaskOrder,
				EntityID: id,
				TxHash:   res.TxHash,
				Reward:   res.Reward,
			})
			slog.Info("orders: executed",
				"order", id,
				"reward", domain.FormatAmount(res.Reward),
				"tx", res.TxHash,
			)

		case err == nil:
			// Zero reward on success is the contract's signal that the
			// price moved past the order's slippage tolerance between
			// trigger check and execution: order cancelled, collateral
			// refunded. Not a success, not a fault.
			k.stats.Apply(domain.Skipped(domain.TaskOrder, domain.SkipSlippage, "cancelled on slippage"))
			slog.Warn("orders: cancelled on slippage", "order", id, "tx", res.TxHash)

		case domain.CodeOf(err) == domain.CodePositionNotFound:
			k.stats.Apply(domain.Skipped(domain.TaskOrder, domain.SkipOrphaned, err.Error()))
			slog.Debug("orders: orphaned, position already closed", "order", id)

		case domain.CodeOf(err) == domain.CodeOrderNotFound:
			// Cancelled or executed by someone else since enumeration.
			slog.Debug("orders: order already resolved", "order", id)

		default:
			slog.Error("orders: execution failed", "order", id, "err", err)
			k.stats.Apply(domain.Failed(domain.TaskOrder, err.Error()))
		}
	}
	return nil
}
