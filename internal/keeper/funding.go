package keeper

import (
	"context"
	"log/slog"

	"github.com/driftmark/keeper/internal/domain"
	"github.com/driftmark/keeper/internal/ports"
)

// applyFunding submits the system-wide funding settlement. One call, no
// per-position iteration — the contract applies funding globally. Runs in
// background once per funding interval.
//
// The contract keeps its own hourly gate, which can drift out of phase
// with our local timer; its "interval not yet elapsed" revert is expected
// and ignored.
func (k *Keeper) applyFunding(ctx context.Context) {
	res, err := k.gateway.ApplyFunding(ctx)
	if err != nil {
		if domain.IsFundingNotElapsed(err) {
			slog.Debug("funding: interval not yet elapsed on-chain")
			k.report(domain.Skipped(domain.TaskFunding, domain.SkipNotElapsed, err.Error()))
			return
		}
		slog.Error("funding: settlement failed", "err", err)
		k.report(domain.Failed(domain.TaskFunding, err.Error()))
		return
	}

	k.report(domain.Succeeded(domain.TaskFunding, 0, res.TxHash))
	k.recordTx(ctx, ports.TxRecord{
		Task:   domain.TaskFunding,
		TxHash: res.TxHash,
	})
	slog.Info("funding: settlement applied", "tx", res.TxHash)
}
