package ports

import (
	"context"

	"github.com/driftmark/keeper/internal/domain"
)

// ChainGateway is the keeper's view of the perp market and oracle
// contracts. Reads are cheap simulations; writes submit signed
// transactions from the keeper's single signing identity.
//
// Implementations must serialize writes: concurrent submissions from one
// account race on the sequence number and fail avoidably.
//
// Contract-level reverts come back as *domain.ChainError so callers can
// branch on the structured error code instead of message text.
type ChainGateway interface {
	// ListOpenPositionIDs enumerates every open position on the market.
	ListOpenPositionIDs(ctx context.Context) ([]uint64, error)

	// IsLiquidatable asks the contract whether a position is currently
	// below maintenance margin. Read-only simulation of the predicate.
	IsLiquidatable(ctx context.Context, id uint64) (bool, error)

	// Liquidate submits the liquidation transaction for a position.
	Liquidate(ctx context.Context, id uint64) (domain.TxResult, error)

	// ListPendingOrderIDs enumerates every pending conditional order.
	ListPendingOrderIDs(ctx context.Context) ([]uint64, error)

	// ShouldExecuteOrder asks whether an order's trigger condition holds.
	ShouldExecuteOrder(ctx context.Context, id uint64) (bool, error)

	// GetOrder fetches order details for logging. Returns a ChainError
	// with CodeOrderNotFound when the order no longer exists.
	GetOrder(ctx context.Context, id uint64) (domain.OrderInfo, error)

	// ExecuteOrder submits the execution transaction for a triggered
	// order. A zero Reward on success means the contract cancelled the
	// order for slippage and refunded the trader.
	ExecuteOrder(ctx context.Context, id uint64) (domain.TxResult, error)

	// ApplyFunding settles the periodic funding payment system-wide.
	ApplyFunding(ctx context.Context) (domain.TxResult, error)

	// UpdateOraclePrice pushes a fixed-point 7dp price for one asset.
	UpdateOraclePrice(ctx context.Context, asset string, scaled int64) (domain.TxResult, error)
}
