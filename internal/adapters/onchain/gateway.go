package onchain

// gateway.go — Chain gateway for the perp market and oracle contracts.
//
// Wraps the chain RPC behind the ports.ChainGateway interface:
//   - read calls are eth_call simulations (free, no state change)
//   - write calls simulate first, then sign and submit from the keeper's
//     single account, serialized behind a mutex so two of our own writes
//     can never race on the account nonce
//   - contract reverts are decoded into domain.ChainError so the core can
//     branch on the contract's error enum instead of message text

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/driftmark/keeper/internal/domain"
)

const (
	// Gas limits (conservative upper bounds, used when estimation fails)
	writeGasLimit = uint64(500_000)

	// Gas price cache refresh interval
	gasPriceUpdateInterval = 5 * time.Minute

	receiptTimeout      = 60 * time.Second
	receiptPollInterval = 3 * time.Second
)

// Contract ABIs
var (
	marketABI abi.ABI
	oracleABI abi.ABI
)

func init() {
	var err error

	marketABI, err = abi.JSON(strings.NewReader(`[
		{"name": "openPositionIds", "type": "function", "stateMutability": "view", "inputs": [], "outputs": [{"name": "", "type": "uint256[]"}]},
		{"name": "isLiquidatable", "type": "function", "stateMutability": "view", "inputs": [{"name": "positionId", "type": "uint256"}], "outputs": [{"name": "", "type": "bool"}]},
		{"name": "liquidate", "type": "function", "inputs": [{"name": "positionId", "type": "uint256"}], "outputs": []},
		{"name": "pendingOrderIds", "type": "function", "stateMutability": "view", "inputs": [], "outputs": [{"name": "", "type": "uint256[]"}]},
		{"name": "shouldExecuteOrder", "type": "function", "stateMutability": "view", "inputs": [{"name": "orderId", "type": "uint256"}], "outputs": [{"name": "", "type": "bool"}]},
		{"name": "getOrder", "type": "function", "stateMutability": "view", "inputs": [{"name": "orderId", "type": "uint256"}], "outputs": [{"name": "orderType", "type": "uint8"}, {"name": "isLong", "type": "bool"}, {"name": "asset", "type": "string"}]},
		{"name": "executeOrder", "type": "function", "inputs": [{"name": "orderId", "type": "uint256"}], "outputs": []},
		{"name": "applyFunding", "type": "function", "inputs": [], "outputs": []},
		{"name": "KeeperRewarded", "type": "event", "inputs": [{"name": "keeper", "type": "address", "indexed": true}, {"name": "reward", "type": "uint256", "indexed": false}]},
		{"name": "MarketError", "type": "error", "inputs": [{"name": "code", "type": "uint256"}]}
	]`))
	if err != nil {
		panic("market abi parse: " + err.Error())
	}

	oracleABI, err = abi.JSON(strings.NewReader(`[
		{"name": "setPrice", "type": "function", "inputs": [{"name": "asset", "type": "string"}, {"name": "price", "type": "int256"}], "outputs": []}
	]`))
	if err != nil {
		panic("oracle abi parse: " + err.Error())
	}
}

// Gateway implements ports.ChainGateway.
type Gateway struct {
	client  *ethclient.Client
	privKey []byte
	address common.Address
	chainID *big.Int
	market  common.Address
	oracle  common.Address

	// txMu serializes the nonce→sign→send sequence. One signing identity,
	// one write in flight.
	txMu sync.Mutex

	mu           sync.RWMutex
	cachedGasWei *big.Int
	gasUpdatedAt time.Time
}

// NewGateway connects to the given RPC and prepares the signing identity.
// privateKeyHex is without 0x prefix.
func NewGateway(rpcURL, privateKeyHex string, chainID int64, marketAddr, oracleAddr string) (*Gateway, error) {
	pkBytes, err := hex.DecodeString(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("onchain: decode private key: %w", err)
	}

	privKey, err := crypto.ToECDSA(pkBytes)
	if err != nil {
		return nil, fmt.Errorf("onchain: invalid private key: %w", err)
	}

	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("onchain: dial rpc %s: %w", rpcURL, err)
	}

	return &Gateway{
		client:  client,
		privKey: pkBytes,
		address: crypto.PubkeyToAddress(privKey.PublicKey),
		chainID: big.NewInt(chainID),
		market:  common.HexToAddress(marketAddr),
		oracle:  common.HexToAddress(oracleAddr),
	}, nil
}

// Address returns the keeper's signing address.
func (g *Gateway) Address() common.Address {
	return g.address
}

// Close releases the underlying RPC connection.
func (g *Gateway) Close() {
	g.client.Close()
}

// ListOpenPositionIDs enumerates all open positions on the market.
func (g *Gateway) ListOpenPositionIDs(ctx context.Context) ([]uint64, error) {
	vals, err := g.call(ctx, g.market, marketABI, "openPositionIds")
	if err != nil {
		return nil, fmt.Errorf("onchain: openPositionIds: %w", err)
	}
	return toIDs(vals)
}

// IsLiquidatable simulates the contract's liquidation predicate.
func (g *Gateway) IsLiquidatable(ctx context.Context, id uint64) (bool, error) {
	vals, err := g.call(ctx, g.market, marketABI, "isLiquidatable", new(big.Int).SetUint64(id))
	if err != nil {
		return false, err
	}
	return toBool(vals)
}

// Liquidate submits a liquidation transaction for the position.
func (g *Gateway) Liquidate(ctx context.Context, id uint64) (domain.TxResult, error) {
	return g.submit(ctx, g.market, marketABI, "liquidate", new(big.Int).SetUint64(id))
}

// ListPendingOrderIDs enumerates all pending conditional orders.
func (g *Gateway) ListPendingOrderIDs(ctx context.Context) ([]uint64, error) {
	vals, err := g.call(ctx, g.market, marketABI, "pendingOrderIds")
	if err != nil {
		return nil, fmt.Errorf("onchain: pendingOrderIds: %w", err)
	}
	return toIDs(vals)
}

// ShouldExecuteOrder simulates the order's trigger condition.
func (g *Gateway) ShouldExecuteOrder(ctx context.Context, id uint64) (bool, error) {
	vals, err := g.call(ctx, g.market, marketABI, "shouldExecuteOrder", new(big.Int).SetUint64(id))
	if err != nil {
		return false, err
	}
	return toBool(vals)
}

// GetOrder fetches order details for logging.
func (g *Gateway) GetOrder(ctx context.Context, id uint64) (domain.OrderInfo, error) {
	vals, err := g.call(ctx, g.market, marketABI, "getOrder", new(big.Int).SetUint64(id))
	if err != nil {
		return domain.OrderInfo{}, err
	}
	if len(vals) != 3 {
		return domain.OrderInfo{}, fmt.Errorf("onchain: getOrder: unexpected output arity %d", len(vals))
	}

	orderType, ok1 := vals[0].(uint8)
	isLong, ok2 := vals[1].(bool)
	asset, ok3 := vals[2].(string)
	if !ok1 || !ok2 || !ok3 {
		return domain.OrderInfo{}, fmt.Errorf("onchain: getOrder: unexpected output types")
	}

	return domain.OrderInfo{
		Type:   domain.OrderType(orderType),
		IsLong: isLong,
		Asset:  asset,
	}, nil
}

// ExecuteOrder submits the execution transaction for a triggered order.
func (g *Gateway) ExecuteOrder(ctx context.Context, id uint64) (domain.TxResult, error) {
	return g.submit(ctx, g.market, marketABI, "executeOrder", new(big.Int).SetUint64(id))
}

// ApplyFunding submits the system-wide funding settlement.
func (g *Gateway) ApplyFunding(ctx context.Context) (domain.TxResult, error) {
	return g.submit(ctx, g.market, marketABI, "applyFunding")
}

// UpdateOraclePrice pushes a fixed-point 7dp price for one asset.
func (g *Gateway) UpdateOraclePrice(ctx context.Context, asset string, scaled int64) (domain.TxResult, error) {
	return g.submit(ctx, g.oracle, oracleABI, "setPrice", asset, big.NewInt(scaled))
}

// call performs a read-only eth_call and unpacks the result.
func (g *Gateway) call(ctx context.Context, to common.Address, contract abi.ABI, method string, args ...any) ([]any, error) {
	callData, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("onchain: pack %s: %w", method, err)
	}

	result, err := g.client.CallContract(ctx, ethereum.CallMsg{
		From: g.address,
		To:   &to,
		Data: callData,
	}, nil)
	if err != nil {
		return nil, decodeRevert(err)
	}

	vals, err := contract.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("onchain: unpack %s: %w", method, err)
	}
	return vals, nil
}

// submit simulates, signs, and sends a write transaction, then waits for
// the receipt and extracts the keeper reward (if any) from the logs.
func (g *Gateway) submit(ctx context.Context, to common.Address, contract abi.ABI, method string, args ...any) (domain.TxResult, error) {
	callData, err := contract.Pack(method, args...)
	if err != nil {
		return domain.TxResult{}, fmt.Errorf("onchain: pack %s: %w", method, err)
	}

	g.txMu.Lock()
	defer g.txMu.Unlock()

	// Simulate first: a revert here costs nothing and carries the
	// contract's error code, which is how "not found" and "not elapsed"
	// get classified before any gas is spent.
	if _, err := g.client.CallContract(ctx, ethereum.CallMsg{
		From: g.address,
		To:   &to,
		Data: callData,
	}, nil); err != nil {
		return domain.TxResult{}, decodeRevert(err)
	}

	nonce, err := g.client.PendingNonceAt(ctx, g.address)
	if err != nil {
		return domain.TxResult{}, fmt.Errorf("onchain: %s: nonce: %w", method, err)
	}

	gasPrice, err := g.getGasPrice(ctx)
	if err != nil {
		return domain.TxResult{}, fmt.Errorf("onchain: %s: gas price: %w", method, err)
	}

	gasEstimate, err := g.client.EstimateGas(ctx, ethereum.CallMsg{
		From:     g.address,
		To:       &to,
		GasPrice: gasPrice,
		Data:     callData,
	})
	if err != nil {
		gasEstimate = writeGasLimit
		slog.Warn("onchain: gas estimate failed, using default", "method", method, "err", err, "limit", writeGasLimit)
	}
	// Add 20% buffer
	gasEstimate = gasEstimate * 12 / 10

	privKey, err := crypto.ToECDSA(g.privKey)
	if err != nil {
		return domain.TxResult{}, fmt.Errorf("onchain: private key: %w", err)
	}

	tx := types.NewTransaction(nonce, to, big.NewInt(0), gasEstimate, gasPrice, callData)
	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(g.chainID), privKey)
	if err != nil {
		return domain.TxResult{}, fmt.Errorf("onchain: %s: sign tx: %w", method, err)
	}

	if err := g.client.SendTransaction(ctx, signedTx); err != nil {
		return domain.TxResult{}, fmt.Errorf("onchain: %s: send tx: %w", method, err)
	}

	txHash := signedTx.Hash()
	slog.Debug("onchain: transaction sent", "method", method, "tx", txHash.Hex())

	receiptCtx, cancel := context.WithTimeout(ctx, receiptTimeout)
	defer cancel()

	receipt, err := g.waitForReceipt(receiptCtx, txHash)
	if err != nil {
		return domain.TxResult{}, fmt.Errorf("onchain: %s: wait receipt %s: %w", method, txHash.Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		// The simulation passed but the state moved under us before
		// inclusion. Re-simulate to recover the contract's error code.
		if _, simErr := g.client.CallContract(ctx, ethereum.CallMsg{
			From: g.address,
			To:   &to,
			Data: callData,
		}, receipt.BlockNumber); simErr != nil {
			return domain.TxResult{}, decodeRevert(simErr)
		}
		return domain.TxResult{}, fmt.Errorf("onchain: %s: tx reverted: %s", method, txHash.Hex())
	}

	return domain.TxResult{
		TxHash: txHash.Hex(),
		Reward: g.rewardFromReceipt(receipt),
	}, nil
}

// rewardFromReceipt scans the logs for a KeeperRewarded event paid to us.
// Absent event means the contract paid nothing (zero reward).
func (g *Gateway) rewardFromReceipt(receipt *types.Receipt) int64 {
	event := marketABI.Events["KeeperRewarded"]

	for _, lg := range receipt.Logs {
		if len(lg.Topics) < 2 || lg.Topics[0] != event.ID {
			continue
		}
		if common.BytesToAddress(lg.Topics[1].Bytes()) != g.address {
			continue
		}

		vals, err := event.Inputs.NonIndexed().Unpack(lg.Data)
		if err != nil || len(vals) == 0 {
			slog.Warn("onchain: malformed KeeperRewarded event", "tx", receipt.TxHash.Hex(), "err", err)
			return 0
		}
		reward, ok := vals[0].(*big.Int)
		if !ok || !reward.IsInt64() {
			slog.Warn("onchain: keeper reward out of range", "tx", receipt.TxHash.Hex())
			return 0
		}
		return reward.Int64()
	}
	return 0
}

// getGasPrice returns the current gas price, cached to avoid hammering
// the RPC on every write.
func (g *Gateway) getGasPrice(ctx context.Context) (*big.Int, error) {
	g.mu.RLock()
	cached := g.cachedGasWei
	updatedAt := g.gasUpdatedAt
	g.mu.RUnlock()

	if cached != nil && time.Since(updatedAt) < gasPriceUpdateInterval {
		return cached, nil
	}

	price, err := g.client.SuggestGasPrice(ctx)
	if err != nil {
		if cached != nil {
			return cached, nil
		}
		return nil, err
	}

	// Add 10% buffer for faster inclusion (copy to avoid mutating the
	// SuggestGasPrice return)
	buffered := new(big.Int).Mul(price, big.NewInt(11))
	buffered.Div(buffered, big.NewInt(10))

	g.mu.Lock()
	g.cachedGasWei = buffered
	g.gasUpdatedAt = time.Now()
	g.mu.Unlock()

	return buffered, nil
}

// waitForReceipt polls for a transaction receipt until confirmed or timeout.
func (g *Gateway) waitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			receipt, err := g.client.TransactionReceipt(ctx, txHash)
			if err != nil {
				continue // not yet mined
			}
			return receipt, nil
		}
	}
}

// toIDs converts a single uint256[] output to []uint64.
func toIDs(vals []any) ([]uint64, error) {
	if len(vals) != 1 {
		return nil, fmt.Errorf("onchain: unexpected output arity %d", len(vals))
	}
	raw, ok := vals[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("onchain: unexpected output type %T", vals[0])
	}

	ids := make([]uint64, 0, len(raw))
	for _, v := range raw {
		if !v.IsUint64() {
			return nil, fmt.Errorf("onchain: id out of range: %s", v)
		}
		ids = append(ids, v.Uint64())
	}
	return ids, nil
}

// toBool converts a single bool output.
func toBool(vals []any) (bool, error) {
	if len(vals) != 1 {
		return false, fmt.Errorf("onchain: unexpected output arity %d", len(vals))
	}
	b, ok := vals[0].(bool)
	if !ok {
		return false, fmt.Errorf("onchain: unexpected output type %T", vals[0])
	}
	return b, nil
}
