package keeper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/driftmark/keeper/internal/domain"
)

// fakeGateway is a scriptable ports.ChainGateway. Zero value behaves as an
// empty, healthy chain; tests override the function fields they care about.
type fakeGateway struct {
	mu sync.Mutex

	positions    []uint64
	liquidatable map[uint64]bool
	orders       []uint64
	triggered    map[uint64]bool
	orderInfo    map[uint64]domain.OrderInfo

	listPositionsErr error
	listOrdersErr    error
	isLiquidatableFn func(id uint64) (bool, error)
	shouldExecuteFn  func(id uint64) (bool, error)
	liquidateFn      func(id uint64) (domain.TxResult, error)
	executeFn        func(id uint64) (domain.TxResult, error)
	fundingFn        func() (domain.TxResult, error)
	updatePriceFn    func(asset string, scaled int64) (domain.TxResult, error)

	// onListPositions runs inside ListOpenPositionIDs, before returning.
	onListPositions func()

	liquidateCalls []uint64
	executeCalls   []uint64
	fundingCalls   int
	priceCalls     []string
}

func (f *fakeGateway) ListOpenPositionIDs(ctx context.Context) ([]uint64, error) {
	if f.onListPositions != nil {
		f.onListPositions()
	}
	if f.listPositionsErr != nil {
		return nil, f.listPositionsErr
	}
	return append([]uint64(nil), f.positions...), nil
}

func (f *fakeGateway) IsLiquidatable(ctx context.Context, id uint64) (bool, error) {
	if f.isLiquidatableFn != nil {
		return f.isLiquidatableFn(id)
	}
	return f.liquidatable[id], nil
}

func (f *fakeGateway) Liquidate(ctx context.Context, id uint64) (domain.TxResult, error) {
	f.mu.Lock()
	f.liquidateCalls = append(f.liquidateCalls, id)
	f.mu.Unlock()

	if f.liquidateFn != nil {
		return f.liquidateFn(id)
	}
	return domain.TxResult{TxHash: fmt.Sprintf("0xliq%d", id)}, nil
}

func (f *fakeGateway) ListPendingOrderIDs(ctx context.Context) ([]uint64, error) {
	if f.listOrdersErr != nil {
		return nil, f.listOrdersErr
	}
	return append([]uint64(nil), f.orders...), nil
}

func (f *fakeGateway) ShouldExecuteOrder(ctx context.Context, id uint64) (bool, error) {
	if f.shouldExecuteFn != nil {
		return f.shouldExecuteFn(id)
	}
	return f.triggered[id], nil
}

func (f *fakeGateway) GetOrder(ctx context.Context, id uint64) (domain.OrderInfo, error) {
	if info, ok := f.orderInfo[id]; ok {
		return info, nil
	}
	return domain.OrderInfo{Type: domain.OrderLimit, IsLong: true, Asset: "BTC"}, nil
}

func (f *fakeGateway) ExecuteOrder(ctx context.Context, id uint64) (domain.TxResult, error) {
	f.mu.Lock()
	f.executeCalls = append(f.executeCalls, id)
	f.mu.Unlock()

	if f.executeFn != nil {
		return f.executeFn(id)
	}
	return domain.TxResult{TxHash: fmt.Sprintf("0xord%d", id)}, nil
}

func (f *fakeGateway) ApplyFunding(ctx context.Context) (domain.TxResult, error) {
	f.mu.Lock()
	f.fundingCalls++
	f.mu.Unlock()

	if f.fundingFn != nil {
		return f.fundingFn()
	}
	return domain.TxResult{TxHash: "0xfunding"}, nil
}

func (f *fakeGateway) UpdateOraclePrice(ctx context.Context, asset string, scaled int64) (domain.TxResult, error) {
	f.mu.Lock()
	f.priceCalls = append(f.priceCalls, asset)
	f.mu.Unlock()

	if f.updatePriceFn != nil {
		return f.updatePriceFn(asset, scaled)
	}
	return domain.TxResult{TxHash: "0x" + asset}, nil
}

func (f *fakeGateway) fundingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fundingCalls
}

// fakePrices is a scriptable ports.PriceSource.
type fakePrices struct {
	mu      sync.Mutex
	prices  map[string]decimal.Decimal
	err     error
	fetches int

	// started is closed on first fetch; block, if set, stalls the fetch
	// until closed. Used by the non-blocking-oracle tests.
	started chan struct{}
	block   chan struct{}
}

func (f *fakePrices) FetchPrices(ctx context.Context, feedSymbols []string) (map[string]decimal.Decimal, error) {
	f.mu.Lock()
	f.fetches++
	first := f.fetches == 1
	f.mu.Unlock()

	if f.started != nil && first {
		close(f.started)
	}
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}

	out := make(map[string]decimal.Decimal, len(f.prices))
	for k, v := range f.prices {
		out[k] = v
	}
	return out, nil
}

// fakeNotifier records status lines and summaries.
type fakeNotifier struct {
	mu         sync.Mutex
	notifies   int
	lastPrices []domain.PriceSnapshot
	summaries  int
}

func (f *fakeNotifier) Notify(_ context.Context, prices []domain.PriceSnapshot, _ domain.SessionStats) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifies++
	f.lastPrices = prices
	return nil
}

func (f *fakeNotifier) Summary(domain.SessionStats) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries++
}

// newTestKeeper builds a Keeper with short intervals and the given fakes,
// with both background schedules parked so individual tests opt in.
func newTestKeeper(gw *fakeGateway, src *fakePrices) *Keeper {
	cfg := DefaultConfig()
	cfg.PollInterval = 10 * time.Millisecond
	cfg.WritePacing = time.Millisecond
	cfg.Assets = []domain.Asset{
		{Symbol: "BTC", FeedSymbol: "BTCUSDT"},
		{Symbol: "ETH", FeedSymbol: "ETHUSDT"},
	}

	k := New(cfg, gw, src, nil, &fakeNotifier{})
	k.lastOracle = time.Now()
	k.lastFunding = time.Now()
	return k
}
