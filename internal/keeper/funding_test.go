package keeper

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/driftmark/keeper/internal/domain"
)

func TestApplyFunding_SettlementCounted(t *testing.T) {
	gw := &fakeGateway{}
	k := newTestKeeper(gw, &fakePrices{})

	k.applyFunding(context.Background())
	k.drainOutcomes()

	assert.Equal(t, 1, gw.fundingCount())
	assert.Equal(t, 1, k.stats.FundingApplied)
	assert.Equal(t, 0, k.stats.Errors)
}

func TestApplyFunding_OnChainGateNotElapsedIsBenign(t *testing.T) {
	gw := &fakeGateway{
		fundingFn: func() (domain.TxResult, error) {
			return domain.TxResult{}, &domain.ChainError{Code: domain.CodeFundingNotElapsed, Msg: "FundingIntervalNotElapsed"}
		},
	}
	k := newTestKeeper(gw, &fakePrices{})

	// El gate horario del contrato puede desfasarse con nuestro timer:
	// el revert se ignora sin tocar contadores.
	k.applyFunding(context.Background())
	k.applyFunding(context.Background())
	k.drainOutcomes()

	assert.Equal(t, 0, k.stats.FundingApplied)
	assert.Equal(t, 0, k.stats.Errors)
}

func TestApplyFunding_GenuineFailureCounts(t *testing.T) {
	gw := &fakeGateway{
		fundingFn: func() (domain.TxResult, error) {
			return domain.TxResult{}, errors.New("rpc: gas estimation failed")
		},
	}
	k := newTestKeeper(gw, &fakePrices{})

	k.applyFunding(context.Background())
	k.drainOutcomes()

	assert.Equal(t, 0, k.stats.FundingApplied)
	assert.Equal(t, 1, k.stats.Errors)
}
