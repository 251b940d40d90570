package domain

import "time"

// SessionStats accumulates counters for the life of the process. It is
// mutated only from the scheduler goroutine; background tasks report
// through the scheduler's outcome queue instead of touching it directly.
// All counters are monotonically non-decreasing.
type SessionStats struct {
	StartedAt time.Time

	OracleUpdates     int
	Liquidations      int
	OrdersExecuted    int
	OrdersSlippage    int // executions cancelled on-chain for slippage, collateral refunded
	OrdersOrphaned    int // SL/TP orders whose position was already gone
	FundingApplied    int
	Errors            int
	RewardEarned      int64 // fixed-point 7dp accumulator
}

// NewSessionStats starts the session clock.
func NewSessionStats() SessionStats {
	return SessionStats{StartedAt: time.Now()}
}

// Apply folds one task outcome into the counters.
func (s *SessionStats) Apply(o TaskOutcome) {
	switch o.Kind {
	case Success:
		s.RewardEarned += o.Reward
		switch o.Task {
		case TaskOracle:
			s.OracleUpdates++
		case TaskLiquidation:
			s.Liquidations++
		case TaskOrder:
			s.OrdersExecuted++
		case TaskFunding:
			s.FundingApplied++
		}
	case BenignSkip:
		switch o.Skip {
		case SkipSlippage:
			s.OrdersSlippage++
		case SkipOrphaned:
			s.OrdersOrphaned++
		}
		// SkipGone and SkipNotElapsed are expected noise — no counter.
	case Failure:
		s.Errors++
	}
}

// Elapsed returns how long the session has been running.
func (s *SessionStats) Elapsed() time.Duration {
	return time.Since(s.StartedAt)
}
