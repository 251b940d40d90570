package domain

import (
	"errors"
	"fmt"
)

// Task identifies which maintenance task produced an outcome.
type Task string

const (
	TaskOracle      Task = "oracle"
	TaskLiquidation Task = "liquidation"
	TaskOrder       Task = "order"
	TaskFunding     Task = "funding"
)

// OutcomeKind is the classification of a single task execution.
// Exactly one kind describes any outcome.
type OutcomeKind int

const (
	// Success: the maintenance transaction landed and did what it should.
	Success OutcomeKind = iota
	// BenignSkip: not a success but not a fault either — the entity's state
	// was already resolved (closed position, cancelled order, funding not
	// yet due, slippage refund).
	BenignSkip
	// Failure: a genuine error worth counting and logging.
	Failure
)

// SkipReason refines a BenignSkip so the stats can keep distinct counters.
type SkipReason string

const (
	SkipNone       SkipReason = ""
	SkipGone       SkipReason = "gone"        // entity disappeared between enumeration and action
	SkipSlippage   SkipReason = "slippage"    // order cancelled on-chain, collateral refunded
	SkipOrphaned   SkipReason = "orphaned"    // SL/TP order whose position no longer exists
	SkipNotElapsed SkipReason = "not_elapsed" // funding interval not yet due on-chain
)

// TaskOutcome is the uniform result every task executor hands back to the
// scheduler. Created per invocation, folded into SessionStats, then dropped.
type TaskOutcome struct {
	Task   Task
	Kind   OutcomeKind
	Skip   SkipReason
	Reward int64 // fixed-point 7dp; only meaningful on Success
	TxHash string
	Detail string
}

// Succeeded builds a Success outcome.
func Succeeded(task Task, reward int64, txHash string) TaskOutcome {
	return TaskOutcome{Task: task, Kind: Success, Reward: reward, TxHash: txHash}
}

// Skipped builds a BenignSkip outcome.
func Skipped(task Task, reason SkipReason, detail string) TaskOutcome {
	return TaskOutcome{Task: task, Kind: BenignSkip, Skip: reason, Detail: detail}
}

// Failed builds a Failure outcome.
func Failed(task Task, detail string) TaskOutcome {
	return TaskOutcome{Task: task, Kind: Failure, Detail: detail}
}

// TxResult is what a successful write call returns. Reward is the keeper's
// cut in fixed-point 7dp units; zero when the contract paid nothing.
type TxResult struct {
	TxHash string
	Reward int64
}

// ErrorCode is the market contract's own error enum, decoded from revert
// data by the chain gateway. The keeper branches on these instead of
// matching substrings of RPC error messages.
type ErrorCode uint64

const (
	CodeNone              ErrorCode = 0
	CodePositionNotFound  ErrorCode = 20
	CodeOrderNotFound     ErrorCode = 24
	CodeFundingNotElapsed ErrorCode = 55
)

// ChainError is a contract-level revert surfaced as a Go error.
type ChainError struct {
	Code ErrorCode
	Msg  string
}

func (e *ChainError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("contract error #%d", e.Code)
	}
	return fmt.Sprintf("contract error #%d: %s", e.Code, e.Msg)
}

// CodeOf extracts the contract error code from err, or CodeNone if err is
// not a ChainError (transport faults, timeouts, etc.).
func CodeOf(err error) ErrorCode {
	var ce *ChainError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return CodeNone
}

// IsNotFound reports whether err means the position or order no longer
// exists on-chain — the already-resolved-by-someone-else class.
func IsNotFound(err error) bool {
	code := CodeOf(err)
	return code == CodePositionNotFound || code == CodeOrderNotFound
}

// IsFundingNotElapsed reports whether err is the contract's own hourly gate.
func IsFundingNotElapsed(err error) bool {
	return CodeOf(err) == CodeFundingNotElapsed
}
