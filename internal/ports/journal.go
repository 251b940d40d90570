package ports

import (
	"context"
	"time"

	"github.com/driftmark/keeper/internal/domain"
)

// TxRecord is one submitted maintenance transaction, for the audit journal.
type TxRecord struct {
	Task        domain.Task
	EntityID    uint64 // position or order id; zero for funding and oracle
	Asset       string // set for oracle updates
	TxHash      string
	Reward      int64 // fixed-point 7dp
	SubmittedAt time.Time
}

// Journal is an append-only log of submitted transactions. Write-only from
// the keeper's point of view: nothing in the steady-state loop reads it
// back, and statistics never depend on it.
type Journal interface {
	// RecordTx appends one record. Best-effort — callers log and move on
	// when it fails.
	RecordTx(ctx context.Context, rec TxRecord) error

	Close() error
}
