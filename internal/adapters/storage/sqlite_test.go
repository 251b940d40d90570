package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftmark/keeper/internal/domain"
	"github.com/driftmark/keeper/internal/ports"
)

func newTestJournal(t *testing.T) *SQLiteJournal {
	t.Helper()
	j, err := NewSQLiteJournal(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordTx(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.RecordTx(ctx, ports.TxRecord{
		Task:     domain.TaskLiquidation,
		EntityID: 12,
		TxHash:   "0xabc",
		Reward:   500000000,
	}))
	require.NoError(t, j.RecordTx(ctx, ports.TxRecord{
		Task:   domain.TaskOracle,
		Asset:  "BTC",
		TxHash: "0xdef",
	}))

	var n int
	require.NoError(t, j.db.QueryRow(`SELECT COUNT(*) FROM tx_journal`).Scan(&n))
	assert.Equal(t, 2, n)

	var task string
	var reward int64
	require.NoError(t, j.db.QueryRow(
		`SELECT task, reward FROM tx_journal WHERE tx_hash = ?`, "0xabc",
	).Scan(&task, &reward))
	assert.Equal(t, "liquidation", task)
	assert.Equal(t, int64(500000000), reward)
}

func TestRecordTx_DefaultsSubmittedAt(t *testing.T) {
	j := newTestJournal(t)

	require.NoError(t, j.RecordTx(context.Background(), ports.TxRecord{
		Task:   domain.TaskFunding,
		TxHash: "0xf",
	}))

	var at time.Time
	require.NoError(t, j.db.QueryRow(`SELECT submitted_at FROM tx_journal`).Scan(&at))
	assert.WithinDuration(t, time.Now().UTC(), at, time.Minute)
}

func TestPruneOld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := NewSQLiteJournal(path)
	require.NoError(t, err)

	old := time.Now().UTC().Add(-retentionJournal - time.Hour)
	_, err = j.db.Exec(
		`INSERT INTO tx_journal (id, task, tx_hash, submitted_at) VALUES (?, ?, ?, ?)`,
		"stale", "oracle", "0xold", old,
	)
	require.NoError(t, err)
	require.NoError(t, j.RecordTx(context.Background(), ports.TxRecord{
		Task:   domain.TaskOracle,
		TxHash: "0xnew",
	}))
	require.NoError(t, j.Close())

	// Reopening prunes everything outside the retention window.
	j2, err := NewSQLiteJournal(path)
	require.NoError(t, err)
	defer j2.Close()

	var n int
	require.NoError(t, j2.db.QueryRow(`SELECT COUNT(*) FROM tx_journal`).Scan(&n))
	assert.Equal(t, 1, n)
}
