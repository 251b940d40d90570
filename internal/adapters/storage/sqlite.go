package storage

// sqlite.go — journal de transacciones enviadas.
//
// Append-only: una fila por transacción de mantenimiento que el keeper
// envió (liquidación, ejecución de orden, funding, update de precio).
// El keeper nunca lo lee — es auditoría para el operador, no estado.
// Prune automático al arrancar: filas con más de 30 días.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/driftmark/keeper/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS tx_journal (
    id           TEXT PRIMARY KEY,
    task         TEXT     NOT NULL,
    entity_id    INTEGER  NOT NULL DEFAULT 0,
    asset        TEXT     NOT NULL DEFAULT '',
    tx_hash      TEXT     NOT NULL,
    reward       INTEGER  NOT NULL DEFAULT 0,
    submitted_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_journal_at   ON tx_journal(submitted_at DESC);
CREATE INDEX IF NOT EXISTS idx_journal_task ON tx_journal(task);
`

// retentionJournal: 30 días de historial es suficiente para auditar.
const retentionJournal = 30 * 24 * time.Hour

// SQLiteJournal implementa ports.Journal usando SQLite (pure Go, sin CGo).
type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLiteJournal abre (o crea) el journal en la ruta dada.
func NewSQLiteJournal(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteJournal: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteJournal: apply schema: %w", err)
	}

	j := &SQLiteJournal{db: db}
	j.pruneOld(context.Background())
	return j, nil
}

// RecordTx añade una fila al journal.
func (j *SQLiteJournal) RecordTx(ctx context.Context, rec ports.TxRecord) error {
	at := rec.SubmittedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO tx_journal (id, task, entity_id, asset, tx_hash, reward, submitted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), string(rec.Task), int64(rec.EntityID), rec.Asset, rec.TxHash, rec.Reward, at,
	)
	if err != nil {
		return fmt.Errorf("storage.RecordTx: %w", err)
	}
	return nil
}

// Close cierra la base de datos.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

// pruneOld borra las filas fuera del periodo de retención.
func (j *SQLiteJournal) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-retentionJournal)
	_, _ = j.db.ExecContext(ctx, `DELETE FROM tx_journal WHERE submitted_at < ?`, cutoff)
}
