// Package session persists batch checkpoints so an interrupted run can be
// resumed or its partial output recovered. The store makes no decision
// about which action to take; it only exposes the queryable state.
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/ddtlab/distance-cli/internal/model"
)

// Store is the SQLite-backed session recovery store.
type Store struct {
	db *sql.DB
}

const sessionMigration = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	total_rows INTEGER NOT NULL,
	batch_size INTEGER NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS session_batches (
	session_id   TEXT NOT NULL REFERENCES sessions(id),
	batch_index  INTEGER NOT NULL,
	rows         TEXT NOT NULL,
	committed_at DATETIME NOT NULL,
	PRIMARY KEY (session_id, batch_index)
);
`

// Open opens (creating if needed) the session database at path and
// configures WAL mode. It may share a database file with the geocode
// cache; the tables are disjoint.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "session: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "session: exec %s", pragma)
		}
	}
	if _, err := db.Exec(sessionMigration); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "session: migrate")
	}
	return &Store{db: db}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create registers a new session manifest.
func (s *Store) Create(ctx context.Context, sessionID string, totalRows, batchSize int) (*model.SessionManifest, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, total_rows, batch_size, created_at) VALUES (?, ?, ?, ?)`,
		sessionID, totalRows, batchSize, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "session: create %s", sessionID)
	}
	return &model.SessionManifest{
		SessionID: sessionID,
		TotalRows: totalRows,
		BatchSize: batchSize,
		CreatedAt: now,
	}, nil
}

// LoadManifest returns the manifest for a session, or nil if the session
// is unknown.
func (s *Store) LoadManifest(ctx context.Context, sessionID string) (*model.SessionManifest, error) {
	var m model.SessionManifest
	err := s.db.QueryRowContext(ctx,
		`SELECT id, total_rows, batch_size, created_at FROM sessions WHERE id = ?`,
		sessionID,
	).Scan(&m.SessionID, &m.TotalRows, &m.BatchSize, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "session: load manifest %s", sessionID)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT batch_index FROM session_batches WHERE session_id = ? ORDER BY batch_index`,
		sessionID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "session: load completed batches %s", sessionID)
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var idx int
		if err := rows.Scan(&idx); err != nil {
			return nil, eris.Wrap(err, "session: scan batch index")
		}
		m.Completed = append(m.Completed, idx)
	}
	return &m, eris.Wrap(rows.Err(), "session: iterate batch indices")
}

// CommitBatch durably records a completed batch. The record's rows and its
// appearance in the manifest commit in one transaction, so the manifest
// never names a batch whose data is not durable. The record index must be
// the next unseen index for the session.
func (s *Store) CommitBatch(ctx context.Context, rec model.BatchRecord) error {
	rowsJSON, err := json.Marshal(rec.Rows)
	if err != nil {
		return eris.Wrap(err, "session: marshal batch rows")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "session: begin commit")
	}
	defer tx.Rollback() //nolint:errcheck

	var next int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(batch_index), -1) + 1 FROM session_batches WHERE session_id = ?`,
		rec.SessionID,
	).Scan(&next)
	if err != nil {
		return eris.Wrap(err, "session: next batch index")
	}
	if rec.Index != next {
		return eris.Errorf("session: batch index %d out of order (expected %d)", rec.Index, next)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO session_batches (session_id, batch_index, rows, committed_at) VALUES (?, ?, ?, ?)`,
		rec.SessionID, rec.Index, string(rowsJSON), time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "session: insert batch %d", rec.Index)
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrapf(err, "session: commit batch %d", rec.Index)
	}

	zap.L().Debug("batch checkpointed",
		zap.String("session", rec.SessionID),
		zap.Int("batch", rec.Index),
		zap.Int("rows", len(rec.Rows)),
	)
	return nil
}

// ListIncomplete returns manifests of sessions with at least one batch
// still outstanding, oldest first.
func (s *Store) ListIncomplete(ctx context.Context) ([]model.SessionManifest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id
		FROM sessions s
		LEFT JOIN session_batches b ON b.session_id = s.id
		GROUP BY s.id
		HAVING COUNT(b.batch_index) < (s.total_rows + s.batch_size - 1) / s.batch_size
		ORDER BY s.created_at`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "session: list incomplete")
	}
	defer rows.Close() //nolint:errcheck

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "session: scan session id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "session: iterate sessions")
	}

	manifests := make([]model.SessionManifest, 0, len(ids))
	for _, id := range ids {
		m, err := s.LoadManifest(ctx, id)
		if err != nil {
			return nil, err
		}
		if m != nil {
			manifests = append(manifests, *m)
		}
	}
	return manifests, nil
}

// LoadPartialResults returns the records of completed batches for a
// session, in batch-index order.
func (s *Store) LoadPartialResults(ctx context.Context, sessionID string) ([]model.BatchRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT batch_index, rows FROM session_batches WHERE session_id = ? ORDER BY batch_index`,
		sessionID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "session: load partial results %s", sessionID)
	}
	defer rows.Close() //nolint:errcheck

	var records []model.BatchRecord
	for rows.Next() {
		rec := model.BatchRecord{SessionID: sessionID}
		var rowsJSON string
		if err := rows.Scan(&rec.Index, &rowsJSON); err != nil {
			return nil, eris.Wrap(err, "session: scan batch record")
		}
		if err := json.Unmarshal([]byte(rowsJSON), &rec.Rows); err != nil {
			return nil, eris.Wrapf(err, "session: unmarshal batch %d", rec.Index)
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "session: iterate batch records")
}

// Delete removes a session and its batch records, typically after its
// output has been exported.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "session: begin delete")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM session_batches WHERE session_id = ?`, sessionID); err != nil {
		return eris.Wrapf(err, "session: delete batches %s", sessionID)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		return eris.Wrapf(err, "session: delete %s", sessionID)
	}
	return eris.Wrap(tx.Commit(), "session: commit delete")
}
