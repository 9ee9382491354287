package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/model"
	_ "modernc.org/sqlite" // SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS records (
	id            TEXT PRIMARY KEY,
	user_id       TEXT NOT NULL,
	agent_id      TEXT NOT NULL,
	run_id        TEXT NOT NULL DEFAULT '',
	project       TEXT NOT NULL DEFAULT '',
	category      TEXT NOT NULL,
	content       TEXT NOT NULL,
	embedding_ref TEXT NOT NULL DEFAULT '',
	metadata      TEXT NOT NULL DEFAULT '{}',
	version       INTEGER NOT NULL,
	deleted       INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMP NOT NULL,
	updated_at    TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_owner ON records (user_id, agent_id);

CREATE TABLE IF NOT EXISTS history (
	record_id  TEXT NOT NULL,
	version    INTEGER NOT NULL,
	operation  TEXT NOT NULL,
	before     TEXT,
	after      TEXT,
	created_at TIMESTAMP NOT NULL,
	PRIMARY KEY (record_id, version)
);
`

// SQLite implements Repository on a local SQLite database. Records and
// history live in two append-friendly tables; each mutation writes both
// inside one SQL transaction, which gives the required atomicity between
// record state and audit trail.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (and if needed initializes) a SQLite repository at the
// given path. Use ":memory:" for an ephemeral database in tests.
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		return nil, goerr.New("sqlite path is required")
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite database", goerr.V("path", path))
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to initialize sqlite schema")
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database
func (r *SQLite) Close() error {
	if err := r.db.Close(); err != nil {
		return goerr.Wrap(err, "failed to close sqlite database")
	}
	return nil
}

func (r *SQLite) PutRecord(ctx context.Context, rec *model.Record, entry *model.HistoryEntry) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		metadata, err := encodeMetadata(rec.Metadata)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO records (id, user_id, agent_id, run_id, project, category, content, embedding_ref, metadata, version, deleted, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			string(rec.ID), rec.Scope.UserID, rec.Scope.AgentID, rec.Scope.RunID, rec.Scope.Project,
			string(rec.Category), rec.Content, rec.EmbeddingRef, metadata,
			rec.Version, boolToInt(rec.Deleted), rec.CreatedAt.UTC(), rec.UpdatedAt.UTC(),
		)
		if err != nil {
			return goerr.Wrap(err, "failed to insert record", goerr.V("id", rec.ID))
		}

		return appendHistoryTx(ctx, tx, entry)
	})
}

func (r *SQLite) GetRecord(ctx context.Context, id model.RecordID) (*model.Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, agent_id, run_id, project, category, content, embedding_ref, metadata, version, deleted, created_at, updated_at
		FROM records WHERE id = ?`, string(id))

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, goerr.Wrap(model.ErrRecordNotFound, "no such record", goerr.V("id", id))
		}
		return nil, err
	}

	return rec, nil
}

func (r *SQLite) UpdateRecord(ctx context.Context, rec *model.Record, entry *model.HistoryEntry, expected int64) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		metadata, err := encodeMetadata(rec.Metadata)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE records
			SET content = ?, embedding_ref = ?, metadata = ?, version = ?, deleted = ?, updated_at = ?
			WHERE id = ? AND version = ?`,
			rec.Content, rec.EmbeddingRef, metadata, rec.Version, boolToInt(rec.Deleted), rec.UpdatedAt.UTC(),
			string(rec.ID), expected,
		)
		if err != nil {
			return goerr.Wrap(err, "failed to update record", goerr.V("id", rec.ID))
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return goerr.Wrap(err, "failed to read update result")
		}
		if affected == 0 {
			return goerr.Wrap(model.ErrVersionConflict, "record was modified concurrently",
				goerr.V("id", rec.ID), goerr.V("expected", expected))
		}

		return appendHistoryTx(ctx, tx, entry)
	})
}

func (r *SQLite) ListRecords(ctx context.Context, offset, limit int) ([]*model.Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, agent_id, run_id, project, category, content, embedding_ref, metadata, version, deleted, created_at, updated_at
		FROM records ORDER BY id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list records")
	}
	defer func() { _ = rows.Close() }()

	var records []*model.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate records")
	}

	return records, nil
}

func (r *SQLite) ListHistory(ctx context.Context, id model.RecordID) ([]*model.HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT record_id, version, operation, before, after, created_at
		FROM history WHERE record_id = ? ORDER BY version`, string(id))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list history", goerr.V("id", id))
	}
	defer func() { _ = rows.Close() }()

	var entries []*model.HistoryEntry
	for rows.Next() {
		var entry model.HistoryEntry
		var recordID, operation string
		var before, after sql.NullString

		if err := rows.Scan(&recordID, &entry.Version, &operation, &before, &after, &entry.CreatedAt); err != nil {
			return nil, goerr.Wrap(err, "failed to scan history entry")
		}

		entry.RecordID = model.RecordID(recordID)
		entry.Operation = model.Operation(operation)
		if entry.Before, err = decodeSnapshot(before); err != nil {
			return nil, err
		}
		if entry.After, err = decodeSnapshot(after); err != nil {
			return nil, err
		}

		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate history")
	}

	return entries, nil
}

func (r *SQLite) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to begin transaction")
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return goerr.Wrap(err, "failed to commit transaction")
	}
	return nil
}

func appendHistoryTx(ctx context.Context, tx *sql.Tx, entry *model.HistoryEntry) error {
	before, err := encodeSnapshot(entry.Before)
	if err != nil {
		return err
	}
	after, err := encodeSnapshot(entry.After)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO history (record_id, version, operation, before, after, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(entry.RecordID), entry.Version, string(entry.Operation), before, after, entry.CreatedAt.UTC(),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to append history entry", goerr.V("id", entry.RecordID))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func scanRecord(row rowScanner) (*model.Record, error) {
	var rec model.Record
	var id, category, metadata string
	var deleted int
	var createdAt, updatedAt time.Time

	err := row.Scan(&id, &rec.Scope.UserID, &rec.Scope.AgentID, &rec.Scope.RunID, &rec.Scope.Project,
		&category, &rec.Content, &rec.EmbeddingRef, &metadata, &rec.Version, &deleted, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, goerr.Wrap(err, "failed to scan record")
	}

	rec.ID = model.RecordID(id)
	rec.Category = model.Category(category)
	rec.Deleted = deleted != 0
	rec.CreatedAt = createdAt.UTC()
	rec.UpdatedAt = updatedAt.UTC()

	if err := json.Unmarshal([]byte(metadata), &rec.Metadata); err != nil {
		return nil, goerr.Wrap(err, "failed to decode metadata", goerr.V("id", id))
	}

	return &rec, nil
}

func encodeMetadata(m model.Metadata) (string, error) {
	if m == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return "", goerr.Wrap(err, "failed to encode metadata")
	}
	return string(raw), nil
}

func encodeSnapshot(rec *model.Record) (sql.NullString, error) {
	if rec == nil {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return sql.NullString{}, goerr.Wrap(err, "failed to encode snapshot", goerr.V("id", rec.ID))
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func decodeSnapshot(raw sql.NullString) (*model.Record, error) {
	if !raw.Valid {
		return nil, nil
	}
	var rec model.Record
	if err := json.Unmarshal([]byte(raw.String), &rec); err != nil {
		return nil, goerr.Wrap(err, "failed to decode snapshot")
	}
	return &rec, nil
}
