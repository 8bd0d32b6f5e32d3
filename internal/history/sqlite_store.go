package history

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/petrijr/conveyor/pkg/api"
)

// SQLiteStore is a RunStore backed by SQLite.
//
// It expects an *sql.DB that uses a SQLite driver (for example,
// "modernc.org/sqlite"). The caller is responsible for importing
// the driver, e.g.:
//
//	import _ "modernc.org/sqlite"
type SQLiteStore struct {
	db *sql.DB
}

// Ensure SQLiteStore implements RunStore.
var _ RunStore = (*SQLiteStore)(nil)

// NewSQLiteStore initializes the required schema in the given database and
// returns a new SQLiteStore.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			run INTEGER PRIMARY KEY,
			status TEXT NOT NULL,
			item_count INTEGER NOT NULL,
			items BLOB,
			item_index INTEGER NOT NULL,
			stage_index INTEGER NOT NULL,
			error TEXT,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL
		);`,
	)
	return err
}

func (s *SQLiteStore) SaveRun(rec *api.RunRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO runs (run, status, item_count, items, item_index, stage_index, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Run,
		string(rec.Status),
		rec.ItemCount,
		rec.Items,
		rec.ItemIndex,
		rec.StageIndex,
		rec.Error,
		rec.StartedAt.UnixNano(),
		rec.FinishedAt.UnixNano(),
	)
	return err
}

func (s *SQLiteStore) GetRun(run int64) (*api.RunRecord, error) {
	row := s.db.QueryRow(`
		SELECT run, status, item_count, items, item_index, stage_index, error, started_at, finished_at
		FROM runs
		WHERE run = ?`,
		run,
	)

	rec, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return rec, nil
}

func (s *SQLiteStore) ListRuns(opts api.RunListOptions) ([]*api.RunRecord, error) {
	query := `
		SELECT run, status, item_count, items, item_index, stage_index, error, started_at, finished_at
		FROM runs`
	var args []any
	var clauses []string

	if opts.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(opts.Status))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY run ASC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*api.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[len(out)-opts.Limit:]
	}
	return out, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*api.RunRecord, error) {
	var rec api.RunRecord
	var statusStr string
	var errStr sql.NullString
	var startedNs, finishedNs int64

	if err := row.Scan(
		&rec.Run,
		&statusStr,
		&rec.ItemCount,
		&rec.Items,
		&rec.ItemIndex,
		&rec.StageIndex,
		&errStr,
		&startedNs,
		&finishedNs,
	); err != nil {
		return nil, err
	}

	rec.Status = api.Status(statusStr)
	if errStr.Valid {
		rec.Error = errStr.String
	}
	rec.StartedAt = time.Unix(0, startedNs)
	rec.FinishedAt = time.Unix(0, finishedNs)

	return &rec, nil
}
