package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pfrederiksen/weather-scrape/internal/weather"

	_ "modernc.org/sqlite"
)

// DefaultPath is the database file used when no path is configured
const DefaultPath = "weather_data.db"

//go:embed schema.sql
var Schema string

const (
	insertRecordSQL = `INSERT OR IGNORE INTO weather (sample_date, location, min_temp, max_temp, avg_temp)
VALUES (?, ?, ?, ?, ?)`
	selectLocationSQL = `SELECT sample_date, min_temp, max_temp, avg_temp
FROM weather WHERE location = ?
ORDER BY sample_date`
	deleteAllSQL = `DELETE FROM weather`
	countSQL     = `SELECT COUNT(*) FROM weather`
)

// StoredRow is one persisted day for a location. Temperatures are nil when the
// stored value is NULL.
type StoredRow struct {
	Date    string   `json:"date"`
	MinTemp *float64 `json:"min_temp"`
	MaxTemp *float64 `json:"max_temp"`
	AvgTemp *float64 `json:"avg_temp"`
}

// Store handles persistence of daily records
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the SQLite database at path.
// A leading "~/" is expanded to the home directory.
func Open(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection at a time; this also keeps a :memory: database alive across calls
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database location
func (s *Store) Path() string {
	return s.path
}

// Close releases the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Session is one unit of work against the store
type Session struct {
	tx *sql.Tx
}

// withSession runs fn inside a transaction. The transaction is committed when
// fn returns nil and rolled back when it returns an error or panics.
func (s *Store) withSession(ctx context.Context, fn func(*Session) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning session: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(&Session{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing session: %w", err)
	}
	committed = true
	return nil
}

// Initialize creates the weather table if it does not exist. Safe to call on every run.
func (s *Store) Initialize(ctx context.Context) error {
	return s.withSession(ctx, func(sess *Session) error {
		if _, err := sess.tx.ExecContext(ctx, Schema); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
		return nil
	})
}

// Save inserts every record under location, skipping dates already stored for
// that location. It returns the number of rows inserted.
func (s *Store) Save(ctx context.Context, records weather.Mapping, location string) (int, error) {
	inserted := 0

	err := s.withSession(ctx, func(sess *Session) error {
		stmt, err := sess.tx.PrepareContext(ctx, insertRecordSQL)
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()

		for _, rec := range records.Records() {
			res, err := stmt.ExecContext(ctx, rec.Date, location, rec.Min, rec.Max, rec.Mean)
			if err != nil {
				return fmt.Errorf("inserting %s: %w", rec.Date, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("inserting %s: %w", rec.Date, err)
			}
			inserted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return inserted, nil
}

// Fetch returns every stored row for location ordered by date
func (s *Store) Fetch(ctx context.Context, location string) ([]StoredRow, error) {
	result := make([]StoredRow, 0)

	err := s.withSession(ctx, func(sess *Session) error {
		rows, err := sess.tx.QueryContext(ctx, selectLocationSQL, location)
		if err != nil {
			return fmt.Errorf("querying %s: %w", location, err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				row          StoredRow
				lo, hi, mean sql.NullFloat64
			)
			if err := rows.Scan(&row.Date, &lo, &hi, &mean); err != nil {
				return fmt.Errorf("scanning row: %w", err)
			}
			row.MinTemp = nullable(lo)
			row.MaxTemp = nullable(hi)
			row.AvgTemp = nullable(mean)
			result = append(result, row)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Purge deletes every stored row for every location and returns how many were removed
func (s *Store) Purge(ctx context.Context) (int64, error) {
	var deleted int64

	err := s.withSession(ctx, func(sess *Session) error {
		res, err := sess.tx.ExecContext(ctx, deleteAllSQL)
		if err != nil {
			return fmt.Errorf("purging rows: %w", err)
		}
		deleted, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}

	return deleted, nil
}

// Count returns the number of stored rows across all locations
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int

	err := s.withSession(ctx, func(sess *Session) error {
		if err := sess.tx.QueryRowContext(ctx, countSQL).Scan(&count); err != nil {
			return fmt.Errorf("counting rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return count, nil
}

func nullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
