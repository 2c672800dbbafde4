package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"gw2-flipper/internal/logger"
)

// DB wraps the SQLite database holding item metadata and cycle
// results.
type DB struct {
	sql *sql.DB
}

// Open opens (or creates) the database at path and runs migrations.
// Use ":memory:" for a throwaway database.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	d := &DB{sql: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	logger.Success("DB", fmt.Sprintf("Opened %s", path))
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) migrate() error {
	version := 0
	d.sql.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	if version < 1 {
		_, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS items (
				id           INTEGER PRIMARY KEY,
				name         TEXT NOT NULL,
				vendor_value INTEGER NOT NULL,
				flags        TEXT NOT NULL DEFAULT '',
				updated_at   TEXT NOT NULL
			);

			CREATE TABLE IF NOT EXISTS cycles (
				id           TEXT PRIMARY KEY,
				started_at   TEXT NOT NULL,
				finished_at  TEXT NOT NULL,
				item_count   INTEGER NOT NULL,
				flip_count   INTEGER NOT NULL,
				top_profit   INTEGER NOT NULL
			);

			CREATE TABLE IF NOT EXISTS flips (
				cycle_id            TEXT NOT NULL REFERENCES cycles(id),
				rank                INTEGER NOT NULL,
				item_id             INTEGER NOT NULL,
				name                TEXT NOT NULL,
				horizon_seconds     INTEGER NOT NULL,
				quantity            INTEGER NOT NULL,
				buy_price           INTEGER NOT NULL,
				expected_sell_price INTEGER NOT NULL,
				expected_profit     INTEGER NOT NULL,
				profit_per_hour     REAL NOT NULL,
				buy_time            REAL NOT NULL,
				sell_time           REAL NOT NULL,
				PRIMARY KEY (cycle_id, rank)
			);

			INSERT INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return err
		}
	}
	return nil
}
