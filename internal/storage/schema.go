package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema version tracking
const currentSchemaVersion = 1

func (db *DB) initializeSchema() error {
	return db.WithTx(context.Background(), func(tx *sql.Tx) error {
		for _, create := range []func(*sql.Tx) error{
			createSchemaVersionTable,
			createBuildsTable,
			createBuildFilesTable,
		} {
			if err := create(tx); err != nil {
				return err
			}
		}
		if err := setSchemaVersion(tx, currentSchemaVersion); err != nil {
			return err
		}

		db.logger.Debug("Catalog schema initialized", map[string]interface{}{
			"version": currentSchemaVersion,
		})
		return nil
	})
}

func (db *DB) runMigrations() error {
	version, err := db.getSchemaVersion()
	if err != nil {
		return err
	}
	switch {
	case version == currentSchemaVersion:
		return nil
	case version == 0:
		// A file that never finished initializing.
		return db.initializeSchema()
	case version > currentSchemaVersion:
		return fmt.Errorf("catalog schema version %d is newer than %d", version, currentSchemaVersion)
	}
	return nil
}

func (db *DB) getSchemaVersion() (int, error) {
	var tableName string
	err := db.conn.QueryRow(`
		SELECT name FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&tableName)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var version int
	err = db.conn.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return version, nil
}

func setSchemaVersion(tx *sql.Tx, version int) error {
	if _, err := tx.Exec("DELETE FROM schema_version"); err != nil {
		return err
	}
	_, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version)
	return err
}

func createSchemaVersionTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`)
	return err
}

// createBuildsTable creates one row per store build attempt.
func createBuildsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS builds (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			status TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			store_path TEXT NOT NULL,
			frontend TEXT NOT NULL,
			format_version INTEGER NOT NULL,
			node_count INTEGER NOT NULL,
			file_count INTEGER NOT NULL,
			store_bytes INTEGER NOT NULL
		)
	`)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`CREATE INDEX IF NOT EXISTS idx_builds_started ON builds(started_at)`)
	return err
}

// createBuildFilesTable records the files a build indexed.
func createBuildFilesTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS build_files (
			build_id TEXT NOT NULL REFERENCES builds(id) ON DELETE CASCADE,
			path TEXT NOT NULL,
			size INTEGER NOT NULL,
			mtime INTEGER NOT NULL,
			digest TEXT NOT NULL,
			PRIMARY KEY (build_id, path)
		)
	`)
	return err
}
