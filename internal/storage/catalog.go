package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"cxref/internal/filemeta"
)

// Build status values
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// timeLayout keeps fixed-width timestamps so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Build is one catalog row describing a store build attempt.
type Build struct {
	ID            string    `json:"id" yaml:"id"`
	StartedAt     time.Time `json:"startedAt" yaml:"startedAt"`
	FinishedAt    time.Time `json:"finishedAt" yaml:"finishedAt"`
	Status        string    `json:"status" yaml:"status"`
	Error         string    `json:"error,omitempty" yaml:"error,omitempty"`
	StorePath     string    `json:"storePath" yaml:"storePath"`
	Frontend      string    `json:"frontend" yaml:"frontend"`
	FormatVersion uint32    `json:"formatVersion" yaml:"formatVersion"`
	NodeCount     int       `json:"nodeCount" yaml:"nodeCount"`
	FileCount     int       `json:"fileCount" yaml:"fileCount"`
	StoreBytes    int64     `json:"storeBytes" yaml:"storeBytes"`
}

// Duration returns how long the build ran.
func (b Build) Duration() time.Duration {
	return b.FinishedAt.Sub(b.StartedAt)
}

// RecordBuild inserts a build and the files it indexed in one transaction.
func (db *DB) RecordBuild(ctx context.Context, b Build, files []filemeta.Entry) error {
	if b.ID == "" {
		return fmt.Errorf("build id is required")
	}
	if b.Status == "" {
		b.Status = StatusOK
	}

	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO builds (id, started_at, finished_at, status, error, store_path,
				frontend, format_version, node_count, file_count, store_bytes)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, b.ID, b.StartedAt.UTC().Format(timeLayout), b.FinishedAt.UTC().Format(timeLayout),
			b.Status, b.Error, b.StorePath, b.Frontend, b.FormatVersion, b.NodeCount, b.FileCount, b.StoreBytes)
		if err != nil {
			return fmt.Errorf("failed to insert build: %w", err)
		}

		if len(files) == 0 {
			return nil
		}
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO build_files (build_id, path, size, mtime, digest)
			VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, f := range files {
			if _, err := stmt.ExecContext(ctx, b.ID, f.Path, f.Size, f.ModTime, f.Digest); err != nil {
				return fmt.Errorf("failed to insert build file %s: %w", f.Path, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	db.logger.Debug("Recorded build", map[string]interface{}{
		"build_id": b.ID,
		"status":   b.Status,
		"files":    len(files),
	})
	return nil
}

// RecentBuilds returns up to limit builds, newest first.
func (db *DB) RecentBuilds(ctx context.Context, limit int) ([]Build, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, started_at, finished_at, status, error, store_path, frontend,
			format_version, node_count, file_count, store_bytes
		FROM builds
		ORDER BY started_at DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var builds []Build
	for rows.Next() {
		b, err := scanBuild(rows)
		if err != nil {
			return nil, err
		}
		builds = append(builds, b)
	}
	return builds, rows.Err()
}

// LastSuccessful returns the newest build with status ok, or nil when none exists.
func (db *DB) LastSuccessful(ctx context.Context) (*Build, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, status, error, store_path, frontend,
			format_version, node_count, file_count, store_bytes
		FROM builds
		WHERE status = ?
		ORDER BY started_at DESC, id
		LIMIT 1
	`, StatusOK)
	b, err := scanBuild(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// BuildFiles returns the files recorded for a build, sorted by path.
func (db *DB) BuildFiles(ctx context.Context, buildID string) ([]filemeta.Entry, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT path, size, mtime, digest
		FROM build_files
		WHERE build_id = ?
		ORDER BY path
	`, buildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []filemeta.Entry
	for rows.Next() {
		var f filemeta.Entry
		if err := rows.Scan(&f.Path, &f.Size, &f.ModTime, &f.Digest); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// Prune deletes all but the newest keep builds and returns how many were removed.
func (db *DB) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	var removed int64
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM builds
			WHERE id NOT IN (
				SELECT id FROM builds ORDER BY started_at DESC, id LIMIT ?
			)
		`, keep)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		db.logger.Info("Pruned build catalog", map[string]interface{}{
			"removed": removed,
			"kept":    keep,
		})
	}
	return removed, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanBuild(s scanner) (Build, error) {
	var b Build
	var started, finished string
	err := s.Scan(&b.ID, &started, &finished, &b.Status, &b.Error, &b.StorePath, &b.Frontend,
		&b.FormatVersion, &b.NodeCount, &b.FileCount, &b.StoreBytes)
	if err != nil {
		return Build{}, err
	}
	if b.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return Build{}, fmt.Errorf("bad started_at for build %s: %w", b.ID, err)
	}
	if b.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
		return Build{}, fmt.Errorf("bad finished_at for build %s: %w", b.ID, err)
	}
	return b, nil
}
