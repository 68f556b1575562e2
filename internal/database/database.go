package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"giffer/internal/logging"
	"giffer/internal/tagstore"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

const schemaVersion = "1"

// Database persists the tag index in SQLite. It implements
// tagstore.Persister.
type Database struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// New opens (creating if needed) the database file at dbPath.
// The parent directory must already exist and be writable.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		logging.Warn("Database permission diagnostics: %v", err)
	}

	// busy_timeout guards against "database is locked" from a second process
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// One writer (the reconciler) and the occasional CLI reader
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:     db,
		dbPath: dbPath,
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) error {
	schema := `
	-- One row per tracked file, ordered by position
	CREATE TABLE IF NOT EXISTS files (
		name TEXT PRIMARY KEY,
		position INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_files_position ON files(position);

	-- Tags per file, ordered by position within the file
	CREATE TABLE IF NOT EXISTS file_tags (
		file_name TEXT NOT NULL,
		position INTEGER NOT NULL,
		tag TEXT NOT NULL,
		FOREIGN KEY (file_name) REFERENCES files(name) ON DELETE CASCADE,
		PRIMARY KEY (file_name, position)
	);

	CREATE INDEX IF NOT EXISTS idx_file_tags_tag ON file_tags(tag COLLATE NOCASE);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT
	);
	`

	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	version, err := d.GetMetadata(ctx, "schema_version")
	if errors.Is(err, sql.ErrNoRows) {
		return d.SetMetadata(ctx, "schema_version", schemaVersion)
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("unsupported schema version %q (want %s)", version, schemaVersion)
	}
	return nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Path returns the database file location.
func (d *Database) Path() string { return d.dbPath }

// Backend returns "sqlite".
func (d *Database) Backend() string { return "sqlite" }

// Load reads every file and its tags in position order. A database that has
// never been saved to returns an error matching fs.ErrNotExist.
func (d *Database) Load(ctx context.Context) (tagstore.Snapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := d.getMetadata(ctx, "saved_at"); errors.Is(err, sql.ErrNoRows) {
		return tagstore.Snapshot{}, fs.ErrNotExist
	} else if err != nil {
		return tagstore.Snapshot{}, fmt.Errorf("%w: %w", tagstore.ErrPersistence, err)
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT f.name, t.tag
		FROM files f
		LEFT JOIN file_tags t ON t.file_name = f.name
		ORDER BY f.position, t.position
	`)
	if err != nil {
		return tagstore.Snapshot{}, fmt.Errorf("%w: query files: %w", tagstore.ErrPersistence, err)
	}
	defer rows.Close()

	var entries []tagstore.Entry
	for rows.Next() {
		var name string
		var tag sql.NullString
		if err := rows.Scan(&name, &tag); err != nil {
			return tagstore.Snapshot{}, fmt.Errorf("%w: scan: %w", tagstore.ErrPersistence, err)
		}
		if n := len(entries); n == 0 || entries[n-1].Filename != name {
			entries = append(entries, tagstore.Entry{Filename: name, Tags: []string{}})
		}
		if tag.Valid {
			last := &entries[len(entries)-1]
			last.Tags = append(last.Tags, tag.String)
		}
	}
	if err := rows.Err(); err != nil {
		return tagstore.Snapshot{}, fmt.Errorf("%w: iterate: %w", tagstore.ErrPersistence, err)
	}

	return tagstore.NewSnapshot(entries), nil
}

// Save replaces the stored index with snap in one transaction.
func (d *Database) Save(ctx context.Context, snap tagstore.Snapshot) (err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", tagstore.ErrPersistence, err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM files"); err != nil {
		return fmt.Errorf("%w: clear files: %w", tagstore.ErrPersistence, err)
	}

	fileStmt, err := tx.PrepareContext(ctx, "INSERT INTO files (name, position) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("%w: prepare: %w", tagstore.ErrPersistence, err)
	}
	defer fileStmt.Close()

	tagStmt, err := tx.PrepareContext(ctx, "INSERT INTO file_tags (file_name, position, tag) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("%w: prepare: %w", tagstore.ErrPersistence, err)
	}
	defer tagStmt.Close()

	for i, e := range snap.Entries() {
		if _, err = fileStmt.ExecContext(ctx, e.Filename, i); err != nil {
			return fmt.Errorf("%w: insert %s: %w", tagstore.ErrPersistence, e.Filename, err)
		}
		for j, tag := range e.Tags {
			if _, err = tagStmt.ExecContext(ctx, e.Filename, j, tag); err != nil {
				return fmt.Errorf("%w: insert tag for %s: %w", tagstore.ErrPersistence, e.Filename, err)
			}
		}
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES ('saved_at', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("%w: record save time: %w", tagstore.ErrPersistence, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", tagstore.ErrPersistence, err)
	}
	return nil
}

// GetMetadata retrieves a metadata value by key. Returns sql.ErrNoRows if
// the key doesn't exist.
func (d *Database) GetMetadata(ctx context.Context, key string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.getMetadata(ctx, key)
}

func (d *Database) getMetadata(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var value string
	err := d.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetMetadata sets a metadata key-value pair.
func (d *Database) SetMetadata(ctx context.Context, key, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// diagnoseDatabasePermissions checks database directory and file permissions
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}
	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	for _, path := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		logging.Debug("Database file exists: %s (mode: %v, size: %d bytes)", path, info.Mode(), info.Size())
		if info.Mode().Perm()&0o200 == 0 {
			logging.Warn("%s is read-only (mode %v), writes will fail", path, info.Mode())
			if chmodErr := os.Chmod(path, 0o600); chmodErr != nil {
				logging.Error("Failed to fix permissions on %s: %v", path, chmodErr)
			} else {
				logging.Info("Fixed permissions on %s", path)
			}
		}
	}

	return nil
}
