package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	cfg    Config
	logger zerolog.Logger
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Logger          zerolog.Logger
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 4
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 2
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	return &SQLiteStore{
		cfg:    cfg,
		logger: cfg.Logger.With().Str("component", "store").Str("path", cfg.Path).Logger(),
	}, nil
}

// Init opens the database, enables foreign keys and WAL mode, and verifies
// the connection.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := s.cfg.Path +
		"?_pragma=foreign_keys(1)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_txlock=immediate"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	s.logger.Debug().Msg("Database opened")
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err == nil {
		s.logger.Debug().Uint("version", version).Bool("dirty", dirty).Msg("Migrations applied")
	}

	return nil
}

// SaveSnapshot stores a snapshot together with its entries and diagnostics in
// one transaction.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, rec *Record) error {
	if rec == nil || rec.Snapshot == nil {
		return fmt.Errorf("snapshot is required")
	}
	snap := rec.Snapshot

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (id, source_path, digest, entry_count, hard_errors, warnings, loaded_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		snap.ID,
		snap.SourcePath,
		snap.Digest,
		snap.EntryCount,
		snap.HardErrors,
		snap.Warnings,
		snap.LoadedAt,
		snap.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}

	entryStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO snapshot_entries (snapshot_id, position, path, value, value_type)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare entry insert: %w", err)
	}
	defer entryStmt.Close()

	for _, e := range rec.Entries {
		if _, err := entryStmt.ExecContext(ctx, snap.ID, e.Position, e.Path, e.Value, e.Type); err != nil {
			return fmt.Errorf("failed to store entry %s: %w", e.Path, err)
		}
	}

	diagStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO snapshot_diagnostics (snapshot_id, position, file, line, path, message, severity, code)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare diagnostic insert: %w", err)
	}
	defer diagStmt.Close()

	for _, d := range rec.Diagnostics {
		if _, err := diagStmt.ExecContext(ctx, snap.ID, d.Position, d.File, d.Line, d.Path, d.Message, d.Severity, d.Code); err != nil {
			return fmt.Errorf("failed to store diagnostic: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}

	s.logger.Debug().
		Str("id", snap.ID).
		Str("source", snap.SourcePath).
		Int("entries", len(rec.Entries)).
		Int("diagnostics", len(rec.Diagnostics)).
		Msg("Snapshot saved")

	return nil
}

const snapshotColumns = `id, source_path, digest, entry_count, hard_errors, warnings, loaded_at, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSnapshot(row rowScanner) (*Snapshot, error) {
	snap := &Snapshot{}
	err := row.Scan(
		&snap.ID,
		&snap.SourcePath,
		&snap.Digest,
		&snap.EntryCount,
		&snap.HardErrors,
		&snap.Warnings,
		&snap.LoadedAt,
		&snap.CreatedAt,
	)
	return snap, err
}

// GetSnapshot retrieves a snapshot by ID
func (s *SQLiteStore) GetSnapshot(ctx context.Context, id string) (*Snapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM snapshots WHERE id = ?`

	snap, err := scanSnapshot(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	return snap, nil
}

// LatestSnapshot returns the most recently loaded snapshot of sourcePath.
func (s *SQLiteStore) LatestSnapshot(ctx context.Context, sourcePath string) (*Snapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM snapshots
		WHERE source_path = ?
		ORDER BY loaded_at DESC, created_at DESC, rowid DESC
		LIMIT 1
	`

	snap, err := scanSnapshot(s.db.QueryRowContext(ctx, query, sourcePath))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no snapshot for %s: %w", sourcePath, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}

	return snap, nil
}

// ListSnapshots lists snapshots newest first with pagination. An empty
// sourcePath lists snapshots of every source.
func (s *SQLiteStore) ListSnapshots(ctx context.Context, sourcePath string, limit, offset int) ([]*Snapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM snapshots
		WHERE (? = '' OR source_path = ?)
		ORDER BY loaded_at DESC, created_at DESC, rowid DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, sourcePath, sourcePath, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := []*Snapshot{}
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, snap)
	}

	return snapshots, rows.Err()
}

// DeleteSnapshot deletes a snapshot. Its entries and diagnostics go with it.
func (s *SQLiteStore) DeleteSnapshot(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("snapshot %s: %w", id, ErrNotFound)
	}

	return nil
}

// PruneSnapshots keeps the newest keep snapshots of sourcePath and deletes the
// rest, returning how many were deleted.
func (s *SQLiteStore) PruneSnapshots(ctx context.Context, sourcePath string, keep int) (int64, error) {
	if keep < 0 {
		return 0, fmt.Errorf("keep must not be negative: %d", keep)
	}

	query := `
		DELETE FROM snapshots
		WHERE source_path = ?
		AND id NOT IN (
			SELECT id FROM snapshots
			WHERE source_path = ?
			ORDER BY loaded_at DESC, created_at DESC, rowid DESC
			LIMIT ?
		)
	`

	result, err := s.db.ExecContext(ctx, query, sourcePath, sourcePath, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if deleted > 0 {
		s.logger.Info().Str("source", sourcePath).Int64("deleted", deleted).Int("kept", keep).Msg("Pruned snapshots")
	}
	return deleted, nil
}

// ListSnapshotEntries returns the entries of a snapshot in source order.
func (s *SQLiteStore) ListSnapshotEntries(ctx context.Context, snapshotID string) ([]SnapshotEntry, error) {
	query := `
		SELECT snapshot_id, position, path, value, value_type
		FROM snapshot_entries
		WHERE snapshot_id = ?
		ORDER BY position ASC
	`

	rows, err := s.db.QueryContext(ctx, query, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshot entries: %w", err)
	}
	defer rows.Close()

	entries := []SnapshotEntry{}
	for rows.Next() {
		var e SnapshotEntry
		if err := rows.Scan(&e.SnapshotID, &e.Position, &e.Path, &e.Value, &e.Type); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// ListSnapshotDiagnostics returns the diagnostics of a snapshot in the order
// they were reported.
func (s *SQLiteStore) ListSnapshotDiagnostics(ctx context.Context, snapshotID string) ([]SnapshotDiagnostic, error) {
	query := `
		SELECT snapshot_id, position, file, line, path, message, severity, code
		FROM snapshot_diagnostics
		WHERE snapshot_id = ?
		ORDER BY position ASC
	`

	rows, err := s.db.QueryContext(ctx, query, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshot diagnostics: %w", err)
	}
	defer rows.Close()

	diags := []SnapshotDiagnostic{}
	for rows.Next() {
		var d SnapshotDiagnostic
		if err := rows.Scan(&d.SnapshotID, &d.Position, &d.File, &d.Line, &d.Path, &d.Message, &d.Severity, &d.Code); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot diagnostic: %w", err)
		}
		diags = append(diags, d)
	}

	return diags, rows.Err()
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}

var _ Store = (*SQLiteStore)(nil)
