package registry

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/httpfs"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/sqlite/*.sql
var sqliteMigrations embed.FS

// ErrMigrationDowngrade is returned, before any migration is applied, when
// the database is marked dirty by an earlier migration that did not finish;
// migrating on top of it risks corrupting data golang-migrate has no way to
// reason about. The applied version is not compared with the embedded ones.
var ErrMigrationDowngrade = errors.New("registry: database schema cannot be migrated safely")

// SQLiteConfig configures the embedded SQLite resource.
type SQLiteConfig struct {
	// Path is the database file. An empty Path opens an in-memory database,
	// useful for tests.
	Path string

	// SkipMigrations disables running the embedded migrations during
	// OpenSQLite.
	SkipMigrations bool

	// BusyTimeout bounds how long a writer waits on SQLITE_BUSY before
	// failing. Defaults to 5s.
	BusyTimeout time.Duration
}

// SQLiteResource wraps a *sql.DB configured with WAL journaling and foreign
// keys enabled, migrated to the latest embedded schema on Open.
type SQLiteResource struct {
	db *sql.DB
}

// OpenSQLite opens (creating if necessary) the SQLite database at cfg.Path,
// applies pragmas suited to a single-process embedded database, and brings
// the schema up to date unless SkipMigrations is set.
func OpenSQLite(cfg SQLiteConfig) (*SQLiteResource, error) {
	dsn := cfg.Path
	if dsn == "" {
		dsn = ":memory:"
	}

	busyTimeout := cfg.BusyTimeout
	if busyTimeout == 0 {
		busyTimeout = 5 * time.Second
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %q: %w", cfg.Path, err)
	}

	// SQLite allows exactly one writer at a time regardless of how many
	// connections the pool hands out; serialize at the pool level too so
	// busy_timeout governs contention instead of the driver surfacing
	// SQLITE_BUSY immediately under concurrent writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout.Milliseconds()),
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("configuring sqlite connection: %w", err)
		}
	}

	r := &SQLiteResource{db: db}

	if !cfg.SkipMigrations {
		if err := r.migrate(); err != nil {
			db.Close()
			return nil, err
		}
	}

	return r, nil
}

func (r *SQLiteResource) migrate() error {
	driver, err := sqlitemigrate.WithInstance(r.db, &sqlitemigrate.Config{})
	if err != nil {
		return fmt.Errorf("wrapping sqlite migration driver: %w", err)
	}

	src, err := httpfs.New(http.FS(sqliteMigrations), "migrations/sqlite")
	if err != nil {
		return fmt.Errorf("opening embedded sqlite migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("httpfs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("constructing sqlite migrator: %w", err)
	}
	m.Log = migrationLogger{slog.Default().With("resource", "sqlite")}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("reading sqlite migration version: %w", err)
	}
	if dirty {
		return fmt.Errorf("%w: database is marked dirty at version %d, "+
			"needs manual repair", ErrMigrationDowngrade, version)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying sqlite migrations: %w", err)
	}

	srcErr, dbErr := m.Close()
	if srcErr != nil {
		return fmt.Errorf("closing sqlite migration source: %w", srcErr)
	}
	return dbErr
}

// DB returns the underlying connection pool for use by behaviors that
// injected this resource.
func (r *SQLiteResource) DB() *sql.DB { return r.db }

// Close implements Resource.
func (r *SQLiteResource) Close() error {
	return r.db.Close()
}

// migrationLogger bridges golang-migrate's Logger interface to slog, the
// same adaptation the teacher's database layer uses.
type migrationLogger struct {
	log *slog.Logger
}

func (l migrationLogger) Printf(format string, v ...any) {
	l.log.Info(fmt.Sprintf(format, v...))
}

func (l migrationLogger) Verbose() bool { return false }
