package db

import (
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// NewConnection opens the database named by databaseURL. postgres:// and
// postgresql:// URLs use PostgreSQL; anything else is a SQLite path, with
// an optional sqlite:// prefix and ":memory:" for a private in-memory
// database.
func NewConnection(databaseURL string) (*sqlx.DB, error) {
	if isPostgres(databaseURL) {
		db, err := sqlx.Connect("postgres", databaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}

		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		return db, nil
	}

	db, err := sqlx.Connect("sqlite", sqliteDSN(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}

	// SQLite allows one writer; a single connection also keeps an in-memory
	// database alive for the lifetime of the pool.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	return db, nil
}

func isPostgres(databaseURL string) bool {
	return strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://")
}

func sqliteDSN(databaseURL string) string {
	path := strings.TrimPrefix(databaseURL, "sqlite://")
	path = strings.TrimPrefix(path, "sqlite:")
	if path == "" || path == ":memory:" {
		return "file::memory:?_pragma=foreign_keys(ON)"
	}
	return fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		path,
	)
}

// RunMigrations applies all pending embedded migrations. Already applied
// migrations are skipped.
func RunMigrations(db *sqlx.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	var m *migrate.Migrate
	switch db.DriverName() {
	case "postgres":
		dbDriver, err := migratepostgres.WithInstance(db.DB, &migratepostgres.Config{})
		if err != nil {
			return fmt.Errorf("create migration db driver: %w", err)
		}
		m, err = migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}
	case "sqlite":
		dbDriver, err := migratesqlite.WithInstance(db.DB, &migratesqlite.Config{})
		if err != nil {
			return fmt.Errorf("create migration db driver: %w", err)
		}
		m, err = migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}
	default:
		return fmt.Errorf("unsupported driver %q", db.DriverName())
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
