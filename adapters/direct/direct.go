// Package direct provides read-only connections to local ObsCore
// repositories: SQLite files and PostgreSQL databases.
package direct

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lsst-sqre/vo-siav2/ports"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrRepositoryMissing is returned when a repository file does not exist.
var ErrRepositoryMissing = errors.New("repository does not exist")

// Dialect selects SQL placeholder syntax.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// DialectFor picks the dialect for a repository location.
func DialectFor(repository string) Dialect {
	if strings.HasPrefix(repository, "postgres://") || strings.HasPrefix(repository, "postgresql://") {
		return Postgres
	}
	return SQLite
}

// Opener opens direct repository connections.
type Opener struct {
	logger zerolog.Logger
}

// NewOpener creates an opener.
func NewOpener(logger zerolog.Logger) *Opener {
	return &Opener{logger: logger}
}

// Open connects to the repository read-only.
func (o *Opener) Open(ctx context.Context, repository string) (ports.Connection, error) {
	dialect := DialectFor(repository)

	var (
		db  *sql.DB
		err error
	)
	switch dialect {
	case Postgres:
		db, err = sql.Open("pgx", repository)
	default:
		path := strings.TrimPrefix(repository, "file:")
		if _, statErr := os.Stat(path); statErr != nil {
			return nil, fmt.Errorf("open repository %s: %w", path, ErrRepositoryMissing)
		}
		db, err = sql.Open("sqlite3", "file:"+path+"?mode=ro&_busy_timeout=5000")
	}
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping repository: %w", err)
	}
	if dialect == Postgres {
		if _, err := db.ExecContext(ctx, "SET SESSION CHARACTERISTICS AS TRANSACTION READ ONLY"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set read only: %w", err)
		}
	}

	o.logger.Debug().Str("dialect", dialect.String()).Msg("direct repository opened")
	return NewConnection(db, dialect), nil
}

// InitRepository creates a SQLite repository at path and applies the
// ObsCore schema. It is used to provision fixtures and local deployments.
func InitRepository(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	return Migrate(ctx, db)
}

// Migrate applies every pending schema migration to a writable database.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	applied := make(map[string]bool)
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("query migrations: %w", err)
	}
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("scan migration: %w", err)
		}
		applied[version] = true
	}
	rows.Close()

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		version := strings.TrimSuffix(name, ".sql")
		if applied[version] {
			continue
		}
		content, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", name, err)
		}
	}
	return nil
}

var _ ports.DirectOpener = (*Opener)(nil)
