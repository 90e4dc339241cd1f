package repository

import (
	"context"
	"database/sql"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	_ "github.com/jackc/pgx/v5/stdlib"
	management "github.com/robertoporfiro/gravitee-management-rest-api"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open connects to the database named by driver and dsn and checks the
// connection. SQLite is limited to a single connection.
func Open(ctx context.Context, driver, dsn string) (*bun.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, management.NewConfigurationError("database dsn is not configured")
	}

	var db *bun.DB
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverSQLite, "sqlite3":
		sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open sqlite database")
		}
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())
	case DriverPostgres, "pgx":
		sqldb, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open postgres database")
		}
		db = bun.NewDB(sqldb, pgdialect.New())
	default:
		return nil, management.NewConfigurationError("unsupported database driver: " + driver)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "failed to connect to database").
			WithMetadata(map[string]any{"driver": driver})
	}

	return db, nil
}

// NewManager opens nothing, it wires the management repositories on db.
// Archive transitions performed through the users repository are audited
// on sink.
func NewManager(db *bun.DB, sink management.ActivitySink) management.RepositoryManager {
	return management.NewRepositoryManager(db,
		management.WithUsersStateMachineOptions(
			management.WithStateMachineActivitySink(sink),
		),
	)
}
