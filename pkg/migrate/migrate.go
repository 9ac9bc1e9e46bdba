package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"path"
	"strconv"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/grocery-backend/pkg/config"
)

// DefaultDir is the on-disk root used by the create/validate tooling.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var embedded embed.FS

// Dir returns the embedded migration directory for the dialect.
func Dir(dialect string) (string, error) {
	switch dialect {
	case config.DBDriverSQLite, "":
		return path.Join("migrations", config.DBDriverSQLite), nil
	case config.DBDriverPostgres:
		return path.Join("migrations", config.DBDriverPostgres), nil
	default:
		return "", fmt.Errorf("unsupported migration dialect %q", dialect)
	}
}

func gooseDialect(dialect string) string {
	if dialect == config.DBDriverPostgres {
		return "postgres"
	}
	return "sqlite3"
}

func prepare(dialect string) (string, error) {
	dir, err := Dir(dialect)
	if err != nil {
		return "", err
	}
	goose.SetBaseFS(embedded)
	if err := goose.SetDialect(gooseDialect(dialect)); err != nil {
		return "", fmt.Errorf("set goose dialect: %w", err)
	}
	return dir, nil
}

// Run executes a standard goose command against the embedded migrations.
func Run(ctx context.Context, db *sql.DB, dialect string, command string, args ...string) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}

	dir, err := prepare(dialect)
	if err != nil {
		return err
	}

	// RunContext prints status output to stdout (goose internal)
	if err := goose.RunContext(ctx, command, db, dir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// MigrateToVersion migrates up/down to the requested version by comparing current DB version.
func MigrateToVersion(ctx context.Context, db *sql.DB, dialect string, targetVersion string) error {
	if targetVersion == "" {
		return fmt.Errorf("targetVersion is required")
	}

	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", targetVersion, err)
	}

	dir, err := prepare(dialect)
	if err != nil {
		return err
	}

	current, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}

	switch {
	case current == target:
		return nil
	case current < target:
		if err := goose.UpToContext(ctx, db, dir, target); err != nil {
			return fmt.Errorf("goose up-to %d: %w", target, err)
		}
		return nil
	default:
		if err := goose.DownToContext(ctx, db, dir, target); err != nil {
			return fmt.Errorf("goose down-to %d: %w", target, err)
		}
		return nil
	}
}
