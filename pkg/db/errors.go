package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique constraint failure from either
// supported dialect. When constraintName is provided, the helper also requires the
// constraint (or index) name to appear in the driver error.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}

	unique := errors.Is(err, gorm.ErrDuplicatedKey)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		unique = true
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) && liteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		unique = true
	}

	msg := err.Error()
	if !unique {
		unique = strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "UNIQUE constraint failed")
	}
	if !unique {
		return false
	}
	if constraintName == "" {
		return true
	}
	if pgErr != nil && pgErr.ConstraintName != "" {
		return pgErr.ConstraintName == constraintName
	}
	return strings.Contains(msg, constraintName)
}

// IsNotFound reports whether err is GORM's record-not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
