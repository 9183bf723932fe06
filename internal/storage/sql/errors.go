package sqlstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"example.com/userapi/internal/domain"
)

const pgUniqueViolation = "23505"

// mapWriteError turns unique constraint violations reported by any of the
// supported drivers into domain conflicts.
func mapWriteError(op string, err error) error {
	if err == nil {
		return nil
	}
	if constraint, ok := uniqueViolation(err); ok {
		if conflict := conflictFromConstraint(constraint); conflict != nil {
			return conflict
		}
	}
	return fmt.Errorf("failed to %s user: %w", op, err)
}

// uniqueViolation returns the violated constraint: "users.email" for SQLite,
// the constraint name (users_email_key) for PostgreSQL. Driver details that
// carry the offending value are never returned.
func uniqueViolation(err error) (string, bool) {
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) && liteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		_, columns, _ := strings.Cut(liteErr.Error(), "constraint failed: ")
		return columns, true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return pgErr.ConstraintName, true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}

func conflictFromConstraint(constraint string) error {
	switch {
	case strings.Contains(constraint, "email"):
		return domain.ErrEmailConflict
	case strings.Contains(constraint, "name"):
		return domain.ErrNameConflict
	default:
		return nil
	}
}
