package db

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/odyssey-erp/quotedesk/internal/shared"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

// IsUniqueViolation reports whether err is a Postgres unique constraint failure.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

// Classify converts driver errors into the shared error taxonomy. Errors that
// already carry a domain kind pass through untouched.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	if errors.Is(err, shared.ErrPersistence) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.NotFoundf("%s: record not found", op)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return shared.Conflictf("%s: duplicate value violates %s", op, pgErr.ConstraintName)
		case codeForeignKeyViolation:
			return shared.Validationf("%s: referenced record does not exist", op)
		case codeCheckViolation:
			return shared.Validationf("%s: value violates %s", op, pgErr.ConstraintName)
		}
	}
	return shared.Persistence(op, err)
}
