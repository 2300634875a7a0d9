package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/hera-erp/hera/internal/model"
)

// translate maps SQLite constraint failures onto the error taxonomy and
// wraps anything else with op. field names the input the caller should fix
// when the failure is a uniqueness violation.
func translate(err error, op, field string) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
		switch se.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return &model.Error{
				Kind:    model.KindConflict,
				Field:   field,
				Message: fmt.Sprintf("%s: duplicate %s", op, field),
				Err:     err,
			}
		case sqlite3.ErrConstraintForeignKey:
			return &model.Error{
				Kind:    model.KindNotFound,
				Message: fmt.Sprintf("%s: referenced record does not exist", op),
				Err:     err,
			}
		case sqlite3.ErrConstraintCheck, sqlite3.ErrConstraintNotNull:
			return &model.Error{
				Kind:    model.KindValidation,
				Field:   field,
				Message: fmt.Sprintf("%s: %s", op, se.Error()),
				Err:     err,
			}
		}
	}
	if _, ok := model.AsError(err); ok {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

// notFoundIfNoRows converts sql.ErrNoRows into a not-found error.
func notFoundIfNoRows(err error, what, id, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return model.NotFound(what, id)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// requireAffected reports not-found when an UPDATE or DELETE matched nothing.
func requireAffected(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return model.NotFound(what, id)
	}
	return nil
}
