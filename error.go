package txcmd

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrContextNotFound transaction context with the requested id is not registered.
	ErrContextNotFound = errors.New("transaction context not found")
	// ErrTxOptionsMismatch nested scope requested isolation level or mode different from the root transaction.
	ErrTxOptionsMismatch = errors.New("transaction options mismatch")
	// ErrRecordCreationFailed record is still missing after it was created.
	ErrRecordCreationFailed = errors.New("record creation failed")
	// ErrPrimaryKeyMissing declared primary key column is not in the column list.
	ErrPrimaryKeyMissing = errors.New("primary key column is missing")
	// ErrColumnCountMismatch row width differs from the column list.
	ErrColumnCountMismatch = errors.New("column count mismatch")
	// ErrEmptyCondition update or delete without a condition.
	ErrEmptyCondition = errors.New("empty condition")
	// ErrNotStarted connector service is used before Start.
	ErrNotStarted = errors.New("connector is not started")
)

// RecordCreationError is returned by FindOrCreate when the created record cannot be found.
type RecordCreationError struct {
	Table string
	Where map[string]any
}

func (e *RecordCreationError) Error() string {
	return fmt.Sprintf("%s: table %s, condition %v", ErrRecordCreationFailed, e.Table, e.Where)
}

// Is reports ErrRecordCreationFailed as the error kind.
func (e *RecordCreationError) Is(target error) bool {
	return target == ErrRecordCreationFailed
}

// Helpers for working with Postgres errors.
// The pgerrcode package contains Postgres error codes and many useful functions like IsIntegrityConstraintViolation.
// If something is missing there, it is added to this file.
// https://www.postgresql.org/docs/16/errcodes-appendix.html

// IsNoRows checks if the error is a "no rows" error.
func IsNoRows(err error) bool {
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
		return true
	}

	if pgErr, ok := toPgError(err); ok {
		if pgErr.Code == pgerrcode.NoDataFound {
			return true
		}
	}
	return false
}

// IsUniqueViolation checks if the error is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	if pgErr, ok := toPgError(err); ok {
		if pgErr.Code == pgerrcode.UniqueViolation {
			return true
		}
	}
	return false
}

// IsForeignKeyViolation checks if the error is a foreign key constraint violation.
func IsForeignKeyViolation(err error) bool {
	if pgErr, ok := toPgError(err); ok {
		if pgErr.Code == pgerrcode.ForeignKeyViolation {
			return true
		}
	}
	return false
}

// IsSerializationFailure checks if the error is a serialization failure of a serializable transaction.
func IsSerializationFailure(err error) bool {
	if pgErr, ok := toPgError(err); ok {
		if pgErr.Code == pgerrcode.SerializationFailure {
			return true
		}
	}
	return false
}

// IsDeadlock checks if the error is a detected deadlock.
func IsDeadlock(err error) bool {
	if pgErr, ok := toPgError(err); ok {
		if pgErr.Code == pgerrcode.DeadlockDetected {
			return true
		}
	}
	return false
}

// IsRetryable checks if the whole transaction can be safely repeated.
func IsRetryable(err error) bool {
	return IsSerializationFailure(err) || IsDeadlock(err)
}

func toPgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}
