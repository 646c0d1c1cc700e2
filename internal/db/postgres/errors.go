// Package postgres — errors.go переводит ошибки драйвера в ошибки common.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"serotonyl.ru/heartpoints/internal/common"
)

// IsTransient сообщает, имеет ли смысл повторить запрос:
// обрыв соединения, конфликт сериализации или дедлок.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure ||
			pgErr.Code == pgerrcode.DeadlockDetected ||
			pgerrcode.IsConnectionException(pgErr.Code) ||
			pgErr.Code == pgerrcode.AdminShutdown ||
			pgErr.Code == pgerrcode.CannotConnectNow
	}

	if pgconn.SafeToRetry(err) {
		return true
	}

	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection reset by peer")
}

// IsUniqueViolation сообщает, нарушено ли ограничение уникальности.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// Classify оборачивает ошибку драйвера в подходящую ошибку common,
// сохраняя исходную причину в цепочке.
// Ошибки, уже помеченные common-значением, возвращаются как есть.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case isDomainError(err):
		return err
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%w: %w", common.ErrNotFound, err)
	case IsUniqueViolation(err):
		return fmt.Errorf("%w: %w", common.ErrAlreadyExists, err)
	case IsTransient(err), errors.Is(err, context.DeadlineExceeded), pgconn.Timeout(err):
		return fmt.Errorf("%w: %w", common.ErrStoreUnavailable, err)
	default:
		return fmt.Errorf("%w: %w", common.ErrWriteFailed, err)
	}
}

func isDomainError(err error) bool {
	for _, target := range []error{
		common.ErrNotFound,
		common.ErrAlreadyExists,
		common.ErrConflict,
		common.ErrInsufficientBalance,
		common.ErrStoreUnavailable,
		common.ErrWriteFailed,
		common.ErrTaskAlreadyCompleted,
		common.ErrTaskNotCompleted,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
