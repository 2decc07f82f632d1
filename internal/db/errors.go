package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"Courier/internal/apperr"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// sqlState достаёт код SQLSTATE из ошибки любого из двух драйверов.
func sqlState(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// classify переводит ошибку драйвера в таксономию apperr.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", apperr.ErrNotFound, op)
	}

	// Отмена или таймаут вызывающего не говорят о доступности базы
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperr.Transient(op, err)
	}

	code := sqlState(err)
	switch {
	case code == "23505":
		return apperr.Conflict("%s: запись уже существует", op)
	case code == "23514", code == "23502", code == "23503", strings.HasPrefix(code, "22"):
		return apperr.Validation("%s: данные нарушают ограничения: %v", op, err)
	case isConnectionError(code, err):
		return apperr.Unavailable(op, err)
	}
	// 40001 (serialization), 40P01 (deadlock) и прочее - повторяемо, база при этом доступна
	return apperr.Transient(op, err)
}

// isConnectionError - ошибки класса "база недоступна".
// 08xxx - соединение, 57P01..57P03 - сервер останавливается или ещё не принимает подключения.
func isConnectionError(code string, err error) bool {
	if strings.HasPrefix(code, "08") || code == "57P01" || code == "57P02" || code == "57P03" {
		return true
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var connErr *pgconn.ConnectError
	return errors.As(err, &connErr)
}
