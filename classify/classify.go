// Package classify maps driver-specific errors onto retry decisions for
// batchinsert.RetryConfig.Classifier.
package classify

import (
	"context"
	"errors"
	"net"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	mssql "github.com/microsoft/go-mssqldb"

	"github.com/rushairer/batchinsert"
)

// PostgreSQL error codes for transient conditions
// See: https://www.postgresql.org/docs/current/errcodes-appendix.html
var pgTransient = map[string]string{
	"08000": "connection",
	"08001": "connection",
	"08003": "connection",
	"08004": "connection",
	"08006": "connection",
	"40001": "serialization",
	"40P01": "deadlock",
	"53000": "resources",
	"53100": "resources",
	"53200": "resources",
	"53300": "resources",
	"55P03": "lock_timeout",
	"57P01": "shutdown",
	"57P02": "shutdown",
	"57P03": "shutdown",
}

// MySQL server error numbers
var mysqlTransient = map[uint16]string{
	1205: "lock_timeout",
	1213: "deadlock",
	1040: "connection", // too many connections
	1053: "shutdown",
	2006: "connection", // server has gone away
	2013: "connection", // lost connection during query
}

// SQL Server error numbers
var mssqlTransient = map[int32]string{
	1205:  "deadlock",
	1222:  "lock_timeout",
	40197: "connection",
	40501: "throttled",
	40613: "connection",
	49918: "resources",
	49919: "resources",
	49920: "resources",
}

// Transient reports whether err is worth retrying and a reason label. Errors raised by the
// engine itself (configuration, foreign transaction, data integrity) are never transient.
// Anything it does not recognise falls through to batchinsert.DefaultRetryClassifier.
func Transient(err error) (bool, string) {
	if err == nil {
		return false, ""
	}
	// context.DeadlineExceeded also satisfies net.Error
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false, "context"
	}
	if errors.Is(err, batchinsert.ErrConfiguration) ||
		errors.Is(err, batchinsert.ErrInvalidOperation) ||
		errors.Is(err, batchinsert.ErrDataIntegrity) {
		return false, "non_retryable"
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return lookup(pgTransient, pgErr.Code)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return lookup(pgTransient, string(pqErr.Code))
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return lookup(mysqlTransient, myErr.Number)
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code {
		case sqlite3.ErrBusy:
			return true, "busy"
		case sqlite3.ErrLocked:
			return true, "locked"
		default:
			return false, "non_retryable"
		}
	}
	var msErr mssql.Error
	if errors.As(err, &msErr) {
		return lookup(mssqlTransient, msErr.Number)
	}
	if errors.Is(err, mysql.ErrInvalidConn) {
		return true, "connection"
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true, "network"
	}
	return batchinsert.DefaultRetryClassifier(err)
}

func lookup[K comparable](table map[K]string, key K) (bool, string) {
	if reason, ok := table[key]; ok {
		return true, reason
	}
	return false, "non_retryable"
}
