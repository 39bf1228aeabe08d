// Package errors turns arbitrary errors into low-cardinality class names for
// metric tags and notification payloads.
package errors

import (
	"context"
	goerrors "errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/quantsignal/forecast-api/internal/core"
	apperrors "github.com/quantsignal/forecast-api/internal/errors"
)

// Classify returns a stable class for err. Known conditions map to fixed
// names; Postgres errors to pg_<sqlstate>; anything else to the type name of
// the innermost wrapped error.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	var (
		netErr net.Error
		pgErr  *pgconn.PgError
	)
	switch {
	case goerrors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case goerrors.Is(err, context.Canceled):
		return "canceled"
	case goerrors.Is(err, core.ErrStoreUnavailable):
		return "store_unavailable"
	case goerrors.As(err, &pgErr):
		return "pg_" + strings.ToLower(pgErr.Code)
	case goerrors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	}
	if code := apperrors.GetCode(err); code != "" {
		return "app_" + string(code)
	}
	return typeClass(innermost(err))
}

func innermost(err error) error {
	for {
		next := goerrors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

// typeClass renders *pkg.SomeError as pkg_someerror.
func typeClass(err error) string {
	name := strings.TrimLeft(fmt.Sprintf("%T", err), "*")
	name = strings.ToLower(strings.ReplaceAll(name, ".", "_"))
	if name == "" {
		return "unknown"
	}
	return name
}
