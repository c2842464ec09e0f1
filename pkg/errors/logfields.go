package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// LogFields flattens err for structured logs: its code and unwrap chain,
// plus the server diagnostics when a Postgres error (pgx or lib/pq) is
// underneath. The error text itself is left to the log call.
func LogFields(err error) map[string]any {
	if err == nil {
		return map[string]any{}
	}
	fields := map[string]any{"error_code": CodeOf(err)}

	var chain []string
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		chain = append(chain, fmt.Sprintf("%T", e))
	}
	fields["error_chain"] = chain

	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case stdErrors.As(err, &pgxErr):
		addPG(fields, pgxErr.Code, pgxErr.ConstraintName, pgxErr.TableName, pgxErr.Detail)
	case stdErrors.As(err, &pqErr):
		addPG(fields, string(pqErr.Code), pqErr.Constraint, pqErr.Table, pqErr.Detail)
	}
	return fields
}

func addPG(fields map[string]any, code, constraint, table, detail string) {
	fields["pg_code"] = code
	if constraint != "" {
		fields["pg_constraint"] = constraint
	}
	if table != "" {
		fields["pg_table"] = table
	}
	if detail != "" {
		fields["pg_detail"] = detail
	}
}
