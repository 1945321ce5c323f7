// Package repositories holds the PostgreSQL implementations of the domain
// repositories. Every multi-statement write runs inside one transaction.
package repositories

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/turtacn/insurance-derivatives/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/insurance-derivatives/pkg/errors"
)

// queryExecutor abstracts sql.DB and sql.Tx
type queryExecutor interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// scanner abstracts sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// PostgreSQL SQLSTATE codes the repositories translate.
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// Option configures a repository.
type Option func(*options)

type options struct {
	metrics    *prometheus.RepositoryMetrics
	risksAdded func(ctx context.Context, codes []string)
}

// WithMetrics records every repository call on m.
func WithMetrics(m *prometheus.RepositoryMetrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithRisksAdded calls fn after a committed obligation write inserted
// catalogue rows for risks the catalogue did not hold yet. codes lists every
// risk the write carried.
func WithRisksAdded(fn func(ctx context.Context, codes []string)) Option {
	return func(o *options) { o.risksAdded = fn }
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// track is deferred at the top of each repository method with a pointer to
// its named error result.
func (o options) track(repository, operation string, start time.Time, err *error) {
	o.metrics.Observe(repository, operation, time.Since(start), *err)
}

// committed runs the post-commit hooks for ws.
func (o options) committed(ctx context.Context, ws *writeSet) {
	if o.risksAdded != nil && len(ws.addedRisks) > 0 {
		o.risksAdded(ctx, ws.addedRisks)
	}
}

// mapError translates a driver error into an *errors.AppError. Errors that
// already carry a code pass through unchanged.
func mapError(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return err
	}
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
		return errors.Wrap(err, errors.ErrCodeTimeout, message)
	}
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqUniqueViolation, pqForeignKeyViolation:
			return errors.Wrap(err, errors.ErrCodeConflict, message).WithDetail(pqErr.Constraint)
		}
	}
	return errors.Wrap(err, errors.ErrCodeDatabaseError, message)
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return stderrors.As(err, &pqErr) && string(pqErr.Code) == pqForeignKeyViolation
}

type idSetter interface {
	SetID(id int64)
}

// writeSet records what one transaction did: the entities that received an
// id, reset when it rolls back, and the risk codes it added to the catalogue.
type writeSet struct {
	assigned   []idSetter
	addedRisks []string
}

func (t *writeSet) assign(e idSetter, id int64) {
	e.SetID(id)
	t.assigned = append(t.assigned, e)
}

func (t *writeSet) reset() {
	for _, e := range t.assigned {
		e.SetID(0)
	}
	t.assigned = nil
	t.addedRisks = nil
}

func (t *writeSet) risksAdded(codes ...string) {
	t.addedRisks = append(t.addedRisks, codes...)
}

// valuesList renders "($1, $2), ($3, $4)" for rows tuples of cols
// placeholders each.
func valuesList(rows, cols int) string {
	var sb strings.Builder
	n := 1
	for i := 0; i < rows; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for j := 0; j < cols; j++ {
			if j > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", n)
			n++
		}
		sb.WriteByte(')')
	}
	return sb.String()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds an ILIKE pattern matching s literally anywhere.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

func rowsAffected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to read rows affected")
	}
	return n, nil
}

// int64Column runs a single-column query and collects the values.
func int64Column(ctx context.Context, q queryExecutor, query string, args ...interface{}) ([]int64, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "failed to query ids")
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, mapError(err, "failed to scan id")
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "failed to iterate ids")
	}
	return out, nil
}
