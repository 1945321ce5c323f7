package repositories

import (
	"context"
	"database/sql"
	stderrors "errors"
	"math"
	"strconv"
	"time"

	"github.com/turtacn/insurance-derivatives/internal/domain/derivative"
	"github.com/turtacn/insurance-derivatives/internal/domain/obligation"
	"github.com/turtacn/insurance-derivatives/internal/infrastructure/database/postgres"
	"github.com/turtacn/insurance-derivatives/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/insurance-derivatives/pkg/errors"
)

const derivativeRepoName = "derivative"

const derivativeColumns = `id, name, total_value, created_at, updated_at`

// totalDriftTolerance bounds the difference between the stored total and
// the one recomputed on load before a warning is logged.
const totalDriftTolerance = 1e-6

type postgresDerivativeRepo struct {
	conn *postgres.Connection
	log  logging.Logger
	opts options
}

// NewDerivativeRepository returns the PostgreSQL derivative repository.
// Obligations are read and written through the same mapper as
// ObligationRepository.
func NewDerivativeRepository(conn *postgres.Connection, log logging.Logger, opts ...Option) derivative.Repository {
	return &postgresDerivativeRepo{
		conn: conn,
		log:  logging.OrNop(log).Named("derivative_repo"),
		opts: buildOptions(opts),
	}
}

func (r *postgresDerivativeRepo) Save(ctx context.Context, d *derivative.Derivative) (err error) {
	defer r.opts.track(derivativeRepoName, "save", time.Now(), &err)
	if d == nil {
		return errors.NewValidation("derivative must not be nil")
	}

	var ws writeSet
	err = r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		return saveDerivative(ctx, tx, d, &ws)
	})
	if err != nil {
		ws.reset()
		return err
	}
	r.opts.committed(ctx, &ws)
	r.log.Debug("Saved derivative",
		logging.DerivativeID(d.ID()),
		logging.Int("obligations", d.Len()),
		logging.Float64("total_value", d.TotalValue()))
	return nil
}

func (r *postgresDerivativeRepo) FindByID(ctx context.Context, id int64) (_ *derivative.Derivative, err error) {
	defer r.opts.track(derivativeRepoName, "find_by_id", time.Now(), &err)

	row := r.conn.DB().QueryRowContext(ctx, `SELECT `+derivativeColumns+` FROM derivatives WHERE id = $1`, id)
	h, err := scanDerivativeHeader(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.New(errors.ErrCodeDerivativeNotFound, "derivative not found").
			WithDetail(strconv.FormatInt(id, 10))
	}
	if err != nil {
		return nil, mapError(err, "failed to find derivative")
	}
	return r.hydrate(ctx, r.conn.DB(), h)
}

func (r *postgresDerivativeRepo) FindAll(ctx context.Context) (_ []*derivative.Derivative, err error) {
	defer r.opts.track(derivativeRepoName, "find_all", time.Now(), &err)
	return r.query(ctx, `SELECT `+derivativeColumns+` FROM derivatives ORDER BY id`)
}

func (r *postgresDerivativeRepo) FindByName(ctx context.Context, substring string) (_ []*derivative.Derivative, err error) {
	defer r.opts.track(derivativeRepoName, "find_by_name", time.Now(), &err)
	return r.query(ctx,
		`SELECT `+derivativeColumns+` FROM derivatives WHERE name ILIKE $1 ESCAPE '\' ORDER BY id`,
		containsPattern(substring))
}

func (r *postgresDerivativeRepo) FindByTotalValueRange(ctx context.Context, min, max float64) (_ []*derivative.Derivative, err error) {
	defer r.opts.track(derivativeRepoName, "find_by_total_value_range", time.Now(), &err)
	if min > max {
		return nil, errors.Validationf("invalid total value range [%v, %v]", min, max)
	}
	return r.query(ctx,
		`SELECT `+derivativeColumns+` FROM derivatives WHERE total_value BETWEEN $1 AND $2 ORDER BY total_value, id`,
		min, max)
}

func (r *postgresDerivativeRepo) Delete(ctx context.Context, id int64) (_ bool, err error) {
	defer r.opts.track(derivativeRepoName, "delete", time.Now(), &err)

	var n int64
	err = r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM derivative_obligations WHERE derivative_id = $1`, id); err != nil {
			return mapError(err, "failed to delete derivative associations")
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM derivatives WHERE id = $1`, id)
		if err != nil {
			return mapError(err, "failed to delete derivative")
		}
		n, err = rowsAffected(res)
		return err
	})
	if err != nil {
		return false, err
	}
	if n > 0 {
		r.log.Info("Deleted derivative", logging.DerivativeID(id))
	}
	return n > 0, nil
}

// saveDerivative writes d and its ordered associations through q, first
// inserting any obligation that has no id yet.
func saveDerivative(ctx context.Context, q queryExecutor, d *derivative.Derivative, ws *writeSet) error {
	obls := d.Obligations()
	for _, o := range obls {
		if o.ID() == 0 {
			if err := saveObligation(ctx, q, o, ws); err != nil {
				return err
			}
		}
	}
	total := d.RecalculateTotal()

	if d.ID() == 0 {
		var id int64
		err := q.QueryRowContext(ctx, `
			INSERT INTO derivatives (name, total_value, created_at, updated_at)
			VALUES ($1, $2, $3, $4)
			RETURNING id`,
			d.Name(), total, d.CreatedAt(), d.UpdatedAt(),
		).Scan(&id)
		if err != nil {
			return mapError(err, "failed to insert derivative")
		}
		ws.assign(d, id)
	} else {
		res, err := q.ExecContext(ctx, `
			UPDATE derivatives SET name = $2, total_value = $3, updated_at = $4
			WHERE id = $1`,
			d.ID(), d.Name(), total, d.UpdatedAt(),
		)
		if err != nil {
			return mapError(err, "failed to update derivative")
		}
		n, err := rowsAffected(res)
		if err != nil {
			return err
		}
		if n == 0 {
			return errors.New(errors.ErrCodeDerivativeNotFound, "derivative not found").
				WithDetail(strconv.FormatInt(d.ID(), 10))
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM derivative_obligations WHERE derivative_id = $1`, d.ID()); err != nil {
			return mapError(err, "failed to clear derivative associations")
		}
	}

	if len(obls) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(obls)*3)
	for i, o := range obls {
		args = append(args, d.ID(), o.ID(), i)
	}
	query := `INSERT INTO derivative_obligations (derivative_id, obligation_id, position) VALUES ` +
		valuesList(len(obls), 3)
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return mapError(err, "failed to link derivative obligations")
	}
	return nil
}

type derivativeHeader struct {
	id         int64
	name       string
	totalValue float64
	createdAt  time.Time
	updatedAt  time.Time
}

func scanDerivativeHeader(s scanner) (derivativeHeader, error) {
	var h derivativeHeader
	if err := s.Scan(&h.id, &h.name, &h.totalValue, &h.createdAt, &h.updatedAt); err != nil {
		return derivativeHeader{}, err
	}
	h.createdAt = h.createdAt.UTC()
	h.updatedAt = h.updatedAt.UTC()
	return h, nil
}

func (r *postgresDerivativeRepo) query(ctx context.Context, query string, args ...interface{}) ([]*derivative.Derivative, error) {
	db := r.conn.DB()
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "failed to query derivatives")
	}
	var headers []derivativeHeader
	for rows.Next() {
		h, err := scanDerivativeHeader(rows)
		if err != nil {
			rows.Close()
			return nil, mapError(err, "failed to scan derivative")
		}
		headers = append(headers, h)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, mapError(err, "failed to iterate derivatives")
	}

	out := make([]*derivative.Derivative, 0, len(headers))
	for _, h := range headers {
		d, err := r.hydrate(ctx, db, h)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// hydrate loads the obligations of h in stored order. An association whose
// obligation row has gone is skipped with a warning.
func (r *postgresDerivativeRepo) hydrate(ctx context.Context, q queryExecutor, h derivativeHeader) (*derivative.Derivative, error) {
	oblIDs, err := int64Column(ctx, q, `
		SELECT obligation_id FROM derivative_obligations
		WHERE derivative_id = $1
		ORDER BY position, obligation_id`, h.id)
	if err != nil {
		return nil, err
	}

	obls := make([]obligation.Obligation, 0, len(oblIDs))
	for _, oid := range oblIDs {
		o, err := findObligation(ctx, q, oid)
		if errors.IsCode(err, errors.ErrCodeObligationNotFound) {
			r.log.Warn("Skipping missing obligation", logging.DerivativeID(h.id), logging.ObligationID(oid))
			continue
		}
		if err != nil {
			return nil, err
		}
		obls = append(obls, o)
	}

	d, err := derivative.Restore(h.id, h.name, h.createdAt, h.updatedAt, obls)
	if err != nil {
		return nil, err
	}
	if math.Abs(d.TotalValue()-h.totalValue) > totalDriftTolerance {
		r.log.Warn("Stored derivative total differs from its obligations",
			logging.DerivativeID(h.id),
			logging.Float64("stored", h.totalValue),
			logging.Float64("computed", d.TotalValue()))
	}
	return d, nil
}
