package repositories

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strconv"
	"time"

	"github.com/lib/pq"
	"github.com/turtacn/insurance-derivatives/internal/domain/derivative"
	"github.com/turtacn/insurance-derivatives/internal/domain/obligation"
	"github.com/turtacn/insurance-derivatives/internal/infrastructure/database/postgres"
	"github.com/turtacn/insurance-derivatives/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/insurance-derivatives/pkg/errors"
)

const obligationRepoName = "obligation"

const obligationColumns = `id, policy_number, type, risk_level, amount, duration_months, calculated_value,
	start_date, end_date, status, notes, created_at, updated_at`

const (
	insertObligationSQL = `
		INSERT INTO insurance_obligations (
			policy_number, type, risk_level, amount, duration_months, calculated_value,
			start_date, end_date, status, notes, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		) RETURNING id
	`
	updateObligationSQL = `
		UPDATE insurance_obligations
		SET risk_level = $2, amount = $3, duration_months = $4, calculated_value = $5,
			start_date = $6, end_date = $7, status = $8, notes = $9, updated_at = $10
		WHERE id = $1
	`
	upsertHealthSQL = `
		INSERT INTO health_insurance (
			obligation_id, age, has_preexisting_conditions, coverage_limit, includes_hospitalization, includes_dental_care
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (obligation_id) DO UPDATE
		SET age = EXCLUDED.age,
			has_preexisting_conditions = EXCLUDED.has_preexisting_conditions,
			coverage_limit = EXCLUDED.coverage_limit,
			includes_hospitalization = EXCLUDED.includes_hospitalization,
			includes_dental_care = EXCLUDED.includes_dental_care
	`
	upsertLifeSQL = `
		INSERT INTO life_insurance (
			obligation_id, beneficiary, includes_critical_illness, includes_accidental_death
		) VALUES ($1, $2, $3, $4)
		ON CONFLICT (obligation_id) DO UPDATE
		SET beneficiary = EXCLUDED.beneficiary,
			includes_critical_illness = EXCLUDED.includes_critical_illness,
			includes_accidental_death = EXCLUDED.includes_accidental_death
	`
	upsertPropertySQL = `
		INSERT INTO property_insurance (
			obligation_id, property_location, property_value, is_high_risk_area, property_type, includes_natural_disasters
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (obligation_id) DO UPDATE
		SET property_location = EXCLUDED.property_location,
			property_value = EXCLUDED.property_value,
			is_high_risk_area = EXCLUDED.is_high_risk_area,
			property_type = EXCLUDED.property_type,
			includes_natural_disasters = EXCLUDED.includes_natural_disasters
	`
	refreshDerivativeTotalsSQL = `
		UPDATE derivatives d
		SET total_value = COALESCE((
				SELECT SUM(o.calculated_value)
				FROM derivative_obligations x
				JOIN insurance_obligations o ON o.id = x.obligation_id
				WHERE x.derivative_id = d.id
			), 0),
			updated_at = NOW()
		WHERE d.id = ANY($1)
	`
)

// ObligationRepository stores obligations in the base table plus one
// extension table per variant.
type ObligationRepository struct {
	conn *postgres.Connection
	log  logging.Logger
	opts options
}

var _ derivative.ObligationRepository = (*ObligationRepository)(nil)

func NewObligationRepository(conn *postgres.Connection, log logging.Logger, opts ...Option) *ObligationRepository {
	return &ObligationRepository{
		conn: conn,
		log:  logging.OrNop(log).Named("obligation_repo"),
		opts: buildOptions(opts),
	}
}

func (r *ObligationRepository) Save(ctx context.Context, o obligation.Obligation) (err error) {
	defer r.opts.track(obligationRepoName, "save", time.Now(), &err)
	if o == nil {
		return errors.NewValidation("obligation must not be nil")
	}

	var ws writeSet
	err = r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		return saveObligation(ctx, tx, o, &ws)
	})
	if err != nil {
		ws.reset()
		return err
	}
	r.opts.committed(ctx, &ws)
	r.log.Debug("Saved obligation",
		logging.ObligationID(o.ID()),
		logging.String("type", string(o.Type())),
		logging.Float64("calculated_value", o.CalculatedValue()))
	return nil
}

// SaveToDerivative saves o, adds it to d and saves d in one transaction. On
// failure d is left as it was before the call.
func (r *ObligationRepository) SaveToDerivative(ctx context.Context, o obligation.Obligation, d *derivative.Derivative) (err error) {
	defer r.opts.track(obligationRepoName, "save_to_derivative", time.Now(), &err)
	if o == nil || d == nil {
		return errors.NewValidation("obligation and derivative must not be nil")
	}

	var (
		ws    writeSet
		added bool
	)
	err = r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		if err := saveObligation(ctx, tx, o, &ws); err != nil {
			return err
		}
		added = d.AddObligation(o)
		return saveDerivative(ctx, tx, d, &ws)
	})
	if err != nil {
		ws.reset()
		if added {
			d.RemoveObligation(o)
		}
		return err
	}
	r.opts.committed(ctx, &ws)
	r.log.Info("Saved obligation to derivative",
		logging.ObligationID(o.ID()),
		logging.DerivativeID(d.ID()))
	return nil
}

func (r *ObligationRepository) FindByID(ctx context.Context, id int64) (_ obligation.Obligation, err error) {
	defer r.opts.track(obligationRepoName, "find_by_id", time.Now(), &err)
	return findObligation(ctx, r.conn.DB(), id)
}

func (r *ObligationRepository) FindAll(ctx context.Context) (_ []obligation.Obligation, err error) {
	defer r.opts.track(obligationRepoName, "find_all", time.Now(), &err)
	return queryObligations(ctx, r.conn.DB(),
		`SELECT `+obligationColumns+` FROM insurance_obligations ORDER BY id`)
}

func (r *ObligationRepository) FindByStatus(ctx context.Context, status obligation.Status) (_ []obligation.Obligation, err error) {
	defer r.opts.track(obligationRepoName, "find_by_status", time.Now(), &err)
	if !status.IsValid() {
		return nil, errors.Validationf("unknown obligation status %q", status)
	}
	return queryObligations(ctx, r.conn.DB(),
		`SELECT `+obligationColumns+` FROM insurance_obligations WHERE status = $1 ORDER BY id`, string(status))
}

func (r *ObligationRepository) FindByType(ctx context.Context, t obligation.Type) (_ []obligation.Obligation, err error) {
	defer r.opts.track(obligationRepoName, "find_by_type", time.Now(), &err)
	if _, err = obligation.ParseType(string(t)); err != nil {
		return nil, err
	}
	return queryObligations(ctx, r.conn.DB(),
		`SELECT `+obligationColumns+` FROM insurance_obligations WHERE type = $1 ORDER BY id`, string(t))
}

func (r *ObligationRepository) Delete(ctx context.Context, id int64) (_ bool, err error) {
	defer r.opts.track(obligationRepoName, "delete", time.Now(), &err)

	var deleted bool
	err = r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		deleted, err = deleteObligation(ctx, tx, id)
		return err
	})
	if err != nil {
		return false, err
	}
	if deleted {
		r.log.Info("Deleted obligation", logging.ObligationID(id))
	}
	return deleted, nil
}

// saveObligation writes o and its risk set through q, which is expected to
// be a transaction.
func saveObligation(ctx context.Context, q queryExecutor, o obligation.Obligation, ws *writeSet) error {
	o.CalculateValue()
	rec := obligation.RecordOf(o)
	notes := sql.NullString{String: rec.Notes, Valid: rec.Notes != ""}
	inserting := rec.ID == 0

	if inserting {
		var id int64
		err := q.QueryRowContext(ctx, insertObligationSQL,
			rec.PolicyNumber, string(rec.Type), rec.RiskLevel, rec.Amount, rec.DurationMonths, rec.CalculatedValue,
			rec.StartDate, rec.EndDate, string(rec.Status), notes, rec.CreatedAt, rec.UpdatedAt,
		).Scan(&id)
		if err != nil {
			return mapError(err, "failed to insert obligation")
		}
		ws.assign(o, id)
		rec.ID = id
	} else {
		res, err := q.ExecContext(ctx, updateObligationSQL,
			rec.ID, rec.RiskLevel, rec.Amount, rec.DurationMonths, rec.CalculatedValue,
			rec.StartDate, rec.EndDate, string(rec.Status), notes, rec.UpdatedAt,
		)
		if err != nil {
			return mapError(err, "failed to update obligation")
		}
		n, err := rowsAffected(res)
		if err != nil {
			return err
		}
		if n == 0 {
			return obligationNotFound(rec.ID)
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM obligation_risks WHERE obligation_id = $1`, rec.ID); err != nil {
			return mapError(err, "failed to clear obligation risks")
		}
	}

	if err := saveDetails(ctx, q, rec.ID, o.Details()); err != nil {
		return err
	}
	if err := saveObligationRisks(ctx, q, rec, ws); err != nil {
		return err
	}
	if inserting {
		return nil
	}
	// The stored totals of derivatives that already hold o follow its new value.
	derivativeIDs, err := int64Column(ctx, q,
		`SELECT derivative_id FROM derivative_obligations WHERE obligation_id = $1`, rec.ID)
	if err != nil {
		return err
	}
	return refreshDerivativeTotals(ctx, q, derivativeIDs)
}

func saveDetails(ctx context.Context, q queryExecutor, id int64, d obligation.Details) error {
	var err error
	switch d := d.(type) {
	case obligation.HealthDetails:
		_, err = q.ExecContext(ctx, upsertHealthSQL,
			id, d.Age, d.HasPreexistingConditions, d.CoverageLimit, d.IncludesHospitalization, d.IncludesDentalCare)
	case obligation.LifeDetails:
		_, err = q.ExecContext(ctx, upsertLifeSQL,
			id, d.Beneficiary, d.IncludesCriticalIllness, d.IncludesAccidentalDeath)
	case obligation.PropertyDetails:
		_, err = q.ExecContext(ctx, upsertPropertySQL,
			id, d.PropertyLocation, d.PropertyValue, d.IsHighRiskArea, string(d.PropertyType), d.IncludesNaturalDisasters)
	default:
		return errors.NewUnknownType(fmt.Sprintf("%T", d))
	}
	if err != nil {
		return mapError(err, "failed to save obligation details")
	}
	return nil
}

func saveObligationRisks(ctx context.Context, q queryExecutor, rec obligation.Record, ws *writeSet) error {
	if len(rec.Risks) == 0 {
		return nil
	}
	inserted, err := upsertRisks(ctx, q, rec.Risks)
	if err != nil {
		return err
	}
	args := make([]interface{}, 0, len(rec.Risks)*2)
	codes := make([]string, 0, len(rec.Risks))
	for _, rk := range rec.Risks {
		args = append(args, rec.ID, rk.Code)
		codes = append(codes, rk.Code)
	}
	if inserted > 0 {
		ws.risksAdded(codes...)
	}
	query := `INSERT INTO obligation_risks (obligation_id, risk_code) VALUES ` + valuesList(len(rec.Risks), 2)
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return mapError(err, "failed to link obligation risks")
	}
	return nil
}

// refreshDerivativeTotals recomputes the stored total of each derivative in
// ids from the calculated values of its obligations.
func refreshDerivativeTotals(ctx context.Context, q queryExecutor, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := q.ExecContext(ctx, refreshDerivativeTotalsSQL, pq.Array(ids)); err != nil {
		return mapError(err, "failed to refresh derivative totals")
	}
	return nil
}

func obligationNotFound(id int64) error {
	return errors.New(errors.ErrCodeObligationNotFound, "obligation not found").WithDetail(strconv.FormatInt(id, 10))
}

func findObligation(ctx context.Context, q queryExecutor, id int64) (obligation.Obligation, error) {
	row := q.QueryRowContext(ctx, `SELECT `+obligationColumns+` FROM insurance_obligations WHERE id = $1`, id)
	rec, err := scanObligationRecord(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, obligationNotFound(id)
	}
	if err != nil {
		return nil, mapError(err, "failed to find obligation")
	}
	return hydrateObligation(ctx, q, rec)
}

// queryObligations reads every matching base row before hydrating, so no
// result set is open during the nested reads.
func queryObligations(ctx context.Context, q queryExecutor, query string, args ...interface{}) ([]obligation.Obligation, error) {
	recs, err := queryObligationRecords(ctx, q, query, args...)
	if err != nil {
		return nil, err
	}
	out := make([]obligation.Obligation, 0, len(recs))
	for _, rec := range recs {
		o, err := hydrateObligation(ctx, q, rec)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func queryObligationRecords(ctx context.Context, q queryExecutor, query string, args ...interface{}) ([]obligation.Record, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "failed to query obligations")
	}
	defer rows.Close()

	var recs []obligation.Record
	for rows.Next() {
		rec, err := scanObligationRecord(rows)
		if err != nil {
			return nil, mapError(err, "failed to scan obligation")
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "failed to iterate obligations")
	}
	return recs, nil
}

func scanObligationRecord(s scanner) (obligation.Record, error) {
	var (
		rec    obligation.Record
		typ    string
		status string
		notes  sql.NullString
	)
	err := s.Scan(
		&rec.ID, &rec.PolicyNumber, &typ, &rec.RiskLevel, &rec.Amount, &rec.DurationMonths, &rec.CalculatedValue,
		&rec.StartDate, &rec.EndDate, &status, &notes, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return obligation.Record{}, err
	}
	rec.Type = obligation.Type(typ)
	rec.Status = obligation.Status(status)
	rec.Notes = notes.String
	rec.StartDate = rec.StartDate.UTC()
	rec.EndDate = rec.EndDate.UTC()
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return rec, nil
}

// hydrateObligation loads the extension row for rec's type and its risk set,
// then rebuilds the variant.
func hydrateObligation(ctx context.Context, q queryExecutor, rec obligation.Record) (obligation.Obligation, error) {
	d, err := loadDetails(ctx, q, rec.ID, rec.Type)
	if err != nil {
		return nil, err
	}
	rec.Risks, err = loadObligationRisks(ctx, q, rec.ID)
	if err != nil {
		return nil, err
	}
	return obligation.Restore(rec, d)
}

func loadDetails(ctx context.Context, q queryExecutor, id int64, t obligation.Type) (obligation.Details, error) {
	switch t {
	case obligation.TypeHealth:
		var d obligation.HealthDetails
		err := q.QueryRowContext(ctx, `
			SELECT age, has_preexisting_conditions, coverage_limit, includes_hospitalization, includes_dental_care
			FROM health_insurance WHERE obligation_id = $1`, id,
		).Scan(&d.Age, &d.HasPreexistingConditions, &d.CoverageLimit, &d.IncludesHospitalization, &d.IncludesDentalCare)
		return d, detailsError(err, id, t)
	case obligation.TypeLife:
		var d obligation.LifeDetails
		err := q.QueryRowContext(ctx, `
			SELECT beneficiary, includes_critical_illness, includes_accidental_death
			FROM life_insurance WHERE obligation_id = $1`, id,
		).Scan(&d.Beneficiary, &d.IncludesCriticalIllness, &d.IncludesAccidentalDeath)
		return d, detailsError(err, id, t)
	case obligation.TypeProperty:
		var (
			d  obligation.PropertyDetails
			pt string
		)
		err := q.QueryRowContext(ctx, `
			SELECT property_location, property_value, is_high_risk_area, property_type, includes_natural_disasters
			FROM property_insurance WHERE obligation_id = $1`, id,
		).Scan(&d.PropertyLocation, &d.PropertyValue, &d.IsHighRiskArea, &pt, &d.IncludesNaturalDisasters)
		d.PropertyType = obligation.PropertyType(pt)
		return d, detailsError(err, id, t)
	default:
		return nil, errors.NewUnknownType(string(t))
	}
}

func detailsError(err error, id int64, t obligation.Type) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, sql.ErrNoRows) {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "obligation details row is missing").
			WithDetail(fmt.Sprintf("%s obligation %d", t, id))
	}
	return mapError(err, "failed to load obligation details")
}

func deleteObligation(ctx context.Context, q queryExecutor, id int64) (bool, error) {
	derivativeIDs, err := int64Column(ctx, q,
		`DELETE FROM derivative_obligations WHERE obligation_id = $1 RETURNING derivative_id`, id)
	if err != nil {
		return false, err
	}
	for _, stmt := range []string{
		`DELETE FROM obligation_risks WHERE obligation_id = $1`,
		`DELETE FROM health_insurance WHERE obligation_id = $1`,
		`DELETE FROM life_insurance WHERE obligation_id = $1`,
		`DELETE FROM property_insurance WHERE obligation_id = $1`,
	} {
		if _, err := q.ExecContext(ctx, stmt, id); err != nil {
			return false, mapError(err, "failed to delete obligation rows")
		}
	}
	res, err := q.ExecContext(ctx, `DELETE FROM insurance_obligations WHERE id = $1`, id)
	if err != nil {
		return false, mapError(err, "failed to delete obligation")
	}
	n, err := rowsAffected(res)
	if err != nil {
		return false, err
	}
	if err := refreshDerivativeTotals(ctx, q, derivativeIDs); err != nil {
		return false, err
	}
	return n > 0, nil
}
