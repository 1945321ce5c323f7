package repositories

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"
	"time"

	"github.com/turtacn/insurance-derivatives/internal/domain/risk"
	"github.com/turtacn/insurance-derivatives/internal/infrastructure/database/postgres"
	"github.com/turtacn/insurance-derivatives/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/insurance-derivatives/pkg/errors"
)

const riskRepoName = "risk"

const riskColumns = `code, name, description, base_risk_factor, category`

const insertRiskIgnoreSQL = `
	INSERT INTO risks (code, name, description, base_risk_factor, category)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (code) DO NOTHING
`

type postgresRiskRepo struct {
	conn *postgres.Connection
	log  logging.Logger
	opts options
}

// NewRiskRepository returns the PostgreSQL risk catalogue.
func NewRiskRepository(conn *postgres.Connection, log logging.Logger, opts ...Option) risk.Repository {
	return &postgresRiskRepo{
		conn: conn,
		log:  logging.OrNop(log).Named("risk_repo"),
		opts: buildOptions(opts),
	}
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (r *postgresRiskRepo) Save(ctx context.Context, rk risk.Risk) (err error) {
	defer r.opts.track(riskRepoName, "save", time.Now(), &err)

	rk, err = risk.New(rk.Code, rk.Name, rk.Description, rk.BaseRiskFactor, rk.Category)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO risks (code, name, description, base_risk_factor, category)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO UPDATE
		SET name = EXCLUDED.name,
			description = EXCLUDED.description,
			base_risk_factor = EXCLUDED.base_risk_factor,
			category = EXCLUDED.category
	`
	if _, err = r.conn.DB().ExecContext(ctx, query,
		rk.Code, rk.Name, rk.Description, rk.BaseRiskFactor, string(rk.Category),
	); err != nil {
		return mapError(err, "failed to save risk")
	}
	r.log.Debug("Saved risk", logging.RiskCode(rk.Code))
	return nil
}

func (r *postgresRiskRepo) FindByCode(ctx context.Context, code string) (_ risk.Risk, err error) {
	defer r.opts.track(riskRepoName, "find_by_code", time.Now(), &err)

	code = normalizeCode(code)
	row := r.conn.DB().QueryRowContext(ctx, `SELECT `+riskColumns+` FROM risks WHERE code = $1`, code)
	rk, err := scanRisk(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return risk.Risk{}, errors.New(errors.ErrCodeRiskNotFound, "risk not found").WithDetail(code)
	}
	if err != nil {
		return risk.Risk{}, mapError(err, "failed to find risk")
	}
	return rk, nil
}

func (r *postgresRiskRepo) FindAll(ctx context.Context) (_ []risk.Risk, err error) {
	defer r.opts.track(riskRepoName, "find_all", time.Now(), &err)
	return queryRisks(ctx, r.conn.DB(), `SELECT `+riskColumns+` FROM risks ORDER BY code`)
}

func (r *postgresRiskRepo) FindByCategory(ctx context.Context, c risk.Category) (_ []risk.Risk, err error) {
	defer r.opts.track(riskRepoName, "find_by_category", time.Now(), &err)
	if !c.IsValid() {
		return nil, errors.Validationf("unknown risk category %q", c)
	}
	return queryRisks(ctx, r.conn.DB(),
		`SELECT `+riskColumns+` FROM risks WHERE category = $1 ORDER BY code`, string(c))
}

func (r *postgresRiskRepo) FindByNamePattern(ctx context.Context, pattern string) (_ []risk.Risk, err error) {
	defer r.opts.track(riskRepoName, "find_by_name_pattern", time.Now(), &err)
	return queryRisks(ctx, r.conn.DB(),
		`SELECT `+riskColumns+` FROM risks WHERE name ILIKE $1 ESCAPE '\' ORDER BY code`, containsPattern(pattern))
}

func (r *postgresRiskRepo) FindByRiskFactorRange(ctx context.Context, min, max float64) (_ []risk.Risk, err error) {
	defer r.opts.track(riskRepoName, "find_by_risk_factor_range", time.Now(), &err)
	if min > max {
		return nil, errors.Validationf("invalid risk factor range [%v, %v]", min, max)
	}
	return queryRisks(ctx, r.conn.DB(),
		`SELECT `+riskColumns+` FROM risks WHERE base_risk_factor BETWEEN $1 AND $2 ORDER BY base_risk_factor, code`, min, max)
}

func (r *postgresRiskRepo) FindByObligationID(ctx context.Context, obligationID int64) (_ []risk.Risk, err error) {
	defer r.opts.track(riskRepoName, "find_by_obligation_id", time.Now(), &err)
	return loadObligationRisks(ctx, r.conn.DB(), obligationID)
}

func (r *postgresRiskRepo) ExistsByCode(ctx context.Context, code string) (_ bool, err error) {
	defer r.opts.track(riskRepoName, "exists_by_code", time.Now(), &err)

	var exists bool
	if err = r.conn.DB().QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM risks WHERE code = $1)`, normalizeCode(code),
	).Scan(&exists); err != nil {
		return false, mapError(err, "failed to check risk")
	}
	return exists, nil
}

func (r *postgresRiskRepo) Delete(ctx context.Context, code string) (_ bool, err error) {
	defer r.opts.track(riskRepoName, "delete", time.Now(), &err)

	code = normalizeCode(code)
	res, err := r.conn.DB().ExecContext(ctx, `DELETE FROM risks WHERE code = $1`, code)
	if err != nil {
		if isForeignKeyViolation(err) {
			return false, errors.Wrap(err, errors.ErrCodeRiskInUse, "risk is still covered by an obligation").WithDetail(code)
		}
		return false, mapError(err, "failed to delete risk")
	}
	n, err := rowsAffected(res)
	if err != nil {
		return false, err
	}
	if n > 0 {
		r.log.Info("Deleted risk", logging.RiskCode(code))
	}
	return n > 0, nil
}

func (r *postgresRiskRepo) SeedStandard(ctx context.Context) (_ int, err error) {
	defer r.opts.track(riskRepoName, "seed_standard", time.Now(), &err)

	var inserted int64
	err = r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		for _, rk := range risk.Standard() {
			res, err := tx.ExecContext(ctx, insertRiskIgnoreSQL,
				rk.Code, rk.Name, rk.Description, rk.BaseRiskFactor, string(rk.Category))
			if err != nil {
				return mapError(err, "failed to seed risk "+rk.Code)
			}
			n, err := rowsAffected(res)
			if err != nil {
				return err
			}
			inserted += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	r.log.Info("Seeded standard risks", logging.Int64("inserted", inserted))
	return int(inserted), nil
}

func scanRisk(s scanner) (risk.Risk, error) {
	var (
		rk       risk.Risk
		category string
	)
	if err := s.Scan(&rk.Code, &rk.Name, &rk.Description, &rk.BaseRiskFactor, &category); err != nil {
		return risk.Risk{}, err
	}
	rk.Category = risk.Category(category)
	return rk, nil
}

func queryRisks(ctx context.Context, q queryExecutor, query string, args ...interface{}) ([]risk.Risk, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "failed to query risks")
	}
	defer rows.Close()

	out := []risk.Risk{}
	for rows.Next() {
		rk, err := scanRisk(rows)
		if err != nil {
			return nil, mapError(err, "failed to scan risk")
		}
		out = append(out, rk)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "failed to iterate risks")
	}
	return out, nil
}

func loadObligationRisks(ctx context.Context, q queryExecutor, obligationID int64) ([]risk.Risk, error) {
	return queryRisks(ctx, q, `
		SELECT r.code, r.name, r.description, r.base_risk_factor, r.category
		FROM risks r
		JOIN obligation_risks o ON o.risk_code = r.code
		WHERE o.obligation_id = $1
		ORDER BY r.code`, obligationID)
}

// upsertRisks makes sure every risk in rs has a catalogue row. Existing rows
// are left as they are. It returns the number of rows inserted.
func upsertRisks(ctx context.Context, q queryExecutor, rs []risk.Risk) (int64, error) {
	if len(rs) == 0 {
		return 0, nil
	}
	args := make([]interface{}, 0, len(rs)*5)
	for _, rk := range rs {
		args = append(args, rk.Code, rk.Name, rk.Description, rk.BaseRiskFactor, string(rk.Category))
	}
	query := `INSERT INTO risks (code, name, description, base_risk_factor, category) VALUES ` +
		valuesList(len(rs), 5) + ` ON CONFLICT (code) DO NOTHING`
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, mapError(err, "failed to upsert risks")
	}
	return rowsAffected(res)
}
