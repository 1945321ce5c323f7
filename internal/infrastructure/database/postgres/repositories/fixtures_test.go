package repositories

import (
	"database/sql"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/turtacn/insurance-derivatives/internal/domain/obligation"
	"github.com/turtacn/insurance-derivatives/internal/domain/risk"
	"github.com/turtacn/insurance-derivatives/internal/infrastructure/database/postgres"
	"github.com/turtacn/insurance-derivatives/internal/infrastructure/monitoring/logging"
)

var (
	obligationCols = []string{
		"id", "policy_number", "type", "risk_level", "amount", "duration_months", "calculated_value",
		"start_date", "end_date", "status", "notes", "created_at", "updated_at",
	}
	riskCols       = []string{"code", "name", "description", "base_risk_factor", "category"}
	derivativeCols = []string{"id", "name", "total_value", "created_at", "updated_at"}

	storedAt = time.Date(2024, time.March, 1, 9, 30, 0, 0, time.UTC)
)

// mockSuite wires a Connection around sqlmock for the repository suites.
type mockSuite struct {
	suite.Suite
	db     *sql.DB
	mock   sqlmock.Sqlmock
	conn   *postgres.Connection
	logger logging.Logger
}

func (s *mockSuite) SetupTest() {
	var err error
	s.db, s.mock, err = sqlmock.New()
	s.Require().NoError(err)

	s.logger = logging.NewNopLogger()
	s.conn = postgres.NewConnectionWithDB(s.db, s.logger)
}

func (s *mockSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
	s.db.Close()
}

func (s *mockSuite) newHealth() *obligation.Health {
	h, err := obligation.NewHealth(obligation.HealthParams{
		Terms: obligation.Terms{RiskLevel: 0.3, Amount: 50000, DurationMonths: 6},
		HealthDetails: obligation.HealthDetails{
			Age:                     35,
			CoverageLimit:           200000,
			IncludesHospitalization: true,
		},
	})
	require.NoError(s.T(), err)
	return h
}

func (s *mockSuite) newLife() *obligation.Life {
	l, err := obligation.NewLife(obligation.LifeParams{
		Terms:       obligation.Terms{RiskLevel: 0.5, Amount: 1000, DurationMonths: 12},
		LifeDetails: obligation.LifeDetails{Beneficiary: "Jane Doe", IncludesCriticalIllness: true},
	})
	require.NoError(s.T(), err)
	return l
}

// expectInsertObligation queues the statements of a first save of o in an
// open transaction and returns id as the generated key.
func (s *mockSuite) expectInsertObligation(o obligation.Obligation, id int64, extensionTable string) {
	s.mock.ExpectQuery("INSERT INTO insurance_obligations").
		WithArgs(o.PolicyNumber(), string(o.Type()), o.RiskLevel(), o.Amount(), o.DurationMonths(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), string(o.Status()), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id))
	s.mock.ExpectExec("INSERT INTO " + extensionTable).
		WillReturnResult(sqlmock.NewResult(0, 1))
	if len(o.Risks()) > 0 {
		s.mock.ExpectExec("INSERT INTO risks").
			WillReturnResult(sqlmock.NewResult(0, int64(len(o.Risks()))))
		s.mock.ExpectExec("INSERT INTO obligation_risks").
			WillReturnResult(sqlmock.NewResult(0, int64(len(o.Risks()))))
	}
}

// expectLoadLife queues the reads that hydrate a stored life obligation.
func (s *mockSuite) expectLoadLife(id int64) {
	s.mock.ExpectQuery("SELECT id, policy_number").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(obligationCols).AddRow(
			id, "POL-1709285400000-42", "LIFE", 0.5, 1000.0, 12, 1911.0,
			storedAt, storedAt.AddDate(1, 0, 0), "ACTIVE", nil, storedAt, storedAt,
		))
	s.expectLifeExtension(id)
}

func (s *mockSuite) expectLifeExtension(id int64) {
	s.mock.ExpectQuery("FROM life_insurance").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"beneficiary", "includes_critical_illness", "includes_accidental_death"}).
			AddRow("Jane Doe", true, false))
	death := risk.MustStandard(risk.CodeDeath)
	critical := risk.MustStandard(risk.CodeCriticalIllness)
	s.mock.ExpectQuery("FROM risks r").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(riskCols).
			AddRow(critical.Code, critical.Name, critical.Description, critical.BaseRiskFactor, string(critical.Category)).
			AddRow(death.Code, death.Name, death.Description, death.BaseRiskFactor, string(death.Category)))
}
