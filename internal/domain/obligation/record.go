package obligation

import (
	"time"

	"github.com/turtacn/insurance-derivatives/internal/domain/risk"
	"github.com/turtacn/insurance-derivatives/pkg/errors"
)

// Details is the variant-specific part of an obligation: HealthDetails,
// LifeDetails or PropertyDetails.
type Details interface {
	Type() Type
}

// Record is the flat form of the shared obligation fields as they are read
// from or written to the base table.
type Record struct {
	ID              int64
	PolicyNumber    string
	Type            Type
	RiskLevel       float64
	Amount          float64
	DurationMonths  int
	CalculatedValue float64
	StartDate       time.Time
	EndDate         time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Status          Status
	Notes           string
	Risks           []risk.Risk
}

// RecordOf flattens o. CalculatedValue is the cached value, so callers that
// persist it should call CalculateValue first.
func RecordOf(o Obligation) Record {
	b := o.base()
	return Record{
		ID:              b.id,
		PolicyNumber:    b.policyNumber,
		Type:            o.Type(),
		RiskLevel:       b.riskLevel,
		Amount:          b.amount,
		DurationMonths:  b.durationMonths,
		CalculatedValue: b.calculatedValue,
		StartDate:       b.startDate,
		EndDate:         b.endDate,
		CreatedAt:       b.createdAt,
		UpdatedAt:       b.updatedAt,
		Status:          b.status,
		Notes:           b.notes,
		Risks:           b.Risks(),
	}
}

// Restore rebuilds a stored obligation from its base record and extension
// row. Unlike the constructors it attaches no default risks and keeps the
// stored policy number, dates and cached value.
func Restore(rec Record, d Details) (Obligation, error) {
	b, err := restoreBase(rec)
	if err != nil {
		return nil, err
	}
	switch rec.Type {
	case TypeHealth:
		hd, ok := d.(HealthDetails)
		if !ok {
			return nil, castDetails(d, rec.Type)
		}
		if err := hd.validate(); err != nil {
			return nil, err
		}
		return &Health{Base: b, details: hd}, nil
	case TypeLife:
		ld, ok := d.(LifeDetails)
		if !ok {
			return nil, castDetails(d, rec.Type)
		}
		if err := validateBeneficiary(ld.Beneficiary); err != nil {
			return nil, err
		}
		return &Life{Base: b, details: ld}, nil
	case TypeProperty:
		pd, ok := d.(PropertyDetails)
		if !ok {
			return nil, castDetails(d, rec.Type)
		}
		if err := pd.validate(); err != nil {
			return nil, err
		}
		return &Property{Base: b, details: pd}, nil
	default:
		return nil, errors.NewUnknownType(string(rec.Type))
	}
}

func restoreBase(rec Record) (Base, error) {
	terms := Terms{RiskLevel: rec.RiskLevel, Amount: rec.Amount, DurationMonths: rec.DurationMonths}
	if err := terms.validate(); err != nil {
		return Base{}, err
	}
	if !rec.Status.IsValid() {
		return Base{}, errors.Validationf("unknown obligation status %q", rec.Status)
	}
	b := Base{
		id:              rec.ID,
		policyNumber:    rec.PolicyNumber,
		riskLevel:       rec.RiskLevel,
		amount:          rec.Amount,
		durationMonths:  rec.DurationMonths,
		calculatedValue: rec.CalculatedValue,
		startDate:       rec.StartDate,
		endDate:         rec.EndDate,
		createdAt:       rec.CreatedAt,
		updatedAt:       rec.UpdatedAt,
		status:          rec.Status,
		notes:           rec.Notes,
		risks:           make(map[string]risk.Risk, len(rec.Risks)),
	}
	for _, r := range rec.Risks {
		b.risks[r.Code] = r
	}
	return b, nil
}

func castDetails(d Details, want Type) error {
	from := "<nil>"
	if d != nil {
		from = d.Type().DisplayName()
	}
	return errors.NewCast(from, want.DisplayName())
}
