package risk

import "fmt"

// Standard risk codes attached by the obligation constructors.
const (
	CodeMedicalExpenses  = "HLTH01"
	CodeHospitalization  = "HOSP01"
	CodeDental           = "DENT01"
	CodeDeath            = "DEATH01"
	CodeCriticalIllness  = "CRIL01"
	CodeAccidentalDeath  = "ACCD01"
	CodeFire             = "FIRE01"
	CodeTheft            = "THFT01"
	CodeNaturalDisasters = "NATD01"
)

var standard = []Risk{
	{CodeMedicalExpenses, "Medical expenses", "Coverage of general medical expenses", 0.20, CategoryHealth},
	{CodeHospitalization, "Hospitalization", "Inpatient hospital stays", 0.15, CategoryHealth},
	{CodeDental, "Dental", "Dental care and treatment", 0.10, CategoryHealth},
	{CodeDeath, "Death", "Death of the insured person", 0.25, CategoryLife},
	{CodeCriticalIllness, "Critical illness", "Diagnosis of a covered critical illness", 0.15, CategoryLife},
	{CodeAccidentalDeath, "Accidental death", "Death resulting from an accident", 0.10, CategoryLife},
	{CodeFire, "Fire", "Fire damage to the insured property", 0.15, CategoryProperty},
	{CodeTheft, "Theft", "Theft or burglary at the insured property", 0.10, CategoryProperty},
	{CodeNaturalDisasters, "Natural disasters", "Flood, earthquake and storm damage", 0.20, CategoryProperty},
}

// Standard returns a copy of the nine standard risks.
func Standard() []Risk {
	out := make([]Risk, len(standard))
	copy(out, standard)
	return out
}

// LookupStandard finds a standard risk by code.
func LookupStandard(code string) (Risk, bool) {
	for _, r := range standard {
		if r.Code == code {
			return r, true
		}
	}
	return Risk{}, false
}

// MustStandard returns the standard risk for code and panics for an unknown
// code. It is only called with the package constants above.
func MustStandard(code string) Risk {
	r, ok := LookupStandard(code)
	if !ok {
		panic(fmt.Sprintf("risk: %q is not a standard risk", code))
	}
	return r
}
