package simulation

import (
	"errors"
	"fmt"

	"github.com/example/refrigerantsim/internal/simnum"
)

// ErrResultSetEmpty is returned by ValidateResult and CompareRuns when
// given no results to work with.
var ErrResultSetEmpty = errors.New("simulation: result set is empty")

// RunComparison summarizes the difference between two runs' consumption
// totals, summed over every year of each run, keyed by application/substance.
type RunComparison struct {
	Application   string
	Substance     string
	BaselineTotal simnum.EngineNumber
	CompareTotal  simnum.EngineNumber
	Delta         simnum.EngineNumber
}

// CompareRuns compares baseline and candidate result sets, which must
// both come from RunTrial (or a single trial of RunTrials), matching
// results by (application, substance) and summing consumption across the
// years present in each set.
func CompareRuns(baseline, candidate []EngineResult) ([]RunComparison, error) {
	if len(baseline) == 0 || len(candidate) == 0 {
		return nil, ErrResultSetEmpty
	}

	baselineTotals := totalConsumptionByKey(baseline)
	candidateTotals := totalConsumptionByKey(candidate)

	seen := make(map[substanceKey]bool)
	var comparisons []RunComparison
	for key, baseTotal := range baselineTotals {
		candTotal := candidateTotals[key]
		comparisons = append(comparisons, RunComparison{
			Application:   key.application,
			Substance:     key.substance,
			BaselineTotal: baseTotal,
			CompareTotal:  candTotal,
			Delta:         simnum.Subtract(candTotal, baseTotal),
		})
		seen[key] = true
	}
	for key, candTotal := range candidateTotals {
		if seen[key] {
			continue
		}
		comparisons = append(comparisons, RunComparison{
			Application:  key.application,
			Substance:    key.substance,
			CompareTotal: candTotal,
			Delta:        candTotal,
		})
	}
	return comparisons, nil
}

type substanceKey struct {
	application string
	substance   string
}

func totalConsumptionByKey(results []EngineResult) map[substanceKey]simnum.EngineNumber {
	totals := make(map[substanceKey]simnum.EngineNumber)
	for _, r := range results {
		key := substanceKey{application: r.Application, substance: r.Substance}
		totals[key] = simnum.Add(totals[key], r.Consumption)
	}
	return totals
}

// ValidateResult checks a result set for internal consistency: every
// result's stream values must be non-negative (mass and count streams
// cannot go negative under this engine's operation set) and sales must
// equal manufacture plus import to within the decimal arithmetic's exact
// tolerance.
func ValidateResult(results []EngineResult) error {
	if len(results) == 0 {
		return ErrResultSetEmpty
	}
	for _, r := range results {
		for name, v := range map[string]simnum.EngineNumber{
			"manufacture":    r.Manufacture,
			"import":         r.Import,
			"export":         r.Export,
			"recycle":        r.Recycle,
			"equipment":      r.Equipment,
			"priorEquipment": r.PriorEquipment,
		} {
			if v.Value.IsNegative() {
				return fmt.Errorf("simulation: %s/%s year %d: %s went negative (%s)", r.Application, r.Substance, r.Year, name, v)
			}
		}
		expectedSales := simnum.Add(r.Manufacture, r.Import)
		if !r.Sales.Value.Equal(expectedSales.Value) {
			return fmt.Errorf("simulation: %s/%s year %d: sales %s does not equal manufacture + import %s", r.Application, r.Substance, r.Year, r.Sales, expectedSales)
		}
	}
	return nil
}
