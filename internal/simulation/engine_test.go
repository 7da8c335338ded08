package simulation

import (
	"context"
	"testing"

	"github.com/example/refrigerantsim/internal/simnum"
	"github.com/example/refrigerantsim/internal/simops"
	"github.com/example/refrigerantsim/internal/simscope"
)

func simpleScenario() Scenario {
	return Scenario{
		Name:      "business as usual",
		StartYear: 2025,
		EndYear:   2027,
		Programs: []SubstanceProgram{
			{
				Application: "domestic refrigeration",
				Substance:   "HFC-134a",
				Operations: []simops.Operation{
					simops.SetOperation{
						Stream: "manufacture",
						Value:  simops.Literal(simnum.New(1000, "kg")),
						Years:  simscope.Unbounded(),
					},
					simops.SetOperation{
						Stream: "import",
						Value:  simops.Literal(simnum.New(200, "kg")),
						Years:  simscope.Unbounded(),
					},
					simops.RetireOperation{
						Rate:  simops.Literal(simnum.New(10, "%")),
						Years: simscope.Unbounded(),
					},
				},
			},
		},
	}
}

func TestEngine_RunTrialProducesOneResultPerYear(t *testing.T) {
	engine := NewEngine(EngineConfig{})
	results, err := engine.RunTrial(context.Background(), simpleScenario(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 yearly results (2025-2027), got %d", len(results))
	}
	if results[0].Year != 2025 || results[2].Year != 2027 {
		t.Fatalf("expected years 2025..2027, got %d..%d", results[0].Year, results[2].Year)
	}
}

func TestEngine_SalesIsManufacturePlusImportEveryYear(t *testing.T) {
	engine := NewEngine(EngineConfig{})
	results, err := engine.RunTrial(context.Background(), simpleScenario(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, r := range results {
		expected := simnum.New(1200, "kg")
		if !r.Sales.Value.Equal(expected.Value) {
			t.Fatalf("year %d: expected sales 1200 kg, got %s", r.Year, r.Sales)
		}
	}
}

func TestEngine_EquipmentAccumulatesAcrossYears(t *testing.T) {
	engine := NewEngine(EngineConfig{})
	results, err := engine.RunTrial(context.Background(), simpleScenario(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !results[1].Equipment.Value.GreaterThan(results[0].Equipment.Value) {
		t.Fatalf("expected equipment to grow year over year, got %s then %s", results[0].Equipment, results[1].Equipment)
	}
}

func TestEngine_RunTrialsProducesIndependentTrials(t *testing.T) {
	engine := NewEngine(EngineConfig{})
	trials, err := engine.RunTrials(context.Background(), simpleScenario(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trials) != 2 {
		t.Fatalf("expected 2 trials, got %d", len(trials))
	}
	if len(trials[0]) != len(trials[1]) {
		t.Fatalf("expected both trials to produce the same result count")
	}
}

func TestEngine_ContextCancellationStopsTheRun(t *testing.T) {
	engine := NewEngine(EngineConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.RunTrial(ctx, simpleScenario(), 0)
	if err == nil {
		t.Fatal("expected an error from a pre-cancelled context")
	}
}

func TestValidateResult_RejectsMismatchedSales(t *testing.T) {
	results := []EngineResult{{
		Manufacture: simnum.New(100, "kg"),
		Import:      simnum.New(50, "kg"),
		Sales:       simnum.New(999, "kg"),
	}}
	if err := ValidateResult(results); err == nil {
		t.Fatal("expected a validation error for mismatched sales")
	}
}

func TestValidateResult_AcceptsConsistentResult(t *testing.T) {
	results := []EngineResult{{
		Manufacture: simnum.New(100, "kg"),
		Import:      simnum.New(50, "kg"),
		Sales:       simnum.New(150, "kg"),
		Equipment:   simnum.New(10, "units"),
	}}
	if err := ValidateResult(results); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCompareRuns_ComputesDeltaPerSubstance(t *testing.T) {
	baseline := []EngineResult{
		{Application: "domestic refrigeration", Substance: "HFC-134a", Consumption: simnum.New(100, "tCO2e")},
	}
	candidate := []EngineResult{
		{Application: "domestic refrigeration", Substance: "HFC-134a", Consumption: simnum.New(80, "tCO2e")},
	}

	comparisons, err := CompareRuns(baseline, candidate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(comparisons) != 1 {
		t.Fatalf("expected 1 comparison, got %d", len(comparisons))
	}
	if !comparisons[0].Delta.Value.Equal(simnum.New(-20, "tCO2e").Value) {
		t.Fatalf("expected delta -20, got %s", comparisons[0].Delta)
	}
}

func TestCompareRuns_EmptySetFails(t *testing.T) {
	if _, err := CompareRuns(nil, []EngineResult{{}}); err != ErrResultSetEmpty {
		t.Fatalf("expected ErrResultSetEmpty, got %v", err)
	}
}
