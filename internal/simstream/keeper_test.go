package simstream

import (
	"errors"
	"testing"

	"github.com/example/refrigerantsim/internal/simnum"
)

func testId() SubstanceInApplicationId {
	return SubstanceInApplicationId{Application: "domestic refrigeration", Substance: "HFC-134a"}
}

func TestStreamKeeper_UnregisteredSubstanceFails(t *testing.T) {
	k := NewStreamKeeper()
	id := testId()

	if k.HasSubstance(id) {
		t.Fatal("substance should not be registered yet")
	}
	if _, err := k.GetStream(id, Manufacture); !errors.Is(err, ErrUnknownSubstance) {
		t.Fatalf("expected ErrUnknownSubstance, got %v", err)
	}
}

func TestStreamKeeper_SetAndGetStoredStream(t *testing.T) {
	k := NewStreamKeeper()
	id := testId()
	k.EnsureSubstance(id)

	if err := k.SetStream(id, Manufacture, simnum.New(100, "kg")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := k.GetStream(id, Manufacture)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Value.Equal(simnum.New(100, "kg").Value) {
		t.Fatalf("expected 100 kg, got %s", got)
	}
}

func TestStreamKeeper_SalesIsManufacturePlusImport(t *testing.T) {
	k := NewStreamKeeper()
	id := testId()
	k.EnsureSubstance(id)

	_ = k.SetStream(id, Manufacture, simnum.New(100, "kg"))
	_ = k.SetStream(id, Import, simnum.New(50, "kg"))

	sales, err := k.GetStream(id, Sales)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sales.Value.Equal(simnum.New(150, "kg").Value) {
		t.Fatalf("expected 150 kg sales, got %s", sales)
	}
}

func TestStreamKeeper_ConsumptionUsesGhgIntensity(t *testing.T) {
	k := NewStreamKeeper()
	id := testId()
	k.EnsureSubstance(id)

	_ = k.SetStream(id, Manufacture, simnum.New(100, "kg"))
	params, err := k.GetParameterization(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	params.GhgIntensity = simnum.New(2, "tCO2e / kg")

	consumption, err := k.GetStream(id, Consumption)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !consumption.Value.Equal(simnum.New(200, "kg").Value) {
		t.Fatalf("expected 200, got %s", consumption)
	}
}

func TestStreamKeeper_DerivedStreamCannotBeSetDirectly(t *testing.T) {
	k := NewStreamKeeper()
	id := testId()
	k.EnsureSubstance(id)

	if err := k.SetStream(id, Sales, simnum.New(1, "kg")); !errors.Is(err, ErrUnknownStream) {
		t.Fatalf("expected ErrUnknownStream, got %v", err)
	}
}

func TestStreamKeeper_SetStreamRecordsLastSpecifiedUnitsExceptPercent(t *testing.T) {
	k := NewStreamKeeper()
	id := testId()
	k.EnsureSubstance(id)

	_ = k.SetStream(id, Manufacture, simnum.New(10, "mt"))
	params, _ := k.GetParameterization(id)
	if params.LastSpecifiedUnits != "mt" {
		t.Fatalf("expected last specified units mt, got %s", params.LastSpecifiedUnits)
	}

	_ = k.SetStream(id, Recycle, simnum.New(5, "%"))
	if params.LastSpecifiedUnits != "mt" {
		t.Fatalf("percentage write should not overwrite last specified units, got %s", params.LastSpecifiedUnits)
	}
}

func TestStreamKeeper_IncrementYearRollsEquipmentAndResetsRecycle(t *testing.T) {
	k := NewStreamKeeper()
	id := testId()
	k.EnsureSubstance(id)

	_ = k.SetStream(id, Equipment, simnum.New(1000, "units"))
	_ = k.SetStream(id, Recycle, simnum.New(20, "kg"))

	k.IncrementYear()

	prior, err := k.GetStream(id, PriorEquipment)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !prior.Value.Equal(simnum.New(1000, "units").Value) {
		t.Fatalf("expected prior equipment 1000, got %s", prior)
	}

	recycle, err := k.GetStream(id, Recycle)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !recycle.IsZero() {
		t.Fatalf("expected recycle reset to zero, got %s", recycle)
	}
}

func TestStreamKeeper_GetRegisteredSubstancesPreservesOrder(t *testing.T) {
	k := NewStreamKeeper()
	first := SubstanceInApplicationId{Application: "domestic refrigeration", Substance: "HFC-134a"}
	second := SubstanceInApplicationId{Application: "mobile air conditioning", Substance: "HFC-32"}

	k.EnsureSubstance(first)
	k.EnsureSubstance(second)
	k.EnsureSubstance(first) // re-ensure is a no-op, should not duplicate or reorder

	ids := k.GetRegisteredSubstances()
	if len(ids) != 2 || ids[0] != first || ids[1] != second {
		t.Fatalf("expected stable registration order, got %+v", ids)
	}
}
