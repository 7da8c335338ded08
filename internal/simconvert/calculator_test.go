package simconvert

import (
	"errors"
	"testing"

	"github.com/example/refrigerantsim/internal/simnum"
)

// fakeState is a minimal StateGetter for converter tests.
type fakeState struct {
	streams         map[string]simnum.EngineNumber
	ghgIntensity    simnum.EngineNumber
	energyIntensity simnum.EngineNumber
	unitVolume      simnum.EngineNumber
}

func (f *fakeState) GetStream(stream string) (simnum.EngineNumber, error) {
	v, ok := f.streams[stream]
	if !ok {
		return simnum.EngineNumber{}, ErrUnknownStream
	}
	return v, nil
}

func (f *fakeState) GetGhgIntensity() simnum.EngineNumber    { return f.ghgIntensity }
func (f *fakeState) GetEnergyIntensity() simnum.EngineNumber { return f.energyIntensity }
func (f *fakeState) GetAmortizedUnitVolume() (simnum.EngineNumber, error) {
	return f.unitVolume, nil
}

func newFakeState() *fakeState {
	return &fakeState{
		streams:         map[string]simnum.EngineNumber{},
		ghgIntensity:    simnum.New(5, "tCO2e / kg"),
		energyIntensity: simnum.New(2, "kwh / kg"),
		unitVolume:      simnum.New(0.5, "kg / unit"),
	}
}

func TestConvert_SameUnitsPassThrough(t *testing.T) {
	c := NewUnitConverter(newFakeState())
	result, err := c.Convert(simnum.New(10, "kg"), "kg", simnum.EngineNumber{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Value.Equal(simnum.New(10, "kg").Value) {
		t.Fatalf("expected 10, got %s", result)
	}
}

func TestConvert_MassFamilyKgToMt(t *testing.T) {
	c := NewUnitConverter(newFakeState())
	result, err := c.Convert(simnum.New(2000, "kg"), "mt", simnum.EngineNumber{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Value.Equal(simnum.New(2, "mt").Value) {
		t.Fatalf("expected 2 mt, got %s", result)
	}
}

func TestConvert_MassToCountViaAmortizedUnitVolume(t *testing.T) {
	c := NewUnitConverter(newFakeState())
	result, err := c.Convert(simnum.New(10, "kg"), "units", simnum.EngineNumber{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Value.Equal(simnum.New(20, "units").Value) {
		t.Fatalf("expected 20 units (10kg / 0.5kg per unit), got %s", result)
	}
}

func TestConvert_MassToConsumptionViaGhgIntensity(t *testing.T) {
	c := NewUnitConverter(newFakeState())
	result, err := c.Convert(simnum.New(3, "kg"), "tCO2e", simnum.EngineNumber{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Value.Equal(simnum.New(15, "tCO2e").Value) {
		t.Fatalf("expected 15 tCO2e, got %s", result)
	}
}

func TestConvert_MassToEnergyViaEnergyIntensity(t *testing.T) {
	c := NewUnitConverter(newFakeState())
	result, err := c.Convert(simnum.New(3, "kg"), "kwh", simnum.EngineNumber{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Value.Equal(simnum.New(6, "kwh").Value) {
		t.Fatalf("expected 6 kwh, got %s", result)
	}
}

func TestConvert_PercentAgainstContextBase(t *testing.T) {
	c := NewUnitConverter(newFakeState())
	context := simnum.New(200, "units")

	result, err := c.Convert(simnum.New(10, "%"), "units", context)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Value.Equal(simnum.New(20, "units").Value) {
		t.Fatalf("expected 20 units (10%% of 200), got %s", result)
	}
}

func TestConvert_PercentWithZeroBaseFails(t *testing.T) {
	c := NewUnitConverter(newFakeState())
	_, err := c.Convert(simnum.New(50, "units"), "%", simnum.Zero("units"))
	if !errors.Is(err, ErrMissingContextValue) {
		t.Fatalf("expected ErrMissingContextValue, got %v", err)
	}
}

func TestConvert_EachYearSuffixReconciledOnBothSides(t *testing.T) {
	c := NewUnitConverter(newFakeState())
	result, err := c.Convert(simnum.New(2000, "kgeachyear"), "mteachyear", simnum.EngineNumber{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Units != "mteachyear" {
		t.Fatalf("expected mteachyear, got %s", result.Units)
	}
	if !result.Value.Equal(simnum.New(2, "mt").Value) {
		t.Fatalf("expected value 2, got %s", result.Value)
	}
}

func TestConvert_EachYearMismatchIsIncompatible(t *testing.T) {
	c := NewUnitConverter(newFakeState())
	_, err := c.Convert(simnum.New(5, "kgeachyear"), "kg", simnum.EngineNumber{})
	if !errors.Is(err, ErrIncompatibleUnits) {
		t.Fatalf("expected ErrIncompatibleUnits, got %v", err)
	}
}

func TestOverridingStateGetter_OverridesTakePrecedence(t *testing.T) {
	inner := newFakeState()
	inner.streams["sales"] = simnum.New(100, "kg")

	overriding := NewOverridingStateGetter(inner)
	if err := overriding.SetTotal("sales", simnum.New(500, "kg")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := overriding.GetStream("sales")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Value.Equal(simnum.New(500, "kg").Value) {
		t.Fatalf("expected override 500, got %s", got)
	}
}

func TestOverridingStateGetter_RejectsUnknownStream(t *testing.T) {
	overriding := NewOverridingStateGetter(newFakeState())
	if err := overriding.SetTotal("manufacture", simnum.New(1, "kg")); !errors.Is(err, ErrUnknownStream) {
		t.Fatalf("expected ErrUnknownStream, got %v", err)
	}
}
