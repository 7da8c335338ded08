package simconvert

import (
	"fmt"

	"github.com/example/refrigerantsim/internal/simnum"
)

// UnitConverter reconciles an EngineNumber expressed in one unit into the
// unit a caller needs, consulting a StateGetter for the substance-specific
// figures (amortized unit volume, GHG intensity, energy intensity) that
// mass<->count, mass<->tCO2e, and mass<->kwh conversions require.
type UnitConverter struct {
	state StateGetter
}

// NewUnitConverter returns a converter that consults state for
// substance-specific conversion figures.
func NewUnitConverter(state StateGetter) *UnitConverter {
	return &UnitConverter{state: state}
}

// Convert reconciles value into targetUnits. contextValue supplies the
// base a percentage conversion is taken against (the "100% of what?"
// question); pass simnum.EngineNumber{} when no base is available and the
// value being converted is not a percentage.
func (c *UnitConverter) Convert(value simnum.EngineNumber, targetUnits string, contextValue simnum.EngineNumber) (simnum.EngineNumber, error) {
	sourceBase, sourceEachYear := simnum.IsEachYear(value.Units)
	targetBase, targetEachYear := simnum.IsEachYear(targetUnits)

	converted, err := c.convertBase(value, sourceBase, targetBase, contextValue)
	if err != nil {
		return simnum.EngineNumber{}, err
	}

	switch {
	case sourceEachYear && targetEachYear:
		converted.Units = simnum.EachYear(converted.Units)
	case sourceEachYear != targetEachYear:
		return simnum.EngineNumber{}, fmt.Errorf("%w: cannot reconcile an annual-delta unit with a point-in-time unit (%q -> %q)", ErrIncompatibleUnits, value.Units, targetUnits)
	}
	return converted, nil
}

// convertBase applies the conversion table ignoring the eachyear suffix,
// which Convert has already stripped from both sides.
func (c *UnitConverter) convertBase(value simnum.EngineNumber, sourceUnits, targetUnits string, contextValue simnum.EngineNumber) (simnum.EngineNumber, error) {
	value = simnum.EngineNumber{Value: value.Value, Units: sourceUnits}

	switch {
	case sourceUnits == targetUnits:
		return value, nil
	case targetUnits == "":
		return value, nil

	case simnum.HasMass(sourceUnits) && simnum.HasMass(targetUnits):
		return c.convertMassToMass(value, targetUnits)

	case simnum.HasCount(sourceUnits) && simnum.HasCount(targetUnits):
		return simnum.EngineNumber{Value: value.Value, Units: targetUnits}, nil

	case simnum.HasMass(sourceUnits) && simnum.HasCount(targetUnits):
		return c.convertMassToCount(value, targetUnits)
	case simnum.HasCount(sourceUnits) && simnum.HasMass(targetUnits):
		return c.convertCountToMass(value, targetUnits)

	case simnum.HasMass(sourceUnits) && targetUnits == "tCO2e":
		return c.convertMassToConsumption(value)
	case sourceUnits == "tCO2e" && simnum.HasMass(targetUnits):
		return c.convertConsumptionToMass(value, targetUnits)

	case simnum.HasMass(sourceUnits) && targetUnits == "kwh":
		return c.convertMassToEnergy(value)
	case sourceUnits == "kwh" && simnum.HasMass(targetUnits):
		return c.convertEnergyToMass(value, targetUnits)

	case simnum.HasPercent(sourceUnits) || simnum.HasPercent(targetUnits):
		return c.convertPercent(value, sourceUnits, targetUnits, contextValue)

	default:
		return simnum.EngineNumber{}, fmt.Errorf("%w: %q -> %q", ErrIncompatibleUnits, sourceUnits, targetUnits)
	}
}

func (c *UnitConverter) convertMassToMass(value simnum.EngineNumber, targetUnits string) (simnum.EngineNumber, error) {
	switch {
	case value.Units == "kg" && targetUnits == "mt":
		return simnum.EngineNumber{Value: value.Value.Div(decimalKgPerMt()), Units: "mt"}, nil
	case value.Units == "mt" && targetUnits == "kg":
		return simnum.EngineNumber{Value: value.Value.Mul(decimalKgPerMt()), Units: "kg"}, nil
	default:
		return value, nil
	}
}

func (c *UnitConverter) convertMassToCount(value simnum.EngineNumber, targetUnits string) (simnum.EngineNumber, error) {
	volume, err := c.state.GetAmortizedUnitVolume()
	if err != nil {
		return simnum.EngineNumber{}, err
	}
	normalized, err := c.convertMassToMass(value, "kg")
	if err != nil {
		return simnum.EngineNumber{}, err
	}
	volumeKg, err := c.convertMassToMass(volume, "kg")
	if err != nil {
		return simnum.EngineNumber{}, err
	}
	if volumeKg.IsZero() {
		return simnum.EngineNumber{}, fmt.Errorf("%w: amortized unit volume is zero", ErrMissingContextValue)
	}
	result, err := simnum.Divide(normalized, volumeKg)
	if err != nil {
		return simnum.EngineNumber{}, err
	}
	result.Units = targetUnits
	return result, nil
}

func (c *UnitConverter) convertCountToMass(value simnum.EngineNumber, targetUnits string) (simnum.EngineNumber, error) {
	volume, err := c.state.GetAmortizedUnitVolume()
	if err != nil {
		return simnum.EngineNumber{}, err
	}
	massKg := simnum.Multiply(value, volume)
	return c.convertMassToMass(simnum.EngineNumber{Value: massKg.Value, Units: "kg"}, targetUnits)
}

func (c *UnitConverter) convertMassToConsumption(value simnum.EngineNumber) (simnum.EngineNumber, error) {
	massKg, err := c.convertMassToMass(value, "kg")
	if err != nil {
		return simnum.EngineNumber{}, err
	}
	intensity := c.state.GetGhgIntensity()
	result := simnum.Multiply(massKg, intensity)
	result.Units = "tCO2e"
	return result, nil
}

func (c *UnitConverter) convertConsumptionToMass(value simnum.EngineNumber, targetUnits string) (simnum.EngineNumber, error) {
	intensity := c.state.GetGhgIntensity()
	if intensity.IsZero() {
		return simnum.EngineNumber{}, fmt.Errorf("%w: GHG intensity is zero", ErrMissingContextValue)
	}
	massKg, err := simnum.Divide(value, intensity)
	if err != nil {
		return simnum.EngineNumber{}, err
	}
	return c.convertMassToMass(simnum.EngineNumber{Value: massKg.Value, Units: "kg"}, targetUnits)
}

func (c *UnitConverter) convertMassToEnergy(value simnum.EngineNumber) (simnum.EngineNumber, error) {
	massKg, err := c.convertMassToMass(value, "kg")
	if err != nil {
		return simnum.EngineNumber{}, err
	}
	intensity := c.state.GetEnergyIntensity()
	result := simnum.Multiply(massKg, intensity)
	result.Units = "kwh"
	return result, nil
}

func (c *UnitConverter) convertEnergyToMass(value simnum.EngineNumber, targetUnits string) (simnum.EngineNumber, error) {
	intensity := c.state.GetEnergyIntensity()
	if intensity.IsZero() {
		return simnum.EngineNumber{}, fmt.Errorf("%w: energy intensity is zero", ErrMissingContextValue)
	}
	massKg, err := simnum.Divide(value, intensity)
	if err != nil {
		return simnum.EngineNumber{}, err
	}
	return c.convertMassToMass(simnum.EngineNumber{Value: massKg.Value, Units: "kg"}, targetUnits)
}

// convertPercent reconciles a percentage against contextValue, the current
// total of the stream the percentage is being applied to (for example,
// "set recharge to 10%" needs the current equipment population as its
// base). Converting a non-percent into a percent divides by the base;
// converting a percent into a concrete unit multiplies by it.
func (c *UnitConverter) convertPercent(value simnum.EngineNumber, sourceUnits, targetUnits string, contextValue simnum.EngineNumber) (simnum.EngineNumber, error) {
	if contextValue.Units == "" && contextValue.IsZero() {
		return simnum.EngineNumber{}, fmt.Errorf("%w: percentage conversion needs a base value", ErrMissingContextValue)
	}
	if simnum.HasPercent(sourceUnits) {
		fraction := value.Value.Div(decimalHundred())
		return simnum.EngineNumber{Value: fraction.Mul(contextValue.Value), Units: targetUnits}, nil
	}
	if contextValue.IsZero() {
		return simnum.EngineNumber{}, fmt.Errorf("%w: cannot express a change as a percentage of a zero base", ErrMissingContextValue)
	}
	fraction := value.Value.Div(contextValue.Value)
	return simnum.EngineNumber{Value: fraction.Mul(decimalHundred()), Units: targetUnits}, nil
}
