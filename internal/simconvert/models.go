// Package simconvert reconciles EngineNumber values expressed in different
// units into the unit a caller actually needs, and exposes the StateGetter
// contract through which the converter (and the operations built on it)
// read current stream totals without depending on the stream store
// directly.
//
// Conversion follows a fixed precedence: identical units pass through
// unchanged; an empty target unit is a no-op; mass units (kg, mt) convert
// at a fixed 1000:1 ratio; count units (unit, units) are identical; mass
// and count convert through a substance's amortized unit volume; mass and
// tCO2e convert through substance consumption (GHG intensity); mass and
// kwh convert through energy intensity; percentages convert against a
// context-supplied base value; and the "eachyear" composite suffix is
// reconciled by stripping it from both sides before applying the rest of
// the table.
package simconvert

import (
	"errors"
	"fmt"

	"github.com/example/refrigerantsim/internal/simnum"
)

// Sentinel errors surfaced by unit reconciliation.
var (
	ErrIncompatibleUnits   = errors.New("simconvert: units cannot be reconciled without more context")
	ErrMissingContextValue = errors.New("simconvert: conversion needs a context value the caller did not supply")
	ErrUnknownStream       = errors.New("simconvert: state getter does not recognize this stream name")
)

const (
	kgPerMt = 1000

	// Stream name aliases used when asking a StateGetter for totals that
	// back a conversion (amortized unit volume, GHG/energy intensity).
	streamSales       = "sales"
	streamEquipment   = "equipment"
	streamConsumption = "consumption"
)

// StateGetter is the minimal read contract the unit converter needs from
// whatever is holding live stream state for a substance. Implementations
// are not required to import this package; internal/simstream's
// SubstanceView (from StreamKeeper.View) satisfies it by having the
// matching method set.
type StateGetter interface {
	// GetStream returns the current value of a named stream
	// (manufacture, import, export, recycle, equipment, priorEquipment,
	// sales, consumption, energy) for the substance currently in scope.
	GetStream(stream string) (simnum.EngineNumber, error)

	// GetGhgIntensity and GetEnergyIntensity return the substance's
	// configured intensities, used for mass<->tCO2e and mass<->kwh
	// conversion respectively.
	GetGhgIntensity() simnum.EngineNumber
	GetEnergyIntensity() simnum.EngineNumber

	// GetAmortizedUnitVolume returns the mass-per-unit figure used for
	// mass<->count conversion: the volume-weighted average of the
	// manufacture and import initial charges.
	GetAmortizedUnitVolume() (simnum.EngineNumber, error)
}

// OverridingStateGetter wraps a StateGetter and lets a caller substitute a
// handful of stream totals (most commonly "sales", "equipment", and
// "consumption") without mutating the underlying store. Operations that
// need to evaluate a converted value against a hypothetical new total
// (for example, a Cap operation checking a percentage change before it is
// committed) build one of these rather than writing through to live
// state.
type OverridingStateGetter struct {
	inner     StateGetter
	overrides map[string]simnum.EngineNumber
}

// NewOverridingStateGetter wraps inner with no overrides set.
func NewOverridingStateGetter(inner StateGetter) *OverridingStateGetter {
	return &OverridingStateGetter{inner: inner, overrides: make(map[string]simnum.EngineNumber)}
}

// SetTotal overrides a stream total. The stream name must be one of
// "sales" (aliases the manufacture+import volume), "equipment" (aliases
// the population total), or "consumption" (aliases GHG consumption, the
// one derived stream callers override directly rather than through
// intensity); any other name fails with ErrUnknownStream.
func (g *OverridingStateGetter) SetTotal(stream string, value simnum.EngineNumber) error {
	switch stream {
	case streamSales, streamEquipment, streamConsumption:
		g.overrides[stream] = value
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStream, stream)
	}
}

// GetStream returns the override for stream if one was set via SetTotal,
// otherwise delegates to the wrapped getter.
func (g *OverridingStateGetter) GetStream(stream string) (simnum.EngineNumber, error) {
	if v, ok := g.overrides[stream]; ok {
		return v, nil
	}
	return g.inner.GetStream(stream)
}

// GetGhgIntensity delegates to the wrapped getter; intensities are not
// overridable since consumption overrides supersede them directly.
func (g *OverridingStateGetter) GetGhgIntensity() simnum.EngineNumber {
	return g.inner.GetGhgIntensity()
}

// GetEnergyIntensity delegates to the wrapped getter.
func (g *OverridingStateGetter) GetEnergyIntensity() simnum.EngineNumber {
	return g.inner.GetEnergyIntensity()
}

// GetAmortizedUnitVolume delegates to the wrapped getter.
func (g *OverridingStateGetter) GetAmortizedUnitVolume() (simnum.EngineNumber, error) {
	return g.inner.GetAmortizedUnitVolume()
}
