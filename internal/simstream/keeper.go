package simstream

import (
	"fmt"

	"github.com/example/refrigerantsim/internal/simnum"
)

// substanceState is the mutable record a StreamKeeper holds for one
// (application, substance) pair: the stored mass/count streams plus the
// parameterization that governs their derived values.
type substanceState struct {
	streams    map[string]simnum.EngineNumber
	parameters *StreamParameterization
}

func newSubstanceState() *substanceState {
	streams := make(map[string]simnum.EngineNumber, len(storedStreams))
	for name := range storedStreams {
		streams[name] = simnum.Zero(defaultUnitsFor(name))
	}
	return &substanceState{
		streams:    streams,
		parameters: NewStreamParameterization(),
	}
}

// StreamKeeper owns the stream state for every registered substance
// across the years of a single trial, advancing it with IncrementYear. It
// is the engine's sole mutable store of manufacture/import/export/recycle/
// equipment values and their parameterization. The SubstanceView that
// View returns implements the StateGetter contract the unit converter
// (internal/simconvert) consumes by structural typing.
type StreamKeeper struct {
	substances map[SubstanceInApplicationId]*substanceState
	// order preserves first-registration order for deterministic
	// iteration (report emission, trial fan-out).
	order []SubstanceInApplicationId
}

// NewStreamKeeper returns an empty keeper.
func NewStreamKeeper() *StreamKeeper {
	return &StreamKeeper{substances: make(map[SubstanceInApplicationId]*substanceState)}
}

// EnsureSubstance registers id if it is not already known. Safe to call
// repeatedly; a no-op once the substance is registered.
func (k *StreamKeeper) EnsureSubstance(id SubstanceInApplicationId) {
	if _, ok := k.substances[id]; ok {
		return
	}
	k.substances[id] = newSubstanceState()
	k.order = append(k.order, id)
}

// HasSubstance reports whether id has been registered.
func (k *StreamKeeper) HasSubstance(id SubstanceInApplicationId) bool {
	_, ok := k.substances[id]
	return ok
}

// GetRegisteredSubstances returns every registered id in first-registration
// order.
func (k *StreamKeeper) GetRegisteredSubstances() []SubstanceInApplicationId {
	out := make([]SubstanceInApplicationId, len(k.order))
	copy(out, k.order)
	return out
}

func (k *StreamKeeper) state(id SubstanceInApplicationId) (*substanceState, error) {
	st, ok := k.substances[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownSubstance, id.Application, id.Substance)
	}
	return st, nil
}

// GetParameterization returns the stream parameterization for id.
func (k *StreamKeeper) GetParameterization(id SubstanceInApplicationId) (*StreamParameterization, error) {
	st, err := k.state(id)
	if err != nil {
		return nil, err
	}
	return st.parameters, nil
}

// GetStream returns the current value of a stream for id. Manufacture,
// import, export, recycle, equipment, and priorEquipment are stored
// directly; sales, consumption, and energy are derived on every call.
func (k *StreamKeeper) GetStream(id SubstanceInApplicationId, stream string) (simnum.EngineNumber, error) {
	st, err := k.state(id)
	if err != nil {
		return simnum.EngineNumber{}, err
	}
	if storedStreams[stream] {
		return st.streams[stream], nil
	}
	switch stream {
	case Sales:
		return simnum.Add(st.streams[Manufacture], st.streams[Import]), nil
	case Consumption:
		sales := simnum.Add(st.streams[Manufacture], st.streams[Import])
		return simnum.Multiply(sales, st.parameters.GhgIntensity), nil
	case Energy:
		sales := simnum.Add(st.streams[Manufacture], st.streams[Import])
		return simnum.Multiply(sales, st.parameters.EnergyIntensity), nil
	default:
		return simnum.EngineNumber{}, fmt.Errorf("%w: %q", ErrUnknownStream, stream)
	}
}

// SetStream writes a value to a stored stream for id, and records its
// units as the parameterization's LastSpecifiedUnits unless the write is a
// percentage. Derived streams (sales, consumption, energy) cannot be set
// directly; ErrUnknownStream is returned.
func (k *StreamKeeper) SetStream(id SubstanceInApplicationId, stream string, value simnum.EngineNumber) error {
	st, err := k.state(id)
	if err != nil {
		return err
	}
	if !storedStreams[stream] {
		return fmt.Errorf("%w: cannot set derived stream %q directly", ErrUnknownStream, stream)
	}
	value, err = setStreamForSalesWithUnits(st, stream, value)
	if err != nil {
		return err
	}
	st.streams[stream] = value
	if !simnum.HasPercent(value.Units) {
		st.parameters.SetLastSpecifiedUnits(value.Units)
	}
	return nil
}

// setStreamForSalesWithUnits expands a count-unit write to manufacture or
// import into mass via that subcomponent's own initial charge, failing
// with ErrZeroInitialCharge when the charge cannot service a count-based
// write. Any other stream or unit passes through unchanged.
func setStreamForSalesWithUnits(st *substanceState, stream string, value simnum.EngineNumber) (simnum.EngineNumber, error) {
	if !simnum.HasCount(value.Units) || (stream != Manufacture && stream != Import) {
		return value, nil
	}
	charge, err := st.parameters.GetInitialCharge(stream)
	if err != nil {
		return simnum.EngineNumber{}, err
	}
	if charge.IsZero() {
		return simnum.EngineNumber{}, fmt.Errorf("%w: %s", ErrZeroInitialCharge, stream)
	}
	return simnum.EngineNumber{Value: value.Value.Mul(charge.Value), Units: "kg"}, nil
}

// IncrementYear rolls every registered substance forward one year: the
// current equipment population becomes next year's priorEquipment, and the
// recycle stream (a per-year flow, not a stock) resets to zero. Stored
// masses (manufacture, import, export) and parameterization persist
// unchanged until the engine's operations reassign them for the new year.
func (k *StreamKeeper) IncrementYear() {
	for _, id := range k.order {
		st := k.substances[id]
		st.streams[PriorEquipment] = st.streams[Equipment]
		st.streams[Recycle] = simnum.Zero(defaultUnitsFor(Recycle))
		st.parameters.resetWithinYear()
	}
}

// AllStreamNames reports whether name is any recognized stream, stored or
// derived.
func AllStreamNames() map[string]bool {
	out := make(map[string]bool, len(allStreams))
	for k, v := range allStreams {
		out[k] = v
	}
	return out
}

// SubstanceView binds a StreamKeeper to one substance and exposes the
// method set internal/simconvert's StateGetter interface expects, so the
// unit converter can read live stream state without this package
// importing simconvert.
type SubstanceView struct {
	keeper *StreamKeeper
	id     SubstanceInApplicationId
}

// View returns a SubstanceView bound to id. The substance must already be
// registered.
func (k *StreamKeeper) View(id SubstanceInApplicationId) SubstanceView {
	return SubstanceView{keeper: k, id: id}
}

// GetStream returns the named stream's current value for the bound
// substance.
func (v SubstanceView) GetStream(stream string) (simnum.EngineNumber, error) {
	return v.keeper.GetStream(v.id, stream)
}

// SetStream writes value to the named stream for the bound substance,
// satisfying internal/simeval's StreamAccess contract.
func (v SubstanceView) SetStream(stream string, value simnum.EngineNumber) error {
	return v.keeper.SetStream(v.id, stream, value)
}

// GetGhgIntensity returns the bound substance's GHG intensity.
func (v SubstanceView) GetGhgIntensity() simnum.EngineNumber {
	st, err := v.keeper.state(v.id)
	if err != nil {
		return simnum.Zero("tCO2e / kg")
	}
	return st.parameters.GhgIntensity
}

// GetEnergyIntensity returns the bound substance's energy intensity.
func (v SubstanceView) GetEnergyIntensity() simnum.EngineNumber {
	st, err := v.keeper.state(v.id)
	if err != nil {
		return simnum.Zero("kwh / kg")
	}
	return st.parameters.EnergyIntensity
}

// GetAmortizedUnitVolume returns the volume-weighted average of the
// manufacture and import initial charges: the mass-per-unit figure that
// mass<->count conversion uses for this substance. When both streams are
// empty, the two charges are weighted equally.
func (v SubstanceView) GetAmortizedUnitVolume() (simnum.EngineNumber, error) {
	st, err := v.keeper.state(v.id)
	if err != nil {
		return simnum.EngineNumber{}, err
	}
	manufactureCharge, err := st.parameters.GetInitialCharge(Manufacture)
	if err != nil {
		return simnum.EngineNumber{}, err
	}
	importCharge, err := st.parameters.GetInitialCharge(Import)
	if err != nil {
		return simnum.EngineNumber{}, err
	}

	manufactureVolume := st.streams[Manufacture]
	importVolume := st.streams[Import]
	totalVolume := simnum.Add(manufactureVolume, importVolume)

	if totalVolume.IsZero() {
		return simnum.Divide(simnum.Add(manufactureCharge, importCharge), simnum.New(2, ""))
	}

	manufactureWeight, err := simnum.Divide(manufactureVolume, totalVolume)
	if err != nil {
		return simnum.EngineNumber{}, err
	}
	importWeight, err := simnum.Divide(importVolume, totalVolume)
	if err != nil {
		return simnum.EngineNumber{}, err
	}

	weighted := simnum.Add(
		simnum.Multiply(manufactureWeight, manufactureCharge),
		simnum.Multiply(importWeight, importCharge),
	)
	return simnum.EngineNumber{Value: weighted.Value, Units: "kg / unit"}, nil
}
