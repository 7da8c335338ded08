// Package simstream holds the engine's per-(application, substance) stream
// state and parameterization: manufacture/import/export/recycle mass
// streams, the equipment population streams, and the substance-level
// intensities, charges, recharge, retirement, and displacement settings
// that parameterize them.
//
// Every stream access requires the substance to have been registered via
// EnsureSubstance first; StreamKeeper enforces that invariant on every
// read and write.
package simstream

import (
	"errors"
	"fmt"

	"github.com/example/refrigerantsim/internal/simnum"
)

// Sentinel errors for stream access failures.
var (
	ErrUnknownSubstance  = errors.New("simstream: substance is not registered")
	ErrUnknownStream     = errors.New("simstream: stream name is not recognized")
	ErrZeroInitialCharge = errors.New("simstream: initial charge is zero for a count-based write")
	ErrConfigurationError = errors.New("simstream: invalid stream name for this parameterization setter")
)

// Stream name constants. The closed set a StreamKeeper recognizes.
const (
	Manufacture    = "manufacture"
	Import         = "import"
	Export         = "export"
	Recycle        = "recycle"
	Equipment      = "equipment"
	PriorEquipment = "priorEquipment"
	Sales          = "sales"
	Consumption    = "consumption"
	Energy         = "energy"
)

// storedStreams are the streams actually held in memory; the rest
// (sales, consumption, energy) are always derived on demand.
var storedStreams = map[string]bool{
	Manufacture:    true,
	Import:         true,
	Export:         true,
	Recycle:        true,
	Equipment:      true,
	PriorEquipment: true,
}

var allStreams = map[string]bool{
	Manufacture:    true,
	Import:         true,
	Export:         true,
	Recycle:        true,
	Equipment:      true,
	PriorEquipment: true,
	Sales:          true,
	Consumption:    true,
	Energy:         true,
}

func defaultUnitsFor(stream string) string {
	switch stream {
	case Equipment, PriorEquipment:
		return "units"
	case Consumption:
		return "tCO2e"
	case Energy:
		return "kwh"
	default:
		return "kg"
	}
}

// SubstanceInApplicationId composite-keys stream state by application and
// substance name.
type SubstanceInApplicationId struct {
	Application string
	Substance   string
}

// =============================================================================
// StreamParameterization
// =============================================================================

// StreamParameterization holds the per-substance configuration that governs
// how raw stream values translate into equipment, emissions, and
// displacement behavior.
type StreamParameterization struct {
	GhgIntensity    simnum.EngineNumber
	EnergyIntensity simnum.EngineNumber

	// InitialCharge maps a sales subcomponent ("manufacture", "import",
	// or the synthesized "export") to its mass-per-unit charge.
	InitialCharge map[string]simnum.EngineNumber

	RechargePopulation simnum.EngineNumber
	RechargeIntensity  simnum.EngineNumber
	RetirementRate     simnum.EngineNumber

	// DisplacementRate scales how much of a computed displacement (Cap/
	// Floor's excess-over-limit, Recover's recovered-material offset)
	// actually transfers to its target, rather than adding to total
	// supply unchecked.
	DisplacementRate simnum.EngineNumber

	LastSpecifiedUnits string

	// Enabled tracks which optional capabilities (e.g. "recycling",
	// "recharge") have been switched on for this substance by an Enable
	// operation. A capability absent from this set is treated as off.
	Enabled map[string]bool
}

// NewStreamParameterization returns a parameterization with every field at
// its spec-mandated default.
func NewStreamParameterization() *StreamParameterization {
	return &StreamParameterization{
		GhgIntensity:    simnum.New(0, "tCO2e / kg"),
		EnergyIntensity: simnum.New(0, "kwh / kg"),
		InitialCharge: map[string]simnum.EngineNumber{
			Manufacture: simnum.New(1, "kg / unit"),
			Import:      simnum.New(1, "kg / unit"),
		},
		RechargePopulation: simnum.New(0, "%"),
		RechargeIntensity:  simnum.New(0, "kg / unit"),
		RetirementRate:     simnum.New(0, "%"),
		DisplacementRate:   simnum.New(100, "%"),
		LastSpecifiedUnits: "kg",
		Enabled:            make(map[string]bool),
	}
}

// Enable switches capability on.
func (p *StreamParameterization) Enable(capability string) {
	p.Enabled[capability] = true
}

// IsEnabled reports whether capability has been switched on.
func (p *StreamParameterization) IsEnabled(capability string) bool {
	return p.Enabled[capability]
}

// GetInitialCharge returns the initial charge for a sales subcomponent.
// "sales" is the volume-weighted average of manufacture and import,
// computed by the caller (StreamKeeper) since it needs current stream
// values; this accessor serves manufacture/import/export directly.
func (p *StreamParameterization) GetInitialCharge(stream string) (simnum.EngineNumber, error) {
	if stream != Manufacture && stream != Import && stream != Export {
		return simnum.EngineNumber{}, fmt.Errorf("%w: initialCharge for %q", ErrConfigurationError, stream)
	}
	if v, ok := p.InitialCharge[stream]; ok {
		return v, nil
	}
	return simnum.New(1, "kg / unit"), nil
}

// SetInitialCharge writes the initial charge for manufacture, import, or
// export. Any other stream name fails with ErrConfigurationError.
func (p *StreamParameterization) SetInitialCharge(stream string, value simnum.EngineNumber) error {
	if stream != Manufacture && stream != Import && stream != Export {
		return fmt.Errorf("%w: initialCharge for %q", ErrConfigurationError, stream)
	}
	p.InitialCharge[stream] = value
	return nil
}

// SetLastSpecifiedUnits records the unit string of the most recent
// non-percentage stream write. An empty string is ignored rather than
// clearing the previously recorded value (see SPEC_FULL.md open question
// #1: implementers must pick a policy, and this engine treats a null/empty
// write as a no-op).
func (p *StreamParameterization) SetLastSpecifiedUnits(units string) {
	if units == "" {
		return
	}
	p.LastSpecifiedUnits = units
}

// resetWithinYear clears the accumulators that start fresh every year
// (recycle quantity) while preserving parameterization fields that persist
// across years, including LastSpecifiedUnits (see SPEC_FULL.md open
// question #2: this engine preserves it across a reset).
func (p *StreamParameterization) resetWithinYear() {
	// Recharge/retirement/displacement/intensity settings persist until a
	// new operation overwrites them; only transient per-year accumulators
	// (held on substanceState, not here) reset at year rollover.
}
