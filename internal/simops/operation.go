package simops

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/example/refrigerantsim/internal/simeval"
	"github.com/example/refrigerantsim/internal/simnum"
	"github.com/example/refrigerantsim/internal/simscope"
	"github.com/example/refrigerantsim/internal/simstream"
)

// ErrNoCrossSubstanceAccess is returned by an operation that needs to
// read or write another substance's streams (Replace, and Cap/Floor/
// Recover with a displacement target) when its Context was not given a
// keeper and application to reach it through.
var ErrNoCrossSubstanceAccess = errors.New("simops: operation requires cross-substance access but none was configured")

// Context bundles everything an Operation needs to run for one year of
// one substance: the push-down machine (bound to that substance's stream
// access and unit converter), its stream parameterization, and the
// current simulation year, checked against each operation's YearMatcher
// before it takes effect. Keeper, Application, and Substance are only
// needed by operations that reach into another substance's streams
// within the same application (Replace's target substance, Cap/Floor's
// displacement, Recover's displacement split).
type Context struct {
	Machine          *simeval.Machine
	Parameterization *simstream.StreamParameterization
	Year             int

	Keeper      *simstream.StreamKeeper
	Application string
	Substance   string
}

// Operation is one statement in the engine's closed operation set. Every
// concrete operation is time-windowed by a YearMatcher; Execute is a
// no-op for years outside that window.
type Operation interface {
	Execute(ctx *Context) error
}

// =============================================================================
// Set
// =============================================================================

// SetOperation assigns a stream's value directly to the evaluated
// expression, reconciled into the stream's current units.
type SetOperation struct {
	Stream string
	Value  Expression
	Years  simscope.YearMatcher
}

// Execute evaluates Value and writes it to Stream, unless Year falls
// outside Years. A count-unit value targeting manufacture or import
// first expands through that subcomponent's own initial charge, rather
// than the stream's generic (volume-weighted) conversion.
func (op SetOperation) Execute(ctx *Context) error {
	if !op.Years.GetInRange(ctx.Year) {
		return nil
	}
	value, err := op.Value(ctx.Machine)
	if err != nil {
		return err
	}
	expanded, err := expandSalesCount(ctx.Parameterization, op.Stream, value)
	if err != nil {
		return err
	}
	current, err := readStream(ctx, op.Stream)
	if err != nil {
		return err
	}
	reconciled, err := reconcile(ctx, expanded, current.Units, current)
	if err != nil {
		return err
	}
	return writeStream(ctx, op.Stream, reconciled)
}

// =============================================================================
// Change
// =============================================================================

// ChangeOperation adds the evaluated delta to a stream's current value.
// A percentage delta is taken against the stream's current value as its
// base. A "<unit>eachyear" delta is an annual rate rather than a
// point-in-time quantity: its suffix is stripped and the base unit is
// applied once, for the year currently executing.
type ChangeOperation struct {
	Stream string
	Delta  Expression
	Years  simscope.YearMatcher
}

// Execute evaluates Delta and adds it to Stream's current value.
func (op ChangeOperation) Execute(ctx *Context) error {
	if !op.Years.GetInRange(ctx.Year) {
		return nil
	}
	delta, err := op.Delta(ctx.Machine)
	if err != nil {
		return err
	}
	current, err := readStream(ctx, op.Stream)
	if err != nil {
		return err
	}

	annualDelta := delta
	if base, ok := simnum.IsEachYear(delta.Units); ok {
		annualDelta = simnum.EngineNumber{Value: delta.Value, Units: base}
	}

	expanded, err := expandSalesCount(ctx.Parameterization, op.Stream, annualDelta)
	if err != nil {
		return err
	}
	reconciledDelta, err := reconcile(ctx, expanded, current.Units, current)
	if err != nil {
		return err
	}
	return writeStream(ctx, op.Stream, simnum.Add(current, reconciledDelta))
}

// =============================================================================
// Cap / Floor
// =============================================================================

// CapOperation bounds a stream to at most the evaluated limit. When the
// limit is expressed in counts and Stream is a sales subcomponent, the
// effective limit incorporates recharge on top of the count-derived mass.
// When Displacement names another substance in the same application, the
// excess above the limit is added to that substance's same stream, using
// count-preserving semantics.
type CapOperation struct {
	Stream       string
	Limit        Expression
	Displacement string
	Years        simscope.YearMatcher
}

// Execute evaluates Limit and sets Stream to the lesser of its current
// value and the effective limit.
func (op CapOperation) Execute(ctx *Context) error {
	if !op.Years.GetInRange(ctx.Year) {
		return nil
	}
	limit, err := op.Limit(ctx.Machine)
	if err != nil {
		return err
	}
	current, err := readStream(ctx, op.Stream)
	if err != nil {
		return err
	}
	bound, err := effectiveLimit(ctx, op.Stream, limit, current)
	if err != nil {
		return err
	}
	if err := writeStream(ctx, op.Stream, simnum.Clamp(current, nil, &bound)); err != nil {
		return err
	}
	if op.Displacement == "" || !current.Value.GreaterThan(bound.Value) {
		return nil
	}
	return displaceAcrossSubstances(ctx, op.Stream, op.Displacement, simnum.Subtract(current, bound))
}

// FloorOperation bounds a stream to at least the evaluated limit.
// Displacement, when set, subtracts the shortfall from the target
// substance's same stream instead of adding to it.
type FloorOperation struct {
	Stream       string
	Limit        Expression
	Displacement string
	Years        simscope.YearMatcher
}

// Execute evaluates Limit and sets Stream to the greater of its current
// value and the effective limit.
func (op FloorOperation) Execute(ctx *Context) error {
	if !op.Years.GetInRange(ctx.Year) {
		return nil
	}
	limit, err := op.Limit(ctx.Machine)
	if err != nil {
		return err
	}
	current, err := readStream(ctx, op.Stream)
	if err != nil {
		return err
	}
	bound, err := effectiveLimit(ctx, op.Stream, limit, current)
	if err != nil {
		return err
	}
	if err := writeStream(ctx, op.Stream, simnum.Clamp(current, &bound, nil)); err != nil {
		return err
	}
	if op.Displacement == "" || !current.Value.LessThan(bound.Value) {
		return nil
	}
	shortfall := simnum.Subtract(bound, current)
	negated := simnum.EngineNumber{Value: shortfall.Value.Neg(), Units: shortfall.Units}
	return displaceAcrossSubstances(ctx, op.Stream, op.Displacement, negated)
}

// effectiveLimit reconciles limit into current's units. When limit is a
// count and stream is a sales subcomponent, the limit is expanded with
// recharge added on top: a count-based cap or floor bounds new sales, but
// the prior equipment population still needs recharge serviced
// independent of that bound (limit*initialCharge + priorEquipment*
// rechargePopulation*rechargeIntensity).
func effectiveLimit(ctx *Context, stream string, limit, current simnum.EngineNumber) (simnum.EngineNumber, error) {
	if !simnum.HasCount(limit.Units) || !isSalesSubcomponent(stream) {
		return reconcile(ctx, limit, current.Units, current)
	}

	charge, err := ctx.Parameterization.GetInitialCharge(stream)
	if err != nil {
		return simnum.EngineNumber{}, err
	}
	base := massFromCharge(limit, charge)

	priorEquipment, err := readStream(ctx, simstream.PriorEquipment)
	if err != nil {
		return simnum.EngineNumber{}, err
	}
	rechargeMass := massFromCharge(
		simnum.Multiply(priorEquipment, asFraction(ctx.Parameterization.RechargePopulation)),
		ctx.Parameterization.RechargeIntensity,
	)

	total := simnum.Add(base, rechargeMass)
	return reconcile(ctx, total, current.Units, current)
}

// =============================================================================
// Recharge / Retire / Recover / Replace / Enable / InitialCharge
// =============================================================================

// RechargeOperation configures the fraction of the equipment population
// serviced each year and the mass recharged per serviced unit.
type RechargeOperation struct {
	Population Expression
	Intensity  Expression
	Years      simscope.YearMatcher
}

// Execute evaluates Population and Intensity and stores them on the
// substance's parameterization.
func (op RechargeOperation) Execute(ctx *Context) error {
	if !op.Years.GetInRange(ctx.Year) {
		return nil
	}
	population, err := op.Population(ctx.Machine)
	if err != nil {
		return err
	}
	intensity, err := op.Intensity(ctx.Machine)
	if err != nil {
		return err
	}
	ctx.Parameterization.RechargePopulation = population
	ctx.Parameterization.RechargeIntensity = intensity
	ctx.Parameterization.Enable("recharge")
	return nil
}

// RetireOperation configures the fraction of the equipment population
// retired each year.
type RetireOperation struct {
	Rate  Expression
	Years simscope.YearMatcher
}

// Execute evaluates Rate and stores it as the substance's retirement
// rate.
func (op RetireOperation) Execute(ctx *Context) error {
	if !op.Years.GetInRange(ctx.Year) {
		return nil
	}
	rate, err := op.Rate(ctx.Machine)
	if err != nil {
		return err
	}
	ctx.Parameterization.RetirementRate = rate
	return nil
}

// RecoverOperation specifies a recovered volume and a yield fraction. The
// engine converts this to recycled mass (volume * yield) and credits it
// directly into the recycle stream at the moment the operation executes,
// so multiple Recover operations on the same substance within a year are
// additive rather than overwriting one another. DisplaceTarget, when set,
// names a substance in the same application whose virgin sales are
// displaced by the recovered amount, split proportionally across
// manufacture and import by their current ratio.
type RecoverOperation struct {
	Volume         Expression
	Yield          Expression
	DisplaceTarget string
	Years          simscope.YearMatcher
}

// Execute evaluates Volume and Yield, adds the recovered mass to the
// recycle stream, and applies the optional displacement.
func (op RecoverOperation) Execute(ctx *Context) error {
	if !op.Years.GetInRange(ctx.Year) {
		return nil
	}
	volume, err := op.Volume(ctx.Machine)
	if err != nil {
		return err
	}
	yield, err := op.Yield(ctx.Machine)
	if err != nil {
		return err
	}
	current, err := readStream(ctx, simstream.Recycle)
	if err != nil {
		return err
	}
	reconciledVolume, err := reconcile(ctx, volume, current.Units, current)
	if err != nil {
		return err
	}

	recovered := simnum.Multiply(reconciledVolume, asFraction(yield))
	recovered.Units = current.Units
	if err := writeStream(ctx, simstream.Recycle, simnum.Add(current, recovered)); err != nil {
		return err
	}
	ctx.Parameterization.Enable("recycling")

	if op.DisplaceTarget == "" {
		return nil
	}
	if ctx.Keeper == nil || ctx.Application == "" {
		return fmt.Errorf("%w: recover displacement to %q", ErrNoCrossSubstanceAccess, op.DisplaceTarget)
	}
	return displaceVirginSales(ctx, op.DisplaceTarget, recovered)
}

// ReplaceOperation subtracts an evaluated volume from FromStream of the
// current substance and credits the equivalent to the same stream on
// ToSubstance, within the same application. A volume specified in counts
// translates through each substance's own initial charge so the transfer
// is count-preserving; a volume specified directly in mass transfers
// mass-for-mass.
type ReplaceOperation struct {
	Volume      Expression
	FromStream  string
	ToSubstance string
	Years       simscope.YearMatcher
}

// Execute evaluates Volume, removes it from FromStream, and credits the
// equivalent to ToSubstance's FromStream.
func (op ReplaceOperation) Execute(ctx *Context) error {
	if !op.Years.GetInRange(ctx.Year) {
		return nil
	}
	volume, err := op.Volume(ctx.Machine)
	if err != nil {
		return err
	}
	current, err := readStream(ctx, op.FromStream)
	if err != nil {
		return err
	}
	removed, err := reconcile(ctx, volume, current.Units, current)
	if err != nil {
		return err
	}
	if err := writeStream(ctx, op.FromStream, simnum.Subtract(current, removed)); err != nil {
		return err
	}

	if ctx.Keeper == nil || ctx.Application == "" {
		return fmt.Errorf("%w: replace into %q", ErrNoCrossSubstanceAccess, op.ToSubstance)
	}
	targetID := simstream.SubstanceInApplicationId{Application: ctx.Application, Substance: op.ToSubstance}
	targetCurrent, err := ctx.Keeper.GetStream(targetID, op.FromStream)
	if err != nil {
		return err
	}

	credited := removed
	if simnum.HasCount(volume.Units) && isSalesSubcomponent(op.FromStream) {
		sourceCharge, err := ctx.Parameterization.GetInitialCharge(op.FromStream)
		if err != nil {
			return err
		}
		targetParams, err := ctx.Keeper.GetParameterization(targetID)
		if err != nil {
			return err
		}
		targetCharge, err := targetParams.GetInitialCharge(op.FromStream)
		if err != nil {
			return err
		}
		counts, err := simnum.Divide(removed, sourceCharge)
		if err != nil {
			return err
		}
		credited = massFromCharge(simnum.EngineNumber{Value: counts.Value, Units: "units"}, targetCharge)
	}

	return ctx.Keeper.SetStream(targetID, op.FromStream, simnum.Add(targetCurrent, credited))
}

// EnableOperation switches an optional capability (e.g. "recycling",
// "recharge") on, independent of any operation that configures its rate.
type EnableOperation struct {
	Capability string
	Years      simscope.YearMatcher
}

// Execute switches Capability on.
func (op EnableOperation) Execute(ctx *Context) error {
	if !op.Years.GetInRange(ctx.Year) {
		return nil
	}
	ctx.Parameterization.Enable(op.Capability)
	return nil
}

// InitialChargeOperation sets the mass-per-unit charge for a sales
// subcomponent (manufacture, import, or export).
type InitialChargeOperation struct {
	Stream string
	Value  Expression
	Years  simscope.YearMatcher
}

// Execute evaluates Value and stores it as Stream's initial charge.
func (op InitialChargeOperation) Execute(ctx *Context) error {
	if !op.Years.GetInRange(ctx.Year) {
		return nil
	}
	value, err := op.Value(ctx.Machine)
	if err != nil {
		return err
	}
	return ctx.Parameterization.SetInitialCharge(op.Stream, value)
}

// =============================================================================
// helpers
// =============================================================================

func readStream(ctx *Context, stream string) (simnum.EngineNumber, error) {
	if err := ctx.Machine.PushStream(stream); err != nil {
		return simnum.EngineNumber{}, err
	}
	return ctx.Machine.Pop()
}

func writeStream(ctx *Context, stream string, value simnum.EngineNumber) error {
	ctx.Machine.PushLiteral(value)
	return ctx.Machine.StoreStream(stream)
}

func reconcile(ctx *Context, value simnum.EngineNumber, targetUnits string, contextValue simnum.EngineNumber) (simnum.EngineNumber, error) {
	ctx.Machine.PushLiteral(value)
	if err := ctx.Machine.Convert(targetUnits, contextValue); err != nil {
		return simnum.EngineNumber{}, err
	}
	return ctx.Machine.Pop()
}

// isSalesSubcomponent reports whether stream is one of the sales
// subcomponents that count-unit expansion and recharge-on-top apply to.
func isSalesSubcomponent(stream string) bool {
	return stream == simstream.Manufacture || stream == simstream.Import || stream == simstream.Export
}

// expandSalesCount implements setStreamForSalesWithUnits: a count-unit
// value targeting manufacture or import expands to mass via that
// subcomponent's own initial charge rather than the stream's generic,
// volume-weighted conversion. A zero charge cannot service a count-based
// write and fails with ErrZeroInitialCharge rather than silently zeroing
// the stream.
func expandSalesCount(params *simstream.StreamParameterization, stream string, value simnum.EngineNumber) (simnum.EngineNumber, error) {
	if !simnum.HasCount(value.Units) || (stream != simstream.Manufacture && stream != simstream.Import) {
		return value, nil
	}
	charge, err := params.GetInitialCharge(stream)
	if err != nil {
		return simnum.EngineNumber{}, err
	}
	if charge.IsZero() {
		return simnum.EngineNumber{}, fmt.Errorf("%w: %s", simstream.ErrZeroInitialCharge, stream)
	}
	return massFromCharge(value, charge), nil
}

// massFromCharge multiplies a count by a kg/unit charge, always labeling
// the result "kg" regardless of the operands' composite unit strings.
func massFromCharge(count, charge simnum.EngineNumber) simnum.EngineNumber {
	return simnum.EngineNumber{Value: count.Value.Mul(charge.Value), Units: "kg"}
}

// asFraction reconciles a percentage EngineNumber into a dimensionless
// multiplier (10% -> 0.10).
func asFraction(rate simnum.EngineNumber) simnum.EngineNumber {
	return simnum.EngineNumber{Value: rate.Value.Div(decimal.NewFromInt(100))}
}

// displaceAcrossSubstances moves delta (signed; positive adds to the
// target, negative subtracts) out of the current substance's stream and
// into targetSubstance's same stream within the same application, using
// count-preserving semantics: delta converts to counts via the source
// substance's own unit volume for stream, then back to mass via the
// target's, before DisplacementRate scales how much of it actually
// transfers.
func displaceAcrossSubstances(ctx *Context, stream, targetSubstance string, delta simnum.EngineNumber) error {
	if delta.IsZero() {
		return nil
	}
	if ctx.Keeper == nil || ctx.Application == "" {
		return fmt.Errorf("%w: %s displacement to %q", ErrNoCrossSubstanceAccess, stream, targetSubstance)
	}
	sourceCharge, err := ctx.Parameterization.GetInitialCharge(stream)
	if err != nil {
		return err
	}
	scaled := simnum.Multiply(delta, asFraction(ctx.Parameterization.DisplacementRate))
	counts, err := simnum.Divide(scaled, sourceCharge)
	if err != nil {
		return err
	}

	targetID := simstream.SubstanceInApplicationId{Application: ctx.Application, Substance: targetSubstance}
	targetParams, err := ctx.Keeper.GetParameterization(targetID)
	if err != nil {
		return err
	}
	targetCharge, err := targetParams.GetInitialCharge(stream)
	if err != nil {
		return err
	}
	massForTarget := massFromCharge(simnum.EngineNumber{Value: counts.Value, Units: "units"}, targetCharge)

	targetCurrent, err := ctx.Keeper.GetStream(targetID, stream)
	if err != nil {
		return err
	}
	return ctx.Keeper.SetStream(targetID, stream, simnum.Add(targetCurrent, massForTarget))
}

// displaceVirginSales reduces targetSubstance's manufacture and import
// streams by amount, split in proportion to their current ratio, scaled
// by DisplacementRate. Used by Recover's optional displacement: recovered
// material offsets new virgin supply rather than adding to total supply.
func displaceVirginSales(ctx *Context, targetSubstance string, amount simnum.EngineNumber) error {
	if amount.IsZero() {
		return nil
	}
	targetID := simstream.SubstanceInApplicationId{Application: ctx.Application, Substance: targetSubstance}
	manufacture, err := ctx.Keeper.GetStream(targetID, simstream.Manufacture)
	if err != nil {
		return err
	}
	imported, err := ctx.Keeper.GetStream(targetID, simstream.Import)
	if err != nil {
		return err
	}
	total := simnum.Add(manufacture, imported)
	if total.IsZero() {
		return nil
	}

	scaled := simnum.Multiply(amount, asFraction(ctx.Parameterization.DisplacementRate))
	manufactureShare, err := simnum.Divide(manufacture, total)
	if err != nil {
		return err
	}
	importShare, err := simnum.Divide(imported, total)
	if err != nil {
		return err
	}
	manufactureReduction := simnum.EngineNumber{Value: scaled.Value.Mul(manufactureShare.Value), Units: manufacture.Units}
	importReduction := simnum.EngineNumber{Value: scaled.Value.Mul(importShare.Value), Units: imported.Units}

	if err := ctx.Keeper.SetStream(targetID, simstream.Manufacture, simnum.Subtract(manufacture, manufactureReduction)); err != nil {
		return err
	}
	return ctx.Keeper.SetStream(targetID, simstream.Import, simnum.Subtract(imported, importReduction))
}
