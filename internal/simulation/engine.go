// Package simulation provides the year-stepped engine that runs a parsed
// scenario program against a substance's streams, producing one
// EngineResult per (application, substance, year) of the run.
//
// The engine owns a StreamKeeper, a lexical Scope/VariableManager chain,
// and the push-down Machine each substance's operations execute against;
// it does not parse programs itself, only execute an already-built
// Scenario.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/example/refrigerantsim/internal/events"
	"github.com/example/refrigerantsim/internal/simconvert"
	"github.com/example/refrigerantsim/internal/simeval"
	"github.com/example/refrigerantsim/internal/simmetrics"
	"github.com/example/refrigerantsim/internal/simnum"
	"github.com/example/refrigerantsim/internal/simops"
	"github.com/example/refrigerantsim/internal/simscope"
	"github.com/example/refrigerantsim/internal/simstream"
	"github.com/example/refrigerantsim/internal/tracing"
)

// =============================================================================
// Scenario program
// =============================================================================

// SubstanceProgram is the ordered operation list for one application's
// substance, run every year of the scenario's range.
type SubstanceProgram struct {
	Application string
	Substance   string
	Operations  []simops.Operation
}

// Scenario is a fully parsed, ready-to-run program: a year range and the
// per-substance operation lists to execute within it.
type Scenario struct {
	Name      string
	StartYear int
	EndYear   int
	Programs  []SubstanceProgram
}

// =============================================================================
// Results
// =============================================================================

// TradeSupplement carries the initial-charge detail an exported stream
// needs beyond its raw mass: the initial charge configured for the export
// stream and the GHG consumption of the exported mass (export in kg times
// the GHG intensity), reported separately since export does not itself
// consume new substance.
type TradeSupplement struct {
	ExportInitialChargeValue       simnum.EngineNumber
	ExportInitialChargeConsumption simnum.EngineNumber
}

// EngineResult is one (scenario, trial, year, application, substance)
// observation: the full set of stream values after that year's
// operations and physical year-step have been applied.
type EngineResult struct {
	Scenario    string
	TrialID     string
	Trial       int
	Year        int
	Application string
	Substance   string

	Manufacture    simnum.EngineNumber
	Import         simnum.EngineNumber
	Export         simnum.EngineNumber
	Recycle        simnum.EngineNumber
	Equipment      simnum.EngineNumber
	PriorEquipment simnum.EngineNumber
	Sales          simnum.EngineNumber
	Consumption    simnum.EngineNumber
	Energy         simnum.EngineNumber

	Trade TradeSupplement
}

// =============================================================================
// Engine
// =============================================================================

// EngineConfig configures a simulation Engine.
type EngineConfig struct {
	Logger *slog.Logger
	// RandSource seeds the engine's Monte Carlo trial sampling. A nil
	// source defaults to a generator with the fixed seed 1, so runs
	// without an injected source draw the same sequence every time.
	RandSource *rand.Rand
	// Metrics, if set, receives trial/year/operation counts and timing
	// as the engine runs. Nil disables instrumentation entirely.
	Metrics *simmetrics.SimulationMetrics
	// Bus, if set, receives one EventTrialCompleted (or EventTrialFailed)
	// event per RunTrial call, letting a host fan trial results out to
	// subscribers (e.g. a NATSBus) as trials complete rather than
	// waiting on RunTrials to return every trial at once.
	Bus events.Bus
}

// Engine runs scenario programs year by year, owning the stream state and
// variable scope every substance's operations execute against.
type Engine struct {
	config  EngineConfig
	keeper  *simstream.StreamKeeper
	vars    *simscope.VariableManager
	logger  *slog.Logger
	randSrc *rand.Rand
	metrics *simmetrics.SimulationMetrics
	bus     events.Bus
}

// NewEngine returns an engine configured by cfg, with an empty stream
// keeper and a fresh global variable scope.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.RandSource == nil {
		cfg.RandSource = rand.New(rand.NewSource(1))
	}
	return &Engine{
		config:  cfg,
		keeper:  simstream.NewStreamKeeper(),
		vars:    simscope.NewVariableManager(),
		logger:  cfg.Logger.With("component", "simulation-engine"),
		randSrc: cfg.RandSource,
		metrics: cfg.Metrics,
		bus:     cfg.Bus,
	}
}

// RandSource returns the engine's injected random source, for hosts that
// draw Monte Carlo samples (e.g. for simops.PreCalculated values) from the
// same reproducible stream the engine itself was seeded with.
func (e *Engine) RandSource() *rand.Rand {
	return e.randSrc
}

// RunTrial executes scenario once, returning every year's results for
// every substance the scenario's programs touch. The trial index is
// stamped onto each result for callers running RunTrials in sequence.
func (e *Engine) RunTrial(ctx context.Context, scenario Scenario, trial int) (results []EngineResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "simulation.scenario")
	defer span.End()
	tracing.SetAttributes(span, map[string]interface{}{
		"simulation.scenario": scenario.Name,
		"simulation.trial":    trial,
	})

	trialID := uuid.NewString()

	start := time.Now()
	if e.metrics != nil {
		defer func() {
			e.metrics.TrialDuration.Observe(time.Since(start).Seconds())
			e.metrics.TrialsTotal.Inc()
		}()
	}
	if e.bus != nil {
		defer func() {
			eventType := events.EventTrialCompleted
			payload := map[string]any{"scenario": scenario.Name, "trial": trial, "trialId": trialID, "years": len(results)}
			if err != nil {
				eventType = events.EventTrialFailed
				payload["error"] = err.Error()
			}
			_ = e.bus.Publish(context.Background(), events.NewEvent(eventType, payload).WithSource("simulation-engine"))
		}()
	}

	for _, program := range scenario.Programs {
		e.keeper.EnsureSubstance(simstream.SubstanceInApplicationId{
			Application: program.Application,
			Substance:   program.Substance,
		})
	}

	for year := scenario.StartYear; year <= scenario.EndYear; year++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		_, yearSpan := tracing.StartSpan(ctx, "simulation.year")
		tracing.SetAttributes(yearSpan, map[string]interface{}{"simulation.year": year})

		for _, program := range scenario.Programs {
			id := simstream.SubstanceInApplicationId{Application: program.Application, Substance: program.Substance}
			if err := e.runProgramYear(program, id, year); err != nil {
				tracing.RecordError(yearSpan, err, "year step failed")
				yearSpan.End()
				return nil, fmt.Errorf("simulation: year %d, %s/%s: %w", year, program.Application, program.Substance, err)
			}
		}

		for _, program := range scenario.Programs {
			id := simstream.SubstanceInApplicationId{Application: program.Application, Substance: program.Substance}
			result, err := e.snapshot(scenario.Name, trial, year, id)
			if err != nil {
				yearSpan.End()
				return nil, err
			}
			result.TrialID = trialID
			results = append(results, result)
		}

		e.keeper.IncrementYear()
		if e.metrics != nil {
			e.metrics.YearsSimulated.Add(float64(len(scenario.Programs)))
		}
		e.logger.Debug("completed simulation year", "scenario", scenario.Name, "trial", trial, "year", year)
		yearSpan.End()
	}
	return results, nil
}

// RunTrials runs scenario count times, returning every trial's combined
// result set. Each trial starts from a fresh stream keeper so trials do
// not leak state into one another; only the injected random source is
// shared across trials, giving Monte Carlo scenarios a single reproducible
// draw sequence.
func (e *Engine) RunTrials(ctx context.Context, scenario Scenario, count int) ([][]EngineResult, error) {
	out := make([][]EngineResult, 0, count)
	for trial := 0; trial < count; trial++ {
		e.keeper = simstream.NewStreamKeeper()
		e.vars = simscope.NewVariableManager()

		results, err := e.RunTrial(ctx, scenario, trial)
		if err != nil {
			return nil, fmt.Errorf("trial %d: %w", trial, err)
		}
		out = append(out, results)
	}
	return out, nil
}

// runProgramYear executes every operation in program against the
// substance identified by id for a single year.
func (e *Engine) runProgramYear(program SubstanceProgram, id simstream.SubstanceInApplicationId, year int) error {
	view := e.keeper.View(id)
	converter := simconvert.NewUnitConverter(view)
	substanceVars, err := e.vars.GetWithLevel(simscope.LevelSubstance)
	if err != nil {
		return err
	}
	machine := simeval.NewMachine(substanceVars, view, converter)

	params, err := e.keeper.GetParameterization(id)
	if err != nil {
		return err
	}

	opCtx := &simops.Context{
		Machine:          machine,
		Parameterization: params,
		Year:             year,
		Keeper:           e.keeper,
		Application:      id.Application,
		Substance:        id.Substance,
	}
	for _, op := range program.Operations {
		if err := op.Execute(opCtx); err != nil {
			if e.metrics != nil && isConversionError(err) {
				e.metrics.ConversionErrors.Inc()
			}
			return err
		}
		if e.metrics != nil {
			e.metrics.OperationsExecuted.Inc()
		}
	}

	if err := e.applyYearStep(id); err != nil {
		if e.metrics != nil && isConversionError(err) {
			e.metrics.ConversionErrors.Inc()
		}
		return err
	}
	return nil
}

// isConversionError reports whether err came from unit reconciliation.
func isConversionError(err error) bool {
	return errors.Is(err, simconvert.ErrIncompatibleUnits) || errors.Is(err, simconvert.ErrMissingContextValue)
}

// applyYearStep runs the physical consequences of a year's configured
// parameterization that are not expressed as explicit operations: new
// equipment entering service from sales (plus recharge mass serviced on
// top of those sales) and retirement of the prior population. Recycled
// supply is credited directly onto the recycle stream as Recover
// operations execute, not here. See DESIGN.md for the grounding of this
// step's formulas.
func (e *Engine) applyYearStep(id simstream.SubstanceInApplicationId) error {
	params, err := e.keeper.GetParameterization(id)
	if err != nil {
		return err
	}
	view := e.keeper.View(id)
	converter := simconvert.NewUnitConverter(view)

	priorEquipment, err := e.keeper.GetStream(id, simstream.PriorEquipment)
	if err != nil {
		return err
	}
	sales, err := e.keeper.GetStream(id, simstream.Sales)
	if err != nil {
		return err
	}

	salesMass, err := converter.Convert(sales, "kg", simnum.EngineNumber{})
	if err != nil {
		return err
	}

	// rechargeMass is the additional virgin material servicing the prior
	// equipment population this year; it adds to the sales mass before
	// that mass is expressed as new equipment counts, producing the
	// "recharge on top" growth the sales stream alone would understate.
	rechargeMass := simnum.Multiply(
		simnum.Multiply(priorEquipment, asFraction(params.RechargePopulation)),
		params.RechargeIntensity,
	)
	totalMass := simnum.Add(salesMass, rechargeMass)
	newEquipment, err := converter.Convert(simnum.EngineNumber{Value: totalMass.Value, Units: "kg"}, "units", simnum.EngineNumber{})
	if err != nil {
		return err
	}

	retired := simnum.Multiply(priorEquipment, asFraction(params.RetirementRate))
	survivingPrior := simnum.Subtract(priorEquipment, retired)
	equipment := simnum.Add(survivingPrior, newEquipment)
	equipment.Units = "units"
	if err := e.keeper.SetStream(id, simstream.Equipment, equipment); err != nil {
		return err
	}

	return nil
}

// asFraction reconciles a percentage EngineNumber into a dimensionless
// multiplier (10% -> 0.10), the form the year-step arithmetic needs.
func asFraction(rate simnum.EngineNumber) simnum.EngineNumber {
	return simnum.EngineNumber{Value: rate.Value.Div(decimalHundred())}
}

// snapshot reads every stream for id at the given year into an
// EngineResult.
func (e *Engine) snapshot(scenarioName string, trial, year int, id simstream.SubstanceInApplicationId) (EngineResult, error) {
	result := EngineResult{
		Scenario:    scenarioName,
		Trial:       trial,
		Year:        year,
		Application: id.Application,
		Substance:   id.Substance,
	}

	streamValues := map[string]*simnum.EngineNumber{
		simstream.Manufacture:    &result.Manufacture,
		simstream.Import:         &result.Import,
		simstream.Export:         &result.Export,
		simstream.Recycle:        &result.Recycle,
		simstream.Equipment:      &result.Equipment,
		simstream.PriorEquipment: &result.PriorEquipment,
		simstream.Sales:          &result.Sales,
		simstream.Consumption:    &result.Consumption,
		simstream.Energy:         &result.Energy,
	}
	for name, dst := range streamValues {
		v, err := e.keeper.GetStream(id, name)
		if err != nil {
			return EngineResult{}, err
		}
		*dst = v
	}

	params, err := e.keeper.GetParameterization(id)
	if err != nil {
		return EngineResult{}, err
	}
	exportCharge, err := params.GetInitialCharge(simstream.Export)
	if err != nil {
		return EngineResult{}, err
	}
	view := e.keeper.View(id)
	converter := simconvert.NewUnitConverter(view)
	exportMass, err := converter.Convert(result.Export, "kg", simnum.EngineNumber{})
	if err != nil {
		return EngineResult{}, err
	}
	exportConsumption := simnum.Multiply(exportMass, params.GhgIntensity)
	exportConsumption.Units = "tCO2e"
	result.Trade = TradeSupplement{
		ExportInitialChargeValue:       exportCharge,
		ExportInitialChargeConsumption: exportConsumption,
	}

	return result, nil
}
