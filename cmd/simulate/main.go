// Command simulate is an example host for the simulation engine: it builds
// a small scenario programmatically (parsing policy text is out of scope
// for this module), runs it for one or more trials, and prints a
// year-by-year summary. With -pdf it also renders a PDF summary of the
// final trial, one row per simulated year.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/example/refrigerantsim/internal/config"
	"github.com/example/refrigerantsim/internal/events"
	"github.com/example/refrigerantsim/internal/logging"
	"github.com/example/refrigerantsim/internal/simmetrics"
	"github.com/example/refrigerantsim/internal/simnum"
	"github.com/example/refrigerantsim/internal/simops"
	"github.com/example/refrigerantsim/internal/simreport"
	"github.com/example/refrigerantsim/internal/simscope"
	"github.com/example/refrigerantsim/internal/simulation"
)

func main() {
	trials := flag.Int("trials", 1, "number of Monte Carlo trials to run")
	pdfOut := flag.String("pdf", "", "optional path to write a PDF summary of the final trial")
	flag.Parse()

	logger := logging.New(logging.Config{
		Level:  slog.LevelInfo,
		Format: logging.FormatText,
		Output: os.Stdout,
	})

	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config failed", "error", err)
		os.Exit(1)
	}

	if err := run(logger, cfg, *trials, *pdfOut); err != nil {
		logger.Error("simulation run failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, cfg config.Config, trialCount int, pdfOut string) error {
	registry := prometheus.NewRegistry()
	var metrics *simmetrics.SimulationMetrics
	if cfg.Features.EnableMetrics {
		var err error
		metrics, err = simmetrics.NewSimulationMetrics(registry)
		if err != nil {
			return fmt.Errorf("register simulation metrics: %w", err)
		}
	}

	bus := events.Bus(events.NewNoopBus())
	if cfg.Features.EnableNATSFanout {
		// NATSBus lives behind the events_nats build tag; hosts that
		// enable fanout in production build with that tag set and
		// construct it here instead of the no-op bus.
		logger.Warn("NATS fanout requested but this binary was not built with the events_nats tag; falling back to a no-op bus")
	}

	engine := simulation.NewEngine(simulation.EngineConfig{
		Logger:     logger,
		RandSource: rand.New(rand.NewSource(cfg.Run.Seed)),
		Metrics:    metrics,
		Bus:        bus,
	})

	scenario := businessAsUsualScenario()

	ctx := context.Background()
	trialResults, err := engine.RunTrials(ctx, scenario, trialCount)
	if err != nil {
		return fmt.Errorf("run trials: %w", err)
	}

	for trial, results := range trialResults {
		if err := simulation.ValidateResult(results); err != nil {
			return fmt.Errorf("trial %d produced an invalid result set: %w", trial, err)
		}
		for _, r := range results {
			logger.Info("year result",
				"trial", trial,
				"year", r.Year,
				"application", r.Application,
				"substance", r.Substance,
				"equipment", r.Equipment.String(),
				"consumption", r.Consumption.String(),
			)
		}
	}

	if pdfOut != "" {
		last := trialResults[len(trialResults)-1]
		data, err := simreport.RenderSummaryToPDF(scenario.Name, last)
		if err != nil {
			return fmt.Errorf("render pdf report: %w", err)
		}
		if err := os.WriteFile(pdfOut, data, 0o644); err != nil {
			return fmt.Errorf("write pdf report: %w", err)
		}
		logger.Info("wrote pdf summary", "path", pdfOut)
	}

	return nil
}

// businessAsUsualScenario builds a small fixture scenario: a domestic
// refrigeration HFC-134a program that manufactures and imports substance
// every year, retires 10% of equipment annually, and recovers 60 kg at 90%
// yield starting in 2027.
func businessAsUsualScenario() simulation.Scenario {
	return simulation.Scenario{
		Name:      "business as usual",
		StartYear: 2025,
		EndYear:   2030,
		Programs: []simulation.SubstanceProgram{
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
					simops.RecoverOperation{
						Volume: simops.Literal(simnum.New(60, "kg")),
						Yield:  simops.Literal(simnum.New(90, "%")),
						Years:  simscope.NewYearMatcher(intPtr(2027), nil),
					},
				},
			},
		},
	}
}

func intPtr(v int) *int {
	return &v
}
