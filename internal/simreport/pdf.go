// Package simreport renders a finished trial's year-by-year results into a
// human-readable PDF, the way a host would hand a scenario run to someone
// who is not going to read structured logs.
package simreport

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/example/refrigerantsim/internal/simulation"
)

// RenderSummaryToPDF builds a one-page PDF summary of a trial: one section
// per application/substance pair, with a row per simulated year showing
// equipment population and consumption.
func RenderSummaryToPDF(scenarioName string, results []simulation.EngineResult) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Scenario Summary: %s", scenarioName), false)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "Scenario Summary", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 7, fmt.Sprintf("Scenario: %s", scenarioName), "", 1, "", false, 0, "")
	pdf.CellFormat(0, 7, fmt.Sprintf("Generated: %s", time.Now().UTC().Format(time.RFC3339)), "", 1, "R", false, 0, "")
	pdf.Ln(5)

	for _, section := range groupByApplicationSubstance(results) {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 8, fmt.Sprintf("%s / %s", section.application, section.substance), "", 1, "", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		for _, row := range section.rows {
			line := fmt.Sprintf("%d  equipment=%s  consumption=%s  sales=%s",
				row.Year, row.Equipment.String(), row.Consumption.String(), row.Sales.String())
			pdf.CellFormat(0, 6, line, "", 1, "", false, 0, "")
		}
		pdf.Ln(3)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf export: %w", err)
	}
	return buf.Bytes(), nil
}

type section struct {
	application string
	substance   string
	rows        []simulation.EngineResult
}

// groupByApplicationSubstance preserves result order within each group; it
// does not sort groups, since RunTrial already emits them in program order.
func groupByApplicationSubstance(results []simulation.EngineResult) []section {
	index := make(map[string]int)
	var sections []section

	for _, r := range results {
		key := r.Application + "\x00" + r.Substance
		i, ok := index[key]
		if !ok {
			i = len(sections)
			index[key] = i
			sections = append(sections, section{application: r.Application, substance: r.Substance})
		}
		sections[i].rows = append(sections[i].rows, r)
	}
	return sections
}
