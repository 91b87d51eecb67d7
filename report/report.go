// Package report renders an analysis report as a spreadsheet for clinic
// review workflows.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fatih/structs"
	"github.com/glucolab/agp/analysis"
	"github.com/glucolab/agp/patients"
	"github.com/glucolab/agp/pointer"
	"github.com/tealeg/xlsx/v3"
)

const (
	SheetNameSummary    = "Summary"
	SheetNameIndicators = "Indicators"
	SheetNameAGP        = "AGP Profile"
)

type Generator struct {
	report  *analysis.Report
	patient *patients.Patient
}

// NewGenerator builds a workbook generator. The patient is optional; one-shot
// command line runs have no registry entry.
func NewGenerator(report *analysis.Report, patient *patients.Patient) Generator {
	return Generator{report: report, patient: patient}
}

func (g Generator) Generate() (*xlsx.File, error) {
	file := xlsx.NewFile()

	components := []func(file *xlsx.File) error{
		g.addSummarySheet,
		g.addIndicatorsSheet,
		g.addAGPSheet,
	}
	for _, fn := range components {
		if err := fn(file); err != nil {
			return nil, err
		}
	}

	return file, nil
}

func (g Generator) addSummarySheet(file *xlsx.File) error {
	sh, err := file.AddSheet(SheetNameSummary)
	if err != nil {
		return err
	}

	addKeyValue := func(key string, value interface{}) {
		row := sh.AddRow()
		row.AddCell().SetValue(key)
		row.AddCell().SetValue(value)
	}

	addKeyValue("Report", g.report.ReportID)
	addKeyValue("Patient", g.report.PatientID)
	if g.patient != nil {
		addKeyValue("Full Name", g.patient.FullName)
		if g.patient.Mrn != nil {
			addKeyValue("MRN", pointer.ToString(g.patient.Mrn))
		}
	}
	addKeyValue("Window Start", g.report.WindowStart.Format(time.RFC3339))
	addKeyValue("Window End", g.report.WindowEnd.Format(time.RFC3339))
	addKeyValue("Generated At", g.report.GeneratedAt.Format(time.RFC3339))
	addKeyValue("Readings", g.report.TotalReadings)

	sh.AddRow()
	addKeyValue("Brittleness", string(g.report.Brittleness.Category))
	addKeyValue("Severity", g.report.Brittleness.Severity)
	for i, driver := range g.report.Brittleness.Drivers {
		addKeyValue(fmt.Sprintf("Driver %d", i+1), driver)
	}

	if g.report.Forecast != nil {
		sh.AddRow()
		for key, value := range structs.Map(g.report.Forecast) {
			addKeyValue("Forecast "+key, fmt.Sprintf("%v", value))
		}
	}

	return nil
}

func (g Generator) addIndicatorsSheet(file *xlsx.File) error {
	sh, err := file.AddSheet(SheetNameIndicators)
	if err != nil {
		return err
	}

	header := sh.AddRow()
	header.AddCell().SetValue("Indicator")
	header.AddCell().SetValue("Value")

	names := make([]string, 0, len(g.report.Metrics))
	for name := range g.report.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		row := sh.AddRow()
		row.AddCell().SetValue(name)
		row.AddCell().SetValue(g.report.Metrics[name])
	}
	return nil
}

func (g Generator) addAGPSheet(file *xlsx.File) error {
	sh, err := file.AddSheet(SheetNameAGP)
	if err != nil {
		return err
	}

	header := sh.AddRow()
	for _, title := range []string{"Hour", "Records", "P10", "P25", "P50", "P75", "P90"} {
		header.AddCell().SetValue(title)
	}

	for _, hour := range g.report.AGP {
		row := sh.AddRow()
		row.AddCell().SetValue(hour.Hour)
		row.AddCell().SetValue(hour.Records)
		row.AddCell().SetValue(hour.P10)
		row.AddCell().SetValue(hour.P25)
		row.AddCell().SetValue(hour.P50)
		row.AddCell().SetValue(hour.P75)
		row.AddCell().SetValue(hour.P90)
	}
	return nil
}

// Filename returns a stable export name for the workbook.
func Filename(report *analysis.Report) string {
	date := report.GeneratedAt.Format("2006-01-02")
	return strings.Join([]string{"agp", report.PatientID, date, report.ReportID[:8]}, "-") + ".xlsx"
}
