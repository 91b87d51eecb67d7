package command

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/glucolab/agp/analysis"
	"github.com/glucolab/agp/glucose"
	"github.com/glucolab/agp/ingest"
	"github.com/glucolab/agp/report"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	analyzeInput   string
	analyzePatient string
	analyzeOutDir  string
	analyzeXlsx    bool
)

// analyzeCmd runs the full pipeline over a local file without touching the
// store, for ad hoc review of a sensor export.
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a CSV or XLSX glucose export",
	RunE: func(cmd *cobra.Command, args []string) error {
		return Run(func(coordinator *analysis.Coordinator, logger *zap.SugaredLogger) error {
			return analyze(cmd.Context(), coordinator, logger)
		})
	},
}

func analyze(ctx context.Context, coordinator *analysis.Coordinator, logger *zap.SugaredLogger) error {
	data, err := os.ReadFile(analyzeInput)
	if err != nil {
		return err
	}

	parsed, err := ingest.ParseFile(filepath.Base(analyzeInput), data)
	if err != nil {
		return err
	}
	sort.Slice(parsed, func(i, j int) bool { return parsed[i].Time.Before(parsed[j].Time) })

	patientID := analyzePatient
	if patientID == "" {
		base := filepath.Base(analyzeInput)
		patientID = strings.TrimSuffix(base, filepath.Ext(base))
	}

	series, err := glucose.NewSeries(patientID, parsed)
	if err != nil {
		return err
	}

	result, err := coordinator.Run(ctx, series)
	if err != nil {
		return err
	}

	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	jsonPath := filepath.Join(analyzeOutDir, result.ReportID+".json")
	if err := os.WriteFile(jsonPath, payload, 0o644); err != nil {
		return err
	}
	fmt.Println(jsonPath)

	if analyzeXlsx {
		workbook, err := report.NewGenerator(result, nil).Generate()
		if err != nil {
			return err
		}
		xlsxPath := filepath.Join(analyzeOutDir, report.Filename(result))
		if err := workbook.Save(xlsxPath); err != nil {
			return err
		}
		fmt.Println(xlsxPath)
	}

	logger.Infow("analyzed file",
		"input", analyzeInput,
		"patientId", patientID,
		"readings", series.Len(),
		"category", result.Brittleness.Category)
	return nil
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeInput, "input", "i", "", "Input CSV or XLSX file")
	analyzeCmd.Flags().StringVarP(&analyzePatient, "patient", "p", "", "Patient id (defaults to the file name)")
	analyzeCmd.Flags().StringVarP(&analyzeOutDir, "out-dir", "o", ".", "Output directory")
	analyzeCmd.Flags().BoolVar(&analyzeXlsx, "xlsx", false, "Also write an XLSX report")
	_ = analyzeCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(analyzeCmd)
}
