package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/glucolab/agp/analysis"
	"github.com/glucolab/agp/readings"
	"go.uber.org/zap"
)

var zeroTime time.Time

// Intake turns a dropped file into stored readings and a fresh analysis run.
// The patient id is the file name without its extension.
type Intake struct {
	readings readings.Service
	analyses analysis.Service
	logger   *zap.SugaredLogger

	patients mapset.Set[string]
}

func NewIntake(readingsService readings.Service, analysisService analysis.Service, logger *zap.SugaredLogger) *Intake {
	return &Intake{
		readings: readingsService,
		analyses: analysisService,
		logger:   logger,
		patients: mapset.NewSet[string](),
	}
}

func (i *Intake) HandleFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	parsed, err := ParseFile(filepath.Base(path), data)
	if err != nil {
		return err
	}

	patientID := patientIDFromPath(path)
	inserted, err := i.readings.Add(ctx, patientID, parsed)
	if err != nil {
		return err
	}
	i.patients.Add(patientID)

	series, err := i.readings.GetSeries(ctx, patientID, zeroTime, zeroTime)
	if err != nil {
		return err
	}
	report, _, err := i.analyses.Analyze(ctx, series)
	if err != nil {
		return err
	}

	i.logger.Infow("processed intake file",
		"path", path,
		"patientId", patientID,
		"parsed", len(parsed),
		"inserted", inserted,
		"reportId", report.ReportID,
		"distinctPatients", i.patients.Cardinality())
	return nil
}

func patientIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
