package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dominikbraun/graph"
	"github.com/glucolab/agp/brittleness"
	"github.com/glucolab/agp/glucose"
	"github.com/glucolab/agp/metrics"
	"github.com/glucolab/agp/prediction"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	StageMetrics     = "metrics"
	StageBrittleness = "brittleness"
	StagePrediction  = "prediction"
	StageAssemble    = "assemble"
)

// stageLevels derives the execution schedule from the stage dependency graph:
// stages in the same level have all dependencies satisfied and run
// concurrently.
func stageLevels() ([][]string, error) {
	g := graph.New(graph.StringHash, graph.Directed(), graph.Acyclic())
	for _, stage := range []string{StageMetrics, StageBrittleness, StagePrediction, StageAssemble} {
		if err := g.AddVertex(stage); err != nil {
			return nil, err
		}
	}
	edges := [][2]string{
		{StageMetrics, StageBrittleness},
		{StageMetrics, StagePrediction},
		{StageBrittleness, StageAssemble},
		{StagePrediction, StageAssemble},
	}
	for _, e := range edges {
		if err := g.AddEdge(e[0], e[1]); err != nil {
			return nil, err
		}
	}

	order, err := graph.TopologicalSort(g)
	if err != nil {
		return nil, err
	}
	predecessors, err := g.PredecessorMap()
	if err != nil {
		return nil, err
	}

	depth := make(map[string]int, len(order))
	maxDepth := 0
	for _, stage := range order {
		for pred := range predecessors[stage] {
			if depth[pred]+1 > depth[stage] {
				depth[stage] = depth[pred] + 1
			}
		}
		if depth[stage] > maxDepth {
			maxDepth = depth[stage]
		}
	}

	levels := make([][]string, maxDepth+1)
	for _, stage := range order {
		levels[depth[stage]] = append(levels[depth[stage]], stage)
	}
	return levels, nil
}

// Coordinator runs the analysis pipeline over a series. It is stateless and
// safe for concurrent use.
type Coordinator struct {
	engine     *metrics.Engine
	classifier *brittleness.Classifier
	predictor  *prediction.Predictor
	thresholds brittleness.Thresholds
	levels     [][]string
	logger     *zap.SugaredLogger
}

func NewCoordinator(
	engine *metrics.Engine,
	classifier *brittleness.Classifier,
	predictor *prediction.Predictor,
	thresholds brittleness.Thresholds,
	logger *zap.SugaredLogger,
) (*Coordinator, error) {
	levels, err := stageLevels()
	if err != nil {
		return nil, fmt.Errorf("invalid pipeline wiring: %w", err)
	}
	return &Coordinator{
		engine:     engine,
		classifier: classifier,
		predictor:  predictor,
		levels:     levels,
		logger:     logger,
		thresholds: thresholds,
	}, nil
}

// Run executes all stages and returns the merged report. The forecast stage
// is best effort: a series too sparse for a trend does not fail the run.
func (c *Coordinator) Run(ctx context.Context, series *glucose.Series) (*Report, error) {
	if series == nil || series.Len() == 0 {
		return nil, glucose.ErrEmptySeries
	}

	var report Report
	var set metrics.Set
	var agp metrics.AGPProfile
	var profile brittleness.Profile
	var forecast *prediction.Forecast

	stages := map[string]func(context.Context) error{
		StageMetrics: func(ctx context.Context) error {
			var err error
			if set, err = c.engine.Compute(series); err != nil {
				return err
			}
			agp = c.engine.Profile(series)
			return nil
		},
		StageBrittleness: func(ctx context.Context) error {
			var err error
			profile, err = c.classifier.Classify(set)
			return err
		},
		StagePrediction: func(ctx context.Context) error {
			f, err := c.predictor.Forecast(series)
			if errors.Is(err, prediction.ErrInsufficientData) {
				c.logger.Debugw("skipping forecast", "patientId", series.PatientID, "reason", err)
				return nil
			}
			if err != nil {
				return err
			}
			forecast = f
			return nil
		},
		StageAssemble: func(ctx context.Context) error {
			report = Report{
				ReportID:      uuid.NewString(),
				PatientID:     series.PatientID,
				SeriesHash:    series.Hash(),
				WindowStart:   series.Start(),
				WindowEnd:     series.End(),
				GeneratedAt:   time.Now().UTC(),
				TotalReadings: series.Len(),
				Config: Config{
					SchemaVersion: CurrentSchemaVersion,
					Metrics:       c.engine.Config(),
					Thresholds:    c.thresholds,
				},
				Metrics:     set,
				AGP:         agp,
				Brittleness: profile,
				Forecast:    forecast,
			}
			return nil
		},
	}

	for _, level := range c.levels {
		group, groupCtx := errgroup.WithContext(ctx)
		for _, stage := range level {
			stage := stage
			group.Go(func() error {
				if err := stages[stage](groupCtx); err != nil {
					return fmt.Errorf("stage %s: %w", stage, err)
				}
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			return nil, err
		}
	}

	return &report, nil
}
