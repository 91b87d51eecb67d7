// Package analysis coordinates the metric engine, the brittleness classifier
// and the predictor for one patient, and persists the merged report.
package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/glucolab/agp/brittleness"
	"github.com/glucolab/agp/errors"
	"github.com/glucolab/agp/metrics"
	"github.com/glucolab/agp/prediction"
	"github.com/glucolab/agp/store"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const CurrentSchemaVersion = 1

var (
	ErrNotFound  = fmt.Errorf("report %w", errors.NotFound)
	ErrDuplicate = fmt.Errorf("report %w", errors.Duplicate)
)

// Config captures the parameters a report was computed with.
type Config struct {
	SchemaVersion int                    `json:"schemaVersion" bson:"schemaVersion"`
	Metrics       metrics.Config         `json:"metrics" bson:"metrics"`
	Thresholds    brittleness.Thresholds `json:"thresholds" bson:"thresholds"`
}

// Report is the write-once artifact of one analysis run: the metric set, the
// brittleness profile and the optional forecast for one patient at one point
// in time.
type Report struct {
	ID       primitive.ObjectID `json:"-" bson:"_id,omitempty"`
	ReportID string             `json:"reportId" bson:"reportId"`

	PatientID  string `json:"patientId" bson:"patientId"`
	SeriesHash string `json:"seriesHash" bson:"seriesHash"`

	WindowStart   time.Time `json:"windowStart" bson:"windowStart"`
	WindowEnd     time.Time `json:"windowEnd" bson:"windowEnd"`
	GeneratedAt   time.Time `json:"generatedAt" bson:"generatedAt"`
	TotalReadings int       `json:"totalReadings" bson:"totalReadings"`

	Config      Config               `json:"config" bson:"config"`
	Metrics     metrics.Set          `json:"metrics" bson:"metrics"`
	AGP         metrics.AGPProfile   `json:"agp" bson:"agp"`
	Brittleness brittleness.Profile  `json:"brittleness" bson:"brittleness"`
	Forecast    *prediction.Forecast `json:"forecast,omitempty" bson:"forecast,omitempty"`
}

type Filter struct {
	PatientID     *string
	Category      *brittleness.Category
	GeneratedFrom *time.Time
	GeneratedTo   *time.Time
}

type ListResult struct {
	Reports    []*Report `bson:"data"`
	TotalCount int       `bson:"count"`
}

type Repository interface {
	Create(ctx context.Context, report *Report) error
	Get(ctx context.Context, reportID string) (*Report, error)
	GetBySeriesHash(ctx context.Context, patientID, seriesHash string) (*Report, error)
	List(ctx context.Context, filter *Filter, pagination store.Pagination) (*ListResult, error)
}
