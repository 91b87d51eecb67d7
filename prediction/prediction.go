// Package prediction produces short-horizon glucose forecasts from the
// trailing trend of a series.
package prediction

import (
	"fmt"
	"math"
	"time"

	"github.com/glucolab/agp/errors"
	"github.com/glucolab/agp/glucose"
	"go.uber.org/zap"
)

const (
	// TrendWindow is how far back the momentum fit looks.
	TrendWindow = 30 * time.Minute

	// curvatureDamping discounts the acceleration term; raw second-order
	// extrapolation of CGM noise overshoots badly.
	curvatureDamping = 0.5

	minTrendReadings = 3

	hypoThresholdMmolL  = 3.9
	hyperThresholdMmolL = 13.9
)

var ErrInsufficientData = fmt.Errorf("not enough recent readings for a forecast: %w", errors.ConstraintViolation)

type Point struct {
	Time  time.Time `json:"time" bson:"time"`
	Value float64   `json:"value" bson:"value"`
}

type Forecast struct {
	ReferenceTime   time.Time `json:"referenceTime" bson:"referenceTime"`
	BasedOnReadings int       `json:"basedOnReadings" bson:"basedOnReadings"`
	TrendMmolPerMin float64   `json:"trendMmolPerMin" bson:"trendMmolPerMin"`
	Confidence      float64   `json:"confidence" bson:"confidence"`
	In30Min         Point     `json:"in30Min" bson:"in30Min"`
	In60Min         Point     `json:"in60Min" bson:"in60Min"`
	HypoRisk        bool      `json:"hypoRisk" bson:"hypoRisk"`
	HyperRisk       bool      `json:"hyperRisk" bson:"hyperRisk"`
}

type Predictor struct {
	window time.Duration
	logger *zap.SugaredLogger
}

func NewPredictor(logger *zap.SugaredLogger) *Predictor {
	return &Predictor{
		window: TrendWindow,
		logger: logger,
	}
}

// Forecast extrapolates the trailing trend 30 and 60 minutes past the last
// reading. The fit is least squares in time with a damped curvature term,
// clamped to the physiologic range.
func (p *Predictor) Forecast(series *glucose.Series) (*Forecast, error) {
	if series == nil || series.Len() == 0 {
		return nil, ErrInsufficientData
	}

	last := series.End()
	trailing, err := series.Clamp(last.Add(-p.window), last)
	if err != nil || trailing.Len() < minTrendReadings {
		return nil, ErrInsufficientData
	}

	// Fit value = a + b·minutes relative to the last reading.
	xs := make([]float64, trailing.Len())
	ys := make([]float64, trailing.Len())
	for i, r := range trailing.Readings {
		xs[i] = r.Time.Sub(last).Minutes()
		ys[i] = r.Value
	}
	a, b, r2 := linearFit(xs, ys)
	curvature := estimateCurvature(xs, ys) * curvatureDamping

	predict := func(minutes float64) float64 {
		v := a + b*minutes + curvature*minutes*minutes
		return math.Max(glucose.MinReadingMmolL, math.Min(glucose.MaxReadingMmolL, v))
	}

	forecast := &Forecast{
		ReferenceTime:   last,
		BasedOnReadings: trailing.Len(),
		TrendMmolPerMin: b,
		Confidence:      r2,
		In30Min:         Point{Time: last.Add(30 * time.Minute), Value: predict(30)},
		In60Min:         Point{Time: last.Add(60 * time.Minute), Value: predict(60)},
	}
	forecast.HypoRisk = forecast.In30Min.Value < hypoThresholdMmolL || forecast.In60Min.Value < hypoThresholdMmolL
	forecast.HyperRisk = forecast.In30Min.Value > hyperThresholdMmolL || forecast.In60Min.Value > hyperThresholdMmolL

	p.logger.Debugw("computed forecast",
		"patientId", series.PatientID,
		"trend", forecast.TrendMmolPerMin,
		"confidence", forecast.Confidence)

	return forecast, nil
}

func linearFit(xs, ys []float64) (intercept, slope, r2 float64) {
	n := float64(len(xs))
	var sumX, sumY, sumXY, sumXX float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
		sumXY += xs[i] * ys[i]
		sumXX += xs[i] * xs[i]
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return ys[len(ys)-1], 0, 0
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n

	meanY := sumY / n
	var ssTot, ssRes float64
	for i := range xs {
		fit := intercept + slope*xs[i]
		ssTot += (ys[i] - meanY) * (ys[i] - meanY)
		ssRes += (ys[i] - fit) * (ys[i] - fit)
	}
	if ssTot == 0 {
		// A flat trend fits perfectly.
		return intercept, slope, 1
	}
	return intercept, slope, math.Max(0, 1-ssRes/ssTot)
}

// estimateCurvature compares the slope of the older and newer halves of the
// trend window.
func estimateCurvature(xs, ys []float64) float64 {
	if len(xs) < 4 {
		return 0
	}
	mid := len(xs) / 2
	_, older, _ := linearFit(xs[:mid], ys[:mid])
	_, newer, _ := linearFit(xs[mid:], ys[mid:])
	span := xs[len(xs)-1] - xs[0]
	if span == 0 {
		return 0
	}
	return (newer - older) / span
}
