package metrics

import (
	"math"
	"sort"
	"time"

	"github.com/glucolab/agp/glucose"
	"go.uber.org/zap"
)

// Metric names. The engine emits a Set keyed by these; indicators that cannot
// be computed from the available data are omitted rather than reported as zero.
const (
	TotalRecords        = "totalRecords"
	DaysWithData        = "daysWithData"
	HoursWithData       = "hoursWithData"
	AverageDailyRecords = "averageDailyRecords"
	WearPercent         = "wearPercent"

	AverageGlucoseMmol     = "averageGlucoseMmol"
	MedianGlucoseMmol      = "medianGlucoseMmol"
	MinGlucoseMmol         = "minGlucoseMmol"
	MaxGlucoseMmol         = "maxGlucoseMmol"
	StandardDeviation      = "standardDeviation"
	CoefficientOfVariation = "coefficientOfVariation"
	InterquartileRange     = "interquartileRange"

	GlucoseManagementIndicator = "glucoseManagementIndicator"
	JIndex                     = "jIndex"
	LBGI                       = "lbgi"
	HBGI                       = "hbgi"
	MAGE                       = "mage"
	MODD                       = "modd"
	CONGA1                     = "conga1"
	SampleEntropy              = "sampleEntropy"

	NocturnalCoefficientOfVariation = "nocturnalCoefficientOfVariation"
	DaytimeCoefficientOfVariation   = "daytimeCoefficientOfVariation"

	TimeInVeryLowPercent     = "timeInVeryLowPercent"
	TimeInVeryLowRecords     = "timeInVeryLowRecords"
	TimeInVeryLowMinutes     = "timeInVeryLowMinutes"
	TimeInLowPercent         = "timeInLowPercent"
	TimeInLowRecords         = "timeInLowRecords"
	TimeInLowMinutes         = "timeInLowMinutes"
	TimeInTargetPercent      = "timeInTargetPercent"
	TimeInTargetRecords      = "timeInTargetRecords"
	TimeInTargetMinutes      = "timeInTargetMinutes"
	TimeInHighPercent        = "timeInHighPercent"
	TimeInHighRecords        = "timeInHighRecords"
	TimeInHighMinutes        = "timeInHighMinutes"
	TimeInVeryHighPercent    = "timeInVeryHighPercent"
	TimeInVeryHighRecords    = "timeInVeryHighRecords"
	TimeInVeryHighMinutes    = "timeInVeryHighMinutes"
	TimeInExtremeHighPercent = "timeInExtremeHighPercent"
	TimeInExtremeHighRecords = "timeInExtremeHighRecords"
	TimeInExtremeHighMinutes = "timeInExtremeHighMinutes"
	TimeInAnyLowPercent      = "timeInAnyLowPercent"
	TimeInAnyLowRecords      = "timeInAnyLowRecords"
	TimeInAnyHighPercent     = "timeInAnyHighPercent"
	TimeInAnyHighRecords     = "timeInAnyHighRecords"
)

// Set maps metric name to computed value, derived deterministically from a
// series. A Set is never mutated after Compute returns.
type Set map[string]float64

func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

func (s Set) Get(name string) float64 {
	return s[name]
}

// Config holds the glucose thresholds for range bands, in mmol/L.
type Config struct {
	VeryLowGlucoseThreshold     float64 `json:"veryLowGlucoseThreshold" yaml:"veryLowGlucoseThreshold"`
	LowGlucoseThreshold         float64 `json:"lowGlucoseThreshold" yaml:"lowGlucoseThreshold"`
	HighGlucoseThreshold        float64 `json:"highGlucoseThreshold" yaml:"highGlucoseThreshold"`
	VeryHighGlucoseThreshold    float64 `json:"veryHighGlucoseThreshold" yaml:"veryHighGlucoseThreshold"`
	ExtremeHighGlucoseThreshold float64 `json:"extremeHighGlucoseThreshold" yaml:"extremeHighGlucoseThreshold"`
}

func DefaultConfig() Config {
	return Config{
		VeryLowGlucoseThreshold:     3.0,
		LowGlucoseThreshold:         3.9,
		HighGlucoseThreshold:        10.0,
		VeryHighGlucoseThreshold:    13.9,
		ExtremeHighGlucoseThreshold: 19.4,
	}
}

type Engine struct {
	config Config
	logger *zap.SugaredLogger
}

func NewEngine(config Config, logger *zap.SugaredLogger) *Engine {
	return &Engine{
		config: config,
		logger: logger,
	}
}

func (e *Engine) Config() Config {
	return e.config
}

// Compute derives the full indicator set from a series.
func (e *Engine) Compute(series *glucose.Series) (Set, error) {
	if series == nil || series.Len() == 0 {
		return nil, glucose.ErrEmptySeries
	}

	set := Set{}
	values := series.Values()
	n := float64(len(values))
	interval := series.SamplingInterval()
	intervalMinutes := interval.Minutes()

	set[TotalRecords] = n
	e.addCoverage(set, series, interval)
	e.addDistribution(set, values)
	e.addBands(set, values, n, intervalMinutes)
	e.addRisk(set, values)
	e.addVariability(set, series)
	e.addDiurnal(set, series)

	e.logger.Debugw("computed metric set",
		"patientId", series.PatientID,
		"readings", series.Len(),
		"indicators", len(set))

	return set, nil
}

func (e *Engine) addCoverage(set Set, series *glucose.Series, interval time.Duration) {
	days := map[string]struct{}{}
	hours := map[string]struct{}{}
	for _, r := range series.Readings {
		t := r.Time.UTC()
		days[t.Format("2006-01-02")] = struct{}{}
		hours[t.Format("2006-01-02T15")] = struct{}{}
	}
	set[DaysWithData] = float64(len(days))
	set[HoursWithData] = float64(len(hours))
	set[AverageDailyRecords] = float64(series.Len()) / float64(len(days))

	window := series.End().Sub(series.Start())
	expected := window.Minutes()/interval.Minutes() + 1
	if expected > 0 {
		set[WearPercent] = math.Min(100, float64(series.Len())/expected*100)
	}
}

func (e *Engine) addDistribution(set Set, values []float64) {
	mean := meanOf(values)
	sd := stdDev(values, mean)

	set[AverageGlucoseMmol] = mean
	set[StandardDeviation] = sd
	set[CoefficientOfVariation] = sd / mean * 100
	set[GlucoseManagementIndicator] = 3.31 + 0.02392*mean*glucose.MmolLToMgdL

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	set[MinGlucoseMmol] = sorted[0]
	set[MaxGlucoseMmol] = sorted[len(sorted)-1]
	set[MedianGlucoseMmol] = percentile(sorted, 50)
	set[InterquartileRange] = percentile(sorted, 75) - percentile(sorted, 25)
}

func (e *Engine) addBands(set Set, values []float64, n, intervalMinutes float64) {
	var veryLow, low, target, high, veryHigh, extremeHigh float64
	for _, v := range values {
		switch {
		case v < e.config.VeryLowGlucoseThreshold:
			veryLow++
		case v < e.config.LowGlucoseThreshold:
			low++
		case v <= e.config.HighGlucoseThreshold:
			target++
		case v <= e.config.VeryHighGlucoseThreshold:
			high++
		default:
			veryHigh++
		}
		if v > e.config.ExtremeHighGlucoseThreshold {
			extremeHigh++
		}
	}

	band := func(percent, records, minutes string, count float64) {
		set[percent] = count / n * 100
		set[records] = count
		set[minutes] = count * intervalMinutes
	}
	band(TimeInVeryLowPercent, TimeInVeryLowRecords, TimeInVeryLowMinutes, veryLow)
	band(TimeInLowPercent, TimeInLowRecords, TimeInLowMinutes, low)
	band(TimeInTargetPercent, TimeInTargetRecords, TimeInTargetMinutes, target)
	band(TimeInHighPercent, TimeInHighRecords, TimeInHighMinutes, high)
	band(TimeInVeryHighPercent, TimeInVeryHighRecords, TimeInVeryHighMinutes, veryHigh)
	band(TimeInExtremeHighPercent, TimeInExtremeHighRecords, TimeInExtremeHighMinutes, extremeHigh)

	set[TimeInAnyLowPercent] = (veryLow + low) / n * 100
	set[TimeInAnyLowRecords] = veryLow + low
	set[TimeInAnyHighPercent] = (high + veryHigh) / n * 100
	set[TimeInAnyHighRecords] = high + veryHigh
}

func (e *Engine) addDiurnal(set Set, series *glucose.Series) {
	var night, day []float64
	for _, r := range series.Readings {
		if hour := r.Time.UTC().Hour(); hour < 6 {
			night = append(night, r.Value)
		} else {
			day = append(day, r.Value)
		}
	}
	if len(night) >= 2 {
		mean := meanOf(night)
		set[NocturnalCoefficientOfVariation] = stdDev(night, mean) / mean * 100
	}
	if len(day) >= 2 {
		mean := meanOf(day)
		set[DaytimeCoefficientOfVariation] = stdDev(day, mean) / mean * 100
	}
}

func meanOf(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stdDev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += (v - mean) * (v - mean)
	}
	return math.Sqrt(sum / float64(len(values)))
}

// percentile computes the p-th percentile of sorted values with linear
// interpolation between closest ranks.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
