package glucose

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/glucolab/agp/errors"
)

const (
	// MmolLToMgdL converts a concentration from mmol/L to mg/dL.
	MmolLToMgdL = 18.0182

	// MinReadingMmolL and MaxReadingMmolL bound the physiologically plausible
	// range for a sensor reading. Values outside are treated as sensor noise
	// and rejected at ingestion.
	MinReadingMmolL = 1.0
	MaxReadingMmolL = 33.3

	// DefaultSamplingInterval is assumed when a series is too short to
	// estimate its own cadence.
	DefaultSamplingInterval = 5 * time.Minute
)

var (
	ErrEmptySeries   = fmt.Errorf("empty series: %w", errors.BadRequest)
	ErrUnordered     = fmt.Errorf("readings out of order: %w", errors.ConstraintViolation)
	ErrDuplicateTime = fmt.Errorf("duplicate reading time: %w", errors.ConstraintViolation)
	ErrOutOfRange    = fmt.Errorf("reading out of physiologic range: %w", errors.ConstraintViolation)
)

func MgdLToMmolL(value float64) float64 {
	return value / MmolLToMgdL
}

// Reading is a single timestamped glucose concentration in mmol/L.
// Readings are immutable once ingested.
type Reading struct {
	Time  time.Time `json:"time" bson:"time"`
	Value float64   `json:"value" bson:"value"`
}

// Series is the ordered sequence of readings for one patient over a
// monitoring window. Timestamps are strictly increasing.
type Series struct {
	PatientID string
	Readings  []Reading
}

// NewSeries validates the readings and returns a Series. The input slice is
// not copied and must not be mutated afterwards.
func NewSeries(patientID string, readings []Reading) (*Series, error) {
	if len(readings) == 0 {
		return nil, ErrEmptySeries
	}
	for i, r := range readings {
		if r.Value < MinReadingMmolL || r.Value > MaxReadingMmolL {
			return nil, fmt.Errorf("%v at %s: %w", r.Value, r.Time.Format(time.RFC3339), ErrOutOfRange)
		}
		if i == 0 {
			continue
		}
		if r.Time.Equal(readings[i-1].Time) {
			return nil, fmt.Errorf("%s: %w", r.Time.Format(time.RFC3339), ErrDuplicateTime)
		}
		if r.Time.Before(readings[i-1].Time) {
			return nil, fmt.Errorf("%s precedes %s: %w",
				r.Time.Format(time.RFC3339), readings[i-1].Time.Format(time.RFC3339), ErrUnordered)
		}
	}
	return &Series{PatientID: patientID, Readings: readings}, nil
}

func (s *Series) Len() int {
	return len(s.Readings)
}

func (s *Series) Start() time.Time {
	return s.Readings[0].Time
}

func (s *Series) End() time.Time {
	return s.Readings[len(s.Readings)-1].Time
}

// Clamp returns the sub-series with readings in [from, to]. Zero bounds are
// treated as open. The result shares the underlying readings.
func (s *Series) Clamp(from, to time.Time) (*Series, error) {
	lo := 0
	hi := len(s.Readings)
	if !from.IsZero() {
		lo = sort.Search(len(s.Readings), func(i int) bool {
			return !s.Readings[i].Time.Before(from)
		})
	}
	if !to.IsZero() {
		hi = sort.Search(len(s.Readings), func(i int) bool {
			return s.Readings[i].Time.After(to)
		})
	}
	if lo >= hi {
		return nil, ErrEmptySeries
	}
	return &Series{PatientID: s.PatientID, Readings: s.Readings[lo:hi]}, nil
}

func (s *Series) Values() []float64 {
	values := make([]float64, len(s.Readings))
	for i, r := range s.Readings {
		values[i] = r.Value
	}
	return values
}

// SamplingInterval estimates the sensor cadence as the median gap between
// consecutive readings.
func (s *Series) SamplingInterval() time.Duration {
	if len(s.Readings) < 2 {
		return DefaultSamplingInterval
	}
	gaps := make([]time.Duration, 0, len(s.Readings)-1)
	for i := 1; i < len(s.Readings); i++ {
		gaps = append(gaps, s.Readings[i].Time.Sub(s.Readings[i-1].Time))
	}
	sort.Slice(gaps, func(i, j int) bool { return gaps[i] < gaps[j] })
	return gaps[len(gaps)/2]
}

// ByHourOfDay buckets values by the hour of day of their timestamp (UTC),
// the shape needed for ambulatory glucose profile percentiles.
func (s *Series) ByHourOfDay() [24][]float64 {
	var buckets [24][]float64
	for _, r := range s.Readings {
		hour := r.Time.UTC().Hour()
		buckets[hour] = append(buckets[hour], r.Value)
	}
	return buckets
}

// Hash returns a stable content hash of the series, used to deduplicate
// write-once analysis reports.
func (s *Series) Hash() string {
	h := sha256.New()
	h.Write([]byte(s.PatientID))
	var buf [16]byte
	for _, r := range s.Readings {
		binary.BigEndian.PutUint64(buf[:8], uint64(r.Time.UnixNano()))
		binary.BigEndian.PutUint64(buf[8:], math.Float64bits(r.Value))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}
