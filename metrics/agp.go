package metrics

import (
	"sort"

	"github.com/glucolab/agp/glucose"
)

// HourlyPercentiles is one row of the ambulatory glucose profile: the value
// distribution of all readings falling in a given hour of day across the
// monitoring window.
type HourlyPercentiles struct {
	Hour    int     `json:"hour" bson:"hour"`
	Records int     `json:"records" bson:"records"`
	P10     float64 `json:"p10" bson:"p10"`
	P25     float64 `json:"p25" bson:"p25"`
	P50     float64 `json:"p50" bson:"p50"`
	P75     float64 `json:"p75" bson:"p75"`
	P90     float64 `json:"p90" bson:"p90"`
}

type AGPProfile []HourlyPercentiles

// Profile computes the hourly percentile bands. Hours without data are
// omitted from the profile.
func (e *Engine) Profile(series *glucose.Series) AGPProfile {
	buckets := series.ByHourOfDay()
	profile := make(AGPProfile, 0, 24)
	for hour, values := range buckets {
		if len(values) == 0 {
			continue
		}
		sorted := append([]float64(nil), values...)
		sort.Float64s(sorted)
		profile = append(profile, HourlyPercentiles{
			Hour:    hour,
			Records: len(sorted),
			P10:     percentile(sorted, 10),
			P25:     percentile(sorted, 25),
			P50:     percentile(sorted, 50),
			P75:     percentile(sorted, 75),
			P90:     percentile(sorted, 90),
		})
	}
	return profile
}
