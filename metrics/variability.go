package metrics

import (
	"math"
	"time"

	"github.com/glucolab/agp/glucose"
)

const (
	// entropySampleCap bounds the quadratic sample entropy computation;
	// longer series are strided down to this many points.
	entropySampleCap = 2000

	riskScale = 1.509
	riskPower = 1.084
	riskShift = 5.381
)

func (e *Engine) addRisk(set Set, values []float64) {
	mean := set[AverageGlucoseMmol]
	sd := set[StandardDeviation]
	meanMgdl := mean * glucose.MmolLToMgdL
	sdMgdl := sd * glucose.MmolLToMgdL
	set[JIndex] = 0.001 * (meanMgdl + sdMgdl) * (meanMgdl + sdMgdl)

	// Kovatchev symmetrized risk space: readings are mapped so that the
	// hypo and hyper ranges contribute comparable risk magnitudes.
	var lbgi, hbgi float64
	for _, v := range values {
		f := riskScale * (math.Pow(math.Log(v*glucose.MmolLToMgdL), riskPower) - riskShift)
		risk := 10 * f * f
		if f < 0 {
			lbgi += risk
		} else {
			hbgi += risk
		}
	}
	set[LBGI] = lbgi / float64(len(values))
	set[HBGI] = hbgi / float64(len(values))
}

func (e *Engine) addVariability(set Set, series *glucose.Series) {
	if mage, ok := computeMAGE(series.Values(), set[StandardDeviation]); ok {
		set[MAGE] = mage
	}
	if modd, ok := computeLagDifferences(series, 24*time.Hour, moddMean); ok {
		set[MODD] = modd
	}
	if conga, ok := computeLagDifferences(series, time.Hour, congaStdDev); ok {
		set[CONGA1] = conga
	}
	if entropy, ok := sampleEntropy(series.Values(), set[StandardDeviation]); ok {
		set[SampleEntropy] = entropy
	}
}

// computeMAGE averages the amplitude of glycemic excursions exceeding one
// standard deviation, measured between consecutive turning points.
func computeMAGE(values []float64, sd float64) (float64, bool) {
	if len(values) < 3 || sd <= 0 {
		return 0, false
	}

	turning := []float64{values[0]}
	for i := 1; i < len(values)-1; i++ {
		prev, cur, next := values[i-1], values[i], values[i+1]
		if (cur > prev && cur >= next) || (cur < prev && cur <= next) {
			turning = append(turning, cur)
		}
	}
	turning = append(turning, values[len(values)-1])

	var sum float64
	var count int
	for i := 1; i < len(turning); i++ {
		if amplitude := math.Abs(turning[i] - turning[i-1]); amplitude > sd {
			sum += amplitude
			count++
		}
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}

func moddMean(diffs []float64) (float64, bool) {
	if len(diffs) == 0 {
		return 0, false
	}
	return meanOf(diffs), true
}

func congaStdDev(diffs []float64) (float64, bool) {
	if len(diffs) < 2 {
		return 0, false
	}
	return stdDev(diffs, meanOf(diffs)), true
}

// computeLagDifferences pairs each reading with the closest reading one lag
// earlier (within half a sampling interval) and reduces the absolute
// differences. MODD uses a 24h lag, CONGA a 1h lag.
func computeLagDifferences(series *glucose.Series, lag time.Duration, reduce func([]float64) (float64, bool)) (float64, bool) {
	tolerance := series.SamplingInterval() / 2
	if tolerance <= 0 {
		tolerance = glucose.DefaultSamplingInterval / 2
	}

	readings := series.Readings
	var diffs []float64
	j := 0
	for _, r := range readings {
		target := r.Time.Add(-lag)
		for j < len(readings) && readings[j].Time.Before(target.Add(-tolerance)) {
			j++
		}
		if j >= len(readings) {
			break
		}
		candidate := readings[j]
		if candidate.Time.After(target.Add(tolerance)) {
			continue
		}
		diffs = append(diffs, math.Abs(r.Value-candidate.Value))
	}
	return reduce(diffs)
}

// sampleEntropy computes SampEn(m=2, r=0.2·SD), a chaos indicator used by the
// brittleness classifier. Returns false when the series is too short or flat.
func sampleEntropy(values []float64, sd float64) (float64, bool) {
	if sd <= 0 || len(values) < 4 {
		return 0, false
	}
	if len(values) > entropySampleCap {
		stride := (len(values) + entropySampleCap - 1) / entropySampleCap
		sampled := make([]float64, 0, entropySampleCap)
		for i := 0; i < len(values); i += stride {
			sampled = append(sampled, values[i])
		}
		values = sampled
	}

	const m = 2
	r := 0.2 * sd
	n := len(values)

	matches := func(length int) float64 {
		var count float64
		for i := 0; i < n-length; i++ {
			for j := i + 1; j < n-length; j++ {
				matched := true
				for k := 0; k < length; k++ {
					if math.Abs(values[i+k]-values[j+k]) > r {
						matched = false
						break
					}
				}
				if matched {
					count++
				}
			}
		}
		return count
	}

	b := matches(m)
	a := matches(m + 1)
	if a == 0 || b == 0 {
		return 0, false
	}
	return -math.Log(a / b), true
}
