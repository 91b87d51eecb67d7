package brittleness

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Thresholds are the decision boundaries of the classifier. Defaults follow
// the international consensus targets for CGM interpretation; deployments can
// override them with a YAML file.
type Thresholds struct {
	// UnstableCV marks the variability domain boundary (percent).
	UnstableCV float64 `yaml:"unstableCV"`
	// HypoTimeInAnyLowPercent flags hypo-prone patients (percent of readings).
	HypoTimeInAnyLowPercent float64 `yaml:"hypoTimeInAnyLowPercent"`
	// TargetTimeInRangePercent is the TIR goal below which a patient can be
	// considered hyper-prone when paired with excess time above range.
	TargetTimeInRangePercent float64 `yaml:"targetTimeInRangePercent"`
	// HyperTimeInAnyHighPercent is the excess-time-above-range boundary.
	HyperTimeInAnyHighPercent float64 `yaml:"hyperTimeInAnyHighPercent"`
	// OscillationMAGE gates rapid oscillation (mmol/L mean excursion).
	OscillationMAGE float64 `yaml:"oscillationMAGE"`
	// ChaoticSampleEntropy gates the chaotic category.
	ChaoticSampleEntropy float64 `yaml:"chaoticSampleEntropy"`
	// NocturnalCVRatio is the night/day CV ratio marking nocturnal instability.
	NocturnalCVRatio float64 `yaml:"nocturnalCVRatio"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		UnstableCV:                36.0,
		HypoTimeInAnyLowPercent:   4.0,
		TargetTimeInRangePercent:  70.0,
		HyperTimeInAnyHighPercent: 25.0,
		OscillationMAGE:           3.9,
		ChaoticSampleEntropy:      1.5,
		NocturnalCVRatio:          1.5,
	}
}

// LoadThresholds reads threshold overrides from a YAML file. Fields absent
// from the file keep their defaults. An empty path returns the defaults.
func LoadThresholds(path string) (Thresholds, error) {
	thresholds := DefaultThresholds()
	if path == "" {
		return thresholds, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return thresholds, fmt.Errorf("unable to read thresholds file: %w", err)
	}
	if err := yaml.Unmarshal(data, &thresholds); err != nil {
		return thresholds, fmt.Errorf("unable to parse thresholds file: %w", err)
	}
	return thresholds, nil
}
