// Package brittleness classifies a patient's glycemic instability from a
// computed metric set.
package brittleness

import (
	"fmt"
	"math"

	"github.com/glucolab/agp/errors"
	"github.com/glucolab/agp/metrics"
	"go.uber.org/zap"
)

type Category string

const (
	CategoryStable            Category = "stable"
	CategoryHypoProne         Category = "hypo_prone"
	CategoryHyperProne        Category = "hyper_prone"
	CategoryRapidOscillation  Category = "rapid_oscillation"
	CategoryNocturnalUnstable Category = "nocturnal_unstable"
	CategoryChaotic           Category = "chaotic"
)

func Categories() []Category {
	return []Category{
		CategoryStable,
		CategoryHypoProne,
		CategoryHyperProne,
		CategoryRapidOscillation,
		CategoryNocturnalUnstable,
		CategoryChaotic,
	}
}

func IsValidCategory(c Category) bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

var ErrInsufficientMetrics = fmt.Errorf("metric set incomplete for classification: %w", errors.ConstraintViolation)

// Profile is the classifier output for a single analysis run.
type Profile struct {
	Category Category `json:"category" bson:"category"`
	Severity float64  `json:"severity" bson:"severity"`
	Drivers  []string `json:"drivers" bson:"drivers"`
}

type Classifier struct {
	thresholds Thresholds
	logger     *zap.SugaredLogger
}

func NewClassifier(thresholds Thresholds, logger *zap.SugaredLogger) *Classifier {
	return &Classifier{
		thresholds: thresholds,
		logger:     logger,
	}
}

// Classify assigns exactly one category. When several rules fire, the most
// specific instability wins: chaotic > rapid_oscillation > hypo_prone >
// nocturnal_unstable > hyper_prone > stable.
func (c *Classifier) Classify(set metrics.Set) (Profile, error) {
	if !set.Has(metrics.CoefficientOfVariation) || !set.Has(metrics.TimeInTargetPercent) {
		return Profile{}, ErrInsufficientMetrics
	}

	cv := set.Get(metrics.CoefficientOfVariation)
	tir := set.Get(metrics.TimeInTargetPercent)
	anyLow := set.Get(metrics.TimeInAnyLowPercent)
	anyHigh := set.Get(metrics.TimeInAnyHighPercent)
	unstable := cv >= c.thresholds.UnstableCV

	var category Category
	var drivers []string

	switch {
	case c.isChaotic(set, unstable):
		category = CategoryChaotic
		drivers = append(drivers,
			fmt.Sprintf("sample entropy %.2f above %.2f", set.Get(metrics.SampleEntropy), c.thresholds.ChaoticSampleEntropy),
			fmt.Sprintf("CV %.1f%% in unstable domain", cv))
	case c.isRapidOscillation(set, unstable):
		category = CategoryRapidOscillation
		drivers = append(drivers,
			fmt.Sprintf("MAGE %.2f mmol/L above %.2f", set.Get(metrics.MAGE), c.thresholds.OscillationMAGE),
			fmt.Sprintf("CV %.1f%% in unstable domain", cv))
	case anyLow > c.thresholds.HypoTimeInAnyLowPercent:
		category = CategoryHypoProne
		drivers = append(drivers,
			fmt.Sprintf("time below range %.1f%% above %.1f%%", anyLow, c.thresholds.HypoTimeInAnyLowPercent))
	case c.isNocturnal(set):
		category = CategoryNocturnalUnstable
		drivers = append(drivers,
			fmt.Sprintf("nocturnal CV %.1f%% vs daytime %.1f%%",
				set.Get(metrics.NocturnalCoefficientOfVariation),
				set.Get(metrics.DaytimeCoefficientOfVariation)))
	case tir < c.thresholds.TargetTimeInRangePercent && anyHigh > c.thresholds.HyperTimeInAnyHighPercent:
		category = CategoryHyperProne
		drivers = append(drivers,
			fmt.Sprintf("TIR %.1f%% below %.1f%%", tir, c.thresholds.TargetTimeInRangePercent),
			fmt.Sprintf("time above range %.1f%%", anyHigh))
	default:
		category = CategoryStable
	}

	profile := Profile{
		Category: category,
		Severity: c.severity(set),
		Drivers:  drivers,
	}

	c.logger.Debugw("classified brittleness",
		"category", profile.Category,
		"severity", profile.Severity)

	return profile, nil
}

func (c *Classifier) isChaotic(set metrics.Set, unstable bool) bool {
	return unstable && set.Has(metrics.SampleEntropy) &&
		set.Get(metrics.SampleEntropy) > c.thresholds.ChaoticSampleEntropy
}

func (c *Classifier) isRapidOscillation(set metrics.Set, unstable bool) bool {
	return unstable && set.Has(metrics.MAGE) &&
		set.Get(metrics.MAGE) > c.thresholds.OscillationMAGE
}

func (c *Classifier) isNocturnal(set metrics.Set) bool {
	if !set.Has(metrics.NocturnalCoefficientOfVariation) || !set.Has(metrics.DaytimeCoefficientOfVariation) {
		return false
	}
	day := set.Get(metrics.DaytimeCoefficientOfVariation)
	if day <= 0 {
		return false
	}
	return set.Get(metrics.NocturnalCoefficientOfVariation)/day >= c.thresholds.NocturnalCVRatio
}

// severity scores how far the patient is from stability targets, 0 to 100.
func (c *Classifier) severity(set metrics.Set) float64 {
	cvScore := clamp01((set.Get(metrics.CoefficientOfVariation) - 20) / 40)
	tirScore := clamp01((c.thresholds.TargetTimeInRangePercent - set.Get(metrics.TimeInTargetPercent)) / c.thresholds.TargetTimeInRangePercent)
	lowScore := clamp01(set.Get(metrics.TimeInAnyLowPercent) / 10)
	var mageScore float64
	if set.Has(metrics.MAGE) {
		mageScore = clamp01(set.Get(metrics.MAGE) / 5)
	}

	score := 100 * (0.35*cvScore + 0.30*tirScore + 0.20*lowScore + 0.15*mageScore)
	return math.Round(score*10) / 10
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
