package metrics_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/glucolab/agp/glucose"
	"github.com/glucolab/agp/metrics"
)

func constantSeries(start time.Time, interval time.Duration, count int, value float64) *glucose.Series {
	readings := make([]glucose.Reading, count)
	for i := range readings {
		readings[i] = glucose.Reading{
			Time:  start.Add(time.Duration(i) * interval),
			Value: value,
		}
	}
	series, err := glucose.NewSeries("patient", readings)
	Expect(err).ToNot(HaveOccurred())
	return series
}

func seriesOf(start time.Time, interval time.Duration, values ...float64) *glucose.Series {
	readings := make([]glucose.Reading, len(values))
	for i, v := range values {
		readings[i] = glucose.Reading{
			Time:  start.Add(time.Duration(i) * interval),
			Value: v,
		}
	}
	series, err := glucose.NewSeries("patient", readings)
	Expect(err).ToNot(HaveOccurred())
	return series
}

var _ = Describe("Engine", func() {
	var engine *metrics.Engine
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	BeforeEach(func() {
		engine = metrics.NewEngine(metrics.DefaultConfig(), zap.NewNop().Sugar())
	})

	It("rejects a nil series", func() {
		_, err := engine.Compute(nil)
		Expect(err).To(MatchError(glucose.ErrEmptySeries))
	})

	Context("with a constant full-day series", func() {
		var set metrics.Set

		BeforeEach(func() {
			var err error
			set, err = engine.Compute(constantSeries(start, 5*time.Minute, 288, 6.0))
			Expect(err).ToNot(HaveOccurred())
		})

		It("computes coverage", func() {
			Expect(set.Get(metrics.TotalRecords)).To(Equal(288.0))
			Expect(set.Get(metrics.DaysWithData)).To(Equal(1.0))
			Expect(set.Get(metrics.HoursWithData)).To(Equal(24.0))
			Expect(set.Get(metrics.AverageDailyRecords)).To(Equal(288.0))
			Expect(set.Get(metrics.WearPercent)).To(BeNumerically("~", 100.0, 1e-9))
		})

		It("computes the distribution", func() {
			Expect(set.Get(metrics.AverageGlucoseMmol)).To(Equal(6.0))
			Expect(set.Get(metrics.MedianGlucoseMmol)).To(Equal(6.0))
			Expect(set.Get(metrics.StandardDeviation)).To(Equal(0.0))
			Expect(set.Get(metrics.CoefficientOfVariation)).To(Equal(0.0))
			Expect(set.Get(metrics.GlucoseManagementIndicator)).To(BeNumerically("~", 5.896, 1e-3))
		})

		It("places everything in target", func() {
			Expect(set.Get(metrics.TimeInTargetPercent)).To(Equal(100.0))
			Expect(set.Get(metrics.TimeInTargetRecords)).To(Equal(288.0))
			Expect(set.Get(metrics.TimeInTargetMinutes)).To(Equal(1440.0))
			Expect(set.Get(metrics.TimeInAnyLowPercent)).To(Equal(0.0))
			Expect(set.Get(metrics.TimeInAnyHighPercent)).To(Equal(0.0))
		})

		It("omits indicators a flat series cannot support", func() {
			Expect(set.Has(metrics.MAGE)).To(BeFalse())
			Expect(set.Has(metrics.SampleEntropy)).To(BeFalse())
			Expect(set.Has(metrics.MODD)).To(BeFalse())
		})
	})

	Context("with an alternating series", func() {
		var set metrics.Set

		BeforeEach(func() {
			values := make([]float64, 12)
			for i := range values {
				if i%2 == 0 {
					values[i] = 4.0
				} else {
					values[i] = 8.0
				}
			}
			var err error
			set, err = engine.Compute(seriesOf(start, 5*time.Minute, values...))
			Expect(err).ToNot(HaveOccurred())
		})

		It("computes the population standard deviation", func() {
			Expect(set.Get(metrics.AverageGlucoseMmol)).To(Equal(6.0))
			Expect(set.Get(metrics.StandardDeviation)).To(Equal(2.0))
			Expect(set.Get(metrics.CoefficientOfVariation)).To(BeNumerically("~", 33.333, 1e-3))
		})

		It("computes the J-index", func() {
			Expect(set.Get(metrics.JIndex)).To(BeNumerically("~", 20.778, 1e-3))
		})

		It("averages the excursion amplitudes above one standard deviation", func() {
			Expect(set.Get(metrics.MAGE)).To(Equal(4.0))
		})

		It("computes sample entropy of the repeating pattern", func() {
			Expect(set.Get(metrics.SampleEntropy)).To(BeNumerically("~", 0.223, 1e-3))
		})
	})

	Context("band counting", func() {
		It("counts each band and the extreme tail", func() {
			set, err := engine.Compute(seriesOf(start, 5*time.Minute,
				2.5, 3.5, 5.0, 12.0, 15.0, 20.0))
			Expect(err).ToNot(HaveOccurred())

			Expect(set.Get(metrics.TimeInVeryLowRecords)).To(Equal(1.0))
			Expect(set.Get(metrics.TimeInLowRecords)).To(Equal(1.0))
			Expect(set.Get(metrics.TimeInTargetRecords)).To(Equal(1.0))
			Expect(set.Get(metrics.TimeInHighRecords)).To(Equal(1.0))
			Expect(set.Get(metrics.TimeInVeryHighRecords)).To(Equal(2.0))
			Expect(set.Get(metrics.TimeInExtremeHighRecords)).To(Equal(1.0))

			Expect(set.Get(metrics.TimeInAnyLowRecords)).To(Equal(2.0))
			Expect(set.Get(metrics.TimeInAnyHighRecords)).To(Equal(3.0))
			Expect(set.Get(metrics.TimeInAnyLowPercent)).To(BeNumerically("~", 100.0/3, 1e-9))
		})
	})

	Context("risk indices", func() {
		It("attributes low readings to the hypoglycemic index", func() {
			set, err := engine.Compute(constantSeries(start, 5*time.Minute, 12, 4.0))
			Expect(err).ToNot(HaveOccurred())
			Expect(set.Get(metrics.LBGI)).To(BeNumerically(">", 0))
			Expect(set.Get(metrics.HBGI)).To(Equal(0.0))
		})

		It("attributes high readings to the hyperglycemic index", func() {
			set, err := engine.Compute(constantSeries(start, 5*time.Minute, 12, 12.0))
			Expect(err).ToNot(HaveOccurred())
			Expect(set.Get(metrics.HBGI)).To(BeNumerically(">", 0))
			Expect(set.Get(metrics.LBGI)).To(Equal(0.0))
		})
	})

	Context("between-day variability", func() {
		It("averages differences at the 24h lag", func() {
			readings := make([]glucose.Reading, 0, 48)
			for i := 0; i < 24; i++ {
				readings = append(readings, glucose.Reading{Time: start.Add(time.Duration(i) * time.Hour), Value: 5.0})
			}
			for i := 0; i < 24; i++ {
				readings = append(readings, glucose.Reading{Time: start.Add(24*time.Hour + time.Duration(i)*time.Hour), Value: 7.0})
			}
			series, err := glucose.NewSeries("patient", readings)
			Expect(err).ToNot(HaveOccurred())

			set, err := engine.Compute(series)
			Expect(err).ToNot(HaveOccurred())
			Expect(set.Get(metrics.MODD)).To(Equal(2.0))
			Expect(set.Has(metrics.CONGA1)).To(BeTrue())
		})
	})

	Context("diurnal split", func() {
		It("computes separate nocturnal and daytime variation", func() {
			readings := []glucose.Reading{
				{Time: start.Add(1 * time.Hour), Value: 4.0},
				{Time: start.Add(2 * time.Hour), Value: 8.0},
				{Time: start.Add(10 * time.Hour), Value: 6.0},
				{Time: start.Add(11 * time.Hour), Value: 6.0},
			}
			series, err := glucose.NewSeries("patient", readings)
			Expect(err).ToNot(HaveOccurred())

			set, err := engine.Compute(series)
			Expect(err).ToNot(HaveOccurred())
			Expect(set.Get(metrics.NocturnalCoefficientOfVariation)).To(BeNumerically("~", 33.333, 1e-3))
			Expect(set.Get(metrics.DaytimeCoefficientOfVariation)).To(Equal(0.0))
		})
	})
})

var _ = Describe("Profile", func() {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	It("computes percentile bands per hour of day and omits empty hours", func() {
		engine := metrics.NewEngine(metrics.DefaultConfig(), zap.NewNop().Sugar())
		readings := []glucose.Reading{
			{Time: start.Add(10 * time.Minute), Value: 4.0},
			{Time: start.Add(20 * time.Minute), Value: 6.0},
			{Time: start.Add(30 * time.Minute), Value: 8.0},
			{Time: start.Add(5 * time.Hour), Value: 10.0},
		}
		series, err := glucose.NewSeries("patient", readings)
		Expect(err).ToNot(HaveOccurred())

		profile := engine.Profile(series)
		Expect(profile).To(HaveLen(2))

		Expect(profile[0].Hour).To(Equal(0))
		Expect(profile[0].Records).To(Equal(3))
		Expect(profile[0].P50).To(Equal(6.0))
		Expect(profile[0].P25).To(Equal(5.0))
		Expect(profile[0].P75).To(Equal(7.0))

		Expect(profile[1].Hour).To(Equal(5))
		Expect(profile[1].Records).To(Equal(1))
		Expect(profile[1].P50).To(Equal(10.0))
	})
})
