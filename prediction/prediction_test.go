package prediction_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/glucolab/agp/glucose"
	"github.com/glucolab/agp/prediction"
)

// rampSeries produces readings every 5 minutes ending at `end` with the last
// value `last`, moving at `slope` mmol/L per minute.
func rampSeries(end time.Time, count int, last, slope float64) *glucose.Series {
	readings := make([]glucose.Reading, count)
	for i := 0; i < count; i++ {
		minutes := float64((count - 1 - i) * 5)
		readings[i] = glucose.Reading{
			Time:  end.Add(-time.Duration(count-1-i) * 5 * time.Minute),
			Value: last - slope*minutes,
		}
	}
	series, err := glucose.NewSeries("patient", readings)
	Expect(err).ToNot(HaveOccurred())
	return series
}

var _ = Describe("Predictor", func() {
	var predictor *prediction.Predictor
	end := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	BeforeEach(func() {
		predictor = prediction.NewPredictor(zap.NewNop().Sugar())
	})

	It("rejects a nil series", func() {
		_, err := predictor.Forecast(nil)
		Expect(err).To(MatchError(prediction.ErrInsufficientData))
	})

	It("requires enough readings inside the trend window", func() {
		_, err := predictor.Forecast(rampSeries(end, 2, 6.0, 0))
		Expect(err).To(MatchError(prediction.ErrInsufficientData))
	})

	It("extrapolates a steady rise", func() {
		forecast, err := predictor.Forecast(rampSeries(end, 9, 8.0, 0.05))
		Expect(err).ToNot(HaveOccurred())

		Expect(forecast.ReferenceTime).To(Equal(end))
		Expect(forecast.BasedOnReadings).To(Equal(7))
		Expect(forecast.TrendMmolPerMin).To(BeNumerically("~", 0.05, 1e-9))
		Expect(forecast.Confidence).To(BeNumerically("~", 1.0, 1e-9))
		Expect(forecast.In30Min.Time).To(Equal(end.Add(30 * time.Minute)))
		Expect(forecast.In30Min.Value).To(BeNumerically("~", 9.5, 1e-6))
		Expect(forecast.In60Min.Value).To(BeNumerically("~", 11.0, 1e-6))
		Expect(forecast.HypoRisk).To(BeFalse())
		Expect(forecast.HyperRisk).To(BeFalse())
	})

	It("is fully confident about a flat series", func() {
		forecast, err := predictor.Forecast(rampSeries(end, 7, 6.0, 0))
		Expect(err).ToNot(HaveOccurred())

		Expect(forecast.TrendMmolPerMin).To(BeNumerically("~", 0.0, 1e-9))
		Expect(forecast.Confidence).To(Equal(1.0))
		Expect(forecast.In60Min.Value).To(BeNumerically("~", 6.0, 1e-6))
	})

	It("flags hypoglycemia risk on a steady fall", func() {
		forecast, err := predictor.Forecast(rampSeries(end, 7, 4.5, -0.05))
		Expect(err).ToNot(HaveOccurred())

		Expect(forecast.In30Min.Value).To(BeNumerically("~", 3.0, 1e-6))
		Expect(forecast.HypoRisk).To(BeTrue())
		Expect(forecast.HyperRisk).To(BeFalse())
	})

	It("flags hyperglycemia risk on a steady rise", func() {
		forecast, err := predictor.Forecast(rampSeries(end, 7, 13.0, 0.05))
		Expect(err).ToNot(HaveOccurred())

		Expect(forecast.In30Min.Value).To(BeNumerically("~", 14.5, 1e-6))
		Expect(forecast.HyperRisk).To(BeTrue())
	})

	It("clamps projections to the physiologic floor", func() {
		forecast, err := predictor.Forecast(rampSeries(end, 7, 4.0, -0.1))
		Expect(err).ToNot(HaveOccurred())

		Expect(forecast.In60Min.Value).To(Equal(glucose.MinReadingMmolL))
		Expect(forecast.HypoRisk).To(BeTrue())
	})
})
