package readings_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/glucolab/agp/glucose"
	"github.com/glucolab/agp/readings"
)

type fakeRepository struct {
	addedPatient string
	added        []glucose.Reading
	series       *glucose.Series
	err          error
}

func (f *fakeRepository) Add(_ context.Context, patientID string, batch []glucose.Reading) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.addedPatient = patientID
	f.added = batch
	return len(batch), nil
}

func (f *fakeRepository) GetSeries(_ context.Context, _ string, _, _ time.Time) (*glucose.Series, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.series, nil
}

var _ = Describe("Service", func() {
	var repo *fakeRepository
	var svc readings.Service
	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	BeforeEach(func() {
		repo = &fakeRepository{}
		var err error
		svc, err = readings.NewService(repo, zap.NewNop().Sugar())
		Expect(err).ToNot(HaveOccurred())
	})

	Describe("Add", func() {
		It("sorts the batch before storing it", func() {
			batch := []glucose.Reading{
				{Time: start.Add(5 * time.Minute), Value: 6.0},
				{Time: start, Value: 5.5},
			}

			inserted, err := svc.Add(context.Background(), "patient-1", batch)
			Expect(err).ToNot(HaveOccurred())
			Expect(inserted).To(Equal(2))
			Expect(repo.addedPatient).To(Equal("patient-1"))
			Expect(repo.added[0].Value).To(Equal(5.5))
			Expect(repo.added[1].Value).To(Equal(6.0))
		})

		It("rejects an empty batch", func() {
			_, err := svc.Add(context.Background(), "patient-1", nil)
			Expect(err).To(MatchError(glucose.ErrEmptySeries))
			Expect(repo.added).To(BeNil())
		})

		It("rejects in-batch duplicate timestamps", func() {
			batch := []glucose.Reading{
				{Time: start, Value: 5.5},
				{Time: start, Value: 6.0},
			}

			_, err := svc.Add(context.Background(), "patient-1", batch)
			Expect(err).To(MatchError(glucose.ErrDuplicateTime))
			Expect(repo.added).To(BeNil())
		})

		It("rejects out-of-range values before storing anything", func() {
			batch := []glucose.Reading{
				{Time: start, Value: 55.0},
			}

			_, err := svc.Add(context.Background(), "patient-1", batch)
			Expect(err).To(MatchError(glucose.ErrOutOfRange))
			Expect(repo.added).To(BeNil())
		})

		It("does not mutate the caller's slice", func() {
			batch := []glucose.Reading{
				{Time: start.Add(5 * time.Minute), Value: 6.0},
				{Time: start, Value: 5.5},
			}

			_, err := svc.Add(context.Background(), "patient-1", batch)
			Expect(err).ToNot(HaveOccurred())
			Expect(batch[0].Value).To(Equal(6.0))
		})
	})

	Describe("GetSeries", func() {
		It("delegates to the repository", func() {
			series, err := glucose.NewSeries("patient-1", []glucose.Reading{{Time: start, Value: 5.5}})
			Expect(err).ToNot(HaveOccurred())
			repo.series = series

			got, err := svc.GetSeries(context.Background(), "patient-1", time.Time{}, time.Time{})
			Expect(err).ToNot(HaveOccurred())
			Expect(got).To(Equal(series))
		})
	})
})
