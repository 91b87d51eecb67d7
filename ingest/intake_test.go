package ingest_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/glucolab/agp/analysis"
	"github.com/glucolab/agp/glucose"
	"github.com/glucolab/agp/ingest"
	"github.com/glucolab/agp/store"
)

type fakeReadings struct {
	patientID string
	added     []glucose.Reading
}

func (f *fakeReadings) Add(_ context.Context, patientID string, batch []glucose.Reading) (int, error) {
	f.patientID = patientID
	f.added = batch
	return len(batch), nil
}

func (f *fakeReadings) GetSeries(_ context.Context, patientID string, _, _ time.Time) (*glucose.Series, error) {
	return glucose.NewSeries(patientID, f.added)
}

type fakeAnalyses struct {
	analyzed *glucose.Series
}

func (f *fakeAnalyses) Analyze(_ context.Context, series *glucose.Series) (*analysis.Report, bool, error) {
	f.analyzed = series
	return &analysis.Report{ReportID: "report-1", PatientID: series.PatientID}, true, nil
}

func (f *fakeAnalyses) Get(_ context.Context, _ string) (*analysis.Report, error) {
	return nil, analysis.ErrNotFound
}

func (f *fakeAnalyses) List(_ context.Context, _ *analysis.Filter, _ store.Pagination) (*analysis.ListResult, error) {
	return &analysis.ListResult{}, nil
}

var _ = Describe("Intake", func() {
	var dir string
	var readingsSvc *fakeReadings
	var analysesSvc *fakeAnalyses
	var intake *ingest.Intake

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		readingsSvc = &fakeReadings{}
		analysesSvc = &fakeAnalyses{}
		intake = ingest.NewIntake(readingsSvc, analysesSvc, zap.NewNop().Sugar())
	})

	It("stores the file contents and runs an analysis", func() {
		path := filepath.Join(dir, "patient-42.csv")
		content := "Time,Value\n2024-03-01T08:00:00Z,5.5\n2024-03-01T08:05:00Z,5.8\n"
		Expect(os.WriteFile(path, []byte(content), 0o600)).To(Succeed())

		Expect(intake.HandleFile(context.Background(), path)).To(Succeed())

		Expect(readingsSvc.patientID).To(Equal("patient-42"))
		Expect(readingsSvc.added).To(HaveLen(2))
		Expect(analysesSvc.analyzed).ToNot(BeNil())
		Expect(analysesSvc.analyzed.PatientID).To(Equal("patient-42"))
	})

	It("fails on an unparsable file", func() {
		path := filepath.Join(dir, "patient-42.csv")
		Expect(os.WriteFile(path, []byte("foo,bar\n1,2\n"), 0o600)).To(Succeed())

		Expect(intake.HandleFile(context.Background(), path)).To(MatchError(ingest.ErrNoHeader))
		Expect(analysesSvc.analyzed).To(BeNil())
	})

	It("fails on a missing file", func() {
		Expect(intake.HandleFile(context.Background(), filepath.Join(dir, "missing.csv"))).To(HaveOccurred())
	})
})
