package ingest

import (
	"context"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
)

var _ = Describe("Watcher", func() {
	const path = "/intake/patient-1.csv"

	drainOne := func(w *Watcher) {
		Expect(w.pending.Length()).To(BeNumerically(">", 0))
		w.process(context.Background(), w.pending.Remove().(string))
	}

	It("queues a file once across repeated events", func() {
		w := NewWatcher("/intake", func(context.Context, string) error { return nil }, zap.NewNop().Sugar())

		w.enqueue(path)
		w.enqueue(path)
		Expect(w.pending.Length()).To(Equal(1))
	})

	It("does not requeue a successfully processed file", func() {
		calls := 0
		w := NewWatcher("/intake", func(context.Context, string) error {
			calls++
			return nil
		}, zap.NewNop().Sugar())

		w.enqueue(path)
		drainOne(w)

		w.enqueue(path)
		Expect(w.pending.Length()).To(Equal(0))
		Expect(calls).To(Equal(1))
	})

	It("retries a file rewritten after a failed read", func() {
		// A create event often delivers a half-copied file; the first
		// read fails, and the write event that completes the file must
		// be allowed through.
		calls := 0
		w := NewWatcher("/intake", func(context.Context, string) error {
			calls++
			if calls == 1 {
				return fmt.Errorf("file contains no readings")
			}
			return nil
		}, zap.NewNop().Sugar())

		w.enqueue(path)
		drainOne(w)
		Expect(w.seen.Contains(path)).To(BeFalse())

		w.enqueue(path)
		Expect(w.pending.Length()).To(Equal(1))
		drainOne(w)
		Expect(calls).To(Equal(2))

		w.enqueue(path)
		Expect(w.pending.Length()).To(Equal(0))
	})

	It("only accepts intake file types", func() {
		Expect(isIntakeFile("/intake/export.csv")).To(BeTrue())
		Expect(isIntakeFile("/intake/Export.XLSX")).To(BeTrue())
		Expect(isIntakeFile("/intake/notes.txt")).To(BeFalse())
		Expect(isIntakeFile("/intake/export.csv.tmp")).To(BeFalse())
	})
})
