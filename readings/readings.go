// Package readings persists ingested glucose readings and reconstructs
// per-patient series for analysis windows.
package readings

import (
	"context"
	"fmt"
	"time"

	"github.com/glucolab/agp/errors"
	"github.com/glucolab/agp/glucose"
)

var ErrNoReadings = fmt.Errorf("no readings in window: %w", errors.NotFound)

type Service interface {
	// Add ingests a batch of readings for a patient and returns the number
	// of newly stored readings. Readings already present (same patient and
	// timestamp) are skipped, never overwritten.
	Add(ctx context.Context, patientID string, incoming []glucose.Reading) (int, error)

	// GetSeries reconstructs the validated series for a window. Zero bounds
	// are open ended.
	GetSeries(ctx context.Context, patientID string, from, to time.Time) (*glucose.Series, error)
}

type Repository interface {
	Service
}
