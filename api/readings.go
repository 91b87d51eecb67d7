package api

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/glucolab/agp/errors"
	"github.com/glucolab/agp/glucose"
	"github.com/glucolab/agp/ingest"
	"github.com/labstack/echo/v4"
)

// maxUploadBytes caps raw file uploads; a 90 day sensor export is well under
// this.
const maxUploadBytes = 32 << 20

type AddReadingsRequest struct {
	Units    string           `json:"units"`
	Readings []ReadingPayload `json:"readings"`
}

type ReadingPayload struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

type AddReadingsResponse struct {
	Received int `json:"received"`
	Inserted int `json:"inserted"`
}

func (h *Handler) AddReadings(c echo.Context) error {
	patientID := c.Param("patientId")
	if _, err := h.patients.Get(c.Request().Context(), patientID); err != nil {
		return err
	}

	request := AddReadingsRequest{}
	if err := c.Bind(&request); err != nil {
		return fmt.Errorf("invalid body: %w", errors.BadRequest)
	}
	if len(request.Readings) == 0 {
		return fmt.Errorf("readings are required: %w", errors.BadRequest)
	}

	mgdl := false
	switch request.Units {
	case "", "mmol/L":
	case "mg/dL":
		mgdl = true
	default:
		return fmt.Errorf("unsupported units %q: %w", request.Units, errors.BadRequest)
	}

	batch := make([]glucose.Reading, len(request.Readings))
	for i, r := range request.Readings {
		value := r.Value
		if mgdl {
			value = glucose.MgdLToMmolL(value)
		}
		batch[i] = glucose.Reading{Time: r.Time, Value: value}
	}

	inserted, err := h.readings.Add(c.Request().Context(), patientID, batch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, AddReadingsResponse{
		Received: len(batch),
		Inserted: inserted,
	})
}

// UploadReadings accepts a raw CSV or XLSX export as the request body. The
// format is selected with the filename query parameter.
func (h *Handler) UploadReadings(c echo.Context) error {
	patientID := c.Param("patientId")
	if _, err := h.patients.Get(c.Request().Context(), patientID); err != nil {
		return err
	}

	data, err := io.ReadAll(io.LimitReader(c.Request().Body, maxUploadBytes))
	if err != nil {
		return fmt.Errorf("error reading upload: %w", errors.BadRequest)
	}

	name := c.QueryParam("filename")
	if name == "" {
		name = "upload.csv"
	}

	parsed, err := ingest.ParseFile(name, data)
	if err != nil {
		return err
	}

	inserted, err := h.readings.Add(c.Request().Context(), patientID, parsed)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, AddReadingsResponse{
		Received: len(parsed),
		Inserted: inserted,
	})
}
