package api

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/glucolab/agp/analysis"
	"github.com/glucolab/agp/brittleness"
	"github.com/glucolab/agp/errors"
	"github.com/glucolab/agp/report"
	"github.com/labstack/echo/v4"
)

type RunAnalysisRequest struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

func (h *Handler) RunAnalysis(c echo.Context) error {
	patientID := c.Param("patientId")
	if _, err := h.patients.Get(c.Request().Context(), patientID); err != nil {
		return err
	}

	request := RunAnalysisRequest{}
	if err := c.Bind(&request); err != nil {
		return fmt.Errorf("invalid body: %w", errors.BadRequest)
	}

	var from, to time.Time
	if request.From != nil {
		from = *request.From
	}
	if request.To != nil {
		to = *request.To
	}

	series, err := h.readings.GetSeries(c.Request().Context(), patientID, from, to)
	if err != nil {
		return err
	}

	result, created, err := h.analyses.Analyze(c.Request().Context(), series)
	if err != nil {
		return err
	}
	// Reports are write-once: re-running over identical data serves the
	// existing report.
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, result)
}

func (h *Handler) GetAnalysis(c echo.Context) error {
	result, err := h.analyses.Get(c.Request().Context(), c.Param("reportId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) ListAnalyses(c echo.Context) error {
	patientID := c.Param("patientId")
	filter := &analysis.Filter{PatientID: &patientID}

	if raw := c.QueryParam("category"); raw != "" {
		category := brittleness.Category(raw)
		if !brittleness.IsValidCategory(category) {
			return fmt.Errorf("unknown category %q: %w", raw, errors.BadRequest)
		}
		filter.Category = &category
	}
	if raw := c.QueryParam("generatedFrom"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return fmt.Errorf("invalid generatedFrom: %w", errors.BadRequest)
		}
		filter.GeneratedFrom = &t
	}
	if raw := c.QueryParam("generatedTo"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return fmt.Errorf("invalid generatedTo: %w", errors.BadRequest)
		}
		filter.GeneratedTo = &t
	}

	result, err := h.analyses.List(c.Request().Context(), filter, pagination(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) ExportAnalysis(c echo.Context) error {
	result, err := h.analyses.Get(c.Request().Context(), c.Param("reportId"))
	if err != nil {
		return err
	}

	patient, err := h.patients.Get(c.Request().Context(), result.PatientID)
	if err != nil {
		patient = nil
	}

	workbook, err := report.NewGenerator(result, patient).Generate()
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := workbook.Write(&buf); err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", report.Filename(result)))
	return c.Blob(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		buf.Bytes())
}
