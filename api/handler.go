package api

import (
	"strconv"

	"github.com/glucolab/agp/analysis"
	"github.com/glucolab/agp/patients"
	"github.com/glucolab/agp/readings"
	"github.com/glucolab/agp/store"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type Handler struct {
	patients patients.Service
	readings readings.Service
	analyses analysis.Service
}

type Params struct {
	fx.In

	Patients patients.Service
	Readings readings.Service
	Analyses analysis.Service
}

func NewHandler(p Params) *Handler {
	return &Handler{
		patients: p.Patients,
		readings: p.Readings,
		analyses: p.Analyses,
	}
}

func RegisterHandlers(e *echo.Echo, handler *Handler) {
	v1 := e.Group("/v1")

	v1.POST("/patients", handler.CreatePatient)
	v1.GET("/patients", handler.ListPatients)
	v1.GET("/patients/:patientId", handler.GetPatient)

	v1.POST("/patients/:patientId/readings", handler.AddReadings)
	v1.POST("/patients/:patientId/uploads", handler.UploadReadings)

	v1.POST("/patients/:patientId/analyses", handler.RunAnalysis)
	v1.GET("/patients/:patientId/analyses", handler.ListAnalyses)
	v1.GET("/analyses/:reportId", handler.GetAnalysis)
	v1.GET("/analyses/:reportId/report.xlsx", handler.ExportAnalysis)
}

func pagination(c echo.Context) store.Pagination {
	page := store.DefaultPagination()
	if offset, err := strconv.Atoi(c.QueryParam("offset")); err == nil && offset >= 0 {
		page.Offset = offset
	}
	if limit, err := strconv.Atoi(c.QueryParam("limit")); err == nil && limit > 0 {
		page.Limit = limit
	}
	return page
}
