package api

import (
	"fmt"
	"net/http"

	"github.com/glucolab/agp/errors"
	"github.com/glucolab/agp/patients"
	"github.com/labstack/echo/v4"
)

type CreatePatientRequest struct {
	FullName  string  `json:"fullName"`
	Mrn       *string `json:"mrn,omitempty"`
	BirthDate *string `json:"birthDate,omitempty"`
}

func (h *Handler) CreatePatient(c echo.Context) error {
	request := CreatePatientRequest{}
	if err := c.Bind(&request); err != nil {
		return fmt.Errorf("invalid body: %w", errors.BadRequest)
	}

	created, err := h.patients.Create(c.Request().Context(), patients.Patient{
		FullName:  request.FullName,
		Mrn:       request.Mrn,
		BirthDate: request.BirthDate,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) GetPatient(c echo.Context) error {
	patient, err := h.patients.Get(c.Request().Context(), c.Param("patientId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, patient)
}

func (h *Handler) ListPatients(c echo.Context) error {
	filter := &patients.Filter{}
	if search := c.QueryParam("search"); search != "" {
		filter.Search = &search
	}
	if mrn := c.QueryParam("mrn"); mrn != "" {
		filter.Mrn = &mrn
	}

	result, err := h.patients.List(c.Request().Context(), filter, pagination(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}
